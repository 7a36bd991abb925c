package tasks

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/desertthunder/nsync/internal/dispatch"
	"github.com/desertthunder/nsync/internal/reconcile"
	"github.com/desertthunder/nsync/internal/registry"
	"github.com/desertthunder/nsync/internal/services"
	"github.com/desertthunder/nsync/internal/shared"
)

// Scheduler owns the runtime state of every job: a busy flag, a pipeline state and the
// base clock's tick counter.
//
// Job state changes only on the dispatcher's goroutine. [Scheduler.IsSyncing] and
// [Scheduler.State] may be called from any goroutine.
type Scheduler struct {
	registry   *registry.Registry
	client     *services.AsyncClient
	dispatcher dispatch.Dispatcher
	reconciler *reconcile.Reconciler
	playlists  reconcile.PlaylistStore
	logger     *log.Logger
	tick       time.Duration

	mu       sync.RWMutex
	inflight []*run // non-nil while the job is busy
	states   []JobState
	ticks    uint64

	observersMu sync.RWMutex
	observers   map[Handle]Observer

	lifecycleMu sync.Mutex
	ctx         context.Context
	started     bool
	stopTicker  context.CancelFunc
	tickerDone  chan struct{}
}

// SchedulerOpts wires a [Scheduler] to its collaborators.
type SchedulerOpts struct {
	Registry   *registry.Registry
	Service    services.Service
	Dispatcher dispatch.Dispatcher
	Playlists  reconcile.PlaylistStore
	Logger     *log.Logger
	Tick       time.Duration // base clock period, one second when zero
}

func NewScheduler(opts SchedulerOpts) *Scheduler {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	tick := opts.Tick
	if tick <= 0 {
		tick = time.Second
	}

	return &Scheduler{
		registry:   opts.Registry,
		client:     services.NewAsyncClient(opts.Service, opts.Dispatcher),
		dispatcher: opts.Dispatcher,
		reconciler: reconcile.New(opts.Playlists, shared.WithLogger(logger, "component", "reconcile")),
		playlists:  opts.Playlists,
		logger:     logger,
		tick:       tick,
		observers:  make(map[Handle]Observer),
		ctx:        context.Background(),
	}
}

// Start sizes the runtime state, starts the base clock when syncing is enabled and at
// least one job exists, and queues a startup sync of every enabled job.
func (s *Scheduler) Start(ctx context.Context) {
	s.lifecycleMu.Lock()
	s.ctx = ctx
	s.started = true
	s.lifecycleMu.Unlock()

	count := s.registry.Count()
	s.resize(count)

	if s.registry.Enabled() && count > 0 {
		s.startTicker(ctx)
		s.dispatcher.Dispatch(s.SyncAll)
	}

	s.logger.Infof("%d sync job(s) configured", count)
}

// Stop halts the base clock. Pipelines already in flight run to completion.
func (s *Scheduler) Stop() {
	s.logger.Info("shutting down")

	s.lifecycleMu.Lock()
	cancel, done := s.stopTicker, s.tickerDone
	s.stopTicker, s.tickerDone = nil, nil
	s.started = false
	s.lifecycleMu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Wait blocks until every request issued by a pipeline has been handed to the dispatcher.
func (s *Scheduler) Wait() {
	s.client.Wait()
}

// ReloadConfig resizes the runtime state after the registry changed and starts the base
// clock if it is now needed.
func (s *Scheduler) ReloadConfig() {
	count := s.registry.Count()
	s.resize(count)

	s.lifecycleMu.Lock()
	idle := s.started && s.stopTicker == nil
	ctx := s.ctx
	s.lifecycleMu.Unlock()

	if idle && s.registry.Enabled() && count > 0 {
		s.startTicker(ctx)
	}
}

// SyncNow starts the pipeline for job i unless it is already running.
// Must be called on the dispatcher goroutine.
func (s *Scheduler) SyncNow(i int) {
	if s.slots() < s.registry.Count() {
		s.ReloadConfig()
	}
	if i < 0 || i >= s.registry.Count() || i >= s.slots() || s.IsSyncing(i) {
		return
	}
	s.begin(i)
}

// SyncAll starts the pipeline for every enabled job that is not already running.
// Must be called on the dispatcher goroutine.
func (s *Scheduler) SyncAll() {
	if s.slots() < s.registry.Count() {
		s.ReloadConfig()
	}
	for i, job := range s.registry.Jobs() {
		if job.Enabled && i < s.slots() && !s.IsSyncing(i) {
			s.begin(i)
		}
	}
}

// IsSyncing reports whether job i has a pipeline in flight.
func (s *Scheduler) IsSyncing(i int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return i >= 0 && i < len(s.inflight) && s.inflight[i] != nil
}

// State returns the pipeline stage of job i.
func (s *Scheduler) State(i int) JobState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.states) {
		return Idle
	}
	return s.states[i]
}

// Ticks returns the number of base clock ticks processed so far.
func (s *Scheduler) Ticks() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ticks
}

// Subscribe registers o for notifications and returns a handle for [Scheduler.Unsubscribe].
func (s *Scheduler) Subscribe(o Observer) Handle {
	h := Handle(uuid.New())
	s.observersMu.Lock()
	s.observers[h] = o
	s.observersMu.Unlock()
	return h
}

func (s *Scheduler) Unsubscribe(h Handle) {
	s.observersMu.Lock()
	delete(s.observers, h)
	s.observersMu.Unlock()
}

func (s *Scheduler) startTicker(ctx context.Context) {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	if s.stopTicker != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.stopTicker, s.tickerDone = cancel, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.tick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.dispatcher.Dispatch(s.onTick)
			}
		}
	}()
}

// onTick advances the tick counter and starts every job whose interval divides it.
func (s *Scheduler) onTick() {
	s.mu.Lock()
	s.ticks++
	tick := s.ticks
	s.mu.Unlock()

	if !s.registry.Enabled() {
		return
	}

	for i, job := range s.registry.Jobs() {
		if !job.Enabled || job.PollIntervalSeconds <= 0 || i >= s.slots() || s.IsSyncing(i) {
			continue
		}
		if tick%uint64(job.PollIntervalSeconds) == 0 {
			s.begin(i)
		}
	}
}

func (s *Scheduler) resize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.inflight) == n {
		return
	}

	inflight := make([]*run, n)
	states := make([]JobState, n)
	copy(inflight, s.inflight)
	copy(states, s.states)
	s.inflight, s.states = inflight, states
}

func (s *Scheduler) slots() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.inflight)
}

func (s *Scheduler) requestContext() context.Context {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	return s.ctx
}

// snapshot copies the observer set so callbacks may subscribe or unsubscribe.
func (s *Scheduler) snapshot() []Observer {
	s.observersMu.RLock()
	defer s.observersMu.RUnlock()
	observers := make([]Observer, 0, len(s.observers))
	for _, o := range s.observers {
		observers = append(observers, o)
	}
	return observers
}

func (s *Scheduler) notifyProgress(i int, status string, percent int) {
	for _, o := range s.snapshot() {
		o.OnSyncProgress(i, status, percent)
	}
}

func (s *Scheduler) notifyComplete(i int, status string) {
	for _, o := range s.snapshot() {
		o.OnSyncComplete(i, status)
	}
}

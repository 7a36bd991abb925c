package tasks

import (
	"bytes"
	"context"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/nsync/internal/dispatch"
	"github.com/desertthunder/nsync/internal/models"
	"github.com/desertthunder/nsync/internal/registry"
	"github.com/desertthunder/nsync/internal/repositories"
	"github.com/desertthunder/nsync/internal/services"
	"github.com/desertthunder/nsync/internal/shared"
	tu "github.com/desertthunder/nsync/internal/testing"
)

type harness struct {
	t      *testing.T
	srv    *tu.FakeServer
	reg    *registry.Registry
	store  *repositories.LocalPlaylistRepository
	loop   *dispatch.Loop
	sched  *Scheduler
	events chan ProgressUpdate
	logs   *lockedBuffer
}

// lockedBuffer collects scheduler log output written from the dispatch goroutine.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	reg, err := registry.New(db, models.Settings{Enabled: true, DefaultInterval: 60})
	if err != nil {
		t.Fatalf("failed to load registry: %v", err)
	}

	loop := dispatch.NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	t.Cleanup(cancel)

	store := repositories.NewLocalPlaylistRepository(db)
	h := &harness{
		t:      t,
		srv:    tu.NewFakeServer(t),
		reg:    reg,
		store:  store,
		loop:   loop,
		events: make(chan ProgressUpdate, 256),
		logs:   &lockedBuffer{},
	}
	h.sched = NewScheduler(SchedulerOpts{
		Registry:   reg,
		Service:    services.NewClient(services.ClientOpts{}),
		Dispatcher: loop,
		Playlists:  store,
		Logger:     log.New(h.logs),
		Tick:       time.Hour,
	})
	h.sched.Subscribe(NewChannelObserver(h.events))
	return h
}

func (h *harness) addJob(endpoint, target string, interval int, mutate ...func(*models.SyncJob)) int {
	h.t.Helper()
	job := models.NewSyncJob(0, h.srv.URL, endpoint, target, interval)
	for _, fn := range mutate {
		fn(job)
	}
	i, err := h.reg.Add(job)
	if err != nil {
		h.t.Fatalf("failed to add job: %v", err)
	}
	h.sched.ReloadConfig()
	return i
}

func (h *harness) seedPlaylist(name string, entries ...string) *models.LocalPlaylist {
	h.t.Helper()
	playlist := models.NewLocalPlaylist(0, name)
	if err := h.store.Create(playlist); err != nil {
		h.t.Fatalf("failed to create playlist: %v", err)
	}
	if err := h.store.AddEntries(playlist.ID(), entries); err != nil {
		h.t.Fatalf("failed to seed entries: %v", err)
	}
	return playlist
}

// do runs fn on the dispatcher goroutine and waits for it, and everything queued before it, to finish.
func (h *harness) do(fn func()) {
	h.t.Helper()
	done := make(chan struct{})
	h.loop.Dispatch(func() {
		fn()
		close(done)
	})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		h.t.Fatal("dispatcher did not run queued function")
	}
}

// settle waits for in-flight requests to deliver their results and for the dispatcher to drain.
func (h *harness) settle() {
	h.t.Helper()
	for range 8 {
		h.sched.Wait()
		h.do(func() {})
	}
}

func (h *harness) waitComplete(job int) ProgressUpdate {
	h.t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case u := <-h.events:
			if u.Done && u.Job == job {
				h.do(func() {})
				return u
			}
		case <-timeout:
			h.t.Fatalf("job %d did not complete", job)
			return ProgressUpdate{}
		}
	}
}

func (h *harness) job(i int) *models.SyncJob {
	h.t.Helper()
	job, err := h.reg.Job(i)
	if err != nil {
		h.t.Fatalf("failed to get job %d: %v", i, err)
	}
	return job
}

func (h *harness) entries(name string) []string {
	h.t.Helper()
	playlist, err := h.store.GetByName(name)
	if err != nil {
		h.t.Fatalf("failed to find playlist %s: %v", name, err)
	}
	entries, err := h.store.Entries(playlist.ID())
	if err != nil {
		h.t.Fatalf("failed to read entries: %v", err)
	}
	return entries
}

func TestPipeline(t *testing.T) {
	t.Run("downloads and reconciles a new playlist", func(t *testing.T) {
		h := newHarness(t)
		h.srv.SetPlaylist("music", "h1", "#EXTM3U\n/stream/a.flac\n/stream/b.flac\n")
		i := h.addJob("music", "Music", 60)

		h.do(func() { h.sched.SyncNow(i) })
		u := h.waitComplete(i)

		if u.Message != StatusOK {
			t.Fatalf("expected %q, got %q", StatusOK, u.Message)
		}
		want := []string{h.srv.URL + "/stream/a.flac", h.srv.URL + "/stream/b.flac"}
		if got := h.entries("Music"); !reflect.DeepEqual(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
		if job := h.job(i); job.LastHash != "h1" || job.LastError != "" {
			t.Errorf("unexpected job state %+v", job)
		}
		if h.sched.IsSyncing(i) || h.sched.State(i) != Idle {
			t.Error("job should be idle after completion")
		}
	})

	t.Run("progress checkpoints in order", func(t *testing.T) {
		h := newHarness(t)
		h.srv.SetPlaylist("music", "h1", "/stream/a.flac\n")
		i := h.addJob("music", "Music", 60)

		var mu sync.Mutex
		var statuses []string
		var percents []int
		h.sched.Subscribe(ObserverFuncs{
			Progress: func(job int, status string, percent int) {
				mu.Lock()
				defer mu.Unlock()
				statuses = append(statuses, status)
				percents = append(percents, percent)
			},
			Complete: func(job int, status string) {
				mu.Lock()
				defer mu.Unlock()
				statuses = append(statuses, status)
			},
		})

		h.do(func() { h.sched.SyncNow(i) })
		h.waitComplete(i)

		mu.Lock()
		defer mu.Unlock()
		wantStatuses := []string{"Triggering sync...", "Checking...", "Downloading...", "Updating Playlist...", "OK"}
		if !reflect.DeepEqual(statuses, wantStatuses) {
			t.Errorf("expected %v, got %v", wantStatuses, statuses)
		}
		if !reflect.DeepEqual(percents, []int{10, 30, 50, 80}) {
			t.Errorf("unexpected percents %v", percents)
		}
	})

	t.Run("matching hash skips download", func(t *testing.T) {
		h := newHarness(t)
		h.srv.SetPlaylist("music", "abc", "/stream/a.flac\n")
		h.seedPlaylist("Music", "x")
		i := h.addJob("music", "Music", 60, func(j *models.SyncJob) { j.LastHash = "abc" })

		h.do(func() { h.sched.SyncNow(i) })
		u := h.waitComplete(i)

		if u.Message != StatusNoChange {
			t.Errorf("expected %q, got %q", StatusNoChange, u.Message)
		}
		if n := h.srv.Requests("/playlist/music"); n != 0 {
			t.Errorf("expected no download, got %d requests", n)
		}
	})

	t.Run("no change clears last error", func(t *testing.T) {
		h := newHarness(t)
		h.srv.SetPlaylist("music", "abc", "/stream/a.flac\n")
		h.seedPlaylist("Music", "x")
		i := h.addJob("music", "Music", 60, func(j *models.SyncJob) {
			j.LastHash = "abc"
			j.LastError = "HTTP 500"
		})

		h.do(func() { h.sched.SyncNow(i) })
		h.waitComplete(i)

		if job := h.job(i); job.LastError != "" {
			t.Errorf("expected last error cleared, got %q", job.LastError)
		}
	})

	t.Run("missing playlist forces download", func(t *testing.T) {
		h := newHarness(t)
		h.srv.SetPlaylist("music", "abc", "/stream/a.flac\n")
		i := h.addJob("music", "Music", 60, func(j *models.SyncJob) { j.LastHash = "abc" })

		h.do(func() { h.sched.SyncNow(i) })
		u := h.waitComplete(i)

		if u.Message != StatusOK {
			t.Errorf("expected %q, got %q", StatusOK, u.Message)
		}
		if n := h.srv.Requests("/playlist/music"); n != 1 {
			t.Errorf("expected one download, got %d", n)
		}
		if got := h.entries("Music"); len(got) != 1 {
			t.Errorf("expected playlist to be created with one entry, got %v", got)
		}
	})

	t.Run("hash failure records error", func(t *testing.T) {
		h := newHarness(t)
		h.srv.SetPlaylist("music", "abc", "/stream/a.flac\n")
		h.srv.Fail("/hash/music", http.StatusInternalServerError)
		i := h.addJob("music", "Music", 60)

		h.do(func() { h.sched.SyncNow(i) })
		u := h.waitComplete(i)

		if u.Message != StatusError || !u.Failed() {
			t.Errorf("expected %q, got %q", StatusError, u.Message)
		}
		if job := h.job(i); job.LastError != "HTTP 500" || job.LastHash != "" {
			t.Errorf("unexpected job state %+v", job)
		}
		if h.srv.Requests("/playlist/music") != 0 {
			t.Error("download should not be attempted after a failed hash check")
		}
		if h.sched.IsSyncing(i) {
			t.Error("busy flag should be cleared after failure")
		}
	})

	t.Run("download failure records error", func(t *testing.T) {
		h := newHarness(t)
		h.srv.SetPlaylist("music", "abc", "/stream/a.flac\n")
		h.srv.Fail("/playlist/music", http.StatusNotFound)
		i := h.addJob("music", "Music", 60)

		h.do(func() { h.sched.SyncNow(i) })
		u := h.waitComplete(i)

		if u.Message != StatusError {
			t.Errorf("expected %q, got %q", StatusError, u.Message)
		}
		if job := h.job(i); job.LastError != "HTTP 404" || job.LastHash != "" {
			t.Errorf("unexpected job state %+v", job)
		}
	})

	t.Run("trigger failure does not gate the pipeline", func(t *testing.T) {
		h := newHarness(t)
		h.srv.SetPlaylist("music", "abc", "/stream/a.flac\n")
		h.srv.Fail("/sync/music", http.StatusServiceUnavailable)
		i := h.addJob("music", "Music", 60)

		h.do(func() { h.sched.SyncNow(i) })
		u := h.waitComplete(i)

		if u.Message != StatusOK {
			t.Errorf("expected %q, got %q", StatusOK, u.Message)
		}
		if h.srv.Requests("/sync/music") != 1 {
			t.Errorf("expected one trigger request, got %d", h.srv.Requests("/sync/music"))
		}
	})

	t.Run("empty manifest keeps playlist and hash", func(t *testing.T) {
		h := newHarness(t)
		h.srv.SetPlaylist("music", "new", "#EXTM3U\n\n")
		h.seedPlaylist("Music", "A", "B")
		i := h.addJob("music", "Music", 60, func(j *models.SyncJob) {
			j.LastHash = "old"
			j.LastError = "status 500"
		})

		h.do(func() { h.sched.SyncNow(i) })
		u := h.waitComplete(i)

		if u.Message != StatusNoChange {
			t.Errorf("expected %q, got %q", StatusNoChange, u.Message)
		}
		if got := h.entries("Music"); !reflect.DeepEqual(got, []string{"A", "B"}) {
			t.Errorf("playlist should be untouched, got %v", got)
		}
		job := h.job(i)
		if job.LastHash != "old" {
			t.Errorf("hash should not advance, got %q", job.LastHash)
		}
		if job.LastError != "" {
			t.Errorf("expected last error cleared, got %q", job.LastError)
		}
	})

	t.Run("reconciliation is minimal", func(t *testing.T) {
		h := newHarness(t)
		h.srv.SetPlaylist("music", "h2", "B\nC\nD\n")
		h.seedPlaylist("Music", "A", "B", "C")
		i := h.addJob("music", "Music", 60, func(j *models.SyncJob) { j.LastHash = "h1" })

		h.do(func() { h.sched.SyncNow(i) })
		h.waitComplete(i)

		if got := h.entries("Music"); !reflect.DeepEqual(got, []string{"B", "C", "D"}) {
			t.Errorf("expected [B C D], got %v", got)
		}
		if !strings.Contains(h.logs.String(), "Updated playlist 'Music'") {
			t.Errorf("expected update log, got:\n%s", h.logs.String())
		}
	})

	t.Run("new hash with identical entries advances hash only", func(t *testing.T) {
		h := newHarness(t)
		h.srv.SetPlaylist("music", "h2", "A\nB\n")
		h.seedPlaylist("Music", "A", "B")
		i := h.addJob("music", "Music", 60, func(j *models.SyncJob) { j.LastHash = "h1" })

		h.do(func() { h.sched.SyncNow(i) })
		u := h.waitComplete(i)

		if u.Message != StatusOK {
			t.Errorf("expected %q, got %q", StatusOK, u.Message)
		}
		if job := h.job(i); job.LastHash != "h2" {
			t.Errorf("expected hash h2, got %q", job.LastHash)
		}
		logs := h.logs.String()
		if !strings.Contains(logs, "Playlist 'Music' already matches the server") || strings.Contains(logs, "Updated playlist") {
			t.Errorf("unexpected logs:\n%s", logs)
		}
	})
}

func TestBusyGuard(t *testing.T) {
	h := newHarness(t)
	h.srv.SetPlaylist("music", "abc", "/stream/a.flac\n")
	i := h.addJob("music", "Music", 60)

	release := h.srv.Hold()
	defer release()

	h.do(func() {
		h.sched.SyncNow(i)
		h.sched.SyncNow(i)
	})
	if !h.sched.IsSyncing(i) || h.sched.State(i) != Triggering {
		t.Errorf("expected job to be busy triggering, got %s", h.sched.State(i))
	}
	h.do(func() { h.sched.SyncAll() })

	release()
	h.waitComplete(i)
	h.settle()

	if n := h.srv.Requests("/sync/music"); n != 1 {
		t.Errorf("expected exactly one pipeline, got %d trigger requests", n)
	}
	if n := h.srv.Requests("/hash/music"); n != 1 {
		t.Errorf("expected exactly one pipeline, got %d hash requests", n)
	}
}

func TestTick(t *testing.T) {
	t.Run("job is due when interval divides tick", func(t *testing.T) {
		h := newHarness(t)
		h.srv.SetPlaylist("music", "abc", "/stream/a.flac\n")
		i := h.addJob("music", "Music", 10)

		for range 9 {
			h.do(h.sched.onTick)
		}
		h.settle()
		if n := h.srv.TotalRequests(); n != 0 {
			t.Fatalf("expected no requests before the 10th tick, got %d", n)
		}

		h.do(h.sched.onTick)
		h.waitComplete(i)
		if h.sched.Ticks() != 10 {
			t.Errorf("expected 10 ticks, got %d", h.sched.Ticks())
		}
	})

	t.Run("disabled job never syncs", func(t *testing.T) {
		h := newHarness(t)
		h.srv.SetPlaylist("music", "abc", "/stream/a.flac\n")
		h.addJob("music", "Music", 10, func(j *models.SyncJob) { j.Enabled = false })

		for range 30 {
			h.do(h.sched.onTick)
		}
		h.do(func() { h.sched.SyncAll() })
		h.settle()

		if n := h.srv.TotalRequests(); n != 0 {
			t.Errorf("expected no requests for a disabled job, got %d", n)
		}
	})

	t.Run("global disable stops ticks but counts them", func(t *testing.T) {
		h := newHarness(t)
		h.srv.SetPlaylist("music", "abc", "/stream/a.flac\n")
		h.addJob("music", "Music", 10)
		if err := h.reg.SetEnabled(false); err != nil {
			t.Fatalf("SetEnabled: %v", err)
		}

		for range 20 {
			h.do(h.sched.onTick)
		}
		h.settle()

		if n := h.srv.TotalRequests(); n != 0 {
			t.Errorf("expected no requests while disabled, got %d", n)
		}
		if h.sched.Ticks() != 20 {
			t.Errorf("expected 20 ticks, got %d", h.sched.Ticks())
		}
	})

	t.Run("interval change applies on next tick", func(t *testing.T) {
		h := newHarness(t)
		h.srv.SetPlaylist("music", "abc", "/stream/a.flac\n")
		i := h.addJob("music", "Music", 60)

		for range 11 {
			h.do(h.sched.onTick)
		}
		if err := h.reg.Save(i, func(j *models.SyncJob) { j.PollIntervalSeconds = 12 }); err != nil {
			t.Fatalf("Save: %v", err)
		}
		h.do(h.sched.onTick)
		h.waitComplete(i)
	})
}

func TestRemovedJobIsAbandoned(t *testing.T) {
	h := newHarness(t)
	h.srv.SetPlaylist("music", "abc", "/stream/a.flac\n")
	i := h.addJob("music", "Music", 60)

	release := h.srv.Hold()
	defer release()

	h.do(func() { h.sched.SyncNow(i) })
	if err := h.reg.Remove(i); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	release()
	h.settle()

	for len(h.events) > 0 {
		if u := <-h.events; u.Done {
			t.Fatalf("abandoned pipeline should not complete, got %+v", u)
		}
	}
	if h.sched.IsSyncing(i) {
		t.Error("busy flag should be cleared for the abandoned job")
	}

	h.do(h.sched.ReloadConfig)
	if h.sched.IsSyncing(i) {
		t.Error("removed slot should not be busy")
	}
}

func TestMovedJobIsAbandoned(t *testing.T) {
	h := newHarness(t)
	h.srv.SetPlaylist("a", "h", "/stream/a.flac\n")
	h.srv.SetPlaylist("b", "h", "/stream/b.flac\n")
	h.addJob("a", "A", 60)
	second := h.addJob("b", "B", 60)

	release := h.srv.Hold()
	defer release()

	h.do(func() { h.sched.SyncNow(second) })
	if err := h.reg.Remove(0); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	h.do(h.sched.ReloadConfig)

	release()
	h.settle()

	if _, err := h.store.GetByName("B"); err == nil {
		t.Error("result for a job that moved index should be discarded")
	}
	if h.sched.IsSyncing(0) {
		t.Error("slot 0 should not stay busy")
	}
}

func TestSubscriptions(t *testing.T) {
	h := newHarness(t)
	h.srv.SetPlaylist("music", "abc", "/stream/a.flac\n")
	i := h.addJob("music", "Music", 60)

	var mu sync.Mutex
	calls := 0
	handle := h.sched.Subscribe(ObserverFuncs{Complete: func(int, string) {
		mu.Lock()
		calls++
		mu.Unlock()
	}})
	if handle.String() == "" {
		t.Error("expected a printable handle")
	}

	h.do(func() { h.sched.SyncNow(i) })
	h.waitComplete(i)

	h.sched.Unsubscribe(handle)
	h.do(func() { h.sched.SyncNow(i) })
	h.waitComplete(i)

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("expected one notification before unsubscribing, got %d", calls)
	}
}

func TestStart(t *testing.T) {
	t.Run("runs startup sync", func(t *testing.T) {
		h := newHarness(t)
		h.srv.SetPlaylist("music", "abc", "/stream/a.flac\n")
		i := h.addJob("music", "Music", 60)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		h.sched.Start(ctx)
		defer h.sched.Stop()

		if u := h.waitComplete(i); u.Message != StatusOK {
			t.Errorf("expected startup sync to succeed, got %q", u.Message)
		}
	})

	t.Run("disabled globally skips startup sync", func(t *testing.T) {
		h := newHarness(t)
		h.srv.SetPlaylist("music", "abc", "/stream/a.flac\n")
		h.addJob("music", "Music", 60)
		h.reg.SetEnabled(false)

		h.sched.Start(context.Background())
		h.settle()
		h.sched.Stop()

		if n := h.srv.TotalRequests(); n != 0 {
			t.Errorf("expected no requests, got %d", n)
		}
	})

	t.Run("ticker drives due jobs", func(t *testing.T) {
		h := newHarness(t)
		h.srv.SetPlaylist("music", "abc", "/stream/a.flac\n")
		h.addJob("music", "Music", 10)
		h.sched.tick = time.Millisecond

		h.sched.Start(context.Background())
		deadline := time.After(3 * time.Second)
		for h.srv.Requests("/hash/music") < 2 {
			select {
			case <-deadline:
				t.Fatalf("expected startup and tick syncs, got %d hash requests", h.srv.Requests("/hash/music"))
			case <-time.After(5 * time.Millisecond):
			}
		}
		h.sched.Stop()
		h.settle()

		if h.sched.Ticks() < 10 {
			t.Errorf("expected at least 10 ticks, got %d", h.sched.Ticks())
		}
	})
}

func TestChannelObserver(t *testing.T) {
	updates := make(chan ProgressUpdate, 1)
	o := NewChannelObserver(updates)

	o.OnSyncProgress(2, "Downloading...", 50)
	o.OnSyncComplete(2, StatusOK)

	u := <-updates
	if u.Job != 2 || u.State != Downloading || u.Percent != 50 || u.Done {
		t.Errorf("unexpected update %+v", u)
	}
	select {
	case extra := <-updates:
		t.Errorf("full channel should drop updates, got %+v", extra)
	default:
	}

	NewChannelObserver(nil).OnSyncComplete(0, StatusOK)
}

func TestJobStateString(t *testing.T) {
	for state, want := range map[JobState]string{
		Idle:         "idle",
		Triggering:   "triggering",
		CheckingHash: "checking_hash",
		Downloading:  "downloading",
		Reconciling:  "reconciling",
		JobState(99): "",
	} {
		if got := state.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", state, got, want)
		}
	}
}

func TestCheckServers(t *testing.T) {
	up := tu.NewFakeServer(t)
	up.SetPlaylist("music", "abc", "")
	down := tu.NewFakeServer(t)
	down.Fail("/status", http.StatusBadGateway)

	progress := make(chan ProgressUpdate, 4)
	results := CheckServers(context.Background(), progress, services.NewClient(services.ClientOpts{}),
		[]string{up.URL, down.URL}, CheckOpts{NumWorkers: 2, RateLimit: 100})

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Err != nil || !reflect.DeepEqual(results[0].Playlists, []string{"music"}) {
		t.Errorf("unexpected result for healthy server %+v", results[0])
	}
	if results[1].Err == nil || results[1].ServerURL != down.URL {
		t.Errorf("expected error for failing server, got %+v", results[1])
	}
	if len(progress) != 2 {
		t.Errorf("expected one progress update per server, got %d", len(progress))
	}
}

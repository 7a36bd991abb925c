// Package dispatch runs callbacks one at a time on a single goroutine.
//
// The scheduler posts every state transition through a [Dispatcher] so that job
// state is only ever mutated from one goroutine, while network I/O completes elsewhere.
package dispatch

import (
	"context"
	"sync"
)

// Dispatcher queues fn to run on the dispatcher's goroutine.
type Dispatcher interface {
	Dispatch(fn func())
}

// Loop is an unbounded FIFO [Dispatcher] drained by [Loop.Run].
//
// Dispatch never blocks, so a queued function may dispatch more work.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	signal  chan struct{}
	done    chan struct{}
	closing sync.Once
}

func NewLoop() *Loop {
	return &Loop{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Dispatch enqueues fn. Functions dispatched after Close are dropped.
func (l *Loop) Dispatch(fn func()) {
	select {
	case <-l.done:
		return
	default:
	}

	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.signal <- struct{}{}:
	default:
	}
}

// Run drains the queue until ctx is cancelled or Close is called.
// Functions queued at that point are discarded.
func (l *Loop) Run(ctx context.Context) {
	for {
		for _, fn := range l.take() {
			select {
			case <-ctx.Done():
				return
			case <-l.done:
				return
			default:
			}
			fn()
		}

		select {
		case <-ctx.Done():
			return
		case <-l.done:
			return
		case <-l.signal:
		}
	}
}

// Close stops Run and rejects further work.
func (l *Loop) Close() {
	l.closing.Do(func() { close(l.done) })
}

func (l *Loop) pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

func (l *Loop) take() []func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	batch := l.queue
	l.queue = nil
	return batch
}

package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestLoop(t *testing.T) {
	t.Run("runs in FIFO order", func(t *testing.T) {
		loop := NewLoop()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var got []int
		done := make(chan struct{})
		for i := range 5 {
			loop.Dispatch(func() { got = append(got, i) })
		}
		loop.Dispatch(func() { close(done) })

		go loop.Run(ctx)

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("queue was not drained")
		}

		for i, v := range got {
			if v != i {
				t.Fatalf("expected FIFO order, got %v", got)
			}
		}
	})

	t.Run("nested dispatch does not block", func(t *testing.T) {
		loop := NewLoop()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go loop.Run(ctx)

		done := make(chan struct{})
		loop.Dispatch(func() {
			for range 100 {
				loop.Dispatch(func() {})
			}
			loop.Dispatch(func() { close(done) })
		})

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("nested dispatch deadlocked")
		}
	})

	t.Run("functions run on one goroutine at a time", func(t *testing.T) {
		loop := NewLoop()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go loop.Run(ctx)

		var wg sync.WaitGroup
		counter := 0
		for range 50 {
			wg.Add(1)
			go loop.Dispatch(func() {
				counter++
				wg.Done()
			})
		}
		wg.Wait()

		result := make(chan int)
		loop.Dispatch(func() { result <- counter })
		if got := <-result; got != 50 {
			t.Errorf("expected 50, got %d", got)
		}
	})

	t.Run("Close stops Run and drops new work", func(t *testing.T) {
		loop := NewLoop()
		stopped := make(chan struct{})
		go func() {
			loop.Run(context.Background())
			close(stopped)
		}()

		loop.Close()
		loop.Close()

		select {
		case <-stopped:
		case <-time.After(time.Second):
			t.Fatal("Run did not return after Close")
		}

		loop.Dispatch(func() {})
		if loop.pending() != 0 {
			t.Error("dispatch after Close should be dropped")
		}
	})
}

package services

import (
	"context"
	"sync"

	"github.com/desertthunder/nsync/internal/dispatch"
)

// AsyncClient issues [Service] requests on their own goroutines and delivers each
// result through a [dispatch.Dispatcher].
//
// Callbacks therefore always run on the dispatcher's goroutine, never on the one
// that performed the I/O. Requests are never cancelled once issued.
type AsyncClient struct {
	svc        Service
	dispatcher dispatch.Dispatcher
	wg         sync.WaitGroup
}

func NewAsyncClient(svc Service, d dispatch.Dispatcher) *AsyncClient {
	return &AsyncClient{svc: svc, dispatcher: d}
}

func (a *AsyncClient) Hash(ctx context.Context, serverURL, name string, done func(string, error)) {
	goAsync(a, func() (string, error) { return a.svc.Hash(ctx, serverURL, name) }, done)
}

func (a *AsyncClient) Playlist(ctx context.Context, serverURL, name string, done func(string, error)) {
	goAsync(a, func() (string, error) { return a.svc.Playlist(ctx, serverURL, name) }, done)
}

func (a *AsyncClient) Trigger(ctx context.Context, serverURL, name string, done func(error)) {
	goAsync(a,
		func() (struct{}, error) { return struct{}{}, a.svc.Trigger(ctx, serverURL, name) },
		func(_ struct{}, err error) { done(err) },
	)
}

// Wait blocks until every issued request has handed its result to the dispatcher.
func (a *AsyncClient) Wait() {
	a.wg.Wait()
}

func goAsync[T any](a *AsyncClient, call func() (T, error), done func(T, error)) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		v, err := call()
		a.dispatcher.Dispatch(func() { done(v, err) })
	}()
}

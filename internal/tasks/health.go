package tasks

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/desertthunder/nsync/internal/services"
)

// ServerCheck is the health of one playlist server.
type ServerCheck struct {
	ServerURL string
	Playlists []string // Published playlists, nil when the server is down
	Latency   time.Duration
	Err       error
}

// CheckOpts bounds the concurrency of [CheckServers].
type CheckOpts struct {
	NumWorkers int     // Concurrent workers (default: 4)
	RateLimit  float64 // Requests per second (default: 10)
}

// CheckServers checks /status and /list on every server with a small worker pool.
//
// Results are returned in the order of serverURLs. Progress is reported as one
// update per finished server; the Job field carries the server's index.
func CheckServers(ctx context.Context, progress chan<- ProgressUpdate, svc services.Service, serverURLs []string, opts CheckOpts) []ServerCheck {
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 4
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 10
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	results := make([]ServerCheck, len(serverURLs))
	work := make(chan int)

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				results[i] = checkServer(ctx, limiter, svc, serverURLs[i])
				status := StatusOK
				if results[i].Err != nil {
					status = StatusError
				}
				sendProgress(progress, ProgressUpdate{Job: i, Percent: 100, Message: status, Done: true})
			}
		}()
	}

	for i := range serverURLs {
		select {
		case <-ctx.Done():
			for j := i; j < len(serverURLs); j++ {
				results[j] = ServerCheck{ServerURL: serverURLs[j], Err: ctx.Err()}
			}
			close(work)
			wg.Wait()
			return results
		case work <- i:
		}
	}
	close(work)
	wg.Wait()

	return results
}

func checkServer(ctx context.Context, limiter *rate.Limiter, svc services.Service, serverURL string) ServerCheck {
	check := ServerCheck{ServerURL: serverURL}
	if err := limiter.Wait(ctx); err != nil {
		check.Err = err
		return check
	}

	start := time.Now()
	if err := svc.Status(ctx, serverURL); err != nil {
		check.Err = err
		return check
	}
	check.Latency = time.Since(start)

	playlists, err := svc.List(ctx, serverURL)
	if err != nil {
		check.Err = err
		return check
	}
	check.Playlists = playlists
	return check
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

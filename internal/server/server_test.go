package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/desertthunder/nsync/internal/models"
	"github.com/desertthunder/nsync/internal/tasks"
)

type fakeJobs struct {
	jobs    []*models.SyncJob
	enabled bool
}

func (f *fakeJobs) Jobs() []*models.SyncJob { return f.jobs }
func (f *fakeJobs) Enabled() bool           { return f.enabled }

type fakeState struct {
	busy  map[int]tasks.JobState
	ticks uint64
}

func (f *fakeState) IsSyncing(i int) bool { _, ok := f.busy[i]; return ok }
func (f *fakeState) State(i int) tasks.JobState {
	return f.busy[i]
}
func (f *fakeState) Ticks() uint64 { return f.ticks }

func newTestRouter(t *testing.T) (*BasicRouter, *StatusHandler) {
	t.Helper()

	a := models.NewSyncJob(0, "http://music.local:8080", "rock", "Rock", 60)
	a.SetID("job-a")
	a.LastHash = "abc"
	b := models.NewSyncJob(1, "http://music.local:8080", "jazz", "Jazz", 30)
	b.SetID("job-b")
	b.LastError = "HTTP 500"

	status := NewStatusHandler(
		&fakeJobs{jobs: []*models.SyncJob{a, b}, enabled: true},
		&fakeState{busy: map[int]tasks.JobState{1: tasks.Downloading}, ticks: 42},
	)

	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "nsync_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	return NewStatusRouter(status, reg, log.New(io.Discard)), status
}

func TestStatusRouter(t *testing.T) {
	t.Run("healthz", func(t *testing.T) {
		router, _ := newTestRouter(t)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var health Health
		if err := json.NewDecoder(rec.Body).Decode(&health); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if health.Status != "ok" || !health.Enabled || health.Jobs != 2 || health.Ticks != 42 {
			t.Errorf("unexpected health %+v", health)
		}
	})

	t.Run("jobs", func(t *testing.T) {
		router, status := newTestRouter(t)
		status.OnSyncComplete(0, tasks.StatusNoChange)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}

		var jobs []JobStatus
		if err := json.NewDecoder(rec.Body).Decode(&jobs); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(jobs) != 2 {
			t.Fatalf("expected 2 jobs, got %d", len(jobs))
		}

		if jobs[0].ID != "job-a" || jobs[0].Status != "OK" || jobs[0].Syncing || jobs[0].State != "idle" {
			t.Errorf("unexpected first job %+v", jobs[0])
		}
		if jobs[0].LastResult != tasks.StatusNoChange {
			t.Errorf("expected last result %q, got %q", tasks.StatusNoChange, jobs[0].LastResult)
		}
		if jobs[1].Status != "Error: HTTP 500" || !jobs[1].Syncing || jobs[1].State != "downloading" {
			t.Errorf("unexpected second job %+v", jobs[1])
		}
	})

	t.Run("metrics", func(t *testing.T) {
		router, _ := newTestRouter(t)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "nsync_test_total 1") {
			t.Errorf("metrics output missing counter:\n%s", rec.Body.String())
		}
	})

	t.Run("method not allowed", func(t *testing.T) {
		router, _ := newTestRouter(t)
		for _, path := range []string{"/jobs", "/metrics"} {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("%s: expected 405, got %d", path, rec.Code)
			}
			if rec.Header().Get("Allow") != http.MethodGet {
				t.Errorf("%s: expected Allow header", path)
			}
		}
	})

	t.Run("unknown path", func(t *testing.T) {
		router, _ := newTestRouter(t)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("applied in registration order", func(t *testing.T) {
		var order []string
		tag := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter()
		router.Use(tag("first"), tag("second"))
		router.Handle(http.MethodGet, "/", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			order = append(order, "handler")
		}))
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		if strings.Join(order, ",") != "first,second,handler" {
			t.Errorf("unexpected order %v", order)
		}
	})

	t.Run("recover", func(t *testing.T) {
		router := NewBasicRouter()
		router.Use(Recover(log.New(io.Discard)))
		router.Handle(http.MethodGet, "/boom", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})

	t.Run("logging records status", func(t *testing.T) {
		var buf strings.Builder
		logger := log.New(&buf)
		logger.SetLevel(log.DebugLevel)

		router := NewBasicRouter()
		router.Use(Logging(logger))
		router.Handle(http.MethodGet, "/teapot", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/teapot", nil))

		if !strings.Contains(buf.String(), "status=418") {
			t.Errorf("expected status in log line, got %q", buf.String())
		}
	})
}

func TestServer(t *testing.T) {
	router, _ := newTestRouter(t)
	srv := New("127.0.0.1:0", router, log.New(io.Discard))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	srv.Shutdown()
	if _, err := http.Get("http://" + srv.Addr() + "/healthz"); err == nil {
		t.Error("expected request to fail after shutdown")
	}
}

package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/desertthunder/nsync/internal/models"
	"github.com/desertthunder/nsync/internal/tasks"
)

// JobSource is the read side of the job registry.
type JobSource interface {
	Jobs() []*models.SyncJob
	Enabled() bool
}

// SyncState is the read side of the scheduler.
type SyncState interface {
	IsSyncing(i int) bool
	State(i int) tasks.JobState
	Ticks() uint64
}

// Health is the /healthz response body.
type Health struct {
	Status  string `json:"status"`
	Enabled bool   `json:"enabled"`
	Jobs    int    `json:"jobs"`
	Ticks   uint64 `json:"ticks"`
}

// JobStatus is one element of the /jobs response body.
type JobStatus struct {
	Index          int    `json:"index"`
	ID             string `json:"id"`
	ServerURL      string `json:"server_url"`
	Endpoint       string `json:"playlist_endpoint"`
	TargetPlaylist string `json:"target_playlist"`
	Enabled        bool   `json:"enabled"`
	Interval       int    `json:"poll_interval_seconds"`
	LastHash       string `json:"last_hash"`
	LastError      string `json:"last_error,omitempty"`
	Status         string `json:"status"`
	Syncing        bool   `json:"syncing"`
	State          string `json:"state"`
	LastResult     string `json:"last_result,omitempty"`
}

// StatusHandler serves /healthz and /jobs. Register it with the scheduler to fill in
// [JobStatus.LastResult].
type StatusHandler struct {
	jobs  JobSource
	state SyncState

	mu      sync.RWMutex
	results map[int]string
}

func NewStatusHandler(jobs JobSource, state SyncState) *StatusHandler {
	return &StatusHandler{jobs: jobs, state: state, results: make(map[int]string)}
}

func (h *StatusHandler) Routes() []string {
	return []string{"/healthz", "/jobs"}
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/healthz":
		writeJSON(w, http.StatusOK, Health{
			Status:  "ok",
			Enabled: h.jobs.Enabled(),
			Jobs:    len(h.jobs.Jobs()),
			Ticks:   h.state.Ticks(),
		})
	case "/jobs":
		writeJSON(w, http.StatusOK, h.snapshot())
	default:
		http.NotFound(w, r)
	}
}

func (h *StatusHandler) OnSyncProgress(int, string, int) {}

func (h *StatusHandler) OnSyncComplete(job int, status string) {
	h.mu.Lock()
	h.results[job] = status
	h.mu.Unlock()
}

func (h *StatusHandler) snapshot() []JobStatus {
	jobs := h.jobs.Jobs()
	out := make([]JobStatus, len(jobs))

	h.mu.RLock()
	defer h.mu.RUnlock()
	for i, job := range jobs {
		out[i] = JobStatus{
			Index:          i,
			ID:             job.ID(),
			ServerURL:      job.ServerURL,
			Endpoint:       job.PlaylistEndpoint,
			TargetPlaylist: job.TargetPlaylist,
			Enabled:        job.Enabled,
			Interval:       job.PollIntervalSeconds,
			LastHash:       job.LastHash,
			LastError:      job.LastError,
			Status:         job.Status(),
			Syncing:        h.state.IsSyncing(i),
			State:          h.state.State(i).String(),
			LastResult:     h.results[i],
		}
	}
	return out
}

// NewStatusRouter routes the status endpoints and gatherer's metrics at /metrics.
func NewStatusRouter(status *StatusHandler, gatherer prometheus.Gatherer, logger *log.Logger) *BasicRouter {
	router := NewBasicRouter()
	router.Use(Recover(logger), Logging(logger))
	router.Handler(status)
	router.Handle(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return router
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

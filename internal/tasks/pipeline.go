package tasks

import (
	"errors"
	"time"

	"github.com/desertthunder/nsync/internal/manifest"
	"github.com/desertthunder/nsync/internal/metrics"
	"github.com/desertthunder/nsync/internal/models"
	"github.com/desertthunder/nsync/internal/shared"
)

// run is one pipeline execution for one job.
type run struct {
	jobID   string
	started time.Time
	hash    string // token observed by the hash check
}

// stepResult is the outcome of the request issued by the stage a job is in.
type stepResult struct {
	body string
	err  error
}

// begin marks job i busy and starts its pipeline. Callers check the busy flag first.
func (s *Scheduler) begin(i int) {
	job, err := s.registry.Job(i)
	if err != nil {
		return
	}

	r := &run{jobID: job.ID(), started: time.Now()}

	s.mu.Lock()
	s.inflight[i] = r
	s.states[i] = Idle
	s.mu.Unlock()

	metrics.SyncsInFlight.Inc()
	s.advance(i, r, stepResult{})
}

// advance moves job i out of its current state using the result of that state's request.
// It runs on the dispatcher goroutine for every transition.
func (s *Scheduler) advance(i int, r *run, res stepResult) {
	job, ok := s.current(i, r)
	if !ok {
		s.abandon(i, r)
		return
	}

	ctx := s.requestContext()

	switch s.State(i) {
	case Idle:
		s.enter(i, r, Triggering)
		s.client.Trigger(ctx, job.ServerURL, job.PlaylistEndpoint, func(err error) {
			s.advance(i, r, stepResult{err: err})
		})

	case Triggering:
		if res.err != nil {
			s.logger.Debug("sync trigger failed, continuing", "playlist", job.PlaylistEndpoint, "err", res.err)
		}
		s.enter(i, r, CheckingHash)
		s.client.Hash(ctx, job.ServerURL, job.PlaylistEndpoint, func(hash string, err error) {
			s.advance(i, r, stepResult{body: hash, err: err})
		})

	case CheckingHash:
		if res.err != nil {
			s.logger.Errorf("Error checking %s: %v", job.PlaylistEndpoint, res.err)
			s.fail(i, r, job, res.err)
			return
		}

		r.hash = res.body
		if s.playlistExists(job.TargetPlaylist) && r.hash == job.LastHash {
			s.unchanged(i, r, job)
			return
		}

		s.enter(i, r, Downloading)
		s.client.Playlist(ctx, job.ServerURL, job.PlaylistEndpoint, func(body string, err error) {
			s.advance(i, r, stepResult{body: body, err: err})
		})

	case Downloading:
		if res.err != nil {
			s.logger.Errorf("Error downloading %s: %v", job.PlaylistEndpoint, res.err)
			s.fail(i, r, job, res.err)
			return
		}

		s.enter(i, r, Reconciling)
		s.reconcile(i, r, job, res.body)

	default:
		s.abandon(i, r)
	}
}

// current re-reads job i and confirms it is still the job r was started for and that r
// still owns the job's busy flag.
func (s *Scheduler) current(i int, r *run) (*models.SyncJob, bool) {
	s.mu.RLock()
	owned := i < len(s.inflight) && s.inflight[i] == r
	s.mu.RUnlock()

	if !owned || i >= s.registry.Count() {
		return nil, false
	}
	job, err := s.registry.Job(i)
	if err != nil || job.ID() != r.jobID {
		return nil, false
	}
	return job, true
}

func (s *Scheduler) reconcile(i int, r *run, job *models.SyncJob, body string) {
	entries := manifest.Parse(body, job.ServerURL)

	result, err := s.reconciler.Reconcile(job.TargetPlaylist, entries)
	if err != nil {
		s.logger.Errorf("Error updating %s: %v", job.TargetPlaylist, err)
		s.fail(i, r, job, err)
		return
	}
	if result.Skipped {
		s.logger.Warnf("Warning - playlist '%s' is empty, keeping current entries", job.TargetPlaylist)
		s.unchanged(i, r, job)
		return
	}

	err = s.registry.Save(i, func(stored *models.SyncJob) {
		stored.LastHash = r.hash
		stored.LastError = ""
	})
	if err != nil {
		s.logger.Error("failed to save job", "playlist", job.PlaylistEndpoint, "err", err)
		s.finish(i, r, job, StatusError, metrics.OutcomeError)
		return
	}

	if result.Changed() {
		s.logger.Infof("Updated playlist '%s'", job.TargetPlaylist)
	} else {
		s.logger.Infof("Playlist '%s' already matches the server", job.TargetPlaylist)
	}
	s.finish(i, r, job, StatusOK, metrics.OutcomeOK)
}

func (s *Scheduler) unchanged(i int, r *run, job *models.SyncJob) {
	if job.LastError != "" {
		err := s.registry.Save(i, func(stored *models.SyncJob) { stored.LastError = "" })
		if err != nil {
			s.logger.Error("failed to save job", "playlist", job.PlaylistEndpoint, "err", err)
		}
	}
	s.finish(i, r, job, StatusNoChange, metrics.OutcomeNoChange)
}

func (s *Scheduler) fail(i int, r *run, job *models.SyncJob, cause error) {
	err := s.registry.Save(i, func(stored *models.SyncJob) { stored.LastError = cause.Error() })
	if err != nil {
		s.logger.Error("failed to save job", "playlist", job.PlaylistEndpoint, "err", err)
	}
	s.finish(i, r, job, StatusError, metrics.OutcomeError)
}

func (s *Scheduler) playlistExists(name string) bool {
	_, err := s.playlists.GetByName(name)
	if err != nil && !errors.Is(err, shared.ErrPlaylistNotFound) {
		s.logger.Warn("playlist lookup failed, forcing refresh", "playlist", name, "err", err)
	}
	return err == nil
}

// enter records the new state and tells observers.
func (s *Scheduler) enter(i int, r *run, state JobState) {
	s.mu.Lock()
	if i < len(s.inflight) && s.inflight[i] == r {
		s.states[i] = state
	}
	s.mu.Unlock()

	cp := checkpoints[state]
	s.notifyProgress(i, cp.message, cp.percent)
}

// release clears job i's busy flag if r still owns it.
func (s *Scheduler) release(i int, r *run) {
	s.mu.Lock()
	if i < len(s.inflight) && s.inflight[i] == r {
		s.inflight[i] = nil
		s.states[i] = Idle
	}
	s.mu.Unlock()
	metrics.SyncsInFlight.Dec()
}

func (s *Scheduler) finish(i int, r *run, job *models.SyncJob, status, outcome string) {
	s.release(i, r)
	metrics.SyncRunsTotal.WithLabelValues(job.TargetPlaylist, outcome).Inc()
	metrics.SyncDuration.WithLabelValues(job.TargetPlaylist).Observe(time.Since(r.started).Seconds())
	s.notifyComplete(i, status)
}

// abandon drops a pipeline whose job was removed or moved while its request was in flight.
func (s *Scheduler) abandon(i int, r *run) {
	s.release(i, r)
	s.logger.Debug("discarding result for removed job", "index", i)
}

// Package registry holds the ordered list of sync jobs and the global sync settings.
//
// Jobs are addressed by their index in registry order. Every mutation is written
// through to the database before it becomes visible, so the registry survives
// restarts with each job's last hash and last error intact.
package registry

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/desertthunder/nsync/internal/models"
	"github.com/desertthunder/nsync/internal/repositories"
	"github.com/desertthunder/nsync/internal/shared"
)

// Registry is safe for concurrent use. Callers receive copies of jobs, never the stored values.
type Registry struct {
	mu       sync.RWMutex
	jobs     []*models.SyncJob
	settings models.Settings
	defaults models.Settings

	jobRepo      *repositories.JobRepository
	settingsRepo *repositories.SettingsRepository
}

// New loads the registry from db. defaults apply to settings that were never saved.
func New(db *sql.DB, defaults models.Settings) (*Registry, error) {
	r := &Registry{
		defaults:     defaults,
		jobRepo:      repositories.NewJobRepository(db),
		settingsRepo: repositories.NewSettingsRepository(db),
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload replaces the in-memory state with what is stored in the database.
func (r *Registry) Reload() error {
	jobs, err := r.jobRepo.List(nil)
	if err != nil {
		return fmt.Errorf("failed to load jobs: %w", err)
	}

	settings, err := r.settingsRepo.Load(r.defaults)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = jobs
	r.settings = settings
	return nil
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// Job returns a copy of the job at index i.
func (r *Registry) Job(i int) (*models.SyncJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i < 0 || i >= len(r.jobs) {
		return nil, fmt.Errorf("%w: index %d", shared.ErrJobNotFound, i)
	}
	return r.jobs[i].Clone(), nil
}

// Jobs returns copies of every job in registry order.
func (r *Registry) Jobs() []*models.SyncJob {
	r.mu.RLock()
	defer r.mu.RUnlock()
	jobs := make([]*models.SyncJob, len(r.jobs))
	for i, job := range r.jobs {
		jobs[i] = job.Clone()
	}
	return jobs
}

// Add appends a job and returns its index.
func (r *Registry) Add(job *models.SyncJob) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := job.Clone()
	if err := r.jobRepo.Create(stored); err != nil {
		return 0, err
	}
	job.SetID(stored.ID())
	job.SetSequence(stored.Sequence())

	r.jobs = append(r.jobs, stored)
	return len(r.jobs) - 1, nil
}

// Update replaces the editable fields of the job at index i with those of job.
func (r *Registry) Update(i int, job *models.SyncJob) error {
	return r.Save(i, func(stored *models.SyncJob) {
		stored.ServerURL = job.ServerURL
		stored.PlaylistEndpoint = job.PlaylistEndpoint
		stored.TargetPlaylist = job.TargetPlaylist
		stored.Enabled = job.Enabled
		stored.PollIntervalSeconds = job.PollIntervalSeconds
	})
}

// Save applies mutate to the job at index i and persists the result.
// The stored job is left unchanged when persisting fails.
func (r *Registry) Save(i int, mutate func(job *models.SyncJob)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i < 0 || i >= len(r.jobs) {
		return fmt.Errorf("%w: index %d", shared.ErrJobNotFound, i)
	}

	updated := r.jobs[i].Clone()
	mutate(updated)
	if err := r.jobRepo.Update(updated); err != nil {
		return err
	}

	r.jobs[i] = updated
	return nil
}

// Remove deletes the job at index i. Later jobs shift down one index.
func (r *Registry) Remove(i int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i < 0 || i >= len(r.jobs) {
		return fmt.Errorf("%w: index %d", shared.ErrJobNotFound, i)
	}
	if err := r.jobRepo.Delete(r.jobs[i].ID()); err != nil {
		return err
	}

	r.jobs = append(r.jobs[:i], r.jobs[i+1:]...)
	return nil
}

func (r *Registry) Settings() models.Settings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.settings
}

func (r *Registry) Enabled() bool {
	return r.Settings().Enabled
}

func (r *Registry) SetEnabled(enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.settingsRepo.SetEnabled(enabled); err != nil {
		return err
	}
	r.settings.Enabled = enabled
	return nil
}

// DefaultInterval is the poll interval, in seconds, offered for new jobs.
func (r *Registry) DefaultInterval() int {
	return r.Settings().DefaultInterval
}

func (r *Registry) SetDefaultInterval(seconds int) error {
	if seconds < shared.MinPollInterval {
		return fmt.Errorf("%w: %d seconds (minimum %d)", shared.ErrInvalidInterval, seconds, shared.MinPollInterval)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.settingsRepo.SetDefaultInterval(seconds); err != nil {
		return err
	}
	r.settings.DefaultInterval = seconds
	return nil
}

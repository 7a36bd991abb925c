package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/nsync/internal/models"
	"github.com/desertthunder/nsync/internal/shared"
)

const jobColumns = `id, sequence, server_url, playlist_endpoint, target_playlist, enabled,
	poll_interval_seconds, last_hash, last_error, created_at, updated_at`

// JobRepository implements models.Repository[*models.SyncJob] for the sync job registry.
type JobRepository struct {
	db *sql.DB
}

// NewJobRepository creates a new JobRepository with the given database connection
func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new job at the end of the registry order.
func (r *JobRepository) Create(job *models.SyncJob) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "jobs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	job.SetID(id)
	job.SetSequence(sequence)

	query := `
		INSERT INTO jobs (` + jobColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		job.ServerURL,
		job.PlaylistEndpoint,
		job.TargetPlaylist,
		job.Enabled,
		job.PollIntervalSeconds,
		job.LastHash,
		job.LastError,
		job.CreatedAt(),
		job.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}

	return nil
}

// Get retrieves a job by ID
func (r *JobRepository) Get(id string) (*models.SyncJob, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = ?`

	job, err := r.scan(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrJobNotFound, id)
	}
	return job, err
}

// Update persists every mutable field of the job, including the last hash and error.
func (r *JobRepository) Update(job *models.SyncJob) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	job.SetUpdatedAt(now)

	query := `
		UPDATE jobs
		SET server_url = ?, playlist_endpoint = ?, target_playlist = ?, enabled = ?,
			poll_interval_seconds = ?, last_hash = ?, last_error = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		job.ServerURL,
		job.PlaylistEndpoint,
		job.TargetPlaylist,
		job.Enabled,
		job.PollIntervalSeconds,
		job.LastHash,
		job.LastError,
		now,
		job.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	return affected(result, fmt.Errorf("%w: %s", shared.ErrJobNotFound, job.ID()))
}

// Delete removes a job by ID. Later jobs shift down one position.
func (r *JobRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	return affected(result, fmt.Errorf("%w: %s", shared.ErrJobNotFound, id))
}

// List retrieves jobs in registry order.
//
// Supported criteria: "enabled" (bool), "server_url" (string).
func (r *JobRepository) List(criteria map[string]any) ([]*models.SyncJob, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1 = 1`
	args := []any{}

	if enabled, ok := criteria["enabled"].(bool); ok {
		query += " AND enabled = ?"
		args = append(args, enabled)
	}

	if serverURL, ok := criteria["server_url"].(string); ok && serverURL != "" {
		query += " AND server_url = ?"
		args = append(args, serverURL)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.SyncJob
	for rows.Next() {
		job, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return jobs, nil
}

func (r *JobRepository) scan(row scanner) (*models.SyncJob, error) {
	var (
		id        string
		sequence  int
		job       models.SyncJob
		createdAt time.Time
		updatedAt time.Time
	)

	err := row.Scan(
		&id, &sequence,
		&job.ServerURL, &job.PlaylistEndpoint, &job.TargetPlaylist, &job.Enabled,
		&job.PollIntervalSeconds, &job.LastHash, &job.LastError,
		&createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	job.SetID(id)
	job.SetSequence(sequence)
	job.SetCreatedAt(createdAt)
	job.SetUpdatedAt(updatedAt)

	return &job, nil
}

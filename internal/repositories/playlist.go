package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/nsync/internal/models"
	"github.com/desertthunder/nsync/internal/shared"
)

// LocalPlaylistRepository implements models.Repository[*models.LocalPlaylist] and stores
// each playlist's ordered entries.
//
// Names are unique and matched case-sensitively.
type LocalPlaylistRepository struct {
	db *sql.DB
}

// NewLocalPlaylistRepository creates a new LocalPlaylistRepository with the given database connection
func NewLocalPlaylistRepository(db *sql.DB) *LocalPlaylistRepository {
	return &LocalPlaylistRepository{db: db}
}

// Create inserts a new, empty playlist with generated ID and sequence
func (r *LocalPlaylistRepository) Create(playlist *models.LocalPlaylist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "local_playlists")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	playlist.SetID(id)
	playlist.SetSequence(sequence)

	query := `
		INSERT INTO local_playlists (id, sequence, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query, id, sequence, playlist.Name(), playlist.CreatedAt(), playlist.UpdatedAt())
	if err != nil {
		return fmt.Errorf("failed to insert playlist: %w", err)
	}

	return nil
}

// Get retrieves a playlist by ID
func (r *LocalPlaylistRepository) Get(id string) (*models.LocalPlaylist, error) {
	query := `SELECT id, sequence, name, created_at, updated_at FROM local_playlists WHERE id = ?`

	playlist, err := r.scan(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
	}
	return playlist, err
}

// GetByName retrieves a playlist by its exact name
func (r *LocalPlaylistRepository) GetByName(name string) (*models.LocalPlaylist, error) {
	query := `SELECT id, sequence, name, created_at, updated_at FROM local_playlists WHERE name = ?`

	playlist, err := r.scan(r.db.QueryRow(query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", shared.ErrPlaylistNotFound, name)
	}
	return playlist, err
}

// Update renames a playlist.
func (r *LocalPlaylistRepository) Update(playlist *models.LocalPlaylist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	playlist.SetUpdatedAt(now)

	result, err := r.db.Exec(`UPDATE local_playlists SET name = ?, updated_at = ? WHERE id = ?`,
		playlist.Name(), now, playlist.ID())
	if err != nil {
		return fmt.Errorf("failed to update playlist: %w", err)
	}

	return affected(result, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlist.ID()))
}

// Delete removes a playlist and its entries.
func (r *LocalPlaylistRepository) Delete(id string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM playlist_entries WHERE playlist_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete playlist entries: %w", err)
	}

	result, err := tx.Exec(`DELETE FROM local_playlists WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}
	if err := affected(result, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)); err != nil {
		return err
	}

	return tx.Commit()
}

// List retrieves all playlists ordered by sequence.
//
// Supported criteria: "name" (string, exact match).
func (r *LocalPlaylistRepository) List(criteria map[string]any) ([]*models.LocalPlaylist, error) {
	query := `SELECT id, sequence, name, created_at, updated_at FROM local_playlists WHERE 1 = 1`
	args := []any{}

	if name, ok := criteria["name"].(string); ok && name != "" {
		query += " AND name = ?"
		args = append(args, name)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	var playlists []*models.LocalPlaylist
	for rows.Next() {
		playlist, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, playlist)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return playlists, nil
}

// Entries returns the playlist's locations in position order.
func (r *LocalPlaylistRepository) Entries(playlistID string) ([]string, error) {
	rows, err := r.db.Query(`SELECT location FROM playlist_entries WHERE playlist_id = ? ORDER BY position ASC`, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist entries: %w", err)
	}
	defer rows.Close()

	entries := []string{}
	for rows.Next() {
		var location string
		if err := rows.Scan(&location); err != nil {
			return nil, fmt.Errorf("failed to scan playlist entry: %w", err)
		}
		entries = append(entries, location)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return entries, nil
}

// RemoveEntries deletes every entry whose mask bit is set, then closes the gaps so the
// surviving entries keep their relative order.
//
// The mask must have exactly one element per current entry.
func (r *LocalPlaylistRepository) RemoveEntries(playlistID string, mask []bool) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	positions, err := entryPositions(tx, playlistID)
	if err != nil {
		return err
	}

	if len(mask) != len(positions) {
		return fmt.Errorf("%w: removal mask has %d elements, playlist has %d entries", shared.ErrInvalidInput, len(mask), len(positions))
	}

	next := 0
	for i, pos := range positions {
		if mask[i] {
			if _, err := tx.Exec(`DELETE FROM playlist_entries WHERE playlist_id = ? AND position = ?`, playlistID, pos); err != nil {
				return fmt.Errorf("failed to remove playlist entry: %w", err)
			}
			continue
		}
		if pos != next {
			if _, err := tx.Exec(`UPDATE playlist_entries SET position = ? WHERE playlist_id = ? AND position = ?`, next, playlistID, pos); err != nil {
				return fmt.Errorf("failed to reorder playlist entry: %w", err)
			}
		}
		next++
	}

	if err := touchPlaylist(tx, playlistID); err != nil {
		return err
	}

	return tx.Commit()
}

// AddEntries appends locations to the end of the playlist in the given order.
func (r *LocalPlaylistRepository) AddEntries(playlistID string, locations []string) error {
	if len(locations) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var next int
	err = tx.QueryRow(`SELECT COALESCE(MAX(position) + 1, 0) FROM playlist_entries WHERE playlist_id = ?`, playlistID).Scan(&next)
	if err != nil {
		return fmt.Errorf("failed to find playlist end: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO playlist_entries (playlist_id, position, location) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare entry insert: %w", err)
	}
	defer stmt.Close()

	for i, location := range locations {
		if _, err := stmt.Exec(playlistID, next+i, location); err != nil {
			return fmt.Errorf("failed to add playlist entry: %w", err)
		}
	}

	if err := touchPlaylist(tx, playlistID); err != nil {
		return err
	}

	return tx.Commit()
}

func entryPositions(tx *sql.Tx, playlistID string) ([]int, error) {
	rows, err := tx.Query(`SELECT position FROM playlist_entries WHERE playlist_id = ? ORDER BY position ASC`, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist entries: %w", err)
	}
	defer rows.Close()

	var positions []int
	for rows.Next() {
		var pos int
		if err := rows.Scan(&pos); err != nil {
			return nil, fmt.Errorf("failed to scan playlist entry: %w", err)
		}
		positions = append(positions, pos)
	}

	return positions, rows.Err()
}

func touchPlaylist(tx *sql.Tx, playlistID string) error {
	result, err := tx.Exec(`UPDATE local_playlists SET updated_at = ? WHERE id = ?`, time.Now(), playlistID)
	if err != nil {
		return fmt.Errorf("failed to update playlist: %w", err)
	}
	return affected(result, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID))
}

func (r *LocalPlaylistRepository) scan(row scanner) (*models.LocalPlaylist, error) {
	var (
		id        string
		sequence  int
		name      string
		createdAt time.Time
		updatedAt time.Time
	)

	err := row.Scan(&id, &sequence, &name, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan playlist: %w", err)
	}

	playlist := models.NewLocalPlaylist(sequence, name)
	playlist.SetID(id)
	playlist.SetCreatedAt(createdAt)
	playlist.SetUpdatedAt(updatedAt)

	return playlist, nil
}

package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/desertthunder/nsync/internal/models"
)

const (
	settingEnabled         = "enabled"
	settingDefaultInterval = "default_interval"
)

// SettingsRepository stores the global scalars shared by every job as key/value rows.
type SettingsRepository struct {
	db *sql.DB
}

// NewSettingsRepository creates a new SettingsRepository with the given database connection
func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Load reads the persisted settings, using defaults for keys that were never written.
func (r *SettingsRepository) Load(defaults models.Settings) (models.Settings, error) {
	settings := defaults

	if v, ok, err := r.get(settingEnabled); err != nil {
		return settings, err
	} else if ok {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return settings, fmt.Errorf("invalid %s setting %q: %w", settingEnabled, v, err)
		}
		settings.Enabled = enabled
	}

	if v, ok, err := r.get(settingDefaultInterval); err != nil {
		return settings, err
	} else if ok {
		interval, err := strconv.Atoi(v)
		if err != nil {
			return settings, fmt.Errorf("invalid %s setting %q: %w", settingDefaultInterval, v, err)
		}
		settings.DefaultInterval = interval
	}

	return settings, nil
}

// Save writes both settings.
func (r *SettingsRepository) Save(settings models.Settings) error {
	if err := r.SetEnabled(settings.Enabled); err != nil {
		return err
	}
	return r.SetDefaultInterval(settings.DefaultInterval)
}

func (r *SettingsRepository) SetEnabled(enabled bool) error {
	return r.set(settingEnabled, strconv.FormatBool(enabled))
}

func (r *SettingsRepository) SetDefaultInterval(seconds int) error {
	return r.set(settingDefaultInterval, strconv.Itoa(seconds))
}

func (r *SettingsRepository) get(key string) (string, bool, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return value, true, nil
}

func (r *SettingsRepository) set(key, value string) error {
	query := `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := r.db.Exec(query, key, value, time.Now()); err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}
	return nil
}

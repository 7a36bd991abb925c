package shared

import (
	"bufio"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"slices"
	"strconv"
	"strings"
)

//go:embed sql/*.sql
var migrationFiles embed.FS

// Migration is one schema version, read from the pair of files
// sql/NNNN_<name>_up.sql and sql/NNNN_<name>_down.sql.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// parseMigrationFile splits "0001_create_playlists_up.sql" into 1, "create_playlists", "up".
func parseMigrationFile(file string) (version int, name, direction string, ok bool) {
	stem, found := strings.CutSuffix(file, ".sql")
	if !found {
		return 0, "", "", false
	}

	switch {
	case strings.HasSuffix(stem, "_up"):
		stem, direction = strings.TrimSuffix(stem, "_up"), "up"
	case strings.HasSuffix(stem, "_down"):
		stem, direction = strings.TrimSuffix(stem, "_down"), "down"
	default:
		return 0, "", "", false
	}

	prefix, name, found := strings.Cut(stem, "_")
	if !found {
		return 0, "", "", false
	}
	version, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, "", "", false
	}
	return version, name, direction, true
}

// loadMigrations returns the embedded migrations in version order.
func loadMigrations() ([]Migration, error) {
	files, err := fs.Glob(migrationFiles, "sql/*.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}

	byVersion := make(map[int]*Migration)
	for _, file := range files {
		version, name, direction, ok := parseMigrationFile(strings.TrimPrefix(file, "sql/"))
		if !ok {
			continue
		}

		content, err := migrationFiles.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", file, err)
		}

		m, exists := byVersion[version]
		if !exists {
			m = &Migration{Version: version, Name: name}
			byVersion[version] = m
		}
		if direction == "up" {
			m.Up = string(content)
		} else {
			m.Down = string(content)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Up == "" || m.Down == "" {
			return nil, fmt.Errorf("migration %04d_%s is missing its up or down script", m.Version, m.Name)
		}
		migrations = append(migrations, *m)
	}
	slices.SortFunc(migrations, func(a, b Migration) int { return a.Version - b.Version })
	return migrations, nil
}

// RunMigrations applies every migration not yet recorded in schema_migrations, oldest first.
func RunMigrations(db *sql.DB) error {
	migrations, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := appliedVersions(db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		err := inTx(db, m.Up, func(tx *sql.Tx) error {
			_, err := tx.Exec(`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, m.Version, m.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to apply migration %04d_%s: %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// RollbackMigration reverts the newest applied migration.
func RollbackMigration(db *sql.DB) error {
	current, err := SchemaVersion(db)
	if err != nil {
		return err
	}
	if current < 0 {
		return fmt.Errorf("no migrations to rollback")
	}

	migrations, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	i := slices.IndexFunc(migrations, func(m Migration) bool { return m.Version == current })
	if i < 0 {
		return fmt.Errorf("migration version %d not found", current)
	}

	m := migrations[i]
	err = inTx(db, m.Down, func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM schema_migrations WHERE version = ?`, m.Version)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to rollback migration %04d_%s: %w", m.Version, m.Name, err)
	}
	return nil
}

// SchemaVersion returns the newest applied migration version, or -1 when none is applied.
func SchemaVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow(`SELECT COALESCE(MAX(version), -1) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

func appliedVersions(db *sql.DB) (map[int]bool, error) {
	rows, err := db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

// inTx runs every statement of script and then record inside one transaction.
func inTx(db *sql.DB, script string, record func(*sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range splitStatements(script) {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("%w\nStatement: %s", err, stmt)
		}
	}
	if err := record(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// splitStatements drops "--" comments and blank lines and splits the rest on ';'.
func splitStatements(script string) []string {
	var b strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(script))
	for scanner.Scan() {
		line, _, _ := strings.Cut(scanner.Text(), "--")
		if line = strings.TrimSpace(line); line != "" {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}

	var statements []string
	for stmt := range strings.SplitSeq(b.String(), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}

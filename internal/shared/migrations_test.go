package shared

import (
	"database/sql"
	"reflect"
	"testing"
)

func migratedDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

func tableExists(db *sql.DB, table string) bool {
	_, err := db.Exec("SELECT 1 FROM " + table + " LIMIT 1")
	return err == nil
}

func TestParseMigrationFile(t *testing.T) {
	tests := []struct {
		file      string
		version   int
		name      string
		direction string
		ok        bool
	}{
		{"0001_create_playlists_up.sql", 1, "create_playlists", "up", true},
		{"0000_create_jobs_down.sql", 0, "create_jobs", "down", true},
		{"0002_add_index_up.txt", 0, "", "", false},
		{"0003_sideways.sql", 0, "", "", false},
		{"latest_up.sql", 0, "", "", false},
		{"up.sql", 0, "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			version, name, direction, ok := parseMigrationFile(tt.file)
			if ok != tt.ok || version != tt.version || name != tt.name || direction != tt.direction {
				t.Errorf("got (%d, %q, %q, %t), want (%d, %q, %q, %t)",
					version, name, direction, ok, tt.version, tt.name, tt.direction, tt.ok)
			}
		})
	}
}

func TestSplitStatements(t *testing.T) {
	script := `-- header comment
CREATE TABLE a (id TEXT); -- trailing

INSERT INTO a (id) VALUES ('x');
;
`
	want := []string{"CREATE TABLE a (id TEXT)", "INSERT INTO a (id) VALUES ('x')"}
	if got := splitStatements(script); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestMigrations(t *testing.T) {
	t.Run("embedded migrations are complete and ordered", func(t *testing.T) {
		migrations, err := loadMigrations()
		if err != nil {
			t.Fatalf("failed to load migrations: %v", err)
		}
		if len(migrations) < 2 {
			t.Fatalf("expected at least two migrations, got %d", len(migrations))
		}
		for i, m := range migrations {
			if i > 0 && m.Version <= migrations[i-1].Version {
				t.Errorf("migrations not sorted: %d after %d", m.Version, migrations[i-1].Version)
			}
			if m.Name == "" || m.Up == "" || m.Down == "" {
				t.Errorf("migration %d is incomplete: %+v", m.Version, m)
			}
		}
	})

	t.Run("creates every table", func(t *testing.T) {
		db := migratedDB(t)
		for _, table := range []string{"jobs", "settings", "local_playlists", "playlist_entries"} {
			if !tableExists(db, table) {
				t.Errorf("%s table should exist after migrations", table)
			}
		}

		var name string
		if err := db.QueryRow(`SELECT name FROM schema_migrations WHERE version = 1`).Scan(&name); err != nil {
			t.Fatal(err)
		}
		if name != "create_playlists" {
			t.Errorf("expected migration name to be recorded, got %q", name)
		}
	})

	t.Run("is idempotent", func(t *testing.T) {
		db := migratedDB(t)
		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations second time: %v", err)
		}

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
			t.Fatal(err)
		}
		migrations, _ := loadMigrations()
		if count != len(migrations) {
			t.Errorf("expected %d applied migrations, got %d", len(migrations), count)
		}
	})

	t.Run("rolls back one version at a time", func(t *testing.T) {
		db := migratedDB(t)

		if v, err := SchemaVersion(db); err != nil || v != 1 {
			t.Fatalf("expected version 1, got %d (%v)", v, err)
		}

		if err := RollbackMigration(db); err != nil {
			t.Fatalf("failed to rollback: %v", err)
		}
		if tableExists(db, "local_playlists") {
			t.Error("local_playlists should be dropped")
		}
		if !tableExists(db, "jobs") {
			t.Error("jobs should survive a single rollback")
		}

		if err := RollbackMigration(db); err != nil {
			t.Fatalf("failed to rollback: %v", err)
		}
		if v, _ := SchemaVersion(db); v != -1 {
			t.Errorf("expected no applied migrations, got version %d", v)
		}
		if err := RollbackMigration(db); err == nil {
			t.Error("expected an error with nothing to roll back")
		}

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to migrate again: %v", err)
		}
		if !tableExists(db, "local_playlists") {
			t.Error("local_playlists should be recreated")
		}
	})
}

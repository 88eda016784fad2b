package shared

import (
	"database/sql"
	"testing"
)

func newMigratedDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("NewDatabase failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := RunMigrations(db); err != nil {
		t.Fatalf("RunMigrations failed: %v", err)
	}
	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()

	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name).Scan(&count)
	if err != nil {
		t.Fatalf("Failed to query sqlite_master: %v", err)
	}
	return count > 0
}

func TestRunMigrations(t *testing.T) {
	t.Run("creates the suggestions table", func(t *testing.T) {
		db := newMigratedDB(t)

		if !tableExists(t, db, "suggestions") {
			t.Error("suggestions table missing")
		}
		if !tableExists(t, db, "schema_migrations") {
			t.Error("schema_migrations table missing")
		}

		_, err := db.Exec(`INSERT INTO suggestions (id, user_email, track_id, track_name, artist, created_at)
			VALUES ('s1', 'u@example.com', 't1', 'Track', 'Artist', CURRENT_TIMESTAMP)`)
		if err != nil {
			t.Errorf("insert into suggestions failed: %v", err)
		}
	})

	t.Run("unique constraint on user and track", func(t *testing.T) {
		db := newMigratedDB(t)

		insert := `INSERT INTO suggestions (id, user_email, track_id, track_name, artist, created_at)
			VALUES (?, 'u@example.com', 't1', 'Track', 'Artist', CURRENT_TIMESTAMP)`

		if _, err := db.Exec(insert, "s1"); err != nil {
			t.Fatalf("first insert failed: %v", err)
		}
		if _, err := db.Exec(insert, "s2"); err == nil {
			t.Error("duplicate (user_email, track_id) accepted")
		}
	})

	t.Run("running twice is a no-op", func(t *testing.T) {
		db := newMigratedDB(t)

		if err := RunMigrations(db); err != nil {
			t.Fatalf("second RunMigrations failed: %v", err)
		}
	})

	t.Run("rollback drops the table", func(t *testing.T) {
		db := newMigratedDB(t)

		if err := RollbackMigration(db); err != nil {
			t.Fatalf("RollbackMigration failed: %v", err)
		}
		if tableExists(t, db, "suggestions") {
			t.Error("suggestions table survived rollback")
		}

		if err := RollbackMigration(db); err == nil {
			t.Error("rollback with nothing applied should fail")
		}
	})

	t.Run("migrating again after a rollback reapplies", func(t *testing.T) {
		db := newMigratedDB(t)

		if err := RollbackMigration(db); err != nil {
			t.Fatalf("RollbackMigration failed: %v", err)
		}
		if err := RunMigrations(db); err != nil {
			t.Fatalf("RunMigrations after rollback failed: %v", err)
		}
		if !tableExists(t, db, "suggestions") {
			t.Error("suggestions table missing after reapply")
		}
	})
}

package database

import (
	"context"
	"path/filepath"
	"testing"

	"cdi-tracker/internal/domain/frequentation"
	"cdi-tracker/internal/infrastructure/repository"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewConnection(Config{Path: filepath.Join(t.TempDir(), "cdi.db")})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func hasColumn(t *testing.T, store *Store, table, column string) bool {
	t.Helper()
	var names []string
	if err := store.DB.Select(&names, "SELECT name FROM pragma_table_info(?)", table); err != nil {
		t.Fatalf("failed to read table info: %v", err)
	}
	for _, n := range names {
		if n == column {
			return true
		}
	}
	return false
}

func TestMigrateCreatesSchema(t *testing.T) {
	store := openTestStore(t)

	if err := store.Migrate(); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	// Second run must be a no-op.
	if err := store.Migrate(); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}

	for _, col := range []string{"id", "nom", "prenom", "classe", "created_at", "updated_at"} {
		if !hasColumn(t, store, "students", col) {
			t.Errorf("students.%s missing", col)
		}
	}
	for _, col := range []string{"id", "starts_at", "activity", "student_id", "created_at", "updated_at"} {
		if !hasColumn(t, store, "frequentation", col) {
			t.Errorf("frequentation.%s missing", col)
		}
	}

	status, err := NewMigrationRunner(store.Gorm).GetMigrationStatus()
	if err != nil {
		t.Fatalf("GetMigrationStatus failed: %v", err)
	}
	if len(status) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(status))
	}
	for _, m := range status {
		if m.AppliedAt == nil {
			t.Errorf("migration %s not marked applied", m.ID)
		}
	}
}

func TestMigrateAddsUpdatedAtToLegacyTable(t *testing.T) {
	store := openTestStore(t)

	legacy := `
	CREATE TABLE students (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		nom TEXT NOT NULL,
		prenom TEXT NOT NULL,
		classe TEXT NOT NULL,
		created_at DATETIME DEFAULT (datetime('now')),
		updated_at DATETIME DEFAULT (datetime('now'))
	);
	CREATE TABLE frequentation (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		starts_at DATETIME NOT NULL,
		activity TEXT NOT NULL,
		student_id INTEGER NOT NULL,
		created_at DATETIME DEFAULT (datetime('now')),
		FOREIGN KEY (student_id) REFERENCES students(id) ON DELETE CASCADE
	);
	INSERT INTO students (nom, prenom, classe) VALUES ('Martin', 'Alice', '3A');
	INSERT INTO frequentation (starts_at, activity, student_id, created_at)
		VALUES ('2024-01-10T09:00:00.000Z', 'reading', 1, '2024-01-10 09:00:00');`
	if _, err := store.DB.Exec(legacy); err != nil {
		t.Fatalf("failed to create legacy schema: %v", err)
	}

	if err := store.Migrate(); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if !hasColumn(t, store, "frequentation", "updated_at") {
		t.Fatal("updated_at was not added")
	}

	var nulls int
	if err := store.DB.Get(&nulls, "SELECT COUNT(*) FROM frequentation WHERE updated_at IS NULL"); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if nulls != 0 {
		t.Errorf("expected backfilled updated_at, %d rows still NULL", nulls)
	}

	// The added column has no default, so bulk inserts must fill it.
	ctx := context.Background()
	repo := repository.NewFrequentationRepository(store.DB)
	n, err := repo.CreateMany(ctx, []frequentation.NewRow{
		{StartsAt: "2024-01-11T09:00:00.000Z", Activity: "work", StudentID: 1},
	})
	if err != nil || n != 1 {
		t.Fatalf("CreateMany failed: %d %v", n, err)
	}
	if err := store.DB.Get(&nulls, "SELECT COUNT(*) FROM frequentation WHERE updated_at IS NULL OR created_at IS NULL"); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if nulls != 0 {
		t.Errorf("expected bulk insert to set timestamps, %d rows with NULL", nulls)
	}

	all, err := repo.FindAll(ctx)
	if err != nil {
		t.Fatalf("FindAll after bulk insert failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 rows, got %d", len(all))
	}
	joined, err := repo.FindAllWithStudent(ctx)
	if err != nil || len(joined) != 2 {
		t.Errorf("FindAllWithStudent after bulk insert: %d rows, %v", len(joined), err)
	}
}

func TestForeignKeysEnabled(t *testing.T) {
	store := openTestStore(t)

	on, err := store.ForeignKeysEnabled(context.Background())
	if err != nil {
		t.Fatalf("ForeignKeysEnabled failed: %v", err)
	}
	if !on {
		t.Error("expected foreign keys to be enforced")
	}
	if err := store.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck failed: %v", err)
	}
}

func TestMigrateSkipsNameIndexWhenDuplicatesExist(t *testing.T) {
	store := openTestStore(t)

	legacy := `
	CREATE TABLE students (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		nom TEXT NOT NULL,
		prenom TEXT NOT NULL,
		classe TEXT NOT NULL,
		created_at DATETIME DEFAULT (datetime('now')),
		updated_at DATETIME DEFAULT (datetime('now'))
	);
	INSERT INTO students (nom, prenom, classe) VALUES ('Martin', 'Alice', '3A');
	INSERT INTO students (nom, prenom, classe) VALUES ('MARTIN', 'alice', '4B');`
	if _, err := store.DB.Exec(legacy); err != nil {
		t.Fatalf("failed to create legacy schema: %v", err)
	}

	if err := store.Migrate(); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	var indexes int
	if err := store.DB.Get(&indexes, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = 'idx_students_name_unique'"); err != nil {
		t.Fatalf("index lookup failed: %v", err)
	}
	if indexes != 0 {
		t.Error("expected the unique name index to be skipped")
	}
}

package database

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"cdi-tracker/pkg/logger"

	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

type Migration struct {
	ID          string
	Description string
	SQL         string
	// Apply runs instead of SQL for steps that depend on the current schema.
	Apply     func(tx *gorm.DB) error
	AppliedAt *time.Time
}

type MigrationRunner struct {
	db    *gorm.DB
	files fs.FS
	steps []Migration
}

func NewMigrationRunner(db *gorm.DB) *MigrationRunner {
	return &MigrationRunner{
		db:    db,
		files: migrationFiles,
		steps: codeMigrations,
	}
}

// codeMigrations are interleaved with the SQL files by ID.
var codeMigrations = []Migration{
	{
		ID:          "002",
		Description: "add frequentation updated_at",
		Apply:       addFrequentationUpdatedAt,
	},
	{
		ID:          "003",
		Description: "unique student name index",
		Apply:       addStudentNameIndex,
	},
}

// addFrequentationUpdatedAt upgrades databases created before the column
// existed. SQLite refuses a non-constant default in ADD COLUMN, so the
// column is added bare and backfilled.
func addFrequentationUpdatedAt(tx *gorm.DB) error {
	if tx.Migrator().HasColumn("frequentation", "updated_at") {
		return nil
	}
	if err := tx.Exec("ALTER TABLE frequentation ADD COLUMN updated_at DATETIME").Error; err != nil {
		return err
	}
	return tx.Exec("UPDATE frequentation SET updated_at = COALESCE(created_at, datetime('now')) WHERE updated_at IS NULL").Error
}

// addStudentNameIndex backs the manager's uniqueness check. NOCASE only folds
// ASCII letters. A database that already holds duplicates keeps running
// without the index until they are merged by hand.
func addStudentNameIndex(tx *gorm.DB) error {
	var groups int64
	err := tx.Raw(`SELECT COUNT(*) FROM (
		SELECT 1 FROM students
		GROUP BY nom COLLATE NOCASE, prenom COLLATE NOCASE
		HAVING COUNT(*) > 1
	)`).Scan(&groups).Error
	if err != nil {
		return err
	}
	if groups > 0 {
		logger.Warn("Skipping unique student name index: %d duplicate name groups", groups)
		return nil
	}
	return tx.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_students_name_unique ON students(nom COLLATE NOCASE, prenom COLLATE NOCASE)").Error
}

func (mr *MigrationRunner) createMigrationsTable() error {
	sql := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		id TEXT PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at DATETIME DEFAULT (datetime('now'))
	);`

	return mr.db.Exec(sql).Error
}

func (mr *MigrationRunner) getAppliedMigrations() (map[string]bool, error) {
	var ids []string
	err := mr.db.Raw("SELECT id FROM schema_migrations ORDER BY id").Scan(&ids).Error
	if err != nil {
		return nil, err
	}

	applied := make(map[string]bool, len(ids))
	for _, id := range ids {
		applied[id] = true
	}

	return applied, nil
}

func parseMigrationName(filename string) (id, description string, err error) {
	parts := strings.SplitN(filename, "_", 2)
	if len(parts) < 2 {
		return "", "", fmt.Errorf("invalid migration filename format: %s", filename)
	}
	description = strings.TrimSuffix(parts[1], ".sql")
	return parts[0], strings.ReplaceAll(description, "_", " "), nil
}

// loadMigrations returns SQL files and code steps sorted by ID.
func (mr *MigrationRunner) loadMigrations() ([]Migration, error) {
	names, err := fs.Glob(mr.files, "migrations/*.sql")
	if err != nil {
		return nil, err
	}

	migrations := make([]Migration, 0, len(names)+len(mr.steps))
	for _, name := range names {
		content, err := fs.ReadFile(mr.files, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", name, err)
		}
		id, description, err := parseMigrationName(path.Base(name))
		if err != nil {
			return nil, err
		}
		migrations = append(migrations, Migration{ID: id, Description: description, SQL: string(content)})
	}
	migrations = append(migrations, mr.steps...)

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].ID < migrations[j].ID })
	for i := 1; i < len(migrations); i++ {
		if migrations[i].ID == migrations[i-1].ID {
			return nil, fmt.Errorf("duplicate migration id %s", migrations[i].ID)
		}
	}
	return migrations, nil
}

func (mr *MigrationRunner) RunMigrations() error {
	if err := mr.createMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := mr.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	migrations, err := mr.loadMigrations()
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	pendingCount := 0
	for _, migration := range migrations {
		if applied[migration.ID] {
			continue
		}

		migration := migration
		err = mr.db.Transaction(func(tx *gorm.DB) error {
			if migration.Apply != nil {
				if err := migration.Apply(tx); err != nil {
					return fmt.Errorf("failed to execute migration %s: %w", migration.ID, err)
				}
			} else if err := tx.Exec(migration.SQL).Error; err != nil {
				return fmt.Errorf("failed to execute migration %s: %w", migration.ID, err)
			}

			if err := tx.Exec("INSERT INTO schema_migrations (id, description) VALUES (?, ?)",
				migration.ID, migration.Description).Error; err != nil {
				return fmt.Errorf("failed to record migration %s: %w", migration.ID, err)
			}

			return nil
		})
		if err != nil {
			return err
		}

		logger.Info("Applied migration: %s - %s", migration.ID, migration.Description)
		pendingCount++
	}

	if pendingCount == 0 {
		logger.Info("No pending migrations to apply")
	} else {
		logger.Info("Successfully applied %d migrations", pendingCount)
	}

	return nil
}

type appliedRow struct {
	ID        string
	AppliedAt time.Time
}

func (mr *MigrationRunner) GetMigrationStatus() ([]Migration, error) {
	if err := mr.createMigrationsTable(); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	var rows []appliedRow
	if err := mr.db.Raw("SELECT id, applied_at FROM schema_migrations").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}
	appliedAt := make(map[string]time.Time, len(rows))
	for _, r := range rows {
		appliedAt[r.ID] = r.AppliedAt
	}

	migrations, err := mr.loadMigrations()
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}

	for i := range migrations {
		if at, ok := appliedAt[migrations[i].ID]; ok {
			at := at
			migrations[i].AppliedAt = &at
		}
	}

	return migrations, nil
}

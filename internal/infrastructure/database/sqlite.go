package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cdi-tracker/pkg/logger"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type Config struct {
	Path          string
	BusyTimeoutMS int
	LogQueries    bool
}

// Store owns the single connection to the database file. Repositories use
// the sqlx handle; the migration runner uses the gorm one. Both share the
// same *sql.DB.
type Store struct {
	DB   *sqlx.DB
	Gorm *gorm.DB
	path string
}

func dsn(config Config) string {
	busy := config.BusyTimeoutMS
	if busy <= 0 {
		busy = 5000
	}
	return fmt.Sprintf("%s?_foreign_keys=on&_busy_timeout=%d", config.Path, busy)
}

func NewConnection(config Config) (*Store, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("database path is empty")
	}
	if dir := filepath.Dir(config.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	logger.Debug("Opening database at %s", config.Path)

	db, err := sqlx.Open("sqlite3", dsn(config))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer; a single connection serializes every statement.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logMode := gormlogger.Silent
	if config.LogQueries {
		logMode = gormlogger.Info
	}
	gdb, err := gorm.Open(&sqlite.Dialector{Conn: db.DB}, &gorm.Config{
		Logger: gormlogger.Default.LogMode(logMode),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	return &Store{DB: db, Gorm: gdb, path: config.Path}, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Close() error {
	return s.DB.Close()
}

// Migrate applies every pending schema migration.
func (s *Store) Migrate() error {
	logger.Info("Running SQL migrations...")

	if err := NewMigrationRunner(s.Gorm).RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

func (s *Store) HealthCheck(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

// ForeignKeysEnabled reports whether the connection enforces foreign keys,
// and with them the cascade from students to frequentation.
func (s *Store) ForeignKeysEnabled(ctx context.Context) (bool, error) {
	var on int
	if err := s.DB.GetContext(ctx, &on, "PRAGMA foreign_keys"); err != nil {
		return false, fmt.Errorf("failed to read foreign_keys pragma: %w", err)
	}
	return on == 1, nil
}

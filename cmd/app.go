package cmd

import (
	"context"
	"fmt"
	"time"

	"cdi-tracker/internal/api/controller"
	"cdi-tracker/internal/api/handlers"
	"cdi-tracker/internal/api/ipc"
	"cdi-tracker/internal/config"
	"cdi-tracker/internal/infrastructure/cache"
	"cdi-tracker/internal/infrastructure/database"
	"cdi-tracker/internal/infrastructure/repository"
	infrastructure "cdi-tracker/internal/interfaces/infrastructure"
	interfaces "cdi-tracker/internal/interfaces/service"
	"cdi-tracker/internal/service"
	"cdi-tracker/pkg/logger"
)

// application is the wired object graph shared by the commands.
type application struct {
	store     *database.Store
	cache     infrastructure.CacheService
	bus       *ipc.Bus
	retention interfaces.RetentionService
}

func openStore(cfg *config.Config) (*database.Store, error) {
	store, err := database.NewConnection(database.Config{
		Path:          cfg.Database.Path,
		BusyTimeoutMS: cfg.Database.BusyTimeoutMS,
		LogQueries:    cfg.Database.LogQueries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return store, nil
}

// bootstrap opens and migrates the store, then wires the managers and the
// channel bus.
func bootstrap(cfg *config.Config) (*application, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, err
	}

	cacheService, err := cache.New(cfg.Cache)
	if err != nil {
		store.Close()
		return nil, err
	}

	cal := service.NewCalendar(cfg.Location())
	studentRepo := repository.NewStudentRepository(store.DB)
	frequentationRepo := repository.NewFrequentationRepository(store.DB)

	students := service.NewStudentManager(studentRepo, cacheService, cal, service.StudentManagerConfig{
		MaxBatchSize: cfg.Students.MaxBatchSize,
		StatsTTL:     time.Duration(cfg.Cache.TTLSeconds) * time.Second,
	})
	frequentations := service.NewFrequentationManager(frequentationRepo, studentRepo, cal)

	bus := ipc.NewBus()
	controller.NewStudentController(students, frequentations, cal, store.ForeignKeysEnabled).Register(bus)
	controller.NewFrequentationController(frequentations, cal).Register(bus)
	logger.Info("Registered %d channels", len(bus.Channels()))

	return &application{
		store:     store,
		cache:     cacheService,
		bus:       bus,
		retention: service.NewRetentionService(frequentationRepo, cfg.Retention.Years),
	}, nil
}

func (a *application) healthChecks() map[string]handlers.Check {
	return map[string]handlers.Check{
		"database": a.store.HealthCheck,
		"cache":    a.cache.Health,
	}
}

// startRetention purges old rows once and schedules the periodic cleanup.
func (a *application) startRetention(ctx context.Context, cfg config.RetentionConfig) {
	if !cfg.Enabled {
		logger.Info("Attendance retention disabled")
		return
	}
	if cfg.OnStartup {
		if _, err := a.retention.Cleanup(ctx); err != nil {
			logger.Error("Startup retention cleanup failed: %v", err)
		}
	}
	if cfg.IntervalHours > 0 {
		a.retention.Start(ctx, time.Duration(cfg.IntervalHours)*time.Hour)
	}
}

func (a *application) Close() {
	if err := a.cache.Close(); err != nil {
		logger.Warn("Failed to close cache: %v", err)
	}
	if err := a.store.Close(); err != nil {
		logger.Warn("Failed to close database: %v", err)
	}
}

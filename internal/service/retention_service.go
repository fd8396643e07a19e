package service

import (
	"context"
	"time"

	infrastructure "cdi-tracker/internal/interfaces/infrastructure"
	interfaces "cdi-tracker/internal/interfaces/service"
	"cdi-tracker/pkg/apperr"
	"cdi-tracker/pkg/logger"
	"cdi-tracker/pkg/timestamp"
)

type retentionService struct {
	repo  infrastructure.FrequentationRepository
	years int
	now   func() time.Time
}

// NewRetentionService keeps attendance rows for the given number of years.
func NewRetentionService(repo infrastructure.FrequentationRepository, years int) interfaces.RetentionService {
	if years <= 0 {
		years = 2
	}
	return &retentionService{
		repo:  repo,
		years: years,
		now:   time.Now,
	}
}

// Cleanup deletes rows that started before now minus the retention period.
func (s *retentionService) Cleanup(ctx context.Context) (int, error) {
	cutoff := s.now().AddDate(-s.years, 0, 0)

	n, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		logger.Error("Retention cleanup failed: %v", err)
		return 0, apperr.Persistence("Erreur lors du nettoyage des anciennes fréquentations", err)
	}

	if n > 0 {
		logger.Info("Retention cleanup removed %d frequentations older than %s", n, timestamp.Format(cutoff))
	} else {
		logger.Debug("Retention cleanup: nothing older than %s", timestamp.Format(cutoff))
	}
	return n, nil
}

// Start runs Cleanup every interval until ctx is done.
func (s *retentionService) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		logger.Info("Retention scheduler started, interval %s", interval)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.Info("Retention scheduler stopped")
				return
			case <-ticker.C:
				if _, err := s.Cleanup(ctx); err != nil {
					logger.Error("Scheduled retention cleanup failed: %v", err)
				}
			}
		}
	}()
}

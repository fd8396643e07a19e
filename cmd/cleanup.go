package cmd

import (
	"context"
	"fmt"
	"os"

	"cdi-tracker/internal/config"
	"cdi-tracker/internal/infrastructure/repository"
	"cdi-tracker/internal/service"
	"cdi-tracker/pkg/logger"

	"github.com/spf13/cobra"
)

var retentionYears int

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete old attendance records",
	Long: `Delete the attendance records older than the retention period.
The period defaults to retention.years from the configuration.`,
	Run: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
	cleanupCmd.Flags().IntVar(&retentionYears, "years", 0, "Retention period in years (overrides retention.years)")
}

func runCleanup(cmd *cobra.Command, args []string) {
	cfg := config.Get()
	years := cfg.Retention.Years
	if retentionYears > 0 {
		years = retentionYears
	}

	store, err := openStore(cfg)
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		logger.Error("Migration failed: %v", err)
		os.Exit(1)
	}

	retention := service.NewRetentionService(repository.NewFrequentationRepository(store.DB), years)
	deleted, err := retention.Cleanup(context.Background())
	if err != nil {
		logger.Error("Cleanup failed: %v", err)
		os.Exit(1)
	}

	fmt.Printf("Deleted %d attendance record(s) older than %d year(s)\n", deleted, years)
}

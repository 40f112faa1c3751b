package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/wonny/pulse/internal/store"
	"github.com/wonny/pulse/pkg/config"
	"github.com/wonny/pulse/pkg/database"
	"github.com/wonny/pulse/pkg/logger"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show data and pipeline status",
	Long: `Shows database health, raw observation counts per type, and the
latest derived date.

Example:
  go run ./cmd/pulse status`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Pulse Status ===")

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()

	// 4. Database health
	health, err := db.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("database health check: %w", err)
	}
	fmt.Printf("\nDatabase: healthy (response %s, %d/%d conns)\n",
		health.ResponseTime, health.Stats.TotalConns, health.Stats.MaxConns)

	log.Debug("Database health check passed")

	// 5. Raw observation counts
	observations := store.NewObservationRepository(db.Pool)
	counts, err := observations.CountByType(ctx)
	if err != nil {
		return fmt.Errorf("count observations: %w", err)
	}

	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)

	fmt.Println("\nRaw observations:")
	if len(types) == 0 {
		fmt.Println("  (none)")
	}
	for _, t := range types {
		fmt.Printf("  %-32s %d\n", t, counts[t])
	}

	// 6. Derived table status
	metrics := store.NewDailyMetricRepository(db.Pool)
	latest, err := metrics.GetLatestDate(ctx)
	if err != nil {
		return fmt.Errorf("latest derived date: %w", err)
	}
	if latest.IsZero() {
		fmt.Println("\nDerived tables: empty (run `pulse pipeline` to build)")
		return nil
	}

	fmt.Printf("\nDerived tables: up to %s\n", latest.Format("2006-01-02"))

	latestRows, err := metrics.GetByDate(ctx, latest)
	if err != nil {
		return fmt.Errorf("latest derived metrics: %w", err)
	}
	withValue := 0
	for _, m := range latestRows {
		if m.Value != nil {
			withValue++
		}
	}
	fmt.Printf("  latest day:     %d metrics (%d with values)\n", len(latestRows), withValue)

	baselineKeys, err := store.NewBaselineRepository(db.Pool).DistinctKeys(ctx)
	if err != nil {
		return fmt.Errorf("baseline keys: %w", err)
	}
	fmt.Printf("  baselines for:  %d metrics\n", len(baselineKeys))

	anomalyKeys, err := store.NewAnomalyRepository(db.Pool).DistinctKeys(ctx)
	if err != nil {
		return fmt.Errorf("anomaly keys: %w", err)
	}
	fmt.Printf("  anomalies on:   %d metrics\n", len(anomalyKeys))

	correlations, err := store.NewCorrelationRepository(db.Pool).GetAll(ctx)
	if err != nil {
		return fmt.Errorf("correlations: %w", err)
	}
	fmt.Printf("  correlations:   %d rows\n", len(correlations))

	return nil
}

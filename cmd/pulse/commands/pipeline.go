package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/pulse/internal/store"
	"github.com/wonny/pulse/pkg/config"
	"github.com/wonny/pulse/pkg/database"
	"github.com/wonny/pulse/pkg/logger"
)

// pipelineCmd represents the pipeline command
var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run the derivation pipeline once",
	Long: `Runs one full derivation pipeline pass and exits.

Aggregates raw observations into daily metrics, derives rolling
baselines, anomaly flags, recovery/strain scores and lagged
correlations, then atomically swaps the derived tables. A failed run
leaves the previous snapshot untouched.

Example:
  go run ./cmd/pulse pipeline`,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(pipelineCmd)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Pulse Pipeline ===")

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

	log.Info("Connected to database")

	// 4. Ensure the analytics schema exists
	if err := store.EnsureSchema(cmd.Context(), db.Pool); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	// 5. Run the pipeline
	orchestrator := buildOrchestrator(db, cfg, log)

	result, err := orchestrator.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("pipeline run: %w", err)
	}

	fmt.Printf("\n✅ Pipeline complete in %s\n", result.Duration.Round(time.Millisecond))
	fmt.Printf("  daily metrics: %d\n", result.MetricRows)
	fmt.Printf("  baselines:     %d\n", result.BaselineRows)
	fmt.Printf("  anomalies:     %d\n", result.AnomalyRows)
	fmt.Printf("  scores:        %d\n", result.ScoreRows)
	fmt.Printf("  correlations:  %d\n", result.CorrelationRows)
	return nil
}

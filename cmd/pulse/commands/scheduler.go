package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/pulse/internal/scheduler"
	"github.com/wonny/pulse/internal/scheduler/jobs"
	"github.com/wonny/pulse/internal/store"
	"github.com/wonny/pulse/pkg/config"
	"github.com/wonny/pulse/pkg/database"
	"github.com/wonny/pulse/pkg/logger"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the nightly rebuild scheduler",
	Long: `Runs the cron scheduler that rebuilds the derived tables.

The rebuild job runs on PIPELINE_SCHEDULE (default 03:30 daily), after
the overnight ingestion sync. Failed runs are retried up to 3 times.

Example:
  go run ./cmd/pulse scheduler
  go run ./cmd/pulse scheduler --run-now`,
	RunE: runScheduler,
}

var (
	runNow bool
)

func init() {
	rootCmd.AddCommand(schedulerCmd)

	// Flags
	schedulerCmd.Flags().BoolVar(&runNow, "run-now", false, "trigger an immediate rebuild on startup")
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Pulse Scheduler ===")

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

	// 5. Register the rebuild job
	orchestrator := buildOrchestrator(db, cfg, log)
	rebuildJob := jobs.NewRebuildJob(orchestrator, cfg, log)

	sched := scheduler.New(log)
	if err := sched.AddJob(rebuildJob); err != nil {
		return fmt.Errorf("add rebuild job: %w", err)
	}

	// 6. Start
	sched.Start()
	fmt.Printf("\n✅ Scheduler running, rebuild at %q\n", cfg.Pipeline.Schedule)
	fmt.Println("\nPress Ctrl+C to stop")

	if runNow {
		if err := sched.RunJob(rebuildJob.Name()); err != nil {
			return fmt.Errorf("trigger rebuild: %w", err)
		}
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	sched.Stop()

	if history, err := sched.History(rebuildJob.Name()); err == nil {
		if last := history.Last(); last != nil {
			fmt.Printf("\nLast run: success=%t duration=%s\n", last.Success, last.Duration)
		}
	}
	return nil
}

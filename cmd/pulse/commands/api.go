package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/pulse/internal/api"
	"github.com/wonny/pulse/internal/api/handlers"
	"github.com/wonny/pulse/internal/store"
	"github.com/wonny/pulse/pkg/config"
	"github.com/wonny/pulse/pkg/database"
	"github.com/wonny/pulse/pkg/logger"
	"github.com/wonny/pulse/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long: `Starts the read-only analytics API server.

Endpoints:
  GET  /health                      - Health check
  GET  /api/analytics/metrics       - Metric catalog
  GET  /api/analytics/metric/daily  - Daily series for one metric
  GET  /api/analytics/overview      - Dashboard overview
  GET  /api/analytics/anomalies     - Flagged anomalies
  GET  /api/analytics/correlations  - Lagged correlations
  GET  /api/analytics/scores        - Recovery and strain scores
  GET  /api/analytics/chart-context - Compact chart context
  POST /api/pipeline/run            - Trigger a rebuild
  GET  /api/pipeline/status         - Pipeline run status

Example:
  go run ./cmd/pulse api
  go run ./cmd/pulse api --port 8090`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (overrides PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Pulse API Server ===")

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Override port if flag is set
	if apiPort != "" {
		cfg.Port = apiPort
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	log.WithFields(map[string]interface{}{
		"port": cfg.Port,
		"env":  cfg.Env,
	}).Info("Initializing API server")

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

	// 5. Connect to Redis (no-op cache when disabled)
	redisClient, err := redis.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()

	cache := redis.NewCache(redisClient, "pulse")

	// 6. Wire pipeline and serving layers
	orchestrator := buildOrchestrator(db, cfg, log)
	service := buildService(db, cache, log)

	// 7. Create handlers
	analyticsHandler := handlers.NewAnalyticsHandler(service, log)
	pipelineHandler := handlers.NewPipelineHandler(orchestrator, log)
	healthHandler := handlers.NewHealthHandler(db, redisClient, log)

	// 8. Create router
	router := api.NewRouter(analyticsHandler, pipelineHandler, healthHandler, log)

	// 9. Create server
	server := api.New(cfg, log, router)

	// 10. Start server with graceful shutdown
	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}

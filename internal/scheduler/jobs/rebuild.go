package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/pulse/internal/pipeline"
	"github.com/wonny/pulse/pkg/config"
	"github.com/wonny/pulse/pkg/logger"
)

// RebuildJob runs the full derivation pipeline nightly, after the
// overnight ingestion sync has landed new observations.
type RebuildJob struct {
	orchestrator *pipeline.Orchestrator
	config       *config.Config
	logger       *logger.Logger
}

// NewRebuildJob creates a new rebuild job
func NewRebuildJob(orchestrator *pipeline.Orchestrator, cfg *config.Config, log *logger.Logger) *RebuildJob {
	return &RebuildJob{
		orchestrator: orchestrator,
		config:       cfg,
		logger:       log,
	}
}

// Name returns the job name
func (j *RebuildJob) Name() string {
	return "pipeline_rebuild"
}

// Schedule returns the cron schedule from config
func (j *RebuildJob) Schedule() string {
	return j.config.Pipeline.Schedule
}

// Run executes the full rebuild
func (j *RebuildJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled pipeline rebuild")

	result, err := j.orchestrator.Run(ctx)
	if err != nil {
		return fmt.Errorf("pipeline rebuild: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"metrics":      result.MetricRows,
		"baselines":    result.BaselineRows,
		"anomalies":    result.AnomalyRows,
		"scores":       result.ScoreRows,
		"correlations": result.CorrelationRows,
		"duration":     result.Duration.String(),
	}).Info("Scheduled pipeline rebuild complete")
	return nil
}

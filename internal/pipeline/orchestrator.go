package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/pulse/internal/contracts"
	"github.com/wonny/pulse/internal/taxonomy"
	"github.com/wonny/pulse/pkg/logger"
)

// Orchestrator runs the full derivation pipeline: aggregate raw
// observations into daily metrics, derive baselines, anomalies, scores
// and correlations, then atomically swap the derived tables. The whole
// run is a pure function of the raw observation store; rerunning on
// unchanged input produces identical tables.
type Orchestrator struct {
	observations contracts.ObservationReader
	metrics      contracts.DailyMetricRepository
	baselines    contracts.BaselineRepository
	anomalies    contracts.AnomalyRepository
	scores       contracts.ScoreRepository
	correlations contracts.CorrelationRepository
	rebuilder    contracts.RebuildCoordinator
	log          *logger.Logger
	workers      int
}

// NewOrchestrator creates a new pipeline orchestrator
func NewOrchestrator(
	observations contracts.ObservationReader,
	metrics contracts.DailyMetricRepository,
	baselines contracts.BaselineRepository,
	anomalies contracts.AnomalyRepository,
	scores contracts.ScoreRepository,
	correlations contracts.CorrelationRepository,
	rebuilder contracts.RebuildCoordinator,
	log *logger.Logger,
	workers int,
) *Orchestrator {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	return &Orchestrator{
		observations: observations,
		metrics:      metrics,
		baselines:    baselines,
		anomalies:    anomalies,
		scores:       scores,
		correlations: correlations,
		rebuilder:    rebuilder,
		log:          log,
		workers:      workers,
	}
}

// RunResult summarizes one pipeline run
type RunResult struct {
	StartedAt       time.Time     `json:"started_at"`
	Duration        time.Duration `json:"duration"`
	MetricRows      int           `json:"metric_rows"`
	BaselineRows    int           `json:"baseline_rows"`
	AnomalyRows     int           `json:"anomaly_rows"`
	ScoreRows       int           `json:"score_rows"`
	CorrelationRows int           `json:"correlation_rows"`
}

// Run executes a full rebuild. On any failure the staging tables are
// discarded and the live snapshot stays untouched.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	start := time.Now()
	o.log.Info("pipeline run started")

	result, err := o.run(ctx)
	if err != nil {
		if derr := o.rebuilder.DiscardStaging(context.WithoutCancel(ctx)); derr != nil {
			o.log.WithError(derr).Warn("failed to discard staging tables")
		}
		o.log.WithError(err).Error("pipeline run failed")
		return nil, err
	}

	result.StartedAt = start
	result.Duration = time.Since(start)
	o.log.WithFields(map[string]interface{}{
		"duration":     result.Duration.String(),
		"metrics":      result.MetricRows,
		"baselines":    result.BaselineRows,
		"anomalies":    result.AnomalyRows,
		"scores":       result.ScoreRows,
		"correlations": result.CorrelationRows,
	}).Info("pipeline run complete")
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context) (*RunResult, error) {
	if err := taxonomy.Validate(); err != nil {
		return nil, err
	}
	if err := o.rebuilder.PrepareStaging(ctx); err != nil {
		return nil, err
	}

	metricsByKey, err := o.aggregate(ctx)
	if err != nil {
		return nil, err
	}

	var allMetrics []contracts.DailyMetric
	baselinesByKey := make(map[string][]contracts.Baseline)
	var allBaselines []contracts.Baseline
	var allAnomalies []contracts.Anomaly

	// Catalog order keeps every rebuild byte-stable
	for _, desc := range taxonomy.Catalog {
		metrics := metricsByKey[desc.Key]
		allMetrics = append(allMetrics, metrics...)

		if !desc.BaselineEligible {
			continue
		}
		baselines := ComputeBaselines(metrics)
		baselinesByKey[desc.Key] = baselines
		allBaselines = append(allBaselines, baselines...)

		if desc.AnomalyEligible {
			allAnomalies = append(allAnomalies, DetectAnomalies(metrics, baselines)...)
		}
	}

	allScores := ComputeScores(metricsByKey, baselinesByKey)

	allCorrelations, err := ComputeCorrelations(ctx, metricsByKey, o.workers)
	if err != nil {
		return nil, err
	}

	if err := ValidateOutputs(allBaselines, allAnomalies, allCorrelations); err != nil {
		return nil, fmt.Errorf("output validation: %w", err)
	}

	if err := o.metrics.InsertStaging(ctx, allMetrics); err != nil {
		return nil, err
	}
	if err := o.baselines.InsertStaging(ctx, allBaselines); err != nil {
		return nil, err
	}
	if err := o.anomalies.InsertStaging(ctx, allAnomalies); err != nil {
		return nil, err
	}
	if err := o.scores.InsertStaging(ctx, allScores); err != nil {
		return nil, err
	}
	if err := o.correlations.InsertStaging(ctx, allCorrelations); err != nil {
		return nil, err
	}

	if err := o.rebuilder.Swap(ctx); err != nil {
		return nil, fmt.Errorf("swap derived tables: %w", err)
	}

	return &RunResult{
		MetricRows:      len(allMetrics),
		BaselineRows:    len(allBaselines),
		AnomalyRows:     len(allAnomalies),
		ScoreRows:       len(allScores),
		CorrelationRows: len(allCorrelations),
	}, nil
}

// aggregate fetches each observation type once and fans the samples out
// to every descriptor that derives from it (heart rate feeds three).
func (o *Orchestrator) aggregate(ctx context.Context) (map[string][]contracts.DailyMetric, error) {
	types := make([]string, 0)
	seen := make(map[string]bool)
	for _, desc := range taxonomy.Catalog {
		if !seen[desc.ObservationType] {
			seen[desc.ObservationType] = true
			types = append(types, desc.ObservationType)
		}
	}

	samplesByType := make([][]contracts.Observation, len(types))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for i, obsType := range types {
		i, obsType := i, obsType
		g.Go(func() error {
			obs, err := o.observations.GetByType(gctx, obsType)
			if err != nil {
				return fmt.Errorf("load %s observations: %w", obsType, err)
			}
			samplesByType[i] = obs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byType := make(map[string][]contracts.Observation, len(types))
	for i, obsType := range types {
		byType[obsType] = samplesByType[i]
	}

	metricsByKey := make(map[string][]contracts.DailyMetric, len(taxonomy.Catalog))
	for _, desc := range taxonomy.Catalog {
		metrics := AggregateMetric(desc, byType[desc.ObservationType])
		metricsByKey[desc.Key] = metrics
		o.log.WithFields(map[string]interface{}{
			"metric": desc.Key,
			"days":   len(metrics),
		}).Debug("aggregated metric")
	}
	return metricsByKey, nil
}

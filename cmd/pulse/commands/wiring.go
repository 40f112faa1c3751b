package commands

import (
	"github.com/wonny/pulse/internal/pipeline"
	"github.com/wonny/pulse/internal/serving"
	"github.com/wonny/pulse/internal/store"
	"github.com/wonny/pulse/pkg/config"
	"github.com/wonny/pulse/pkg/database"
	"github.com/wonny/pulse/pkg/logger"
	"github.com/wonny/pulse/pkg/redis"
)

// derivedRepos bundles the repositories over the derived tables
type derivedRepos struct {
	metrics      *store.DailyMetricRepository
	baselines    *store.BaselineRepository
	anomalies    *store.AnomalyRepository
	scores       *store.ScoreRepository
	correlations *store.CorrelationRepository
}

func newDerivedRepos(db *database.DB) derivedRepos {
	return derivedRepos{
		metrics:      store.NewDailyMetricRepository(db.Pool),
		baselines:    store.NewBaselineRepository(db.Pool),
		anomalies:    store.NewAnomalyRepository(db.Pool),
		scores:       store.NewScoreRepository(db.Pool),
		correlations: store.NewCorrelationRepository(db.Pool),
	}
}

// buildOrchestrator wires the full derivation pipeline
func buildOrchestrator(db *database.DB, cfg *config.Config, log *logger.Logger) *pipeline.Orchestrator {
	repos := newDerivedRepos(db)
	return pipeline.NewOrchestrator(
		store.NewObservationRepository(db.Pool),
		repos.metrics,
		repos.baselines,
		repos.anomalies,
		repos.scores,
		repos.correlations,
		store.NewRebuilder(db.Pool),
		log,
		cfg.Pipeline.Workers,
	)
}

// buildService wires the read-only serving layer
func buildService(db *database.DB, cache *redis.Cache, log *logger.Logger) *serving.Service {
	repos := newDerivedRepos(db)
	return serving.NewService(
		repos.metrics,
		repos.baselines,
		repos.anomalies,
		repos.scores,
		repos.correlations,
		cache,
		log,
	)
}

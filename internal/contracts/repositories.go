package contracts

import (
	"context"
	"time"
)

// Repository interfaces. Implementations live in internal/store; the
// pipeline and serving layers depend only on these.

// ObservationReader reads the raw observation store (read-only)
type ObservationReader interface {
	GetByType(ctx context.Context, obsType string) ([]Observation, error)
	CountByType(ctx context.Context) (map[string]int64, error)
}

// DailyMetricRepository stores per-day metric aggregates
type DailyMetricRepository interface {
	InsertStaging(ctx context.Context, metrics []DailyMetric) error
	GetRange(ctx context.Context, key string, from, to time.Time) ([]DailyMetric, error)
	GetByDate(ctx context.Context, date time.Time) ([]DailyMetric, error)
	GetLatestDate(ctx context.Context) (time.Time, error)
	CountDaysWithValue(ctx context.Context, key string, from, to time.Time) (int, error)
}

// BaselineRepository stores rolling baseline statistics
type BaselineRepository interface {
	InsertStaging(ctx context.Context, baselines []Baseline) error
	GetRange(ctx context.Context, key string, from, to time.Time) ([]Baseline, error)
	CountForKey(ctx context.Context, key string, from, to time.Time) (int, error)
	DistinctKeys(ctx context.Context) ([]string, error)
}

// AnomalyRepository stores flagged anomaly days
type AnomalyRepository interface {
	InsertStaging(ctx context.Context, anomalies []Anomaly) error
	GetRange(ctx context.Context, from, to time.Time, minLevel AnomalyLevel) ([]Anomaly, error)
	GetForKeyAndRange(ctx context.Context, key string, from, to time.Time) ([]Anomaly, error)
	DistinctKeys(ctx context.Context) ([]string, error)
}

// ScoreRepository stores composite daily scores
type ScoreRepository interface {
	InsertStaging(ctx context.Context, scores []DerivedScore) error
	GetRange(ctx context.Context, from, to time.Time) ([]DerivedScore, error)
	GetLatest(ctx context.Context) (*DerivedScore, error)
}

// CorrelationRepository stores lagged correlation results
type CorrelationRepository interface {
	InsertStaging(ctx context.Context, correlations []Correlation) error
	GetAll(ctx context.Context) ([]Correlation, error)
	GetForMetric(ctx context.Context, key string) ([]Correlation, error)
}

// RebuildCoordinator manages the staging tables and the atomic swap
type RebuildCoordinator interface {
	PrepareStaging(ctx context.Context) error
	Swap(ctx context.Context) error
	DiscardStaging(ctx context.Context) error
}

package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/pulse/internal/contracts"
	"github.com/wonny/pulse/pkg/config"
	"github.com/wonny/pulse/pkg/logger"
)

// fakeStore implements every repository interface in memory so a full
// pipeline run can be exercised without Postgres.
type fakeStore struct {
	observations map[string][]contracts.Observation

	metrics      []contracts.DailyMetric
	baselines    []contracts.Baseline
	anomalies    []contracts.Anomaly
	scores       []contracts.DerivedScore
	correlations []contracts.Correlation

	prepared  bool
	swapped   bool
	discarded bool
}

func (f *fakeStore) GetByType(_ context.Context, obsType string) ([]contracts.Observation, error) {
	return f.observations[obsType], nil
}

func (f *fakeStore) CountByType(context.Context) (map[string]int64, error) {
	counts := make(map[string]int64)
	for t, obs := range f.observations {
		counts[t] = int64(len(obs))
	}
	return counts, nil
}

func (f *fakeStore) PrepareStaging(context.Context) error { f.prepared = true; return nil }
func (f *fakeStore) Swap(context.Context) error           { f.swapped = true; return nil }
func (f *fakeStore) DiscardStaging(context.Context) error { f.discarded = true; return nil }

type fakeMetricRepo struct{ store *fakeStore }

func (r *fakeMetricRepo) InsertStaging(_ context.Context, metrics []contracts.DailyMetric) error {
	r.store.metrics = metrics
	return nil
}
func (r *fakeMetricRepo) GetRange(context.Context, string, time.Time, time.Time) ([]contracts.DailyMetric, error) {
	return nil, nil
}
func (r *fakeMetricRepo) GetByDate(context.Context, time.Time) ([]contracts.DailyMetric, error) {
	return nil, nil
}
func (r *fakeMetricRepo) GetLatestDate(context.Context) (time.Time, error) { return time.Time{}, nil }
func (r *fakeMetricRepo) CountDaysWithValue(context.Context, string, time.Time, time.Time) (int, error) {
	return 0, nil
}

type fakeBaselineRepo struct{ store *fakeStore }

func (r *fakeBaselineRepo) InsertStaging(_ context.Context, baselines []contracts.Baseline) error {
	r.store.baselines = baselines
	return nil
}
func (r *fakeBaselineRepo) GetRange(context.Context, string, time.Time, time.Time) ([]contracts.Baseline, error) {
	return nil, nil
}
func (r *fakeBaselineRepo) CountForKey(context.Context, string, time.Time, time.Time) (int, error) {
	return 0, nil
}
func (r *fakeBaselineRepo) DistinctKeys(context.Context) ([]string, error) { return nil, nil }

type fakeAnomalyRepo struct{ store *fakeStore }

func (r *fakeAnomalyRepo) InsertStaging(_ context.Context, anomalies []contracts.Anomaly) error {
	r.store.anomalies = anomalies
	return nil
}
func (r *fakeAnomalyRepo) GetRange(context.Context, time.Time, time.Time, contracts.AnomalyLevel) ([]contracts.Anomaly, error) {
	return nil, nil
}
func (r *fakeAnomalyRepo) GetForKeyAndRange(context.Context, string, time.Time, time.Time) ([]contracts.Anomaly, error) {
	return nil, nil
}
func (r *fakeAnomalyRepo) DistinctKeys(context.Context) ([]string, error) { return nil, nil }

type fakeScoreRepo struct{ store *fakeStore }

func (r *fakeScoreRepo) InsertStaging(_ context.Context, scores []contracts.DerivedScore) error {
	r.store.scores = scores
	return nil
}
func (r *fakeScoreRepo) GetRange(context.Context, time.Time, time.Time) ([]contracts.DerivedScore, error) {
	return nil, nil
}
func (r *fakeScoreRepo) GetLatest(context.Context) (*contracts.DerivedScore, error) { return nil, nil }

type fakeCorrelationRepo struct{ store *fakeStore }

func (r *fakeCorrelationRepo) InsertStaging(_ context.Context, correlations []contracts.Correlation) error {
	r.store.correlations = correlations
	return nil
}
func (r *fakeCorrelationRepo) GetAll(context.Context) ([]contracts.Correlation, error) {
	return nil, nil
}
func (r *fakeCorrelationRepo) GetForMetric(context.Context, string) ([]contracts.Correlation, error) {
	return nil, nil
}

func testLogger() *logger.Logger {
	return logger.New(&config.Config{Env: "test", LogLevel: "error", LogFormat: "json"})
}

func newTestOrchestrator(store *fakeStore) *Orchestrator {
	return NewOrchestrator(
		store,
		&fakeMetricRepo{store: store},
		&fakeBaselineRepo{store: store},
		&fakeAnomalyRepo{store: store},
		&fakeScoreRepo{store: store},
		&fakeCorrelationRepo{store: store},
		store,
		testLogger(),
		2,
	)
}

func TestOrchestratorRunEndToEnd(t *testing.T) {
	store := &fakeStore{observations: make(map[string][]contracts.Observation)}

	// 45 days of steps and resting heart rate
	for i := 0; i < 45; i++ {
		d := at(2025, 1, 1, 9).AddDate(0, 0, i)
		store.observations["StepCount"] = append(store.observations["StepCount"],
			obs("StepCount", 8000+float64((i*37)%17)*50, d, "Apple Watch"))
		store.observations["RestingHeartRate"] = append(store.observations["RestingHeartRate"],
			obs("RestingHeartRate", 52+float64(i%5), d, "Apple Watch"))
	}

	o := newTestOrchestrator(store)
	result, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, store.prepared)
	assert.True(t, store.swapped)
	assert.False(t, store.discarded)

	assert.Equal(t, 90, result.MetricRows, "45 days of two metrics")
	assert.Greater(t, result.BaselineRows, 0)
	assert.Equal(t, 45, result.ScoreRows, "one score row per date")
	assert.Len(t, store.metrics, 90)

	// Every score row exists but none computes: HRV never observed
	for _, s := range store.scores {
		assert.Nil(t, s.RecoveryScore)
		assert.Nil(t, s.StrainScore)
	}
}

func TestOrchestratorRunIsDeterministic(t *testing.T) {
	store := &fakeStore{observations: make(map[string][]contracts.Observation)}
	for i := 0; i < 40; i++ {
		d := at(2025, 1, 1, 9).AddDate(0, 0, i)
		store.observations["StepCount"] = append(store.observations["StepCount"],
			obs("StepCount", 6000+float64((i*13)%29)*100, d, "iPhone"))
	}

	o := newTestOrchestrator(store)
	_, err := o.Run(context.Background())
	require.NoError(t, err)
	first := store.metrics
	firstBaselines := store.baselines

	_, err = o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, store.metrics)
	assert.Equal(t, firstBaselines, store.baselines)
}

func TestOrchestratorEmptyStore(t *testing.T) {
	store := &fakeStore{observations: make(map[string][]contracts.Observation)}

	o := newTestOrchestrator(store)
	result, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, result.MetricRows)
	assert.Zero(t, result.ScoreRows)
	assert.True(t, store.swapped, "an empty rebuild still swaps to empty tables")
}

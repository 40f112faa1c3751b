package serving

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/pulse/internal/contracts"
	"github.com/wonny/pulse/pkg/config"
	"github.com/wonny/pulse/pkg/logger"
	"github.com/wonny/pulse/pkg/redis"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// memStore backs every repository interface with in-memory slices
type memStore struct {
	metrics      []contracts.DailyMetric
	baselines    []contracts.Baseline
	anomalies    []contracts.Anomaly
	scores       []contracts.DerivedScore
	correlations []contracts.Correlation
}

func inRange(d, from, to time.Time) bool {
	return !d.Before(from) && !d.After(to)
}

func (s *memStore) InsertStaging(context.Context, []contracts.DailyMetric) error { return nil }

func (s *memStore) GetRange(_ context.Context, key string, from, to time.Time) ([]contracts.DailyMetric, error) {
	var out []contracts.DailyMetric
	for _, m := range s.metrics {
		if m.MetricKey == key && inRange(m.Date, from, to) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memStore) GetByDate(_ context.Context, d time.Time) ([]contracts.DailyMetric, error) {
	var out []contracts.DailyMetric
	for _, m := range s.metrics {
		if m.Date.Equal(d) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memStore) GetLatestDate(context.Context) (time.Time, error) {
	var latest time.Time
	for _, m := range s.metrics {
		if m.Date.After(latest) {
			latest = m.Date
		}
	}
	return latest, nil
}

func (s *memStore) CountDaysWithValue(_ context.Context, key string, from, to time.Time) (int, error) {
	n := 0
	for _, m := range s.metrics {
		if m.MetricKey == key && inRange(m.Date, from, to) && m.Value != nil {
			n++
		}
	}
	return n, nil
}

type memBaselines struct{ store *memStore }

func (r *memBaselines) InsertStaging(context.Context, []contracts.Baseline) error { return nil }
func (r *memBaselines) GetRange(_ context.Context, key string, from, to time.Time) ([]contracts.Baseline, error) {
	var out []contracts.Baseline
	for _, b := range r.store.baselines {
		if b.MetricKey == key && inRange(b.Date, from, to) {
			out = append(out, b)
		}
	}
	return out, nil
}
func (r *memBaselines) CountForKey(_ context.Context, key string, from, to time.Time) (int, error) {
	rows, _ := r.GetRange(context.Background(), key, from, to)
	return len(rows), nil
}
func (r *memBaselines) DistinctKeys(context.Context) ([]string, error) { return nil, nil }

type memAnomalies struct{ store *memStore }

func (r *memAnomalies) InsertStaging(context.Context, []contracts.Anomaly) error { return nil }
func (r *memAnomalies) GetRange(_ context.Context, from, to time.Time, minLevel contracts.AnomalyLevel) ([]contracts.Anomaly, error) {
	var out []contracts.Anomaly
	for _, a := range r.store.anomalies {
		if inRange(a.Date, from, to) && a.Level.AtLeast(minLevel) {
			out = append(out, a)
		}
	}
	return out, nil
}
func (r *memAnomalies) GetForKeyAndRange(_ context.Context, key string, from, to time.Time) ([]contracts.Anomaly, error) {
	var out []contracts.Anomaly
	for _, a := range r.store.anomalies {
		if a.MetricKey == key && inRange(a.Date, from, to) {
			out = append(out, a)
		}
	}
	return out, nil
}
func (r *memAnomalies) DistinctKeys(context.Context) ([]string, error) { return nil, nil }

type memScores struct{ store *memStore }

func (r *memScores) InsertStaging(context.Context, []contracts.DerivedScore) error { return nil }
func (r *memScores) GetRange(_ context.Context, from, to time.Time) ([]contracts.DerivedScore, error) {
	var out []contracts.DerivedScore
	for _, s := range r.store.scores {
		if inRange(s.Date, from, to) {
			out = append(out, s)
		}
	}
	return out, nil
}
func (r *memScores) GetLatest(context.Context) (*contracts.DerivedScore, error) {
	if len(r.store.scores) == 0 {
		return nil, nil
	}
	latest := r.store.scores[len(r.store.scores)-1]
	return &latest, nil
}

type memCorrelations struct{ store *memStore }

func (r *memCorrelations) InsertStaging(context.Context, []contracts.Correlation) error { return nil }
func (r *memCorrelations) GetAll(context.Context) ([]contracts.Correlation, error) {
	return r.store.correlations, nil
}
func (r *memCorrelations) GetForMetric(_ context.Context, key string) ([]contracts.Correlation, error) {
	var out []contracts.Correlation
	for _, c := range r.store.correlations {
		if c.MetricA == key || c.MetricB == key {
			out = append(out, c)
		}
	}
	return out, nil
}

func newTestService(store *memStore) *Service {
	cfg := &config.Config{Env: "test", LogLevel: "error", LogFormat: "json"}
	client, _ := redis.New(cfg)
	return NewService(
		store,
		&memBaselines{store: store},
		&memAnomalies{store: store},
		&memScores{store: store},
		&memCorrelations{store: store},
		redis.NewCache(client, "pulse"),
		logger.New(cfg),
	)
}

func TestGetCatalog(t *testing.T) {
	svc := newTestService(&memStore{})
	resp, err := svc.GetCatalog(context.Background())
	require.NoError(t, err)

	assert.Equal(t, resp.Count, len(resp.Metrics))
	byKey := make(map[string]CatalogEntry)
	for _, e := range resp.Metrics {
		byKey[e.MetricKey] = e
	}

	sleep := byKey["sleep_duration"]
	assert.True(t, sleep.IsSparse)
	assert.False(t, sleep.SupportsAnomalies)
	assert.True(t, sleep.SupportsCorrelations)

	vo2 := byKey["vo2max"]
	assert.True(t, vo2.IsSparse)
	assert.False(t, vo2.SupportsCorrelations)

	steps := byKey["steps"]
	assert.True(t, steps.SupportsAnomalies)
}

func TestGetDailySeriesValidation(t *testing.T) {
	svc := newTestService(&memStore{})
	ctx := context.Background()

	_, err := svc.GetDailySeries(ctx, "body_mass", date(2025, 1, 1), date(2025, 1, 31))
	assert.True(t, errors.Is(err, ErrInvalidRequest))

	_, err = svc.GetDailySeries(ctx, "steps", date(2025, 2, 1), date(2025, 1, 1))
	assert.True(t, errors.Is(err, ErrInvalidRequest))

	_, err = svc.GetDailySeries(ctx, "steps", date(2023, 1, 1), date(2025, 6, 1))
	assert.True(t, errors.Is(err, ErrInvalidRequest), "ranges beyond 730 days are rejected")
}

func TestGetDailySeriesJoinsBaselineAndAnomaly(t *testing.T) {
	store := &memStore{
		metrics: []contracts.DailyMetric{
			{Date: date(2025, 3, 1), MetricKey: "steps", Value: fptr(8000), Unit: "count"},
			{Date: date(2025, 3, 2), MetricKey: "steps", Value: nil, Unit: "count"},
			{Date: date(2025, 3, 3), MetricKey: "steps", Value: fptr(25000), Unit: "count"},
		},
		baselines: []contracts.Baseline{
			{Date: date(2025, 3, 3), MetricKey: "steps", Median: 8000, P25: 7000, P75: 9000},
		},
		anomalies: []contracts.Anomaly{
			{Date: date(2025, 3, 3), MetricKey: "steps", Level: contracts.AnomalyStrong},
		},
	}

	resp, err := newTestService(store).GetDailySeries(context.Background(), "steps", date(2025, 3, 1), date(2025, 3, 5))
	require.NoError(t, err)
	require.Equal(t, 3, resp.Count)

	assert.Nil(t, resp.Data[1].Value, "missing days stay null")
	assert.Nil(t, resp.Data[0].BaselineMedian)
	assert.Equal(t, contracts.AnomalyNone, resp.Data[0].AnomalyLevel)

	spike := resp.Data[2]
	require.NotNil(t, spike.BaselineMedian)
	assert.InDelta(t, 8000, *spike.BaselineMedian, 1e-9)
	assert.Equal(t, contracts.AnomalyStrong, spike.AnomalyLevel)
}

func TestGetOverviewTiles(t *testing.T) {
	store := &memStore{
		metrics: []contracts.DailyMetric{
			{Date: date(2025, 3, 1), MetricKey: "steps", Value: fptr(8000), Unit: "count"},
			{Date: date(2025, 3, 7), MetricKey: "steps", Value: fptr(10000), Unit: "count"},
		},
		baselines: []contracts.Baseline{
			{Date: date(2025, 3, 7), MetricKey: "steps", Median: 8000},
		},
	}

	resp, err := newTestService(store).GetOverview(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "2025-03-07", resp.AsOfDate)

	tile := resp.Tiles[0]
	assert.Equal(t, "steps", tile.MetricKey)
	require.NotNil(t, tile.LatestValue)
	assert.InDelta(t, 10000, *tile.LatestValue, 1e-9)
	require.NotNil(t, tile.DeltaVsBaseline)
	assert.InDelta(t, 2000, *tile.DeltaVsBaseline, 1e-9)
	require.NotNil(t, tile.DeltaPercent)
	assert.InDelta(t, 25, *tile.DeltaPercent, 1e-9)
	assert.Equal(t, contracts.TrendUp, tile.Trend7d)
	assert.Equal(t, contracts.AnomalyNone, tile.AnomalyLevel)
}

func TestGetOverviewEmptyStore(t *testing.T) {
	resp, err := newTestService(&memStore{}).GetOverview(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, resp.Count)
}

func TestGetAnomaliesMinLevel(t *testing.T) {
	store := &memStore{
		anomalies: []contracts.Anomaly{
			{Date: date(2025, 3, 1), MetricKey: "steps", Level: contracts.AnomalyMild, Value: 14000, BaselineMedian: 8000},
			{Date: date(2025, 3, 2), MetricKey: "steps", Level: contracts.AnomalyStrong, Value: 25000, BaselineMedian: 8000},
		},
	}
	svc := newTestService(store)
	ctx := context.Background()

	resp, err := svc.GetAnomalies(ctx, date(2025, 3, 1), date(2025, 3, 31), contracts.AnomalyMild)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Count)

	resp, err = svc.GetAnomalies(ctx, date(2025, 3, 1), date(2025, 3, 31), contracts.AnomalyStrong)
	require.NoError(t, err)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, contracts.AnomalyStrong, resp.Anomalies[0].AnomalyLevel)
	assert.Equal(t, "Steps", resp.Anomalies[0].DisplayName)

	// Unset level defaults to mild
	resp, err = svc.GetAnomalies(ctx, date(2025, 3, 1), date(2025, 3, 31), contracts.AnomalyNone)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, contracts.AnomalyMild, resp.MinLevel)
}

func TestGetCorrelations(t *testing.T) {
	store := &memStore{
		correlations: []contracts.Correlation{
			{MetricA: "sleep_duration", MetricB: "hrv_sdnn", LagDays: -1, Corr: 0.6543, N: 60, WindowDays: 90},
		},
	}

	resp, err := newTestService(store).GetCorrelations(context.Background(), "hrv_sdnn", 0)
	require.NoError(t, err)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, 90, resp.WindowDays, "unset window defaults to 90")

	item := resp.Correlations[0]
	assert.InDelta(t, 0.654, item.Corr, 1e-9, "coefficients round to 3 places")
	assert.Equal(t, "Sleep Duration", item.MetricADisplay)
	assert.Contains(t, item.Interpretation, "Strong positive correlation")

	resp, err = newTestService(store).GetCorrelations(context.Background(), "hrv_sdnn", 30)
	require.NoError(t, err)
	assert.Zero(t, resp.Count, "rows stored for other windows are filtered out")
	assert.Equal(t, 30, resp.WindowDays)

	_, err = newTestService(store).GetCorrelations(context.Background(), "hrv_sdnn", -1)
	assert.True(t, errors.Is(err, ErrInvalidRequest))

	_, err = newTestService(store).GetCorrelations(context.Background(), "nope", 0)
	assert.True(t, errors.Is(err, ErrInvalidRequest))
}

func TestGetScores(t *testing.T) {
	r67, s40 := 67, 40
	store := &memStore{
		scores: []contracts.DerivedScore{
			{Date: date(2025, 3, 1)},
			{Date: date(2025, 3, 2), RecoveryScore: &r67, RecoveryLabel: "Ready", RecoveryColor: "green",
				StrainScore: &s40, StrainLabel: "Moderate", StrainPrimaryMetric: "effort_load"},
		},
	}

	resp, err := newTestService(store).GetScores(context.Background(), date(2025, 3, 1), date(2025, 3, 31))
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Count)
	assert.Nil(t, resp.Scores[0].RecoveryScore)

	require.NotNil(t, resp.Latest)
	require.NotNil(t, resp.Latest.RecoveryScore)
	assert.Equal(t, 67, *resp.Latest.RecoveryScore)
	assert.Equal(t, "Ready", resp.Latest.RecoveryLabel)
}

func TestGetChartContext(t *testing.T) {
	store := &memStore{}
	// 10 days, 8 with data
	for i := 0; i < 10; i++ {
		m := contracts.DailyMetric{
			Date: date(2025, 3, 1).AddDate(0, 0, i), MetricKey: "steps", Unit: "count", SampleCount: 50,
		}
		if i != 3 && i != 7 {
			m.Value = fptr(8000 + float64(i)*100)
		}
		store.metrics = append(store.metrics, m)
	}
	store.baselines = []contracts.Baseline{
		{Date: date(2025, 3, 10), MetricKey: "steps", Median: 8200, P25: 8000, P75: 8500},
	}
	store.anomalies = []contracts.Anomaly{
		{Date: date(2025, 3, 5), MetricKey: "steps", Level: contracts.AnomalyMild, Reason: "steps elevated (9000.0 vs baseline 8200.0)"},
	}
	store.correlations = []contracts.Correlation{
		{MetricA: "steps", MetricB: "sleep_duration", LagDays: 0, Corr: 0.31, N: 45, WindowDays: 90},
	}

	resp, err := newTestService(store).GetChartContext(context.Background(), "steps", date(2025, 3, 1), date(2025, 3, 10), nil)
	require.NoError(t, err)

	assert.Equal(t, 10, resp.TimeSeries.LastNDays)
	require.NotNil(t, resp.TimeSeries.MinValue)
	assert.InDelta(t, 8000, *resp.TimeSeries.MinValue, 1e-9)
	require.NotNil(t, resp.TimeSeries.MaxValue)
	assert.InDelta(t, 8900, *resp.TimeSeries.MaxValue, 1e-9)

	assert.True(t, resp.Baseline.HasBaseline)
	assert.Equal(t, 1, resp.Anomalies.MildCount)
	assert.Equal(t, 1, resp.Anomalies.TotalCount)
	require.Len(t, resp.Correlations, 1)

	assert.Equal(t, 10, resp.DataQuality.TotalDays)
	assert.Equal(t, 8, resp.DataQuality.DaysWithData)
	assert.InDelta(t, 80.0, resp.DataQuality.CoveragePercent, 1e-9)

	// 80% coverage with baselines reads as medium confidence
	assert.Equal(t, contracts.ConfidenceMedium, resp.ConfidenceLevel)
	assert.Contains(t, resp.ConfidenceReason, "Partial data coverage")
}

func TestGetChartContextSparseMetricSkipsCorrelations(t *testing.T) {
	store := &memStore{
		metrics: []contracts.DailyMetric{
			{Date: date(2025, 3, 1), MetricKey: "vo2max", Value: fptr(42), Unit: "mL/kg/min"},
		},
		correlations: []contracts.Correlation{
			{MetricA: "vo2max", MetricB: "steps", LagDays: 0, Corr: 0.9, N: 45},
		},
	}

	resp, err := newTestService(store).GetChartContext(context.Background(), "vo2max", date(2025, 3, 1), date(2025, 3, 1), nil)
	require.NoError(t, err)
	assert.Empty(t, resp.Correlations)
}

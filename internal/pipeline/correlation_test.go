package pipeline

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/pulse/internal/contracts"
)

// linkedSeries builds days of two metrics where b follows a with the
// given lead (b on day d predicts a on day d+lead).
func linkedSeries(days int, lead int) map[string][]contracts.DailyMetric {
	start := date(2025, 1, 1)
	metrics := make(map[string][]contracts.DailyMetric)
	for i := 0; i < days; i++ {
		d := start.AddDate(0, 0, i)
		// Deterministic wobble so the series has variance
		wobble := float64((i*37)%17) - 8
		sleep := 420 + wobble*10
		metrics["sleep_duration"] = append(metrics["sleep_duration"],
			metricRow("sleep_duration", d, fptr(sleep)))
		metrics["hrv_sdnn"] = append(metrics["hrv_sdnn"],
			metricRow("hrv_sdnn", d.AddDate(0, 0, lead), fptr(30+sleep/10)))
	}
	return metrics
}

func TestComputeCorrelationsFindsLaggedLink(t *testing.T) {
	metrics := linkedSeries(60, 1)

	correlations, err := ComputeCorrelations(context.Background(), metrics, 2)
	require.NoError(t, err)
	require.NotEmpty(t, correlations)

	var found *contracts.Correlation
	for i := range correlations {
		c := correlations[i]
		if c.MetricA == "sleep_duration" && c.MetricB == "hrv_sdnn" && c.LagDays == -1 {
			found = &correlations[i]
		}
	}
	require.NotNil(t, found, "hrv one day after sleep should correlate at lag -1")
	assert.InDelta(t, 1.0, found.Corr, 1e-6)
	assert.GreaterOrEqual(t, found.N, CorrelationMinPairs)
	assert.Equal(t, CorrelationWindowDays, found.WindowDays)
}

func TestComputeCorrelationsRequiresMinimumOverlap(t *testing.T) {
	metrics := linkedSeries(20, 0)

	correlations, err := ComputeCorrelations(context.Background(), metrics, 2)
	require.NoError(t, err)
	assert.Empty(t, correlations, "20 overlapping days is below the floor")
}

func TestComputeCorrelationsDropsWeakCoefficients(t *testing.T) {
	start := date(2025, 1, 1)
	metrics := make(map[string][]contracts.DailyMetric)
	for i := 0; i < 60; i++ {
		d := start.AddDate(0, 0, i)
		// Orthogonal wobbles: near-zero correlation
		metrics["sleep_duration"] = append(metrics["sleep_duration"],
			metricRow("sleep_duration", d, fptr(400+float64((i*31)%13))))
		metrics["hrv_sdnn"] = append(metrics["hrv_sdnn"],
			metricRow("hrv_sdnn", d, fptr(50+float64((i*17)%11))))
	}

	correlations, err := ComputeCorrelations(context.Background(), metrics, 2)
	require.NoError(t, err)
	for _, c := range correlations {
		assert.GreaterOrEqual(t, math.Abs(c.Corr), CorrelationMinAbsR)
	}
}

func TestComputeCorrelationsCoverFullHistory(t *testing.T) {
	// Strongly linked overlap that ended 200 days before the newest
	// row must still be reported
	metrics := linkedSeries(40, 0)
	recent := latestDayIn(metrics).AddDate(0, 0, 200)
	metrics["sleep_duration"] = append(metrics["sleep_duration"],
		metricRow("sleep_duration", recent, fptr(400)))

	correlations, err := ComputeCorrelations(context.Background(), metrics, 2)
	require.NoError(t, err)

	var found *contracts.Correlation
	for i := range correlations {
		c := correlations[i]
		if c.MetricA == "sleep_duration" && c.MetricB == "hrv_sdnn" && c.LagDays == 0 {
			found = &correlations[i]
		}
	}
	require.NotNil(t, found, "old overlap must not age out")
	assert.InDelta(t, 1.0, found.Corr, 1e-6)
	assert.Equal(t, 40, found.N)
}

func latestDayIn(metrics map[string][]contracts.DailyMetric) time.Time {
	var latest time.Time
	for _, ms := range metrics {
		for _, m := range ms {
			if m.Date.After(latest) {
				latest = m.Date
			}
		}
	}
	return latest
}

func TestPearson(t *testing.T) {
	r, ok := pearson([]float64{1, 2, 3, 4}, []float64{2, 4, 6, 8})
	require.True(t, ok)
	assert.InDelta(t, 1.0, r, 1e-9)

	r, ok = pearson([]float64{1, 2, 3, 4}, []float64{8, 6, 4, 2})
	require.True(t, ok)
	assert.InDelta(t, -1.0, r, 1e-9)

	_, ok = pearson([]float64{1, 1, 1}, []float64{2, 4, 6})
	assert.False(t, ok, "zero variance has no defined correlation")
}

func TestCuratedPairsAreSupported(t *testing.T) {
	for _, p := range CuratedPairs {
		assert.True(t, supportsCorrelations(p.A), p.A)
		assert.True(t, supportsCorrelations(p.B), p.B)
	}
}

package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/pulse/internal/contracts"
)

func fptr(v float64) *float64 { return &v }

func dailySeries(key string, start time.Time, values []*float64) []contracts.DailyMetric {
	metrics := make([]contracts.DailyMetric, 0, len(values))
	for i, v := range values {
		metrics = append(metrics, contracts.DailyMetric{
			Date:      start.AddDate(0, 0, i),
			MetricKey: key,
			Value:     v,
		})
	}
	return metrics
}

func constantSeries(key string, start time.Time, days int, value float64) []contracts.DailyMetric {
	values := make([]*float64, days)
	for i := range values {
		values[i] = fptr(value)
	}
	return dailySeries(key, start, values)
}

func TestBaselineWindowExcludesOwnDay(t *testing.T) {
	// 39 steady days then one huge spike. The spike day's baseline
	// must reflect only the steady history.
	metrics := constantSeries("steps", date(2025, 1, 1), 39, 8000)
	spikeDay := date(2025, 2, 9)
	metrics = append(metrics, contracts.DailyMetric{
		Date: spikeDay, MetricKey: "steps", Value: fptr(25000),
	})

	baselines := ComputeBaselines(metrics)
	require.NotEmpty(t, baselines)

	last := baselines[len(baselines)-1]
	assert.Equal(t, spikeDay, last.Date)
	assert.InDelta(t, 8000, last.Median, 1e-9)
	assert.InDelta(t, 8000, last.P25, 1e-9)
	assert.InDelta(t, 8000, last.P75, 1e-9)
	assert.InDelta(t, 0, last.MAD, 1e-9)
	assert.Equal(t, 28, last.DataPoints)
}

func TestBaselineRequiresMinimumPoints(t *testing.T) {
	metrics := constantSeries("steps", date(2025, 1, 1), 11, 8000)
	baselines := ComputeBaselines(metrics)

	// Days 1..10 have fewer than 10 prior points; day 11 is the first
	// with a full minimum window.
	require.Len(t, baselines, 1)
	assert.Equal(t, date(2025, 1, 11), baselines[0].Date)
	assert.Equal(t, 10, baselines[0].DataPoints)
}

func TestBaselineWindowEvictsOldDays(t *testing.T) {
	// 28 low days, then 28 high days. The last day's window must hold
	// only high values.
	metrics := constantSeries("steps", date(2025, 1, 1), 28, 1000)
	metrics = append(metrics, constantSeries("steps", date(2025, 1, 29), 28, 9000)...)

	baselines := ComputeBaselines(metrics)
	require.NotEmpty(t, baselines)

	// Feb 25's window is Jan 28 .. Feb 24: one low day left, 27 high
	last := baselines[len(baselines)-1]
	assert.Equal(t, date(2025, 2, 25), last.Date)
	assert.InDelta(t, 9000, last.Median, 1e-9)
	assert.InDelta(t, 9000, last.P25, 1e-9)
	assert.Equal(t, 28, last.DataPoints)
}

func TestBaselineSkipsNullDays(t *testing.T) {
	values := make([]*float64, 0, 30)
	for i := 0; i < 30; i++ {
		if i%2 == 0 {
			values = append(values, fptr(8000))
		} else {
			values = append(values, nil)
		}
	}
	metrics := dailySeries("steps", date(2025, 1, 1), values)

	valued := make(map[time.Time]bool)
	for _, m := range metrics {
		if m.Value != nil {
			valued[m.Date] = true
		}
	}

	baselines := ComputeBaselines(metrics)
	require.NotEmpty(t, baselines)
	for _, b := range baselines {
		// 28-day window holds at most 14 valued days
		assert.LessOrEqual(t, b.DataPoints, 14)
		assert.GreaterOrEqual(t, b.DataPoints, BaselineMinPoints)
		// Null-valued days get no baseline row
		assert.True(t, valued[b.Date], "baseline on null day %s", b.Date.Format("2006-01-02"))
	}
}

func TestBaselinePercentilesInterpolate(t *testing.T) {
	// 1..12 as history, baseline on day 13
	values := make([]*float64, 0, 13)
	for i := 1; i <= 12; i++ {
		values = append(values, fptr(float64(i)))
	}
	values = append(values, fptr(100))
	metrics := dailySeries("hrv_sdnn", date(2025, 1, 1), values)

	baselines := ComputeBaselines(metrics)
	require.NotEmpty(t, baselines)
	last := baselines[len(baselines)-1]
	require.Equal(t, 12, last.DataPoints)

	assert.InDelta(t, 6.5, last.Median, 1e-9)
	assert.InDelta(t, 3.75, last.P25, 1e-9)
	assert.InDelta(t, 9.25, last.P75, 1e-9)
	assert.InDelta(t, 3.0, last.MAD, 1e-9)
}

func TestBaselineEmptyInput(t *testing.T) {
	assert.Empty(t, ComputeBaselines(nil))
	assert.Empty(t, ComputeBaselines(dailySeries("steps", date(2025, 1, 1), []*float64{nil, nil})))
}

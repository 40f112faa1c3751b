package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/pulse/internal/contracts"
)

func TestDetectAnomaliesFlagsOutlierAgainstCleanBaseline(t *testing.T) {
	// Steady month of ~8000 steps, then a 25000-step day. The spike is
	// judged against the steady history only, so it flags strong.
	values := []*float64{
		fptr(7800), fptr(8200), fptr(7900), fptr(8100), fptr(8000),
		fptr(7700), fptr(8300), fptr(7950), fptr(8050), fptr(8150),
		fptr(7850), fptr(8250), fptr(7900), fptr(8100), fptr(8000),
		fptr(7800), fptr(8200), fptr(7950), fptr(8050), fptr(7900),
		fptr(8100), fptr(8000), fptr(7850), fptr(8150), fptr(7950),
		fptr(8050), fptr(7900), fptr(8100), fptr(8000),
	}
	metrics := dailySeries("steps", date(2025, 1, 1), values)
	metrics = append(metrics, contracts.DailyMetric{
		Date: date(2025, 1, 30), MetricKey: "steps", Value: fptr(25000),
	})

	baselines := ComputeBaselines(metrics)
	anomalies := DetectAnomalies(metrics, baselines)

	require.Len(t, anomalies, 1)
	a := anomalies[0]
	assert.Equal(t, date(2025, 1, 30), a.Date)
	assert.Equal(t, "steps", a.MetricKey)
	assert.Equal(t, contracts.AnomalyStrong, a.Level)
	assert.Greater(t, a.ZMAD, anomalyStrongZ)
	assert.Contains(t, a.Reason, "steps unusually high")
	assert.Contains(t, a.Reason, "vs baseline")
}

func TestDetectAnomaliesQuietDaysNotFlagged(t *testing.T) {
	values := []*float64{
		fptr(7800), fptr(8200), fptr(7900), fptr(8100), fptr(8000),
		fptr(7700), fptr(8300), fptr(7950), fptr(8050), fptr(8150),
		fptr(7850), fptr(8250), fptr(7900), fptr(8100), fptr(8000),
	}
	metrics := dailySeries("steps", date(2025, 1, 1), values)

	baselines := ComputeBaselines(metrics)
	anomalies := DetectAnomalies(metrics, baselines)
	assert.Empty(t, anomalies)
}

func TestDetectAnomaliesSkipsFlatWindow(t *testing.T) {
	// A perfectly flat history has MAD 0; deviation is undefined, not
	// infinite, so nothing is flagged.
	metrics := constantSeries("stand_hours", date(2025, 1, 1), 20, 12)
	metrics = append(metrics, contracts.DailyMetric{
		Date: date(2025, 1, 21), MetricKey: "stand_hours", Value: fptr(3),
	})

	baselines := ComputeBaselines(metrics)
	anomalies := DetectAnomalies(metrics, baselines)
	assert.Empty(t, anomalies)
}

func TestDetectAnomaliesSkipsDaysWithoutBaselineOrValue(t *testing.T) {
	metrics := dailySeries("steps", date(2025, 1, 1), []*float64{
		fptr(8000), nil, fptr(50000),
	})

	// Too little history for any baseline
	anomalies := DetectAnomalies(metrics, ComputeBaselines(metrics))
	assert.Empty(t, anomalies)
}

func TestLevelForZ(t *testing.T) {
	tests := []struct {
		z    float64
		want contracts.AnomalyLevel
	}{
		{0, contracts.AnomalyNone},
		{2.4, contracts.AnomalyNone},
		{2.5, contracts.AnomalyMild},
		{-2.6, contracts.AnomalyMild},
		{3.4, contracts.AnomalyMild},
		{3.5, contracts.AnomalyStrong},
		{-4.0, contracts.AnomalyStrong},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, levelForZ(tt.z), "z=%v", tt.z)
	}
}

func TestAnomalyReasonWording(t *testing.T) {
	assert.Equal(t,
		"steps unusually high (25000.0 vs baseline 8012.0)",
		anomalyReason("steps", 25000, 8012, 5.2, contracts.AnomalyStrong))
	assert.Equal(t,
		"hrv_sdnn unusually low (12.0 vs baseline 48.5)",
		anomalyReason("hrv_sdnn", 12, 48.5, -4.1, contracts.AnomalyStrong))
	assert.Equal(t,
		"resting_heart_rate elevated (64.0 vs baseline 55.0)",
		anomalyReason("resting_heart_rate", 64, 55, 2.8, contracts.AnomalyMild))
	assert.Equal(t,
		"active_energy reduced (210.0 vs baseline 540.0)",
		anomalyReason("active_energy", 210, 540, -2.7, contracts.AnomalyMild))
}

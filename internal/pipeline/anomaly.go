package pipeline

import (
	"fmt"
	"math"
	"time"

	"github.com/wonny/pulse/internal/contracts"
)

const (
	// madConsistency scales MAD to the standard deviation of a normal
	// distribution, so thresholds read in sigma-like units.
	madConsistency = 1.4826

	// anomaly thresholds on the robust z-score
	anomalyMildZ   = 2.5
	anomalyStrongZ = 3.5
)

// DetectAnomalies compares one metric's daily values against their
// same-day baselines and flags deviations. Only flagged days produce
// rows; a day with no value, no baseline, or a flat window (MAD 0) is
// never flagged. Inputs must be sorted by date ascending.
func DetectAnomalies(metrics []contracts.DailyMetric, baselines []contracts.Baseline) []contracts.Anomaly {
	byDate := make(map[time.Time]contracts.Baseline, len(baselines))
	for _, b := range baselines {
		byDate[b.Date] = b
	}

	var anomalies []contracts.Anomaly
	for _, m := range metrics {
		if m.Value == nil {
			continue
		}
		b, ok := byDate[m.Date]
		if !ok || b.MAD <= 0 {
			continue
		}

		z := (*m.Value - b.Median) / (madConsistency * b.MAD)
		level := levelForZ(z)
		if level == contracts.AnomalyNone {
			continue
		}

		anomalies = append(anomalies, contracts.Anomaly{
			Date:           m.Date,
			MetricKey:      m.MetricKey,
			Value:          *m.Value,
			BaselineMedian: b.Median,
			ZMAD:           z,
			Level:          level,
			Reason:         anomalyReason(m.MetricKey, *m.Value, b.Median, z, level),
		})
	}
	return anomalies
}

func levelForZ(z float64) contracts.AnomalyLevel {
	switch {
	case math.Abs(z) >= anomalyStrongZ:
		return contracts.AnomalyStrong
	case math.Abs(z) >= anomalyMildZ:
		return contracts.AnomalyMild
	default:
		return contracts.AnomalyNone
	}
}

// anomalyReason builds the human-readable explanation. Derived from the
// structured fields so rebuilds regenerate identical text.
func anomalyReason(key string, value, median, z float64, level contracts.AnomalyLevel) string {
	switch {
	case level == contracts.AnomalyStrong && z > 0:
		return fmt.Sprintf("%s unusually high (%.1f vs baseline %.1f)", key, value, median)
	case level == contracts.AnomalyStrong:
		return fmt.Sprintf("%s unusually low (%.1f vs baseline %.1f)", key, value, median)
	case z > 0:
		return fmt.Sprintf("%s elevated (%.1f vs baseline %.1f)", key, value, median)
	default:
		return fmt.Sprintf("%s reduced (%.1f vs baseline %.1f)", key, value, median)
	}
}

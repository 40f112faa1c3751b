package serving

import (
	"fmt"
	"math"

	"github.com/wonny/pulse/internal/contracts"
	"github.com/wonny/pulse/internal/taxonomy"
)

// trendThresholdPct: a 7-day move smaller than 5% of the first value
// reads as flat.
const trendThresholdPct = 0.05

// classifyTrend compares the first and last non-null values of a
// trailing window.
func classifyTrend(first, last *float64) contracts.TrendDirection {
	if first == nil || last == nil {
		return contracts.TrendFlat
	}
	change := *last - *first
	threshold := math.Abs(*first) * trendThresholdPct
	switch {
	case change > threshold:
		return contracts.TrendUp
	case change < -threshold:
		return contracts.TrendDown
	default:
		return contracts.TrendFlat
	}
}

func displayNameFor(key string) string {
	if d, ok := taxonomy.Lookup(key); ok {
		return d.DisplayName
	}
	return key
}

// interpretCorrelation renders a coefficient as a sentence. A positive
// lag means metric A leads metric B.
func interpretCorrelation(corr float64, metricA, metricB string, lag int) string {
	var strength string
	switch {
	case math.Abs(corr) >= 0.6:
		strength = "Strong"
	case math.Abs(corr) >= 0.4:
		strength = "Moderate"
	default:
		strength = "Weak"
	}
	direction := "negative"
	if corr > 0 {
		direction = "positive"
	}

	aName := displayNameFor(metricA)
	bName := displayNameFor(metricB)

	switch {
	case lag == 0:
		return fmt.Sprintf("%s %s correlation between %s and %s", strength, direction, aName, bName)
	case lag > 0:
		return fmt.Sprintf("%s %s correlation: %s leads %s by %d day(s)", strength, direction, aName, bName, lag)
	default:
		return fmt.Sprintf("%s %s correlation: %s leads %s by %d day(s)", strength, direction, bName, aName, -lag)
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

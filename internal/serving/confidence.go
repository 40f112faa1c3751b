package serving

import (
	"fmt"
	"strings"

	"github.com/wonny/pulse/internal/contracts"
)

// CalculateConfidence classifies how reliable a served explanation is,
// purely from data-quality inputs.
//
// High: coverage >= 85%, baselines present, all required metrics.
// Medium: coverage 50-85% or baselines missing.
// Low: coverage < 50% or required metrics missing.
func CalculateConfidence(coveragePercent float64, hasBaselines, hasRequiredMetrics bool, missingMetrics []string) (contracts.Confidence, string) {
	if coveragePercent < 50 {
		return contracts.ConfidenceLow, fmt.Sprintf("Low data coverage (%.0f%%)", coveragePercent)
	}
	if !hasRequiredMetrics {
		return contracts.ConfidenceLow, fmt.Sprintf("Missing metrics: %s", strings.Join(missingMetrics, ", "))
	}

	var reasons []string
	if coveragePercent < 85 {
		reasons = append(reasons, fmt.Sprintf("Partial data coverage (%.0f%%)", coveragePercent))
	}
	if !hasBaselines {
		reasons = append(reasons, "Baseline data not available")
	}
	if len(reasons) > 0 {
		return contracts.ConfidenceMedium, strings.Join(reasons, "; ")
	}

	return contracts.ConfidenceHigh, "Good data coverage with baseline comparisons available"
}

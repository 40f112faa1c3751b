package pipeline

import (
	"fmt"

	"github.com/wonny/pulse/internal/contracts"
	"github.com/wonny/pulse/internal/taxonomy"
)

// ValidateOutputs enforces the eligibility allowlists on a finished
// rebuild before the swap. A sparse or unknown metric leaking into
// baselines or anomalies is a bug in the pipeline, so the run fails
// rather than silently filtering the rows.
func ValidateOutputs(baselines []contracts.Baseline, anomalies []contracts.Anomaly, correlations []contracts.Correlation) error {
	baselineOK := keySet(taxonomy.BaselineEligibleKeys())
	for _, b := range baselines {
		if !baselineOK[b.MetricKey] {
			return fmt.Errorf("baseline row for ineligible metric %q on %s", b.MetricKey, b.Date.Format("2006-01-02"))
		}
	}

	anomalyOK := keySet(taxonomy.AnomalyEligibleKeys())
	for _, a := range anomalies {
		if !anomalyOK[a.MetricKey] {
			return fmt.Errorf("anomaly row for ineligible metric %q on %s", a.MetricKey, a.Date.Format("2006-01-02"))
		}
		if a.Level == contracts.AnomalyNone {
			return fmt.Errorf("unflagged anomaly row for %q on %s", a.MetricKey, a.Date.Format("2006-01-02"))
		}
	}

	for _, c := range correlations {
		if !supportsCorrelations(c.MetricA) || !supportsCorrelations(c.MetricB) {
			return fmt.Errorf("correlation row for unsupported pair (%s, %s)", c.MetricA, c.MetricB)
		}
		if c.N < CorrelationMinPairs {
			return fmt.Errorf("correlation (%s, %s, lag %d) kept with n=%d", c.MetricA, c.MetricB, c.LagDays, c.N)
		}
	}
	return nil
}

func supportsCorrelations(key string) bool {
	d, ok := taxonomy.Lookup(key)
	return ok && d.SupportsCorrelations
}

func keySet(keys []string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}

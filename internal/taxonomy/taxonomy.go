package taxonomy

import (
	"fmt"
	"strings"

	"github.com/wonny/pulse/internal/contracts"
)

// Reducer identifies how a day's samples collapse into one value
type Reducer string

const (
	ReduceSum    Reducer = "sum"
	ReduceMean   Reducer = "mean"
	ReduceMedian Reducer = "median"
	ReduceMin    Reducer = "min"
	ReduceMax    Reducer = "max"
	// ReduceCount uses the number of samples as the value (stand hours)
	ReduceCount Reducer = "count"
	// ReduceLast takes the last observed value of the day (sparse signals)
	ReduceLast Reducer = "last"
	// ReduceDuration sums end-start spans in minutes (sleep)
	ReduceDuration Reducer = "duration"
)

// Category groups metrics for the dashboard and chart context
type Category string

const (
	CategoryActivity Category = "activity"
	CategoryRecovery Category = "recovery"
	CategorySleep    Category = "sleep"
	CategoryFitness  Category = "fitness"
)

// Descriptor declares everything the pipeline needs to know about one
// metric: which upstream observation type feeds it, how to reduce a
// day's samples, validity bounds, and eligibility flags. One generic
// aggregation routine consumes this table; there is no per-metric code.
type Descriptor struct {
	Key             string
	ObservationType string
	DisplayName     string
	Unit            string
	Category        Category
	Reducer         Reducer

	// Validity bounds. MinValid is inclusive when MinInclusive is set,
	// exclusive otherwise; MaxValid is always exclusive. Nil = unbounded.
	MinValid     *float64
	MaxValid     *float64
	MinInclusive bool

	// ExpectedDailySamples is the coverage denominator:
	// coverage = min(samples/expected, 1)
	ExpectedDailySamples float64

	// FixedQuality overrides device ranking when non-empty
	FixedQuality contracts.SourceQuality

	// Sparse metrics are stored in daily_metrics but must never appear
	// in baselines or anomalies.
	Sparse bool

	BaselineEligible     bool
	AnomalyEligible      bool
	SupportsCorrelations bool
}

// ValidValue reports whether an observed value passes the descriptor's
// physiological-plausibility bounds.
func (d Descriptor) ValidValue(v float64) bool {
	if d.MinValid != nil {
		if d.MinInclusive {
			if v < *d.MinValid {
				return false
			}
		} else if v <= *d.MinValid {
			return false
		}
	}
	if d.MaxValid != nil && v >= *d.MaxValid {
		return false
	}
	return true
}

func f(v float64) *float64 { return &v }

// Catalog is the full metric taxonomy, in stable order. Excluded
// upstream types (body_mass, height, sleep_duration_goal) have no
// descriptor and therefore never produce rows.
var Catalog = []Descriptor{
	{
		Key: "steps", ObservationType: "StepCount",
		DisplayName: "Steps", Unit: "count", Category: CategoryActivity,
		Reducer: ReduceSum, MinValid: f(0), MinInclusive: true,
		ExpectedDailySamples: 100,
		BaselineEligible:     true, AnomalyEligible: true, SupportsCorrelations: true,
	},
	{
		Key: "active_energy", ObservationType: "ActiveEnergyBurned",
		DisplayName: "Active Energy", Unit: "kcal", Category: CategoryActivity,
		Reducer: ReduceSum, MinValid: f(0), MinInclusive: true,
		ExpectedDailySamples: 100,
		BaselineEligible:     true, AnomalyEligible: true, SupportsCorrelations: true,
	},
	{
		Key: "basal_energy", ObservationType: "BasalEnergyBurned",
		DisplayName: "Basal Energy", Unit: "kcal", Category: CategoryActivity,
		Reducer: ReduceSum, MinValid: f(0), MinInclusive: true,
		ExpectedDailySamples: 100, FixedQuality: contracts.QualityHigh,
		BaselineEligible: true, AnomalyEligible: true, SupportsCorrelations: true,
	},
	{
		Key: "distance_walking_running", ObservationType: "DistanceWalkingRunning",
		DisplayName: "Distance (Walk/Run)", Unit: "km", Category: CategoryActivity,
		Reducer: ReduceSum, MinValid: f(0), MinInclusive: true,
		ExpectedDailySamples: 50,
		BaselineEligible:     true, AnomalyEligible: true, SupportsCorrelations: true,
	},
	{
		Key: "flights_climbed", ObservationType: "FlightsClimbed",
		DisplayName: "Flights Climbed", Unit: "count", Category: CategoryActivity,
		Reducer: ReduceSum, MinValid: f(0), MinInclusive: true,
		ExpectedDailySamples: 10, FixedQuality: contracts.QualityMedium,
		BaselineEligible: true, AnomalyEligible: true, SupportsCorrelations: true,
	},
	{
		Key: "physical_effort_load", ObservationType: "PhysicalEffort",
		DisplayName: "Physical Effort", Unit: "arbitrary", Category: CategoryActivity,
		Reducer:              ReduceSum,
		ExpectedDailySamples: 100, FixedQuality: contracts.QualityHigh,
		BaselineEligible: true, AnomalyEligible: true, SupportsCorrelations: true,
	},
	{
		Key: "exercise_time", ObservationType: "AppleExerciseTime",
		DisplayName: "Exercise Time", Unit: "min", Category: CategoryActivity,
		Reducer: ReduceSum, MinValid: f(0), MinInclusive: true,
		ExpectedDailySamples: 10, FixedQuality: contracts.QualityHigh,
		BaselineEligible: true, AnomalyEligible: true, SupportsCorrelations: true,
	},
	{
		Key: "stand_hours", ObservationType: "cat_AppleStandHour",
		DisplayName: "Stand Hours", Unit: "hours", Category: CategoryActivity,
		Reducer:              ReduceCount,
		ExpectedDailySamples: 12, FixedQuality: contracts.QualityHigh,
		BaselineEligible: true, AnomalyEligible: true, SupportsCorrelations: true,
	},
	{
		Key: "walking_speed", ObservationType: "WalkingSpeed",
		DisplayName: "Walking Speed", Unit: "km/hr", Category: CategoryActivity,
		Reducer: ReduceMean, MinValid: f(0),
		ExpectedDailySamples: 50, FixedQuality: contracts.QualityHigh,
		BaselineEligible: true, AnomalyEligible: true, SupportsCorrelations: true,
	},
	{
		Key: "walking_step_length", ObservationType: "WalkingStepLength",
		DisplayName: "Step Length", Unit: "cm", Category: CategoryActivity,
		Reducer: ReduceMean, MinValid: f(0),
		ExpectedDailySamples: 50, FixedQuality: contracts.QualityHigh,
		BaselineEligible: true, AnomalyEligible: true, SupportsCorrelations: true,
	},
	{
		Key: "heart_rate_mean", ObservationType: "HeartRate",
		DisplayName: "Heart Rate (Avg)", Unit: "count/min", Category: CategoryRecovery,
		Reducer: ReduceMean, MinValid: f(30), MaxValid: f(250),
		ExpectedDailySamples: 1440,
		BaselineEligible:     true, AnomalyEligible: true, SupportsCorrelations: true,
	},
	{
		Key: "heart_rate_min", ObservationType: "HeartRate",
		DisplayName: "Heart Rate (Min)", Unit: "count/min", Category: CategoryRecovery,
		Reducer: ReduceMin, MinValid: f(30), MaxValid: f(250),
		ExpectedDailySamples: 1440,
		BaselineEligible:     true, AnomalyEligible: true, SupportsCorrelations: true,
	},
	{
		Key: "heart_rate_max", ObservationType: "HeartRate",
		DisplayName: "Heart Rate (Max)", Unit: "count/min", Category: CategoryRecovery,
		Reducer: ReduceMax, MinValid: f(30), MaxValid: f(250),
		ExpectedDailySamples: 1440,
		BaselineEligible:     true, AnomalyEligible: true, SupportsCorrelations: true,
	},
	{
		Key: "resting_heart_rate", ObservationType: "RestingHeartRate",
		DisplayName: "Resting Heart Rate", Unit: "count/min", Category: CategoryRecovery,
		Reducer: ReduceMean, MinValid: f(30), MaxValid: f(150),
		ExpectedDailySamples: 1, FixedQuality: contracts.QualityHigh,
		BaselineEligible: true, AnomalyEligible: true, SupportsCorrelations: true,
	},
	{
		Key: "hrv_sdnn", ObservationType: "HeartRateVariabilitySDNN",
		DisplayName: "HRV (SDNN)", Unit: "ms", Category: CategoryRecovery,
		Reducer: ReduceMedian, MinValid: f(0), MaxValid: f(300),
		ExpectedDailySamples: 10, FixedQuality: contracts.QualityHigh,
		BaselineEligible: true, AnomalyEligible: true, SupportsCorrelations: true,
	},
	{
		Key: "sleep_duration", ObservationType: "cat_SleepAnalysis",
		DisplayName: "Sleep Duration", Unit: "minutes", Category: CategorySleep,
		Reducer:              ReduceDuration,
		ExpectedDailySamples: 1, FixedQuality: contracts.QualityHigh,
		Sparse:               true,
		SupportsCorrelations: true,
	},
	{
		Key: "vo2max", ObservationType: "VO2Max",
		DisplayName: "VO2 Max", Unit: "mL/kg/min", Category: CategoryFitness,
		Reducer: ReduceLast, MinValid: f(0),
		ExpectedDailySamples: 1, FixedQuality: contracts.QualityHigh,
		Sparse:               true,
	},
}

var byKey = func() map[string]Descriptor {
	m := make(map[string]Descriptor, len(Catalog))
	for _, d := range Catalog {
		m[d.Key] = d
	}
	return m
}()

// Lookup returns the descriptor for a metric key
func Lookup(key string) (Descriptor, bool) {
	d, ok := byKey[key]
	return d, ok
}

// IsKnown reports whether the metric key is cataloged
func IsKnown(key string) bool {
	_, ok := byKey[key]
	return ok
}

// Keys returns all cataloged metric keys in stable order
func Keys() []string {
	keys := make([]string, 0, len(Catalog))
	for _, d := range Catalog {
		keys = append(keys, d.Key)
	}
	return keys
}

// BaselineEligibleKeys returns the baseline allowlist in stable order
func BaselineEligibleKeys() []string {
	var keys []string
	for _, d := range Catalog {
		if d.BaselineEligible {
			keys = append(keys, d.Key)
		}
	}
	return keys
}

// AnomalyEligibleKeys returns the anomaly allowlist in stable order
func AnomalyEligibleKeys() []string {
	var keys []string
	for _, d := range Catalog {
		if d.AnomalyEligible {
			keys = append(keys, d.Key)
		}
	}
	return keys
}

// QualityForSources picks the day's source quality by device priority:
// any wearable watch wins, then known third-party trackers, else low.
func QualityForSources(sources []string) contracts.SourceQuality {
	best := contracts.QualityLow
	for _, s := range sources {
		name := strings.ToLower(s)
		if strings.Contains(name, "watch") {
			return contracts.QualityHigh
		}
		if strings.Contains(name, "whoop") ||
			strings.Contains(name, "oura") ||
			strings.Contains(name, "ultrahuman") {
			best = contracts.QualityMedium
		}
	}
	return best
}

// Validate enforces the taxonomy invariants. Sparse metrics appearing
// in an allowlist is a pipeline invariant violation and fails the
// build; it is checked at startup, not silently corrected.
func Validate() error {
	seen := make(map[string]bool, len(Catalog))
	for _, d := range Catalog {
		if d.Key == "" {
			return fmt.Errorf("taxonomy: descriptor with empty key")
		}
		if seen[d.Key] {
			return fmt.Errorf("taxonomy: duplicate metric key %q", d.Key)
		}
		seen[d.Key] = true

		if d.Sparse && d.BaselineEligible {
			return fmt.Errorf("taxonomy: sparse metric %q is baseline-eligible", d.Key)
		}
		if d.Sparse && d.AnomalyEligible {
			return fmt.Errorf("taxonomy: sparse metric %q is anomaly-eligible", d.Key)
		}
		// Anomaly detection needs a baseline to compare against
		if d.AnomalyEligible && !d.BaselineEligible {
			return fmt.Errorf("taxonomy: metric %q is anomaly-eligible without baselines", d.Key)
		}
		if d.ExpectedDailySamples <= 0 {
			return fmt.Errorf("taxonomy: metric %q has no expected sample count", d.Key)
		}
	}
	return nil
}

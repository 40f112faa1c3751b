package pipeline

import (
	"math"
	"sort"
	"time"

	"github.com/wonny/pulse/internal/contracts"
)

// Score weights and shape. Contract values: changing any of these
// changes every historical score.
const (
	recoveryWeightHRV    = 0.50
	recoveryWeightRHR    = 0.30
	recoveryWeightEffort = 0.20

	strainSecondaryHRMax    = 0.10
	strainSecondaryExercise = 0.10

	sigmoidSlope = 0.7

	// iqrFloor keeps z-scores finite when a baseline window is flat
	iqrFloor = 1e-6

	zCap = 3.0
)

// scoreInputs are the metric keys the score engine reads. Steps is
// deliberately absent: step volume must never move recovery or strain.
var scoreInputKeys = []string{
	"hrv_sdnn",
	"resting_heart_rate",
	"physical_effort_load",
	"active_energy",
	"heart_rate_max",
	"exercise_time",
}

// metricDay pairs a day's value with its same-day baseline
type metricDay struct {
	value    *float64
	baseline *contracts.Baseline
}

// scoreTable indexes score inputs by metric key and date
type scoreTable map[string]map[time.Time]metricDay

func buildScoreTable(metricsByKey map[string][]contracts.DailyMetric, baselinesByKey map[string][]contracts.Baseline) scoreTable {
	table := make(scoreTable, len(scoreInputKeys))
	for _, key := range scoreInputKeys {
		days := make(map[time.Time]metricDay)
		for _, m := range metricsByKey[key] {
			days[m.Date] = metricDay{value: m.Value}
		}
		for i := range baselinesByKey[key] {
			b := &baselinesByKey[key][i]
			d := days[b.Date]
			d.baseline = b
			days[b.Date] = d
		}
		table[key] = days
	}
	return table
}

// zScore computes the IQR-normalized deviation, capped at +/-3.
// Returns false when the value or its baseline is missing.
func (t scoreTable) zScore(key string, date time.Time) (float64, bool) {
	d, ok := t[key][date]
	if !ok || d.value == nil || d.baseline == nil {
		return 0, false
	}
	iqr := math.Max(d.baseline.IQR(), iqrFloor)
	z := (*d.value - d.baseline.Median) / iqr
	return math.Max(-zCap, math.Min(zCap, z)), true
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-sigmoidSlope*z))
}

// ComputeScores derives recovery and strain for every date that has any
// aggregate row. A missing required input yields a nil score for that
// day; components are never substituted or interpolated.
//
// Recovery needs all three inputs: today's HRV and resting heart rate
// against their baselines, plus the previous calendar day's effort
// against its baseline. Strain needs a primary load signal: effort
// load, falling back to active energy when effort is absent.
func ComputeScores(metricsByKey map[string][]contracts.DailyMetric, baselinesByKey map[string][]contracts.Baseline) []contracts.DerivedScore {
	dateSet := make(map[time.Time]bool)
	for _, metrics := range metricsByKey {
		for _, m := range metrics {
			dateSet[m.Date] = true
		}
	}
	dates := make([]time.Time, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	table := buildScoreTable(metricsByKey, baselinesByKey)

	scores := make([]contracts.DerivedScore, 0, len(dates))
	for _, date := range dates {
		s := contracts.DerivedScore{Date: date}
		computeRecovery(&s, table, date)
		computeStrain(&s, table, date)
		scores = append(scores, s)
	}
	return scores
}

func computeRecovery(s *contracts.DerivedScore, table scoreTable, date time.Time) {
	zHRV, okHRV := table.zScore("hrv_sdnn", date)
	zRHR, okRHR := table.zScore("resting_heart_rate", date)
	// Strictly the previous calendar day, not the previous row: a gap
	// in the data means yesterday's load is unknown, not the load from
	// some earlier day.
	zEffort, okEffort := table.zScore("physical_effort_load", date.AddDate(0, 0, -1))
	if !okHRV || !okRHR || !okEffort {
		return
	}

	// Higher HRV is good; higher RHR and higher prior-day load are not
	hrvComponent := sigmoid(zHRV)
	rhrComponent := sigmoid(-zRHR)
	effortComponent := sigmoid(-zEffort)

	score := int(math.Round(100 * (recoveryWeightHRV*hrvComponent +
		recoveryWeightRHR*rhrComponent +
		recoveryWeightEffort*effortComponent)))
	s.RecoveryScore = &score
	s.RecoveryLabel = contracts.RecoveryLabelFor(score)
	s.RecoveryColor = contracts.RecoveryColorFor(score)

	// Signed contributor impacts, normalized so magnitudes sum to 100
	hrvImpact := recoveryWeightHRV * (hrvComponent - 0.5)
	rhrImpact := recoveryWeightRHR * (rhrComponent - 0.5)
	effortImpact := recoveryWeightEffort * (effortComponent - 0.5)
	sumAbs := math.Max(math.Abs(hrvImpact)+math.Abs(rhrImpact)+math.Abs(effortImpact), iqrFloor)

	hrvPct := round1(100 * hrvImpact / sumAbs)
	rhrPct := round1(100 * rhrImpact / sumAbs)
	effortPct := round1(100 * effortImpact / sumAbs)
	s.HRVPct = &hrvPct
	s.RHRPct = &rhrPct
	s.EffortPct = &effortPct
}

func computeStrain(s *contracts.DerivedScore, table scoreTable, date time.Time) {
	zPrimary, ok := table.zScore("physical_effort_load", date)
	primary := contracts.StrainPrimaryEffort
	if !ok {
		zPrimary, ok = table.zScore("active_energy", date)
		primary = contracts.StrainPrimaryActiveEnergy
	}
	if !ok {
		return
	}

	// Secondary signals sharpen the score but never gate it
	zHRMax, _ := table.zScore("heart_rate_max", date)
	zExercise, _ := table.zScore("exercise_time", date)

	composite := zPrimary + strainSecondaryHRMax*zHRMax + strainSecondaryExercise*zExercise
	score := int(math.Round(100 * sigmoid(composite)))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	s.StrainScore = &score
	s.StrainLabel = contracts.StrainLabelFor(score)
	s.StrainPrimaryMetric = primary
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

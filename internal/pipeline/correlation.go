package pipeline

import (
	"context"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/pulse/internal/contracts"
)

const (
	// CorrelationWindowDays is the window length recorded on every
	// stored row and exposed to API consumers
	CorrelationWindowDays = 90
	// CorrelationMinPairs is the minimum overlapping days to report
	CorrelationMinPairs = 30
	// CorrelationMinAbsR filters out noise-level coefficients
	CorrelationMinAbsR = 0.2
	// CorrelationMaxLag bounds the lag scan to -3..+3 days
	CorrelationMaxLag = 3
)

// MetricPair names an ordered correlation hypothesis: does A relate to
// B, possibly with B shifted in time?
type MetricPair struct {
	A string
	B string
}

// CuratedPairs is the fixed hypothesis list. Pairs are curated rather
// than exhaustive so the output stays interpretable and the multiple
// comparison surface stays small.
var CuratedPairs = []MetricPair{
	{A: "sleep_duration", B: "hrv_sdnn"},
	{A: "sleep_duration", B: "resting_heart_rate"},
	{A: "physical_effort_load", B: "resting_heart_rate"},
	{A: "physical_effort_load", B: "hrv_sdnn"},
	{A: "steps", B: "sleep_duration"},
	{A: "steps", B: "active_energy"},
	{A: "active_energy", B: "resting_heart_rate"},
	{A: "exercise_time", B: "hrv_sdnn"},
	{A: "steps", B: "resting_heart_rate"},
	{A: "active_energy", B: "hrv_sdnn"},
}

// valueSeries holds one metric's valued days in date order plus a
// lookup by date for lag alignment.
type valueSeries struct {
	days   []time.Time
	byDate map[time.Time]float64
}

// ComputeCorrelations evaluates every curated pair at every lag over
// the full daily history and keeps results passing the sample-size and
// strength gates. Pairs run concurrently; output order is fixed by the
// curated list, then lag, so rebuilds are byte-stable.
func ComputeCorrelations(ctx context.Context, metricsByKey map[string][]contracts.DailyMetric, workers int) ([]contracts.Correlation, error) {
	series := make(map[string]*valueSeries, len(metricsByKey))
	for key, metrics := range metricsByKey {
		vs := &valueSeries{byDate: make(map[time.Time]float64)}
		for _, m := range metrics {
			if m.Value != nil {
				vs.days = append(vs.days, m.Date)
				vs.byDate[m.Date] = *m.Value
			}
		}
		series[key] = vs
	}

	results := make([][]contracts.Correlation, len(CuratedPairs))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, pair := range CuratedPairs {
		i, pair := i, pair
		g.Go(func() error {
			results[i] = correlatePair(pair, series[pair.A], series[pair.B])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []contracts.Correlation
	for _, rs := range results {
		out = append(out, rs...)
	}
	return out, nil
}

// correlatePair aligns a[d] with b[d-lag] for each lag in the scan
// range, over the days where both values exist.
func correlatePair(pair MetricPair, a, b *valueSeries) []contracts.Correlation {
	if a == nil || b == nil {
		return nil
	}

	var out []contracts.Correlation
	for lag := -CorrelationMaxLag; lag <= CorrelationMaxLag; lag++ {
		var xs, ys []float64
		for _, d := range a.days {
			if bv, ok := b.byDate[d.AddDate(0, 0, -lag)]; ok {
				xs = append(xs, a.byDate[d])
				ys = append(ys, bv)
			}
		}
		if len(xs) < CorrelationMinPairs {
			continue
		}
		r, ok := pearson(xs, ys)
		if !ok || math.Abs(r) < CorrelationMinAbsR {
			continue
		}
		out = append(out, contracts.Correlation{
			MetricA:    pair.A,
			MetricB:    pair.B,
			LagDays:    lag,
			Corr:       r,
			N:          len(xs),
			WindowDays: CorrelationWindowDays,
		})
	}
	return out
}

// pearson computes the sample correlation coefficient. Returns false
// when either series has zero variance.
func pearson(xs, ys []float64) (float64, bool) {
	n := float64(len(xs))
	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX, meanY := sumX/n, sumY/n

	var cov, varX, varY float64
	for i := range xs {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0, false
	}
	return cov / math.Sqrt(varX*varY), true
}

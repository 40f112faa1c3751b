package pipeline

import (
	"math"
	"sort"
	"time"

	"github.com/wonny/pulse/internal/contracts"
)

const (
	// BaselineWindowDays is the trailing window length
	BaselineWindowDays = 28
	// BaselineMinPoints is the minimum window occupancy to emit a row
	BaselineMinPoints = 10
)

// ComputeBaselines derives trailing robust statistics for one metric's
// daily series. For each day d with a valued row, the window is
// strictly [d-28, d): the day's own value never feeds its baseline, so
// today's outlier cannot mask itself. Null-valued days and days whose
// window holds fewer than 10 values get no baseline.
//
// The input must be sorted by date ascending, one row per day.
func ComputeBaselines(metrics []contracts.DailyMetric) []contracts.Baseline {
	// Only days with a value contribute to windows
	type point struct {
		date  time.Time
		value float64
	}
	points := make([]point, 0, len(metrics))
	for _, m := range metrics {
		if m.Value != nil {
			points = append(points, point{date: m.Date, value: *m.Value})
		}
	}

	var baselines []contracts.Baseline
	window := newSortedWindow()
	lo, hi := 0, 0

	for _, m := range metrics {
		cutoff := m.Date.AddDate(0, 0, -BaselineWindowDays)

		// Admit points strictly before this day
		for hi < len(points) && points[hi].date.Before(m.Date) {
			window.add(points[hi].value)
			hi++
		}
		// Evict points older than the window start
		for lo < hi && points[lo].date.Before(cutoff) {
			window.remove(points[lo].value)
			lo++
		}

		if m.Value == nil || window.len() < BaselineMinPoints {
			continue
		}

		med := window.percentile(50)
		baselines = append(baselines, contracts.Baseline{
			Date:       m.Date,
			MetricKey:  m.MetricKey,
			Median:     med,
			P25:        window.percentile(25),
			P75:        window.percentile(75),
			MAD:        window.mad(med),
			DataPoints: window.len(),
		})
	}
	return baselines
}

// sortedWindow keeps the active window values in sorted order so order
// statistics are O(1) reads. Window length is bounded by 28, so the
// binary-search insert and remove are effectively constant.
type sortedWindow struct {
	values []float64
}

func newSortedWindow() *sortedWindow {
	return &sortedWindow{values: make([]float64, 0, BaselineWindowDays)}
}

func (w *sortedWindow) len() int { return len(w.values) }

func (w *sortedWindow) add(v float64) {
	i := sort.SearchFloat64s(w.values, v)
	w.values = append(w.values, 0)
	copy(w.values[i+1:], w.values[i:])
	w.values[i] = v
}

func (w *sortedWindow) remove(v float64) {
	i := sort.SearchFloat64s(w.values, v)
	if i < len(w.values) && w.values[i] == v {
		w.values = append(w.values[:i], w.values[i+1:]...)
	}
}

// percentile computes the p-th percentile with linear interpolation
// between closest ranks.
func (w *sortedWindow) percentile(p float64) float64 {
	n := len(w.values)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return w.values[0]
	}
	rank := p / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return w.values[lo]
	}
	frac := rank - float64(lo)
	return w.values[lo]*(1-frac) + w.values[hi]*frac
}

// mad computes the median absolute deviation around the given median
func (w *sortedWindow) mad(med float64) float64 {
	devs := make([]float64, len(w.values))
	for i, v := range w.values {
		devs[i] = math.Abs(v - med)
	}
	return median(devs)
}

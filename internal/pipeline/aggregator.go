package pipeline

import (
	"math"
	"sort"
	"time"

	"github.com/wonny/pulse/internal/contracts"
	"github.com/wonny/pulse/internal/taxonomy"
)

// dayBucket collects one calendar day's samples for one metric
type dayBucket struct {
	values  []float64
	minutes float64
	count   int
	raw     int
	sources []string
	lastAt  time.Time
	lastVal float64
}

// dateOf truncates a timestamp to its calendar date. Ingestion stores
// timestamps already localized, so the wall-clock date is the right one.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AggregateMetric collapses raw samples into full-day aggregates for
// one metric descriptor. Samples outside the validity bounds are
// dropped before reduction. Days with samples but no valid value still
// produce a row with a nil value; days with no samples produce nothing.
func AggregateMetric(desc taxonomy.Descriptor, observations []contracts.Observation) []contracts.DailyMetric {
	buckets := make(map[time.Time]*dayBucket)

	for _, o := range observations {
		// Every sample belongs to the day it started, so a night of
		// sleep crossing midnight counts toward the evening's date
		day := dateOf(o.StartTime)

		b := buckets[day]
		if b == nil {
			b = &dayBucket{}
			buckets[day] = b
		}
		b.raw++
		b.sources = append(b.sources, o.SourceName)

		switch desc.Reducer {
		case taxonomy.ReduceCount:
			b.count++
		case taxonomy.ReduceDuration:
			span := o.EndTime.Sub(o.StartTime).Minutes()
			if span > 0 {
				b.minutes += span
				b.count++
			}
		default:
			if !desc.ValidValue(o.Value) {
				continue
			}
			b.values = append(b.values, o.Value)
			if b.count == 0 || !o.StartTime.Before(b.lastAt) {
				b.lastAt = o.StartTime
				b.lastVal = o.Value
			}
			b.count++
		}
	}

	days := make([]time.Time, 0, len(buckets))
	for day := range buckets {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	metrics := make([]contracts.DailyMetric, 0, len(days))
	for _, day := range days {
		b := buckets[day]

		quality := desc.FixedQuality
		if quality == "" {
			quality = taxonomy.QualityForSources(b.sources)
		}

		m := contracts.DailyMetric{
			Date:          day,
			MetricKey:     desc.Key,
			Unit:          desc.Unit,
			SampleCount:   b.count,
			CoverageScore: math.Min(float64(b.count)/desc.ExpectedDailySamples, 1),
			SourceQuality: quality,
		}
		if v, ok := reduce(desc.Reducer, b); ok {
			m.Value = &v
		} else {
			m.SampleCount = 0
			m.CoverageScore = 0
		}
		metrics = append(metrics, m)
	}
	return metrics
}

func reduce(reducer taxonomy.Reducer, b *dayBucket) (float64, bool) {
	switch reducer {
	case taxonomy.ReduceCount:
		if b.count == 0 {
			return 0, false
		}
		return float64(b.count), true
	case taxonomy.ReduceDuration:
		if b.count == 0 {
			return 0, false
		}
		return b.minutes, true
	case taxonomy.ReduceLast:
		if len(b.values) == 0 {
			return 0, false
		}
		return b.lastVal, true
	}

	if len(b.values) == 0 {
		return 0, false
	}
	switch reducer {
	case taxonomy.ReduceSum:
		var sum float64
		for _, v := range b.values {
			sum += v
		}
		return sum, true
	case taxonomy.ReduceMean:
		var sum float64
		for _, v := range b.values {
			sum += v
		}
		return sum / float64(len(b.values)), true
	case taxonomy.ReduceMedian:
		return median(b.values), true
	case taxonomy.ReduceMin:
		min := b.values[0]
		for _, v := range b.values[1:] {
			if v < min {
				min = v
			}
		}
		return min, true
	case taxonomy.ReduceMax:
		max := b.values[0]
		for _, v := range b.values[1:] {
			if v > max {
				max = v
			}
		}
		return max, true
	}
	return 0, false
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

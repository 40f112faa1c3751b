package serving

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/pulse/internal/contracts"
)

const (
	// chartContextMaxPoints caps the series sent into an explanation
	chartContextMaxPoints = 90
	// chartContextMaxAnomalies caps the listed recent anomalies
	chartContextMaxAnomalies = 10
	// chartContextMaxCorrelations caps the listed pair results
	chartContextMaxCorrelations = 5
)

// GetChartContext assembles the structured context an explanation
// layer needs for one chart: series summary, baseline band, anomaly
// counts, correlations and a data-quality verdict. It prepares context
// only and never calls a model.
func (s *Service) GetChartContext(ctx context.Context, key string, start, end time.Time, focus *time.Time) (*ChartContextResponse, error) {
	desc, err := ValidateMetricKey(key)
	if err != nil {
		return nil, err
	}
	if err := ValidateDateRange(start, end); err != nil {
		return nil, err
	}

	metrics, err := s.metrics.GetRange(ctx, key, start, end)
	if err != nil {
		return nil, fmt.Errorf("load chart series: %w", err)
	}
	// Keep the most recent points, chronological
	if len(metrics) > chartContextMaxPoints {
		metrics = metrics[len(metrics)-chartContextMaxPoints:]
	}

	dates := make([]string, 0, len(metrics))
	values := make([]*float64, 0, len(metrics))
	var minV, maxV, sum *float64
	var nonNull int
	var sampleSum float64
	for _, m := range metrics {
		dates = append(dates, m.Date.Format(dateFormat))
		values = append(values, m.Value)
		sampleSum += float64(m.SampleCount)
		if m.Value == nil {
			continue
		}
		nonNull++
		v := *m.Value
		if minV == nil || v < *minV {
			minV = &v
		}
		if maxV == nil || v > *maxV {
			maxV = &v
		}
		if sum == nil {
			sum = new(float64)
		}
		*sum += v
	}

	series := TimeSeriesSummary{
		LastNDays: len(dates),
		Dates:     dates,
		Values:    values,
		MinValue:  minV,
		MaxValue:  maxV,
	}
	if sum != nil {
		mean := *sum / float64(nonNull)
		series.MeanValue = &mean
	}

	// Baseline band at the focus date, defaulting to the last point
	baselineDate := end
	if focus != nil {
		baselineDate = *focus
	} else if len(metrics) > 0 {
		baselineDate = metrics[len(metrics)-1].Date
	}
	baseline := BaselineSummary{}
	baselineRows, err := s.baselines.GetRange(ctx, key, baselineDate, baselineDate)
	if err != nil {
		return nil, fmt.Errorf("load chart baseline: %w", err)
	}
	if len(baselineRows) > 0 {
		b := baselineRows[0]
		baseline = BaselineSummary{
			CurrentMedian: &b.Median,
			CurrentP25:    &b.P25,
			CurrentP75:    &b.P75,
			HasBaseline:   true,
		}
	}

	flagged, err := s.anomalies.GetForKeyAndRange(ctx, key, start, end)
	if err != nil {
		return nil, fmt.Errorf("load chart anomalies: %w", err)
	}
	summary := AnomalySummary{}
	for _, a := range flagged {
		switch a.Level {
		case contracts.AnomalyMild:
			summary.MildCount++
		case contracts.AnomalyStrong:
			summary.StrongCount++
		}
	}
	summary.TotalCount = summary.MildCount + summary.StrongCount
	// Newest first, capped
	for i := len(flagged) - 1; i >= 0 && len(summary.RecentAnomalies) < chartContextMaxAnomalies; i-- {
		summary.RecentAnomalies = append(summary.RecentAnomalies, anomalyItem(flagged[i]))
	}

	var correlations []CorrelationItem
	if desc.SupportsCorrelations {
		rows, err := s.correlations.GetForMetric(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("load chart correlations: %w", err)
		}
		for _, c := range rows {
			if len(correlations) == chartContextMaxCorrelations {
				break
			}
			correlations = append(correlations, correlationItem(c))
		}
	}

	// Coverage counts over the full requested range, not the capped
	// point window
	daysWithData, err := s.metrics.CountDaysWithValue(ctx, key, start, end)
	if err != nil {
		return nil, fmt.Errorf("count days with data: %w", err)
	}
	totalDays := int(end.Sub(start).Hours()/24) + 1
	coverage := 0.0
	if totalDays > 0 {
		coverage = float64(daysWithData) / float64(totalDays) * 100
	}
	quality := DataQualityIndicators{
		TotalDays:       totalDays,
		DaysWithData:    daysWithData,
		CoveragePercent: round1(coverage),
	}
	if len(metrics) > 0 {
		avg := round1(sampleSum / float64(len(metrics)))
		quality.AvgSampleCount = &avg
	}

	baselineCount, err := s.baselines.CountForKey(ctx, key, start, end)
	if err != nil {
		return nil, fmt.Errorf("count baselines: %w", err)
	}
	level, reason := CalculateConfidence(coverage, baselineCount > 0, true, nil)

	resp := &ChartContextResponse{
		MetricKey:        key,
		DisplayName:      desc.DisplayName,
		Unit:             desc.Unit,
		Category:         string(desc.Category),
		StartDate:        start.Format(dateFormat),
		EndDate:          end.Format(dateFormat),
		TimeSeries:       series,
		Baseline:         baseline,
		Anomalies:        summary,
		Correlations:     correlations,
		DataQuality:      quality,
		ConfidenceLevel:  level,
		ConfidenceReason: reason,
	}
	if focus != nil {
		resp.FocusDate = focus.Format(dateFormat)
	}
	return resp, nil
}

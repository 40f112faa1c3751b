package serving

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/pulse/internal/contracts"
	"github.com/wonny/pulse/internal/pipeline"
	"github.com/wonny/pulse/internal/taxonomy"
	"github.com/wonny/pulse/pkg/logger"
	"github.com/wonny/pulse/pkg/redis"
)

const dateFormat = "2006-01-02"

// Service assembles API responses from the derived tables. It is
// strictly read-only; the pipeline owns all writes.
type Service struct {
	metrics      contracts.DailyMetricRepository
	baselines    contracts.BaselineRepository
	anomalies    contracts.AnomalyRepository
	scores       contracts.ScoreRepository
	correlations contracts.CorrelationRepository
	cache        *redis.Cache
	log          *logger.Logger
}

// NewService creates a new serving service
func NewService(
	metrics contracts.DailyMetricRepository,
	baselines contracts.BaselineRepository,
	anomalies contracts.AnomalyRepository,
	scores contracts.ScoreRepository,
	correlations contracts.CorrelationRepository,
	cache *redis.Cache,
	log *logger.Logger,
) *Service {
	return &Service{
		metrics:      metrics,
		baselines:    baselines,
		anomalies:    anomalies,
		scores:       scores,
		correlations: correlations,
		cache:        cache,
		log:          log,
	}
}

// GetCatalog returns the static metric catalog. Cached for an hour.
func (s *Service) GetCatalog(ctx context.Context) (*CatalogResponse, error) {
	var cached CatalogResponse
	if hit, err := s.cache.Get(ctx, redis.CatalogKey(), &cached); err == nil && hit {
		return &cached, nil
	}

	entries := make([]CatalogEntry, 0, len(taxonomy.Catalog))
	for _, d := range taxonomy.Catalog {
		entries = append(entries, catalogEntry(d))
	}
	resp := &CatalogResponse{Metrics: entries, Count: len(entries)}

	if err := s.cache.Set(ctx, redis.CatalogKey(), resp, redis.TTLCatalog); err != nil {
		s.log.WithError(err).Warn("failed to cache catalog")
	}
	return resp, nil
}

// GetDailySeries returns one metric's series with baseline bands and
// anomaly levels joined in. Missing days are not backfilled.
func (s *Service) GetDailySeries(ctx context.Context, key string, start, end time.Time) (*DailySeriesResponse, error) {
	desc, err := ValidateMetricKey(key)
	if err != nil {
		return nil, err
	}
	if err := ValidateDateRange(start, end); err != nil {
		return nil, err
	}

	metrics, err := s.metrics.GetRange(ctx, key, start, end)
	if err != nil {
		return nil, fmt.Errorf("load daily series: %w", err)
	}
	baselines, err := s.baselines.GetRange(ctx, key, start, end)
	if err != nil {
		return nil, fmt.Errorf("load baselines: %w", err)
	}
	anomalies, err := s.anomalies.GetForKeyAndRange(ctx, key, start, end)
	if err != nil {
		return nil, fmt.Errorf("load anomalies: %w", err)
	}

	baselineByDate := make(map[time.Time]contracts.Baseline, len(baselines))
	for _, b := range baselines {
		baselineByDate[b.Date] = b
	}
	levelByDate := make(map[time.Time]contracts.AnomalyLevel, len(anomalies))
	for _, a := range anomalies {
		levelByDate[a.Date] = a.Level
	}

	data := make([]DailyPoint, 0, len(metrics))
	for _, m := range metrics {
		p := DailyPoint{
			Date:         m.Date.Format(dateFormat),
			Value:        m.Value,
			Unit:         m.Unit,
			AnomalyLevel: contracts.AnomalyNone,
		}
		if p.Unit == "" {
			p.Unit = desc.Unit
		}
		if b, ok := baselineByDate[m.Date]; ok {
			median, p25, p75 := b.Median, b.P25, b.P75
			p.BaselineMedian = &median
			p.BaselineP25 = &p25
			p.BaselineP75 = &p75
		}
		if level, ok := levelByDate[m.Date]; ok {
			p.AnomalyLevel = level
		}
		data = append(data, p)
	}

	return &DailySeriesResponse{
		MetricKey:   key,
		DisplayName: desc.DisplayName,
		Unit:        desc.Unit,
		StartDate:   start.Format(dateFormat),
		EndDate:     end.Format(dateFormat),
		Data:        data,
		Count:       len(data),
	}, nil
}

// GetOverview returns one tile per metric as of a date (latest when
// nil). Cached for five minutes, keyed by the resolved date.
func (s *Service) GetOverview(ctx context.Context, asOf *time.Time) (*OverviewResponse, error) {
	end := time.Time{}
	if asOf != nil {
		end = *asOf
	}
	if end.IsZero() {
		latest, err := s.metrics.GetLatestDate(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve as-of date: %w", err)
		}
		if latest.IsZero() {
			return &OverviewResponse{AsOfDate: time.Now().UTC().Format(dateFormat)}, nil
		}
		end = latest
	}

	cacheKey := redis.OverviewKey(end.Format(dateFormat))
	var cached OverviewResponse
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return &cached, nil
	}

	tiles := make([]OverviewTile, 0, len(taxonomy.Catalog))
	for _, desc := range taxonomy.Catalog {
		tile, ok, err := s.buildTile(ctx, desc, end)
		if err != nil {
			return nil, err
		}
		if ok {
			tiles = append(tiles, tile)
		}
	}

	resp := &OverviewResponse{
		AsOfDate: end.Format(dateFormat),
		Tiles:    tiles,
		Count:    len(tiles),
	}
	if err := s.cache.Set(ctx, cacheKey, resp, redis.TTLOverview); err != nil {
		s.log.WithError(err).Warn("failed to cache overview")
	}
	return resp, nil
}

func (s *Service) buildTile(ctx context.Context, desc taxonomy.Descriptor, end time.Time) (OverviewTile, bool, error) {
	// Latest row at or before the as-of date, searched within the
	// window that can also feed the 7-day trend
	lookback := end.AddDate(0, 0, -(MaxRangeDays - 1))
	series, err := s.metrics.GetRange(ctx, desc.Key, lookback, end)
	if err != nil {
		return OverviewTile{}, false, fmt.Errorf("load overview series for %s: %w", desc.Key, err)
	}
	if len(series) == 0 {
		return OverviewTile{}, false, nil
	}

	latest := series[len(series)-1]
	tile := OverviewTile{
		MetricKey:    desc.Key,
		DisplayName:  desc.DisplayName,
		LatestValue:  latest.Value,
		LatestDate:   latest.Date.Format(dateFormat),
		Unit:         desc.Unit,
		Trend7d:      trend7d(series, latest.Date),
		AnomalyLevel: contracts.AnomalyNone,
	}

	baselines, err := s.baselines.GetRange(ctx, desc.Key, latest.Date, latest.Date)
	if err != nil {
		return OverviewTile{}, false, fmt.Errorf("load overview baseline for %s: %w", desc.Key, err)
	}
	if len(baselines) > 0 {
		median := baselines[0].Median
		tile.BaselineMedian = &median
		if latest.Value != nil {
			delta := *latest.Value - median
			tile.DeltaVsBaseline = &delta
			if median != 0 {
				pct := delta / median * 100
				tile.DeltaPercent = &pct
			}
		}
	}

	flagged, err := s.anomalies.GetForKeyAndRange(ctx, desc.Key, latest.Date, latest.Date)
	if err != nil {
		return OverviewTile{}, false, fmt.Errorf("load overview anomaly for %s: %w", desc.Key, err)
	}
	if len(flagged) > 0 {
		tile.AnomalyLevel = flagged[0].Level
	}

	return tile, true, nil
}

// trend7d classifies the move across the 7 days ending at latestDate
func trend7d(series []contracts.DailyMetric, latestDate time.Time) contracts.TrendDirection {
	windowStart := latestDate.AddDate(0, 0, -6)
	var window []contracts.DailyMetric
	for _, m := range series {
		if !m.Date.Before(windowStart) && !m.Date.After(latestDate) {
			window = append(window, m)
		}
	}
	if len(window) < 2 {
		return contracts.TrendFlat
	}
	return classifyTrend(window[0].Value, window[len(window)-1].Value)
}

// GetAnomalies lists flagged days in a range at or above a severity
func (s *Service) GetAnomalies(ctx context.Context, start, end time.Time, minLevel contracts.AnomalyLevel) (*AnomaliesResponse, error) {
	if err := ValidateDateRange(start, end); err != nil {
		return nil, err
	}
	if minLevel == contracts.AnomalyNone {
		minLevel = contracts.AnomalyMild
	}

	rows, err := s.anomalies.GetRange(ctx, start, end, minLevel)
	if err != nil {
		return nil, fmt.Errorf("load anomalies: %w", err)
	}

	items := make([]AnomalyItem, 0, len(rows))
	for _, a := range rows {
		items = append(items, anomalyItem(a))
	}

	return &AnomaliesResponse{
		StartDate: start.Format(dateFormat),
		EndDate:   end.Format(dateFormat),
		MinLevel:  minLevel,
		Anomalies: items,
		Count:     len(items),
	}, nil
}

func anomalyItem(a contracts.Anomaly) AnomalyItem {
	return AnomalyItem{
		Date:           a.Date.Format(dateFormat),
		MetricKey:      a.MetricKey,
		DisplayName:    displayNameFor(a.MetricKey),
		Value:          a.Value,
		BaselineMedian: a.BaselineMedian,
		AnomalyLevel:   a.Level,
		Reason:         a.Reason,
	}
}

// GetCorrelations returns precomputed correlations involving a metric,
// strongest first, filtered to rows stored for the requested window
// (the pipeline default when zero). Nothing is computed on demand.
func (s *Service) GetCorrelations(ctx context.Context, key string, windowDays int) (*CorrelationsResponse, error) {
	if _, err := ValidateMetricKey(key); err != nil {
		return nil, err
	}
	if windowDays == 0 {
		windowDays = pipeline.CorrelationWindowDays
	}
	if windowDays < 0 {
		return nil, fmt.Errorf("%w: window_days must be positive", ErrInvalidRequest)
	}

	rows, err := s.correlations.GetForMetric(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load correlations: %w", err)
	}

	items := make([]CorrelationItem, 0, len(rows))
	for _, c := range rows {
		if c.WindowDays == windowDays {
			items = append(items, correlationItem(c))
		}
	}

	return &CorrelationsResponse{
		MetricKey:    key,
		WindowDays:   windowDays,
		Correlations: items,
		Count:        len(items),
	}, nil
}

func correlationItem(c contracts.Correlation) CorrelationItem {
	return CorrelationItem{
		MetricA:        c.MetricA,
		MetricB:        c.MetricB,
		MetricADisplay: displayNameFor(c.MetricA),
		MetricBDisplay: displayNameFor(c.MetricB),
		LagDays:        c.LagDays,
		Corr:           round3(c.Corr),
		N:              c.N,
		Interpretation: interpretCorrelation(c.Corr, c.MetricA, c.MetricB, c.LagDays),
	}
}

// GetScores returns daily composite scores for a range
func (s *Service) GetScores(ctx context.Context, start, end time.Time) (*ScoresResponse, error) {
	if err := ValidateDateRange(start, end); err != nil {
		return nil, err
	}

	rows, err := s.scores.GetRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("load scores: %w", err)
	}

	items := make([]ScoreItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, scoreItem(r))
	}

	var latest *ScoreItem
	if row, err := s.scores.GetLatest(ctx); err != nil {
		return nil, fmt.Errorf("load latest score: %w", err)
	} else if row != nil {
		item := scoreItem(*row)
		latest = &item
	}

	return &ScoresResponse{
		StartDate: start.Format(dateFormat),
		EndDate:   end.Format(dateFormat),
		Scores:    items,
		Latest:    latest,
		Count:     len(items),
	}, nil
}

func scoreItem(s contracts.DerivedScore) ScoreItem {
	return ScoreItem{
		Date:                s.Date.Format(dateFormat),
		RecoveryScore:       s.RecoveryScore,
		RecoveryLabel:       s.RecoveryLabel,
		RecoveryColor:       s.RecoveryColor,
		StrainScore:         s.StrainScore,
		StrainLabel:         s.StrainLabel,
		StrainPrimaryMetric: s.StrainPrimaryMetric,
		HRVPct:              s.HRVPct,
		RHRPct:              s.RHRPct,
		EffortPct:           s.EffortPct,
	}
}

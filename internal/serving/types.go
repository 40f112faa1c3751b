package serving

import (
	"github.com/wonny/pulse/internal/contracts"
	"github.com/wonny/pulse/internal/taxonomy"
)

// Response shapes for the read-only analytics API. Every payload is
// assembled from the derived tables; nothing is computed on demand
// beyond joins, deltas and trend classification.

// CatalogEntry describes one metric for selectors and chart tooling
type CatalogEntry struct {
	MetricKey            string `json:"metric_key"`
	DisplayName          string `json:"display_name"`
	Unit                 string `json:"unit"`
	Category             string `json:"category"`
	IsSparse             bool   `json:"is_sparse"`
	SupportsAnomalies    bool   `json:"supports_anomalies"`
	SupportsCorrelations bool   `json:"supports_correlations"`
}

// CatalogResponse lists every known metric
type CatalogResponse struct {
	Metrics []CatalogEntry `json:"metrics"`
	Count   int            `json:"count"`
}

// DailyPoint is one day of a metric series with its baseline band.
// Missing days are not backfilled; a null value stays null.
type DailyPoint struct {
	Date           string                 `json:"date"`
	Value          *float64               `json:"value"`
	Unit           string                 `json:"unit"`
	BaselineP25    *float64               `json:"baseline_p25"`
	BaselineP75    *float64               `json:"baseline_p75"`
	BaselineMedian *float64               `json:"baseline_median"`
	AnomalyLevel   contracts.AnomalyLevel `json:"anomaly_level"`
}

// DailySeriesResponse is a metric's time series over a date range
type DailySeriesResponse struct {
	MetricKey   string       `json:"metric_key"`
	DisplayName string       `json:"display_name"`
	Unit        string       `json:"unit"`
	StartDate   string       `json:"start_date"`
	EndDate     string       `json:"end_date"`
	Data        []DailyPoint `json:"data"`
	Count       int          `json:"count"`
}

// OverviewTile summarizes one metric as of a date
type OverviewTile struct {
	MetricKey       string                   `json:"metric_key"`
	DisplayName     string                   `json:"display_name"`
	LatestValue     *float64                 `json:"latest_value"`
	LatestDate      string                   `json:"latest_date"`
	Unit            string                   `json:"unit"`
	BaselineMedian  *float64                 `json:"baseline_median"`
	DeltaVsBaseline *float64                 `json:"delta_vs_baseline"`
	DeltaPercent    *float64                 `json:"delta_percent"`
	Trend7d         contracts.TrendDirection `json:"trend_7d"`
	AnomalyLevel    contracts.AnomalyLevel   `json:"anomaly_level"`
}

// OverviewResponse is the dashboard summary across all metrics
type OverviewResponse struct {
	AsOfDate string         `json:"as_of_date"`
	Tiles    []OverviewTile `json:"tiles"`
	Count    int            `json:"count"`
}

// AnomalyItem is one flagged day for the timeline view
type AnomalyItem struct {
	Date           string                 `json:"date"`
	MetricKey      string                 `json:"metric_key"`
	DisplayName    string                 `json:"display_name"`
	Value          float64                `json:"value"`
	BaselineMedian float64                `json:"baseline_median"`
	AnomalyLevel   contracts.AnomalyLevel `json:"anomaly_level"`
	Reason         string                 `json:"reason"`
}

// AnomaliesResponse lists anomalies in a date range
type AnomaliesResponse struct {
	StartDate string                 `json:"start_date"`
	EndDate   string                 `json:"end_date"`
	MinLevel  contracts.AnomalyLevel `json:"min_level"`
	Anomalies []AnomalyItem          `json:"anomalies"`
	Count     int                    `json:"count"`
}

// CorrelationItem is one precomputed pair result with interpretation
type CorrelationItem struct {
	MetricA        string  `json:"metric_a"`
	MetricB        string  `json:"metric_b"`
	MetricADisplay string  `json:"metric_a_display"`
	MetricBDisplay string  `json:"metric_b_display"`
	LagDays        int     `json:"lag_days"`
	Corr           float64 `json:"corr"`
	N              int     `json:"n"`
	Interpretation string  `json:"interpretation"`
}

// CorrelationsResponse lists correlations involving one metric
type CorrelationsResponse struct {
	MetricKey    string            `json:"metric_key"`
	WindowDays   int               `json:"window_days"`
	Correlations []CorrelationItem `json:"correlations"`
	Count        int               `json:"count"`
}

// ScoreItem is one day's composite scores
type ScoreItem struct {
	Date                string   `json:"date"`
	RecoveryScore       *int     `json:"recovery_score"`
	RecoveryLabel       string   `json:"recovery_label,omitempty"`
	RecoveryColor       string   `json:"recovery_color,omitempty"`
	StrainScore         *int     `json:"strain_score"`
	StrainLabel         string   `json:"strain_label,omitempty"`
	StrainPrimaryMetric string   `json:"strain_primary_metric,omitempty"`
	HRVPct              *float64 `json:"hrv_pct"`
	RHRPct              *float64 `json:"rhr_pct"`
	EffortPct           *float64 `json:"effort_pct"`
}

// ScoresResponse is a range of daily scores plus the latest row
type ScoresResponse struct {
	StartDate string      `json:"start_date"`
	EndDate   string      `json:"end_date"`
	Scores    []ScoreItem `json:"scores"`
	Latest    *ScoreItem  `json:"latest"`
	Count     int         `json:"count"`
}

// TimeSeriesSummary condenses a series for chart context
type TimeSeriesSummary struct {
	LastNDays int        `json:"last_n_days"`
	Dates     []string   `json:"dates"`
	Values    []*float64 `json:"values"`
	MinValue  *float64   `json:"min_value"`
	MaxValue  *float64   `json:"max_value"`
	MeanValue *float64   `json:"mean_value"`
}

// BaselineSummary is the baseline band at the focus date
type BaselineSummary struct {
	CurrentMedian *float64 `json:"current_median"`
	CurrentP25    *float64 `json:"current_p25"`
	CurrentP75    *float64 `json:"current_p75"`
	HasBaseline   bool     `json:"has_baseline"`
}

// AnomalySummary counts and lists anomalies in the context range
type AnomalySummary struct {
	TotalCount      int           `json:"total_count"`
	MildCount       int           `json:"mild_count"`
	StrongCount     int           `json:"strong_count"`
	RecentAnomalies []AnomalyItem `json:"recent_anomalies"`
}

// DataQualityIndicators describe how trustworthy the range is
type DataQualityIndicators struct {
	TotalDays       int      `json:"total_days"`
	DaysWithData    int      `json:"days_with_data"`
	CoveragePercent float64  `json:"coverage_percent"`
	AvgSampleCount  *float64 `json:"avg_sample_count"`
}

// ChartContextResponse is the structured explanation payload for one
// chart. It prepares context only; no model is called here.
type ChartContextResponse struct {
	MetricKey        string                `json:"metric_key"`
	DisplayName      string                `json:"display_name"`
	Unit             string                `json:"unit"`
	Category         string                `json:"category"`
	StartDate        string                `json:"start_date"`
	EndDate          string                `json:"end_date"`
	FocusDate        string                `json:"focus_date,omitempty"`
	TimeSeries       TimeSeriesSummary     `json:"time_series"`
	Baseline         BaselineSummary       `json:"baseline"`
	Anomalies        AnomalySummary        `json:"anomalies"`
	Correlations     []CorrelationItem     `json:"correlations"`
	DataQuality      DataQualityIndicators `json:"data_quality"`
	ConfidenceLevel  contracts.Confidence  `json:"confidence_level"`
	ConfidenceReason string                `json:"confidence_reason"`
}

func catalogEntry(d taxonomy.Descriptor) CatalogEntry {
	return CatalogEntry{
		MetricKey:            d.Key,
		DisplayName:          d.DisplayName,
		Unit:                 d.Unit,
		Category:             string(d.Category),
		IsSparse:             d.Sparse,
		SupportsAnomalies:    d.AnomalyEligible,
		SupportsCorrelations: d.SupportsCorrelations,
	}
}

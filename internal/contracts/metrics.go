package contracts

import (
	"time"
)

// SourceQuality ranks how trustworthy a day's samples are, based on the
// best device seen that day (wearable > third-party tracker > phone).
type SourceQuality string

const (
	QualityLow    SourceQuality = "low"
	QualityMedium SourceQuality = "medium"
	QualityHigh   SourceQuality = "high"
)

// AnomalyLevel classifies a robust z-score deviation
type AnomalyLevel string

const (
	AnomalyNone   AnomalyLevel = "none"
	AnomalyMild   AnomalyLevel = "mild"
	AnomalyStrong AnomalyLevel = "strong"
)

// Rank returns the severity order of a level (none < mild < strong)
func (l AnomalyLevel) Rank() int {
	switch l {
	case AnomalyMild:
		return 1
	case AnomalyStrong:
		return 2
	default:
		return 0
	}
}

// AtLeast reports whether l is as severe as min
func (l AnomalyLevel) AtLeast(min AnomalyLevel) bool {
	return l.Rank() >= min.Rank()
}

// ParseAnomalyLevel converts a string to an AnomalyLevel, defaulting to none
func ParseAnomalyLevel(s string) AnomalyLevel {
	switch s {
	case string(AnomalyMild):
		return AnomalyMild
	case string(AnomalyStrong):
		return AnomalyStrong
	default:
		return AnomalyNone
	}
}

// TrendDirection classifies a 7-day movement
type TrendDirection string

const (
	TrendUp   TrendDirection = "up"
	TrendDown TrendDirection = "down"
	TrendFlat TrendDirection = "flat"
)

// Confidence classifies how reliable served data is, purely from
// data-quality inputs (coverage and baseline presence).
type Confidence string

const (
	ConfidenceHigh   Confidence = "High"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceLow    Confidence = "Low"
)

// Observation is a single raw sample from the upstream observation
// store. Immutable; owned by the ingestion collaborator.
type Observation struct {
	Type       string    `json:"type"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	SourceName string    `json:"source_name"`
}

// DailyMetric is the full-day aggregate for one (date, metric_key).
// Value is nil when the day has no usable samples after filtering.
type DailyMetric struct {
	Date          time.Time     `json:"date"`
	MetricKey     string        `json:"metric_key"`
	Value         *float64      `json:"value"`
	Unit          string        `json:"unit"`
	SampleCount   int           `json:"sample_count"`
	CoverageScore float64       `json:"coverage_score"`
	SourceQuality SourceQuality `json:"source_quality"`
}

// Baseline holds 28-day trailing robust statistics for one
// (date, metric_key). The window is strictly [date-28, date): the
// row's own date never contributes.
type Baseline struct {
	Date       time.Time `json:"date"`
	MetricKey  string    `json:"metric_key"`
	Median     float64   `json:"baseline_28d_median"`
	P25        float64   `json:"baseline_28d_p25"`
	P75        float64   `json:"baseline_28d_p75"`
	MAD        float64   `json:"baseline_28d_mad"`
	DataPoints int       `json:"data_points"`
}

// IQR returns the interquartile range of the baseline window
func (b Baseline) IQR() float64 {
	return b.P75 - b.P25
}

// Anomaly flags one day's deviation from its baseline
type Anomaly struct {
	Date           time.Time    `json:"date"`
	MetricKey      string       `json:"metric_key"`
	Value          float64      `json:"value"`
	BaselineMedian float64      `json:"baseline_median"`
	ZMAD           float64      `json:"z_mad"`
	Level          AnomalyLevel `json:"anomaly_level"`
	Reason         string       `json:"reason"`
}

// Strain primary metric identifiers
const (
	StrainPrimaryEffort       = "effort_load"
	StrainPrimaryActiveEnergy = "active_energy"
)

// DerivedScore holds the composite readiness scores for one date.
// A nil score means the required inputs were missing; scores are never
// interpolated from partial inputs.
type DerivedScore struct {
	Date                time.Time `json:"date"`
	RecoveryScore       *int      `json:"recovery_score"`
	RecoveryLabel       string    `json:"recovery_label,omitempty"`
	RecoveryColor       string    `json:"recovery_color,omitempty"`
	StrainScore         *int      `json:"strain_score"`
	StrainLabel         string    `json:"strain_label,omitempty"`
	StrainPrimaryMetric string    `json:"strain_primary_metric,omitempty"`
	HRVPct              *float64  `json:"hrv_pct"`
	RHRPct              *float64  `json:"rhr_pct"`
	EffortPct           *float64  `json:"effort_pct"`
}

// RecoveryLabelFor maps a recovery score to its label.
// Thresholds are contract values; changing them is a breaking change.
func RecoveryLabelFor(score int) string {
	switch {
	case score >= 67:
		return "Ready"
	case score >= 34:
		return "Caution"
	default:
		return "Recover"
	}
}

// RecoveryColorFor maps a recovery score to its dashboard color
func RecoveryColorFor(score int) string {
	switch {
	case score >= 67:
		return "green"
	case score >= 34:
		return "yellow"
	default:
		return "red"
	}
}

// StrainLabelFor maps a strain score to its label
func StrainLabelFor(score int) string {
	switch {
	case score >= 67:
		return "High"
	case score >= 34:
		return "Moderate"
	default:
		return "Low"
	}
}

// Correlation is a lagged Pearson coefficient between two metrics.
// metric_a on day d is aligned with metric_b on day d - lag.
type Correlation struct {
	MetricA    string  `json:"metric_a"`
	MetricB    string  `json:"metric_b"`
	LagDays    int     `json:"lag_days"`
	Corr       float64 `json:"corr"`
	N          int     `json:"n"`
	WindowDays int     `json:"window_days"`
}

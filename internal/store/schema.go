package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Derived tables live in the analytics schema. The raw.observations
// table is owned by the ingestion collaborator and is never created or
// written here.
const (
	TableDailyMetrics  = "analytics.daily_metrics"
	TableBaselines     = "analytics.baselines"
	TableAnomalies     = "analytics.anomalies"
	TableDerivedScores = "analytics.derived_scores"
	TableCorrelations  = "analytics.correlations"
)

// stagingName returns the rebuild-side name for a derived table
func stagingName(table string) string {
	return table + "__rebuild"
}

var schemaDDL = []string{
	`CREATE SCHEMA IF NOT EXISTS analytics`,
	`CREATE TABLE IF NOT EXISTS analytics.daily_metrics (
		date            DATE NOT NULL,
		metric_key      TEXT NOT NULL,
		value           DOUBLE PRECISION,
		unit            TEXT NOT NULL,
		sample_count    INTEGER NOT NULL,
		coverage_score  DOUBLE PRECISION NOT NULL,
		source_quality  TEXT NOT NULL,
		PRIMARY KEY (date, metric_key)
	)`,
	`CREATE TABLE IF NOT EXISTS analytics.baselines (
		date                 DATE NOT NULL,
		metric_key           TEXT NOT NULL,
		baseline_28d_median  DOUBLE PRECISION NOT NULL,
		baseline_28d_p25     DOUBLE PRECISION NOT NULL,
		baseline_28d_p75     DOUBLE PRECISION NOT NULL,
		baseline_28d_mad     DOUBLE PRECISION NOT NULL,
		data_points          INTEGER NOT NULL,
		PRIMARY KEY (date, metric_key)
	)`,
	`CREATE TABLE IF NOT EXISTS analytics.anomalies (
		date             DATE NOT NULL,
		metric_key       TEXT NOT NULL,
		value            DOUBLE PRECISION NOT NULL,
		baseline_median  DOUBLE PRECISION NOT NULL,
		z_mad            DOUBLE PRECISION NOT NULL,
		anomaly_level    TEXT NOT NULL,
		reason           TEXT NOT NULL,
		PRIMARY KEY (date, metric_key)
	)`,
	`CREATE TABLE IF NOT EXISTS analytics.derived_scores (
		date                  DATE PRIMARY KEY,
		recovery_score        INTEGER,
		recovery_label        TEXT,
		recovery_color        TEXT,
		strain_score          INTEGER,
		strain_label          TEXT,
		strain_primary_metric TEXT,
		hrv_pct               DOUBLE PRECISION,
		rhr_pct               DOUBLE PRECISION,
		effort_pct            DOUBLE PRECISION
	)`,
	`CREATE TABLE IF NOT EXISTS analytics.correlations (
		metric_a    TEXT NOT NULL,
		metric_b    TEXT NOT NULL,
		lag_days    INTEGER NOT NULL,
		corr        DOUBLE PRECISION NOT NULL,
		n           INTEGER NOT NULL,
		window_days INTEGER NOT NULL,
		PRIMARY KEY (metric_a, metric_b, lag_days)
	)`,
}

// EnsureSchema creates the analytics schema and derived tables if
// they do not exist yet. Safe to call on every startup.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, ddl := range schemaDDL {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

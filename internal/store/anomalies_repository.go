package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/pulse/internal/contracts"
)

// AnomalyRepository stores per-day anomaly flags
type AnomalyRepository struct {
	pool *pgxpool.Pool
}

// NewAnomalyRepository creates a new anomaly repository
func NewAnomalyRepository(pool *pgxpool.Pool) *AnomalyRepository {
	return &AnomalyRepository{pool: pool}
}

// InsertStaging bulk-loads anomalies into the staging table
func (r *AnomalyRepository) InsertStaging(ctx context.Context, anomalies []contracts.Anomaly) error {
	if len(anomalies) == 0 {
		return nil
	}

	rows := make([][]interface{}, 0, len(anomalies))
	for _, a := range anomalies {
		rows = append(rows, []interface{}{
			a.Date, a.MetricKey, a.Value, a.BaselineMedian, a.ZMAD, string(a.Level), a.Reason,
		})
	}

	_, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"analytics", "anomalies__rebuild"},
		[]string{"date", "metric_key", "value", "baseline_median", "z_mad", "anomaly_level", "reason"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("copy anomalies: %w", err)
	}
	return nil
}

// GetRange retrieves flagged anomalies in a date range at or above the
// given severity, newest first then by metric key.
func (r *AnomalyRepository) GetRange(ctx context.Context, from, to time.Time, minLevel contracts.AnomalyLevel) ([]contracts.Anomaly, error) {
	query := `
		SELECT date, metric_key, value, baseline_median, z_mad, anomaly_level, reason
		FROM analytics.anomalies
		WHERE date BETWEEN $1 AND $2 AND anomaly_level <> 'none'
		ORDER BY date DESC, metric_key ASC
	`

	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("query anomalies: %w", err)
	}
	defer rows.Close()

	var anomalies []contracts.Anomaly
	for rows.Next() {
		var a contracts.Anomaly
		var level string
		if err := rows.Scan(&a.Date, &a.MetricKey, &a.Value, &a.BaselineMedian, &a.ZMAD, &level, &a.Reason); err != nil {
			return nil, err
		}
		a.Level = contracts.ParseAnomalyLevel(level)
		// Severity filtering stays in Go so the level ordering has one home
		if a.Level.AtLeast(minLevel) {
			anomalies = append(anomalies, a)
		}
	}
	return anomalies, rows.Err()
}

// GetForKeyAndRange retrieves every flagged row for one metric,
// ordered by date ascending.
func (r *AnomalyRepository) GetForKeyAndRange(ctx context.Context, key string, from, to time.Time) ([]contracts.Anomaly, error) {
	query := `
		SELECT date, metric_key, value, baseline_median, z_mad, anomaly_level, reason
		FROM analytics.anomalies
		WHERE metric_key = $1 AND date BETWEEN $2 AND $3
		ORDER BY date ASC
	`

	rows, err := r.pool.Query(ctx, query, key, from, to)
	if err != nil {
		return nil, fmt.Errorf("query anomalies for %s: %w", key, err)
	}
	defer rows.Close()

	var anomalies []contracts.Anomaly
	for rows.Next() {
		var a contracts.Anomaly
		var level string
		if err := rows.Scan(&a.Date, &a.MetricKey, &a.Value, &a.BaselineMedian, &a.ZMAD, &level, &a.Reason); err != nil {
			return nil, err
		}
		a.Level = contracts.ParseAnomalyLevel(level)
		anomalies = append(anomalies, a)
	}
	return anomalies, rows.Err()
}

// DistinctKeys returns the metric keys that have any anomaly rows
func (r *AnomalyRepository) DistinctKeys(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT metric_key FROM analytics.anomalies ORDER BY metric_key`)
	if err != nil {
		return nil, fmt.Errorf("query anomaly keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

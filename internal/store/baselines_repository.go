package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/pulse/internal/contracts"
)

// BaselineRepository stores 28-day rolling baseline statistics
type BaselineRepository struct {
	pool *pgxpool.Pool
}

// NewBaselineRepository creates a new baseline repository
func NewBaselineRepository(pool *pgxpool.Pool) *BaselineRepository {
	return &BaselineRepository{pool: pool}
}

// InsertStaging bulk-loads baselines into the staging table
func (r *BaselineRepository) InsertStaging(ctx context.Context, baselines []contracts.Baseline) error {
	if len(baselines) == 0 {
		return nil
	}

	rows := make([][]interface{}, 0, len(baselines))
	for _, b := range baselines {
		rows = append(rows, []interface{}{
			b.Date, b.MetricKey, b.Median, b.P25, b.P75, b.MAD, b.DataPoints,
		})
	}

	_, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"analytics", "baselines__rebuild"},
		[]string{"date", "metric_key", "baseline_28d_median", "baseline_28d_p25", "baseline_28d_p75", "baseline_28d_mad", "data_points"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("copy baselines: %w", err)
	}
	return nil
}

// GetRange retrieves one metric's baselines within a date range,
// ordered by date ascending.
func (r *BaselineRepository) GetRange(ctx context.Context, key string, from, to time.Time) ([]contracts.Baseline, error) {
	query := `
		SELECT date, metric_key, baseline_28d_median, baseline_28d_p25, baseline_28d_p75, baseline_28d_mad, data_points
		FROM analytics.baselines
		WHERE metric_key = $1 AND date BETWEEN $2 AND $3
		ORDER BY date ASC
	`

	rows, err := r.pool.Query(ctx, query, key, from, to)
	if err != nil {
		return nil, fmt.Errorf("query baselines for %s: %w", key, err)
	}
	defer rows.Close()

	var baselines []contracts.Baseline
	for rows.Next() {
		var b contracts.Baseline
		if err := rows.Scan(&b.Date, &b.MetricKey, &b.Median, &b.P25, &b.P75, &b.MAD, &b.DataPoints); err != nil {
			return nil, err
		}
		baselines = append(baselines, b)
	}
	return baselines, rows.Err()
}

// CountForKey returns how many baseline rows exist for a metric in the
// range. Used for serving confidence.
func (r *BaselineRepository) CountForKey(ctx context.Context, key string, from, to time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM analytics.baselines
		WHERE metric_key = $1 AND date BETWEEN $2 AND $3
	`

	var n int
	if err := r.pool.QueryRow(ctx, query, key, from, to).Scan(&n); err != nil {
		return 0, fmt.Errorf("count baselines for %s: %w", key, err)
	}
	return n, nil
}

// DistinctKeys returns the metric keys that have any baseline rows.
// The serving layer uses this to verify the allowlist invariant.
func (r *BaselineRepository) DistinctKeys(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT metric_key FROM analytics.baselines ORDER BY metric_key`)
	if err != nil {
		return nil, fmt.Errorf("query baseline keys: %w", err)
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

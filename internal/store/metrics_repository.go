package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/pulse/internal/contracts"
)

// DailyMetricRepository stores per-day metric aggregates
type DailyMetricRepository struct {
	pool *pgxpool.Pool
}

// NewDailyMetricRepository creates a new daily metric repository
func NewDailyMetricRepository(pool *pgxpool.Pool) *DailyMetricRepository {
	return &DailyMetricRepository{pool: pool}
}

// InsertStaging bulk-loads aggregates into the staging table
func (r *DailyMetricRepository) InsertStaging(ctx context.Context, metrics []contracts.DailyMetric) error {
	if len(metrics) == 0 {
		return nil
	}

	rows := make([][]interface{}, 0, len(metrics))
	for _, m := range metrics {
		rows = append(rows, []interface{}{
			m.Date, m.MetricKey, m.Value, m.Unit, m.SampleCount, m.CoverageScore, string(m.SourceQuality),
		})
	}

	_, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"analytics", "daily_metrics__rebuild"},
		[]string{"date", "metric_key", "value", "unit", "sample_count", "coverage_score", "source_quality"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("copy daily metrics: %w", err)
	}
	return nil
}

const dailyMetricColumns = `date, metric_key, value, unit, sample_count, coverage_score, source_quality`

func scanDailyMetric(row pgx.Rows) (contracts.DailyMetric, error) {
	var m contracts.DailyMetric
	var quality string
	err := row.Scan(&m.Date, &m.MetricKey, &m.Value, &m.Unit, &m.SampleCount, &m.CoverageScore, &quality)
	m.SourceQuality = contracts.SourceQuality(quality)
	return m, err
}

// GetRange retrieves one metric's aggregates within a date range,
// ordered by date ascending.
func (r *DailyMetricRepository) GetRange(ctx context.Context, key string, from, to time.Time) ([]contracts.DailyMetric, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM analytics.daily_metrics
		WHERE metric_key = $1 AND date BETWEEN $2 AND $3
		ORDER BY date ASC
	`, dailyMetricColumns)

	rows, err := r.pool.Query(ctx, query, key, from, to)
	if err != nil {
		return nil, fmt.Errorf("query daily metrics for %s: %w", key, err)
	}
	defer rows.Close()

	var metrics []contracts.DailyMetric
	for rows.Next() {
		m, err := scanDailyMetric(rows)
		if err != nil {
			return nil, err
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

// GetByDate retrieves every metric's aggregate for one date
func (r *DailyMetricRepository) GetByDate(ctx context.Context, date time.Time) ([]contracts.DailyMetric, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM analytics.daily_metrics
		WHERE date = $1
		ORDER BY metric_key ASC
	`, dailyMetricColumns)

	rows, err := r.pool.Query(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("query daily metrics for %s: %w", date.Format("2006-01-02"), err)
	}
	defer rows.Close()

	var metrics []contracts.DailyMetric
	for rows.Next() {
		m, err := scanDailyMetric(rows)
		if err != nil {
			return nil, err
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

// GetLatestDate returns the most recent date with any aggregate,
// or the zero time when the table is empty.
func (r *DailyMetricRepository) GetLatestDate(ctx context.Context) (time.Time, error) {
	var latest *time.Time
	err := r.pool.QueryRow(ctx, `SELECT MAX(date) FROM analytics.daily_metrics`).Scan(&latest)
	if err != nil {
		return time.Time{}, fmt.Errorf("query latest metric date: %w", err)
	}
	if latest == nil {
		return time.Time{}, nil
	}
	return *latest, nil
}

// CountDaysWithValue returns how many days in the range have a non-null
// value for the metric. Used for serving confidence.
func (r *DailyMetricRepository) CountDaysWithValue(ctx context.Context, key string, from, to time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM analytics.daily_metrics
		WHERE metric_key = $1 AND date BETWEEN $2 AND $3 AND value IS NOT NULL
	`

	var n int
	if err := r.pool.QueryRow(ctx, query, key, from, to).Scan(&n); err != nil {
		return 0, fmt.Errorf("count metric days for %s: %w", key, err)
	}
	return n, nil
}

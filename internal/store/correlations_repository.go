package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/pulse/internal/contracts"
)

// CorrelationRepository stores lagged correlation results
type CorrelationRepository struct {
	pool *pgxpool.Pool
}

// NewCorrelationRepository creates a new correlation repository
func NewCorrelationRepository(pool *pgxpool.Pool) *CorrelationRepository {
	return &CorrelationRepository{pool: pool}
}

// InsertStaging bulk-loads correlations into the staging table
func (r *CorrelationRepository) InsertStaging(ctx context.Context, correlations []contracts.Correlation) error {
	if len(correlations) == 0 {
		return nil
	}

	rows := make([][]interface{}, 0, len(correlations))
	for _, c := range correlations {
		rows = append(rows, []interface{}{
			c.MetricA, c.MetricB, c.LagDays, c.Corr, c.N, c.WindowDays,
		})
	}

	_, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"analytics", "correlations__rebuild"},
		[]string{"metric_a", "metric_b", "lag_days", "corr", "n", "window_days"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("copy correlations: %w", err)
	}
	return nil
}

// GetAll retrieves every stored correlation, strongest first
func (r *CorrelationRepository) GetAll(ctx context.Context) ([]contracts.Correlation, error) {
	query := `
		SELECT metric_a, metric_b, lag_days, corr, n, window_days
		FROM analytics.correlations
		ORDER BY ABS(corr) DESC, metric_a ASC, metric_b ASC, lag_days ASC
	`
	return r.query(ctx, query)
}

// GetForMetric retrieves correlations involving one metric, strongest first
func (r *CorrelationRepository) GetForMetric(ctx context.Context, key string) ([]contracts.Correlation, error) {
	query := `
		SELECT metric_a, metric_b, lag_days, corr, n, window_days
		FROM analytics.correlations
		WHERE metric_a = $1 OR metric_b = $1
		ORDER BY ABS(corr) DESC, metric_a ASC, metric_b ASC, lag_days ASC
	`
	return r.query(ctx, query, key)
}

func (r *CorrelationRepository) query(ctx context.Context, query string, args ...interface{}) ([]contracts.Correlation, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query correlations: %w", err)
	}
	defer rows.Close()

	var correlations []contracts.Correlation
	for rows.Next() {
		var c contracts.Correlation
		if err := rows.Scan(&c.MetricA, &c.MetricB, &c.LagDays, &c.Corr, &c.N, &c.WindowDays); err != nil {
			return nil, err
		}
		correlations = append(correlations, c)
	}
	return correlations, rows.Err()
}

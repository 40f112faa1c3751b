package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/pulse/internal/contracts"
)

// ObservationRepository reads the raw observation store. It is strictly
// read-only: ingestion owns raw.observations and this process never
// mutates it.
type ObservationRepository struct {
	pool *pgxpool.Pool
}

// NewObservationRepository creates a new observation reader
func NewObservationRepository(pool *pgxpool.Pool) *ObservationRepository {
	return &ObservationRepository{pool: pool}
}

// GetByType retrieves every sample of one observation type, ordered by
// start time. Quantity rows with a NULL value are dropped; categorical
// rows never carry a numeric value and pass through as 0.
func (r *ObservationRepository) GetByType(ctx context.Context, obsType string) ([]contracts.Observation, error) {
	query := `
		SELECT type, value, COALESCE(unit, ''), start_time, end_time, COALESCE(source_name, '')
		FROM raw.observations
		WHERE type = $1
		ORDER BY start_time ASC
	`

	rows, err := r.pool.Query(ctx, query, obsType)
	if err != nil {
		return nil, fmt.Errorf("query observations for %s: %w", obsType, err)
	}
	defer rows.Close()

	var obs []contracts.Observation
	for rows.Next() {
		var o contracts.Observation
		var value *float64
		if err := rows.Scan(&o.Type, &value, &o.Unit, &o.StartTime, &o.EndTime, &o.SourceName); err != nil {
			return nil, err
		}
		if value == nil && !categoricalType(o.Type) {
			continue
		}
		if value != nil {
			o.Value = *value
		}
		obs = append(obs, o)
	}
	return obs, rows.Err()
}

// categoricalType reports whether an observation type stores category
// samples rather than quantities
func categoricalType(obsType string) bool {
	return strings.HasPrefix(obsType, "cat_")
}

// CountByType returns the number of raw samples per observation type
func (r *ObservationRepository) CountByType(ctx context.Context) (map[string]int64, error) {
	query := `SELECT type, COUNT(*) FROM raw.observations GROUP BY type`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count observations: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var t string
		var n int64
		if err := rows.Scan(&t, &n); err != nil {
			return nil, err
		}
		counts[t] = n
	}
	return counts, rows.Err()
}

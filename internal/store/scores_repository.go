package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/pulse/internal/contracts"
)

// ScoreRepository stores composite recovery and strain scores
type ScoreRepository struct {
	pool *pgxpool.Pool
}

// NewScoreRepository creates a new score repository
func NewScoreRepository(pool *pgxpool.Pool) *ScoreRepository {
	return &ScoreRepository{pool: pool}
}

// InsertStaging bulk-loads scores into the staging table
func (r *ScoreRepository) InsertStaging(ctx context.Context, scores []contracts.DerivedScore) error {
	if len(scores) == 0 {
		return nil
	}

	rows := make([][]interface{}, 0, len(scores))
	for _, s := range scores {
		rows = append(rows, []interface{}{
			s.Date, s.RecoveryScore, nullable(s.RecoveryLabel), nullable(s.RecoveryColor),
			s.StrainScore, nullable(s.StrainLabel), nullable(s.StrainPrimaryMetric),
			s.HRVPct, s.RHRPct, s.EffortPct,
		})
	}

	_, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"analytics", "derived_scores__rebuild"},
		[]string{"date", "recovery_score", "recovery_label", "recovery_color",
			"strain_score", "strain_label", "strain_primary_metric",
			"hrv_pct", "rhr_pct", "effort_pct"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("copy derived scores: %w", err)
	}
	return nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// GetRange retrieves scores within a date range, ordered by date ascending
func (r *ScoreRepository) GetRange(ctx context.Context, from, to time.Time) ([]contracts.DerivedScore, error) {
	query := `
		SELECT date, recovery_score, COALESCE(recovery_label, ''), COALESCE(recovery_color, ''),
		       strain_score, COALESCE(strain_label, ''), COALESCE(strain_primary_metric, ''),
		       hrv_pct, rhr_pct, effort_pct
		FROM analytics.derived_scores
		WHERE date BETWEEN $1 AND $2
		ORDER BY date ASC
	`

	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("query derived scores: %w", err)
	}
	defer rows.Close()

	var scores []contracts.DerivedScore
	for rows.Next() {
		var s contracts.DerivedScore
		if err := rows.Scan(&s.Date, &s.RecoveryScore, &s.RecoveryLabel, &s.RecoveryColor,
			&s.StrainScore, &s.StrainLabel, &s.StrainPrimaryMetric,
			&s.HRVPct, &s.RHRPct, &s.EffortPct); err != nil {
			return nil, err
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}

// GetLatest retrieves the most recent score row, or nil when empty
func (r *ScoreRepository) GetLatest(ctx context.Context) (*contracts.DerivedScore, error) {
	query := `
		SELECT date, recovery_score, COALESCE(recovery_label, ''), COALESCE(recovery_color, ''),
		       strain_score, COALESCE(strain_label, ''), COALESCE(strain_primary_metric, ''),
		       hrv_pct, rhr_pct, effort_pct
		FROM analytics.derived_scores
		ORDER BY date DESC
		LIMIT 1
	`

	var s contracts.DerivedScore
	err := r.pool.QueryRow(ctx, query).Scan(&s.Date, &s.RecoveryScore, &s.RecoveryLabel, &s.RecoveryColor,
		&s.StrainScore, &s.StrainLabel, &s.StrainPrimaryMetric,
		&s.HRVPct, &s.RHRPct, &s.EffortPct)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest score: %w", err)
	}
	return &s, nil
}

package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Rebuilder coordinates the copy-and-swap rebuild. The pipeline writes
// every derived table into a __rebuild twin, then all twins replace the
// live tables inside a single transaction. Readers never observe a
// half-rebuilt state: they see the old snapshot or the new one.
type Rebuilder struct {
	pool *pgxpool.Pool
}

// NewRebuilder creates a new rebuild coordinator
func NewRebuilder(pool *pgxpool.Pool) *Rebuilder {
	return &Rebuilder{pool: pool}
}

// allDerivedTables in swap order
var allDerivedTables = []string{
	TableDailyMetrics,
	TableBaselines,
	TableAnomalies,
	TableDerivedScores,
	TableCorrelations,
}

// PrepareStaging drops any leftover staging tables from a failed run
// and recreates them with the live tables' structure.
func (r *Rebuilder) PrepareStaging(ctx context.Context) error {
	for _, table := range allDerivedTables {
		staging := stagingName(table)
		if _, err := r.pool.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, staging)); err != nil {
			return fmt.Errorf("drop staging %s: %w", staging, err)
		}
		ddl := fmt.Sprintf(`CREATE TABLE %s (LIKE %s INCLUDING ALL)`, staging, table)
		if _, err := r.pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("create staging %s: %w", staging, err)
		}
	}
	return nil
}

// Swap atomically replaces every live derived table with its staging
// twin. Runs in one transaction; Postgres DDL is transactional, so a
// failure at any point leaves the previous snapshot fully intact.
func (r *Rebuilder) Swap(ctx context.Context) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin swap: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, table := range allDerivedTables {
		bare := table[strings.LastIndex(table, ".")+1:]
		if _, err := tx.Exec(ctx, fmt.Sprintf(`DROP TABLE %s`, table)); err != nil {
			return fmt.Errorf("drop live %s: %w", table, err)
		}
		rename := fmt.Sprintf(`ALTER TABLE %s RENAME TO %s`, stagingName(table), bare)
		if _, err := tx.Exec(ctx, rename); err != nil {
			return fmt.Errorf("rename staging %s: %w", table, err)
		}
	}

	return tx.Commit(ctx)
}

// DiscardStaging removes staging tables after a failed or aborted run
func (r *Rebuilder) DiscardStaging(ctx context.Context) error {
	for _, table := range allDerivedTables {
		if _, err := r.pool.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, stagingName(table))); err != nil {
			return fmt.Errorf("discard staging for %s: %w", table, err)
		}
	}
	return nil
}

// Package postgres implements the warehouse contract on Postgres using pgx
// v5. Batches are sent as multi-row INSERT statements; upserts use
// INSERT ... ON CONFLICT (keys) DO UPDATE SET col = EXCLUDED.col inside a
// single transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Svencol/data-modeling-pipeline/internal/warehouse"
	"github.com/Svencol/data-modeling-pipeline/pkg/records"
)

// upsertBatchSize bounds the multi-row conflict statements built per round
// trip inside an upsert transaction.
const upsertBatchSize = 500

// Config holds Postgres repository configuration.
type Config struct {
	// DSN is the connection string for pgxpool.
	DSN string

	// MaxConns bounds the pool. Zero keeps pgxpool's default.
	MaxConns int32
}

// Repository is a Postgres-backed implementation of warehouse.Repository.
type Repository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewRepository constructs a Repository and returns a close function for
// cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool config: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	closeFn := func() { pool.Close() }
	return &Repository{pool: pool, log: slog.Default().With("backend", "postgres")}, closeFn, nil
}

// Ping performs a no-op round trip against the pool.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Load sends the dataset to the target table in multi-row INSERT batches of
// at most batchSize, honoring mode. The returned count is rows sent; it is
// undefined when err is non-nil.
func (r *Repository) Load(ctx context.Context, ds records.Dataset, table, schemaNS string, mode warehouse.LoadMode, batchSize int) (int64, error) {
	target := fqn(schemaNS, table)
	if ds.Empty() {
		r.log.Warn("empty dataset, skipping load", "table", target)
		return 0, nil
	}

	switch mode {
	case warehouse.ModeAppend:
	case warehouse.ModeReplace:
		if _, err := r.pool.Exec(ctx, "DELETE FROM "+target); err != nil {
			return 0, fmt.Errorf("clear target %s: %w", target, pgDetail(err))
		}
		r.log.Warn("target cleared for replace load; a later batch failure leaves it partially loaded", "table", target)
	case warehouse.ModeFail:
		var exists bool
		if err := r.pool.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM "+target+")").Scan(&exists); err != nil {
			return 0, fmt.Errorf("pre-check %s: %w", target, pgDetail(err))
		}
		if exists {
			return 0, fmt.Errorf("%w: %s", warehouse.ErrTargetExists, target)
		}
	default:
		return 0, fmt.Errorf("invalid load mode %q", mode)
	}

	var total int64
	err := warehouse.ForEachBatch(ds, batchSize, r.log.With("table", target), func(b warehouse.Batch) error {
		sql := insertSQL(target, ds.Columns, len(b.Rows))
		tag, err := r.pool.Exec(ctx, sql, flatten(b.Rows)...)
		if err != nil {
			return pgDetail(err)
		}
		r.log.Debug("insert batch committed", "table", target, "batch", b.Index, "affected", tag.RowsAffected())
		total += int64(len(b.Rows))
		return nil
	})
	if err != nil {
		return 0, err
	}
	r.log.Info("load complete", "table", target, "rows", total, "mode", string(mode))
	return total, nil
}

// Upsert applies the dataset inside one transaction, resolving conflicts on
// keyColumns by overwriting updateColumns (all non-key columns when nil).
// Any failed statement rolls the whole call back.
func (r *Repository) Upsert(ctx context.Context, ds records.Dataset, table, schemaNS string, keyColumns, updateColumns []string) (int64, error) {
	target := fqn(schemaNS, table)
	if ds.Empty() {
		r.log.Warn("empty dataset, skipping upsert", "table", target)
		return 0, nil
	}
	if err := warehouse.CheckKeySpec(ds, keyColumns); err != nil {
		return 0, err
	}
	if updateColumns == nil {
		updateColumns = warehouse.DefaultUpdateColumns(ds.Columns, keyColumns)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var total int64
	err = warehouse.ForEachBatch(ds, upsertBatchSize, r.log.With("table", target), func(b warehouse.Batch) error {
		sql := upsertSQL(target, ds.Columns, keyColumns, updateColumns, len(b.Rows))
		if _, err := tx.Exec(ctx, sql, flatten(b.Rows)...); err != nil {
			return pgDetail(err)
		}
		total += int64(len(b.Rows))
		return nil
	})
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	r.log.Info("upsert complete", "table", target, "rows", total, "keys", keyColumns)
	return total, nil
}

// pgDetail surfaces the Postgres error detail and SQL state when available.
func pgDetail(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("%s (%s): %w", pgErr.Detail, pgErr.SQLState(), err)
	}
	return err
}

// flatten appends all row values into a single positional-argument slice.
func flatten(rows [][]any) []any {
	if len(rows) == 0 {
		return nil
	}
	out := make([]any, 0, len(rows)*len(rows[0]))
	for _, row := range rows {
		out = append(out, row...)
	}
	return out
}

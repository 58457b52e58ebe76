// Package sqlite implements the warehouse contract on SQLite via
// database/sql. SQLite shares Postgres's ON CONFLICT clause, so upserts keep
// the same statement shape; batching happens inside transactions since SQLite
// has no dedicated bulk-load API.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Svencol/data-modeling-pipeline/internal/warehouse"
	"github.com/Svencol/data-modeling-pipeline/pkg/records"
)

const upsertBatchSize = 200

// Config holds SQLite repository configuration.
type Config struct {
	// DSN is passed directly to database/sql, e.g. "file:wh.db?_fk=1".
	DSN string

	// MaxConns bounds open connections. Zero keeps the driver default.
	MaxConns int
}

// Repository is a SQLite-backed implementation of warehouse.Repository.
type Repository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewRepository opens a SQLite handle and returns a Repository plus a close
// function. It pings with a short timeout to fail fast on bad DSNs.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open: %w", err)
	}
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	closeFn := func() { db.Close() }
	return &Repository{db: db, log: slog.Default().With("backend", "sqlite")}, closeFn, nil
}

// Ping performs a no-op round trip.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Load sends the dataset in multi-row INSERT batches of at most batchSize,
// honoring mode. The returned count is rows sent.
func (r *Repository) Load(ctx context.Context, ds records.Dataset, table, schemaNS string, mode warehouse.LoadMode, batchSize int) (int64, error) {
	target := fqn(schemaNS, table)
	if ds.Empty() {
		r.log.Warn("empty dataset, skipping load", "table", target)
		return 0, nil
	}

	switch mode {
	case warehouse.ModeAppend:
	case warehouse.ModeReplace:
		if _, err := r.db.ExecContext(ctx, "DELETE FROM "+target); err != nil {
			return 0, fmt.Errorf("clear target %s: %w", target, err)
		}
		r.log.Warn("target cleared for replace load; a later batch failure leaves it partially loaded", "table", target)
	case warehouse.ModeFail:
		var exists bool
		if err := r.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM "+target+")").Scan(&exists); err != nil {
			return 0, fmt.Errorf("pre-check %s: %w", target, err)
		}
		if exists {
			return 0, fmt.Errorf("%w: %s", warehouse.ErrTargetExists, target)
		}
	default:
		return 0, fmt.Errorf("invalid load mode %q", mode)
	}

	var total int64
	err := warehouse.ForEachBatch(ds, batchSize, r.log.With("table", target), func(b warehouse.Batch) error {
		stmt := insertSQL(target, ds.Columns, len(b.Rows))
		if _, err := r.db.ExecContext(ctx, stmt, flatten(b.Rows)...); err != nil {
			return err
		}
		total += int64(len(b.Rows))
		return nil
	})
	if err != nil {
		return 0, err
	}
	r.log.Info("load complete", "table", target, "rows", total, "mode", string(mode))
	return total, nil
}

// Upsert applies the dataset inside one transaction; conflicts on keyColumns
// overwrite updateColumns. The conflict target must be backed by a unique
// index or primary key on the target table.
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

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var total int64
	err = warehouse.ForEachBatch(ds, upsertBatchSize, r.log.With("table", target), func(b warehouse.Batch) error {
		stmt := upsertSQL(target, ds.Columns, keyColumns, updateColumns, len(b.Rows))
		if _, err := tx.ExecContext(ctx, stmt, flatten(b.Rows)...); err != nil {
			return err
		}
		total += int64(len(b.Rows))
		return nil
	})
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	r.log.Info("upsert complete", "table", target, "rows", total, "keys", keyColumns)
	return total, nil
}

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

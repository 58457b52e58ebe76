// Package mysql implements the warehouse contract on MySQL via database/sql.
// Conflict resolution uses INSERT ... ON DUPLICATE KEY UPDATE; MySQL picks
// the conflict target from the table's unique keys itself, so the configured
// key columns are validated against the dataset but do not appear in the
// statement — the target table must carry a unique index over them.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/Svencol/data-modeling-pipeline/internal/warehouse"
	"github.com/Svencol/data-modeling-pipeline/pkg/records"
)

const upsertBatchSize = 500

// Config holds MySQL repository configuration.
type Config struct {
	// DSN is a go-sql-driver DSN, e.g. "user:pass@tcp(host:3306)/warehouse".
	DSN string

	// MaxConns bounds open connections; MaxIdleConns bounds the idle set.
	// Zero keeps the driver defaults.
	MaxConns     int
	MaxIdleConns int
}

// Repository is a MySQL-backed implementation of warehouse.Repository.
type Repository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewRepository opens a MySQL handle and returns a Repository plus a close
// function.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("mysql: DSN must not be empty")
	}
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql: open: %w", err)
	}
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("mysql: ping: %w", err)
	}

	closeFn := func() { db.Close() }
	return &Repository{db: db, log: slog.Default().With("backend", "mysql")}, closeFn, nil
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

// Upsert applies the dataset inside one transaction. The rows-processed count
// is the number of rows sent; MySQL's affected-rows accounting (2 per updated
// row) is deliberately not surfaced.
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
		stmt := upsertSQL(target, ds.Columns, updateColumns, len(b.Rows))
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

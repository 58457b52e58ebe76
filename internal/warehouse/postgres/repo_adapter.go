package postgres

import (
	"context"

	"github.com/Svencol/data-modeling-pipeline/internal/warehouse"
)

// newRepository is a test hook pointing at NewRepository by default. Tests
// may replace it to avoid real connections.
var newRepository = NewRepository

// wrappedRepo adapts *Repository to warehouse.Repository by adding the Close
// method backed by the constructor's close function.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

var _ warehouse.Repository = (*wrappedRepo)(nil)

func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

// init registers the "postgres" backend with the warehouse factory so callers
// can construct it from warehouse.Config without importing this package
// directly.
func init() {
	warehouse.Register("postgres", func(ctx context.Context, cfg warehouse.Config) (warehouse.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{
			DSN:      cfg.DSN,
			MaxConns: int32(cfg.MaxConns),
		})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
}

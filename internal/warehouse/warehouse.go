// Package warehouse defines the storage-agnostic loading contract: an
// accepted dataset goes in, batched insert or conflict-resolving upsert
// statements go out, and the caller gets back an exact rows-sent count or a
// failure naming the batch and row range that broke.
//
// Concrete dialects (postgres, sqlite, mysql) register constructors with the
// factory at init time, so callers obtain a Repository from a Config without
// importing backend packages directly.
//
// Neither Load nor Upsert retries anything. Transient connectivity is the job
// runner's concern; invalid data never reaches this layer at all.
package warehouse

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Svencol/data-modeling-pipeline/pkg/records"
)

// LoadMode governs how Load treats pre-existing target table contents.
type LoadMode string

const (
	// ModeAppend inserts without touching prior rows.
	ModeAppend LoadMode = "append"
	// ModeReplace clears the target before the first batch. If a later batch
	// fails the table is left partially loaded; that degraded state is an
	// accepted property of the mode and is logged, never auto-repaired.
	ModeReplace LoadMode = "replace"
	// ModeFail refuses to load into a target that already holds rows.
	ModeFail LoadMode = "fail"
)

// ParseLoadMode converts a config string into a LoadMode.
func ParseLoadMode(s string) (LoadMode, error) {
	switch LoadMode(s) {
	case ModeAppend, ModeReplace, ModeFail:
		return LoadMode(s), nil
	}
	return "", fmt.Errorf("invalid load mode %q", s)
}

var (
	// ErrTargetExists is returned by fail-mode loads whose target already
	// holds data from a previous run.
	ErrTargetExists = errors.New("target table already holds data")

	// ErrInvalidKeySpec is returned by Upsert when the key-column set is
	// empty or not a subset of the dataset's columns.
	ErrInvalidKeySpec = errors.New("invalid key specification")
)

// BatchError reports a failed batch write: which batch, which half-open row
// range [From, To) of the dataset it covered, and the underlying cause.
type BatchError struct {
	Batch int
	From  int
	To    int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %d (rows %d..%d): %v", e.Batch, e.From, e.To, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// Repository is the warehouse loading contract implemented per SQL dialect.
//
// Load batches rows into multi-row inserts of at most batchSize and returns
// the count of rows sent; an empty dataset is a logged no-op returning 0.
// On failure the count is undefined and must not be used for metrics.
//
// Upsert applies the whole dataset inside a single transaction, resolving
// conflicts on keyColumns by overwriting updateColumns (all non-key columns
// when updateColumns is nil). Any failure commits nothing.
//
// Ping is a no-op round trip used as a pre-flight gate; it is never retried
// here.
type Repository interface {
	Load(ctx context.Context, ds records.Dataset, table, schemaNS string, mode LoadMode, batchSize int) (int64, error)
	Upsert(ctx context.Context, ds records.Dataset, table, schemaNS string, keyColumns, updateColumns []string) (int64, error)
	Ping(ctx context.Context) error
	Close()
}

// Config selects and parameterizes a backend.
type Config struct {
	// Kind selects the registered backend, e.g. "postgres", "sqlite", "mysql".
	Kind string

	// DSN is the backend connection string.
	DSN string

	// MaxConns bounds the connection pool. Zero applies the backend default.
	// Callers that run jobs in parallel must size this to the job concurrency;
	// the pool never grows past it.
	MaxConns int

	// MaxIdleConns bounds idle connections kept beyond the active set, for
	// database/sql backends. Zero applies the backend default.
	MaxIdleConns int
}

// Factory constructs a Repository from a Config.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	facMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register installs (or replaces) the factory for a backend kind. It is
// called from backend packages' init functions.
func Register(kind string, fn Factory) {
	facMu.Lock()
	defer facMu.Unlock()
	factories[kind] = fn
}

// New constructs a Repository for cfg.Kind via the registered factory.
func New(ctx context.Context, cfg Config) (Repository, error) {
	facMu.RLock()
	fn, ok := factories[cfg.Kind]
	facMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no warehouse backend registered for kind %q", cfg.Kind)
	}
	return fn(ctx, cfg)
}

// CheckKeySpec verifies that keys is non-empty and a subset of the dataset's
// columns, per the upsert contract.
func CheckKeySpec(ds records.Dataset, keys []string) error {
	if len(keys) == 0 {
		return fmt.Errorf("%w: key columns must not be empty", ErrInvalidKeySpec)
	}
	for _, k := range keys {
		if !ds.HasColumn(k) {
			return fmt.Errorf("%w: key column %q not in dataset columns", ErrInvalidKeySpec, k)
		}
	}
	return nil
}

// DefaultUpdateColumns returns every column not in keys, preserving column
// order. It implements the upsert default when no explicit update set is
// given.
func DefaultUpdateColumns(columns, keys []string) []string {
	keySet := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		keySet[k] = struct{}{}
	}
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		if _, isKey := keySet[c]; !isKey {
			out = append(out, c)
		}
	}
	return out
}

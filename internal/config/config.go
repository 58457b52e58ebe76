// Package config defines the canonical, JSON-serializable configuration model
// for the ingestion service. A Spec decodes from a JSON file and carries the
// warehouse connection, validation policy, and the list of ingestion jobs to
// run. Decoding uses the standard library, with a light Options helper for
// typed access to per-source settings.
//
// Example (trimmed):
//
//	{
//	  "warehouse":  { "kind": "postgres", "dsn": "postgresql://...", "schema": "analytics" },
//	  "validation": { "mode": "filter" },
//	  "jobs": [
//	    {
//	      "name":   "customers",
//	      "source": { "kind": "csv", "options": { "path": "data/customers.csv" } },
//	      "schema": "customers",
//	      "table":  "customers",
//	      "load_mode": "append"
//	    }
//	  ]
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Spec is the top-level object decoded from a config file.
type Spec struct {
	// Warehouse describes the destination database shared by all jobs.
	Warehouse Warehouse `json:"warehouse"`

	// Validation sets the default validation policy; jobs may override it.
	Validation Validation `json:"validation"`

	// Logging configures the global structured logger.
	Logging Logging `json:"logging"`

	// Concurrency is the number of jobs run in parallel. Zero or one runs
	// jobs sequentially.
	Concurrency int `json:"concurrency"`

	// Jobs lists the ingestion jobs executed in a run.
	Jobs []Job `json:"jobs"`
}

// Warehouse configures the destination database connection.
type Warehouse struct {
	// Kind selects the backend: "postgres", "sqlite", or "mysql".
	Kind string `json:"kind"`

	// DSN is the backend-specific connection string.
	DSN string `json:"dsn"`

	// Schema is the namespace tables are created in (e.g. "analytics").
	// Empty means the backend default. Ignored by sqlite.
	Schema string `json:"schema"`

	// MaxConns caps the connection pool size; zero uses the backend default.
	MaxConns int `json:"max_conns"`

	// MaxIdleConns caps idle pooled connections for database/sql backends.
	MaxIdleConns int `json:"max_idle_conns"`
}

// Validation selects how rows that fail their schema contract are handled.
type Validation struct {
	// Mode is "strict", "filter", or "flag". Empty means "filter".
	Mode string `json:"mode"`
}

// Logging configures the global slog logger.
type Logging struct {
	// Level is "debug", "info", "warn", or "error". Empty means "info".
	Level string `json:"level"`

	// Format is "text" or "json". Empty means "text".
	Format string `json:"format"`
}

// Job describes one extraction-validation-load unit.
type Job struct {
	// Name identifies the job in logs, metrics, and run summaries.
	Name string `json:"name"`

	// Source describes where the job's data comes from.
	Source Source `json:"source"`

	// Schema names the registered contract rows are validated against.
	Schema string `json:"schema"`

	// Table is the destination table name, unqualified; the warehouse
	// schema namespace is applied by the loader.
	Table string `json:"table"`

	// LoadMode is "append", "replace", or "fail". Empty means "append".
	LoadMode string `json:"load_mode"`

	// ValidationMode overrides the spec-level validation mode when set.
	ValidationMode string `json:"validation_mode"`

	// BatchSize is the number of rows per insert batch; zero uses the
	// runner default.
	BatchSize int `json:"batch_size"`

	// Trim strips leading and trailing whitespace from every string value
	// ahead of validation.
	Trim bool `json:"trim"`

	// DedupKeys lists columns whose combined value identifies duplicate
	// rows dropped ahead of validation. Empty disables deduplication.
	DedupKeys []string `json:"dedup_keys"`

	// Upsert, when present, switches the job from plain loading to
	// insert-or-update semantics.
	Upsert *Upsert `json:"upsert"`
}

// Upsert configures key-based conflict resolution for a job.
type Upsert struct {
	// Keys are the conflict-target columns; they must form a unique
	// constraint on the destination table.
	Keys []string `json:"keys"`

	// UpdateColumns restricts which columns are rewritten on conflict.
	// Empty means every non-key data column.
	UpdateColumns []string `json:"update_columns"`
}

// Source identifies the data source for a job.
type Source struct {
	// Kind selects the extractor: "csv" or "api".
	Kind string `json:"kind"`

	// Options is a free-form map interpreted by the extractor.
	// For csv, typical keys: path (string), delimiter (string),
	// date_columns ([]string), date_layout (string).
	// For api, typical keys: base_url, endpoint, data_key, next_page_key,
	// username, password, params (object), headers (object).
	Options Options `json:"options"`
}

// Load reads and decodes a Spec from a JSON file. ${VAR} references anywhere
// in the document are expanded from the environment so credentials stay out
// of config files.
func Load(path string) (Spec, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Spec{}, fmt.Errorf("read config: %w", err)
	}
	var s Spec
	if err := json.Unmarshal([]byte(os.ExpandEnv(string(b))), &s); err != nil {
		return Spec{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	return s, nil
}

// Options is a small helper to fetch typed values from arbitrary JSON maps.
// It performs only minimal type coercion and returns provided defaults when
// a key is absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def if key is missing or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def if key is missing or not a bool.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers decode as float64,
// so this accepts float64 and casts.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// Rune returns the first rune of a string value for key, or def if key is
// missing or empty. Used for single-character settings such as a CSV
// delimiter.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			return []rune(s)[0]
		}
	}
	return def
}

// StringMap returns a map[string]string for key when the value is an object
// whose values are strings. Non-string values are ignored.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	if v, ok := o[key]; ok {
		if m, ok := v.(map[string]any); ok {
			for k, vv := range m {
				if s, ok := vv.(string); ok {
					res[k] = s
				}
			}
		}
	}
	return res
}

// StringSlice returns a []string for key when the value is an array of
// strings. Returns nil when the key is missing or not an array.
func (o Options) StringSlice(key string) []string {
	if v, ok := o[key]; ok {
		switch vv := v.(type) {
		case []any:
			out := make([]string, 0, len(vv))
			for _, x := range vv {
				if s, ok := x.(string); ok {
					out = append(out, s)
				}
			}
			return out
		case []string:
			return vv
		}
	}
	return nil
}

// UnmarshalJSON decodes a missing or null options object to a non-nil, empty
// map so call sites need no nil checks.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}

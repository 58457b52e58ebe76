// This file adds a lightweight linter for Spec values. It performs static
// checks over a decoded Spec and returns a list of issues (errors and
// warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"strings"

	"github.com/Svencol/data-modeling-pipeline/internal/schema"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding that should be surfaced to users
	// but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single lint finding for a Spec.
//
// Path is a dotted path into the config (e.g. "warehouse.kind",
// "jobs[1].source.options.path"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a
// single error where one is expected.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue in the slice has error severity.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Lint performs static validation of a Spec against the given contract
// registry. It does not mutate the spec; callers decide whether warnings are
// fatal.
func Lint(s Spec, schemas *schema.Registry) []Issue {
	var issues []Issue

	issues = append(issues, lintWarehouse(s.Warehouse)...)
	issues = append(issues, lintMode("validation.mode", s.Validation.Mode)...)
	if s.Concurrency < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "concurrency",
			Message:  "concurrency must not be negative",
		})
	}
	if len(s.Jobs) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "jobs",
			Message:  "no jobs configured; a run will do nothing",
		})
	}

	names := map[string]int{}
	for i, j := range s.Jobs {
		issues = append(issues, lintJob(i, j, schemas)...)
		if j.Name != "" {
			if prev, dup := names[j.Name]; dup {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     fmt.Sprintf("jobs[%d].name", i),
					Message:  fmt.Sprintf("duplicate job name %q (also jobs[%d]); names must be unique", j.Name, prev),
				})
			}
			names[j.Name] = i
		}
	}

	return issues
}

func lintWarehouse(w Warehouse) []Issue {
	var issues []Issue

	if strings.TrimSpace(w.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "warehouse.kind",
			Message:  "warehouse.kind must not be empty",
		})
		return issues
	}

	known := map[string]struct{}{
		"postgres": {},
		"sqlite":   {},
		"mysql":    {},
	}
	if _, ok := known[w.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "warehouse.kind",
			Message:  fmt.Sprintf("unknown warehouse kind %q; ensure a matching backend is registered", w.Kind),
		})
	}

	if strings.TrimSpace(w.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "warehouse.dsn",
			Message:  "warehouse.dsn must not be empty",
		})
	}
	if w.MaxConns < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "warehouse.max_conns",
			Message:  "max_conns must not be negative",
		})
	}
	if w.Kind == "sqlite" && w.Schema != "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "warehouse.schema",
			Message:  "sqlite has no schema namespaces; the schema setting is ignored",
		})
	}

	return issues
}

func lintMode(path, mode string) []Issue {
	switch mode {
	case "", "strict", "filter", "flag":
		return nil
	}
	return []Issue{{
		Severity: SeverityError,
		Path:     path,
		Message:  fmt.Sprintf("unknown validation mode %q; expected strict, filter, or flag", mode),
	}}
}

func lintJob(i int, j Job, schemas *schema.Registry) []Issue {
	var issues []Issue
	path := func(field string) string { return fmt.Sprintf("jobs[%d].%s", i, field) }

	if strings.TrimSpace(j.Name) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path("name"),
			Message:  "job name must not be empty; it labels logs and metrics",
		})
	}
	if strings.TrimSpace(j.Table) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path("table"),
			Message:  "table must not be empty",
		})
	}

	if strings.TrimSpace(j.Schema) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path("schema"),
			Message:  "schema must name a registered contract",
		})
	} else if schemas != nil {
		if _, err := schemas.Lookup(j.Schema); err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path("schema"),
				Message:  fmt.Sprintf("unknown schema %q; registered: %s", j.Schema, strings.Join(schemas.Names(), ", ")),
			})
		}
	}

	switch j.LoadMode {
	case "", "append", "replace", "fail":
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path("load_mode"),
			Message:  fmt.Sprintf("unknown load mode %q; expected append, replace, or fail", j.LoadMode),
		})
	}
	issues = append(issues, lintMode(path("validation_mode"), j.ValidationMode)...)

	if j.BatchSize < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path("batch_size"),
			Message:  "batch_size must not be negative",
		})
	}

	if j.Upsert != nil {
		if len(j.Upsert.Keys) == 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path("upsert.keys"),
				Message:  "upsert requires at least one key column",
			})
		}
		keys := map[string]bool{}
		for _, k := range j.Upsert.Keys {
			keys[k] = true
		}
		for _, c := range j.Upsert.UpdateColumns {
			if keys[c] {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     path("upsert.update_columns"),
					Message:  fmt.Sprintf("column %q is both a key and an update column", c),
				})
			}
		}
		if j.LoadMode == "replace" {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     path("load_mode"),
				Message:  "replace mode is ignored when upsert is configured",
			})
		}
	}

	issues = append(issues, lintSource(i, j.Source)...)
	return issues
}

func lintSource(i int, s Source) []Issue {
	var issues []Issue
	path := func(field string) string { return fmt.Sprintf("jobs[%d].source.%s", i, field) }

	if strings.TrimSpace(s.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path("kind"),
			Message:  "source.kind must not be empty",
		})
		return issues
	}

	switch s.Kind {
	case "csv":
		if s.Options.String("path", "") == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path("options.path"),
				Message:  "csv source requires a non-empty path",
			})
		}
	case "api":
		if s.Options.String("base_url", "") == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path("options.base_url"),
				Message:  "api source requires a non-empty base_url",
			})
		}
		if s.Options.String("username", "") != "" && s.Options.String("password", "") == "" {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     path("options.password"),
				Message:  "username set without password; basic auth will send an empty secret",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     path("kind"),
			Message:  fmt.Sprintf("unknown source kind %q; ensure a matching extractor exists", s.Kind),
		})
	}

	return issues
}

package config

import (
	"strings"
	"testing"

	"github.com/Svencol/data-modeling-pipeline/internal/schema"
)

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	r := schema.NewRegistry()
	schema.RegisterBuiltin(r)
	return r
}

func validSpec() Spec {
	return Spec{
		Warehouse:  Warehouse{Kind: "postgres", DSN: "postgresql://db/x", Schema: "analytics"},
		Validation: Validation{Mode: "filter"},
		Jobs: []Job{{
			Name:   "customers",
			Source: Source{Kind: "csv", Options: Options{"path": "data/customers.csv"}},
			Schema: "customers",
			Table:  "customers",
		}},
	}
}

func findIssue(issues []Issue, path string) *Issue {
	for i := range issues {
		if issues[i].Path == path {
			return &issues[i]
		}
	}
	return nil
}

func TestLintValidSpec(t *testing.T) {
	issues := Lint(validSpec(), testRegistry(t))
	if HasErrors(issues) {
		t.Fatalf("valid spec produced errors: %v", issues)
	}
}

func TestLintErrors(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Spec)
		wantPath string
	}{
		{"empty warehouse kind", func(s *Spec) { s.Warehouse.Kind = "" }, "warehouse.kind"},
		{"empty dsn", func(s *Spec) { s.Warehouse.DSN = "" }, "warehouse.dsn"},
		{"negative max_conns", func(s *Spec) { s.Warehouse.MaxConns = -1 }, "warehouse.max_conns"},
		{"bad validation mode", func(s *Spec) { s.Validation.Mode = "lenient" }, "validation.mode"},
		{"negative concurrency", func(s *Spec) { s.Concurrency = -2 }, "concurrency"},
		{"empty job name", func(s *Spec) { s.Jobs[0].Name = "" }, "jobs[0].name"},
		{"empty table", func(s *Spec) { s.Jobs[0].Table = "" }, "jobs[0].table"},
		{"empty schema", func(s *Spec) { s.Jobs[0].Schema = "" }, "jobs[0].schema"},
		{"unknown schema", func(s *Spec) { s.Jobs[0].Schema = "invoices" }, "jobs[0].schema"},
		{"bad load mode", func(s *Spec) { s.Jobs[0].LoadMode = "upend" }, "jobs[0].load_mode"},
		{"bad job validation mode", func(s *Spec) { s.Jobs[0].ValidationMode = "x" }, "jobs[0].validation_mode"},
		{"negative batch size", func(s *Spec) { s.Jobs[0].BatchSize = -1 }, "jobs[0].batch_size"},
		{"upsert without keys", func(s *Spec) { s.Jobs[0].Upsert = &Upsert{} }, "jobs[0].upsert.keys"},
		{
			"key in update columns",
			func(s *Spec) {
				s.Jobs[0].Upsert = &Upsert{Keys: []string{"id"}, UpdateColumns: []string{"id"}}
			},
			"jobs[0].upsert.update_columns",
		},
		{"empty source kind", func(s *Spec) { s.Jobs[0].Source.Kind = "" }, "jobs[0].source.kind"},
		{"csv without path", func(s *Spec) { s.Jobs[0].Source.Options = Options{} }, "jobs[0].source.options.path"},
		{
			"api without base_url",
			func(s *Spec) { s.Jobs[0].Source = Source{Kind: "api", Options: Options{}} },
			"jobs[0].source.options.base_url",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSpec()
			tt.mutate(&s)
			issues := Lint(s, testRegistry(t))
			iss := findIssue(issues, tt.wantPath)
			if iss == nil {
				t.Fatalf("no issue at %s; got %v", tt.wantPath, issues)
			}
			if iss.Severity != SeverityError {
				t.Fatalf("issue at %s has severity %s; want error", tt.wantPath, iss.Severity)
			}
		})
	}
}

func TestLintDuplicateJobNames(t *testing.T) {
	s := validSpec()
	dup := s.Jobs[0]
	s.Jobs = append(s.Jobs, dup)
	issues := Lint(s, testRegistry(t))
	iss := findIssue(issues, "jobs[1].name")
	if iss == nil || iss.Severity != SeverityError {
		t.Fatalf("duplicate job name not flagged: %v", issues)
	}
	if !strings.Contains(iss.Message, "customers") {
		t.Fatalf("message %q does not name the duplicate", iss.Message)
	}
}

func TestLintWarnings(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Spec)
		wantPath string
	}{
		{"no jobs", func(s *Spec) { s.Jobs = nil }, "jobs"},
		{"unknown warehouse kind", func(s *Spec) { s.Warehouse.Kind = "duckdb" }, "warehouse.kind"},
		{"sqlite schema ignored", func(s *Spec) { s.Warehouse.Kind = "sqlite"; s.Warehouse.Schema = "x" }, "warehouse.schema"},
		{"unknown source kind", func(s *Spec) { s.Jobs[0].Source.Kind = "kafka" }, "jobs[0].source.kind"},
		{
			"replace with upsert",
			func(s *Spec) {
				s.Jobs[0].LoadMode = "replace"
				s.Jobs[0].Upsert = &Upsert{Keys: []string{"customer_id"}}
			},
			"jobs[0].load_mode",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSpec()
			tt.mutate(&s)
			issues := Lint(s, testRegistry(t))
			iss := findIssue(issues, tt.wantPath)
			if iss == nil {
				t.Fatalf("no issue at %s; got %v", tt.wantPath, issues)
			}
			if iss.Severity != SeverityWarning {
				t.Fatalf("issue at %s has severity %s; want warning", tt.wantPath, iss.Severity)
			}
		})
	}
}

func TestIssueError(t *testing.T) {
	iss := Issue{Severity: SeverityError, Path: "warehouse.dsn", Message: "must not be empty"}
	want := "error at warehouse.dsn: must not be empty"
	if got := iss.Error(); got != want {
		t.Fatalf("Error()=%q; want %q", got, want)
	}
}

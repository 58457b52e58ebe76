// Package validator applies a registered schema contract to every row of a
// dataset, producing accepted rows and structured error records under a
// selectable failure policy (strict, filter, flag).
//
// Reserved "_"-prefixed metadata columns are stripped before schema checks and
// re-attached to the validated output unchanged. Given the same dataset,
// schema, and mode, the output is deterministic: fields are checked in
// contract declaration order and rows in input order.
package validator

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/Svencol/data-modeling-pipeline/internal/schema"
	"github.com/Svencol/data-modeling-pipeline/pkg/records"
)

// Mode selects how invalid rows are handled.
type Mode string

const (
	// ModeStrict aborts the whole validation call on the first invalid row.
	ModeStrict Mode = "strict"
	// ModeFilter drops invalid rows from the accepted output.
	ModeFilter Mode = "filter"
	// ModeFlag keeps every row and marks validity in metadata columns.
	ModeFlag Mode = "flag"
)

// ParseMode converts a config string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeStrict, ModeFilter, ModeFlag:
		return Mode(s), nil
	}
	return "", fmt.Errorf("invalid validation mode %q", s)
}

// FieldError records one field's first failing check within a row.
type FieldError struct {
	Field      string
	Constraint string // "type", "not_null", or a constraint name
	Value      any    // offending raw value
}

func (e FieldError) String() string {
	return fmt.Sprintf("field %q failed %s (value %q)", e.Field, e.Constraint, records.AsString(e.Value))
}

// RowError is one rejected row: its original index within the input dataset
// and every field that failed, in contract declaration order.
type RowError struct {
	RowIndex int
	Fields   []FieldError
	Raw      records.Record
}

// Describe serializes the violations for operator review and for the
// flag-mode error column. Output is deterministic.
func (e RowError) Describe() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return strings.Join(parts, "; ")
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.RowIndex, e.Describe())
}

// ValidationError is the fatal error returned in strict mode. It carries the
// first offending row with full context.
type ValidationError struct {
	Schema string
	Row    RowError
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for schema %q: %s", e.Schema, e.Row.Error())
}

// Validator validates datasets against contracts held in a Registry.
type Validator struct {
	reg *schema.Registry
	log *slog.Logger
}

// New returns a Validator backed by reg. A nil logger falls back to the
// process default.
func New(reg *schema.Registry, log *slog.Logger) *Validator {
	if log == nil {
		log = slog.Default()
	}
	return &Validator{reg: reg, log: log}
}

// Validate applies the named contract to every row of ds, in input order.
// Contracts carrying a HeaderMap have raw source column names renamed to
// their canonical field names first.
//
// Per row: metadata columns are set aside, each contract field is checked
// (type, then nullability, then constraints in declaration order; the first
// failing check per field wins), and all failing fields are collected before
// the row is judged. Valid rows have field normalization applied and metadata
// re-attached.
//
// The returned error is non-nil only for an unknown schema or, in strict
// mode, the first invalid row (as *ValidationError). In filter and flag modes
// invalid rows are reported through the RowError slice instead.
func (v *Validator) Validate(ds records.Dataset, schemaName string, mode Mode) (records.Dataset, []RowError, error) {
	contract, err := v.reg.Lookup(schemaName)
	if err != nil {
		return records.Dataset{}, nil, err
	}
	if len(contract.HeaderMap) > 0 {
		ds = renameColumns(ds, contract.HeaderMap)
	}

	out := records.Dataset{Columns: append([]string(nil), ds.Columns...)}
	if mode == ModeFlag {
		if !out.HasColumn(records.MetaValid) {
			out.Columns = append(out.Columns, records.MetaValid)
		}
		if !out.HasColumn(records.MetaErrors) {
			out.Columns = append(out.Columns, records.MetaErrors)
		}
	}

	v.log.Info("validating dataset", "schema", schemaName, "rows", ds.Len(), "mode", string(mode))

	var errs []RowError
	for i, row := range ds.Rows {
		data, meta := row.SplitMeta()

		fieldErrs := checkRow(contract, data)
		if len(fieldErrs) == 0 {
			valid := normalizeRow(contract, data)
			for k, mv := range meta {
				valid[k] = mv
			}
			if mode == ModeFlag {
				valid[records.MetaValid] = true
			}
			out.Rows = append(out.Rows, valid)
			continue
		}

		re := RowError{RowIndex: i, Fields: fieldErrs, Raw: row}
		switch mode {
		case ModeStrict:
			v.log.Error("validation failed", "schema", schemaName, "row", i, "violations", re.Describe())
			return records.Dataset{}, []RowError{re}, &ValidationError{Schema: schemaName, Row: re}
		case ModeFilter:
			errs = append(errs, re)
		case ModeFlag:
			flagged := row.Clone()
			flagged[records.MetaValid] = false
			flagged[records.MetaErrors] = re.Describe()
			out.Rows = append(out.Rows, flagged)
			errs = append(errs, re)
		default:
			return records.Dataset{}, nil, fmt.Errorf("invalid validation mode %q", mode)
		}
	}

	if len(errs) > 0 {
		v.log.Warn("validation completed with rejects",
			"schema", schemaName, "rejected", len(errs), "accepted", len(out.Rows))
	} else {
		v.log.Info("all rows passed validation", "schema", schemaName, "rows", len(out.Rows))
	}
	return out, errs, nil
}

// checkRow evaluates every contract field against the metadata-stripped row
// and returns each field's first failure, in declaration order.
func checkRow(c schema.Contract, data records.Record) []FieldError {
	var out []FieldError
	for _, f := range c.Fields {
		val, exists := data[f.Name]
		if !exists || records.IsNull(val) {
			if !f.Nullable {
				out = append(out, FieldError{Field: f.Name, Constraint: "not_null", Value: val})
			}
			continue
		}
		if records.KindOf(val) != f.Type.Kind() {
			out = append(out, FieldError{
				Field:      f.Name,
				Constraint: fmt.Sprintf("type(%s!=%s)", records.KindOf(val), f.Type),
				Value:      val,
			})
			continue
		}
		for _, con := range f.Constraints {
			if !con.Check(val) {
				out = append(out, FieldError{Field: f.Name, Constraint: con.Name, Value: val})
				break
			}
		}
	}
	return out
}

// renameColumns applies the contract's header map to the column list and row
// keys. Unmapped names pass through untouched; the input dataset is not
// modified.
func renameColumns(ds records.Dataset, m map[string]string) records.Dataset {
	out := records.Dataset{
		Columns: make([]string, len(ds.Columns)),
		Rows:    make([]records.Record, len(ds.Rows)),
	}
	for i, c := range ds.Columns {
		if n, ok := m[c]; ok {
			c = n
		}
		out.Columns[i] = c
	}
	for i, r := range ds.Rows {
		nr := make(records.Record, len(r))
		for k, v := range r {
			if n, ok := m[k]; ok {
				k = n
			}
			nr[k] = v
		}
		out.Rows[i] = nr
	}
	return out
}

// normalizeRow returns a copy of data with each field's normalizers applied.
// Extra columns the contract does not know about pass through untouched.
func normalizeRow(c schema.Contract, data records.Record) records.Record {
	out := data.Clone()
	for _, f := range c.Fields {
		val, exists := out[f.Name]
		if !exists || records.IsNull(val) {
			continue
		}
		for _, n := range f.Normalize {
			val = n.Apply(val)
		}
		out[f.Name] = val
	}
	return out
}

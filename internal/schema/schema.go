// Package schema defines named, immutable record contracts: an ordered list
// of typed fields with per-field nullability, declarative constraints, and
// normalization steps. Contracts are registered once at process start and
// looked up by name; there is no runtime mutation.
//
// Constraints are pure predicates evaluated independently per field, in
// declaration order. Cross-field rules are out of scope for this design.
package schema

import (
	"fmt"
	"math"
	"regexp"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Svencol/data-modeling-pipeline/pkg/records"
)

// FieldType names the required scalar type of a field.
type FieldType string

const (
	TypeString FieldType = "string"
	TypeNumber FieldType = "number"
	TypeBool   FieldType = "bool"
	TypeTime   FieldType = "timestamp"
)

// Kind returns the records kind a value must carry to satisfy the type.
func (t FieldType) Kind() records.Kind {
	switch t {
	case TypeString:
		return records.KindString
	case TypeNumber:
		return records.KindNumber
	case TypeBool:
		return records.KindBool
	case TypeTime:
		return records.KindTime
	default:
		return records.KindInvalid
	}
}

// Constraint is a declarative, pure predicate over a single field value.
// Check is only called with a non-null value that already passed the field's
// type check, so implementations may assume the corresponding Go type.
type Constraint struct {
	// Name identifies the constraint in validation errors, e.g. "min_length".
	Name string

	// Check reports whether the value satisfies the constraint.
	Check func(v any) bool
}

// MinLength requires a string value of at least n bytes.
func MinLength(n int) Constraint {
	return Constraint{
		Name:  fmt.Sprintf("min_length(%d)", n),
		Check: func(v any) bool { return len(records.AsString(v)) >= n },
	}
}

// GreaterThan requires a numeric value strictly above bound.
func GreaterThan(bound float64) Constraint {
	return numeric(fmt.Sprintf("gt(%v)", bound), func(f float64) bool { return f > bound })
}

// AtLeast requires a numeric value of at least bound.
func AtLeast(bound float64) Constraint {
	return numeric(fmt.Sprintf("ge(%v)", bound), func(f float64) bool { return f >= bound })
}

// LessThan requires a numeric value strictly below bound.
func LessThan(bound float64) Constraint {
	return numeric(fmt.Sprintf("lt(%v)", bound), func(f float64) bool { return f < bound })
}

// AtMost requires a numeric value of at most bound.
func AtMost(bound float64) Constraint {
	return numeric(fmt.Sprintf("le(%v)", bound), func(f float64) bool { return f <= bound })
}

func numeric(name string, ok func(float64) bool) Constraint {
	return Constraint{
		Name: name,
		Check: func(v any) bool {
			f, isNum := records.AsFloat(v)
			return isNum && ok(f)
		},
	}
}

// Pattern requires a string value matching the regular expression expr.
// The expression is compiled at construction; an invalid expression panics,
// which is acceptable because contracts are built once at process start.
func Pattern(expr string) Constraint {
	re := regexp.MustCompile(expr)
	return Constraint{
		Name:  "pattern",
		Check: func(v any) bool { return re.MatchString(records.AsString(v)) },
	}
}

// OneOf requires the value's string form to be one of the allowed values.
func OneOf(allowed ...string) Constraint {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	return Constraint{
		Name: fmt.Sprintf("enum%v", allowed),
		Check: func(v any) bool {
			_, ok := set[records.AsString(v)]
			return ok
		},
	}
}

// Normalizer rewrites a valid field value into its canonical form. Apply must
// be idempotent: normalizing an already normalized value is a no-op.
type Normalizer struct {
	Name  string
	Apply func(v any) any
}

var lower = cases.Lower(language.Und)

// Lowercase folds string values to lower case.
func Lowercase() Normalizer {
	return Normalizer{
		Name: "lowercase",
		Apply: func(v any) any {
			if s, ok := v.(string); ok {
				return lower.String(s)
			}
			return v
		},
	}
}

// Round rounds numeric values to the given number of decimal places.
func Round(decimals int) Normalizer {
	pow := math.Pow(10, float64(decimals))
	return Normalizer{
		Name: fmt.Sprintf("round(%d)", decimals),
		Apply: func(v any) any {
			if f, ok := records.AsFloat(v); ok {
				return math.Round(f*pow) / pow
			}
			return v
		},
	}
}

// Field describes one column of a contract.
type Field struct {
	Name        string
	Type        FieldType
	Nullable    bool
	Constraints []Constraint
	Normalize   []Normalizer
}

// Contract is an immutable, named schema: an ordered field list applied
// row-by-row by the validator.
type Contract struct {
	Name   string
	Fields []Field

	// HeaderMap optionally maps raw source column names onto field names,
	// for extractors whose headers differ from the canonical contract.
	HeaderMap map[string]string
}

// Check verifies structural soundness: a non-empty name, at least one field,
// and no two fields sharing a name.
func (c Contract) Check() error {
	if c.Name == "" {
		return fmt.Errorf("contract name must not be empty")
	}
	if len(c.Fields) == 0 {
		return fmt.Errorf("contract %q has no fields", c.Name)
	}
	seen := make(map[string]struct{}, len(c.Fields))
	for _, f := range c.Fields {
		if f.Name == "" {
			return fmt.Errorf("contract %q has a field with an empty name", c.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("contract %q declares field %q twice", c.Name, f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}

// ColumnNames returns the field names in declaration order.
func (c Contract) ColumnNames() []string {
	out := make([]string, len(c.Fields))
	for i, f := range c.Fields {
		out[i] = f.Name
	}
	return out
}

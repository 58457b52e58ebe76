// Package records defines the dynamic row model that flows through the
// pipeline: a Record maps column names to loosely typed scalar values, and a
// Dataset pairs an ordered row sequence with an ordered column list.
//
// Values are restricted to a small scalar vocabulary (string, number, bool,
// timestamp, null). Schema checking elsewhere is explicit type-tag matching
// via KindOf rather than implicit coercion.
//
// Columns whose names carry the reserved "_" prefix are provenance metadata
// (e.g. load timestamp, source identifier). They are excluded from schema
// validation but preserved through the pipeline unchanged.
package records

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// MetaPrefix marks provenance metadata columns.
const MetaPrefix = "_"

// Well-known metadata columns.
const (
	MetaLoadedAt = "_loaded_at"
	MetaSource   = "_source"
	MetaValid    = "_is_valid"
	MetaErrors   = "_validation_errors"
)

// Record is a single row: column name -> scalar value.
type Record map[string]any

// Dataset is an ordered sequence of records plus the ordered column list
// supplied by the extraction collaborator. Individual records may be missing
// columns or carry extras; consumers must tolerate both.
type Dataset struct {
	Columns []string
	Rows    []Record
}

// Empty reports whether the dataset has no rows.
func (d Dataset) Empty() bool { return len(d.Rows) == 0 }

// Len returns the number of rows.
func (d Dataset) Len() int { return len(d.Rows) }

// HasColumn reports whether name appears in the ordered column list.
func (d Dataset) HasColumn(name string) bool {
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Kind tags a scalar value for explicit type matching.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindTime
	KindInvalid // not part of the scalar vocabulary
)

// String returns the kind's name as used in error messages.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindTime:
		return "timestamp"
	default:
		return "invalid"
	}
}

// KindOf classifies v into the scalar vocabulary. Integer and floating types
// both tag as KindNumber; anything outside the vocabulary tags as KindInvalid.
func KindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return KindNull
	case string:
		return KindString
	case int, int32, int64, float32, float64:
		return KindNumber
	case bool:
		return KindBool
	case time.Time:
		return KindTime
	default:
		return KindInvalid
	}
}

// IsNull reports whether v counts as missing for validation purposes:
// nil, the empty string, or a floating NaN.
func IsNull(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case float64:
		return math.IsNaN(t)
	case float32:
		return math.IsNaN(float64(t))
	default:
		return false
	}
}

// IsMeta reports whether the column name carries the reserved metadata prefix.
func IsMeta(col string) bool { return strings.HasPrefix(col, MetaPrefix) }

// SplitMeta partitions a record into schema-visible data and provenance
// metadata. The input record is not modified.
func (r Record) SplitMeta() (data, meta Record) {
	data = make(Record, len(r))
	meta = Record{}
	for k, v := range r {
		if IsMeta(k) {
			meta[k] = v
		} else {
			data[k] = v
		}
	}
	return data, meta
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// AsString converts common scalar values to their string form without the
// overhead of fmt.Sprint for the usual cases.
func AsString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		if t {
			return "true"
		}
		return "false"
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}

// AsFloat converts numeric scalar values to float64. The second return is
// false when v is not numeric.
func AsFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	default:
		return 0, false
	}
}

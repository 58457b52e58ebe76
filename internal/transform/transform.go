// Package transform provides small, composable record transformers applied as
// a cleanup step between extraction and validation (whitespace trimming,
// key-based de-duplication). Transformers only repair representation; data
// quality judgments belong to the validator.
package transform

import (
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/Svencol/data-modeling-pipeline/pkg/records"
)

// Transformer rewrites a row slice. Implementations may mutate rows in place
// or return a filtered slice, but must preserve relative row order.
type Transformer interface {
	Apply(in []records.Record) []records.Record
}

// Chain is an ordered list of transformers.
type Chain []Transformer

func (c Chain) Apply(in []records.Record) []records.Record {
	out := in
	for _, t := range c {
		out = t.Apply(out)
	}
	return out
}

// TrimSpace trims leading and trailing whitespace from every string value.
// Metadata columns are left alone; their values are passed through verbatim.
type TrimSpace struct{}

func (TrimSpace) Apply(in []records.Record) []records.Record {
	for _, r := range in {
		for k, v := range r {
			if records.IsMeta(k) {
				continue
			}
			if s, ok := v.(string); ok {
				r[k] = strings.TrimSpace(s)
			}
		}
	}
	return in
}

// Dedup drops rows whose key-column values repeat an earlier row's; the first
// occurrence wins. Keys are hashed with xxh3 over the concatenated string
// forms, separated by an ASCII unit separator to avoid boundary collisions.
type Dedup struct {
	Keys []string
}

func (d Dedup) Apply(in []records.Record) []records.Record {
	if len(d.Keys) == 0 {
		return in
	}
	seen := make(map[uint64]struct{}, len(in))
	out := in[:0]
	var sb strings.Builder
	for _, r := range in {
		sb.Reset()
		for i, k := range d.Keys {
			if i > 0 {
				sb.WriteByte(0x1f)
			}
			sb.WriteString(records.AsString(r[k]))
		}
		h := xxh3.HashString(sb.String())
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, r)
	}
	return out
}

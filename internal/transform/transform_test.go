package transform

import (
	"reflect"
	"testing"

	"github.com/Svencol/data-modeling-pipeline/pkg/records"
)

func TestTrimSpace(t *testing.T) {
	in := []records.Record{
		{"name": "  padded  ", "n": 3, "_source": "  keep  "},
	}
	out := TrimSpace{}.Apply(in)
	if out[0]["name"] != "padded" {
		t.Fatalf("name=%q; want trimmed", out[0]["name"])
	}
	if out[0]["n"] != 3 {
		t.Fatalf("non-string value touched: %v", out[0]["n"])
	}
	if out[0]["_source"] != "  keep  " {
		t.Fatalf("metadata value touched: %q", out[0]["_source"])
	}
}

func TestDedupFirstWins(t *testing.T) {
	in := []records.Record{
		{"id": "A", "v": 1},
		{"id": "B", "v": 2},
		{"id": "A", "v": 3},
	}
	out := Dedup{Keys: []string{"id"}}.Apply(in)
	if len(out) != 2 {
		t.Fatalf("len=%d; want 2", len(out))
	}
	if out[0]["v"] != 1 || out[1]["v"] != 2 {
		t.Fatalf("order or first-wins violated: %#v", out)
	}
}

func TestDedupCompositeKeyBoundaries(t *testing.T) {
	// "ab"+"c" must not collide with "a"+"bc".
	in := []records.Record{
		{"x": "ab", "y": "c"},
		{"x": "a", "y": "bc"},
	}
	out := Dedup{Keys: []string{"x", "y"}}.Apply(in)
	if len(out) != 2 {
		t.Fatalf("boundary collision: %#v", out)
	}
}

func TestDedupNoKeysIsNoop(t *testing.T) {
	in := []records.Record{{"id": "A"}, {"id": "A"}}
	out := Dedup{}.Apply(in)
	if !reflect.DeepEqual(out, in) {
		t.Fatalf("no-key dedup changed input")
	}
}

func TestChainOrder(t *testing.T) {
	in := []records.Record{
		{"id": " A "},
		{"id": "A"},
	}
	// Trim first so the two rows become duplicates.
	out := Chain{TrimSpace{}, Dedup{Keys: []string{"id"}}}.Apply(in)
	if len(out) != 1 {
		t.Fatalf("len=%d; want 1 after trim+dedup", len(out))
	}
}

package schema

import (
	"errors"
	"testing"
)

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	RegisterBuiltin(r)

	c, err := r.Lookup("customers")
	if err != nil {
		t.Fatalf("Lookup(customers): %v", err)
	}
	if c.Name != "customers" || len(c.Fields) != 6 {
		t.Fatalf("unexpected contract: name=%q fields=%d", c.Name, len(c.Fields))
	}

	if _, err := r.Lookup("nope"); !errors.Is(err, ErrUnknownSchema) {
		t.Fatalf("Lookup(nope) err=%v; want ErrUnknownSchema", err)
	}
}

func TestRegisterOverwrites(t *testing.T) {
	r := NewRegistry()
	one := Contract{Name: "t", Fields: []Field{{Name: "a", Type: TypeString}}}
	two := Contract{Name: "t", Fields: []Field{{Name: "b", Type: TypeString}}}
	if err := r.Register(one); err != nil {
		t.Fatalf("register one: %v", err)
	}
	if err := r.Register(two); err != nil {
		t.Fatalf("register two: %v", err)
	}
	got, _ := r.Lookup("t")
	if got.Fields[0].Name != "b" {
		t.Fatalf("overwrite lost: %q", got.Fields[0].Name)
	}
}

func TestContractCheckRejectsDuplicates(t *testing.T) {
	c := Contract{Name: "dup", Fields: []Field{
		{Name: "x", Type: TypeString},
		{Name: "x", Type: TypeNumber},
	}}
	if err := c.Check(); err == nil {
		t.Fatalf("Check accepted duplicate field names")
	}
	if err := NewRegistry().Register(c); err == nil {
		t.Fatalf("Register accepted duplicate field names")
	}
}

func TestConstraints(t *testing.T) {
	cases := []struct {
		name string
		c    Constraint
		v    any
		want bool
	}{
		{"min_length pass", MinLength(2), "ab", true},
		{"min_length fail", MinLength(2), "a", false},
		{"gt pass", GreaterThan(0), 0.01, true},
		{"gt fail zero", GreaterThan(0), 0.0, false},
		{"gt int", GreaterThan(0), int64(3), true},
		{"ge pass zero", AtLeast(0), 0.0, true},
		{"ge fail", AtLeast(0), -0.5, false},
		{"lt pass", LessThan(10), 9.9, true},
		{"le fail", AtMost(10), 10.1, false},
		{"pattern pass", Pattern(emailPattern), "a@b.com", true},
		{"pattern fail", Pattern(emailPattern), "bad", false},
		{"enum pass", OneOf("pending", "shipped"), "shipped", true},
		{"enum fail", OneOf("pending", "shipped"), "lost", false},
		{"numeric on string fails", GreaterThan(0), "5", false},
	}
	for _, c := range cases {
		if got := c.c.Check(c.v); got != c.want {
			t.Errorf("%s: Check(%#v)=%v; want %v", c.name, c.v, got, c.want)
		}
	}
}

func TestNormalizersIdempotent(t *testing.T) {
	lc := Lowercase()
	if got := lc.Apply("A@B.Com"); got != "a@b.com" {
		t.Fatalf("Lowercase=%v", got)
	}
	if got := lc.Apply(lc.Apply("A@B.Com")); got != "a@b.com" {
		t.Fatalf("Lowercase not idempotent: %v", got)
	}

	r2 := Round(2)
	if got := r2.Apply(19.999); got != 20.0 {
		t.Fatalf("Round=%v; want 20", got)
	}
	if got := r2.Apply(r2.Apply(1.005 * 3)); got != r2.Apply(1.005*3) {
		t.Fatalf("Round not idempotent: %v", got)
	}
	// Non-numeric passes through untouched.
	if got := r2.Apply("x"); got != "x" {
		t.Fatalf("Round mutated non-number: %v", got)
	}
}

package schema

import (
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownSchema is returned by Lookup for names that were never registered.
var ErrUnknownSchema = errors.New("unknown schema")

// Registry holds named contracts for the lifetime of the process. Register is
// intended to be called during setup only; Lookup is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	contracts map[string]Contract
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{contracts: map[string]Contract{}}
}

// Register adds or overwrites the contract under its name after checking its
// structural soundness.
func (r *Registry) Register(c Contract) error {
	if err := c.Check(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contracts[c.Name] = c
	return nil
}

// MustRegister registers the contract and panics on error. Use only at
// process start where a bad built-in contract is a programming error.
func (r *Registry) MustRegister(c Contract) {
	if err := r.Register(c); err != nil {
		panic(err)
	}
}

// Lookup returns the contract registered under name, or an error wrapping
// ErrUnknownSchema.
func (r *Registry) Lookup(name string) (Contract, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.contracts[name]
	if !ok {
		return Contract{}, fmt.Errorf("%w: %q", ErrUnknownSchema, name)
	}
	return c, nil
}

// Names returns the registered contract names (unordered).
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.contracts))
	for n := range r.contracts {
		out = append(out, n)
	}
	return out
}

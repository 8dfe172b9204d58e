package transfer

import (
	"sort"
	"sync"

	"github.com/structwire/structwire/errors"
	"github.com/structwire/structwire/schema"
)

// RecordType is the subset of schema types a registry carries: named types
// whose values decode from a flat byte buffer. Records, bit fields and
// variants all qualify.
type RecordType interface {
	schema.Type
	Create(data []byte) (*schema.Struct, error)
}

// Registry maps declared type names to their definitions so envelopes can
// name the type they carry instead of serializing it. Both sides of a
// transfer must register the same definitions under the same names.
type Registry struct {
	mu    sync.RWMutex
	types map[string]RecordType
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]RecordType)}
}

// Register adds a type under its declared name. Anonymous types and name
// collisions are rejected.
func (r *Registry) Register(t RecordType) error {
	name := t.Name()
	if name == "" {
		return errors.Definition("", "anonymous types cannot be registered for transfer")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.types[name]; ok && prev != t {
		return errors.Definition(name, "a different type is already registered under %q", name)
	}
	r.types[name] = t
	return nil
}

// Lookup returns the type registered under name.
func (r *Registry) Lookup(name string) (RecordType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

// Names returns the registered type names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// defaultRegistry backs the package-level Register/Lookup/Unmarshal, for
// programs that keep one process-wide type population.
var defaultRegistry = NewRegistry()

// Register adds a type to the process-wide registry.
func Register(t RecordType) error {
	return defaultRegistry.Register(t)
}

// Lookup returns a type from the process-wide registry.
func Lookup(name string) (RecordType, bool) {
	return defaultRegistry.Lookup(name)
}

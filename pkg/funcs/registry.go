package funcs

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the registered functions. Registration happens once
// at startup; after Freeze the table is immutable and lookups are
// lock-free reads.
type Registry struct {
	mu     sync.RWMutex
	frozen bool
	fns    map[string]Function
}

// NewRegistry creates an empty function registry.
func NewRegistry() *Registry {
	return &Registry{
		fns: make(map[string]Function),
	}
}

// Register adds a function to the registry. Registering a duplicate
// name, a nameless function, or a nil handler is a configuration
// mistake and returns an error. Registering after Freeze fails.
func (r *Registry) Register(fn Function) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("registry is frozen")
	}
	if fn.Name == "" {
		return fmt.Errorf("function name must not be empty")
	}
	if fn.Handler == nil {
		return fmt.Errorf("function %s: handler must not be nil", fn.Name)
	}
	if _, exists := r.fns[fn.Name]; exists {
		return fmt.Errorf("function %s: already registered", fn.Name)
	}

	r.fns[fn.Name] = fn
	return nil
}

// MustRegister is Register that panics on error, for static startup
// tables.
func (r *Registry) MustRegister(fn Function) {
	if err := r.Register(fn); err != nil {
		panic(err)
	}
}

// Freeze makes the registry immutable.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Get retrieves a function by name.
func (r *Registry) Get(name string) (Function, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.fns[name]
	return fn, ok
}

// Has reports whether a function is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Declarations returns all registered functions sorted by name, for
// inclusion in the provider request.
func (r *Registry) Declarations() []Function {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fns := make([]Function, 0, len(r.fns))
	for _, fn := range r.fns {
		fns = append(fns, fn)
	}
	sort.Slice(fns, func(i, j int) bool { return fns[i].Name < fns[j].Name })
	return fns
}

// Len returns the number of registered functions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.fns)
}

package providers

import (
	"fmt"
	"sort"
	"strings"
)

// Registry manages all available engines
type Registry struct {
	engines map[string]Engine
}

// NewRegistry creates a new engine registry
func NewRegistry() *Registry {
	return &Registry{
		engines: make(map[string]Engine),
	}
}

// Register adds an engine to the registry
func (r *Registry) Register(engine Engine) {
	r.engines[strings.ToLower(engine.Name())] = engine
}

// Get retrieves an engine by name
func (r *Registry) Get(name string) (Engine, error) {
	engine, exists := r.engines[strings.ToLower(name)]
	if !exists {
		return nil, fmt.Errorf("engine %s not found (available: %s)", name, strings.Join(r.List(), ", "))
	}
	return engine, nil
}

// List returns all available engine names, sorted
func (r *Registry) List() []string {
	var names []string
	for name := range r.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasEngine checks if an engine is registered
func (r *Registry) HasEngine(name string) bool {
	_, exists := r.engines[strings.ToLower(name)]
	return exists
}

// Close closes every registered engine and returns the first error.
func (r *Registry) Close() error {
	var first error
	for _, name := range r.List() {
		if err := r.engines[name].Close(); err != nil && first == nil {
			first = fmt.Errorf("closing %s: %w", name, err)
		}
	}
	return first
}

// ABOUTME: Startup-time registry mapping adapter implementation names to factories.
// ABOUTME: New backend kinds are added by registration, never by reflective lookup.

package adapter

import (
	"fmt"
	"sort"
	"sync"

	"github.com/2389/fold-bridge/internal/manifest"
)

// Registry maps adapter implementation names to factories. The manifest
// loader resolves each backend's adapter name against it at load time.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a registry with the builtin transport adapters
// registered under "exec" and "http".
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.factories["exec"] = func(d *manifest.Descriptor, opts Options) (Adapter, error) {
		return NewExec(d, opts)
	}
	r.factories["http"] = func(d *manifest.Descriptor, opts Options) (Adapter, error) {
		return NewHTTP(d, opts)
	}
	return r
}

// Register adds a factory under the given name. Registering a name twice is
// a programming error and is rejected.
func (r *Registry) Register(name string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		return fmt.Errorf("adapter name cannot be empty")
	}
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("adapter %q already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Has reports whether an adapter name is registered. Satisfies
// manifest.Resolver.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Resolve returns the factory registered under name.
func (r *Registry) Resolve(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// Names returns all registered adapter names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

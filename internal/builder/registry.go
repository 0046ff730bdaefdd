package builder

import (
	"fmt"
	"sort"
	"sync"
)

// Registry is an explicit table of builders keyed by name, owned by whoever
// manages builder lifetime. Nothing in the package keeps ambient global
// state; lookups go through a registry handle.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]*Builder
}

func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]*Builder)}
}

func (r *Registry) Register(b *Builder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := b.Name()
	if name == "" {
		return fmt.Errorf("builder has no name")
	}
	if _, exists := r.builders[name]; exists {
		return fmt.Errorf("builder %q already registered", name)
	}
	r.builders[name] = b
	return nil
}

func (r *Registry) Lookup(name string) (*Builder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.builders[name]
	return b, ok
}

// Readiness reports whether every registered builder can serve tiles; an
// empty registry is not ready.
func (r *Registry) Readiness() (bool, []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.builders) == 0 {
		return false, nil
	}
	names := make([]string, 0, len(r.builders))
	for n, b := range r.builders {
		if err := b.Valid(); err != nil {
			return false, nil
		}
		names = append(names, n)
	}
	sort.Strings(names)
	return true, names
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.builders))
	for n := range r.builders {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

package coordinator

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds one Coordinator per logical connection name.
//
// It replaces the ambient global "transaction host per connection" pattern:
// a Registry is constructed once at process start (typically from the
// deployment config) and passed by reference to call sites.
//
// Thread-safety: safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	coords map[string]*Coordinator
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{coords: make(map[string]*Coordinator)}
}

// Register adds a coordinator under its connection name.
// Duplicate names are an error: exactly one coordinator exists per logical
// connection.
func (r *Registry) Register(c *Coordinator) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.coords[c.Name()]; exists {
		return fmt.Errorf("connection %q already registered", c.Name())
	}
	r.coords[c.Name()] = c
	return nil
}

// Get returns the coordinator for a connection name.
func (r *Registry) Get(name string) (*Coordinator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.coords[name]
	if !ok {
		return nil, fmt.Errorf("no coordinator registered for connection %q", name)
	}
	return c, nil
}

// Names returns all registered connection names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.coords))
	for name := range r.coords {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered coordinators.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.coords)
}

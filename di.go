package aeris

import (
	"fmt"
	"reflect"
	"sync"
)

// ServiceContainer resolves services by name or by type for ServiceBinder
// and the "services" scope parameter (spec.md §4.2, §8). Registrations are
// frozen once the owning Application starts; after that point Resolve*
// calls are read-only and safe for concurrent use without locking, per
// spec.md §7 ("service bindings are frozen after startup").
type ServiceContainer struct {
	mu       sync.RWMutex
	frozen   bool
	byName   map[string]*serviceEntry
	byType   map[reflect.Type]*serviceEntry
}

type serviceEntry struct {
	singleton bool
	value     interface{}
	factory   func() (interface{}, error)
}

// NewServiceContainer returns an empty, unfrozen container.
func NewServiceContainer() *ServiceContainer {
	return &ServiceContainer{
		byName: make(map[string]*serviceEntry),
		byType: make(map[reflect.Type]*serviceEntry),
	}
}

// RegisterSingleton registers a pre-built instance under both name and its
// concrete type.
func (c *ServiceContainer) RegisterSingleton(name string, value interface{}) error {
	return c.register(name, &serviceEntry{singleton: true, value: value})
}

// RegisterFactory registers a per-resolution factory under name and
// sampleType (used only to index the type map; the factory itself decides
// what to build).
func (c *ServiceContainer) RegisterFactory(name string, sampleType reflect.Type, factory func() (interface{}, error)) error {
	entry := &serviceEntry{factory: factory}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen {
		return fmt.Errorf("aeris: service container is frozen, cannot register %q", name)
	}
	if _, exists := c.byName[name]; exists {
		return fmt.Errorf("aeris: service %q is already registered", name)
	}
	c.byName[name] = entry
	if sampleType != nil {
		c.byType[sampleType] = entry
	}
	return nil
}

func (c *ServiceContainer) register(name string, entry *serviceEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen {
		return fmt.Errorf("aeris: service container is frozen, cannot register %q", name)
	}
	if _, exists := c.byName[name]; exists {
		return fmt.Errorf("aeris: service %q is already registered", name)
	}
	c.byName[name] = entry
	c.byType[reflect.TypeOf(entry.value)] = entry
	return nil
}

// Freeze locks the container against further registration (spec.md §7).
func (c *ServiceContainer) Freeze() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frozen = true
}

// ResolveByName resolves a service by its registered name. The second
// return value is false when no service is registered under that name —
// this is not an error (spec.md §4.2 "unresolved ⇒ null").
func (c *ServiceContainer) ResolveByName(name string) (interface{}, bool, error) {
	c.mu.RLock()
	entry, ok := c.byName[name]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	return resolveEntry(entry)
}

// ResolveByType resolves a service registered under t.
func (c *ServiceContainer) ResolveByType(t reflect.Type) (interface{}, bool, error) {
	c.mu.RLock()
	entry, ok := c.byType[t]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	return resolveEntry(entry)
}

// HasName reports whether a service is registered under name, without
// resolving it (used by the normalizer's precedence rule 4).
func (c *ServiceContainer) HasName(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.byName[name]
	return ok
}

// HasType reports whether a service is registered under t (precedence
// rule 5).
func (c *ServiceContainer) HasType(t reflect.Type) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.byType[t]
	return ok
}

func resolveEntry(entry *serviceEntry) (interface{}, bool, error) {
	if entry.singleton {
		return entry.value, true, nil
	}
	v, err := entry.factory()
	if err != nil {
		return nil, true, err
	}
	return v, true, nil
}

package database

import (
	"fmt"
	"maps"
	"sync"
)

// Extension contributes named operations to a Backend at runtime.
type Extension interface {
	// Name identifies the extension; it must be unique within a registry.
	Name() string
	// Operations maps operation names to implementations. It is read once,
	// at registration.
	Operations() map[string]Operation
}

type registryEntry struct {
	name string
	ops  map[string]Operation
}

// Registry holds extensions in registration order. It is safe for concurrent
// use; dispatch takes a read lock, registration a write lock.
type Registry struct {
	mu      sync.RWMutex
	entries []registryEntry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends ext to the resolution order.
func (r *Registry) Register(ext Extension) error {
	if ext == nil {
		return fmt.Errorf("%w: nil extension", ErrBadArgument)
	}
	name := ext.Name()
	if name == "" {
		return fmt.Errorf("%w: extension name is empty", ErrBadArgument)
	}
	ops := maps.Clone(ext.Operations())
	for opName, op := range ops {
		if op == nil {
			return fmt.Errorf("%w: extension %s operation %s is nil", ErrBadArgument, name, opName)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range r.entries {
		if entry.name == name {
			return fmt.Errorf("%w: %s", ErrDuplicateExtension, name)
		}
	}
	r.entries = append(r.entries, registryEntry{name: name, ops: ops})
	return nil
}

// Unregister removes the extension with ext's name.
func (r *Registry) Unregister(ext Extension) error {
	if ext == nil {
		return fmt.Errorf("%w: nil extension", ErrBadArgument)
	}
	name := ext.Name()

	r.mu.Lock()
	defer r.mu.Unlock()
	for i, entry := range r.entries {
		if entry.name == name {
			r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrExtensionNotRegistered, name)
}

// Resolve finds the first registered extension exposing operation name and
// returns the operation together with the extension's name.
func (r *Registry) Resolve(name string) (Operation, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, entry := range r.entries {
		if op, ok := entry.ops[name]; ok {
			return op, entry.name, true
		}
	}
	return nil, "", false
}

// Extensions returns the registered extension names in resolution order.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for _, entry := range r.entries {
		names = append(names, entry.name)
	}
	return names
}

package catalog

import (
	"context"
	"fmt"
	"sort"
)

// ClassBody evaluates a class when it is first included.
type ClassBody func(ctx context.Context) error

// ClassRegistry maps class names to their bodies.
type ClassRegistry struct {
	classes map[string]ClassBody
}

// NewClassRegistry returns an empty registry.
func NewClassRegistry() *ClassRegistry {
	return &ClassRegistry{classes: make(map[string]ClassBody)}
}

// Register adds a class. A nil body registers an empty class.
func (r *ClassRegistry) Register(name string, body ClassBody) error {
	n := NormalizeClassName(name)
	if n == "" {
		return fmt.Errorf("class name is required")
	}
	if _, exists := r.classes[n]; exists {
		return fmt.Errorf("class %s is already defined", n)
	}
	r.classes[n] = body
	return nil
}

// Lookup returns the body for name and whether it is registered.
func (r *ClassRegistry) Lookup(name string) (ClassBody, bool) {
	body, ok := r.classes[NormalizeClassName(name)]
	return body, ok
}

// Names returns registered class names sorted.
func (r *ClassRegistry) Names() []string {
	names := make([]string, 0, len(r.classes))
	for n := range r.classes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

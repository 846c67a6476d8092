package resource

import (
	"fmt"
	"sort"
	"sync"
)

// Factory returns a new zero value of a resource type
type Factory func() Resource

// Registry maps class identities to factories. The loader consults it to turn
// the class named in a header into a concrete, empty resource to decode into.
type Registry struct {
	factories map[string]Factory
	mutex     sync.RWMutex
}

// NewRegistry creates an empty class registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a class. Registering the same class twice fails with
// ErrAlreadyExists.
func (r *Registry) Register(class string, factory Factory) error {
	if class == "" {
		return fmt.Errorf("%w: empty class name", ErrUnknownClass)
	}
	if factory == nil {
		return fmt.Errorf("nil factory for class %q", class)
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.factories[class]; exists {
		return fmt.Errorf("class %q: %w", class, ErrAlreadyExists)
	}
	r.factories[class] = factory
	return nil
}

// MustRegister is Register for package initialization; it panics on error
func (r *Registry) MustRegister(class string, factory Factory) {
	if err := r.Register(class, factory); err != nil {
		panic(err)
	}
}

// New instantiates class
func (r *Registry) New(class string) (Resource, error) {
	r.mutex.RLock()
	factory, exists := r.factories[class]
	r.mutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrUnknownClass, class)
	}

	res := factory()
	if res.ClassName() != class {
		return nil, fmt.Errorf("%w: factory for %q built %q", ErrWrongType, class, res.ClassName())
	}
	return res, nil
}

// Has reports whether class is registered
func (r *Registry) Has(class string) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	_, exists := r.factories[class]
	return exists
}

// Classes lists registered classes in sorted order
func (r *Registry) Classes() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	classes := make([]string, 0, len(r.factories))
	for class := range r.factories {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	return classes
}

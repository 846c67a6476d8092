package uid

import (
	"fmt"
	"sort"
	"sync"
)

// MemoryRegistry keeps bindings in a map for the lifetime of the process
type MemoryRegistry struct {
	entries map[ID]string
	mutex   sync.RWMutex
}

// NewMemoryRegistry creates an empty in-memory registry
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		entries: make(map[ID]string),
	}
}

// Create allocates a fresh id
func (r *MemoryRegistry) Create() (ID, error) {
	for {
		id, err := random()
		if err != nil {
			return Invalid, fmt.Errorf("failed to generate uid: %w", err)
		}
		if !r.Has(id) {
			return id, nil
		}
	}
}

// Has reports whether id is registered
func (r *MemoryRegistry) Has(id ID) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	_, exists := r.entries[id]
	return exists
}

// Path returns the canonical path bound to id
func (r *MemoryRegistry) Path(id ID) (string, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	path, exists := r.entries[id]
	return path, exists
}

// Add binds a new id
func (r *MemoryRegistry) Add(id ID, path string) error {
	if !id.Valid() {
		return ErrInvalidID
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.entries[id]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, id)
	}
	r.entries[id] = path
	return nil
}

// Set rebinds an existing id
func (r *MemoryRegistry) Set(id ID, path string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.entries[id]; !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	r.entries[id] = path
	return nil
}

// Remove drops id
func (r *MemoryRegistry) Remove(id ID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.entries, id)
	return nil
}

// Len returns the number of bindings
func (r *MemoryRegistry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.entries)
}

// Range visits bindings in ascending id order
func (r *MemoryRegistry) Range(fn func(id ID, path string) bool) error {
	r.mutex.RLock()
	ids := make([]ID, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	snapshot := make(map[ID]string, len(r.entries))
	for id, path := range r.entries {
		snapshot[id] = path
	}
	r.mutex.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if !fn(id, snapshot[id]) {
			break
		}
	}
	return nil
}

// Close is a no-op
func (r *MemoryRegistry) Close() error {
	return nil
}

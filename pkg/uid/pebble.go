package uid

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
)

var keyPrefix = []byte("uid/")

// PebbleRegistry persists bindings in a pebble database so they survive
// restarts. Wiping its directory is recoverable: loads rebind what they read.
type PebbleRegistry struct {
	db    *pebble.DB
	mutex sync.Mutex
}

// NewPebbleRegistry opens (or creates) a registry database at dir
func NewPebbleRegistry(dir string) (*PebbleRegistry, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open uid registry: %w", err)
	}
	return &PebbleRegistry{db: db}, nil
}

func encodeKey(id ID) []byte {
	key := make([]byte, 0, len(keyPrefix)+8)
	key = append(key, keyPrefix...)
	return binary.BigEndian.AppendUint64(key, uint64(id))
}

func decodeKey(key []byte) (ID, bool) {
	if len(key) != len(keyPrefix)+8 {
		return Invalid, false
	}
	return ID(binary.BigEndian.Uint64(key[len(keyPrefix):])), true
}

// get returns the stored path; read errors other than "not found" are reported
func (r *PebbleRegistry) get(id ID) (string, bool, error) {
	value, closer, err := r.db.Get(encodeKey(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	defer closer.Close()

	return string(value), true, nil
}

// Create allocates a fresh id
func (r *PebbleRegistry) Create() (ID, error) {
	for {
		id, err := random()
		if err != nil {
			return Invalid, fmt.Errorf("failed to generate uid: %w", err)
		}
		_, exists, err := r.get(id)
		if err != nil {
			return Invalid, err
		}
		if !exists {
			return id, nil
		}
	}
}

// Has reports whether id is registered. Read failures count as absent.
func (r *PebbleRegistry) Has(id ID) bool {
	_, exists, err := r.get(id)
	return err == nil && exists
}

// Path returns the canonical path bound to id
func (r *PebbleRegistry) Path(id ID) (string, bool) {
	path, exists, err := r.get(id)
	if err != nil {
		return "", false
	}
	return path, exists
}

// Add binds a new id
func (r *PebbleRegistry) Add(id ID, path string) error {
	if !id.Valid() {
		return ErrInvalidID
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	_, exists, err := r.get(id)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, id)
	}
	return r.db.Set(encodeKey(id), []byte(path), pebble.Sync)
}

// Set rebinds an existing id
func (r *PebbleRegistry) Set(id ID, path string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	_, exists, err := r.get(id)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r.db.Set(encodeKey(id), []byte(path), pebble.Sync)
}

// Remove drops id
func (r *PebbleRegistry) Remove(id ID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.db.Delete(encodeKey(id), pebble.Sync)
}

// Len counts bindings
func (r *PebbleRegistry) Len() int {
	count := 0
	_ = r.Range(func(ID, string) bool {
		count++
		return true
	})
	return count
}

// Range visits bindings in ascending id order
func (r *PebbleRegistry) Range(fn func(id ID, path string) bool) error {
	upper := append([]byte(nil), keyPrefix...)
	upper[len(upper)-1]++

	iter, err := r.db.NewIter(&pebble.IterOptions{
		LowerBound: keyPrefix,
		UpperBound: upper,
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		id, ok := decodeKey(iter.Key())
		if !ok {
			continue
		}
		if !fn(id, string(iter.Value())) {
			break
		}
	}
	return iter.Error()
}

// Close flushes and closes the database
func (r *PebbleRegistry) Close() error {
	return r.db.Close()
}

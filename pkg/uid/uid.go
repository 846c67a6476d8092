// Package uid provides stable resource identifiers and the registry that
// maps each identifier to the canonical path of its resource.
package uid

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"math"
	"strings"
)

// ID is a process-global identifier that survives file moves
type ID int64

// Invalid is the "unassigned" sentinel
const Invalid ID = -1

const (
	textPrefix  = "uid://"
	invalidText = "uid://<invalid>"
	digits      = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// Registry errors
var (
	ErrNotFound      = errors.New("uid not registered")
	ErrAlreadyExists = errors.New("uid already registered")
	ErrInvalidID     = errors.New("invalid uid")
)

// Valid reports whether id can be registered
func (id ID) Valid() bool {
	return id >= 0
}

// String returns the text form, e.g. "uid://3ak1x0b2"
func (id ID) String() string {
	if !id.Valid() {
		return invalidText
	}
	if id == 0 {
		return textPrefix + "0"
	}

	var buf [16]byte
	i := len(buf)
	for v := uint64(id); v > 0; v /= 36 {
		i--
		buf[i] = digits[v%36]
	}
	return textPrefix + string(buf[i:])
}

// FromText parses the text form. Anything malformed yields Invalid.
func FromText(text string) ID {
	rest, ok := strings.CutPrefix(text, textPrefix)
	if !ok || rest == "" {
		return Invalid
	}

	var v uint64
	for i := 0; i < len(rest); i++ {
		d := strings.IndexByte(digits, rest[i])
		if d < 0 {
			return Invalid
		}
		if v > (math.MaxInt64-uint64(d))/36 {
			return Invalid
		}
		v = v*36 + uint64(d)
	}
	return ID(v)
}

// random returns a non-negative 63-bit id
func random() (ID, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return Invalid, err
	}
	return ID(binary.BigEndian.Uint64(b[:]) & math.MaxInt64), nil
}

// Registry maps UIDs to canonical paths.
//
// Implementations serialize their own mutations, but a save transaction
// spanning several calls is not atomic; callers keep a single writer.
type Registry interface {
	// Create allocates a fresh id that is not currently registered
	Create() (ID, error)
	// Has reports whether id is registered
	Has(id ID) bool
	// Path returns the canonical path bound to id
	Path(id ID) (string, bool)
	// Add binds a new id. It fails with ErrAlreadyExists when id is bound.
	Add(id ID, path string) error
	// Set rebinds an existing id. It fails with ErrNotFound when id is unbound.
	Set(id ID, path string) error
	// Remove drops id. Removing an unbound id is not an error.
	Remove(id ID) error
	// Len returns the number of bound ids
	Len() int
	// Range calls fn for every binding until fn returns false
	Range(fn func(id ID, path string) bool) error
	// Close releases backing resources
	Close() error
}

// Bind is the commit step shared by save, load and export: Set when id is
// already registered, Add when it is not.
func Bind(r Registry, id ID, path string) error {
	if r.Has(id) {
		return r.Set(id, path)
	}
	return r.Add(id, path)
}

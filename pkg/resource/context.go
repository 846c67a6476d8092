package resource

import (
	"fmt"

	"github.com/ssargent/respack/pkg/uid"
)

// MaxDepth bounds how deeply bundled resources may nest inside one payload
const MaxDepth = 64

// Linker is what a resource sees of the store while it (de)serializes:
// UID lookup for outgoing external references and by-UID / by-path loading
// for incoming ones.
type Linker interface {
	// PathUID returns the UID recorded for the resource at path, or uid.Invalid
	PathUID(path string) uid.ID
	// ResolveUID loads the resource registered under id. Unregistered ids
	// fail with uid.ErrNotFound.
	ResolveUID(id uid.ID) (Resource, error)
	// ResolvePath loads the resource stored at path
	ResolvePath(path string) (Resource, error)
}

// Encoder is the per-save context passed to EncodeFields
type Encoder struct {
	linker Linker
	path   string
	depth  int
}

// NewEncoder creates an encoder for the resource being written to path
func NewEncoder(linker Linker, path string) *Encoder {
	return &Encoder{linker: linker, path: path}
}

// Linker returns the store-side linker
func (e *Encoder) Linker() Linker {
	return e.linker
}

// Path returns the path of the top-level resource being encoded
func (e *Encoder) Path() string {
	return e.path
}

// Depth returns the current bundled nesting depth
func (e *Encoder) Depth() int {
	return e.depth
}

// Nested returns the context for a bundled child
func (e *Encoder) Nested() (*Encoder, error) {
	if e.depth+1 > MaxDepth {
		return nil, Errorf("encode", e.path, ErrNestingTooDeep, "depth %d", e.depth+1)
	}
	return &Encoder{linker: e.linker, path: e.path, depth: e.depth + 1}, nil
}

// Decoder is the per-load context passed to DecodeFields
type Decoder struct {
	linker Linker
	path   string
	depth  int
}

// NewDecoder creates a decoder for the resource being read from path
func NewDecoder(linker Linker, path string) *Decoder {
	return &Decoder{linker: linker, path: path}
}

// Linker returns the store-side linker
func (d *Decoder) Linker() Linker {
	return d.linker
}

// Path returns the path of the top-level resource being decoded
func (d *Decoder) Path() string {
	return d.path
}

// Depth returns the current bundled nesting depth
func (d *Decoder) Depth() int {
	return d.depth
}

// Nested returns the context for a bundled child
func (d *Decoder) Nested() (*Decoder, error) {
	if d.depth+1 > MaxDepth {
		return nil, Errorf("decode", d.path, ErrNestingTooDeep, "depth %d", d.depth+1)
	}
	return &Decoder{linker: d.linker, path: d.path, depth: d.depth + 1}, nil
}

// Fail wraps err as a payload decode error attributed to the current path
func (d *Decoder) Fail(field string, err error) error {
	return Wrap("decode", d.path, ErrPayloadDecode, fmt.Errorf("field %q: %w", field, err))
}

// Package resource defines the persisted object model: the Resource
// interface implemented by every storable type, the Fields payload tree,
// the class registry used for polymorphic dispatch on load, and the
// encode/decode contexts handed to each type while it (de)serializes.
package resource

// Resource is implemented by every type that can be saved to and loaded from
// a container. ClassName is the stable class identity written into the
// header and must never change for a given type.
type Resource interface {
	ClassName() string
	ResourcePath() string
	SetResourcePath(path string)

	// EncodeFields returns the payload tree of the resource
	EncodeFields(enc *Encoder) (Fields, error)
	// DecodeFields populates the resource from a payload tree
	DecodeFields(dec *Decoder, fields Fields) error
}

// Base stores the canonical path of a resource. Embed it to satisfy the
// path half of Resource.
type Base struct {
	path string
}

// ResourcePath returns the canonical path, empty for unsaved or bundled resources
func (b *Base) ResourcePath() string {
	return b.path
}

// SetResourcePath records the canonical path
func (b *Base) SetResourcePath(path string) {
	b.path = path
}

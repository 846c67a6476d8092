package codec

import (
	"fmt"
	"io"

	"github.com/ssargent/respack/pkg/format"
	"github.com/ssargent/respack/pkg/resource"
)

// Payload serializes the field tree of one resource
type Payload interface {
	Name() string
	Encode(w io.Writer, fields resource.Fields) error
	Decode(r io.Reader) (resource.Fields, error)
}

// ForFormat returns the payload codec of a container format, nil for Unknown
func ForFormat(f format.Format) Payload {
	switch f {
	case format.Text:
		return Text{}
	case format.Binary:
		return Binary{}
	}
	return nil
}

// toTree validates a decoded document and turns it into Fields
func toTree(name string, doc any) (resource.Fields, error) {
	if doc == nil {
		return resource.Fields{}, nil
	}

	normalized, err := resource.Normalize(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", resource.ErrPayloadDecode, name, err)
	}

	fields, ok := normalized.(resource.Fields)
	if !ok {
		return nil, fmt.Errorf("%w: %s: top-level value is %T, want mapping", resource.ErrPayloadDecode, name, doc)
	}
	return fields, nil
}

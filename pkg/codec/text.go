package codec

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/ssargent/respack/pkg/resource"
)

// Text is the YAML payload codec
type Text struct{}

// Name returns "yaml"
func (Text) Name() string {
	return "yaml"
}

// Encode writes fields as an indented YAML document
func (Text) Encode(w io.Writer, fields resource.Fields) error {
	if fields == nil {
		fields = resource.Fields{}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]any(fields)); err != nil {
		return fmt.Errorf("%w: yaml: %w", resource.ErrPayloadEncode, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("%w: yaml: %w", resource.ErrPayloadEncode, err)
	}
	return nil
}

// Decode reads the first YAML document from r
func (Text) Decode(r io.Reader) (resource.Fields, error) {
	var doc any
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return resource.Fields{}, nil
		}
		return nil, fmt.Errorf("%w: yaml: %w", resource.ErrPayloadDecode, err)
	}
	return toTree("yaml", doc)
}

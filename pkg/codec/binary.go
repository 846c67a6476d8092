package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/ssargent/respack/pkg/resource"
)

// Binary is the MessagePack payload codec
type Binary struct{}

// Name returns "msgpack"
func (Binary) Name() string {
	return "msgpack"
}

// Encode writes fields as a MessagePack map with sorted keys
func (Binary) Encode(w io.Writer, fields resource.Fields) error {
	if fields == nil {
		fields = resource.Fields{}
	}

	enc := msgpack.NewEncoder(w)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(map[string]any(fields)); err != nil {
		return fmt.Errorf("%w: msgpack: %w", resource.ErrPayloadEncode, err)
	}
	return nil
}

// Decode reads one MessagePack value from r
func (Binary) Decode(r io.Reader) (resource.Fields, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", resource.ErrFileRead, err)
	}
	if len(data) == 0 {
		return resource.Fields{}, nil
	}

	// EOF inside a value is truncation, not an empty payload
	rd := bytes.NewReader(data)
	dec := msgpack.NewDecoder(rd)
	dec.UseLooseInterfaceDecoding(true)

	doc, err := dec.DecodeInterface()
	if err != nil {
		return nil, fmt.Errorf("%w: msgpack: %w", resource.ErrPayloadDecode, err)
	}
	if rd.Len() > 0 {
		return nil, fmt.Errorf("%w: msgpack: %d trailing bytes", resource.ErrPayloadDecode, rd.Len())
	}
	return toTree("msgpack", doc)
}

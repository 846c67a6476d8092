// Package header frames the {class, uid} metadata that opens every container.
//
// The header is readable without decoding the payload, which is what lets a
// loader dispatch on the class and answer UID queries cheaply.
//
// # Text encoding
//
// One line holding a compact JSON object, terminated by '\n':
//
//	{"class":"Item","uid":"uid://3ak1x0b2"}
//
// # Binary encoding
//
// Two pascal strings back to back, class first:
//
//	[Len(4)][Class][Len(4)][UID]
//
// Len is a little-endian uint32 byte count. There is no terminator.
//
// Both codecs leave the reader positioned on the first payload byte and
// report exactly how many bytes they consumed or produced.
package header

import (
	"bufio"
	"io"

	"github.com/ssargent/respack/pkg/format"
)

// Header is the metadata prefix of a container
type Header struct {
	Class string `json:"class"`
	UID   string `json:"uid"`
}

// Codec reads and writes a Header at the current stream position
type Codec interface {
	// Write emits h and returns the number of bytes written
	Write(w io.Writer, h Header) (int, error)
	// Read consumes exactly one header and returns it with the byte count
	Read(r *bufio.Reader) (Header, int, error)
}

var (
	textCodec   Codec = TextCodec{}
	binaryCodec Codec = BinaryCodec{}
)

// ForFormat returns the header codec of f, or nil for format.Unknown
func ForFormat(f format.Format) Codec {
	switch f {
	case format.Text:
		return textCodec
	case format.Binary:
		return binaryCodec
	default:
		return nil
	}
}

package header

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"unicode/utf8"

	"github.com/ssargent/respack/pkg/resource"
)

// MaxFieldSize bounds a single pascal string so a corrupt length prefix
// cannot trigger a huge allocation
const MaxFieldSize = 1 << 20

// BinaryCodec encodes the header as two pascal strings
type BinaryCodec struct{}

// Write emits class then uid, each as [Len(4)][Bytes]
func (BinaryCodec) Write(w io.Writer, h Header) (int, error) {
	buf := make([]byte, 0, 8+len(h.Class)+len(h.UID))
	for _, field := range []string{h.Class, h.UID} {
		if uint64(len(field)) > math.MaxUint32 || len(field) > MaxFieldSize {
			return 0, resource.Errorf("write header", "", resource.ErrHeaderSerialize, "field of %d bytes exceeds limit", len(field))
		}
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(field)))
		buf = append(buf, field...)
	}

	n, err := w.Write(buf)
	if err != nil {
		return n, resource.Wrap("write header", "", resource.ErrFileWrite, err)
	}
	return n, nil
}

// Read consumes exactly two pascal strings
func (BinaryCodec) Read(r *bufio.Reader) (Header, int, error) {
	class, n1, err := readPascalString(r)
	if err != nil {
		return Header{}, n1, err
	}
	uid, n2, err := readPascalString(r)
	if err != nil {
		return Header{}, n1 + n2, err
	}
	if class == "" {
		return Header{}, n1 + n2, resource.Errorf("read header", "", resource.ErrHeaderDeserialize, "empty class")
	}
	return Header{Class: class, UID: uid}, n1 + n2, nil
}

func readPascalString(r io.Reader) (string, int, error) {
	var size [4]byte
	n, err := io.ReadFull(r, size[:])
	if err != nil {
		return "", n, readError(err)
	}

	length := binary.LittleEndian.Uint32(size[:])
	if length > MaxFieldSize {
		return "", n, resource.Errorf("read header", "", resource.ErrHeaderDeserialize, "field length %d exceeds limit", length)
	}

	data := make([]byte, length)
	m, err := io.ReadFull(r, data)
	if err != nil {
		return "", n + m, readError(err)
	}
	if !utf8.Valid(data) {
		return "", n + m, resource.Errorf("read header", "", resource.ErrHeaderDeserialize, "field is not valid UTF-8")
	}
	return string(data), n + m, nil
}

// readError classifies a short read as corrupt framing and anything else as I/O
func readError(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return resource.Wrap("read header", "", resource.ErrHeaderDeserialize, io.ErrUnexpectedEOF)
	}
	return resource.Wrap("read header", "", resource.ErrFileRead, err)
}

package header

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ssargent/respack/pkg/resource"
)

// TextCodec encodes the header as a single JSON line
type TextCodec struct{}

// Write emits the header line, including its '\n' terminator
func (TextCodec) Write(w io.Writer, h Header) (int, error) {
	line, err := h.line()
	if err != nil {
		return 0, resource.Wrap("write header", "", resource.ErrHeaderSerialize, err)
	}

	n, err := w.Write(line)
	if err != nil {
		return n, resource.Wrap("write header", "", resource.ErrFileWrite, err)
	}
	return n, nil
}

// Read consumes one line and parses it as a header. The line terminator is
// consumed too, so the reader is left on the first payload byte.
func (TextCodec) Read(r *bufio.Reader) (Header, int, error) {
	line, err := r.ReadBytes('\n')
	n := len(line)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return Header{}, n, resource.Wrap("read header", "", resource.ErrFileRead, err)
		}
		if n == 0 {
			return Header{}, n, resource.Wrap("read header", "", resource.ErrHeaderDeserialize, io.ErrUnexpectedEOF)
		}
	}

	line = bytes.TrimRight(line, "\r\n")

	var h Header
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&h); err != nil {
		return Header{}, n, resource.Wrap("read header", "", resource.ErrHeaderDeserialize, err)
	}
	if dec.More() {
		return Header{}, n, resource.Errorf("read header", "", resource.ErrHeaderDeserialize, "trailing data after header")
	}
	if h.Class == "" {
		return Header{}, n, resource.Errorf("read header", "", resource.ErrHeaderDeserialize, "empty class")
	}
	return h, n, nil
}

// line encodes h as compact JSON terminated by '\n', leaving <, > and &
// unescaped
func (h Header) line() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(h); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// String renders the header the way it appears in a text container
func (h Header) String() string {
	line, err := h.line()
	if err != nil {
		return fmt.Sprintf("{class:%s uid:%s}", h.Class, h.UID)
	}
	return string(bytes.TrimSuffix(line, []byte("\n")))
}

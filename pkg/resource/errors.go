package resource

import (
	"errors"
	"fmt"
)

// I/O
var (
	ErrOpenFileRead  = errors.New("can't open file for reading")
	ErrOpenFileWrite = errors.New("can't open file for writing")
	ErrFileRead      = errors.New("can't read file")
	ErrFileWrite     = errors.New("can't write to file")
)

// Framing
var (
	ErrHeaderDeserialize = errors.New("can't deserialize header")
	ErrHeaderSerialize   = errors.New("can't serialize header")
	ErrPayloadDecode     = errors.New("can't decode payload")
	ErrPayloadEncode     = errors.New("can't encode payload")
)

// Identity and resolution
var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrWrongType         = errors.New("wrong resource type")
	ErrUnknownClass      = errors.New("unknown resource class")
	ErrCannotLoad        = errors.New("cannot load resource")
	ErrNoMeta            = errors.New("no meta found")
	ErrUnsavedReference  = errors.New("external resource has no path")
	ErrCyclicReference   = errors.New("cyclic external reference")
	ErrAlreadyExists     = errors.New("already exists")
	ErrMissingField      = errors.New("missing field")
	ErrFieldType         = errors.New("unexpected field type")
	ErrNestingTooDeep    = errors.New("bundled resources nested too deep")
)

// Error carries the operation and path that failed together with the error
// kind (one of the sentinels above) and the underlying cause.
type Error struct {
	Op   string
	Path string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Kind.Error()
	if e.Path != "" {
		msg = fmt.Sprintf("%s %s: %s", e.Op, e.Path, msg)
	} else if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Errorf builds an *Error whose cause is formatted from format and args
func Errorf(op, path string, kind error, format string, args ...any) error {
	return &Error{Op: op, Path: path, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap builds an *Error around cause. A nil cause still yields an error of kind.
func Wrap(op, path string, kind error, cause error) error {
	return &Error{Op: op, Path: path, Kind: kind, Err: cause}
}

// Package format classifies resource paths into container formats.
//
// Classification is a case-sensitive suffix match against a static extension
// table. Case sensitivity is a deliberate simplification: "a.RTXT" is Unknown
// even on case-insensitive filesystems.
package format

import "strings"

// Format identifies a container encoding
type Format int

const (
	// Unknown marks a path with no recognized extension. Callers must reject it.
	Unknown Format = iota
	// Text is the human-readable container (header line + YAML payload)
	Text
	// Binary is the compact container (pascal-string header + MessagePack payload)
	Binary
)

const (
	// TextExtension is the extension of text containers, without the dot
	TextExtension = "rtxt"
	// BinaryExtension is the extension of binary containers, without the dot
	BinaryExtension = "rbin"

	// remapSuffix is inserted before the binary extension of derived artifacts
	remapSuffix = "_text_remap"
)

// table order is the order reported by Extensions
var table = []struct {
	ext    string
	format Format
}{
	{BinaryExtension, Binary},
	{TextExtension, Text},
}

// Classify returns the format of path based on its extension
func Classify(path string) Format {
	for _, entry := range table {
		if strings.HasSuffix(path, "."+entry.ext) {
			return entry.format
		}
	}
	return Unknown
}

// Extensions returns the recognized extensions without the leading dot
func Extensions() []string {
	out := make([]string, 0, len(table))
	for _, entry := range table {
		out = append(out, entry.ext)
	}
	return out
}

// Extension returns the extension of f without the leading dot, or "" for Unknown
func (f Format) Extension() string {
	for _, entry := range table {
		if entry.format == f {
			return entry.ext
		}
	}
	return ""
}

// String implements fmt.Stringer
func (f Format) String() string {
	switch f {
	case Text:
		return "text"
	case Binary:
		return "binary"
	default:
		return "unknown"
	}
}

// DerivedBinaryPath returns the path of the binary artifact produced from a
// text source during export. Non-text paths are returned unchanged.
//
//	res/items/sword.rtxt -> res/items/sword_text_remap.rbin
func DerivedBinaryPath(path string) string {
	if Classify(path) != Text {
		return path
	}
	base := strings.TrimSuffix(path, "."+TextExtension)
	return base + remapSuffix + "." + BinaryExtension
}

// IsDerived reports whether path names an artifact produced by
// DerivedBinaryPath
func IsDerived(path string) bool {
	return strings.HasSuffix(path, remapSuffix+"."+BinaryExtension)
}

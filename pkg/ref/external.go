package ref

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ssargent/respack/pkg/resource"
	"github.com/ssargent/respack/pkg/uid"
)

// Wire tags of an external reference
const (
	TagExternal = "ExtResource"
	TagNone     = "None"
)

// Descriptor identifies an externally stored resource
type Descriptor struct {
	Class string
	UID   string
	Path  string
}

// Fields returns the tagged wire form of d
func (d Descriptor) Fields() resource.Fields {
	return resource.Fields{
		TagExternal: resource.Fields{
			"class": d.Class,
			"uid":   d.UID,
			"path":  d.Path,
		},
	}
}

// Describe builds the descriptor of a saved resource. Resources without a
// path cannot be referenced externally.
func Describe(enc *resource.Encoder, r resource.Resource) (Descriptor, error) {
	path := r.ResourcePath()
	if path == "" {
		return Descriptor{}, fmt.Errorf("%s: %w", r.ClassName(), resource.ErrUnsavedReference)
	}

	id := uid.Invalid
	if linker := enc.Linker(); linker != nil {
		id = linker.PathUID(path)
	}
	return Descriptor{Class: r.ClassName(), UID: id.String(), Path: path}, nil
}

// External encodes a required reference. A nil reference fails with ErrNoMeta.
func External(enc *resource.Encoder, r resource.Resource) (any, error) {
	if isNil(r) {
		return nil, fmt.Errorf("external resource: %w", resource.ErrNoMeta)
	}
	d, err := Describe(enc, r)
	if err != nil {
		return nil, err
	}
	return d.Fields(), nil
}

// ExternalOptional encodes an optional reference; nil is written as None
func ExternalOptional(enc *resource.Encoder, r resource.Resource) (any, error) {
	if isNil(r) {
		return TagNone, nil
	}
	return External(enc, r)
}

// ExternalSlice encodes a sequence of references, preserving order
func ExternalSlice[PT resource.Resource](enc *resource.Encoder, items []PT) ([]any, error) {
	out := make([]any, len(items))
	for i, item := range items {
		v, err := External(enc, item)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// ExternalMap encodes keyed references
func ExternalMap[PT resource.Resource](enc *resource.Encoder, items map[string]PT) (resource.Fields, error) {
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(resource.Fields, len(items))
	for _, k := range keys {
		v, err := External(enc, items[k])
		if err != nil {
			return nil, fmt.Errorf("[%q]: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// ParseDescriptor reads the wire form. none is true for the None tag.
func ParseDescriptor(v any) (d Descriptor, none bool, err error) {
	if s, ok := v.(string); ok && s == TagNone {
		return Descriptor{}, true, nil
	}

	outer, ok := resource.AsFields(v)
	if !ok || len(outer) != 1 {
		return Descriptor{}, false, fmt.Errorf("%w: not an %s: %v", resource.ErrFieldType, TagExternal, v)
	}
	inner, err := outer.Map(TagExternal)
	if err != nil {
		return Descriptor{}, false, fmt.Errorf("%w: not an %s", resource.ErrFieldType, TagExternal)
	}
	if inner == nil {
		return Descriptor{}, false, fmt.Errorf("%w: empty %s", resource.ErrFieldType, TagExternal)
	}

	if d.Class, err = inner.String("class"); err != nil {
		return Descriptor{}, false, err
	}
	if d.UID, err = inner.String("uid"); err != nil {
		return Descriptor{}, false, err
	}
	if d.Path, err = inner.String("path"); err != nil {
		return Descriptor{}, false, err
	}
	return d, false, nil
}

// Resolve loads the resource d points at: by UID when it is registered,
// otherwise (or when that load fails) by path.
func Resolve(linker resource.Linker, d Descriptor) (resource.Resource, error) {
	if linker == nil {
		return nil, resource.Errorf("resolve", d.Path, resource.ErrCannotLoad, "no linker")
	}

	var uidErr error
	if id := uid.FromText(d.UID); id.Valid() {
		r, err := linker.ResolveUID(id)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, uid.ErrNotFound) {
			uidErr = fmt.Errorf("by uid %s: %w", d.UID, err)
		}
	}

	if d.Path == "" {
		return nil, resource.Wrap("resolve", d.Path, resource.ErrCannotLoad, errors.Join(uidErr, errors.New("no path")))
	}

	r, err := linker.ResolvePath(d.Path)
	if err != nil {
		return nil, resource.Wrap("resolve", d.Path, resource.ErrCannotLoad, errors.Join(uidErr, fmt.Errorf("by path: %w", err)))
	}
	return r, nil
}

func decodeExternal[PT resource.Resource](dec *resource.Decoder, d Descriptor) (PT, error) {
	var zero PT

	r, err := Resolve(dec.Linker(), d)
	if err != nil {
		return zero, err
	}
	typed, ok := r.(PT)
	if !ok {
		return zero, fmt.Errorf("%w: %s is %s (%T), want %T", resource.ErrWrongType, d.Path, r.ClassName(), r, zero)
	}
	return typed, nil
}

// DecodeExternal decodes and resolves a required reference. None fails with
// ErrNoMeta.
func DecodeExternal[PT resource.Resource](dec *resource.Decoder, fields resource.Fields, key string) (PT, error) {
	var zero PT

	v, err := lookup(dec, fields, key)
	if err != nil {
		return zero, err
	}
	d, none, err := ParseDescriptor(v)
	if err != nil {
		return zero, dec.Fail(key, err)
	}
	if none {
		return zero, dec.Fail(key, resource.ErrNoMeta)
	}

	r, err := decodeExternal[PT](dec, d)
	if err != nil {
		return zero, dec.Fail(key, err)
	}
	return r, nil
}

// DecodeExternalOptional decodes and resolves an optional reference. None
// yields the zero value. A descriptor that cannot be resolved is an error,
// never None.
func DecodeExternalOptional[PT resource.Resource](dec *resource.Decoder, fields resource.Fields, key string) (PT, error) {
	var zero PT

	v, err := lookup(dec, fields, key)
	if err != nil {
		return zero, err
	}
	d, none, err := ParseDescriptor(v)
	if err != nil {
		return zero, dec.Fail(key, err)
	}
	if none {
		return zero, nil
	}

	r, err := decodeExternal[PT](dec, d)
	if err != nil {
		return zero, dec.Fail(key, err)
	}
	return r, nil
}

// element parses one collection entry; None and malformed entries both abort
func element[PT resource.Resource](dec *resource.Decoder, v any) (PT, error) {
	var zero PT

	d, none, err := ParseDescriptor(v)
	if err != nil {
		return zero, err
	}
	if none {
		return zero, fmt.Errorf("%w: %s inside collection", resource.ErrNoMeta, TagNone)
	}
	return decodeExternal[PT](dec, d)
}

// DecodeExternalSlice resolves a sequence of references. Any malformed element
// aborts the whole decode.
func DecodeExternalSlice[PT resource.Resource](dec *resource.Decoder, fields resource.Fields, key string) ([]PT, error) {
	list, err := fields.List(key)
	if err != nil {
		return nil, dec.Fail(key, err)
	}

	out := make([]PT, len(list))
	for i, v := range list {
		r, err := element[PT](dec, v)
		if err != nil {
			return nil, dec.Fail(fmt.Sprintf("%s[%d]", key, i), err)
		}
		out[i] = r
	}
	return out, nil
}

// DecodeExternalMap resolves keyed references. Any malformed element aborts
// the whole decode.
func DecodeExternalMap[PT resource.Resource](dec *resource.Decoder, fields resource.Fields, key string) (map[string]PT, error) {
	m, err := fields.Map(key)
	if err != nil {
		return nil, dec.Fail(key, err)
	}

	out := make(map[string]PT, len(m))
	for _, k := range m.Keys() {
		r, err := element[PT](dec, m[k])
		if err != nil {
			return nil, dec.Fail(fmt.Sprintf("%s[%q]", key, k), err)
		}
		out[k] = r
	}
	return out, nil
}

package ref

import (
	"fmt"
	"sort"

	"github.com/ssargent/respack/pkg/resource"
)

// Bundled encodes a required child inline. A nil child fails with ErrNoMeta.
func Bundled(enc *resource.Encoder, r resource.Resource) (any, error) {
	if isNil(r) {
		return nil, fmt.Errorf("bundled resource: %w", resource.ErrNoMeta)
	}
	return encodeBundled(enc, r)
}

// BundledOptional encodes an optional child inline. A nil child is written as
// an explicit null, distinct from a present child with no fields.
func BundledOptional(enc *resource.Encoder, r resource.Resource) (any, error) {
	if isNil(r) {
		return nil, nil
	}
	return encodeBundled(enc, r)
}

func encodeBundled(enc *resource.Encoder, r resource.Resource) (resource.Fields, error) {
	child, err := enc.Nested()
	if err != nil {
		return nil, err
	}
	fields, err := r.EncodeFields(child)
	if err != nil {
		return nil, err
	}
	if fields == nil {
		fields = resource.Fields{}
	}
	return fields, nil
}

// BundledSlice encodes children inline, preserving order
func BundledSlice[PT resource.Resource](enc *resource.Encoder, items []PT) ([]any, error) {
	out := make([]any, len(items))
	for i, item := range items {
		v, err := Bundled(enc, item)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// BundledMap encodes keyed children inline
func BundledMap[PT resource.Resource](enc *resource.Encoder, items map[string]PT) (resource.Fields, error) {
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(resource.Fields, len(items))
	for _, k := range keys {
		v, err := Bundled(enc, items[k])
		if err != nil {
			return nil, fmt.Errorf("[%q]: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

func decodeBundled[T any, PT Ptr[T]](dec *resource.Decoder, v any) (PT, error) {
	if v == nil {
		return nil, resource.ErrNoMeta
	}
	fields, ok := resource.AsFields(v)
	if !ok {
		return nil, fmt.Errorf("%w: bundled resource is %T", resource.ErrFieldType, v)
	}

	child, err := dec.Nested()
	if err != nil {
		return nil, err
	}

	var r PT = new(T)
	if err := r.DecodeFields(child, fields); err != nil {
		return nil, err
	}
	return r, nil
}

// DecodeBundled decodes a required inline child stored under key
func DecodeBundled[T any, PT Ptr[T]](dec *resource.Decoder, fields resource.Fields, key string) (PT, error) {
	v, err := lookup(dec, fields, key)
	if err != nil {
		return nil, err
	}
	r, err := decodeBundled[T, PT](dec, v)
	if err != nil {
		return nil, dec.Fail(key, err)
	}
	return r, nil
}

// DecodeBundledOptional decodes an optional inline child. An explicit null or
// a missing key yields nil.
func DecodeBundledOptional[T any, PT Ptr[T]](dec *resource.Decoder, fields resource.Fields, key string) (PT, error) {
	v, ok := fields.Raw(key)
	if !ok || v == nil {
		return nil, nil
	}
	r, err := decodeBundled[T, PT](dec, v)
	if err != nil {
		return nil, dec.Fail(key, err)
	}
	return r, nil
}

// DecodeBundledSlice decodes a sequence of inline children
func DecodeBundledSlice[T any, PT Ptr[T]](dec *resource.Decoder, fields resource.Fields, key string) ([]PT, error) {
	list, err := fields.List(key)
	if err != nil {
		return nil, dec.Fail(key, err)
	}

	out := make([]PT, len(list))
	for i, v := range list {
		r, err := decodeBundled[T, PT](dec, v)
		if err != nil {
			return nil, dec.Fail(fmt.Sprintf("%s[%d]", key, i), err)
		}
		out[i] = r
	}
	return out, nil
}

// DecodeBundledMap decodes a mapping of inline children
func DecodeBundledMap[T any, PT Ptr[T]](dec *resource.Decoder, fields resource.Fields, key string) (map[string]PT, error) {
	m, err := fields.Map(key)
	if err != nil {
		return nil, dec.Fail(key, err)
	}

	out := make(map[string]PT, len(m))
	for k, v := range m {
		r, err := decodeBundled[T, PT](dec, v)
		if err != nil {
			return nil, dec.Fail(fmt.Sprintf("%s[%q]", key, k), err)
		}
		out[k] = r
	}
	return out, nil
}

// Package ref implements the strategies a resource uses to persist its
// references to other resources.
//
// Bundled references nest the referenced resource's payload inline; the child
// has no file of its own. External references write a descriptor naming the
// class, UID and path of a separately stored resource and resolve it at load
// time, by UID first and by path when the UID is not registered.
//
// The strategy is chosen per field inside EncodeFields/DecodeFields:
//
//	f["blade"], err = ref.Bundled(enc, s.Blade)
//	s.Blade, err = ref.DecodeBundled[Blade](dec, f, "blade")
package ref

import (
	"reflect"

	"github.com/ssargent/respack/pkg/resource"
)

// Ptr constrains a type parameter to *T implementing resource.Resource, so
// decoders can allocate the concrete type.
type Ptr[T any] interface {
	*T
	resource.Resource
}

func isNil(r resource.Resource) bool {
	if r == nil {
		return true
	}
	v := reflect.ValueOf(r)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

func lookup(dec *resource.Decoder, fields resource.Fields, key string) (any, error) {
	v, ok := fields.Raw(key)
	if !ok {
		return nil, dec.Fail(key, resource.ErrMissingField)
	}
	return v, nil
}

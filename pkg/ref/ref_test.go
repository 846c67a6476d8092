package ref

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/respack/pkg/codec"
	"github.com/ssargent/respack/pkg/format"
	"github.com/ssargent/respack/pkg/resource"
	"github.com/ssargent/respack/pkg/uid"
)

type gem struct {
	resource.Base
	Name  string
	Value int64
}

func (g *gem) ClassName() string { return "Gem" }

func (g *gem) EncodeFields(*resource.Encoder) (resource.Fields, error) {
	return resource.Fields{"name": g.Name, "value": g.Value}, nil
}

func (g *gem) DecodeFields(_ *resource.Decoder, f resource.Fields) error {
	var err error
	if g.Name, err = f.String("name"); err != nil {
		return err
	}
	g.Value, err = f.Int("value")
	return err
}

type blank struct{ resource.Base }

func (b *blank) ClassName() string { return "Blank" }

func (b *blank) EncodeFields(*resource.Encoder) (resource.Fields, error) { return nil, nil }

func (b *blank) DecodeFields(*resource.Decoder, resource.Fields) error { return nil }

type fakeLinker struct {
	byUID     map[uid.ID]resource.Resource
	byPath    map[string]resource.Resource
	pathUIDs  map[string]uid.ID
	uidCalls  int
	pathCalls int
}

func newFakeLinker() *fakeLinker {
	return &fakeLinker{
		byUID:    map[uid.ID]resource.Resource{},
		byPath:   map[string]resource.Resource{},
		pathUIDs: map[string]uid.ID{},
	}
}

func (l *fakeLinker) store(r resource.Resource, path string, id uid.ID) {
	r.SetResourcePath(path)
	l.byPath[path] = r
	l.pathUIDs[path] = id
	l.byUID[id] = r
}

func (l *fakeLinker) PathUID(path string) uid.ID {
	if id, ok := l.pathUIDs[path]; ok {
		return id
	}
	return uid.Invalid
}

func (l *fakeLinker) ResolveUID(id uid.ID) (resource.Resource, error) {
	l.uidCalls++
	if r, ok := l.byUID[id]; ok {
		return r, nil
	}
	return nil, uid.ErrNotFound
}

func (l *fakeLinker) ResolvePath(path string) (resource.Resource, error) {
	l.pathCalls++
	if r, ok := l.byPath[path]; ok {
		return r, nil
	}
	return nil, errors.New("no such file")
}

// reencode pushes a tree through a payload codec so decoders see codec output
func reencode(t *testing.T, f format.Format, fields resource.Fields) resource.Fields {
	t.Helper()

	var buf bytes.Buffer
	payload := codec.ForFormat(f)
	require.NoError(t, payload.Encode(&buf, fields))
	out, err := payload.Decode(&buf)
	require.NoError(t, err)
	return out
}

func TestBundledSliceRoundTrip(t *testing.T) {
	gems := []*gem{{Name: "ruby", Value: 3}, {Name: "opal", Value: 1}, {Name: "jade", Value: 2}}

	for _, f := range []format.Format{format.Text, format.Binary} {
		t.Run(f.String(), func(t *testing.T) {
			enc := resource.NewEncoder(nil, "res://pouch.rtxt")
			list, err := BundledSlice(enc, gems)
			require.NoError(t, err)

			tree := reencode(t, f, resource.Fields{"gems": list})

			dec := resource.NewDecoder(nil, "res://pouch.rtxt")
			got, err := DecodeBundledSlice[gem](dec, tree, "gems")
			require.NoError(t, err)
			require.Len(t, got, 3)
			for i := range gems {
				assert.Equal(t, gems[i].Name, got[i].Name)
				assert.Equal(t, gems[i].Value, got[i].Value)
			}
		})
	}
}

func TestBundledMapRoundTrip(t *testing.T) {
	gems := map[string]*gem{"left": {Name: "ruby", Value: 3}, "right": {Name: "opal", Value: 1}}

	enc := resource.NewEncoder(nil, "res://pouch.rbin")
	m, err := BundledMap(enc, gems)
	require.NoError(t, err)

	tree := reencode(t, format.Binary, resource.Fields{"gems": m})

	got, err := DecodeBundledMap[gem](resource.NewDecoder(nil, "res://pouch.rbin"), tree, "gems")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ruby", got["left"].Name)
	assert.Equal(t, int64(1), got["right"].Value)
}

func TestBundledOptional(t *testing.T) {
	for _, f := range []format.Format{format.Text, format.Binary} {
		t.Run(f.String(), func(t *testing.T) {
			enc := resource.NewEncoder(nil, "res://x")

			var missing *blank
			absent, err := BundledOptional(enc, missing)
			require.NoError(t, err)
			assert.Nil(t, absent)

			present, err := BundledOptional(enc, &blank{})
			require.NoError(t, err)
			assert.Equal(t, resource.Fields{}, present)

			tree := reencode(t, f, resource.Fields{"absent": absent, "present": present})
			dec := resource.NewDecoder(nil, "res://x")

			gotAbsent, err := DecodeBundledOptional[blank](dec, tree, "absent")
			require.NoError(t, err)
			assert.Nil(t, gotAbsent)

			gotPresent, err := DecodeBundledOptional[blank](dec, tree, "present")
			require.NoError(t, err)
			assert.NotNil(t, gotPresent)

			_, err = DecodeBundled[blank](dec, tree, "absent")
			assert.True(t, errors.Is(err, resource.ErrNoMeta))
			assert.True(t, errors.Is(err, resource.ErrPayloadDecode))
		})
	}
}

func TestBundledRequiresValue(t *testing.T) {
	var missing *gem
	_, err := Bundled(resource.NewEncoder(nil, "res://x"), missing)
	assert.True(t, errors.Is(err, resource.ErrNoMeta))

	_, err = BundledSlice(resource.NewEncoder(nil, "res://x"), []*gem{{}, nil})
	assert.True(t, errors.Is(err, resource.ErrNoMeta))
}

func TestExternalMapRoundTrip(t *testing.T) {
	linker := newFakeLinker()
	gems := map[string]*gem{
		"a": {Name: "ruby", Value: 3},
		"b": {Name: "opal", Value: 1},
		"c": {Name: "jade", Value: 2},
	}
	linker.store(gems["a"], "res://a.rtxt", 10)
	linker.store(gems["b"], "res://b.rbin", 11)
	linker.store(gems["c"], "res://c.rtxt", 12)

	for _, f := range []format.Format{format.Text, format.Binary} {
		t.Run(f.String(), func(t *testing.T) {
			enc := resource.NewEncoder(linker, "res://pouch.rtxt")
			m, err := ExternalMap(enc, gems)
			require.NoError(t, err)

			tree := reencode(t, f, resource.Fields{"linked": m})

			got, err := DecodeExternalMap[*gem](resource.NewDecoder(linker, "res://pouch.rtxt"), tree, "linked")
			require.NoError(t, err)
			require.Len(t, got, 3)
			for k, want := range gems {
				assert.Same(t, want, got[k])
				assert.Equal(t, want.Name, got[k].Name)
			}
		})
	}
}

func TestExternalWireShape(t *testing.T) {
	linker := newFakeLinker()
	g := &gem{Name: "ruby"}
	linker.store(g, "res://ruby.rtxt", 36)

	v, err := External(resource.NewEncoder(linker, "res://owner.rtxt"), g)
	require.NoError(t, err)
	assert.Equal(t, resource.Fields{
		"ExtResource": resource.Fields{"class": "Gem", "uid": "uid://10", "path": "res://ruby.rtxt"},
	}, v)

	var none *gem
	v, err = ExternalOptional(resource.NewEncoder(linker, "res://owner.rtxt"), none)
	require.NoError(t, err)
	assert.Equal(t, "None", v)
}

func TestExternalUnsaved(t *testing.T) {
	_, err := External(resource.NewEncoder(newFakeLinker(), "res://owner.rtxt"), &gem{})
	assert.True(t, errors.Is(err, resource.ErrUnsavedReference))
}

func TestResolutionOrder(t *testing.T) {
	linker := newFakeLinker()
	moved := &gem{Name: "moved"}
	linker.store(moved, "res://new/place.rtxt", 5)

	dec := resource.NewDecoder(linker, "res://owner.rtxt")

	// registered uid wins over a stale path
	stale := Descriptor{Class: "Gem", UID: uid.ID(5).String(), Path: "res://old/place.rtxt"}
	got, err := DecodeExternal[*gem](dec, resource.Fields{"g": stale.Fields()}, "g")
	require.NoError(t, err)
	assert.Same(t, moved, got)
	assert.Equal(t, 0, linker.pathCalls)

	// unregistered uid falls back to the path
	fallback := Descriptor{Class: "Gem", UID: uid.ID(99).String(), Path: "res://new/place.rtxt"}
	got, err = DecodeExternal[*gem](dec, resource.Fields{"g": fallback.Fields()}, "g")
	require.NoError(t, err)
	assert.Same(t, moved, got)
	assert.Equal(t, 1, linker.pathCalls)

	// neither resolves
	lost := Descriptor{Class: "Gem", UID: uid.ID(99).String(), Path: "res://gone.rtxt"}
	_, err = DecodeExternalOptional[*gem](dec, resource.Fields{"g": lost.Fields()}, "g")
	assert.True(t, errors.Is(err, resource.ErrCannotLoad))
}

func TestExternalNone(t *testing.T) {
	dec := resource.NewDecoder(newFakeLinker(), "res://owner.rtxt")
	tree := resource.Fields{"g": "None"}

	got, err := DecodeExternalOptional[*gem](dec, tree, "g")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = DecodeExternal[*gem](dec, tree, "g")
	assert.True(t, errors.Is(err, resource.ErrNoMeta))
}

func TestExternalWrongType(t *testing.T) {
	linker := newFakeLinker()
	linker.store(&blank{}, "res://blank.rtxt", 1)

	d := Descriptor{Class: "Blank", UID: uid.ID(1).String(), Path: "res://blank.rtxt"}
	_, err := DecodeExternal[*gem](resource.NewDecoder(linker, "res://o"), resource.Fields{"g": d.Fields()}, "g")
	assert.True(t, errors.Is(err, resource.ErrWrongType))
}

func TestExternalCollectionAbortsOnMalformed(t *testing.T) {
	linker := newFakeLinker()
	g := &gem{Name: "ruby"}
	linker.store(g, "res://ruby.rtxt", 1)
	good := Descriptor{Class: "Gem", UID: uid.ID(1).String(), Path: "res://ruby.rtxt"}.Fields()

	testCases := []struct {
		name    string
		element any
	}{
		{"wrong tag", resource.Fields{"Resource": resource.Fields{"class": "Gem"}}},
		{"none", "None"},
		{"scalar", 7},
		{"missing path", resource.Fields{"ExtResource": resource.Fields{"class": "Gem", "uid": "uid://1"}}},
	}

	dec := resource.NewDecoder(linker, "res://o")
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tree := resource.Fields{
				"list": []any{good, tc.element, good},
				"map":  resource.Fields{"a": good, "b": tc.element},
			}

			list, err := DecodeExternalSlice[*gem](dec, tree, "list")
			assert.Error(t, err)
			assert.Nil(t, list)

			m, err := DecodeExternalMap[*gem](dec, tree, "map")
			assert.Error(t, err)
			assert.Nil(t, m)
		})
	}
}

func TestExternalSliceOrder(t *testing.T) {
	linker := newFakeLinker()
	gems := []*gem{{Name: "a"}, {Name: "b"}, {Name: "c"}}
	for i, g := range gems {
		linker.store(g, "res://"+g.Name+".rbin", uid.ID(i+1))
	}

	list, err := ExternalSlice(resource.NewEncoder(linker, "res://o"), gems)
	require.NoError(t, err)

	tree := reencode(t, format.Text, resource.Fields{"list": list})
	got, err := DecodeExternalSlice[*gem](resource.NewDecoder(linker, "res://o"), tree, "list")
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i := range gems {
		assert.Same(t, gems[i], got[i])
	}
}

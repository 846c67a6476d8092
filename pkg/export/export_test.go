package export

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/respack/pkg/catalog"
	"github.com/ssargent/respack/pkg/codec"
	"github.com/ssargent/respack/pkg/format"
	"github.com/ssargent/respack/pkg/header"
	"github.com/ssargent/respack/pkg/metrics"
	"github.com/ssargent/respack/pkg/ref"
	"github.com/ssargent/respack/pkg/resource"
	"github.com/ssargent/respack/pkg/store"
	"github.com/ssargent/respack/pkg/uid"
)

var errRefused = errors.New("registry refused")

// refusingRegistry fails every Set to one path
type refusingRegistry struct {
	uid.Registry
	refuse string
}

func (r *refusingRegistry) Set(id uid.ID, path string) error {
	if path == r.refuse {
		return errRefused
	}
	return r.Registry.Set(id, path)
}

type env struct {
	store    *store.Store
	uids     uid.Registry
	remapper *Remapper
	root     string
}

func setup(t *testing.T, uids uid.Registry, m *metrics.Metrics) *env {
	t.Helper()
	if uids == nil {
		uids = uid.NewMemoryRegistry()
	}

	root := t.TempDir()
	s, err := store.New(store.Config{
		FS:      store.NewOSFileSystem(root),
		UIDs:    uids,
		Classes: catalog.NewRegistry(),
		Metrics: m,
	})
	require.NoError(t, err)

	return &env{store: s, uids: uids, remapper: NewRemapper(s), root: root}
}

func (e *env) save(t *testing.T, name, path string) uid.ID {
	t.Helper()
	item := &catalog.Item{Name: name, Weight: 2, Count: 1, Tags: []string{name}, Icon: []byte{1}}
	require.NoError(t, e.store.Save(item, path))
	id, err := e.store.GetUID(path)
	require.NoError(t, err)
	return id
}

func (e *env) exists(path string) bool {
	_, err := os.Stat(filepath.Join(e.root, path[len(store.Scheme):]))
	return err == nil
}

func TestExportRollback(t *testing.T) {
	e := setup(t, nil, nil)
	id := e.save(t, "sword", "res://items/sword.rtxt")

	e.remapper.Begin()
	assert.Equal(t, Collecting, e.remapper.State())
	assert.NotEmpty(t, e.remapper.Session())

	artifact, err := e.remapper.Process("res://items/sword.rtxt")
	require.NoError(t, err)
	assert.Equal(t, "res://items/sword_text_remap.rbin", artifact.Path)
	assert.Equal(t, "items/sword_text_remap.rbin", artifact.Name())

	// during the session the uid points at the artifact
	bound, ok := e.uids.Path(id)
	require.True(t, ok)
	assert.Equal(t, artifact.Path, bound)
	assert.True(t, e.exists(artifact.Path))

	h, _, err := header.ForFormat(format.Binary).Read(bufio.NewReader(bytes.NewReader(artifact.Data)))
	require.NoError(t, err)
	assert.Equal(t, catalog.ClassItem, h.Class)
	assert.Equal(t, id.String(), h.UID)

	loaded, err := e.store.Load(artifact.Path)
	require.NoError(t, err)
	assert.Equal(t, "sword", loaded.(*catalog.Item).Name)

	entries := e.remapper.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, RemapEntry{Source: "res://items/sword.rtxt", Derived: artifact.Path, UID: id}, entries[0])

	require.NoError(t, e.remapper.End())

	bound, ok = e.uids.Path(id)
	require.True(t, ok)
	assert.Equal(t, "res://items/sword.rtxt", bound)
	assert.False(t, e.exists(artifact.Path))
	assert.Empty(t, e.remapper.Entries())
	assert.Equal(t, Idle, e.remapper.State())
}

func TestExportExternalReferences(t *testing.T) {
	e := setup(t, nil, nil)
	swordID := e.save(t, "sword", "res://a.rtxt")
	sword, err := e.store.Load("res://a.rtxt")
	require.NoError(t, err)

	kit := &catalog.Loadout{Name: "kit", Primary: sword.(*catalog.Item), Pack: []*catalog.Item{sword.(*catalog.Item)}}
	require.NoError(t, e.store.Save(kit, "res://b.rtxt"))
	kitID, err := e.store.GetUID("res://b.rtxt")
	require.NoError(t, err)
	_, err = e.store.ResolvePath("res://b.rtxt")
	require.NoError(t, err)

	e.remapper.Begin()
	_, err = e.remapper.Process("res://a.rtxt")
	require.NoError(t, err)
	artifact, err := e.remapper.Process("res://b.rtxt")
	require.NoError(t, err)

	// the shipped descriptor names the sword by uid and artifact path
	r := bufio.NewReader(bytes.NewReader(artifact.Data))
	_, _, err = header.ForFormat(format.Binary).Read(r)
	require.NoError(t, err)
	fields, err := codec.Binary{}.Decode(r)
	require.NoError(t, err)
	d, none, err := ref.ParseDescriptor(fields["primary"])
	require.NoError(t, err)
	require.False(t, none)
	assert.Equal(t, swordID.String(), d.UID)
	assert.Equal(t, "res://a_text_remap.rbin", d.Path)

	shipped, err := e.store.Load(artifact.Path)
	require.NoError(t, err)
	assert.Equal(t, "res://a_text_remap.rbin", shipped.(*catalog.Loadout).Primary.ResourcePath())

	require.NoError(t, e.remapper.End())

	bound, _ := e.uids.Path(swordID)
	assert.Equal(t, "res://a.rtxt", bound)
	bound, _ = e.uids.Path(kitID)
	assert.Equal(t, "res://b.rtxt", bound)
	assert.False(t, e.store.Cached("res://b.rtxt"))
	assert.False(t, e.store.Cached("res://a_text_remap.rbin"))

	resolved, err := e.store.ResolvePath("res://b.rtxt")
	require.NoError(t, err)
	after := resolved.(*catalog.Loadout)
	assert.Equal(t, "res://a.rtxt", after.Primary.ResourcePath())
	assert.Same(t, after.Primary, after.Pack[0])

	// saving after the session keeps b loadable
	require.NoError(t, e.store.Save(after, "res://b.rtxt"))
	e.store.Forget("res://b.rtxt")
	reloaded, err := e.store.Load("res://b.rtxt")
	require.NoError(t, err)
	assert.Equal(t, "res://a.rtxt", reloaded.(*catalog.Loadout).Primary.ResourcePath())
	assert.Equal(t, "sword", reloaded.(*catalog.Loadout).Primary.Name)
}

func TestExportBinaryPassthrough(t *testing.T) {
	e := setup(t, nil, nil)
	id := e.save(t, "shield", "res://shield.rbin")

	raw, err := os.ReadFile(filepath.Join(e.root, "shield.rbin"))
	require.NoError(t, err)

	e.remapper.Begin()
	artifact, err := e.remapper.Process("res://shield.rbin")
	require.NoError(t, err)
	assert.Equal(t, raw, artifact.Data)
	assert.Equal(t, "res://shield.rbin", artifact.Path)
	assert.Empty(t, e.remapper.Entries())

	require.NoError(t, e.remapper.End())
	bound, _ := e.uids.Path(id)
	assert.Equal(t, "res://shield.rbin", bound)
	assert.True(t, e.exists("res://shield.rbin"))
}

func TestExportOutsideSession(t *testing.T) {
	e := setup(t, nil, nil)
	e.save(t, "sword", "res://sword.rtxt")

	_, err := e.remapper.Process("res://sword.rtxt")
	assert.ErrorIs(t, err, ErrNoSession)
	assert.ErrorIs(t, e.remapper.End(), ErrNoSession)
	assert.False(t, e.exists("res://sword_text_remap.rbin"))
}

func TestExportUnsupportedFormat(t *testing.T) {
	e := setup(t, nil, nil)
	e.remapper.Begin()
	defer e.remapper.End()

	_, err := e.remapper.Process("res://notes.txt")
	assert.ErrorIs(t, err, resource.ErrUnsupportedFormat)
	assert.Empty(t, e.remapper.Entries())
}

func TestExportProcessTwice(t *testing.T) {
	e := setup(t, nil, nil)
	e.save(t, "sword", "res://sword.rtxt")

	e.remapper.Begin()
	first, err := e.remapper.Process("res://sword.rtxt")
	require.NoError(t, err)
	second, err := e.remapper.Process("res://sword.rtxt")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, e.remapper.Entries(), 1)
	require.NoError(t, e.remapper.End())
}

func TestExportEndContinuesPastFailures(t *testing.T) {
	uids := &refusingRegistry{Registry: uid.NewMemoryRegistry(), refuse: "res://a.rtxt"}
	e := setup(t, uids, nil)
	idA := e.save(t, "a", "res://a.rtxt")
	idB := e.save(t, "b", "res://b.rtxt")

	e.remapper.Begin()
	_, err := e.remapper.Process("res://a.rtxt")
	require.NoError(t, err)
	_, err = e.remapper.Process("res://b.rtxt")
	require.NoError(t, err)

	err = e.remapper.End()
	require.Error(t, err)
	assert.ErrorIs(t, err, errRefused)

	// the failed entry does not stop the rest of the revert
	bound, _ := uids.Path(idB)
	assert.Equal(t, "res://b.rtxt", bound)
	bound, _ = uids.Path(idA)
	assert.Equal(t, "res://a_text_remap.rbin", bound)

	assert.False(t, e.exists("res://a_text_remap.rbin"))
	assert.False(t, e.exists("res://b_text_remap.rbin"))
	assert.Empty(t, e.remapper.Entries())
	assert.Equal(t, Idle, e.remapper.State())
}

func TestBeginRevertsLeftovers(t *testing.T) {
	e := setup(t, nil, nil)
	id := e.save(t, "sword", "res://sword.rtxt")

	e.remapper.Begin()
	_, err := e.remapper.Process("res://sword.rtxt")
	require.NoError(t, err)
	first := e.remapper.Session()

	e.remapper.Begin()
	assert.NotEqual(t, first, e.remapper.Session())
	assert.Empty(t, e.remapper.Entries())
	assert.Equal(t, Collecting, e.remapper.State())

	bound, _ := e.uids.Path(id)
	assert.Equal(t, "res://sword.rtxt", bound)
	assert.False(t, e.exists("res://sword_text_remap.rbin"))

	require.NoError(t, e.remapper.End())
}

func TestExportMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	e := setup(t, nil, m)
	e.save(t, "a", "res://a.rtxt")
	e.save(t, "b", "res://b.rtxt")

	active := m.RemapsActive()
	e.remapper.Begin()
	_, err := e.remapper.Process("res://a.rtxt")
	require.NoError(t, err)
	_, err = e.remapper.Process("res://b.rtxt")
	require.NoError(t, err)
	assert.Equal(t, 2.0, testutil.ToFloat64(active))

	require.NoError(t, e.remapper.End())
	assert.Equal(t, 0.0, testutil.ToFloat64(active))
}

func TestRunDirSink(t *testing.T) {
	e := setup(t, nil, nil)
	id := e.save(t, "sword", "res://items/sword.rtxt")
	e.save(t, "shield", "res://items/shield.rbin")

	out := t.TempDir()
	err := e.remapper.Run(context.Background(), []string{"res://items/sword.rtxt", "res://items/shield.rbin"}, NewDirSink(out))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(out, "items", "sword_text_remap.rbin"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(out, "items", "shield.rbin"))
	assert.NoError(t, err)

	bound, _ := e.uids.Path(id)
	assert.Equal(t, "res://items/sword.rtxt", bound)
	assert.False(t, e.exists("res://items/sword_text_remap.rbin"))
	assert.Equal(t, Idle, e.remapper.State())
}

func TestRunArchiveSink(t *testing.T) {
	e := setup(t, nil, nil)
	e.save(t, "sword", "res://sword.rtxt")
	e.save(t, "shield", "res://shield.rbin")

	var buf bytes.Buffer
	sink, err := NewArchiveSink(&buf)
	require.NoError(t, err)
	require.NoError(t, e.remapper.Run(context.Background(), []string{"res://sword.rtxt", "res://shield.rbin"}, sink))

	dec, err := zstd.NewReader(&buf)
	require.NoError(t, err)
	defer dec.Close()

	var names []string
	tr := tar.NewReader(dec)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, hdr.Name)

		data, err := io.ReadAll(tr)
		require.NoError(t, err)
		assert.Equal(t, hdr.Size, int64(len(data)))
	}
	sort.Strings(names)
	assert.Equal(t, []string{"shield.rbin", "sword_text_remap.rbin"}, names)
}

func TestRunEndsSessionOnFailure(t *testing.T) {
	e := setup(t, nil, nil)
	id := e.save(t, "sword", "res://sword.rtxt")

	err := e.remapper.Run(context.Background(), []string{"res://sword.rtxt", "res://missing.rtxt"}, NewDirSink(t.TempDir()))
	require.Error(t, err)
	assert.ErrorIs(t, err, resource.ErrOpenFileRead)

	bound, _ := e.uids.Path(id)
	assert.Equal(t, "res://sword.rtxt", bound)
	assert.False(t, e.exists("res://sword_text_remap.rbin"))
	assert.Equal(t, Idle, e.remapper.State())
}

// closeTracker records whether the sink was closed
type closeTracker struct {
	Sink
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return c.Sink.Close()
}

func TestRunClosesSinkOnFailure(t *testing.T) {
	e := setup(t, nil, nil)
	e.save(t, "sword", "res://sword.rtxt")

	var buf bytes.Buffer
	archive, err := NewArchiveSink(&buf)
	require.NoError(t, err)
	sink := &closeTracker{Sink: archive}

	err = e.remapper.Run(context.Background(), []string{"res://sword.rtxt", "res://missing.rtxt"}, sink)
	assert.ErrorIs(t, err, resource.ErrOpenFileRead)
	assert.True(t, sink.closed)
}

func TestRunCancelled(t *testing.T) {
	e := setup(t, nil, nil)
	e.save(t, "sword", "res://sword.rtxt")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.remapper.Run(ctx, []string{"res://sword.rtxt"}, NewDirSink(t.TempDir()))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, e.remapper.Entries())
}

func TestNewS3SinkValidation(t *testing.T) {
	_, err := NewS3Sink(S3Config{})
	assert.Error(t, err)

	_, err = NewS3Sink(S3Config{Endpoint: "localhost:9000", Bucket: "b"})
	assert.Error(t, err)

	sink, err := NewS3Sink(S3Config{
		Endpoint:  "localhost:9000",
		AccessKey: "key",
		SecretKey: "secret",
		Bucket:    "exports",
		Prefix:    "/session/",
	})
	require.NoError(t, err)
	assert.Equal(t, "session/items/a.rbin", sink.Key(Artifact{Path: "res://items/a.rbin"}))
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{
		"items/sword.rtxt",
		"items/sword_text_remap.rbin",
		"build/shield.rbin",
		"notes.txt",
		".respack/uids/cache.rtxt",
		"a.rtxt",
	} {
		full := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0750))
		require.NoError(t, os.WriteFile(full, nil, 0644))
	}

	paths, err := Discover(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"res://a.rtxt", "res://build/shield.rbin", "res://items/sword.rtxt"}, paths)

	_, err = Discover(filepath.Join(root, "missing"))
	assert.Error(t, err)
}

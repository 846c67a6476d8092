package store

import (
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ssargent/respack/pkg/catalog"
	"github.com/ssargent/respack/pkg/uid"
)

// trackingFS counts open handles so tests can assert every one is released
type trackingFS struct {
	FileSystem
	mutex     sync.Mutex
	open      int
	failWrite bool
	failOpen  bool
}

var errInjected = errors.New("injected failure")

type trackedReader struct {
	io.ReadCloser
	fs *trackingFS
}

func (r *trackedReader) Close() error {
	r.fs.release()
	return r.ReadCloser.Close()
}

type trackedWriter struct {
	io.WriteCloser
	fs   *trackingFS
	fail bool
}

func (w *trackedWriter) Write(p []byte) (int, error) {
	if w.fail {
		// Simulate a partial write
		n, _ := w.WriteCloser.Write(p[:len(p)/2])
		return n, errInjected
	}
	return w.WriteCloser.Write(p)
}

func (w *trackedWriter) Close() error {
	w.fs.release()
	return w.WriteCloser.Close()
}

func (t *trackingFS) acquire() {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.open++
}

func (t *trackingFS) release() {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.open--
}

func (t *trackingFS) handles() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.open
}

func (t *trackingFS) Open(path string) (io.ReadCloser, error) {
	if t.failOpen {
		return nil, errInjected
	}
	r, err := t.FileSystem.Open(path)
	if err != nil {
		return nil, err
	}
	t.acquire()
	return &trackedReader{ReadCloser: r, fs: t}, nil
}

func (t *trackingFS) Create(path string) (io.WriteCloser, error) {
	w, err := t.FileSystem.Create(path)
	if err != nil {
		return nil, err
	}
	t.acquire()
	return &trackedWriter{WriteCloser: w, fs: t, fail: t.failWrite}, nil
}

type fixture struct {
	store *Store
	fs    *trackingFS
	uids  *uid.MemoryRegistry
	root  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	root := t.TempDir()
	tfs := &trackingFS{FileSystem: NewOSFileSystem(root)}
	uids := uid.NewMemoryRegistry()

	s, err := New(Config{FS: tfs, UIDs: uids, Classes: catalog.NewRegistry()})
	require.NoError(t, err)

	t.Cleanup(func() {
		if n := tfs.handles(); n != 0 {
			t.Errorf("%d file handles left open", n)
		}
	})

	return &fixture{store: s, fs: tfs, uids: uids, root: root}
}

// reopen builds a second store over the same files with a fresh registry,
// as after a registry wipe
func (f *fixture) reopen(t *testing.T) *fixture {
	t.Helper()

	uids := uid.NewMemoryRegistry()
	s, err := New(Config{FS: f.fs, UIDs: uids, Classes: catalog.NewRegistry()})
	require.NoError(t, err)
	return &fixture{store: s, fs: f.fs, uids: uids, root: f.root}
}

func sampleItem(name string) *catalog.Item {
	return &catalog.Item{
		Name:   name,
		Weight: 1.5,
		Count:  3,
		Tags:   []string{"sharp", name},
		Icon:   []byte{0x89, 'P', 'N', 'G'},
	}
}

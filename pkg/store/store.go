// Package store is the persistence core: it frames resources into text and
// binary containers, keeps the UID registry consistent across saves, loads
// and UID changes, and resolves external references for the payload decoders.
//
// The store assumes a single writer. The registry serializes its own
// mutations, but a save spanning header read, file write and registry commit
// is not atomic; concurrent saves to one path are a caller error.
package store

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ssargent/respack/pkg/codec"
	"github.com/ssargent/respack/pkg/format"
	"github.com/ssargent/respack/pkg/header"
	"github.com/ssargent/respack/pkg/metrics"
	"github.com/ssargent/respack/pkg/resource"
	"github.com/ssargent/respack/pkg/uid"
)

// Store reads and writes resource containers
type Store struct {
	fs      FileSystem
	uids    uid.Registry
	classes *resource.Registry
	cache   *resourceCache
	logger  *slog.Logger
	metrics *metrics.Metrics

	loading map[string]struct{} // paths being decoded, for cycle detection
	mutex   sync.Mutex
}

// New creates a store over the given collaborators
func New(config Config) (*Store, error) {
	if config.FS == nil {
		return nil, errors.New("store: filesystem is required")
	}
	if config.UIDs == nil {
		return nil, errors.New("store: uid registry is required")
	}
	if config.Classes == nil {
		return nil, errors.New("store: class registry is required")
	}

	cache, err := newResourceCache(config.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("store: failed to create cache: %w", err)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		fs:      config.FS,
		uids:    config.UIDs,
		classes: config.Classes,
		cache:   cache,
		logger:  logger,
		metrics: config.Metrics,
		loading: make(map[string]struct{}),
	}, nil
}

// UIDs returns the registry the store commits to
func (s *Store) UIDs() uid.Registry {
	return s.uids
}

// Classes returns the class dispatch table
func (s *Store) Classes() *resource.Registry {
	return s.classes
}

// FS returns the underlying filesystem
func (s *Store) FS() FileSystem {
	return s.fs
}

// Logger returns the store logger
func (s *Store) Logger() *slog.Logger {
	return s.logger
}

// Metrics returns the store metrics, possibly nil
func (s *Store) Metrics() *metrics.Metrics {
	return s.metrics
}

// annotate attaches op and path to errors raised below the store
func annotate(op, path string, err error) error {
	if re, ok := err.(*resource.Error); ok && re.Path == "" {
		annotated := *re
		annotated.Op = op
		annotated.Path = path
		return &annotated
	}
	return fmt.Errorf("%s %s: %w", op, path, err)
}

func classify(op, path string) (format.Format, error) {
	f := format.Classify(path)
	if f == format.Unknown {
		return f, resource.Errorf(op, path, resource.ErrUnsupportedFormat, "recognized extensions are %v", format.Extensions())
	}
	return f, nil
}

// readFile returns the whole container at path
func (s *Store) readFile(op, path string) ([]byte, error) {
	file, err := s.fs.Open(path)
	if err != nil {
		return nil, resource.Wrap(op, path, resource.ErrOpenFileRead, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, resource.Wrap(op, path, resource.ErrFileRead, err)
	}
	return data, nil
}

// writeFile replaces the container at path with data
func (s *Store) writeFile(op, path string, data []byte) (err error) {
	file, err := s.fs.Create(path)
	if err != nil {
		return resource.Wrap(op, path, resource.ErrOpenFileWrite, err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = resource.Wrap(op, path, resource.ErrFileWrite, closeErr)
		}
	}()

	if _, err := file.Write(data); err != nil {
		return resource.Wrap(op, path, resource.ErrFileWrite, err)
	}
	return nil
}

// readHeader reads only the header of the container at path
func (s *Store) readHeader(op, path string) (header.Header, error) {
	f, err := classify(op, path)
	if err != nil {
		return header.Header{}, err
	}

	file, err := s.fs.Open(path)
	if err != nil {
		return header.Header{}, resource.Wrap(op, path, resource.ErrOpenFileRead, err)
	}
	defer file.Close()

	h, _, err := header.ForFormat(f).Read(bufio.NewReader(file))
	if err != nil {
		return header.Header{}, annotate(op, path, err)
	}
	return h, nil
}

// GetUID returns the UID recorded in the header of path
func (s *Store) GetUID(path string) (uid.ID, error) {
	h, err := s.readHeader("get uid", path)
	if err != nil {
		return uid.Invalid, err
	}
	return uid.FromText(h.UID), nil
}

// GetClass returns the class recorded in the header of path
func (s *Store) GetClass(path string) (string, error) {
	h, err := s.readHeader("get class", path)
	if err != nil {
		return "", err
	}
	return h.Class, nil
}

// Exists reports whether a container is present at path
func (s *Store) Exists(path string) bool {
	_, err := s.fs.Stat(path)
	return err == nil
}

// ReadRaw returns the bytes of the container at path, unparsed
func (s *Store) ReadRaw(path string) ([]byte, error) {
	if _, err := classify("read", path); err != nil {
		return nil, err
	}
	return s.readFile("read", path)
}

// WriteRaw replaces the container at path with data as-is. The registry is
// not touched.
func (s *Store) WriteRaw(path string, data []byte) error {
	if _, err := classify("write", path); err != nil {
		return err
	}
	return s.writeFile("write", path, data)
}

// Encode renders r as a complete container of format f carrying id in its
// header. Nothing is written and the registry is not touched.
func (s *Store) Encode(r resource.Resource, f format.Format, id uid.ID) ([]byte, error) {
	return s.encode("encode", r, r.ResourcePath(), f, id)
}

func (s *Store) encode(op string, r resource.Resource, path string, f format.Format, id uid.ID) ([]byte, error) {
	hc, pc := header.ForFormat(f), codec.ForFormat(f)
	if hc == nil || pc == nil {
		return nil, resource.Errorf(op, path, resource.ErrUnsupportedFormat, "format %s", f)
	}

	fields, err := r.EncodeFields(resource.NewEncoder(s, path))
	if err != nil {
		return nil, resource.Wrap(op, path, resource.ErrPayloadEncode, err)
	}

	var buf bytes.Buffer
	if _, err := hc.Write(&buf, header.Header{Class: r.ClassName(), UID: id.String()}); err != nil {
		return nil, annotate(op, path, err)
	}
	if err := pc.Encode(&buf, fields); err != nil {
		return nil, annotate(op, path, err)
	}
	return buf.Bytes(), nil
}

// saveUID picks the UID a save to path writes: the one already in the file,
// unless it is unassigned or bound to another path.
func (s *Store) saveUID(path string) (uid.ID, error) {
	id := uid.Invalid
	if h, err := s.readHeader("save", path); err == nil {
		id = uid.FromText(h.UID)
	}

	if id.Valid() {
		bound, registered := s.uids.Path(id)
		if !registered || bound == path {
			return id, nil
		}
		s.logger.Info("uid in destination is bound elsewhere, allocating a new one",
			"path", path, "uid", id.String(), "bound_to", bound)
	}

	id, err := s.uids.Create()
	if err != nil {
		return uid.Invalid, fmt.Errorf("save %s: %w", path, err)
	}
	return id, nil
}

// Save writes r to path in the format implied by its extension. The registry
// is only updated after the file has been written in full.
func (s *Store) Save(r resource.Resource, path string) (err error) {
	start := time.Now()
	f := format.Classify(path)
	defer func() {
		s.metrics.RecordOperation("save", f.String(), err, time.Since(start))
	}()

	if _, err := classify("save", path); err != nil {
		return err
	}

	id, err := s.saveUID(path)
	if err != nil {
		return err
	}

	data, err := s.encode("save", r, path, f, id)
	if err != nil {
		return err
	}

	if err := s.writeFile("save", path, data); err != nil {
		s.logger.Error("failed to write resource", "path", path, "error", err)
		return err
	}

	if err := uid.Bind(s.uids, id, path); err != nil {
		return fmt.Errorf("save %s: commit %s: %w", path, id, err)
	}
	s.metrics.RecordRebind(metrics.ReasonSave)

	if previous := r.ResourcePath(); previous != "" && previous != path {
		s.cache.evictIf(previous, r)
	}
	r.SetResourcePath(path)
	s.cache.put(path, r)
	return nil
}

func (s *Store) enter(path string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, busy := s.loading[path]; busy {
		return false
	}
	s.loading[path] = struct{}{}
	return true
}

func (s *Store) leave(path string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.loading, path)
}

// Load reads the container at path, always from disk, and self-heals the
// registry entry of its UID. A failed load leaves the registry untouched.
func (s *Store) Load(path string) (res resource.Resource, err error) {
	start := time.Now()
	f := format.Classify(path)
	defer func() {
		s.metrics.RecordOperation("load", f.String(), err, time.Since(start))
	}()

	if _, err := classify("load", path); err != nil {
		return nil, err
	}

	if !s.enter(path) {
		return nil, resource.Errorf("load", path, resource.ErrCyclicReference, "already being loaded")
	}
	defer s.leave(path)

	file, err := s.fs.Open(path)
	if err != nil {
		return nil, resource.Wrap("load", path, resource.ErrOpenFileRead, err)
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	h, _, err := header.ForFormat(f).Read(reader)
	if err != nil {
		return nil, annotate("load", path, err)
	}

	r, err := s.classes.New(h.Class)
	if err != nil {
		return nil, annotate("load", path, err)
	}

	fields, err := codec.ForFormat(f).Decode(reader)
	if err != nil {
		return nil, annotate("load", path, err)
	}

	if err := r.DecodeFields(resource.NewDecoder(s, path), fields); err != nil {
		if errors.Is(err, resource.ErrPayloadDecode) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		return nil, resource.Wrap("load", path, resource.ErrPayloadDecode, err)
	}
	r.SetResourcePath(path)

	s.heal(uid.FromText(h.UID), path)
	s.cache.put(path, r)
	return r, nil
}

// LoadAs loads path and fails with ErrWrongType unless its header names class
func (s *Store) LoadAs(path, class string) (resource.Resource, error) {
	actual, err := s.GetClass(path)
	if err != nil {
		return nil, err
	}
	if actual != class {
		return nil, resource.Errorf("load", path, resource.ErrWrongType, "file holds %q, want %q", actual, class)
	}
	return s.Load(path)
}

// heal binds id to path after a successful read
func (s *Store) heal(id uid.ID, path string) {
	if !id.Valid() {
		return
	}

	bound, registered := s.uids.Path(id)
	if registered && bound == path {
		return
	}

	if err := uid.Bind(s.uids, id, path); err != nil {
		s.logger.Warn("failed to bind uid on load", "path", path, "uid", id.String(), "error", err)
		return
	}
	s.metrics.RecordRebind(metrics.ReasonLoad)

	if registered {
		s.logger.Warn("uid rebound on load", "uid", id.String(), "from", bound, "to", path)
	} else {
		s.logger.Debug("uid registered on load", "uid", id.String(), "path", path)
	}
}

// SetUID rewrites the header of path to carry id, keeping the payload bytes.
// It fails with ErrAlreadyExists when id is bound to another path.
func (s *Store) SetUID(path string, id uid.ID) (err error) {
	start := time.Now()
	f := format.Classify(path)
	defer func() {
		s.metrics.RecordOperation("set_uid", f.String(), err, time.Since(start))
	}()

	if _, err := classify("set uid", path); err != nil {
		return err
	}
	if !id.Valid() {
		return fmt.Errorf("set uid %s: %w", path, uid.ErrInvalidID)
	}

	data, err := s.readFile("set uid", path)
	if err != nil {
		return err
	}

	hc := header.ForFormat(f)
	h, n, err := hc.Read(bufio.NewReader(bytes.NewReader(data)))
	if err != nil {
		return annotate("set uid", path, err)
	}
	old := uid.FromText(h.UID)

	registered := s.uids.Has(id)
	if registered {
		if bound, _ := s.uids.Path(id); bound != path {
			s.logger.Error("uid already bound to another resource", "uid", id.String(), "path", path, "bound_to", bound)
			return resource.Errorf("set uid", path, resource.ErrAlreadyExists, "%s is bound to %s", id, bound)
		}
	}

	h.UID = id.String()
	var buf bytes.Buffer
	if _, err := hc.Write(&buf, h); err != nil {
		return annotate("set uid", path, err)
	}
	buf.Write(data[n:])

	if err := s.writeFile("set uid", path, buf.Bytes()); err != nil {
		return err
	}

	if old.Valid() && old != id {
		if bound, ok := s.uids.Path(old); ok && bound == path {
			if err := s.uids.Remove(old); err != nil {
				s.logger.Warn("failed to drop previous uid", "uid", old.String(), "error", err)
			}
		}
	}

	if registered {
		err = s.uids.Set(id, path)
	} else {
		err = s.uids.Add(id, path)
	}
	if err != nil {
		return fmt.Errorf("set uid %s: commit %s: %w", path, id, err)
	}
	s.metrics.RecordRebind(metrics.ReasonSetUID)
	return nil
}

// Convert loads src and saves it to dst. The formats may differ.
func (s *Store) Convert(src, dst string) error {
	r, err := s.Load(src)
	if err != nil {
		return err
	}
	if err := s.Save(r, dst); err != nil {
		return err
	}
	return nil
}

// Remove deletes the container at path and drops its UID when the registry
// still points at path
func (s *Store) Remove(path string) error {
	id, _ := s.GetUID(path)

	if err := s.fs.Remove(path); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	s.cache.evict(path)

	if id.Valid() {
		if bound, ok := s.uids.Path(id); ok && bound == path {
			if err := s.uids.Remove(id); err != nil {
				return fmt.Errorf("remove %s: drop %s: %w", path, id, err)
			}
		}
	}
	return nil
}

// Forget drops path from the instance cache so the next resolution reloads it
func (s *Store) Forget(path string) {
	s.cache.evict(path)
}

// Purge drops every cached instance. Instances resolved while UIDs were
// redirected keep references to the redirect targets.
func (s *Store) Purge() {
	s.cache.purge()
}

// Cached reports whether path holds a cached instance
func (s *Store) Cached(path string) bool {
	_, ok := s.cache.entries.Peek(path)
	return ok
}

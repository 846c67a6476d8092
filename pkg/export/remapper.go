// Package export produces the binary artifacts shipped in an export package.
//
// A Remapper session redirects the UID of every text source it processes to
// the derived binary artifact, so anything resolving by UID during the
// session sees the artifact. End reverts every redirect and deletes the
// artifacts, continuing past individual failures.
package export

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"sync"

	"github.com/segmentio/ksuid"

	"github.com/ssargent/respack/pkg/format"
	"github.com/ssargent/respack/pkg/metrics"
	"github.com/ssargent/respack/pkg/resource"
	"github.com/ssargent/respack/pkg/store"
	"github.com/ssargent/respack/pkg/uid"
)

// ErrNoSession is returned by Process and End outside a session
var ErrNoSession = errors.New("no export session")

// State of a Remapper
type State int

const (
	Idle State = iota
	Collecting
	Reverting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Collecting:
		return "collecting"
	case Reverting:
		return "reverting"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// RemapEntry records one UID redirected from a text source to its artifact
type RemapEntry struct {
	Source  string
	Derived string
	UID     uid.ID
}

// Artifact is one file of the export package
type Artifact struct {
	Source string
	Path   string
	Data   []byte
}

// Name is the artifact path relative to the project root
func (a Artifact) Name() string {
	return strings.TrimPrefix(a.Path, store.Scheme)
}

// Remapper is the export state machine. At most one session is active.
type Remapper struct {
	store   *store.Store
	logger  *slog.Logger
	metrics *metrics.Metrics

	state   State
	session ksuid.KSUID
	entries []RemapEntry
	mutex   sync.Mutex
}

// NewRemapper creates an idle remapper over s, sharing its logger and metrics
func NewRemapper(s *store.Store) *Remapper {
	return &Remapper{
		store:   s,
		logger:  s.Logger(),
		metrics: s.Metrics(),
	}
}

// State returns the current state
func (r *Remapper) State() State {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.state
}

// Session returns the id of the current or last session, empty before the
// first Begin
func (r *Remapper) Session() string {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.session == ksuid.Nil {
		return ""
	}
	return r.session.String()
}

// Entries returns a snapshot of the pending redirects
func (r *Remapper) Entries() []RemapEntry {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	out := make([]RemapEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Begin starts a session. Entries left by a session that never ended are
// reverted first.
func (r *Remapper) Begin() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if len(r.entries) > 0 {
		r.logger.Warn("reverting entries of an unfinished export session",
			"session", r.session.String(), "entries", len(r.entries))
		if err := r.revert(); err != nil {
			r.logger.Warn("leftover revert incomplete", "session", r.session.String(), "error", err)
		}
	}

	r.store.Purge()
	r.session = ksuid.New()
	r.state = Collecting
	r.logger.Info("export session started", "session", r.session.String())
}

// Process returns the artifact exported for path. Text sources are encoded to
// their derived binary path with the UID redirected there; binary sources are
// returned as-is.
func (r *Remapper) Process(path string) (Artifact, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.state != Collecting {
		return Artifact{}, fmt.Errorf("process %s: %w", path, ErrNoSession)
	}

	switch format.Classify(path) {
	case format.Binary:
		data, err := r.store.ReadRaw(path)
		if err != nil {
			return Artifact{}, err
		}
		return Artifact{Source: path, Path: path, Data: data}, nil
	case format.Text:
		return r.remap(path)
	default:
		return Artifact{}, resource.Errorf("export", path, resource.ErrUnsupportedFormat,
			"recognized extensions are %v", format.Extensions())
	}
}

func (r *Remapper) remap(source string) (Artifact, error) {
	derived := format.DerivedBinaryPath(source)

	for _, e := range r.entries {
		if e.Source == source {
			data, err := r.store.ReadRaw(derived)
			if err != nil {
				return Artifact{}, err
			}
			return Artifact{Source: source, Path: derived, Data: data}, nil
		}
	}

	// load before redirecting, loading heals the uid back to the source
	res, err := r.store.Load(source)
	if err != nil {
		return Artifact{}, err
	}
	id, err := r.store.GetUID(source)
	if err != nil {
		return Artifact{}, err
	}

	if id.Valid() {
		if err := uid.Bind(r.store.UIDs(), id, derived); err != nil {
			return Artifact{}, fmt.Errorf("export %s: redirect %s: %w", source, id, err)
		}
		r.metrics.RecordRebind(metrics.ReasonExport)
	}
	r.entries = append(r.entries, RemapEntry{Source: source, Derived: derived, UID: id})
	r.metrics.SetRemapsActive(len(r.entries))

	data, err := r.store.Encode(res, format.Binary, id)
	if err != nil {
		return Artifact{}, err
	}
	if err := r.store.WriteRaw(derived, data); err != nil {
		return Artifact{}, err
	}

	r.logger.Debug("remapped text source", "session", r.session.String(),
		"source", source, "artifact", derived, "uid", id.String())
	return Artifact{Source: source, Path: derived, Data: data}, nil
}

// End reverts every redirect and deletes every artifact of the session. All
// entries are attempted; failures are joined into the returned error.
func (r *Remapper) End() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.state != Collecting {
		return ErrNoSession
	}

	err := r.revert()
	r.state = Idle
	if err != nil {
		r.logger.Warn("export revert incomplete", "session", r.session.String(), "error", err)
	} else {
		r.logger.Info("export session ended", "session", r.session.String())
	}
	return err
}

// revert drains the entry log. Callers hold the mutex.
func (r *Remapper) revert() error {
	previous := r.state
	r.state = Reverting
	defer func() { r.state = previous }()

	var errs []error
	for _, e := range r.entries {
		if e.UID.Valid() {
			if err := uid.Bind(r.store.UIDs(), e.UID, e.Source); err != nil {
				errs = append(errs, fmt.Errorf("restore %s to %s: %w", e.UID, e.Source, err))
			} else {
				r.metrics.RecordRebind(metrics.ReasonRevert)
			}
		}

		r.store.Forget(e.Derived)
		if err := r.store.FS().Remove(e.Derived); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove %s: %w", e.Derived, err))
		}
	}

	// cached sources may hold children resolved to artifacts
	r.store.Purge()
	r.entries = nil
	r.metrics.SetRemapsActive(0)
	return errors.Join(errs...)
}

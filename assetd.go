package assetd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/mwantia/assetd/archive"
	"github.com/mwantia/assetd/data"
	"github.com/mwantia/assetd/journal"
	"github.com/mwantia/assetd/log"
	"github.com/mwantia/assetd/metrics"
)

// Root binds a logical name to one absolute base directory on disk.
// The set of roots is fixed at construction and immutable at runtime.
type Root struct {
	// Name is the logical identifier used by callers ("checkpoints", "output", ...).
	Name string

	// Base is the absolute path of the directory this root is confined to.
	Base string

	// Images marks roots holding generated or uploaded images. Image roots
	// list only image files and classify entries as temporary or persistent.
	Images bool
}

// Store is the resource-resolution and mutation layer over the asset
// directories. It owns one cache segment per root; operations on different
// roots never contend with each other.
type Store struct {
	log     *log.Logger
	metrics *metrics.Registry
	journal journal.Backend
	archive archive.Archiver

	// Immutable after New; reads need no locking.
	roots map[string]*rootState
	names []string
}

// rootState is the per-root cache segment. The mutex guards snapshot
// publication and invalidation only; it is never held across filesystem I/O.
// The generation counter detects mutations that land while a scan is in
// flight so a stale scan result is never published.
type rootState struct {
	root     Root
	classify data.TempClassifier

	mu   sync.Mutex
	gen  uint64
	snap atomic.Pointer[data.Snapshot]
}

// New creates a store over the given roots. Every base directory must exist;
// a missing or non-directory base is a configuration error.
func New(roots []Root, opts ...StoreOption) (*Store, error) {
	options := newDefaultStoreOptions()
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	if len(roots) == 0 {
		return nil, fmt.Errorf("assetd: no roots configured")
	}

	s := &Store{
		log:     log.NewLogger("assetd", options.LogLevel, options.LogFile, options.NoTerminalLog),
		metrics: options.Metrics,
		journal: options.Journal,
		archive: options.Archiver,
		roots:   make(map[string]*rootState, len(roots)),
	}
	if s.metrics == nil {
		s.metrics = metrics.NewRegistry()
	}
	s.registerMetrics()

	for _, root := range roots {
		if root.Name == "" {
			return nil, fmt.Errorf("assetd: root with empty name")
		}
		if _, exists := s.roots[root.Name]; exists {
			return nil, fmt.Errorf("assetd: duplicate root %q", root.Name)
		}

		base, err := filepath.Abs(root.Base)
		if err != nil {
			return nil, fmt.Errorf("%w: root %q: %v", data.ErrUnavailable, root.Name, err)
		}
		root.Base = filepath.Clean(base)

		info, err := os.Stat(root.Base)
		if err != nil {
			return nil, fmt.Errorf("%w: root %q base %q: %v", data.ErrUnavailable, root.Name, root.Base, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%w: root %q base %q is not a directory", data.ErrUnavailable, root.Name, root.Base)
		}

		s.roots[root.Name] = &rootState{
			root:     root,
			classify: options.Classifier,
		}
		s.names = append(s.names, root.Name)
	}
	sort.Strings(s.names)

	return s, nil
}

func (s *Store) registerMetrics() {
	s.metrics.AddCounter("assetd_scan_total", "Total directory scans performed")
	s.metrics.AddCounter("assetd_scan_seconds_total", "Cumulative directory scan time in seconds")
	s.metrics.AddCounter("assetd_scan_errors_total", "Total directory scans that failed")
	s.metrics.AddCounter("assetd_deletions_total", "Total delete operations by outcome")
	s.metrics.AddCounter("assetd_installs_total", "Total install operations by outcome")
	s.metrics.AddGauge("assetd_root_entries", "Entries in the current snapshot per root")
}

// Roots returns the configured root names in ascending order.
func (s *Store) Roots() []string {
	names := make([]string, len(s.names))
	copy(names, s.names)
	return names
}

// Metrics exposes the store's metric registry for rendering.
func (s *Store) Metrics() *metrics.Registry {
	return s.metrics
}

// Logger exposes the store's logger so surrounding layers can derive
// named sub-loggers sharing the same output.
func (s *Store) Logger() *log.Logger {
	return s.log
}

// IsImageRoot reports whether the named root is configured as an image root.
func (s *Store) IsImageRoot(root string) bool {
	state, exists := s.roots[root]
	return exists && state.root.Images
}

// state returns the cache segment for a root.
func (s *Store) state(root string) (*rootState, error) {
	state, exists := s.roots[root]
	if !exists {
		return nil, fmt.Errorf("%w: %s", data.ErrUnknownRoot, root)
	}
	return state, nil
}

// record writes a journal entry for a mutation. Journal failures are logged
// and never fail the mutation itself.
func (s *Store) record(ctx context.Context, op, root, name, outcome, detail string) {
	if s.journal == nil {
		return
	}

	entry := &journal.Entry{
		ID:      data.NewID(),
		Op:      op,
		Root:    root,
		Name:    name,
		Outcome: outcome,
		Detail:  detail,
	}

	if err := s.journal.Record(ctx, entry); err != nil {
		s.log.Warn("Failed to journal %s of '%s/%s': %v", op, root, name, err)
	}
}

package assetd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mwantia/assetd/data"
	"github.com/mwantia/assetd/metrics"
)

// imageExtensions are the file extensions listed under image roots,
// matching what the generation pipeline writes.
var imageExtensions = map[string]bool{
	".png": true,
	".jpg": true,
}

// List returns the current snapshot for a root, scanning the directory
// lazily if no snapshot has been published yet.
func (s *Store) List(ctx context.Context, root string) (*data.Snapshot, error) {
	state, err := s.state(root)
	if err != nil {
		return nil, err
	}

	if snap := state.snap.Load(); snap != nil {
		return snap, nil
	}

	return s.refresh(ctx, state)
}

// Refresh forces a new directory scan regardless of cache state, publishes
// the result and returns it. A failed scan leaves the previous snapshot in
// place.
func (s *Store) Refresh(ctx context.Context, root string) (*data.Snapshot, error) {
	state, err := s.state(root)
	if err != nil {
		return nil, err
	}

	return s.refresh(ctx, state)
}

// Invalidate discards the cached snapshot for a root. The next List rebuilds.
func (s *Store) Invalidate(root string) error {
	state, err := s.state(root)
	if err != nil {
		return err
	}

	state.mu.Lock()
	state.gen++
	state.snap.Store(nil)
	state.mu.Unlock()

	s.log.Debug("Invalidated snapshot for root '%s'", state.root.Name)
	return nil
}

// refresh scans outside the lock and publishes under it. If a mutation lands
// while the scan is in flight (generation moved), the result may already be
// stale and the scan is repeated; a scan is one ReadDir plus stats, so the
// loop settles as soon as mutations pause. A caller disconnect does not
// abort the scan; ctx is accepted for interface symmetry with the rest of
// the store.
func (s *Store) refresh(ctx context.Context, state *rootState) (*data.Snapshot, error) {
	for {
		state.mu.Lock()
		startGen := state.gen
		state.mu.Unlock()

		snap, err := s.scan(state)
		if err != nil {
			return nil, err
		}

		state.mu.Lock()
		if state.gen == startGen {
			state.snap.Store(snap)
			state.mu.Unlock()

			s.metrics.SetGauge("assetd_root_entries", metrics.Labels{"root": state.root.Name}, float64(snap.Len()))
			s.log.Debug("Published snapshot for root '%s' (%d entries)", state.root.Name, snap.Len())
			return snap, nil
		}
		state.mu.Unlock()
	}
}

// scan enumerates the direct entries of the root's base directory, one level
// and files only, and builds a fully populated snapshot off to the side.
func (s *Store) scan(state *rootState) (*data.Snapshot, error) {
	start := time.Now()
	name := state.root.Name

	dirents, err := os.ReadDir(state.root.Base)
	if err != nil {
		s.metrics.IncrCounter("assetd_scan_errors_total", metrics.Labels{"root": name}, 1)
		s.log.Error("Scan of root '%s' failed: %v", name, err)
		return nil, fmt.Errorf("%w: scan of root %q: %v", data.ErrUnavailable, name, err)
	}

	entries := make([]*data.ResourceEntry, 0, len(dirents))
	for _, dirent := range dirents {
		if dirent.IsDir() {
			continue
		}
		if strings.HasPrefix(dirent.Name(), stagingPrefix) {
			continue
		}
		if state.root.Images && !imageExtensions[strings.ToLower(filepath.Ext(dirent.Name()))] {
			continue
		}

		info, err := dirent.Info()
		if err != nil {
			// Entry vanished between ReadDir and stat; skip it.
			continue
		}

		entry := &data.ResourceEntry{
			Name:         dirent.Name(),
			RelativePath: dirent.Name(),
			FullPath:     filepath.Join(state.root.Base, dirent.Name()),
			Size:         info.Size(),
			ModifiedAt:   info.ModTime(),
		}
		if state.root.Images && state.classify != nil {
			entry.Temporary = state.classify(entry.Name)
		}

		entries = append(entries, entry)
	}

	s.metrics.MeasureSince("assetd_scan", metrics.Labels{"root": name}, start)
	return data.NewSnapshot(name, start, entries), nil
}

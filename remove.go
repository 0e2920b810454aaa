package assetd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/mwantia/assetd/data"
	"github.com/mwantia/assetd/metrics"
)

// Remove deletes a single resource from a root. It is the only mutating
// entry point besides Place; nothing else writes inside a root's directory.
//
// When temp is non-nil the cached entry for name, if one is present, must
// match the requested classification. This prevents deleting a persistent
// image through the temp-scoped endpoint and vice versa.
//
// Once Remove returns successfully, any List on the same root observes the
// entry absent; the published snapshot is updated before returning.
func (s *Store) Remove(ctx context.Context, root, name string, temp *bool) error {
	state, err := s.state(root)
	if err != nil {
		s.observeDeletion(root, "unknown_root")
		return err
	}

	full, err := resolveUnder(state.root.Base, name)
	if err != nil {
		s.observeDeletion(root, "invalid")
		s.log.Reject("Rejected delete of '%s/%s': %v", root, name, err)
		return err
	}

	if temp != nil {
		temporary, known := false, false
		if snap := state.snap.Load(); snap != nil {
			if entry, exists := snap.Lookup(name); exists {
				temporary, known = entry.Temporary, true
			}
		}
		if !known && state.root.Images && state.classify != nil {
			// Cold cache; classify the name directly so the temp-scoped
			// route cannot reach a persistent image before the first scan.
			temporary, known = state.classify(name), true
		}
		if known && temporary != *temp {
			s.observeDeletion(root, "not_found")
			return fmt.Errorf("%w: %s/%s has a different classification", data.ErrNotFound, root, name)
		}
	}

	// Resolution is purely lexical; re-stat immediately before deleting to
	// guard against the path having disappeared since listing.
	info, err := os.Lstat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.observeDeletion(root, "not_found")
			return fmt.Errorf("%w: %s/%s", data.ErrNotFound, root, name)
		}
		s.observeDeletion(root, "error")
		s.log.Error("Stat before delete of '%s/%s' failed: %v", root, name, err)
		return fmt.Errorf("%w: %s/%s: %v", data.ErrUnavailable, root, name, err)
	}
	if info.IsDir() {
		s.observeDeletion(root, "not_found")
		return fmt.Errorf("%w: %s/%s is not a resource", data.ErrNotFound, root, name)
	}

	if s.archive != nil {
		if err := s.archiveResource(ctx, root, name, full, info.Size()); err != nil {
			s.observeDeletion(root, "error")
			s.record(ctx, "delete", root, name, "error", "archive failed")
			return err
		}
	}

	if err := os.Remove(full); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.observeDeletion(root, "not_found")
			return fmt.Errorf("%w: %s/%s", data.ErrNotFound, root, name)
		}
		s.observeDeletion(root, "error")
		s.record(ctx, "delete", root, name, "error", err.Error())
		s.log.Error("Delete of '%s/%s' failed: %v", root, name, err)
		return fmt.Errorf("%w: %s/%s: %v", data.ErrUnavailable, root, name, err)
	}

	// Surgical removal: copy the published snapshot without the entry and
	// swap it in. The critical section is the swap alone.
	state.mu.Lock()
	state.gen++
	if snap := state.snap.Load(); snap != nil {
		next := snap.WithoutEntry(name)
		state.snap.Store(next)
		s.metrics.SetGauge("assetd_root_entries", metrics.Labels{"root": root}, float64(next.Len()))
	}
	state.mu.Unlock()

	s.observeDeletion(root, "ok")
	s.record(ctx, "delete", root, name, "ok", "")
	s.log.Info("Deleted resource '%s/%s'", root, name)
	return nil
}

// archiveResource streams the file to the configured archiver before it is
// unlinked. Archive failure aborts the delete so content is never lost.
func (s *Store) archiveResource(ctx context.Context, root, name, full string, size int64) error {
	file, err := os.Open(full)
	if err != nil {
		s.log.Error("Archive open of '%s/%s' failed: %v", root, name, err)
		return fmt.Errorf("%w: %s/%s: %v", data.ErrUnavailable, root, name, err)
	}
	defer file.Close()

	if err := s.archive.Store(ctx, root, name, file, size); err != nil {
		s.log.Error("Archive of '%s/%s' failed: %v", root, name, err)
		return fmt.Errorf("%w: archive of %s/%s: %v", data.ErrUnavailable, root, name, err)
	}

	return nil
}

func (s *Store) observeDeletion(root, outcome string) {
	s.metrics.IncrCounter("assetd_deletions_total", metrics.Labels{"root": root, "outcome": outcome}, 1)
}

package assetd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mwantia/assetd/data"
	"github.com/mwantia/assetd/metrics"
)

// stagingPrefix marks files Place is still writing. Scans ignore them so a
// half-written resource never shows up in a listing.
const stagingPrefix = ".assetd-"

// Place writes a new resource under a root from the given reader and returns
// the number of bytes written. It refuses to overwrite an existing resource.
// The content is staged in a temporary file in the root's directory and
// renamed into place, so readers never observe a partially written resource.
// On success the root's snapshot is invalidated; the next List picks the new
// resource up.
func (s *Store) Place(ctx context.Context, root, name string, reader io.Reader) (int64, error) {
	state, err := s.state(root)
	if err != nil {
		s.observeInstall(root, "unknown_root")
		return 0, err
	}

	full, err := resolveUnder(state.root.Base, name)
	if err != nil {
		s.observeInstall(root, "invalid")
		s.log.Reject("Rejected placement of '%s/%s': %v", root, name, err)
		return 0, err
	}

	if _, err := os.Lstat(full); err == nil {
		s.observeInstall(root, "exists")
		return 0, fmt.Errorf("%w: %s/%s", data.ErrExist, root, name)
	} else if !errors.Is(err, fs.ErrNotExist) {
		s.observeInstall(root, "error")
		return 0, fmt.Errorf("%w: %s/%s: %v", data.ErrUnavailable, root, name, err)
	}

	// Resources may target a subdirectory of the root (resolver allows
	// separators); make sure the parent exists.
	if dir := filepath.Dir(full); dir != state.root.Base {
		if err := os.MkdirAll(dir, 0755); err != nil {
			s.observeInstall(root, "error")
			return 0, fmt.Errorf("%w: %s/%s: %v", data.ErrUnavailable, root, name, err)
		}
	}

	staged, err := os.CreateTemp(filepath.Dir(full), stagingPrefix+"*")
	if err != nil {
		s.observeInstall(root, "error")
		s.log.Error("Staging for '%s/%s' failed: %v", root, name, err)
		return 0, fmt.Errorf("%w: %s/%s: %v", data.ErrUnavailable, root, name, err)
	}

	written, err := io.Copy(staged, reader)
	if closeErr := staged.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(staged.Name())
		s.observeInstall(root, "error")
		s.record(ctx, "install", root, name, "error", err.Error())
		s.log.Error("Write of '%s/%s' failed: %v", root, name, err)
		return 0, fmt.Errorf("%w: %s/%s: %v", data.ErrUnavailable, root, name, err)
	}

	if err := os.Rename(staged.Name(), full); err != nil {
		os.Remove(staged.Name())
		s.observeInstall(root, "error")
		s.record(ctx, "install", root, name, "error", err.Error())
		return 0, fmt.Errorf("%w: %s/%s: %v", data.ErrUnavailable, root, name, err)
	}

	state.mu.Lock()
	state.gen++
	state.snap.Store(nil)
	state.mu.Unlock()

	s.observeInstall(root, "ok")
	s.record(ctx, "install", root, name, "ok", fmt.Sprintf("%d bytes", written))
	s.log.Info("Placed resource '%s/%s' (%d bytes)", root, name, written)
	return written, nil
}

func (s *Store) observeInstall(root, outcome string) {
	s.metrics.IncrCounter("assetd_installs_total", metrics.Labels{"root": root, "outcome": outcome}, 1)
}

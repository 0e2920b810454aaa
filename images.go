package assetd

import (
	"context"
	"fmt"

	"github.com/mwantia/assetd/data"
)

// ListImages returns the image entries of an image root, optionally filtered
// by classification. A nil temp returns every entry; true only temporary
// entries; false only persistent ones. Filtering is a pure view over the
// registry snapshot and never triggers its own scan.
func (s *Store) ListImages(ctx context.Context, root string, temp *bool) ([]*data.ResourceEntry, error) {
	state, err := s.state(root)
	if err != nil {
		return nil, err
	}
	if !state.root.Images {
		return nil, fmt.Errorf("%w: %s is not an image root", data.ErrUnknownRoot, root)
	}

	snap, err := s.List(ctx, root)
	if err != nil {
		return nil, err
	}

	if temp == nil {
		return snap.Entries(), nil
	}
	return snap.Filter(*temp), nil
}

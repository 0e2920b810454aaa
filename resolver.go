package assetd

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/mwantia/assetd/data"
)

// Resolve maps a root name plus a caller-supplied relative name to a
// validated absolute path confined to the root's base directory. It is a
// pure function of configuration and input; it never touches the filesystem,
// so callers that mutate must re-stat the result themselves.
func (s *Store) Resolve(root, name string) (string, error) {
	state, err := s.state(root)
	if err != nil {
		return "", err
	}

	return resolveUnder(state.root.Base, name)
}

// resolveUnder normalizes name and verifies the result stays under base.
// The containment check is lexical: base must remain a proper prefix of the
// joined path after all '.' and '..' segments are collapsed.
func resolveUnder(base, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty name", data.ErrInvalidResource)
	}
	if strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("%w: name contains NUL", data.ErrInvalidResource)
	}
	if strings.HasPrefix(name, "/") || filepath.IsAbs(name) {
		return "", fmt.Errorf("%w: absolute name %q", data.ErrInvalidResource, name)
	}

	cleaned := path.Clean(filepath.ToSlash(name))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q escapes root", data.ErrInvalidResource, name)
	}

	full := filepath.Join(base, filepath.FromSlash(cleaned))

	// Postcondition: full must resolve to a proper child of base.
	rel, err := filepath.Rel(base, full)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q escapes root", data.ErrInvalidResource, name)
	}

	return full, nil
}

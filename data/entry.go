package data

import (
	"strings"
	"time"
)

// ResourceEntry is one listed item under a Root. Entries are read-only once
// placed in a snapshot; a new scan produces new entries.
type ResourceEntry struct {
	Name         string    `json:"name"`
	RelativePath string    `json:"path"`
	FullPath     string    `json:"full_path"`
	Size         int64     `json:"size_bytes"`
	ModifiedAt   time.Time `json:"modified_at"`
	Temporary    bool      `json:"temporary,omitempty"`
}

// TempClassifier decides whether a resource name denotes a temporary entry.
// The convention is defined by the upstream generation node and therefore
// supplied by configuration rather than hard-coded.
type TempClassifier func(name string) bool

// DefaultTempPrefix matches the preview node's output naming.
const DefaultTempPrefix = "temp_"

// PrefixClassifier returns a TempClassifier that flags names starting with
// the given prefix. An empty prefix classifies nothing as temporary.
func PrefixClassifier(prefix string) TempClassifier {
	return func(name string) bool {
		if prefix == "" {
			return false
		}
		return strings.HasPrefix(name, prefix)
	}
}

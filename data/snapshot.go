package data

import (
	"time"

	"github.com/tidwall/btree"
)

// Snapshot is an immutable, timestamped listing of a Root's resources at one
// scan instant. Entries are indexed in a B-tree keyed by name, which gives
// sorted iteration and cheap copy-on-write removal without ever mutating a
// published snapshot in place.
type Snapshot struct {
	Root    string
	TakenAt time.Time

	entries *btree.Map[string, *ResourceEntry]
}

// NewSnapshot builds a snapshot from a completed scan.
// The entry slice does not need to be pre-sorted.
func NewSnapshot(root string, takenAt time.Time, entries []*ResourceEntry) *Snapshot {
	index := btree.NewMap[string, *ResourceEntry](0)
	for _, entry := range entries {
		index.Set(entry.Name, entry)
	}

	return &Snapshot{
		Root:    root,
		TakenAt: takenAt,
		entries: index,
	}
}

// Len returns the number of entries in the snapshot.
func (s *Snapshot) Len() int {
	return s.entries.Len()
}

// Lookup returns the entry with the given name, if present.
func (s *Snapshot) Lookup(name string) (*ResourceEntry, bool) {
	return s.entries.Get(name)
}

// Entries returns all entries in ascending name order (case-sensitive).
func (s *Snapshot) Entries() []*ResourceEntry {
	result := make([]*ResourceEntry, 0, s.entries.Len())
	s.entries.Scan(func(_ string, entry *ResourceEntry) bool {
		result = append(result, entry)
		return true
	})

	return result
}

// Filter returns the entries whose Temporary flag matches temp, in ascending
// name order. A nil filter is expressed by calling Entries instead.
func (s *Snapshot) Filter(temp bool) []*ResourceEntry {
	result := make([]*ResourceEntry, 0, s.entries.Len())
	s.entries.Scan(func(_ string, entry *ResourceEntry) bool {
		if entry.Temporary == temp {
			result = append(result, entry)
		}
		return true
	})

	return result
}

// WithoutEntry returns a copy of the snapshot with the named entry removed.
// The receiver is left untouched; the B-tree copy is copy-on-write, so this
// is cheap even for large listings.
func (s *Snapshot) WithoutEntry(name string) *Snapshot {
	index := s.entries.Copy()
	index.Delete(name)

	return &Snapshot{
		Root:    s.Root,
		TakenAt: s.TakenAt,
		entries: index,
	}
}

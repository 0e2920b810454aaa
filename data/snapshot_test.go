package data

import (
	"testing"
	"time"
)

func testEntries(names ...string) []*ResourceEntry {
	entries := make([]*ResourceEntry, 0, len(names))
	for _, name := range names {
		entries = append(entries, &ResourceEntry{Name: name})
	}
	return entries
}

func TestSnapshot_EntriesSorted(t *testing.T) {
	snap := NewSnapshot("checkpoints", time.Now(), testEntries("c", "a", "b"))

	entries := snap.Entries()
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}
	if entries[0].Name != "a" || entries[1].Name != "b" || entries[2].Name != "c" {
		t.Errorf("Entries not sorted: %s, %s, %s", entries[0].Name, entries[1].Name, entries[2].Name)
	}
}

func TestSnapshot_WithoutEntryLeavesOriginalUntouched(t *testing.T) {
	original := NewSnapshot("checkpoints", time.Now(), testEntries("a", "b"))

	trimmed := original.WithoutEntry("a")

	if original.Len() != 2 {
		t.Errorf("Original snapshot mutated: %d entries", original.Len())
	}
	if trimmed.Len() != 1 {
		t.Errorf("Expected 1 entry in copy, got %d", trimmed.Len())
	}
	if _, exists := trimmed.Lookup("a"); exists {
		t.Error("Removed entry still present in copy")
	}
	if _, exists := original.Lookup("a"); !exists {
		t.Error("Entry vanished from original snapshot")
	}
}

func TestSnapshot_FilterByClassification(t *testing.T) {
	entries := testEntries("final.png", "temp_1.png")
	entries[1].Temporary = true

	snap := NewSnapshot("output", time.Now(), entries)

	temporary := snap.Filter(true)
	if len(temporary) != 1 || temporary[0].Name != "temp_1.png" {
		t.Errorf("Wrong temporary view: %d entries", len(temporary))
	}

	persistent := snap.Filter(false)
	if len(persistent) != 1 || persistent[0].Name != "final.png" {
		t.Errorf("Wrong persistent view: %d entries", len(persistent))
	}
}

func TestPrefixClassifier(t *testing.T) {
	classify := PrefixClassifier("temp_")

	if !classify("temp_0001.png") {
		t.Error("Expected temp_0001.png to classify as temporary")
	}
	if classify("final.png") {
		t.Error("Expected final.png to classify as persistent")
	}

	none := PrefixClassifier("")
	if none("temp_0001.png") {
		t.Error("Empty prefix must classify nothing as temporary")
	}
}

package assetd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mwantia/assetd/data"
)

func writeFile(t *testing.T, dir, name string, size int) {
	t.Helper()

	if err := os.WriteFile(filepath.Join(dir, name), bytes.Repeat([]byte{0xAB}, size), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
}

func TestList_SortedEntriesWithSizes(t *testing.T) {
	ctx := t.Context()
	base := t.TempDir()
	writeFile(t, base, "b.safetensors", 5)
	writeFile(t, base, "a.safetensors", 10)

	store := newTestStore(t, Root{Name: "checkpoints", Base: base})

	snap, err := store.List(ctx, "checkpoints")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	entries := snap.Entries()
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Name != "a.safetensors" || entries[1].Name != "b.safetensors" {
		t.Errorf("Entries not sorted by name: %q, %q", entries[0].Name, entries[1].Name)
	}
	if entries[0].Size != 10 || entries[1].Size != 5 {
		t.Errorf("Wrong sizes: %d, %d", entries[0].Size, entries[1].Size)
	}
}

func TestList_SkipsDirectories(t *testing.T) {
	ctx := t.Context()
	base := t.TempDir()
	writeFile(t, base, "model.ckpt", 4)
	if err := os.Mkdir(filepath.Join(base, "subdir"), 0755); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}

	store := newTestStore(t, Root{Name: "checkpoints", Base: base})

	snap, err := store.List(ctx, "checkpoints")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	if snap.Len() != 1 {
		t.Errorf("Expected 1 entry, got %d", snap.Len())
	}
}

func TestList_SkipsStagingFiles(t *testing.T) {
	ctx := t.Context()
	base := t.TempDir()
	writeFile(t, base, "model.ckpt", 4)
	writeFile(t, base, ".assetd-1234", 4)

	store := newTestStore(t, Root{Name: "checkpoints", Base: base})

	snap, err := store.List(ctx, "checkpoints")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	if snap.Len() != 1 {
		t.Fatalf("Expected 1 entry, got %d", snap.Len())
	}
	if _, exists := snap.Lookup(".assetd-1234"); exists {
		t.Error("Staging file leaked into the listing")
	}
}

func TestList_UnknownRoot(t *testing.T) {
	store := newTestStore(t, Root{Name: "checkpoints", Base: t.TempDir()})

	if _, err := store.List(t.Context(), "vae"); !errors.Is(err, data.ErrUnknownRoot) {
		t.Errorf("Expected ErrUnknownRoot, got %v", err)
	}
}

func TestRefresh_ObservesNewFiles(t *testing.T) {
	ctx := t.Context()
	base := t.TempDir()
	writeFile(t, base, "first.ckpt", 1)

	store := newTestStore(t, Root{Name: "checkpoints", Base: base})

	snap, err := store.List(ctx, "checkpoints")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if snap.Len() != 1 {
		t.Fatalf("Expected 1 entry, got %d", snap.Len())
	}

	// A file created externally is invisible to the cached snapshot.
	writeFile(t, base, "second.ckpt", 1)

	snap, err = store.List(ctx, "checkpoints")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if snap.Len() != 1 {
		t.Errorf("Cached list changed without refresh: %d entries", snap.Len())
	}

	// Refresh must reflect the current disk state.
	snap, err = store.Refresh(ctx, "checkpoints")
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if snap.Len() != 2 {
		t.Errorf("Expected 2 entries after refresh, got %d", snap.Len())
	}
}

func TestInvalidate_NextListRescans(t *testing.T) {
	ctx := t.Context()
	base := t.TempDir()

	store := newTestStore(t, Root{Name: "checkpoints", Base: base})

	if _, err := store.List(ctx, "checkpoints"); err != nil {
		t.Fatalf("List failed: %v", err)
	}

	writeFile(t, base, "late.ckpt", 1)
	if err := store.Invalidate("checkpoints"); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}

	snap, err := store.List(ctx, "checkpoints")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if snap.Len() != 1 {
		t.Errorf("Expected rescan to find 1 entry, got %d", snap.Len())
	}
}

func TestRefresh_FailureKeepsPreviousSnapshot(t *testing.T) {
	ctx := t.Context()
	parent := t.TempDir()
	base := filepath.Join(parent, "checkpoints")
	if err := os.Mkdir(base, 0755); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}
	writeFile(t, base, "model.ckpt", 1)

	store := newTestStore(t, Root{Name: "checkpoints", Base: base})

	if _, err := store.List(ctx, "checkpoints"); err != nil {
		t.Fatalf("List failed: %v", err)
	}

	// Pull the directory out from under the store.
	if err := os.RemoveAll(base); err != nil {
		t.Fatalf("RemoveAll failed: %v", err)
	}

	if _, err := store.Refresh(ctx, "checkpoints"); !errors.Is(err, data.ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", err)
	}

	// The previous snapshot stays in place.
	snap, err := store.List(ctx, "checkpoints")
	if err != nil {
		t.Fatalf("List after failed refresh failed: %v", err)
	}
	if snap.Len() != 1 {
		t.Errorf("Expected previous snapshot with 1 entry, got %d", snap.Len())
	}
}

// Package journal records every mutation performed against the asset store.
// It is an audit log, not a source of truth; the filesystem stays
// authoritative and journal failures never fail the mutation they describe.
package journal

import (
	"context"
	"time"
)

// Entry describes one recorded mutation.
type Entry struct {
	ID      string `json:"id"`
	Op      string `json:"op"`
	Root    string `json:"root"`
	Name    string `json:"name"`
	Outcome string `json:"outcome"`
	Detail  string `json:"detail,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Backend is a persistence backend for journal entries.
type Backend interface {
	// Name returns the identifier name defined for this backend.
	Name() string

	// Open is part of the lifecycle behaviour and gets called once before
	// the first Record.
	Open(ctx context.Context) error

	// Close is part of the lifecycle behaviour and gets called on shutdown.
	Close(ctx context.Context) error

	// Record persists one entry. A zero CreatedAt is stamped by the backend.
	Record(ctx context.Context, entry *Entry) error

	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]*Entry, error)
}

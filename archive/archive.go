// Package archive offloads resource content to external storage before a
// delete removes it from disk.
package archive

import (
	"context"
	"io"
)

// Archiver stores a copy of a resource's content. A failed Store aborts the
// delete that triggered it; content is never lost to a broken archive.
type Archiver interface {
	// Name returns the identifier name defined for this archiver.
	Name() string

	// Store writes size bytes from reader under the given root and name.
	Store(ctx context.Context, root, name string, reader io.Reader, size int64) error
}

package sqlite

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/mwantia/assetd/journal"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteBackend persists journal entries in a single SQLite database.
// WAL mode keeps concurrent Record calls from blocking readers.
type SQLiteBackend struct {
	mu sync.RWMutex
	db *sql.DB
}

// NewSQLiteBackend creates a new SQLite-backed journal.
// The dbPath can be ":memory:" for an in-memory database or a file path.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, err
	}

	backend := &SQLiteBackend{db: db}
	if err := backend.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return backend, nil
}

// initSchema creates the database schema.
func (sb *SQLiteBackend) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS asset_journal (
		id TEXT PRIMARY KEY,
		op TEXT NOT NULL,
		root TEXT NOT NULL,
		name TEXT NOT NULL,
		outcome TEXT NOT NULL,
		detail TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_asset_journal_created ON asset_journal(created_at);
	`

	_, err := sb.db.Exec(schema)
	return err
}

// Name returns the identifier name defined for this backend.
func (*SQLiteBackend) Name() string {
	return "sqlite"
}

// Open is part of the lifecycle behaviour and gets called once before the first Record.
func (sb *SQLiteBackend) Open(ctx context.Context) error {
	return sb.db.PingContext(ctx)
}

// Close is part of the lifecycle behaviour and gets called on shutdown.
func (sb *SQLiteBackend) Close(ctx context.Context) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	return sb.db.Close()
}

// Record persists one entry.
func (sb *SQLiteBackend) Record(ctx context.Context, entry *journal.Entry) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	_, err := sb.db.ExecContext(ctx,
		`INSERT INTO asset_journal (id, op, root, name, outcome, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Op, entry.Root, entry.Name, entry.Outcome, entry.Detail,
		entry.CreatedAt.UnixMilli())

	return err
}

// Recent returns up to limit entries, newest first.
func (sb *SQLiteBackend) Recent(ctx context.Context, limit int) ([]*journal.Entry, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	rows, err := sb.db.QueryContext(ctx,
		`SELECT id, op, root, name, outcome, detail, created_at
		 FROM asset_journal ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*journal.Entry
	for rows.Next() {
		var entry journal.Entry
		var detail sql.NullString
		var createdAt int64

		if err := rows.Scan(&entry.ID, &entry.Op, &entry.Root, &entry.Name,
			&entry.Outcome, &detail, &createdAt); err != nil {
			return nil, err
		}

		entry.Detail = detail.String
		entry.CreatedAt = time.UnixMilli(createdAt)
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

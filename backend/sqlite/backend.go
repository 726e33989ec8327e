package sqlite

import (
	"context"
	"database/sql"
	"sync"

	"github.com/mwantia/aclsync/backend"
	"github.com/tidwall/btree"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteBackend persists containers, directories and files together with
// their access control state in SQLite:
//
// Layer 1: In-memory B-tree for fast path → ID lookups (keys map)
// Layer 2: SQLite item table (acl_items) holding the access control state
// Layer 3: SQLite principal table (acl_principals) for upn resolution
type SQLiteBackend struct {
	mu sync.RWMutex
	db *sql.DB

	// In-memory B-tree for fast key lookups
	keys *btree.Map[string, string]
}

// NewSQLiteBackend creates a new SQLite-backed storage.
// The dbPath can be ":memory:" for an in-memory database or a file path.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Every connection of an in-memory database is a separate database
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, err
	}

	backend := &SQLiteBackend{
		db:   db,
		keys: btree.NewMap[string, string](0),
	}

	if err := backend.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return backend, nil
}

// initSchema creates the database schema.
func (sb *SQLiteBackend) initSchema() error {
	schema := `
	-- Containers, directories and files
	CREATE TABLE IF NOT EXISTS acl_items (
		id TEXT PRIMARY KEY,
		path TEXT NOT NULL UNIQUE,
		folder INTEGER NOT NULL,
		owner TEXT NOT NULL,
		owning_group TEXT NOT NULL,
		permissions TEXT NOT NULL,
		acl TEXT NOT NULL,
		default_acl TEXT NOT NULL,
		modify_time INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_acl_items_path ON acl_items(path);

	-- Object id to user principal name mapping
	CREATE TABLE IF NOT EXISTS acl_principals (
		id TEXT PRIMARY KEY,
		upn TEXT NOT NULL
	);
	`

	_, err := sb.db.Exec(schema)
	return err
}

// Name returns the identifier name defined for this backend
func (*SQLiteBackend) Name() string {
	return "sqlite"
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (sb *SQLiteBackend) Open(ctx context.Context) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	// Verify database connection
	if err := sb.db.PingContext(ctx); err != nil {
		return err
	}

	// Load all keys into memory B-tree
	rows, err := sb.db.QueryContext(ctx, "SELECT path, id FROM acl_items")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key, id string
		if err := rows.Scan(&key, &id); err != nil {
			return err
		}
		sb.keys.Set(key, id)
	}

	return rows.Err()
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (sb *SQLiteBackend) Close(ctx context.Context) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	sb.keys.Clear()
	return sb.db.Close()
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (sb *SQLiteBackend) GetCapabilities() *backend.Capabilities {
	return backend.GetAllCapabilities()
}

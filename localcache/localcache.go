// Package localcache is the device-local key/value cache. It keeps
// JSON mirrors of remote voter documents and the candidate branding in
// a SQLite file, next to the pending-write queue table.
package localcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite" // registers the sqlite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS pending_writes (
    seq          INTEGER PRIMARY KEY AUTOINCREMENT,
    doc_id       TEXT NOT NULL,
    collection   TEXT NOT NULL,
    payload      BLOB NOT NULL,
    last_updated INTEGER NOT NULL,
    version      INTEGER NOT NULL DEFAULT 1,
    UNIQUE (doc_id, collection)
);
`

// VoterKey is the cache key of a voter document mirror.
func VoterKey(id string) string {
	return "voter_" + id
}

// Cache is a string key/value store over SQLite.
type Cache struct {
	db *sql.DB
}

// Open opens (or creates) the cache database at path and makes sure
// the schema exists. Use ":memory:" for a throwaway cache.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open local cache [%s], error %v", path, err)
	}
	// a single connection keeps ":memory:" databases shared and
	// serializes writers on the file.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create local cache schema, error %v", err)
	}
	return &Cache{db: db}, nil
}

// DB exposes the underlying database to the queue sharing the file.
func (c *Cache) DB() *sql.DB {
	return c.db
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the value stored under key and whether it exists.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := c.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read key [%s] from local cache, error %v", key, err)
	}
	return value, true, nil
}

// Put stores value under key, replacing any previous value.
func (c *Cache) Put(ctx context.Context, key, value string) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write key [%s] to local cache, error %v", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete key [%s] from local cache, error %v", key, err)
	}
	return nil
}

// GetJSON decodes the value under key into v. It reports false when
// the key is missing.
func (c *Cache) GetJSON(ctx context.Context, key string, v interface{}) (bool, error) {
	raw, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("failed to decode cached value [%s], error %v", key, err)
	}
	return true, nil
}

// PutJSON stores v serialized as JSON under key.
func (c *Cache) PutJSON(ctx context.Context, key string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode value for key [%s], error %v", key, err)
	}
	return c.Put(ctx, key, string(b))
}

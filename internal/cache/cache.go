// Package cache stores fetched repository metadata in a local SQLite
// database so repeated runs do not burn GitHub API rate limit.
package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"storygen/internal/github"
)

// Cache wraps a SQLite connection.
type Cache struct {
	conn *sql.DB
	path string
}

// Open creates or opens the cache database at the given path.
func Open(dbPath string) (*Cache, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return &Cache{conn: conn, path: dbPath}, nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	return c.conn.Close()
}

// Path returns the database file path.
func (c *Cache) Path() string {
	return c.path
}

func migrate(conn *sql.DB) error {
	var version int
	if err := conn.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if version >= 1 {
		return nil
	}

	_, err := conn.Exec(`
CREATE TABLE IF NOT EXISTS repositories (
    full_name TEXT PRIMARY KEY,
    payload TEXT NOT NULL,
    fetched_at TEXT NOT NULL
);
PRAGMA user_version = 1;
`)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// Put stores or replaces the cached metadata for a repository.
func (c *Cache) Put(repo *github.Repository) error {
	payload, err := json.Marshal(repo)
	if err != nil {
		return fmt.Errorf("encoding repository: %w", err)
	}

	_, err = c.conn.Exec(
		`INSERT INTO repositories (full_name, payload, fetched_at) VALUES (?, ?, ?)
		 ON CONFLICT(full_name) DO UPDATE SET payload=excluded.payload, fetched_at=excluded.fetched_at`,
		repo.FullName, string(payload), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("storing repository: %w", err)
	}
	return nil
}

// Get returns the cached metadata for fullName if it was fetched within
// maxAge. The second return is false on a miss or a stale entry.
func (c *Cache) Get(fullName string, maxAge time.Duration) (*github.Repository, bool, error) {
	var payload, fetchedAt string
	err := c.conn.QueryRow(
		"SELECT payload, fetched_at FROM repositories WHERE full_name = ?", fullName,
	).Scan(&payload, &fetchedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading repository: %w", err)
	}

	ts, err := time.Parse(time.RFC3339, fetchedAt)
	if err != nil || time.Since(ts) > maxAge {
		return nil, false, nil
	}

	var repo github.Repository
	if err := json.Unmarshal([]byte(payload), &repo); err != nil {
		return nil, false, fmt.Errorf("decoding repository: %w", err)
	}
	return &repo, true, nil
}

// Prune removes entries fetched before the cutoff.
func (c *Cache) Prune(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge).Format(time.RFC3339)
	res, err := c.conn.Exec("DELETE FROM repositories WHERE fetched_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning cache: %w", err)
	}
	return res.RowsAffected()
}

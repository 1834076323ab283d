package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// schema is the cache table layout. Timestamps are stored as Unix
// nanoseconds so expiry comparisons are plain integer comparisons.
const schema = `
CREATE TABLE IF NOT EXISTS entries (
	key                TEXT PRIMARY KEY,
	validator_version  TEXT NOT NULL,
	value              BLOB NOT NULL,
	created_at         INTEGER NOT NULL,
	expires_at         INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entries_expires_at ON entries(expires_at);
`

// SQLiteStore implements Store on a local SQLite database. The database
// is opened in WAL mode so in-process concurrent readers and writers are
// safe. Sharing one database across hosts is not supported.
type SQLiteStore struct {
	db     *sql.DB
	hits   atomic.Int64
	misses atomic.Int64
}

// Compile-time check that SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)

// NewSQLite opens (creating if needed) the cache database at path.
func NewSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("cache path is required")
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping cache database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Get implements Store. Expired entries and entries written under a
// different validator version are misses; the expired/corrupt ones are
// evicted on the spot so they never shadow a later Set.
func (s *SQLiteStore) Get(ctx context.Context, key, version string) (json.RawMessage, bool, error) {
	var (
		storedVersion string
		value         []byte
		expiresAt     int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT validator_version, value, expires_at FROM entries WHERE key = ?", key,
	).Scan(&storedVersion, &value, &expiresAt)
	if err == sql.ErrNoRows {
		return s.miss(), false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}

	now := time.Now().UnixNano()
	if now > expiresAt {
		// Stale entry; evict so ClearExpired counts stay honest.
		s.evict(ctx, key)
		return s.miss(), false, nil
	}
	if storedVersion != version {
		return s.miss(), false, nil
	}
	if !json.Valid(value) {
		// Unreadable entry: treat as a miss and drop it.
		s.evict(ctx, key)
		return s.miss(), false, nil
	}

	s.hits.Add(1)
	return json.RawMessage(value), true, nil
}

// Set implements Store.
func (s *SQLiteStore) Set(ctx context.Context, key, version string, value json.RawMessage, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive (got %v)", ttl)
	}
	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entries (key, validator_version, value, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			validator_version = excluded.validator_version,
			value             = excluded.value,
			created_at        = excluded.created_at,
			expires_at        = excluded.expires_at`,
		key, version, []byte(value), now.UnixNano(), now.Add(ttl).UnixNano())
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// ClearExpired implements Store.
func (s *SQLiteStore) ClearExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM entries WHERE expires_at < ?", time.Now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to clear expired entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count cleared entries: %w", err)
	}
	return int(n), nil
}

// ClearAll implements Store.
func (s *SQLiteStore) ClearAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM entries"); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

// Stats implements Store.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var (
		entries int
		bytes   sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(LENGTH(value)), 0) FROM entries",
	).Scan(&entries, &bytes)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read cache stats: %w", err)
	}
	return Stats{
		Entries: entries,
		Bytes:   bytes.Int64,
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
	}, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) miss() json.RawMessage {
	s.misses.Add(1)
	return nil
}

// evict is best-effort: a failed delete just means the row will be
// reconsidered on the next lookup or swept by ClearExpired.
func (s *SQLiteStore) evict(ctx context.Context, key string) {
	_, _ = s.db.ExecContext(ctx, "DELETE FROM entries WHERE key = ?", key)
}

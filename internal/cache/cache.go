// Package cache provides the content-addressed result cache used to
// deduplicate repeated page analyses. Entries are keyed by a
// collision-resistant hash of the page content and the validator
// version, expire after a TTL, and are invalidated wholesale by bumping
// the validator version.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Store is the cache contract consumed by the batch orchestrator.
// Implementations must support concurrent reads and concurrent writes to
// different keys; writes to the same key are last-writer-wins, which is
// safe because the analysis function is deterministic for a given
// (content, version) pair.
type Store interface {
	// Get returns the cached value for key, or ok=false on a miss.
	// A miss is not an error: it is returned when no entry exists, the
	// entry has expired, or the entry was written under a different
	// validator version. A corrupt entry is evicted and reported as a miss.
	Get(ctx context.Context, key, version string) (value json.RawMessage, ok bool, err error)

	// Set stores or overwrites the entry for key with the given TTL.
	Set(ctx context.Context, key, version string, value json.RawMessage, ttl time.Duration) error

	// ClearExpired removes all entries whose TTL has elapsed and returns
	// the number removed.
	ClearExpired(ctx context.Context) (int, error)

	// ClearAll unconditionally wipes the cache.
	ClearAll(ctx context.Context) error

	// Stats returns entry count, aggregate value size, and the running
	// hit/miss counters for this process.
	Stats(ctx context.Context) (Stats, error)

	// Close releases any resources held by the store.
	Close() error
}

// Stats holds cache observability counters. Hits and Misses are
// in-process counters; Entries and Bytes reflect the persisted state.
type Stats struct {
	Entries int   `json:"entries"`
	Bytes   int64 `json:"bytes"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// HitRate returns hits/(hits+misses), 0 when no lookups have happened.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// DeriveKey computes the dedup key for a page: a hex-encoded SHA-256
// over the canonical content bytes followed by the validator version.
// Identical content under the same version always derives the same key.
func DeriveKey(content []byte, version string) string {
	h := sha256.New()
	h.Write(content)
	h.Write([]byte(version))
	return hex.EncodeToString(h.Sum(nil))
}

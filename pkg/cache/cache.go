// Package cache stores resolved knot arrays and rendered artifacts between
// runs.
//
// Three backends implement [Cache]: [FileCache] for the CLI, [RedisCache] for
// the HTTP service, and [NullCache] when caching is disabled. Keys are built
// by a [Keyer] from content hashes, so a changed geometry file, join table or
// scheme produces a new key instead of a stale hit.
package cache

import (
	"context"
	"time"
)

// Cache is a byte store with per-entry expiry.
type Cache interface {
	// Get returns the entry for key. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key. A ttl of zero never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Default entry lifetimes.
const (
	TTLMesh     = 7 * 24 * time.Hour
	TTLKnot     = 24 * time.Hour
	TTLArtifact = 24 * time.Hour
)

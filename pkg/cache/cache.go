// Package cache provides key/value storage backends shared by the module
// proxy client and the vendor snapshot store.
//
// Three implementations are available:
//   - [FileCache]: JSON entries on local disk, the CLI default
//   - [RedisCache]: a Redis server, for CI fleets sharing build state
//   - [NullCache]: stores nothing, used with --no-cache
//
// Keys are produced by a [Keyer] so that every consumer namespaces its
// entries the same way.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque byte values under string keys.
type Cache interface {
	// Get returns the value for key. The bool is false on a miss; a miss is
	// not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key. A ttl of zero means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases backend resources.
	Close() error
}

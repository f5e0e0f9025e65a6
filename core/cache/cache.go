package cache

import "io"

// Cache stores entry bodies keyed by an opaque byte key.
//
// Callers derive keys from where a body lives in its container (source
// identity, offset and size). Keys are not content hashes, so callers
// check what they get back against the size they expect.
//
// Implementations should handle their own size limits and eviction policies.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns a reader over cached content.
	// Returns nil, false if content is not cached.
	// Each call returns a new reader that the caller must close.
	Get(key []byte) (io.ReadCloser, bool)

	// Put stores content read from r to completion.
	// Putting a key that is already cached is a no-op.
	Put(key []byte, r io.Reader) error

	// Delete removes cached content for the given key.
	// Implementations should treat missing entries as a no-op.
	Delete(key []byte) error

	// MaxBytes returns the configured cache size limit (0 = unlimited).
	MaxBytes() int64

	// SizeBytes returns the current cache size in bytes.
	SizeBytes() int64

	// Prune removes cached entries until the cache is at or below targetBytes.
	// Returns the number of bytes freed.
	Prune(targetBytes int64) (int64, error)
}

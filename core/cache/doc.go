// Package cache defines the entry body cache used by archives.
//
// Caching is optional. It pays off when bodies come from a slow source,
// such as an HTTP range source, and the same container is opened again.
package cache

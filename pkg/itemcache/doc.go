// Package itemcache provides the in-memory item cache of a log-structured,
// segment-based filesystem.
//
// The cache sits between higher-level filesystem operations and an on-disk
// manifest of immutable sorted segments. It answers point and range queries
// over an ordered key space, accumulates dirty mutations destined for the
// next segment write, and remembers which key ranges are fully represented
// in memory so negative lookups can be served without touching storage.
//
// # Basic usage
//
//	c := itemcache.New(itemcache.Options{
//	    Manifest: myManifestReader,
//	    Segments: myShopSegmentWriter,
//	})
//
//	it, err := c.Lookup(ctx, key)
//	if errors.Is(err, itemcache.ErrNotFound) {
//	    // key does not exist anywhere in the filesystem
//	}
//
//	err = c.Create(ctx, key, val)
//	...
//	err = c.DirtySeg(ctx) // flush the dirty items that fit one new segment
//
// # Concurrency
//
// Cache is safe for concurrent use by multiple goroutines. A single
// exclusive lock guards ItemIndex, RangeIndex and the dirty accounting;
// the lock is never held across a manifest read, so any number of
// concurrent callers may race to populate the same region. See cache.go.
//
// # Error handling
//
// Errors fall into four shapes, all sentinel values checked with
// [errors.Is]: resource ([ErrOutOfMemory]), semantic ([ErrNotFound],
// [ErrExists], [ErrInvalid]), corruption ([ErrCorruption]), and
// pass-through (whatever the injected [ManifestReader] returns).
package itemcache

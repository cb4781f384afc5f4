package itemcache

import "context"

// ManifestReader is the external collaborator that answers "what does the
// manifest say about [start, end]?" (spec.md §1, §6). Implementations
// must call [Cache.AddBatch] for every item found in the range and finish
// with exactly one call to [Cache.InsertBatch] covering [start, end],
// installing items and coverage atomically from the cache's point of
// view. ReadItems may be called concurrently by multiple goroutines that
// each dropped the cache lock to do so; this is safe because AddBatch
// silently drops keys already cached and InsertBatch coalesces
// overlapping coverage.
type ManifestReader interface {
	ReadItems(ctx context.Context, cache *Cache, start, end []byte) error
}

// SegmentWriter is the external collaborator that accepts a flushed batch
// of dirty items in key order (spec.md §1, §6). FitsSingle is a pure
// predicate; FirstItem begins a new segment and must be followed by
// exactly n-1 calls to AppendItem.
type SegmentWriter interface {
	// FitsSingle answers whether n items totalling keyBytes/valBytes of
	// key/value data fit in a single segment.
	FitsSingle(n int, keyBytes, valBytes uint64) bool

	// FirstItem begins a new segment with the first emitted item.
	FirstItem(key, val []byte, flags ItemFlags, n int, keyBytes uint64)

	// AppendItem emits the next item of the segment started by FirstItem.
	AppendItem(key, val []byte, flags ItemFlags)
}

// ManifestReaderFunc adapts a plain function to a [ManifestReader].
type ManifestReaderFunc func(ctx context.Context, cache *Cache, start, end []byte) error

// ReadItems implements [ManifestReader].
func (f ManifestReaderFunc) ReadItems(ctx context.Context, cache *Cache, start, end []byte) error {
	return f(ctx, cache, start, end)
}

package itemcache

import "errors"

// Sentinel errors returned by itemcache operations.
//
// Callers classify errors with [errors.Is]; none of these carry payload
// beyond what the wrapping message already includes.
var (
	// ErrOutOfMemory indicates an allocation failed before the cache lock
	// was taken. Cache state is unchanged.
	ErrOutOfMemory = errors.New("itemcache: out of memory")

	// ErrNotFound indicates no live item exists at the given key, and the
	// absence is confirmed by a covering range or an explicit tombstone.
	ErrNotFound = errors.New("itemcache: not found")

	// ErrExists indicates a live item already exists at the given key.
	ErrExists = errors.New("itemcache: already exists")

	// ErrInvalid indicates bad arguments: a key longer than MaxKeySize, a
	// negative NextSameMin minValLen, or a DirtySeg call with no
	// SegmentWriter configured while dirty items exist.
	ErrInvalid = errors.New("itemcache: invalid argument")

	// ErrCorruption indicates a caller-expectation mismatch that can only
	// mean the manifest or a segment holds data violating a cache
	// invariant: LookupExact's size argument not matching the stored
	// value length, or NextSame/NextSameMin finding a successor whose key
	// length (or, for NextSameMin, value length) violates the length
	// discipline the caller asked for. Callers should interpret this as
	// filesystem corruption.
	ErrCorruption = errors.New("itemcache: corruption")

	// ErrBufferTooSmall is reserved for callers that copy item values into
	// a caller-owned buffer; the in-memory Cache API in this package does
	// not return it directly.
	ErrBufferTooSmall = errors.New("itemcache: buffer too small")

	// ErrClosed indicates the cache has been torn down.
	ErrClosed = errors.New("itemcache: closed")
)

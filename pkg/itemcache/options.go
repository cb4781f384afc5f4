package itemcache

import "sync/atomic"

// Allocator carries out the key/value heap allocations spec.md §5 requires
// to happen before the cache lock is taken. The default allocator never
// fails; tests inject a budget-limited one to exercise [ErrOutOfMemory]
// paths deterministically, since Go does not otherwise surface allocation
// failure as a catchable error (see SPEC_FULL.md §1, "Allocation
// discipline").
type Allocator interface {
	// Alloc returns a freshly allocated, zeroed buffer of length n, or
	// ok=false if the budget is exhausted.
	Alloc(n int) (buf []byte, ok bool)
}

// defaultAllocator never fails.
type defaultAllocator struct{}

func (defaultAllocator) Alloc(n int) ([]byte, bool) {
	return make([]byte, n), true
}

// Counters are opaque statistical hooks (spec.md §1, "Counters/tracing").
// The cache never inspects their return values; implementations are free
// to sample, aggregate, or export however they like.
type Counters interface {
	HitItem()
	MissItem()
	HitRange()
	MissRange()
	ManifestRead()
	Flush(nItems int)
}

// NoopCounters discards every event. It is the default.
type NoopCounters struct{}

func (NoopCounters) HitItem()      {}
func (NoopCounters) MissItem()     {}
func (NoopCounters) HitRange()     {}
func (NoopCounters) MissRange()    {}
func (NoopCounters) ManifestRead() {}
func (NoopCounters) Flush(int)     {}

// AtomicCounters is a lock-free [Counters] implementation built on
// sync/atomic counters, grounded on the openCount atomic.Int32 used for
// per-file bookkeeping in the teacher repo's locking layer.
type AtomicCounters struct {
	ItemHits, ItemMisses   atomic.Uint64
	RangeHits, RangeMisses atomic.Uint64
	ManifestReads          atomic.Uint64
	Flushes                atomic.Uint64
	FlushedItems           atomic.Uint64
}

func (c *AtomicCounters) HitItem()      { c.ItemHits.Add(1) }
func (c *AtomicCounters) MissItem()     { c.ItemMisses.Add(1) }
func (c *AtomicCounters) HitRange()     { c.RangeHits.Add(1) }
func (c *AtomicCounters) MissRange()    { c.RangeMisses.Add(1) }
func (c *AtomicCounters) ManifestRead() { c.ManifestReads.Add(1) }

func (c *AtomicCounters) Flush(nItems int) {
	c.Flushes.Add(1)
	c.FlushedItems.Add(uint64(nItems))
}

// Options configures a new [Cache].
type Options struct {
	// Manifest answers reads for key ranges not yet represented in the
	// cache. Required.
	Manifest ManifestReader

	// Segments accepts flushed dirty items. Required for [Cache.DirtySeg]
	// but may be nil for cache instances that never flush.
	Segments SegmentWriter

	// MaxKeySize caps key length. Defaults to [MaxKeySize]; zero, negative
	// or larger values are replaced by [MaxKeySize].
	MaxKeySize int

	// Allocator carries out key/value allocations outside the lock.
	// Defaults to a never-failing allocator.
	Allocator Allocator

	// Counters receives opaque hit/miss/flush events. Defaults to
	// [NoopCounters].
	Counters Counters
}

func (o Options) withDefaults() Options {
	if o.MaxKeySize <= 0 || o.MaxKeySize > MaxKeySize {
		o.MaxKeySize = MaxKeySize
	}

	if o.Allocator == nil {
		o.Allocator = defaultAllocator{}
	}

	if o.Counters == nil {
		o.Counters = NoopCounters{}
	}

	return o
}

package itemcache

import (
	"context"
	"fmt"
	"sync"
)

// Cache is the item cache described by spec.md §2: an ItemIndex, a
// RangeIndex, dirty accounting, and the operations layer that ties them
// to an external manifest and segment writer.
//
// A Cache must be constructed with [New]; the zero value is not usable.
type Cache struct {
	// mu is the single cache-wide exclusive lock from spec.md §5. It is
	// never held across a manifest read or a value allocation -- every
	// public method that may need one releases mu, calls out, and
	// reacquires mu before re-observing state.
	mu sync.Mutex

	items  *ItemIndex
	ranges *RangeIndex
	acc    accounting

	opts   Options
	closed bool
}

// New constructs an empty Cache.
func New(opts Options) *Cache {
	opts = opts.withDefaults()

	c := &Cache{opts: opts}
	c.items = newItemIndex(&c.acc, opts.Counters)
	c.ranges = newRangeIndex(opts.Counters)

	return c
}

// Close drops every item and range held by the cache by replacing both
// indexes with empty ones and resetting the dirty accounting, under the
// cache lock, and marks the cache closed: later operations return
// [ErrClosed].
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.items = newItemIndex(&c.acc, c.opts.Counters)
	c.ranges = newRangeIndex(c.opts.Counters)
	c.acc = accounting{}
}

// Ranges returns a snapshot of every coalesced coverage range currently
// held by the cache, in ascending order. It is meant for introspection
// (the demonstration CLI's "ranges" command, tests) rather than the hot
// path.
func (c *Cache) Ranges() []Range {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Range

	c.ranges.forEach(func(r *keyRange) bool {
		out = append(out, Range{Start: cloneBytes(r.start), End: cloneBytes(r.end)})

		return true
	})

	return out
}

func (c *Cache) checkOpen() error {
	if c.closed {
		return ErrClosed
	}

	return nil
}

func (c *Cache) checkKey(key []byte) error {
	if len(key) == 0 || len(key) > c.opts.MaxKeySize {
		return fmt.Errorf("key length %d not in 1..%d (MaxKeySize): %w", len(key), c.opts.MaxKeySize, ErrInvalid)
	}

	return nil
}

// readThrough issues one manifest read covering [start, end] and counts
// it. The cache lock must not be held by the caller.
func (c *Cache) readThrough(ctx context.Context, start, end []byte) error {
	c.opts.Counters.ManifestRead()

	if c.opts.Manifest == nil {
		return fmt.Errorf("itemcache: no ManifestReader configured: %w", ErrNotFound)
	}

	return c.opts.Manifest.ReadItems(ctx, c, start, end)
}

// lookupThrough implements the uniform retry loop of spec.md §4.3: find
// the item in ItemIndex; if absent, consult RangeIndex to distinguish
// known-absent from unknown; on unknown, drop the lock, read through the
// manifest, and retry. It returns the item found (live or tombstone), or
// a nil item with ErrNotFound once RangeIndex confirms absence.
func (c *Cache) lookupThrough(ctx context.Context, key []byte) (*item, error) {
	for {
		c.mu.Lock()

		if err := c.checkOpen(); err != nil {
			c.mu.Unlock()

			return nil, err
		}

		if n := c.items.findAny(key); n != nil {
			c.mu.Unlock()

			return n.val, nil
		}

		covered, end := c.ranges.check(key)
		c.mu.Unlock()

		if covered {
			return nil, ErrNotFound
		}

		if err := c.readThrough(ctx, key, end); err != nil {
			return nil, err
		}
	}
}

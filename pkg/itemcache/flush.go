package itemcache

import "context"

// HasDirty reports whether the cache currently holds any dirty item.
func (c *Cache) HasDirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.acc.nrDirtyItems > 0
}

// DirtyFitsSingle reports whether every currently dirty item would fit in
// a single segment, per the configured [SegmentWriter].
func (c *Cache) DirtyFitsSingle() bool {
	c.mu.Lock()
	n, keyBytes, valBytes := int(c.acc.nrDirtyItems), c.acc.dirtyKeyBytes, c.acc.dirtyValBytes
	c.mu.Unlock()

	if c.opts.Segments == nil {
		return n == 0
	}

	return c.opts.Segments.FitsSingle(n, keyBytes, valBytes)
}

// DirtySeg flushes a sorted prefix of the dirty set to the configured
// [SegmentWriter], then clears SELF on each flushed item -- erasing it
// outright if it was a tombstone, since a flushed deletion no longer needs
// to shadow anything (spec.md §4.3, §4.5, "Flush").
//
// The prefix is bounded by [SegmentWriter.FitsSingle]: items are walked in
// key order, accumulating running key/value byte totals, and the walk
// stops at the first item that would make the cumulative totals not fit a
// single segment. A dirty set larger than one segment is therefore only
// partly drained per call; the remainder stays dirty for a subsequent
// DirtySeg.
//
// The writer calls happen with the cache lock released; the candidate
// prefix is snapshotted under the lock first, since iterating the
// dirty-bit traversal while segments mutate that same traversal's shape
// would be unsafe.
func (c *Cache) DirtySeg(ctx context.Context) error {
	c.mu.Lock()

	if err := c.checkOpen(); err != nil {
		c.mu.Unlock()

		return err
	}

	var dirty []*item

	for it := c.items.firstDirty(); it != nil; it = c.items.nextDirty(it) {
		dirty = append(dirty, it)
	}

	c.mu.Unlock()

	if len(dirty) == 0 {
		return nil
	}

	if c.opts.Segments == nil {
		return ErrInvalid
	}

	var (
		batch    []*item
		keyBytes uint64
		valBytes uint64
	)

	for _, it := range dirty {
		wantKeyBytes := keyBytes + uint64(len(it.key))
		wantValBytes := valBytes + uint64(len(it.val))

		if !c.opts.Segments.FitsSingle(len(batch)+1, wantKeyBytes, wantValBytes) {
			break
		}

		batch = append(batch, it)
		keyBytes = wantKeyBytes
		valBytes = wantValBytes
	}

	if len(batch) == 0 {
		// Not even the first dirty item fits a single segment; the
		// writer is misconfigured or the item itself is oversized.
		return ErrInvalid
	}

	for i, it := range batch {
		flags := ItemFlags(0)
		if it.deletion {
			flags = FlagDeletion
		}

		if i == 0 {
			c.opts.Segments.FirstItem(it.key, it.val, flags, len(batch), keyBytes)
		} else {
			c.opts.Segments.AppendItem(it.key, it.val, flags)
		}
	}

	c.mu.Lock()

	for _, it := range batch {
		if it.node == nil {
			// Erased by a concurrent DeleteDirty/Create race that
			// reused the key between the snapshot and now.
			continue
		}

		if it.deletion {
			c.items.eraseNode(it.node)
		} else {
			c.items.clearDirty(it)
		}
	}

	c.mu.Unlock()

	c.opts.Counters.Flush(len(batch))

	return nil
}

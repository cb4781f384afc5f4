package itemcache

import "context"

// Lookup returns the live item at key, reading through the manifest if the
// cache cannot yet answer for key (spec.md §4.3). It returns ErrNotFound
// if key is known to be absent, whether because it was never present or
// because it was deleted.
func (c *Cache) Lookup(ctx context.Context, key []byte) (Item, error) {
	if err := c.checkKey(key); err != nil {
		return Item{}, err
	}

	it, err := c.lookupThrough(ctx, key)
	if err != nil {
		return Item{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if it.node == nil || it.deletion {
		return Item{}, ErrNotFound
	}

	return it.snapshot(), nil
}

// LookupExact answers from cached state only: it never reads through the
// manifest. found is false if key is not currently held in the cache at
// all, which is distinct from key being a known tombstone. size is the
// value length the caller expects the live item to carry; a live item
// whose value length differs is reported as ErrCorruption rather than
// silently handed back (spec.md §4.3, "lookup_exact").
func (c *Cache) LookupExact(key []byte, size int) (it Item, found, deleted bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.items.findAny(key)
	if n == nil {
		return Item{}, false, false, nil
	}

	if n.val.deletion {
		return Item{}, true, true, nil
	}

	if len(n.val.val) != size {
		return Item{}, true, false, ErrCorruption
	}

	return n.val.snapshot(), true, false, nil
}

// Next returns the first live item whose key is at or after the successor
// of key, reading through the manifest as needed to close gaps in coverage
// until either a live item is found or coverage is confirmed all the way
// to the end of the keyspace. The successor is key incremented as a
// fixed-width big-endian counter (incKey), so among keys of key's length
// this is the first live item strictly greater than key; longer keys that
// sort between key and its successor (e.g. "aa" after "a") are not
// returned. An all-0xFF key is its own successor.
//
// Each pass re-checks coverage starting at the same cursor: a manifest
// read only ever grows coverage, it never advances the cursor, so the
// newly covered span is always inspected for a live item before the
// cursor moves past it. The cursor only advances past [cursor, boundary]
// once that span is confirmed covered AND confirmed empty.
func (c *Cache) Next(ctx context.Context, key []byte) (Item, error) {
	cursor := cloneBytes(key)

	for {
		c.mu.Lock()

		if err := c.checkOpen(); err != nil {
			c.mu.Unlock()

			return Item{}, err
		}

		succ := incOrSelf(cursor)
		covered, boundary := c.ranges.check(succ)

		if !covered {
			c.mu.Unlock()

			if err := c.readThrough(ctx, succ, boundary); err != nil {
				return Item{}, err
			}

			continue
		}

		it := c.firstLiveInSpan(succ, boundary)
		c.mu.Unlock()

		if it != nil {
			return it.snapshot(), nil
		}

		if isMaxKey(boundary) {
			return Item{}, ErrNotFound
		}

		cursor = boundary
	}
}

// firstLiveInSpan returns the first live item with lo <= key <= hi, or nil
// if the span (known to be fully covered) holds no live item.
func (c *Cache) firstLiveInSpan(lo, hi []byte) *item {
	found, _, next := c.items.locate(lo)
	if found != nil {
		next = found
	}

	for next != nil && compareKeys(next.key, hi) <= 0 {
		if !next.deletion {
			return next
		}

		_, _, nx := c.items.locate(next.key)
		next = nx
	}

	return nil
}

// incOrSelf returns the successor of k for range-lookup purposes, or k
// itself if k has no successor (all 0xFF).
func incOrSelf(k []byte) []byte {
	if next, ok := incKey(k); ok {
		return next
	}

	return k
}

// NextSame returns the item [Cache.Next] returns for key, enforcing that the returned key is the same length as key. scoutfs item
// keys encode a fixed-width shape per key type, so a successor of a
// different length means the walk crossed into a different kind of key;
// that is reported as ErrCorruption rather than silently handed back
// (spec.md §4.3, §7).
func (c *Cache) NextSame(ctx context.Context, key []byte) (Item, error) {
	it, err := c.Next(ctx, key)
	if err != nil {
		return Item{}, err
	}

	if len(it.Key) != len(key) {
		return Item{}, ErrCorruption
	}

	return it, nil
}

// NextSameMin behaves like NextSame but additionally requires the
// returned value to be at least minValLen bytes; a shorter value is also
// reported as ErrCorruption (spec.md §4.3, §7).
func (c *Cache) NextSameMin(ctx context.Context, key []byte, minValLen int) (Item, error) {
	if minValLen < 0 {
		return Item{}, ErrInvalid
	}

	it, err := c.NextSame(ctx, key)
	if err != nil {
		return Item{}, err
	}

	if len(it.Value) < minValLen {
		return Item{}, ErrCorruption
	}

	return it, nil
}

// Create inserts a brand-new dirty item at key. It never reads through the
// manifest (spec.md §4.3, "Create never blocks on the manifest"): callers
// are responsible for knowing key is not already persisted. It returns
// ErrExists if a live item already occupies key in the cache.
func (c *Cache) Create(ctx context.Context, key, val []byte) error {
	if err := c.checkKey(key); err != nil {
		return err
	}

	allocKey, ok := c.opts.Allocator.Alloc(len(key))
	if !ok {
		return ErrOutOfMemory
	}

	copy(allocKey, key)

	allocVal, ok := c.opts.Allocator.Alloc(len(val))
	if !ok {
		return ErrOutOfMemory
	}

	copy(allocVal, val)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkOpen(); err != nil {
		return err
	}

	it := &item{key: allocKey, val: allocVal}
	if err := c.items.insert(it); err != nil {
		return err
	}

	c.items.markDirty(it)

	return nil
}

// Update replaces the value of the live item at key, reading through the
// manifest as needed and marking the item dirty. It returns ErrNotFound if
// key is absent or tombstoned.
func (c *Cache) Update(ctx context.Context, key, val []byte) error {
	if err := c.checkKey(key); err != nil {
		return err
	}

	allocVal, ok := c.opts.Allocator.Alloc(len(val))
	if !ok {
		return ErrOutOfMemory
	}

	copy(allocVal, val)

	it, err := c.lookupThrough(ctx, key)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if it.node == nil || it.deletion {
		return ErrNotFound
	}

	oldLen := len(it.val)
	wasDirty := it.isDirty()
	it.val = allocVal

	if wasDirty {
		c.acc.replaceValueLen(oldLen, len(it.val))
	} else {
		c.items.markDirty(it)
	}

	return nil
}

// Dirty marks the live item at key dirty without changing its value,
// reading through the manifest as needed.
func (c *Cache) Dirty(ctx context.Context, key []byte) error {
	if err := c.checkKey(key); err != nil {
		return err
	}

	it, err := c.lookupThrough(ctx, key)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if it.node == nil || it.deletion {
		return ErrNotFound
	}

	c.items.markDirty(it)

	return nil
}

// Delete turns the live item at key into a dirty tombstone, reading
// through the manifest as needed. It returns ErrNotFound if key is
// already absent or already a tombstone.
func (c *Cache) Delete(ctx context.Context, key []byte) error {
	if err := c.checkKey(key); err != nil {
		return err
	}

	it, err := c.lookupThrough(ctx, key)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if it.node == nil || it.deletion {
		return ErrNotFound
	}

	oldLen := len(it.val)
	it.val = nil
	it.deletion = true

	if it.isDirty() {
		c.acc.replaceValueLen(oldLen, 0)
	} else {
		c.items.markDirty(it)
	}

	return nil
}

// DeleteDirty removes a dirty, never-flushed item from the cache entirely,
// without leaving a tombstone behind. It is meant for rolling back a
// [Cache.Create] that has not yet been flushed: since the item was never
// written to a segment, no tombstone is needed to shadow it. It returns
// ErrNotFound if key is not currently cached, or ErrInvalid if the item is
// not dirty.
func (c *Cache) DeleteDirty(key []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkOpen(); err != nil {
		return err
	}

	n := c.items.findAny(key)
	if n == nil {
		return ErrNotFound
	}

	if !n.val.isDirty() {
		return ErrInvalid
	}

	c.items.eraseNode(n)

	return nil
}

// DeleteMany deletes every key in keys, stopping at the first error. Keys
// already absent or already tombstoned are skipped rather than treated as
// an error, so DeleteMany can be used idempotently.
func (c *Cache) DeleteMany(ctx context.Context, keys [][]byte) error {
	for _, key := range keys {
		if err := c.Delete(ctx, key); err != nil && err != ErrNotFound {
			return err
		}
	}

	return nil
}

package itemcache

// AddBatch installs one item learned from the manifest. It is meant to be
// called from inside a [ManifestReader.ReadItems] implementation, once per
// item found in the requested range, before the single closing call to
// [Cache.InsertBatch] (spec.md §4.3, §6).
//
// Key and value are copied via the configured Allocator before the cache
// lock is taken, matching the allocate-outside-the-lock discipline used
// throughout the package. A key already present in the cache -- whether
// from a concurrent reader racing the same range, or from a local write
// that landed first -- is left untouched: the cache's own state always
// wins over a manifest read that raced it.
func (c *Cache) AddBatch(key, val []byte, flags ItemFlags) error {
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

	if c.items.findAny(allocKey) != nil {
		return nil
	}

	it := &item{key: allocKey, val: allocVal, deletion: flags&FlagDeletion != 0}

	return c.items.insert(it)
}

// InsertBatch marks [start, end] as fully represented in the cache. It
// must be called exactly once per [ManifestReader.ReadItems] invocation,
// after every [Cache.AddBatch] call for that range has completed. Calling
// it more than once, or with an overlapping range from a racing reader, is
// safe: RangeIndex coalesces duplicate and adjacent coverage.
func (c *Cache) InsertBatch(start, end []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkOpen(); err != nil {
		return err
	}

	c.ranges.insert(start, end)

	return nil
}

// Package model provides a deliberately simple, in-memory reference model
// of itemcache.Cache's externally observable behavior, for metamorphic
// testing against the real implementation.
//
// The model favors clarity over performance: entries are kept in a sorted
// slice searched with sort.Search, inserts shift the slice, and range
// coverage is a plain slice scanned linearly. It is never meant to be
// fast, only obviously correct.
package model

import (
	"bytes"
	"sort"
)

// Entry mirrors one record's observable state.
type Entry struct {
	Key      string
	Value    []byte
	Deletion bool
	Dirty    bool
}

// Range is a closed, inclusive key range known to be fully represented.
type Range struct {
	Start, End []byte
}

// Cache is the reference model: a sorted entry slice plus a coalesced set
// of covered ranges.
type Cache struct {
	entries []Entry // sorted by Key
	ranges  []Range // sorted, disjoint, non-touching
}

// New returns an empty model cache.
func New() *Cache {
	return &Cache{}
}

func (c *Cache) find(key string) (idx int, ok bool) {
	idx = sort.Search(len(c.entries), func(i int) bool { return c.entries[i].Key >= key })
	ok = idx < len(c.entries) && c.entries[idx].Key == key

	return idx, ok
}

// Lookup returns the entry at key plus whether it is currently tracked by
// the model at all (found) -- a live item, a tombstone, or neither.
func (c *Cache) Lookup(key string) (entry Entry, found bool) {
	idx, ok := c.find(key)
	if !ok {
		return Entry{}, false
	}

	return c.entries[idx], true
}

// Covered reports whether key falls within a range the model considers
// fully represented.
func (c *Cache) Covered(key []byte) bool {
	for _, r := range c.ranges {
		if bytes.Compare(key, r.Start) >= 0 && bytes.Compare(key, r.End) <= 0 {
			return true
		}
	}

	return false
}

// MarkCovered records [start, end] as fully represented, coalescing with
// any range it overlaps or touches.
func (c *Cache) MarkCovered(start, end []byte) {
	ns, ne := append([]byte(nil), start...), append([]byte(nil), end...)

	var kept []Range

	for _, r := range c.ranges {
		if touches(ns, ne, r.Start, r.End) {
			if bytes.Compare(r.Start, ns) < 0 {
				ns = r.Start
			}

			if bytes.Compare(r.End, ne) > 0 {
				ne = r.End
			}

			continue
		}

		kept = append(kept, r)
	}

	kept = append(kept, Range{Start: ns, End: ne})
	sort.Slice(kept, func(i, j int) bool { return bytes.Compare(kept[i].Start, kept[j].Start) < 0 })

	c.ranges = kept
}

func touches(aStart, aEnd, bStart, bEnd []byte) bool {
	if bytes.Compare(aEnd, bStart) < 0 {
		return bytes.Compare(incKey(aEnd), bStart) >= 0
	}

	if bytes.Compare(bEnd, aStart) < 0 {
		return bytes.Compare(incKey(bEnd), aStart) >= 0
	}

	return true
}

func incKey(k []byte) []byte {
	out := append([]byte(nil), k...)

	for i := len(out) - 1; i >= 0; i-- {
		if out[i] != 0xFF {
			out[i]++

			return out
		}

		out[i] = 0
	}

	return out
}

// Install installs a non-dirty entry, as if learned from the manifest. An
// existing entry at key is left untouched.
func (c *Cache) Install(key string, val []byte, deletion bool) {
	idx, ok := c.find(key)
	if ok {
		return
	}

	c.insertAt(idx, Entry{Key: key, Value: append([]byte(nil), val...), Deletion: deletion})
}

func (c *Cache) insertAt(idx int, e Entry) {
	c.entries = append(c.entries, Entry{})
	copy(c.entries[idx+1:], c.entries[idx:])
	c.entries[idx] = e
}

// Create inserts a new dirty entry. ok is false if a live entry already
// exists at key.
func (c *Cache) Create(key string, val []byte) (ok bool) {
	idx, exists := c.find(key)
	if exists && !c.entries[idx].Deletion {
		return false
	}

	e := Entry{Key: key, Value: append([]byte(nil), val...), Dirty: true}

	if exists {
		c.entries[idx] = e
	} else {
		c.insertAt(idx, e)
	}

	return true
}

// Update replaces the value of the live entry at key. ok is false if key
// is absent or tombstoned.
func (c *Cache) Update(key string, val []byte) (ok bool) {
	idx, exists := c.find(key)
	if !exists || c.entries[idx].Deletion {
		return false
	}

	c.entries[idx].Value = append([]byte(nil), val...)
	c.entries[idx].Dirty = true

	return true
}

// Dirty marks the live entry at key dirty without changing its value.
func (c *Cache) Dirty(key string) (ok bool) {
	idx, exists := c.find(key)
	if !exists || c.entries[idx].Deletion {
		return false
	}

	c.entries[idx].Dirty = true

	return true
}

// Delete turns the live entry at key into a dirty tombstone.
func (c *Cache) Delete(key string) (ok bool) {
	idx, exists := c.find(key)
	if !exists || c.entries[idx].Deletion {
		return false
	}

	c.entries[idx].Value = nil
	c.entries[idx].Deletion = true
	c.entries[idx].Dirty = true

	return true
}

// HasDirty reports whether any tracked entry is dirty.
func (c *Cache) HasDirty() bool {
	for _, e := range c.entries {
		if e.Dirty {
			return true
		}
	}

	return false
}

// FlushDirty returns every dirty entry in key order and clears dirty
// state, erasing tombstones outright.
func (c *Cache) FlushDirty() []Entry {
	var flushed []Entry

	kept := c.entries[:0]

	for _, e := range c.entries {
		if !e.Dirty {
			kept = append(kept, e)

			continue
		}

		flushed = append(flushed, e)

		if !e.Deletion {
			e.Dirty = false
			kept = append(kept, e)
		}
	}

	c.entries = kept

	return flushed
}

// Entries returns every tracked entry (live and tombstoned) in key order.
func (c *Cache) Entries() []Entry {
	return append([]Entry(nil), c.entries...)
}

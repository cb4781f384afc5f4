// Package memmanifest is a pure in-memory stand-in for a segment manifest
// and segment writer, used by itemcache tests and by the icache CLI's
// demo mode to exercise a Cache without touching disk.
package memmanifest

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/calvinalkan/itemcache/pkg/itemcache"
)

type record struct {
	key      []byte
	val      []byte
	deletion bool
}

// Manifest holds the full keyspace as a sorted slice and answers
// ReadItems by binary-searching into it. It also collects every batch
// flushed to it through the [itemcache.SegmentWriter] interface, so
// tests can assert on what a Cache decided to persist.
type Manifest struct {
	mu      sync.Mutex
	records []record

	flushed [][]itemcache.Item

	maxItems int
}

// New returns an empty Manifest.
func New() *Manifest {
	return &Manifest{}
}

// LimitItems caps the number of items FitsSingle reports fitting in a
// single segment, letting tests exercise a [itemcache.Cache.DirtySeg] call
// that must split a dirty set across multiple flushes. n <= 0 means
// unlimited, the default.
func (m *Manifest) LimitItems(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.maxItems = n
}

// Seed installs key/val directly, as if it had already been flushed by
// some earlier session. Keys must be inserted in ascending, non-colliding
// order; Seed panics otherwise, since it exists only to set up test
// fixtures.
func (m *Manifest) Seed(key, val []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.records) > 0 && bytes.Compare(m.records[len(m.records)-1].key, key) >= 0 {
		panic("memmanifest: Seed requires strictly ascending keys")
	}

	m.records = append(m.records, record{key: append([]byte(nil), key...), val: append([]byte(nil), val...)})
}

// ReadItems implements [itemcache.ManifestReader]: it answers entirely
// from the in-memory slice and always reports the full requested range as
// covered, regardless of whether any record fell inside it.
func (m *Manifest) ReadItems(ctx context.Context, cache *itemcache.Cache, start, end []byte) error {
	m.mu.Lock()
	lo := sort.Search(len(m.records), func(i int) bool { return bytes.Compare(m.records[i].key, start) >= 0 })
	hi := sort.Search(len(m.records), func(i int) bool { return bytes.Compare(m.records[i].key, end) > 0 })
	found := append([]record(nil), m.records[lo:hi]...)
	m.mu.Unlock()

	for _, r := range found {
		if err := cache.AddBatch(r.key, r.val, 0); err != nil {
			return fmt.Errorf("memmanifest: add batch: %w", err)
		}
	}

	return cache.InsertBatch(start, end)
}

// FitsSingle implements [itemcache.SegmentWriter]. With no limit configured
// via [Manifest.LimitItems] it never refuses a flush; otherwise it refuses
// once n exceeds the configured item count.
func (m *Manifest) FitsSingle(n int, keyBytes, valBytes uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.maxItems <= 0 {
		return true
	}

	return n <= m.maxItems
}

// FirstItem implements [itemcache.SegmentWriter].
func (m *Manifest) FirstItem(key, val []byte, flags itemcache.ItemFlags, n int, keyBytes uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.flushed = append(m.flushed, nil)
	m.appendLocked(key, val, flags)
}

// AppendItem implements [itemcache.SegmentWriter].
func (m *Manifest) AppendItem(key, val []byte, flags itemcache.ItemFlags) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.appendLocked(key, val, flags)
}

func (m *Manifest) appendLocked(key, val []byte, flags itemcache.ItemFlags) {
	batch := len(m.flushed) - 1
	it := itemcache.Item{
		Key:      append([]byte(nil), key...),
		Value:    append([]byte(nil), val...),
		Deletion: flags&itemcache.FlagDeletion != 0,
	}
	m.flushed[batch] = append(m.flushed[batch], it)

	idx := sort.Search(len(m.records), func(i int) bool { return bytes.Compare(m.records[i].key, key) >= 0 })

	rec := record{key: it.Key, val: it.Value, deletion: it.Deletion}

	switch {
	case idx < len(m.records) && bytes.Equal(m.records[idx].key, key):
		if it.Deletion {
			m.records = append(m.records[:idx], m.records[idx+1:]...)
		} else {
			m.records[idx] = rec
		}
	case it.Deletion:
		// Deleting a key the manifest never had is a no-op.
	default:
		m.records = append(m.records, record{})
		copy(m.records[idx+1:], m.records[idx:])
		m.records[idx] = rec
	}
}

// Flushed returns every batch handed to the [itemcache.SegmentWriter]
// interface so far, most recent last.
func (m *Manifest) Flushed() [][]itemcache.Item {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([][]itemcache.Item(nil), m.flushed...)
}

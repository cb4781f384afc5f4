package itemcache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestItem(key string) *item {
	return &item{key: []byte(key)}
}

func TestItemIndexInsertFind(t *testing.T) {
	var acc accounting

	idx := newItemIndex(&acc, NoopCounters{})

	a := newTestItem("a")
	require.NoError(t, idx.insert(a))

	require.Same(t, a, idx.find([]byte("a")))
	require.Nil(t, idx.find([]byte("b")))

	b := newTestItem("a")
	require.ErrorIs(t, idx.insert(b), ErrExists)
}

func TestItemIndexTombstoneReplace(t *testing.T) {
	var acc accounting

	idx := newItemIndex(&acc, NoopCounters{})

	a := newTestItem("a")
	a.deletion = true
	require.NoError(t, idx.insert(a))
	idx.markDirty(a)

	require.Nil(t, idx.find([]byte("a")))
	require.NotNil(t, idx.findAny([]byte("a")))

	b := newTestItem("a")
	b.val = []byte("new")
	require.NoError(t, idx.insert(b))

	require.Same(t, b, idx.find([]byte("a")))
	require.Equal(t, uint64(0), acc.nrDirtyItems)
}

func TestItemIndexDirtyTraversal(t *testing.T) {
	var acc accounting

	idx := newItemIndex(&acc, NoopCounters{})

	keys := []string{"a", "b", "c", "d", "e", "f", "g"}
	items := make(map[string]*item, len(keys))

	for _, k := range keys {
		it := newTestItem(k)
		require.NoError(t, idx.insert(it))
		items[k] = it
	}

	idx.markDirty(items["b"])
	idx.markDirty(items["e"])
	idx.markDirty(items["f"])

	var got []string

	for it := idx.firstDirty(); it != nil; it = idx.nextDirty(it) {
		got = append(got, string(it.key))
	}

	require.Equal(t, []string{"b", "e", "f"}, got)

	require.Equal(t, uint64(3), acc.nrDirtyItems)
	require.Equal(t, uint64(3), acc.dirtyKeyBytes)

	idx.clearDirty(items["e"])

	got = nil

	for it := idx.firstDirty(); it != nil; it = idx.nextDirty(it) {
		got = append(got, string(it.key))
	}

	require.Equal(t, []string{"b", "f"}, got)
	require.Equal(t, uint64(2), acc.nrDirtyItems)
}

func TestItemIndexDirtyTraversalAllDirty(t *testing.T) {
	var acc accounting

	idx := newItemIndex(&acc, NoopCounters{})

	keys := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}

	for _, k := range keys {
		it := newTestItem(k)
		require.NoError(t, idx.insert(it))
		idx.markDirty(it)
	}

	var got []string

	for it := idx.firstDirty(); it != nil; it = idx.nextDirty(it) {
		got = append(got, string(it.key))
	}

	require.Equal(t, keys, got)
}

func TestItemIndexEraseClearsDirtyAccounting(t *testing.T) {
	var acc accounting

	idx := newItemIndex(&acc, NoopCounters{})

	a := newTestItem("a")
	a.val = []byte("value")
	require.NoError(t, idx.insert(a))
	idx.markDirty(a)

	require.Equal(t, uint64(1), acc.nrDirtyItems)

	idx.erase(a)

	require.Equal(t, uint64(0), acc.nrDirtyItems)
	require.Equal(t, uint64(0), acc.dirtyKeyBytes)
	require.Equal(t, uint64(0), acc.dirtyValBytes)
	require.Nil(t, idx.findAny([]byte("a")))
}

func TestItemIndexRelocateOnTwoChildRemoval(t *testing.T) {
	var acc accounting

	idx := newItemIndex(&acc, NoopCounters{})

	keys := []string{"d", "b", "f", "a", "c", "e", "g"}
	items := make(map[string]*item, len(keys))

	for _, k := range keys {
		it := newTestItem(k)
		require.NoError(t, idx.insert(it))
		items[k] = it
	}

	// "d" has two children; removing it forces the in-order-successor
	// swap in avlTree.remove, which must fix up the relocated item's
	// node back-pointer.
	idx.erase(items["d"])

	for k, it := range items {
		if k == "d" {
			continue
		}

		require.NotNil(t, it.node, "item %s lost its node back-pointer", k)
		require.Same(t, it, it.node.val)
	}

	idx.markDirty(items["e"])
	require.Same(t, items["e"], idx.firstDirty())
}

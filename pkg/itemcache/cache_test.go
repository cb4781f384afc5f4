package itemcache_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/itemcache/internal/memmanifest"
	"github.com/calvinalkan/itemcache/pkg/itemcache"
)

func newTestCache(t *testing.T) (*itemcache.Cache, *memmanifest.Manifest) {
	t.Helper()

	mem := memmanifest.New()
	c := itemcache.New(itemcache.Options{Manifest: mem, Segments: mem})

	return c, mem
}

func TestCacheCreateLookup(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Create(ctx, []byte("a"), []byte("1")))

	it, err := c.Lookup(ctx, []byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), it.Value)
	require.True(t, it.Dirty)

	err = c.Create(ctx, []byte("a"), []byte("2"))
	require.ErrorIs(t, err, itemcache.ErrExists)
}

func TestCacheLookupReadsThroughManifest(t *testing.T) {
	c, mem := newTestCache(t)
	ctx := context.Background()

	mem.Seed([]byte("a"), []byte("from-manifest"))

	it, err := c.Lookup(ctx, []byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("from-manifest"), it.Value)
	require.False(t, it.Dirty)

	_, err = c.Lookup(ctx, []byte("zzz"))
	require.ErrorIs(t, err, itemcache.ErrNotFound)
}

func TestCacheUpdateDelete(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.ErrorIs(t, c.Update(ctx, []byte("a"), []byte("x")), itemcache.ErrNotFound)

	require.NoError(t, c.Create(ctx, []byte("a"), []byte("1")))
	require.NoError(t, c.Update(ctx, []byte("a"), []byte("2")))

	it, err := c.Lookup(ctx, []byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("2"), it.Value)

	require.NoError(t, c.Delete(ctx, []byte("a")))
	_, err = c.Lookup(ctx, []byte("a"))
	require.ErrorIs(t, err, itemcache.ErrNotFound)

	require.ErrorIs(t, c.Delete(ctx, []byte("a")), itemcache.ErrNotFound)
}

func TestCacheDeleteDirtyRollsBackCreate(t *testing.T) {
	c, mem := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Create(ctx, []byte("a"), []byte("1")))
	require.NoError(t, c.DeleteDirty([]byte("a")))

	it, found, _, err := c.LookupExact([]byte("a"), 0)
	require.NoError(t, err)
	require.False(t, found)
	require.Empty(t, it.Key)

	require.Empty(t, mem.Flushed())
}

func TestCacheFlushWritesDirtyItemsAndClearsThem(t *testing.T) {
	c, mem := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Create(ctx, []byte("a"), []byte("1")))
	require.NoError(t, c.Create(ctx, []byte("b"), []byte("2")))
	require.True(t, c.HasDirty())

	require.NoError(t, c.DirtySeg(ctx))

	require.False(t, c.HasDirty())

	flushed := mem.Flushed()
	require.Len(t, flushed, 1)
	require.Len(t, flushed[0], 2)
	require.Equal(t, []byte("a"), flushed[0][0].Key)
	require.Equal(t, []byte("b"), flushed[0][1].Key)

	it, err := c.Lookup(ctx, []byte("a"))
	require.NoError(t, err)
	require.False(t, it.Dirty)
}

func TestCacheFlushErasesTombstones(t *testing.T) {
	c, mem := newTestCache(t)
	ctx := context.Background()

	mem.Seed([]byte("a"), []byte("1"))

	_, err := c.Lookup(ctx, []byte("a"))
	require.NoError(t, err)

	require.NoError(t, c.Delete(ctx, []byte("a")))
	require.NoError(t, c.DirtySeg(ctx))

	_, found, _, err := c.LookupExact([]byte("a"), 0)
	require.NoError(t, err)
	require.False(t, found, "tombstone should be erased after flush")

	flushed := mem.Flushed()
	require.Len(t, flushed, 1)
	require.True(t, flushed[0][0].Deletion)
}

func TestCacheNextSkipsTombstonesAndReadsThrough(t *testing.T) {
	c, mem := newTestCache(t)
	ctx := context.Background()

	mem.Seed([]byte("a"), []byte("1"))
	mem.Seed([]byte("b"), []byte("2"))
	mem.Seed([]byte("c"), []byte("3"))

	it, err := c.Next(ctx, []byte(""))
	require.NoError(t, err)
	require.Equal(t, []byte("a"), it.Key)

	it, err = c.Next(ctx, []byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("b"), it.Key)

	_, err = c.Lookup(ctx, []byte("c"))
	require.NoError(t, err)
	require.NoError(t, c.Delete(ctx, []byte("c")))

	_, err = c.Next(ctx, []byte("b"))
	require.True(t, errors.Is(err, itemcache.ErrNotFound))
}

func TestCacheDirtySegBoundsBatchByFitsSingle(t *testing.T) {
	c, mem := newTestCache(t)
	ctx := context.Background()

	mem.LimitItems(2)

	require.NoError(t, c.Create(ctx, []byte("a"), []byte("1")))
	require.NoError(t, c.Create(ctx, []byte("b"), []byte("2")))
	require.NoError(t, c.Create(ctx, []byte("c"), []byte("3")))

	require.NoError(t, c.DirtySeg(ctx))

	flushed := mem.Flushed()
	require.Len(t, flushed, 1)
	require.Len(t, flushed[0], 2, "flush must stop at the FitsSingle boundary")
	require.Equal(t, []byte("a"), flushed[0][0].Key)
	require.Equal(t, []byte("b"), flushed[0][1].Key)

	require.True(t, c.HasDirty(), "the item past the boundary must remain dirty")

	require.NoError(t, c.DirtySeg(ctx))

	flushed = mem.Flushed()
	require.Len(t, flushed, 2)
	require.Len(t, flushed[1], 1)
	require.Equal(t, []byte("c"), flushed[1][0].Key)
	require.False(t, c.HasDirty())
}

func TestCacheRanges(t *testing.T) {
	c, mem := newTestCache(t)
	ctx := context.Background()

	mem.Seed([]byte("a"), []byte("1"))
	mem.Seed([]byte("b"), []byte("2"))

	require.Empty(t, c.Ranges())

	_, err := c.Lookup(ctx, []byte("a"))
	require.NoError(t, err)

	rs := c.Ranges()
	require.Len(t, rs, 1)
	require.Equal(t, []byte("a"), rs[0].Start)
}

func TestCacheNextSame(t *testing.T) {
	c, mem := newTestCache(t)
	ctx := context.Background()

	mem.Seed([]byte("a1"), []byte("x"))
	mem.Seed([]byte("a2"), []byte("y"))
	mem.Seed([]byte("b1"), []byte("z"))

	it, err := c.NextSameMin(ctx, []byte("a0"), 1)
	require.NoError(t, err)
	require.Equal(t, []byte("a1"), it.Key)

	it, err = c.NextSame(ctx, it.Key)
	require.NoError(t, err)
	require.Equal(t, []byte("a2"), it.Key)

	_, err = c.NextSameMin(ctx, it.Key, 5)
	require.ErrorIs(t, err, itemcache.ErrCorruption, "value shorter than minValLen must surface corruption")
}

func TestCacheNextSameCorruptionOnLengthMismatch(t *testing.T) {
	c, mem := newTestCache(t)
	ctx := context.Background()

	// The only key at or above "a"'s successor "b" is "ba": the first
	// live item Next finds has a different length than the one-byte
	// query key, which NextSame must treat as corruption rather than
	// hand back silently.
	mem.Seed([]byte("ba"), []byte("2"))

	_, err := c.NextSame(ctx, []byte("a"))
	require.ErrorIs(t, err, itemcache.ErrCorruption)
}

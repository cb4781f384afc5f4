package itemcache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRangeIndexCoalesceOverlap(t *testing.T) {
	ri := newRangeIndex(NoopCounters{})

	ri.insert([]byte("a"), []byte("d"))
	ri.insert([]byte("c"), []byte("f"))

	require.Equal(t, 1, ri.count())

	r, ok := ri.coverageFor([]byte("e"))
	require.True(t, ok)
	require.Equal(t, []byte("a"), r.start)
	require.Equal(t, []byte("f"), r.end)
}

func TestRangeIndexCoalesceTouching(t *testing.T) {
	ri := newRangeIndex(NoopCounters{})

	ri.insert([]byte{1, 0}, []byte{1, 5})
	ri.insert([]byte{1, 6}, []byte{1, 10})

	require.Equal(t, 1, ri.count())

	r, ok := ri.coverageFor([]byte{1, 3})
	require.True(t, ok)
	require.Equal(t, []byte{1, 0}, r.start)
	require.Equal(t, []byte{1, 10}, r.end)
}

func TestRangeIndexDisjointStaysSeparate(t *testing.T) {
	ri := newRangeIndex(NoopCounters{})

	ri.insert([]byte{1, 0}, []byte{1, 5})
	ri.insert([]byte{1, 7}, []byte{1, 10})

	require.Equal(t, 2, ri.count())
}

func TestRangeIndexContainedInsertIsNoop(t *testing.T) {
	ri := newRangeIndex(NoopCounters{})

	ri.insert([]byte("a"), []byte("z"))
	ri.insert([]byte("m"), []byte("n"))

	require.Equal(t, 1, ri.count())

	r, ok := ri.coverageFor([]byte("m"))
	require.True(t, ok)
	require.Equal(t, []byte("a"), r.start)
	require.Equal(t, []byte("z"), r.end)
}

func TestRangeIndexCheckBoundary(t *testing.T) {
	ri := newRangeIndex(NoopCounters{})

	ri.insert([]byte("b"), []byte("d"))
	ri.insert([]byte("h"), []byte("k"))

	covered, boundary := ri.check([]byte("c"))
	require.True(t, covered)
	require.Equal(t, []byte("d"), boundary)

	covered, boundary = ri.check([]byte("f"))
	require.False(t, covered)
	require.Equal(t, []byte("h"), boundary)

	covered, boundary = ri.check([]byte("z"))
	require.False(t, covered)
	require.Equal(t, maxKey(1), boundary)
}

func TestIncKey(t *testing.T) {
	next, ok := incKey([]byte{0, 0})
	require.True(t, ok)
	require.Equal(t, []byte{0, 1}, next)

	next, ok = incKey([]byte{0, 0xFF})
	require.True(t, ok)
	require.Equal(t, []byte{1, 0}, next)

	_, ok = incKey([]byte{0xFF, 0xFF})
	require.False(t, ok)
}

package itemcache

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func intCmp(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func TestAVLTreeInsertFindOrder(t *testing.T) {
	tr := newAVLTree(intCmp, nil)

	values := []int{5, 3, 8, 1, 4, 7, 9, 2, 6, 0}
	for _, v := range values {
		tr.insert(v)
	}

	for _, v := range values {
		n := tr.find(v)
		require.NotNil(t, n)
		require.Equal(t, v, n.val)
	}

	var got []int
	tr.inorder(func(n *avlNode[int]) bool { got = append(got, n.val); return true })

	require.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestAVLTreeStaysBalanced(t *testing.T) {
	tr := newAVLTree(intCmp, nil)

	rng := rand.New(rand.NewSource(1))

	var inserted []int

	for i := 0; i < 2000; i++ {
		v := rng.Intn(100000)
		if tr.find(v) != nil {
			continue
		}

		tr.insert(v)
		inserted = append(inserted, v)
		requireBalanced(t, tr.root)
	}

	rng.Shuffle(len(inserted), func(i, j int) { inserted[i], inserted[j] = inserted[j], inserted[i] })

	for _, v := range inserted {
		n := tr.find(v)
		require.NotNil(t, n)
		tr.remove(n)
		requireBalanced(t, tr.root)
	}

	require.Nil(t, tr.root)
}

func requireBalanced[T any](t *testing.T, n *avlNode[T]) {
	t.Helper()

	if n == nil {
		return
	}

	bf := balanceFactor(n)
	require.GreaterOrEqual(t, bf, -1)
	require.LessOrEqual(t, bf, 1)

	wantHeight := 1 + maxInt(height(n.left), height(n.right))
	require.Equal(t, wantHeight, n.height)

	if n.left != nil {
		require.Equal(t, n, n.left.parent)
		requireBalanced(t, n.left)
	}

	if n.right != nil {
		require.Equal(t, n, n.right.parent)
		requireBalanced(t, n.right)
	}
}

func TestAVLTreeSuccessorPredecessor(t *testing.T) {
	tr := newAVLTree(intCmp, nil)

	for _, v := range []int{10, 20, 30, 40, 50} {
		tr.insert(v)
	}

	n := tr.find(30)
	require.Equal(t, 40, tr.successor(n).val)
	require.Equal(t, 20, tr.predecessor(n).val)

	first := tr.first()
	require.Equal(t, 10, first.val)
	require.Nil(t, tr.predecessor(first))

	last := tr.last()
	require.Equal(t, 50, last.val)
	require.Nil(t, tr.successor(last))
}

func TestAVLTreeLocate(t *testing.T) {
	tr := newAVLTree(intCmp, nil)

	for _, v := range []int{10, 20, 30} {
		tr.insert(v)
	}

	found, prev, next := tr.locate(20)
	require.NotNil(t, found)
	require.Equal(t, 10, prev.val)
	require.Equal(t, 30, next.val)

	found, prev, next = tr.locate(25)
	require.Nil(t, found)
	require.Equal(t, 20, prev.val)
	require.Equal(t, 30, next.val)
}

package itemcache

// RangeIndex is the ordered, non-overlapping set of closed key ranges that
// are known to be fully represented in an ItemIndex (spec.md §4.2).
type RangeIndex struct {
	tree     *avlTree[*keyRange]
	counters Counters
}

func newRangeIndex(counters Counters) *RangeIndex {
	ri := &RangeIndex{counters: counters}
	ri.tree = newAVLTree(rangeCompare, nil).withRelocate(func(n *avlNode[*keyRange]) { n.val.node = n })

	return ri
}

// rangeCompare is the three-way range comparator from spec.md §4.2: it
// returns 0 whenever two ranges share a key OR touch with no gap between
// them, so that insert's coalescing loop merges adjacent coverage instead
// of leaving a zero-width hole in RangeIndex. Adjacency for arbitrary byte
// strings is defined via incKey: a and b touch when incrementing the
// lower range's end (as a big-endian byte counter) reaches the higher
// range's start. This is an explicit design choice (not pinned down by
// spec.md, which only defines this precisely for integer-like keys); see
// DESIGN.md.
func rangeCompare(a, b *keyRange) int {
	if compareKeys(a.end, b.start) < 0 {
		if succ, ok := incKey(a.end); ok && compareKeys(succ, b.start) >= 0 {
			return 0
		}

		return -1
	}

	if compareKeys(b.end, a.start) < 0 {
		if succ, ok := incKey(b.end); ok && compareKeys(succ, a.start) >= 0 {
			return 0
		}

		return 1
	}

	return 0
}

// incKey returns the lexicographically next byte string after k, treating
// k as a big-endian counter. ok is false if k is already all 0xFF (the
// maxKey sentinel), which has no successor.
func incKey(k []byte) (next []byte, ok bool) {
	out := cloneBytes(k)

	for i := len(out) - 1; i >= 0; i-- {
		if out[i] != 0xFF {
			out[i]++

			return out, true
		}

		out[i] = 0
	}

	return out, false
}

// check reports whether key is covered by some range. If covered,
// boundary is that range's end. If not covered, boundary is the start of
// the next range above key, or the maxKey sentinel if none exists.
func (ri *RangeIndex) check(key []byte) (covered bool, boundary []byte) {
	probe := &keyRange{start: key, end: key}

	n := ri.tree.find(probe)
	if n != nil && compareKeys(key, n.val.start) >= 0 && compareKeys(key, n.val.end) <= 0 {
		ri.counters.HitRange()

		return true, cloneBytes(n.val.end)
	}

	ri.counters.MissRange()

	// rangeCompare also matches a range that key only touches (key sits
	// just below its start or just above its end); such a range does not
	// cover key.
	var next *avlNode[*keyRange]

	switch {
	case n == nil:
		_, _, next = ri.tree.locate(probe)
	case compareKeys(key, n.val.start) < 0:
		next = n
	default:
		next = ri.tree.successor(n)
	}

	if next == nil {
		return false, maxKey(len(key))
	}

	return false, cloneBytes(next.val.start)
}

// coverageFor returns the stored range covering key, if any.
func (ri *RangeIndex) coverageFor(key []byte) (*keyRange, bool) {
	n := ri.tree.find(&keyRange{start: key, end: key})
	if n == nil || compareKeys(key, n.val.start) < 0 || compareKeys(key, n.val.end) > 0 {
		return nil, false
	}

	return n.val, true
}

// insert adds [start, end] to the covered set, coalescing with every
// range it overlaps or touches. Each pass of the loop removes at least
// one overlapping range and restarts the descent against the (possibly
// now larger) incoming range, which is guaranteed to terminate because
// the tree shrinks by one node per iteration (spec.md §4.2).
func (ri *RangeIndex) insert(start, end []byte) {
	nr := &keyRange{start: cloneBytes(start), end: cloneBytes(end)}

	for {
		n := ri.tree.find(nr)
		if n == nil {
			break
		}

		existing := n.val
		if compareKeys(existing.start, nr.start) < 0 {
			nr.start = existing.start
		}

		if compareKeys(existing.end, nr.end) > 0 {
			nr.end = existing.end
		}

		ri.tree.remove(n)
	}

	n := ri.tree.insert(nr)
	nr.node = n
}

// count returns the number of disjoint ranges currently stored (used by
// tests).
func (ri *RangeIndex) count() int {
	n := 0
	ri.tree.inorder(func(*avlNode[*keyRange]) bool { n++; return true })

	return n
}

// forEach walks every stored range in ascending order.
func (ri *RangeIndex) forEach(fn func(r *keyRange) bool) {
	ri.tree.inorder(func(n *avlNode[*keyRange]) bool { return fn(n.val) })
}

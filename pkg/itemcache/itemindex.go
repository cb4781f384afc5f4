package itemcache

// ItemIndex is the ordered index of cached items keyed by byte string
// (spec.md §4.1). Every node carries a three-bit dirty summary so dirty
// items can be enumerated in key order without a second tree.
type ItemIndex struct {
	tree     *avlTree[*item]
	acc      *accounting
	counters Counters
}

func newItemIndex(acc *accounting, counters Counters) *ItemIndex {
	idx := &ItemIndex{acc: acc, counters: counters}
	idx.tree = newAVLTree(
		func(a, b *item) int { return compareKeys(a.key, b.key) },
		recomputeItemBits,
	).withRelocate(func(n *avlNode[*item]) { n.val.node = n })

	return idx
}

// recomputeItemBits recomputes LEFT/RIGHT of n from its current children,
// preserving SELF. It never copies a child's bits verbatim -- the summary
// is direction-sensitive (spec.md §4.1) -- it always re-derives LEFT/RIGHT
// from whether that specific child's subtree is currently dirty.
func recomputeItemBits(n *avlNode[*item]) {
	bits := n.val.dirty & dirtySelf

	if n.left != nil && n.left.val.dirty != 0 {
		bits |= dirtyLeft
	}

	if n.right != nil && n.right.val.dirty != 0 {
		bits |= dirtyRight
	}

	n.val.dirty = bits
}

// find returns the live item at key, or nil if absent or tombstoned.
func (idx *ItemIndex) find(key []byte) *item {
	n := idx.tree.find(&item{key: key})
	if n == nil {
		idx.counters.MissItem()

		return nil
	}

	if n.val.deletion {
		idx.counters.MissItem()

		return nil
	}

	idx.counters.HitItem()

	return n.val
}

// findAny returns the node at key whether it is live or a tombstone.
func (idx *ItemIndex) findAny(key []byte) *avlNode[*item] {
	return idx.tree.find(&item{key: key})
}

// locate returns the exact item at key (live or tombstone) plus its
// in-order predecessor and successor, used to walk forward past a gap.
func (idx *ItemIndex) locate(key []byte) (found, prev, next *item) {
	f, p, nx := idx.tree.locate(&item{key: key})

	if f != nil {
		found = f.val
	}

	if p != nil {
		prev = p.val
	}

	if nx != nil {
		next = nx.val
	}

	return found, prev, next
}

// errItemExists is returned by insert when a live item already occupies the
// key; it is always translated to the public ErrExists.
var errItemExists = ErrExists

// insert places it into the index.
//
// If a live item already exists at it.key, insert returns errItemExists
// and leaves the index untouched (the caller is expected to free it).
// If a tombstone exists at it.key, the tombstone is erased (including its
// dirty accounting) first, then it takes its place.
func (idx *ItemIndex) insert(it *item) error {
	existing := idx.tree.find(it)
	if existing != nil {
		if !existing.val.deletion {
			return errItemExists
		}

		idx.eraseNode(existing)
	}

	n := idx.tree.insert(it)
	it.node = n

	return nil
}

// erase removes it from the index, clearing its dirty accounting first.
func (idx *ItemIndex) erase(it *item) {
	n := it.node
	if n == nil {
		n = idx.tree.find(it)
	}

	idx.eraseNode(n)
}

func (idx *ItemIndex) eraseNode(n *avlNode[*item]) {
	// Capture the item being erased before tree.remove runs: if n has two
	// children, remove swaps the in-order successor's value into n.val in
	// place, so n.val no longer identifies the item we're erasing once
	// remove returns.
	it := n.val

	if it.isDirty() {
		idx.acc.remove(it)
		it.dirty &^= dirtySelf
	}

	idx.tree.remove(n)
	it.node = nil
}

// markDirty sets SELF on it, updates accounting, and propagates the
// summary change up through ancestors, stopping as soon as a parent's
// bits are unchanged (spec.md §4.1).
func (idx *ItemIndex) markDirty(it *item) {
	if it.isDirty() {
		return
	}

	it.dirty |= dirtySelf
	idx.acc.add(it)
	idx.propagate(it.node)
}

// clearDirty unsets SELF on it, updates accounting, and propagates.
func (idx *ItemIndex) clearDirty(it *item) {
	if !it.isDirty() {
		return
	}

	idx.acc.remove(it)
	it.dirty &^= dirtySelf
	idx.propagate(it.node)
}

func (idx *ItemIndex) propagate(n *avlNode[*item]) {
	if n == nil {
		return
	}

	// The caller has just flipped SELF on n itself, so the walk starts at
	// n's parent: recomputing n would always compare equal and stop early.
	for n = n.parent; n != nil; n = n.parent {
		before := n.val.dirty
		recomputeItemBits(n)

		if n.val.dirty == before {
			return
		}
	}
}

// firstDirty returns the first dirty item in key order, or nil.
func (idx *ItemIndex) firstDirty() *item {
	root := idx.tree.root
	if root == nil || root.val.dirty == 0 {
		return nil
	}

	return descendFirstDirty(root).val
}

// nextDirty returns the dirty item following it in key order, or nil.
func (idx *ItemIndex) nextDirty(it *item) *item {
	n := nextDirtyNode(it.node)
	if n == nil {
		return nil
	}

	return n.val
}

func descendFirstDirty(n *avlNode[*item]) *avlNode[*item] {
	for {
		switch {
		case n.val.dirty&dirtyLeft != 0:
			n = n.left
		case n.val.dirty&dirtySelf != 0:
			return n
		case n.val.dirty&dirtyRight != 0:
			n = n.right
		default:
			return nil
		}
	}
}

func nextDirtyNode(n *avlNode[*item]) *avlNode[*item] {
	if n.right != nil && n.right.val.dirty != 0 {
		return descendFirstDirty(n.right)
	}

	cur := n

	for {
		par := cur.parent
		for par != nil && cur == par.right {
			cur = par
			par = par.parent
		}

		if par == nil {
			return nil
		}

		if par.val.dirty&dirtySelf != 0 {
			return par
		}

		if par.val.dirty&dirtyRight != 0 {
			return descendFirstDirty(par.right)
		}

		cur = par
	}
}

// forEach walks every item (live and tombstoned) in key order.
func (idx *ItemIndex) forEach(fn func(it *item) bool) {
	idx.tree.inorder(func(n *avlNode[*item]) bool {
		return fn(n.val)
	})
}

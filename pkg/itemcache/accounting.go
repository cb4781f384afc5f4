package itemcache

// accounting tracks running totals over items with the SELF dirty bit set
// (spec.md §3, invariant 3). It is updated by markDirty, clearDirty and
// eraseNode, and by replaceValueLen when Update or Delete changes the
// value of an item that is already dirty.
type accounting struct {
	nrDirtyItems  uint64
	dirtyKeyBytes uint64
	dirtyValBytes uint64
}

func (a *accounting) add(it *item) {
	a.nrDirtyItems++
	a.dirtyKeyBytes += uint64(len(it.key))
	a.dirtyValBytes += uint64(len(it.val))
}

func (a *accounting) remove(it *item) {
	a.nrDirtyItems--
	a.dirtyKeyBytes -= uint64(len(it.key))
	a.dirtyValBytes -= uint64(len(it.val))
}

// replaceValueLen adjusts dirtyValBytes when a dirty item's value changes
// length in place (used by Update and Delete on an item that is already
// dirty, instead of clearing and re-marking it -- see operations.go).
func (a *accounting) replaceValueLen(oldLen, newLen int) {
	a.dirtyValBytes -= uint64(oldLen)
	a.dirtyValBytes += uint64(newLen)
}

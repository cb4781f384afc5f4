package itemcache

import "fmt"

// AuditTree walks every invariant spec.md §3 lists and returns the first
// one it finds violated. It is expensive (full traversal of both trees)
// and meant for tests, not production use.
func AuditTree(c *Cache) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := auditItemTree(c.items); err != nil {
		return err
	}

	if err := auditRangeTree(c.ranges); err != nil {
		return err
	}

	return auditAccounting(c)
}

func auditItemTree(idx *ItemIndex) error {
	var (
		prev     *item
		gotDirty uint64
		gotKeyB  uint64
		gotValB  uint64
		err      error
	)

	idx.tree.inorder(func(n *avlNode[*item]) bool {
		if n.val.node != n {
			err = fmt.Errorf("item %x: node back-pointer does not point at its own node", n.val.key)

			return false
		}

		if prev != nil && compareKeys(prev.key, n.val.key) >= 0 {
			err = fmt.Errorf("item tree out of order at %x >= %x", prev.key, n.val.key)

			return false
		}

		if bf := balanceFactor(n); bf < -1 || bf > 1 {
			err = fmt.Errorf("item %x: avl balance factor %d out of range", n.val.key, bf)

			return false
		}

		wantHeight := 1 + maxInt(height(n.left), height(n.right))
		if n.height != wantHeight {
			err = fmt.Errorf("item %x: stored height %d, want %d", n.val.key, n.height, wantHeight)

			return false
		}

		wantBits := n.val.dirty & dirtySelf
		if n.left != nil && n.left.val.dirty != 0 {
			wantBits |= dirtyLeft
		}

		if n.right != nil && n.right.val.dirty != 0 {
			wantBits |= dirtyRight
		}

		if n.val.dirty != wantBits {
			err = fmt.Errorf("item %x: dirty summary %03b, want %03b", n.val.key, n.val.dirty, wantBits)

			return false
		}

		if n.val.deletion && len(n.val.val) != 0 {
			err = fmt.Errorf("item %x: tombstone carries a non-empty value", n.val.key)

			return false
		}

		if n.val.isDirty() {
			gotDirty++
			gotKeyB += uint64(len(n.val.key))
			gotValB += uint64(len(n.val.val))
		}

		prev = n.val

		return true
	})

	if err != nil {
		return err
	}

	if gotDirty != idx.acc.nrDirtyItems {
		return fmt.Errorf("accounting nrDirtyItems %d, actual %d", idx.acc.nrDirtyItems, gotDirty)
	}

	if gotKeyB != idx.acc.dirtyKeyBytes {
		return fmt.Errorf("accounting dirtyKeyBytes %d, actual %d", idx.acc.dirtyKeyBytes, gotKeyB)
	}

	if gotValB != idx.acc.dirtyValBytes {
		return fmt.Errorf("accounting dirtyValBytes %d, actual %d", idx.acc.dirtyValBytes, gotValB)
	}

	return nil
}

func auditRangeTree(ri *RangeIndex) error {
	var (
		prev *keyRange
		err  error
	)

	ri.tree.inorder(func(n *avlNode[*keyRange]) bool {
		if n.val.node != n {
			err = fmt.Errorf("range [%x,%x]: node back-pointer does not point at its own node", n.val.start, n.val.end)

			return false
		}

		if compareKeys(n.val.start, n.val.end) > 0 {
			err = fmt.Errorf("range [%x,%x]: start after end", n.val.start, n.val.end)

			return false
		}

		if bf := balanceFactor(n); bf < -1 || bf > 1 {
			err = fmt.Errorf("range [%x,%x]: avl balance factor %d out of range", n.val.start, n.val.end, bf)

			return false
		}

		if prev != nil {
			if compareKeys(prev.end, n.val.start) >= 0 {
				err = fmt.Errorf("ranges [%x,%x] and [%x,%x] overlap", prev.start, prev.end, n.val.start, n.val.end)

				return false
			}

			if succ, ok := incKey(prev.end); ok && compareKeys(succ, n.val.start) == 0 {
				err = fmt.Errorf("ranges [%x,%x] and [%x,%x] touch but were not coalesced", prev.start, prev.end, n.val.start, n.val.end)

				return false
			}
		}

		prev = n.val

		return true
	})

	return err
}

func auditAccounting(c *Cache) error {
	if c.acc.nrDirtyItems == 0 && (c.acc.dirtyKeyBytes != 0 || c.acc.dirtyValBytes != 0) {
		return fmt.Errorf("accounting has zero dirty items but nonzero byte totals")
	}

	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}

	return b
}

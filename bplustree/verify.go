package bplustree

import (
	"fmt"

	"diskindex/page"
)

// VerifyIntegrity walks the whole tree and checks the structural
// invariants a correct B+-tree must maintain outside of an in-flight
// structural transition: parent pointers agree with actual placement,
// keys within a node are sorted and duplicate-free, every key in a
// subtree falls within the bounds its parent separator implies, node
// sizes stay within [min_size, max_size] (the root excepted), and keys
// along the leaf chain, walked from the leftmost leaf, strictly increase.
// It does not check that the chain reaches every leaf. It returns every
// violation found rather than stopping at the first.
func (t *BPlusTree) VerifyIntegrity() []error {
	t.rwlatch.RLock()
	root := t.rootPageID
	t.rwlatch.RUnlock()
	if root == page.InvalidID {
		return nil
	}

	var errs []error
	firstLeaf := t.verifyNode(root, page.InvalidID, nil, nil, true, &errs)
	t.verifyLeafChain(firstLeaf, &errs)
	return errs
}

// verifyNode recurses into id, checking the invariants that don't need
// cross-subtree context, and returns the leftmost leaf page id reachable
// under id (for the caller to kick off a leaf-chain walk from the true
// left edge of the tree).
func (t *BPlusTree) verifyNode(id, expectedParent int64, lowerBound, upperBound []byte, isRoot bool, errs *[]error) int64 {
	pg, err := t.pool.Fetch(id)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("bplustree: fetch %d: %w", id, err))
		return page.InvalidID
	}
	pg.RLock()
	defer func() {
		pg.RUnlock()
		t.pool.Unpin(id, false)
	}()

	if pageType(pg) == PageTypeLeaf {
		leaf := NewLeafPage(pg)
		if leaf.ParentPageID() != expectedParent {
			*errs = append(*errs, fmt.Errorf("bplustree: leaf %d parent=%d want %d", id, leaf.ParentPageID(), expectedParent))
		}
		if !isRoot {
			sz := leaf.Size()
			if sz < minSize(leaf.MaxSize()) || sz > leaf.MaxSize() {
				*errs = append(*errs, fmt.Errorf("bplustree: leaf %d size=%d out of [%d,%d]", id, sz, minSize(leaf.MaxSize()), leaf.MaxSize()))
			}
		}
		t.verifySortedBounded(id, leaf, lowerBound, upperBound, errs)
		return id
	}

	internal := NewInternalPage(pg)
	if internal.ParentPageID() != expectedParent {
		*errs = append(*errs, fmt.Errorf("bplustree: internal %d parent=%d want %d", id, internal.ParentPageID(), expectedParent))
	}
	if !isRoot {
		sz := internal.Size()
		if sz < internalMinSize(internal.MaxSize()) || sz > internal.MaxSize() {
			*errs = append(*errs, fmt.Errorf("bplustree: internal %d size=%d out of [%d,%d]", id, sz, internalMinSize(internal.MaxSize()), internal.MaxSize()))
		}
	} else if internal.Size() < 2 {
		*errs = append(*errs, fmt.Errorf("bplustree: root internal %d has size %d < 2", id, internal.Size()))
	}

	size := int(internal.Size())
	for i := 1; i < size; i++ {
		if t.cmp(internal.KeyAt(i-1), internal.KeyAt(i)) >= 0 && i > 1 {
			*errs = append(*errs, fmt.Errorf("bplustree: internal %d keys not strictly increasing at slot %d", id, i))
		}
	}

	var firstLeaf int64 = page.InvalidID
	for i := 0; i < size; i++ {
		childLower := lowerBound
		childUpper := upperBound
		if i > 0 {
			childLower = internal.KeyAt(i)
		}
		if i < size-1 {
			childUpper = internal.KeyAt(i + 1)
		}
		leftmost := t.verifyNode(internal.ValueAt(i), id, childLower, childUpper, false, errs)
		if firstLeaf == page.InvalidID {
			firstLeaf = leftmost
		}
	}
	return firstLeaf
}

func (t *BPlusTree) verifySortedBounded(id int64, leaf *LeafPage, lower, upper []byte, errs *[]error) {
	n := int(leaf.Size())
	for i := 1; i < n; i++ {
		if t.cmp(leaf.KeyAt(i-1), leaf.KeyAt(i)) >= 0 {
			*errs = append(*errs, fmt.Errorf("bplustree: leaf %d keys not strictly increasing at slot %d", id, i))
		}
	}
	if n == 0 {
		return
	}
	if lower != nil && t.cmp(leaf.KeyAt(0), lower) < 0 {
		*errs = append(*errs, fmt.Errorf("bplustree: leaf %d first key below separator lower bound", id))
	}
	if upper != nil && t.cmp(leaf.KeyAt(n-1), upper) >= 0 {
		*errs = append(*errs, fmt.Errorf("bplustree: leaf %d last key at/above separator upper bound", id))
	}
}

func (t *BPlusTree) verifyLeafChain(firstLeaf int64, errs *[]error) {
	if firstLeaf == page.InvalidID {
		return
	}
	var prevKey []byte
	id := firstLeaf
	for id != page.InvalidID {
		pg, err := t.pool.Fetch(id)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("bplustree: fetch %d during leaf-chain walk: %w", id, err))
			return
		}
		pg.RLock()
		leaf := NewLeafPage(pg)
		for i := 0; i < int(leaf.Size()); i++ {
			k := leaf.KeyAt(i)
			if prevKey != nil && t.cmp(prevKey, k) >= 0 {
				*errs = append(*errs, fmt.Errorf("bplustree: leaf chain not strictly increasing across page %d", id))
			}
			prevKey = k
		}
		next := leaf.NextPageID()
		pg.RUnlock()
		t.pool.Unpin(id, false)
		id = next
	}
}

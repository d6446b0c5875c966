package bplustree

import (
	"bytes"
	"fmt"
	"sync"

	"diskindex/buffer"
	"diskindex/page"
	"diskindex/txn"
)

// BPlusTree is a latch-crabbing, disk-backed B+-tree index identified by
// name on a shared header page. Grounded on
// storage_engine/access/indexfile_manager/bplustree's tree-level
// rw-mutex-plus-fetch/write-node shape (struct.go, new_bplus_tree.go),
// generalized from that package's single coarse mutex to the per-page
// latch crabbing original_source/src/storage/index/b_plus_tree.cpp
// implements, since the spec's concurrency model requires bounding the
// held-latch set rather than serializing the whole tree on every
// operation.
type BPlusTree struct {
	pool            buffer.Pool
	indexName       string
	headerPageID    int64
	cmp             KeyComparator
	leafMaxSize     int32
	internalMaxSize int32

	rootPageID int64
	rwlatch    sync.RWMutex

	Verbose bool
}

func (t *BPlusTree) logf(format string, args ...any) {
	if t.Verbose {
		fmt.Printf("[BPlusTree %s] "+format+"\n", append([]any{t.indexName}, args...)...)
	}
}

// NewBPlusTree creates a fresh, empty named index: it allocates a new
// header page and publishes an invalid root under name. cmp is typically
// bytes.Compare over EncodeIntKey-encoded keys.
func NewBPlusTree(pool buffer.Pool, name string, leafMaxSize, internalMaxSize int32, cmp KeyComparator) (*BPlusTree, error) {
	if cmp == nil {
		cmp = bytes.Compare
	}
	headerPg, err := pool.New()
	if err != nil {
		return nil, fmt.Errorf("bplustree: allocate header page: %w", err)
	}
	NewHeaderPage(headerPg).Init()
	pool.Unpin(headerPg.ID, true)

	t := &BPlusTree{
		pool:            pool,
		indexName:       name,
		headerPageID:    headerPg.ID,
		cmp:             cmp,
		leafMaxSize:     leafMaxSize,
		internalMaxSize: internalMaxSize,
		rootPageID:      page.InvalidID,
	}
	if err := t.persistRootID(); err != nil {
		return nil, err
	}
	return t, nil
}

// OpenBPlusTree reopens a named index whose header page already exists at
// headerPageID (as returned by a prior NewBPlusTree/OpenBPlusTree).
func OpenBPlusTree(pool buffer.Pool, name string, headerPageID int64, leafMaxSize, internalMaxSize int32, cmp KeyComparator) (*BPlusTree, error) {
	if cmp == nil {
		cmp = bytes.Compare
	}
	headerPg, err := pool.Fetch(headerPageID)
	if err != nil {
		return nil, fmt.Errorf("bplustree: fetch header page %d: %w", headerPageID, err)
	}
	rootID, err := NewHeaderPage(headerPg).GetRootID(name)
	pool.Unpin(headerPageID, false)
	if err != nil {
		rootID = page.InvalidID
	}
	return &BPlusTree{
		pool:            pool,
		indexName:       name,
		headerPageID:    headerPageID,
		cmp:             cmp,
		leafMaxSize:     leafMaxSize,
		internalMaxSize: internalMaxSize,
		rootPageID:      rootID,
	}, nil
}

func (t *BPlusTree) persistRootID() error {
	headerPg, err := t.pool.Fetch(t.headerPageID)
	if err != nil {
		return fmt.Errorf("bplustree: fetch header page: %w", err)
	}
	headerPg.Lock()
	err = NewHeaderPage(headerPg).UpdateRootID(t.indexName, t.rootPageID)
	headerPg.Unlock()
	t.pool.Unpin(t.headerPageID, true)
	if err != nil {
		return fmt.Errorf("bplustree: persist root id: %w", err)
	}
	return nil
}

// IsEmpty reports whether the tree currently has no root page.
func (t *BPlusTree) IsEmpty() bool {
	t.rwlatch.RLock()
	defer t.rwlatch.RUnlock()
	return t.rootPageID == page.InvalidID
}

func (t *BPlusTree) releasePages(pages []*page.Page, dirty bool) {
	for _, p := range pages {
		p.Unlock()
		t.pool.Unpin(p.ID, dirty)
	}
}

func (t *BPlusTree) reparentFn() reparentFunc {
	return func(childID, newParentID int64) {
		childPg, err := t.pool.Fetch(childID)
		if err != nil {
			return
		}
		childPg.Lock()
		setParentPageID(childPg, newParentID)
		childPg.Unlock()
		t.pool.Unpin(childID, true)
	}
}

// findLeafPage performs a read-latch-crabbing descent to the leaf
// responsible for key (or the leftmost leaf if leftmost is true),
// returning it read-latched and pinned. Returns (nil, nil) on an empty
// tree.
func (t *BPlusTree) findLeafPage(key []byte, leftmost bool) (*page.Page, error) {
	t.rwlatch.RLock()
	if t.rootPageID == page.InvalidID {
		t.rwlatch.RUnlock()
		return nil, nil
	}
	pg, err := t.pool.Fetch(t.rootPageID)
	if err != nil {
		t.rwlatch.RUnlock()
		return nil, fmt.Errorf("bplustree: fetch root: %w", err)
	}
	pg.RLock()
	t.rwlatch.RUnlock()

	for pageType(pg) == PageTypeInternal {
		internal := NewInternalPage(pg)
		var childID int64
		if leftmost {
			childID = internal.ValueAt(0)
		} else {
			childID = internal.Lookup(key, t.cmp)
		}
		childPg, err := t.pool.Fetch(childID)
		if err != nil {
			pg.RUnlock()
			t.pool.Unpin(pg.ID, false)
			return nil, fmt.Errorf("bplustree: fetch child %d: %w", childID, err)
		}
		childPg.RLock()
		pg.RUnlock()
		t.pool.Unpin(pg.ID, false)
		pg = childPg
	}
	return pg, nil
}

// GetValue appends the value stored under key to result, if present.
func (t *BPlusTree) GetValue(key []byte, result *[][]byte) (bool, error) {
	leafPg, err := t.findLeafPage(key, false)
	if err != nil {
		return false, err
	}
	if leafPg == nil {
		return false, nil
	}
	leaf := NewLeafPage(leafPg)
	var v []byte
	found := leaf.Lookup(key, &v, t.cmp)
	if found {
		*result = append(*result, v)
	}
	leafPg.RUnlock()
	t.pool.Unpin(leafPg.ID, false)
	return found, nil
}

func (t *BPlusTree) isSafeInsert(pg *page.Page) bool {
	if pageType(pg) == PageTypeLeaf {
		l := NewLeafPage(pg)
		return l.Size()+1 < l.MaxSize()
	}
	n := NewInternalPage(pg)
	return n.Size()+1 < n.MaxSize()
}

func (t *BPlusTree) isSafeRemove(pg *page.Page) bool {
	if pageType(pg) == PageTypeLeaf {
		l := NewLeafPage(pg)
		return l.Size() > minSize(l.MaxSize())
	}
	n := NewInternalPage(pg)
	return n.Size() > internalMinSize(n.MaxSize())
}

func (t *BPlusTree) releaseAncestorsExceptLast(tx *txn.Transaction, releaseTreeLatch func()) {
	ps := tx.PageSet()
	if len(ps) == 0 {
		releaseTreeLatch()
		return
	}
	last := ps[len(ps)-1]
	t.releasePages(ps[:len(ps)-1], false)
	tx.ClearPageSet()
	tx.AddToPageSet(last)
	releaseTreeLatch()
}

func (t *BPlusTree) startNewTree(key, value []byte) (bool, error) {
	leafPg, err := t.pool.New()
	if err != nil {
		return false, fmt.Errorf("bplustree: allocate root leaf: %w", err)
	}
	leaf := NewLeafPage(leafPg)
	leaf.Init(t.leafMaxSize, page.InvalidID)
	leaf.Insert(key, value, t.cmp)

	t.rootPageID = leafPg.ID
	if err := t.persistRootID(); err != nil {
		t.pool.Unpin(leafPg.ID, true)
		return false, err
	}
	t.pool.Unpin(leafPg.ID, true)
	t.logf("new tree root=%d", leafPg.ID)
	return true, nil
}

func (t *BPlusTree) createNewRoot(leftID int64, sepKey []byte, rightID int64) error {
	rootPg, err := t.pool.New()
	if err != nil {
		return fmt.Errorf("bplustree: allocate new root: %w", err)
	}
	root := NewInternalPage(rootPg)
	root.Init(t.internalMaxSize, page.InvalidID)
	root.PopulateNewRoot(leftID, sepKey, rightID)

	reparent := t.reparentFn()
	reparent(leftID, rootPg.ID)
	reparent(rightID, rootPg.ID)

	t.rootPageID = rootPg.ID
	if err := t.persistRootID(); err != nil {
		t.pool.Unpin(rootPg.ID, true)
		return err
	}
	t.pool.Unpin(rootPg.ID, true)
	t.logf("new root=%d left=%d right=%d", rootPg.ID, leftID, rightID)
	return nil
}

// propagateSplit inserts (oldID, sepKey, newID) into oldID's parent —
// ancestors' last entry — splitting and recursing upward as far as
// necessary. An empty ancestors list means oldID was the root.
func (t *BPlusTree) propagateSplit(ancestors []*page.Page, oldID int64, sepKey []byte, newID int64) error {
	if len(ancestors) == 0 {
		return t.createNewRoot(oldID, sepKey, newID)
	}
	parentPg := ancestors[len(ancestors)-1]
	ancestors = ancestors[:len(ancestors)-1]
	parent := NewInternalPage(parentPg)

	newSize := parent.InsertNodeAfter(oldID, sepKey, newID)
	if newSize < parent.MaxSize() {
		parentPg.Unlock()
		t.pool.Unpin(parentPg.ID, true)
		t.releasePages(ancestors, false)
		return nil
	}

	rightPg, err := t.pool.New()
	if err != nil {
		parentPg.Unlock()
		t.pool.Unpin(parentPg.ID, true)
		t.releasePages(ancestors, false)
		return fmt.Errorf("bplustree: allocate right internal node: %w", err)
	}
	right := NewInternalPage(rightPg)
	right.Init(parent.MaxSize(), parent.ParentPageID())
	parent.MoveHalfTo(right, t.reparentFn())
	promoted := right.KeyAt(0)

	t.logf("split internal old=%d new=%d key=%x", parentPg.ID, rightPg.ID, promoted)

	parentPg.Unlock()
	t.pool.Unpin(parentPg.ID, true)

	err = t.propagateSplit(ancestors, parentPg.ID, promoted, rightPg.ID)
	t.pool.Unpin(rightPg.ID, true)
	return err
}

// Insert adds (key, value). Returns false if key is already present.
func (t *BPlusTree) Insert(key, value []byte, tx *txn.Transaction) (bool, error) {
	t.rwlatch.Lock()
	treeLatchHeld := true
	releaseTreeLatch := func() {
		if treeLatchHeld {
			t.rwlatch.Unlock()
			treeLatchHeld = false
		}
	}
	defer releaseTreeLatch()

	if t.rootPageID == page.InvalidID {
		return t.startNewTree(key, value)
	}

	rootPg, err := t.pool.Fetch(t.rootPageID)
	if err != nil {
		return false, fmt.Errorf("bplustree: fetch root: %w", err)
	}
	rootPg.Lock()
	tx.AddToPageSet(rootPg)
	cur := rootPg
	if t.isSafeInsert(cur) {
		t.releaseAncestorsExceptLast(tx, releaseTreeLatch)
	}

	for pageType(cur) == PageTypeInternal {
		internal := NewInternalPage(cur)
		childID := internal.Lookup(key, t.cmp)
		childPg, err := t.pool.Fetch(childID)
		if err != nil {
			t.releasePages(tx.PageSet(), false)
			tx.ClearPageSet()
			return false, fmt.Errorf("bplustree: fetch child %d: %w", childID, err)
		}
		childPg.Lock()
		tx.AddToPageSet(childPg)
		// Test the child's own safety, not cur's — cur (and everything
		// above it) can only be released once we know the child itself
		// won't need to hand a split/merge up to its parent.
		if t.isSafeInsert(childPg) {
			t.releaseAncestorsExceptLast(tx, releaseTreeLatch)
		}
		cur = childPg
	}

	leaf := NewLeafPage(cur)
	before := leaf.Size()
	after := leaf.Insert(key, value, t.cmp)

	ancestors := append([]*page.Page(nil), tx.PageSet()...)
	tx.ClearPageSet()
	ancestors = ancestors[:len(ancestors)-1] // drop cur itself

	if after == before {
		cur.Unlock()
		t.pool.Unpin(cur.ID, false)
		t.releasePages(ancestors, false)
		return false, nil
	}

	if after < leaf.MaxSize() {
		cur.Unlock()
		t.pool.Unpin(cur.ID, true)
		t.releasePages(ancestors, false)
		return true, nil
	}

	rightPg, err := t.pool.New()
	if err != nil {
		cur.Unlock()
		t.pool.Unpin(cur.ID, true)
		t.releasePages(ancestors, false)
		return false, fmt.Errorf("bplustree: allocate right leaf: %w", err)
	}
	right := NewLeafPage(rightPg)
	right.Init(leaf.MaxSize(), leaf.ParentPageID())
	leaf.MoveHalfTo(right)
	right.SetNextPageID(leaf.NextPageID())
	leaf.SetNextPageID(right.PageID())
	sepKey := right.KeyAt(0)

	t.logf("split leaf old=%d new=%d key=%x", cur.ID, rightPg.ID, sepKey)

	oldID := cur.ID
	cur.Unlock()
	t.pool.Unpin(oldID, true)

	err = t.propagateSplit(ancestors, oldID, sepKey, rightPg.ID)
	t.pool.Unpin(rightPg.ID, true)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (t *BPlusTree) drainDeletedPages(tx *txn.Transaction) error {
	for _, id := range tx.DeletedPageSet() {
		if _, err := t.pool.Delete(id); err != nil {
			tx.ClearDeletedPageSet()
			return fmt.Errorf("bplustree: delete page %d: %w", id, err)
		}
	}
	tx.ClearDeletedPageSet()
	return nil
}

// finishParentAdjust checks whether parent itself now underflows after a
// child merge, collapsing the root or recursing into adjustInternalNode
// as needed.
func (t *BPlusTree) finishParentAdjust(ancestors []*page.Page, parentPg *page.Page, parent *InternalPage, tx *txn.Transaction) error {
	if parentPg.ID == t.rootPageID {
		if parent.Size() == 1 {
			child := parent.RemoveAndReturnOnlyChild()
			t.rootPageID = child
			if err := t.persistRootID(); err != nil {
				parentPg.Unlock()
				t.pool.Unpin(parentPg.ID, true)
				t.releasePages(ancestors, false)
				return err
			}
			if childPg, err := t.pool.Fetch(child); err == nil {
				childPg.Lock()
				setParentPageID(childPg, page.InvalidID)
				childPg.Unlock()
				t.pool.Unpin(child, true)
			}
			tx.AddDeletedPage(parentPg.ID)
			t.logf("root collapsed, new root=%d", child)
		}
		parentPg.Unlock()
		t.pool.Unpin(parentPg.ID, true)
		t.releasePages(ancestors, false)
		return nil
	}

	if parent.Size() >= internalMinSize(parent.MaxSize()) {
		parentPg.Unlock()
		t.pool.Unpin(parentPg.ID, true)
		t.releasePages(ancestors, false)
		return nil
	}

	return t.adjustInternalNode(ancestors, parent, parentPg, tx)
}

func (t *BPlusTree) adjustInternalNode(ancestors []*page.Page, node *InternalPage, nodePg *page.Page, tx *txn.Transaction) error {
	if len(ancestors) == 0 {
		nodePg.Unlock()
		t.pool.Unpin(nodePg.ID, true)
		return fmt.Errorf("bplustree: underflowing internal node %d has no held parent", nodePg.ID)
	}
	parentPg := ancestors[len(ancestors)-1]
	ancestors = ancestors[:len(ancestors)-1]
	parent := NewInternalPage(parentPg)
	idx := parent.ValueIndex(nodePg.ID)
	reparent := t.reparentFn()

	var leftPg, rightPg *page.Page
	var err error
	if idx > 0 {
		leftPg, err = t.pool.Fetch(parent.ValueAt(idx - 1))
		if err != nil {
			nodePg.Unlock()
			t.pool.Unpin(nodePg.ID, true)
			parentPg.Unlock()
			t.pool.Unpin(parentPg.ID, true)
			t.releasePages(ancestors, false)
			return fmt.Errorf("bplustree: fetch left sibling of %d: %w", nodePg.ID, err)
		}
		leftPg.Lock()
	}
	if idx < int(parent.Size())-1 {
		rightPg, err = t.pool.Fetch(parent.ValueAt(idx + 1))
		if err != nil {
			if leftPg != nil {
				leftPg.Unlock()
				t.pool.Unpin(leftPg.ID, false)
			}
			nodePg.Unlock()
			t.pool.Unpin(nodePg.ID, true)
			parentPg.Unlock()
			t.pool.Unpin(parentPg.ID, true)
			t.releasePages(ancestors, false)
			return fmt.Errorf("bplustree: fetch right sibling of %d: %w", nodePg.ID, err)
		}
		rightPg.Lock()
	}
	minSz := internalMinSize(node.MaxSize())

	switch {
	case leftPg != nil && NewInternalPage(leftPg).Size() > minSz:
		left := NewInternalPage(leftPg)
		promoted := left.MoveLastToFrontOf(node, parent.KeyAt(idx), reparent)
		parent.setKeyAt(idx, promoted)
		if rightPg != nil {
			rightPg.Unlock()
			t.pool.Unpin(rightPg.ID, false)
		}
		leftPg.Unlock()
		t.pool.Unpin(leftPg.ID, true)
		nodePg.Unlock()
		t.pool.Unpin(nodePg.ID, true)
		parentPg.Unlock()
		t.pool.Unpin(parentPg.ID, true)
		t.releasePages(ancestors, false)
		return nil

	case rightPg != nil && NewInternalPage(rightPg).Size() > minSz:
		right := NewInternalPage(rightPg)
		promoted := right.MoveFirstToEndOf(node, parent.KeyAt(idx+1), reparent)
		parent.setKeyAt(idx+1, promoted)
		if leftPg != nil {
			leftPg.Unlock()
			t.pool.Unpin(leftPg.ID, false)
		}
		rightPg.Unlock()
		t.pool.Unpin(rightPg.ID, true)
		nodePg.Unlock()
		t.pool.Unpin(nodePg.ID, true)
		parentPg.Unlock()
		t.pool.Unpin(parentPg.ID, true)
		t.releasePages(ancestors, false)
		return nil

	case leftPg != nil:
		left := NewInternalPage(leftPg)
		node.MoveAllTo(left, parent.KeyAt(idx), reparent)
		parent.Remove(idx)
		if rightPg != nil {
			rightPg.Unlock()
			t.pool.Unpin(rightPg.ID, false)
		}
		tx.AddDeletedPage(nodePg.ID)
		nodePg.Unlock()
		t.pool.Unpin(nodePg.ID, true)
		leftPg.Unlock()
		t.pool.Unpin(leftPg.ID, true)
		return t.finishParentAdjust(ancestors, parentPg, parent, tx)

	default:
		right := NewInternalPage(rightPg)
		right.MoveAllTo(node, parent.KeyAt(idx+1), reparent)
		parent.Remove(idx + 1)
		tx.AddDeletedPage(rightPg.ID)
		rightPg.Unlock()
		t.pool.Unpin(rightPg.ID, true)
		nodePg.Unlock()
		t.pool.Unpin(nodePg.ID, true)
		return t.finishParentAdjust(ancestors, parentPg, parent, tx)
	}
}

func (t *BPlusTree) adjustLeafNode(ancestors []*page.Page, leaf *LeafPage, leafPg *page.Page, tx *txn.Transaction) error {
	if len(ancestors) == 0 {
		leafPg.Unlock()
		t.pool.Unpin(leafPg.ID, true)
		return fmt.Errorf("bplustree: underflowing leaf %d has no held parent", leafPg.ID)
	}
	parentPg := ancestors[len(ancestors)-1]
	ancestors = ancestors[:len(ancestors)-1]
	parent := NewInternalPage(parentPg)
	idx := parent.ValueIndex(leafPg.ID)

	var leftPg, rightPg *page.Page
	var err error
	if idx > 0 {
		leftPg, err = t.pool.Fetch(parent.ValueAt(idx - 1))
		if err != nil {
			leafPg.Unlock()
			t.pool.Unpin(leafPg.ID, true)
			parentPg.Unlock()
			t.pool.Unpin(parentPg.ID, true)
			t.releasePages(ancestors, false)
			return fmt.Errorf("bplustree: fetch left sibling of %d: %w", leafPg.ID, err)
		}
		leftPg.Lock()
	}
	if idx < int(parent.Size())-1 {
		rightPg, err = t.pool.Fetch(parent.ValueAt(idx + 1))
		if err != nil {
			if leftPg != nil {
				leftPg.Unlock()
				t.pool.Unpin(leftPg.ID, false)
			}
			leafPg.Unlock()
			t.pool.Unpin(leafPg.ID, true)
			parentPg.Unlock()
			t.pool.Unpin(parentPg.ID, true)
			t.releasePages(ancestors, false)
			return fmt.Errorf("bplustree: fetch right sibling of %d: %w", leafPg.ID, err)
		}
		rightPg.Lock()
	}
	minSz := minSize(leaf.MaxSize())

	switch {
	case leftPg != nil && NewLeafPage(leftPg).Size() > minSz:
		left := NewLeafPage(leftPg)
		left.MoveLastToFrontOf(leaf)
		parent.setKeyAt(idx, leaf.KeyAt(0))
		if rightPg != nil {
			rightPg.Unlock()
			t.pool.Unpin(rightPg.ID, false)
		}
		leftPg.Unlock()
		t.pool.Unpin(leftPg.ID, true)
		leafPg.Unlock()
		t.pool.Unpin(leafPg.ID, true)
		parentPg.Unlock()
		t.pool.Unpin(parentPg.ID, true)
		t.releasePages(ancestors, false)
		return nil

	case rightPg != nil && NewLeafPage(rightPg).Size() > minSz:
		right := NewLeafPage(rightPg)
		right.MoveFirstToEndOf(leaf)
		parent.setKeyAt(idx+1, right.KeyAt(0))
		if leftPg != nil {
			leftPg.Unlock()
			t.pool.Unpin(leftPg.ID, false)
		}
		rightPg.Unlock()
		t.pool.Unpin(rightPg.ID, true)
		leafPg.Unlock()
		t.pool.Unpin(leafPg.ID, true)
		parentPg.Unlock()
		t.pool.Unpin(parentPg.ID, true)
		t.releasePages(ancestors, false)
		return nil

	case leftPg != nil:
		left := NewLeafPage(leftPg)
		leaf.MoveAllTo(left)
		left.SetNextPageID(leaf.NextPageID())
		parent.Remove(idx)
		if rightPg != nil {
			rightPg.Unlock()
			t.pool.Unpin(rightPg.ID, false)
		}
		tx.AddDeletedPage(leafPg.ID)
		leafPg.Unlock()
		t.pool.Unpin(leafPg.ID, true)
		leftPg.Unlock()
		t.pool.Unpin(leftPg.ID, true)
		return t.finishParentAdjust(ancestors, parentPg, parent, tx)

	default:
		right := NewLeafPage(rightPg)
		right.MoveAllTo(leaf)
		leaf.SetNextPageID(right.NextPageID())
		parent.Remove(idx + 1)
		tx.AddDeletedPage(rightPg.ID)
		rightPg.Unlock()
		t.pool.Unpin(rightPg.ID, true)
		leafPg.Unlock()
		t.pool.Unpin(leafPg.ID, true)
		return t.finishParentAdjust(ancestors, parentPg, parent, tx)
	}
}

// Remove deletes key, if present.
func (t *BPlusTree) Remove(key []byte, tx *txn.Transaction) error {
	t.rwlatch.Lock()
	treeLatchHeld := true
	releaseTreeLatch := func() {
		if treeLatchHeld {
			t.rwlatch.Unlock()
			treeLatchHeld = false
		}
	}
	defer releaseTreeLatch()

	if t.rootPageID == page.InvalidID {
		return nil
	}

	rootPg, err := t.pool.Fetch(t.rootPageID)
	if err != nil {
		return fmt.Errorf("bplustree: fetch root: %w", err)
	}
	rootPg.Lock()
	tx.AddToPageSet(rootPg)
	cur := rootPg
	if t.isSafeRemove(cur) {
		t.releaseAncestorsExceptLast(tx, releaseTreeLatch)
	}

	for pageType(cur) == PageTypeInternal {
		internal := NewInternalPage(cur)
		childID := internal.Lookup(key, t.cmp)
		childPg, err := t.pool.Fetch(childID)
		if err != nil {
			t.releasePages(tx.PageSet(), false)
			tx.ClearPageSet()
			return fmt.Errorf("bplustree: fetch child %d: %w", childID, err)
		}
		childPg.Lock()
		tx.AddToPageSet(childPg)
		// Test the child's own safety, not cur's — see the matching
		// comment in Insert for why the parent must outlive this check.
		if t.isSafeRemove(childPg) {
			t.releaseAncestorsExceptLast(tx, releaseTreeLatch)
		}
		cur = childPg
	}

	leaf := NewLeafPage(cur)
	newSize := leaf.RemoveAndDeleteRecord(key, t.cmp)

	ancestors := append([]*page.Page(nil), tx.PageSet()...)
	tx.ClearPageSet()
	ancestors = ancestors[:len(ancestors)-1]

	isRoot := cur.ID == t.rootPageID

	if isRoot {
		if newSize == 0 {
			t.rootPageID = page.InvalidID
			if err := t.persistRootID(); err != nil {
				cur.Unlock()
				t.pool.Unpin(cur.ID, true)
				t.releasePages(ancestors, false)
				return err
			}
			tx.AddDeletedPage(cur.ID)
		}
		cur.Unlock()
		t.pool.Unpin(cur.ID, true)
		t.releasePages(ancestors, false)
		return t.drainDeletedPages(tx)
	}

	if newSize >= minSize(leaf.MaxSize()) {
		cur.Unlock()
		t.pool.Unpin(cur.ID, true)
		t.releasePages(ancestors, false)
		return t.drainDeletedPages(tx)
	}

	if err := t.adjustLeafNode(ancestors, leaf, cur, tx); err != nil {
		return err
	}
	return t.drainDeletedPages(tx)
}

// Iterator is a forward-only range cursor over the leaf chain, holding
// exactly one leaf's read-latch and pin at a time. Grounded on
// storage_engine/access/indexfile_manager/bplustree/iterator.go's
// SeekGE/Next/Close shape, adapted to the page-view representation.
type Iterator struct {
	tree  *BPlusTree
	leaf  *page.Page
	index int
}

func (it *Iterator) skipToNonEmpty() {
	for it.leaf != nil && it.index >= int(NewLeafPage(it.leaf).Size()) {
		next := NewLeafPage(it.leaf).NextPageID()
		it.leaf.RUnlock()
		it.tree.pool.Unpin(it.leaf.ID, false)
		if next == page.InvalidID {
			it.leaf = nil
			return
		}
		nextPg, err := it.tree.pool.Fetch(next)
		if err != nil {
			it.leaf = nil
			return
		}
		nextPg.RLock()
		it.leaf = nextPg
		it.index = 0
	}
}

// Begin returns an iterator positioned at the first key of the leftmost
// leaf.
func (t *BPlusTree) Begin() (*Iterator, error) {
	leafPg, err := t.findLeafPage(nil, true)
	if err != nil {
		return nil, err
	}
	it := &Iterator{tree: t, leaf: leafPg}
	it.skipToNonEmpty()
	return it, nil
}

// BeginAt returns an iterator positioned at the first key >= key.
func (t *BPlusTree) BeginAt(key []byte) (*Iterator, error) {
	leafPg, err := t.findLeafPage(key, false)
	if err != nil {
		return nil, err
	}
	if leafPg == nil {
		return &Iterator{tree: t}, nil
	}
	idx := NewLeafPage(leafPg).KeyIndex(key, t.cmp)
	it := &Iterator{tree: t, leaf: leafPg, index: idx}
	it.skipToNonEmpty()
	return it, nil
}

// End returns the sentinel, already-exhausted iterator.
func (t *BPlusTree) End() *Iterator {
	return &Iterator{tree: t}
}

// IsEnd reports whether the iterator is exhausted.
func (it *Iterator) IsEnd() bool { return it.leaf == nil }

// Key returns the current entry's key. Only valid when !IsEnd().
func (it *Iterator) Key() []byte { return NewLeafPage(it.leaf).KeyAt(it.index) }

// Value returns the current entry's value. Only valid when !IsEnd().
func (it *Iterator) Value() []byte { return NewLeafPage(it.leaf).ValueAt(it.index) }

// Next advances the iterator by one entry.
func (it *Iterator) Next() {
	if it.leaf == nil {
		return
	}
	it.index++
	it.skipToNonEmpty()
}

// Close releases the currently held leaf latch and pin, if any. Safe to
// call more than once or on an exhausted iterator.
func (it *Iterator) Close() {
	if it.leaf != nil {
		it.leaf.RUnlock()
		it.tree.pool.Unpin(it.leaf.ID, false)
		it.leaf = nil
	}
}

package bplustree

import (
	"encoding/binary"

	"diskindex/page"
)

// InternalPage routes keys to children: slot 0's key is never read (slot
// 0's child is the fallback for keys below everything else); slot i>0's
// key separates child i-1 from child i. Grounded on the same
// node_to_index_page.go shape as LeafPage, reworked around BusTub's
// b_plus_tree_internal_page layout for the InternalPage operation set.
type InternalPage struct {
	pg *page.Page
}

func NewInternalPage(pg *page.Page) *InternalPage { return &InternalPage{pg: pg} }

func (n *InternalPage) Init(maxSize int32, parentPageID int64) {
	setPageType(n.pg, PageTypeInternal)
	setSize(n.pg, 0)
	setMaxSize(n.pg, maxSize)
	setParentPageID(n.pg, parentPageID)
	setPageID(n.pg, n.pg.ID)
}

func (n *InternalPage) PageID() int64            { return getPageID(n.pg) }
func (n *InternalPage) ParentPageID() int64      { return getParentPageID(n.pg) }
func (n *InternalPage) SetParentPageID(id int64) { setParentPageID(n.pg, id) }
func (n *InternalPage) Size() int32              { return getSize(n.pg) }
func (n *InternalPage) MaxSize() int32           { return getMaxSize(n.pg) }

func (n *InternalPage) slotOffset(i int) int { return internalArrayOffset + i*internalSlotSize }

// KeyAt returns a copy of slot i's key. Slot 0's key is meaningless.
func (n *InternalPage) KeyAt(i int) []byte {
	off := n.slotOffset(i)
	k := make([]byte, KeySize)
	copy(k, n.pg.Data[off:off+KeySize])
	return k
}

func (n *InternalPage) setKeyAt(i int, k []byte) {
	off := n.slotOffset(i)
	copy(n.pg.Data[off:off+KeySize], k)
}

// ValueAt returns slot i's child page id.
func (n *InternalPage) ValueAt(i int) int64 {
	off := n.slotOffset(i) + KeySize
	return int64(binary.LittleEndian.Uint64(n.pg.Data[off:]))
}

func (n *InternalPage) setValueAt(i int, v int64) {
	off := n.slotOffset(i) + KeySize
	binary.LittleEndian.PutUint64(n.pg.Data[off:], uint64(v))
}

// ValueIndex returns the slot holding child pageID, or -1 if absent.
func (n *InternalPage) ValueIndex(pageID int64) int {
	for i := 0; i < int(n.Size()); i++ {
		if n.ValueAt(i) == pageID {
			return i
		}
	}
	return -1
}

// Lookup returns the child page id following the last key <= k.
func (n *InternalPage) Lookup(k []byte, cmp KeyComparator) int64 {
	size := int(n.Size())
	lo, hi := 1, size
	for lo < hi {
		mid := lo + (hi-lo)/2
		if cmp(n.KeyAt(mid), k) <= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return n.ValueAt(lo - 1)
}

// PopulateNewRoot formats this freshly allocated page as a new root with
// exactly two children.
func (n *InternalPage) PopulateNewRoot(left int64, key []byte, right int64) {
	n.setValueAt(0, left)
	n.setKeyAt(1, key)
	n.setValueAt(1, right)
	setSize(n.pg, 2)
}

// InsertNodeAfter inserts (key, newID) immediately after the slot holding
// oldID and returns the new size.
func (n *InternalPage) InsertNodeAfter(oldID int64, key []byte, newID int64) int32 {
	idx := n.ValueIndex(oldID)
	size := int(n.Size())
	for j := size; j > idx+1; j-- {
		n.setKeyAt(j, n.KeyAt(j-1))
		n.setValueAt(j, n.ValueAt(j-1))
	}
	n.setKeyAt(idx+1, key)
	n.setValueAt(idx+1, newID)
	setSize(n.pg, int32(size+1))
	return n.Size()
}

// Remove deletes slot i.
func (n *InternalPage) Remove(i int) {
	size := int(n.Size())
	for j := i; j < size-1; j++ {
		n.setKeyAt(j, n.KeyAt(j+1))
		n.setValueAt(j, n.ValueAt(j+1))
	}
	setSize(n.pg, int32(size-1))
}

// RemoveAndReturnOnlyChild empties a size-1 root and returns its only
// remaining child, for root collapse.
func (n *InternalPage) RemoveAndReturnOnlyChild() int64 {
	child := n.ValueAt(0)
	setSize(n.pg, 0)
	return child
}

// reparentFunc is invoked once per child moved between pages, to rewrite
// that child's persisted parent_page_id.
type reparentFunc func(childID, newParentID int64)

// MoveHalfTo moves this node's upper half into right, reparenting each
// moved child via reparent.
func (n *InternalPage) MoveHalfTo(right *InternalPage, reparent reparentFunc) {
	size := int(n.Size())
	mid := size / 2
	for i := mid; i < size; i++ {
		right.setKeyAt(i-mid, n.KeyAt(i))
		right.setValueAt(i-mid, n.ValueAt(i))
		reparent(n.ValueAt(i), right.PageID())
	}
	setSize(right.pg, int32(size-mid))
	setSize(n.pg, int32(mid))
}

// MoveAllTo appends this node's entries onto left, pulling down
// middleKey — the parent separator between left and this node — as the
// key for the first moved child, then empties this node. Every moved
// child is reparented via reparent.
func (n *InternalPage) MoveAllTo(left *InternalPage, middleKey []byte, reparent reparentFunc) {
	base := int(left.Size())
	size := int(n.Size())

	left.setKeyAt(base, middleKey)
	left.setValueAt(base, n.ValueAt(0))
	reparent(n.ValueAt(0), left.PageID())

	for i := 1; i < size; i++ {
		left.setKeyAt(base+i, n.KeyAt(i))
		left.setValueAt(base+i, n.ValueAt(i))
		reparent(n.ValueAt(i), left.PageID())
	}
	setSize(left.pg, int32(base+size))
	setSize(n.pg, 0)
}

// MoveFirstToEndOf moves this node's first child onto the end of left via
// middleKey (the current parent separator between left and this node),
// reparenting the moved child. Returns the key that must replace that
// parent separator.
func (n *InternalPage) MoveFirstToEndOf(left *InternalPage, middleKey []byte, reparent reparentFunc) []byte {
	idx := int(left.Size())
	firstVal := n.ValueAt(0)
	left.setKeyAt(idx, middleKey)
	left.setValueAt(idx, firstVal)
	reparent(firstVal, left.PageID())
	setSize(left.pg, int32(idx+1))

	size := int(n.Size())
	promoted := n.KeyAt(1)
	for i := 0; i < size-1; i++ {
		n.setKeyAt(i, n.KeyAt(i+1))
		n.setValueAt(i, n.ValueAt(i+1))
	}
	setSize(n.pg, int32(size-1))
	return promoted
}

// MoveLastToFrontOf moves this node's last child onto the front of right
// via middleKey (the current parent separator between this node and
// right), reparenting the moved child. Returns the key that must replace
// that parent separator.
func (n *InternalPage) MoveLastToFrontOf(right *InternalPage, middleKey []byte, reparent reparentFunc) []byte {
	size := int(n.Size())
	promoted := n.KeyAt(size - 1)
	lastVal := n.ValueAt(size - 1)

	rsize := int(right.Size())
	for j := rsize; j > 0; j-- {
		right.setKeyAt(j, right.KeyAt(j-1))
		right.setValueAt(j, right.ValueAt(j-1))
	}
	right.setValueAt(0, lastVal)
	right.setKeyAt(1, middleKey)
	reparent(lastVal, right.PageID())
	setSize(right.pg, int32(rsize+1))

	setSize(n.pg, int32(size-1))
	return promoted
}

package bplustree

import (
	"encoding/binary"

	"diskindex/page"
)

// LeafPage is a B+-tree leaf: a sorted, duplicate-free array of (key,
// value) pairs plus a next-leaf pointer for range scans. Grounded on
// storage_engine/access/indexfile_manager/bplustree/node_to_index_page.go's
// Node-to-bytes shape, restructured as a direct page view (no
// intermediate in-memory Node) per the LeafPage operation set this index
// exposes.
type LeafPage struct {
	pg *page.Page
}

func NewLeafPage(pg *page.Page) *LeafPage { return &LeafPage{pg: pg} }

// Init formats pg as a fresh, empty leaf.
func (l *LeafPage) Init(maxSize int32, parentPageID int64) {
	setPageType(l.pg, PageTypeLeaf)
	setSize(l.pg, 0)
	setMaxSize(l.pg, maxSize)
	setParentPageID(l.pg, parentPageID)
	setPageID(l.pg, l.pg.ID)
	l.SetNextPageID(page.InvalidID)
}

func (l *LeafPage) PageID() int64            { return getPageID(l.pg) }
func (l *LeafPage) ParentPageID() int64      { return getParentPageID(l.pg) }
func (l *LeafPage) SetParentPageID(id int64) { setParentPageID(l.pg, id) }
func (l *LeafPage) Size() int32              { return getSize(l.pg) }
func (l *LeafPage) MaxSize() int32           { return getMaxSize(l.pg) }

func (l *LeafPage) NextPageID() int64 {
	return int64(binary.LittleEndian.Uint64(l.pg.Data[leafNextOffset:]))
}

func (l *LeafPage) SetNextPageID(id int64) {
	binary.LittleEndian.PutUint64(l.pg.Data[leafNextOffset:], uint64(id))
}

func (l *LeafPage) slotOffset(i int) int { return leafArrayOffset + i*leafSlotSize }

// KeyAt returns a copy of slot i's key.
func (l *LeafPage) KeyAt(i int) []byte {
	off := l.slotOffset(i)
	k := make([]byte, KeySize)
	copy(k, l.pg.Data[off:off+KeySize])
	return k
}

// ValueAt returns a copy of slot i's value.
func (l *LeafPage) ValueAt(i int) []byte {
	off := l.slotOffset(i) + KeySize
	v := make([]byte, ValueSize)
	copy(v, l.pg.Data[off:off+ValueSize])
	return v
}

func (l *LeafPage) setAt(i int, key, value []byte) {
	off := l.slotOffset(i)
	copy(l.pg.Data[off:off+KeySize], key)
	copy(l.pg.Data[off+KeySize:off+KeySize+ValueSize], value)
}

// KeyIndex returns the position of the first key >= k.
func (l *LeafPage) KeyIndex(k []byte, cmp KeyComparator) int {
	n := int(l.Size())
	lo, hi := 0, n
	for lo < hi {
		mid := lo + (hi-lo)/2
		if cmp(l.KeyAt(mid), k) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// Lookup writes the value for k into *v and reports whether k was found.
func (l *LeafPage) Lookup(k []byte, v *[]byte, cmp KeyComparator) bool {
	i := l.KeyIndex(k, cmp)
	if i < int(l.Size()) && cmp(l.KeyAt(i), k) == 0 {
		*v = l.ValueAt(i)
		return true
	}
	return false
}

// Insert places (k, v) in sorted position and returns the new size. A
// duplicate key is rejected — the size returned is unchanged.
func (l *LeafPage) Insert(k, v []byte, cmp KeyComparator) int32 {
	i := l.KeyIndex(k, cmp)
	n := int(l.Size())
	if i < n && cmp(l.KeyAt(i), k) == 0 {
		return l.Size()
	}
	for j := n; j > i; j-- {
		l.setAt(j, l.KeyAt(j-1), l.ValueAt(j-1))
	}
	l.setAt(i, k, v)
	setSize(l.pg, int32(n+1))
	return l.Size()
}

// RemoveAndDeleteRecord removes k if present and returns the new size.
func (l *LeafPage) RemoveAndDeleteRecord(k []byte, cmp KeyComparator) int32 {
	i := l.KeyIndex(k, cmp)
	n := int(l.Size())
	if i >= n || cmp(l.KeyAt(i), k) != 0 {
		return l.Size()
	}
	for j := i; j < n-1; j++ {
		l.setAt(j, l.KeyAt(j+1), l.ValueAt(j+1))
	}
	setSize(l.pg, int32(n-1))
	return l.Size()
}

// MoveHalfTo moves this leaf's upper half into right, which must be
// empty.
func (l *LeafPage) MoveHalfTo(right *LeafPage) {
	n := int(l.Size())
	mid := n / 2
	for i := mid; i < n; i++ {
		right.setAt(i-mid, l.KeyAt(i), l.ValueAt(i))
	}
	setSize(right.pg, int32(n-mid))
	setSize(l.pg, int32(mid))
}

// MoveAllTo appends this leaf's entries onto left and empties this leaf.
// The caller fixes up next-page pointers afterward.
func (l *LeafPage) MoveAllTo(left *LeafPage) {
	base := int(left.Size())
	n := int(l.Size())
	for i := 0; i < n; i++ {
		left.setAt(base+i, l.KeyAt(i), l.ValueAt(i))
	}
	setSize(left.pg, int32(base+n))
	setSize(l.pg, 0)
}

// MoveFirstToEndOf moves this leaf's first entry onto the end of left —
// used when left (positionally to this leaf's left) has underflowed.
func (l *LeafPage) MoveFirstToEndOf(left *LeafPage) {
	k, v := l.KeyAt(0), l.ValueAt(0)
	left.setAt(int(left.Size()), k, v)
	setSize(left.pg, left.Size()+1)

	n := int(l.Size())
	for i := 0; i < n-1; i++ {
		l.setAt(i, l.KeyAt(i+1), l.ValueAt(i+1))
	}
	setSize(l.pg, int32(n-1))
}

// MoveLastToFrontOf moves this leaf's last entry onto the front of right
// — used when right (positionally to this leaf's right) has underflowed.
func (l *LeafPage) MoveLastToFrontOf(right *LeafPage) {
	n := int(l.Size())
	k, v := l.KeyAt(n-1), l.ValueAt(n-1)

	rn := int(right.Size())
	for j := rn; j > 0; j-- {
		right.setAt(j, right.KeyAt(j-1), right.ValueAt(j-1))
	}
	right.setAt(0, k, v)
	setSize(right.pg, int32(rn+1))
	setSize(l.pg, int32(n-1))
}

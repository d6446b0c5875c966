package hash

import "diskindex/page"

// BucketPage is a bit-packed slotted array over a page: parallel
// occupied/readable bitmaps followed by a fixed-width (key,value) array.
// occupied[i] means slot i has ever been written; readable[i] means it
// currently holds a live pair (readable implies occupied). Scans stop at
// the first unoccupied slot, so once a slot is occupied it must stay that
// way until Clear — removal only clears readable, leaving a tombstone.
// Grounded on original_source/src/storage/page/hash_table_bucket_page.cpp
// for the exact byte/bit indexing and popcount tail.
type BucketPage struct {
	pg *page.Page
}

// NewBucketPage wraps a fetched/new page as a bucket page view. It does
// not initialize the page's bytes — a fresh page from the buffer pool is
// already zeroed, which is the correct empty-bucket state.
func NewBucketPage(pg *page.Page) *BucketPage {
	return &BucketPage{pg: pg}
}

func (b *BucketPage) IsOccupied(i int) bool {
	return b.pg.Data[occupiedOffset+i/8]&(1<<(uint(i)%8)) != 0
}

func (b *BucketPage) setOccupied(i int) {
	b.pg.Data[occupiedOffset+i/8] |= 1 << (uint(i) % 8)
}

func (b *BucketPage) IsReadable(i int) bool {
	return b.pg.Data[readableOffset+i/8]&(1<<(uint(i)%8)) != 0
}

func (b *BucketPage) setReadable(i int) {
	b.pg.Data[readableOffset+i/8] |= 1 << (uint(i) % 8)
}

func (b *BucketPage) clearReadable(i int) {
	b.pg.Data[readableOffset+i/8] &^= 1 << (uint(i) % 8)
}

func (b *BucketPage) slotOffset(i int) int {
	return arrayOffset + i*slotSize
}

// KeyAt returns a copy of slot i's key bytes.
func (b *BucketPage) KeyAt(i int) []byte {
	off := b.slotOffset(i)
	key := make([]byte, KeySize)
	copy(key, b.pg.Data[off:off+KeySize])
	return key
}

// ValueAt returns a copy of slot i's value bytes.
func (b *BucketPage) ValueAt(i int) []byte {
	off := b.slotOffset(i) + KeySize
	val := make([]byte, ValueSize)
	copy(val, b.pg.Data[off:off+ValueSize])
	return val
}

func (b *BucketPage) setSlot(i int, key, value []byte) {
	off := b.slotOffset(i)
	data := b.pg.Data
	for j := range data[off : off+KeySize] {
		data[off+j] = 0
	}
	copy(data[off:off+KeySize], key)
	off += KeySize
	for j := range data[off : off+ValueSize] {
		data[off+j] = 0
	}
	copy(data[off:off+ValueSize], value)
}

// Contains reports whether the exact (key, value) pair is currently
// readable, scanning until the first unoccupied slot.
func (b *BucketPage) Contains(key, value []byte, cmp KeyComparator) bool {
	for i := 0; i < BucketArraySize; i++ {
		if !b.IsOccupied(i) {
			break
		}
		if b.IsReadable(i) && cmp(key, b.KeyAt(i)) == 0 && bytesEqual(value, b.ValueAt(i)) {
			return true
		}
	}
	return false
}

// Insert places (key, value) in the first non-readable slot. Rejects an
// exact (key, value) duplicate found before the first unoccupied slot, and
// refuses if the bucket is already full.
func (b *BucketPage) Insert(key, value []byte, cmp KeyComparator) bool {
	if b.IsFull() {
		return false
	}
	if b.Contains(key, value, cmp) {
		return false
	}
	for i := 0; i < BucketArraySize; i++ {
		if !b.IsReadable(i) {
			b.setSlot(i, key, value)
			b.setOccupied(i)
			b.setReadable(i)
			return true
		}
	}
	return false
}

// Remove clears the readable bit of the first matching (key, value),
// leaving a tombstone (occupied stays set). Returns whether anything was
// removed.
func (b *BucketPage) Remove(key, value []byte, cmp KeyComparator) bool {
	for i := 0; i < BucketArraySize; i++ {
		if !b.IsOccupied(i) {
			break
		}
		if b.IsReadable(i) && cmp(key, b.KeyAt(i)) == 0 && bytesEqual(value, b.ValueAt(i)) {
			b.RemoveAt(i)
			return true
		}
	}
	return false
}

// RemoveAt tombstones slot i directly.
func (b *BucketPage) RemoveAt(i int) {
	b.clearReadable(i)
}

// GetValue appends every readable value whose key equals key, scanning
// until the first unoccupied slot. Returns whether anything matched.
func (b *BucketPage) GetValue(key []byte, cmp KeyComparator, out *[][]byte) bool {
	found := false
	for i := 0; i < BucketArraySize; i++ {
		if !b.IsOccupied(i) {
			break
		}
		if b.IsReadable(i) && cmp(key, b.KeyAt(i)) == 0 {
			*out = append(*out, b.ValueAt(i))
			found = true
		}
	}
	return found
}

// IsFull reports whether every slot is readable.
func (b *BucketPage) IsFull() bool {
	return b.NumReadable() == BucketArraySize
}

// IsEmpty reports whether no slot is readable.
func (b *BucketPage) IsEmpty() bool {
	for i := 0; i < bitmapBytes; i++ {
		if b.pg.Data[readableOffset+i] != 0 {
			return false
		}
	}
	return true
}

// NumReadable counts readable slots via a byte-granular popcount.
func (b *BucketPage) NumReadable() int {
	n := 0
	for i := 0; i < bitmapBytes; i++ {
		c := b.pg.Data[readableOffset+i]
		c = (c>>1)&0x55 + c&0x55
		c = (c>>2)&0x33 + c&0x33
		c = (c >> 4) + c&0x0F
		n += int(c)
	}
	return n
}

// Pair is a (key, value) snapshot from GetAllPairs.
type Pair struct {
	Key   []byte
	Value []byte
}

// GetAllPairs returns every readable (key, value) in slot order.
func (b *BucketPage) GetAllPairs() []Pair {
	var out []Pair
	for i := 0; i < BucketArraySize; i++ {
		if !b.IsOccupied(i) {
			break
		}
		if b.IsReadable(i) {
			out = append(out, Pair{Key: b.KeyAt(i), Value: b.ValueAt(i)})
		}
	}
	return out
}

// Clear resets both bitmaps, the only operation allowed to clear an
// occupied bit.
func (b *BucketPage) Clear() {
	data := b.pg.Data
	for i := 0; i < bitmapBytes; i++ {
		data[occupiedOffset+i] = 0
		data[readableOffset+i] = 0
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

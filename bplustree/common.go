// Package bplustree implements a disk-backed B+-tree index: LeafPage and
// InternalPage are page views over a buffer pool, BPlusTree drives
// search/insert/remove with latch-crabbing descent, and a HeaderPage
// persists each named index's root page id across restarts.
package bplustree

import (
	"encoding/binary"

	"diskindex/page"
)

// PageType tags the common page header so a fetched page can be
// interpreted as the right view without a side table.
type PageType byte

const (
	PageTypeInvalid PageType = iota
	PageTypeLeaf
	PageTypeInternal
)

// KeyComparator orders two keys: <0, 0, >0 for less/equal/greater.
type KeyComparator func(a, b []byte) int

const (
	// KeySize and ValueSize fix the slot width this implementation
	// chooses for tree entries — an 8-byte integer key mapped to an
	// 8-byte row id — the same concrete instantiation BusTub's
	// GenericKey<8>/RID templates make, monomorphized instead of
	// templated.
	KeySize   = 8
	ValueSize = 8

	// Common page header, shared by leaf and internal pages: page_type,
	// size, max_size, parent_page_id, page_id.
	typeOffset       = 0
	sizeOffset       = 4
	maxSizeOffset    = 8
	parentOffset     = 12
	pageIDOffset     = 20
	commonHeaderSize = 28

	leafNextOffset  = commonHeaderSize
	leafHeaderSize  = leafNextOffset + 8
	leafArrayOffset = leafHeaderSize
	leafSlotSize    = KeySize + ValueSize
	// LeafMaxCapacity is the hard ceiling the page format allows; the
	// tree's configured leaf max_size must not exceed it.
	LeafMaxCapacity = (page.Size - leafArrayOffset) / leafSlotSize

	internalHeaderSize  = commonHeaderSize
	internalArrayOffset = internalHeaderSize
	internalSlotSize    = KeySize + 8 // key + child page id
	// InternalMaxCapacity is the hard ceiling for internal node fan-out.
	InternalMaxCapacity = (page.Size - internalArrayOffset) / internalSlotSize
)

func init() {
	if leafArrayOffset+LeafMaxCapacity*leafSlotSize > page.Size {
		panic("bplustree: leaf layout does not fit in page.Size")
	}
	if internalArrayOffset+InternalMaxCapacity*internalSlotSize > page.Size {
		panic("bplustree: internal layout does not fit in page.Size")
	}
}

func pageType(pg *page.Page) PageType      { return PageType(pg.Data[typeOffset]) }
func setPageType(pg *page.Page, t PageType) { pg.Data[typeOffset] = byte(t) }

func getSize(pg *page.Page) int32 { return int32(binary.LittleEndian.Uint32(pg.Data[sizeOffset:])) }
func setSize(pg *page.Page, n int32) {
	binary.LittleEndian.PutUint32(pg.Data[sizeOffset:], uint32(n))
}

func getMaxSize(pg *page.Page) int32 {
	return int32(binary.LittleEndian.Uint32(pg.Data[maxSizeOffset:]))
}
func setMaxSize(pg *page.Page, n int32) {
	binary.LittleEndian.PutUint32(pg.Data[maxSizeOffset:], uint32(n))
}

func getParentPageID(pg *page.Page) int64 {
	return int64(binary.LittleEndian.Uint64(pg.Data[parentOffset:]))
}
func setParentPageID(pg *page.Page, id int64) {
	binary.LittleEndian.PutUint64(pg.Data[parentOffset:], uint64(id))
}

func getPageID(pg *page.Page) int64 {
	return int64(binary.LittleEndian.Uint64(pg.Data[pageIDOffset:]))
}
func setPageID(pg *page.Page, id int64) {
	binary.LittleEndian.PutUint64(pg.Data[pageIDOffset:], uint64(id))
}

// EncodeIntKey encodes an integer as a big-endian 8-byte key, so
// bytes.Compare orders it the same as the integer itself. Used by
// InsertFromFile/RemoveFromFile and convenient for tests.
func EncodeIntKey(v int64) []byte {
	b := make([]byte, KeySize)
	binary.BigEndian.PutUint64(b, uint64(v)+1<<63)
	return b
}

// DecodeIntKey reverses EncodeIntKey.
func DecodeIntKey(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b) - 1<<63)
}

// minSize is the leaf underflow floor: a leaf may hold as few as
// maxSize/2 entries.
func minSize(maxSize int32) int32 {
	return maxSize / 2
}

// internalMinSize is the internal-node underflow floor, counted in
// children. An internal node splits when it reaches maxSize children and
// MoveHalfTo leaves maxSize/2 of them on the left, so maxSize/2 is the
// floor every node produced by a split satisfies.
func internalMinSize(maxSize int32) int32 {
	return maxSize / 2
}

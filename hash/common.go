// Package hash implements the extendible hash table: a directory page of
// global/local depths pointing at bucket pages, each a bit-packed slotted
// array supporting duplicate-key multi-value point queries.
package hash

import "diskindex/page"

// HashFunction hashes a key to 64 bits; the table downcasts to 32 bits
// itself, matching original_source/extendible_hash_table.cpp's Hash().
type HashFunction func(key []byte) uint64

// KeyComparator orders two keys: <0, 0, >0 for less/equal/greater.
type KeyComparator func(a, b []byte) int

const (
	// KeySize and ValueSize are the fixed slot widths this implementation
	// chooses for bucket entries (e.g. an 8-byte integer key mapped to an
	// 8-byte row id), the same concrete choice BusTub's template
	// instantiations for int/RID make, just monomorphized instead of
	// templated since Go methods don't carry type parameters here.
	KeySize   = 8
	ValueSize = 8
	slotSize  = KeySize + ValueSize

	// BucketArraySize is derived from the page byte budget: each slot
	// costs slotSize bytes plus 2 bits of bitmap (occupied+readable).
	// The largest n with 2*ceil(n/8) + n*slotSize <= page.Size for
	// page.Size=4096, slotSize=16 is 252; n=248 takes 2*31 + 248*16 =
	// 4030 bytes, leaving 66 header/slack bytes.
	BucketArraySize = 248

	bitmapBytes = (BucketArraySize + 7) / 8

	occupiedOffset = 0
	readableOffset = occupiedOffset + bitmapBytes
	arrayOffset    = readableOffset + bitmapBytes
)

func init() {
	if arrayOffset+BucketArraySize*slotSize > page.Size {
		panic("hash: BucketArraySize does not fit in page.Size")
	}
}

// MaxDepth bounds the directory: at most 1<<MaxDepth active slots, chosen
// so the directory page (8-byte self id + 4-byte global depth + per-slot
// 1-byte local depth + 8-byte bucket id) fits in one page:
// 12 + (1<<MaxDepth)*9 <= page.Size.
const MaxDepth = 8

const (
	dirSelfPageIDOffset  = 0
	dirGlobalDepthOffset = 8
	dirLocalDepthOffset  = 12
	dirBucketIDOffset    = dirLocalDepthOffset + (1 << MaxDepth)
)

func init() {
	if dirBucketIDOffset+(1<<MaxDepth)*8 > page.Size {
		panic("hash: directory layout does not fit in page.Size")
	}
}

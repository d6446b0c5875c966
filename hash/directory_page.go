package hash

import (
	"encoding/binary"
	"fmt"

	"diskindex/page"
)

// DirectoryPage is the extendible-hashing directory: a global depth and,
// per active slot, a local depth and the bucket page id it currently
// routes to. Grounded on original_source/extendible_hash_table.cpp (the
// directory-page manipulation embedded in Insert/Remove there; this
// module exposes the same operations as named methods instead of inline
// code).
type DirectoryPage struct {
	pg *page.Page
}

func NewDirectoryPage(pg *page.Page) *DirectoryPage {
	return &DirectoryPage{pg: pg}
}

func (d *DirectoryPage) PageID() int64 {
	return int64(binary.LittleEndian.Uint64(d.pg.Data[dirSelfPageIDOffset:]))
}

func (d *DirectoryPage) SetPageID(id int64) {
	binary.LittleEndian.PutUint64(d.pg.Data[dirSelfPageIDOffset:], uint64(id))
}

func (d *DirectoryPage) GetGlobalDepth() uint32 {
	return binary.LittleEndian.Uint32(d.pg.Data[dirGlobalDepthOffset:])
}

func (d *DirectoryPage) setGlobalDepth(v uint32) {
	binary.LittleEndian.PutUint32(d.pg.Data[dirGlobalDepthOffset:], v)
}

func (d *DirectoryPage) IncrGlobalDepth() { d.setGlobalDepth(d.GetGlobalDepth() + 1) }
func (d *DirectoryPage) DecrGlobalDepth() { d.setGlobalDepth(d.GetGlobalDepth() - 1) }

// GetGlobalDepthMask returns (1<<global_depth)-1.
func (d *DirectoryPage) GetGlobalDepthMask() uint32 {
	return (1 << d.GetGlobalDepth()) - 1
}

// GetLocalDepthMask returns (1<<local_depth[i])-1.
func (d *DirectoryPage) GetLocalDepthMask(i uint32) uint32 {
	return (1 << d.GetLocalDepth(i)) - 1
}

// Size returns the directory's active region, 1<<global_depth.
func (d *DirectoryPage) Size() uint32 {
	return 1 << d.GetGlobalDepth()
}

func (d *DirectoryPage) GetLocalDepth(i uint32) uint32 {
	return uint32(d.pg.Data[dirLocalDepthOffset+int(i)])
}

func (d *DirectoryPage) SetLocalDepth(i uint32, depth uint32) {
	d.pg.Data[dirLocalDepthOffset+int(i)] = byte(depth)
}

func (d *DirectoryPage) IncrLocalDepth(i uint32) { d.SetLocalDepth(i, d.GetLocalDepth(i)+1) }
func (d *DirectoryPage) DecrLocalDepth(i uint32) { d.SetLocalDepth(i, d.GetLocalDepth(i)-1) }

func (d *DirectoryPage) GetBucketPageId(i uint32) int64 {
	off := dirBucketIDOffset + int(i)*8
	return int64(binary.LittleEndian.Uint64(d.pg.Data[off:]))
}

func (d *DirectoryPage) SetBucketPageId(i uint32, bucketPageID int64) {
	off := dirBucketIDOffset + int(i)*8
	binary.LittleEndian.PutUint64(d.pg.Data[off:], uint64(bucketPageID))
}

// CanShrink halves the directory's active region by decrementing the
// global depth, if every active slot's local depth is strictly less than
// the current global depth. Returns whether it did.
func (d *DirectoryPage) CanShrink() bool {
	n := d.Size()
	gd := d.GetGlobalDepth()
	for i := uint32(0); i < n; i++ {
		if d.GetLocalDepth(i) >= gd {
			return false
		}
	}
	if gd == 0 {
		return false
	}
	d.DecrGlobalDepth()
	return true
}

// VerifyIntegrity checks invariant (1): two slots share a bucket page id
// iff their low local_depth bits match and their local depths are equal.
func (d *DirectoryPage) VerifyIntegrity() []error {
	var errs []error
	n := d.Size()
	for i := uint32(0); i < n; i++ {
		ld := d.GetLocalDepth(i)
		if ld > d.GetGlobalDepth() {
			errs = append(errs, fmt.Errorf("directory: slot %d local depth %d exceeds global depth %d", i, ld, d.GetGlobalDepth()))
		}
		mask := d.GetLocalDepthMask(i)
		for j := i + 1; j < n; j++ {
			sameBucket := d.GetBucketPageId(i) == d.GetBucketPageId(j)
			sameStride := (i&mask) == (j&mask) && ld == d.GetLocalDepth(j)
			if sameBucket != sameStride {
				errs = append(errs, fmt.Errorf("directory: slots %d,%d bucket-sharing %v but stride match %v", i, j, sameBucket, sameStride))
			}
		}
	}
	return errs
}

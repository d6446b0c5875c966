package bplustree

import (
	"encoding/binary"
	"errors"
	"fmt"

	"diskindex/page"
)

// ErrIndexNotFound is returned by HeaderPage.GetRootID when no record
// exists for the given name.
var ErrIndexNotFound = errors.New("bplustree: index name not found")

const (
	headerCountOffset  = 0
	headerRecordOffset = 4
	headerNameLen      = 64
	headerRecordSize   = headerNameLen + 8
	headerMaxRecords   = (page.Size - headerRecordOffset) / headerRecordSize
)

// HeaderPage is a small fixed-length directory page mapping index name to
// root page id. Grounded on spec's HeaderPage note and the teacher's
// disk-manager metadata-page convention
// (storage_engine/disk_manager/structs.go), adapted from a per-file
// metadata page into a named-record directory. It is not pinned to page 0:
// NewBPlusTree allocates a fresh header page from the pool for every tree
// it creates, and trees share one header page only when they are opened
// with OpenBPlusTree on the same header page id.
type HeaderPage struct {
	pg *page.Page
}

func NewHeaderPage(pg *page.Page) *HeaderPage { return &HeaderPage{pg: pg} }

// Init formats pg as a fresh, empty header page.
func (h *HeaderPage) Init() {
	binary.LittleEndian.PutUint32(h.pg.Data[headerCountOffset:], 0)
}

func (h *HeaderPage) count() int {
	return int(binary.LittleEndian.Uint32(h.pg.Data[headerCountOffset:]))
}

func (h *HeaderPage) recordOffset(i int) int {
	return headerRecordOffset + i*headerRecordSize
}

func (h *HeaderPage) nameAt(i int) string {
	off := h.recordOffset(i)
	raw := h.pg.Data[off : off+headerNameLen]
	end := 0
	for end < len(raw) && raw[end] != 0 {
		end++
	}
	return string(raw[:end])
}

func (h *HeaderPage) rootAt(i int) int64 {
	off := h.recordOffset(i) + headerNameLen
	return int64(binary.LittleEndian.Uint64(h.pg.Data[off:]))
}

// GetRootID returns the root page id published under name.
func (h *HeaderPage) GetRootID(name string) (int64, error) {
	for i := 0; i < h.count(); i++ {
		if h.nameAt(i) == name {
			return h.rootAt(i), nil
		}
	}
	return page.InvalidID, ErrIndexNotFound
}

// UpdateRootID inserts a new record on first publication for name, or
// overwrites the existing one on every call after.
func (h *HeaderPage) UpdateRootID(name string, rootPageID int64) error {
	if len(name) > headerNameLen {
		return fmt.Errorf("bplustree: index name %q exceeds %d bytes", name, headerNameLen)
	}
	n := h.count()
	for i := 0; i < n; i++ {
		if h.nameAt(i) == name {
			off := h.recordOffset(i) + headerNameLen
			binary.LittleEndian.PutUint64(h.pg.Data[off:], uint64(rootPageID))
			return nil
		}
	}
	if n >= headerMaxRecords {
		return fmt.Errorf("bplustree: header page full (%d records)", headerMaxRecords)
	}
	off := h.recordOffset(n)
	for i := range h.pg.Data[off : off+headerNameLen] {
		h.pg.Data[off+i] = 0
	}
	copy(h.pg.Data[off:off+headerNameLen], name)
	binary.LittleEndian.PutUint64(h.pg.Data[off+headerNameLen:], uint64(rootPageID))
	binary.LittleEndian.PutUint32(h.pg.Data[headerCountOffset:], uint32(n+1))
	return nil
}

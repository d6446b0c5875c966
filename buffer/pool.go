// Package buffer implements the page cache: a fixed-capacity buffer pool
// instance plus an N-way sharded pool built on top of it. Both the hash
// table and the B+-tree depend on the Pool interface, never a concrete
// pool, so either can sit underneath.
package buffer

import "diskindex/page"

// Pool is the buffer-pool surface the index structures depend on.
// *Instance and *Parallel both satisfy it.
type Pool interface {
	// Fetch returns the page for pageID, pinned, loading it from disk on
	// a cache miss. Returns an error if no frame could be made available.
	Fetch(pageID int64) (*page.Page, error)

	// New allocates a fresh page id, returns a pinned, zeroed, dirty page.
	New() (*page.Page, error)

	// Unpin decrements pageID's pin count; isDirty is OR-ed into the
	// page's dirty flag. Returns false if pageID isn't resident or is
	// already unpinned.
	Unpin(pageID int64, isDirty bool) (bool, error)

	// Delete evicts pageID and deallocates its id. Returns false if the
	// page is resident and still pinned.
	Delete(pageID int64) (bool, error)

	// Flush writes pageID to disk if dirty, without changing its pin count.
	Flush(pageID int64) error

	// FlushAll flushes every dirty resident page.
	FlushAll() error

	// Size reports how many distinct pages the pool can address in total
	// (poolSize for an Instance, N*poolSize for a Parallel).
	Size() int
}

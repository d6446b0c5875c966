package buffer

import (
	"errors"
	"fmt"
	"sync"

	"diskindex/diskmanager"
	"diskindex/page"
	"diskindex/replacer"
)

// ErrAllFramesPinned is returned by New/Fetch-miss when every frame in the
// pool is pinned and none can be evicted to make room.
var ErrAllFramesPinned = errors.New("buffer: all frames pinned")

// Instance is a single fixed-capacity buffer pool shard. It owns an array
// of frames, a page-id-to-frame table, a free list, and an LRU replacer,
// and serializes all of its metadata transitions behind one mutex. Disk
// I/O (the read on a Fetch miss, the write-back of a dirty victim, Flush
// and FlushAll) also runs with that mutex held. Grounded on
// storage_engine/bufferpool/{structs,bufferpool}.go for the fetch/pin/
// evict/flush shape and its fmt-based trace logging, with the page-id
// bookkeeping modelled on the shard contract in
// original_source/.../parallel_buffer_pool_manager.cpp: an instance only
// ever allocates ids congruent to shardIdx mod shardCount.
type Instance struct {
	mu sync.Mutex

	shardIdx   int
	shardCount int
	nextPageID int64

	frames    []*page.Page
	pageTable map[int64]int // page id -> frame index
	freeList  []int
	repl      *replacer.LRUReplacer
	disk      diskmanager.DiskManager

	// Verbose gates the [BufferPool] trace lines the teacher's
	// bufferpool.go prints unconditionally; tests want silence by default.
	Verbose bool
}

// NewInstance creates a buffer pool instance of poolSize frames, backed by
// disk, responsible for page ids congruent to shardIdx modulo shardCount.
// A non-sharded pool is just shardIdx=0, shardCount=1.
func NewInstance(poolSize, shardIdx, shardCount int, disk diskmanager.DiskManager) *Instance {
	freeList := make([]int, poolSize)
	for i := range freeList {
		freeList[i] = i
	}
	return &Instance{
		shardIdx:   shardIdx,
		shardCount: shardCount,
		nextPageID: int64(shardIdx),
		frames:     make([]*page.Page, poolSize),
		pageTable:  make(map[int64]int, poolSize),
		freeList:   freeList,
		repl:       replacer.NewLRUReplacer(poolSize),
		disk:       disk,
	}
}

func (b *Instance) logf(format string, args ...any) {
	if b.Verbose {
		fmt.Printf("[BufferPool] "+format+"\n", args...)
	}
}

// Fetch returns pageID pinned, reading it from disk on a miss. Fetch
// holds b.mu throughout; disk reads happen with the mutex held too since
// a miss must install the frame before any concurrent Fetch can observe
// a half-loaded page table entry — matches the teacher's bufferpool.go,
// which takes the same tradeoff for the same reason.
func (b *Instance) Fetch(pageID int64) (*page.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if frameID, ok := b.pageTable[pageID]; ok {
		pg := b.frames[frameID]
		pg.PinCount++
		b.repl.Pin(frameID)
		b.logf("HIT  pageID=%d pinCount=%d", pageID, pg.PinCount)
		return pg, nil
	}

	b.logf("MISS pageID=%d — loading from disk", pageID)
	frameID, err := b.allocateFrame()
	if err != nil {
		return nil, err
	}

	pg := b.frames[frameID]
	if pg == nil {
		pg = page.New(pageID)
		b.frames[frameID] = pg
	} else {
		pg.Reset(pageID)
	}
	if err := b.disk.ReadPage(pageID, pg.Data); err != nil {
		b.freeList = append(b.freeList, frameID)
		return nil, fmt.Errorf("buffer: fetch page %d: %w", pageID, err)
	}

	b.pageTable[pageID] = frameID
	pg.PinCount = 1
	return pg, nil
}

// New allocates a fresh page id (via the shard's own congruent counter,
// not the disk manager's) and returns it pinned, zeroed, and dirty.
func (b *Instance) New() (*page.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	frameID, err := b.allocateFrame()
	if err != nil {
		return nil, err
	}

	pageID := b.nextPageID
	b.nextPageID += int64(b.shardCount)

	pg := b.frames[frameID]
	if pg == nil {
		pg = page.New(pageID)
		b.frames[frameID] = pg
	} else {
		pg.Reset(pageID)
	}
	pg.IsDirty = true
	pg.PinCount = 1

	b.pageTable[pageID] = frameID
	b.logf("NEW  pageID=%d frameID=%d", pageID, frameID)
	return pg, nil
}

// allocateFrame returns a frame index ready to receive a page, taking from
// the free list first and falling back to the replacer's victim. Caller
// holds b.mu.
func (b *Instance) allocateFrame() (int, error) {
	if n := len(b.freeList); n > 0 {
		frameID := b.freeList[n-1]
		b.freeList = b.freeList[:n-1]
		return frameID, nil
	}

	frameID, ok := b.repl.Victim()
	if !ok {
		return 0, ErrAllFramesPinned
	}

	victim := b.frames[frameID]
	if victim != nil {
		if victim.IsDirty {
			b.logf("EVICT pageID=%d dirty=true", victim.ID)
			if err := b.disk.WritePage(victim.ID, victim.Data); err != nil {
				return 0, fmt.Errorf("buffer: evict page %d: %w", victim.ID, err)
			}
		} else {
			b.logf("EVICT pageID=%d dirty=false", victim.ID)
		}
		delete(b.pageTable, victim.ID)
	}
	return frameID, nil
}

// Unpin decrements pageID's pin count. isDirty is OR-ed into the frame's
// dirty flag — a false value never clears an already-dirty page.
func (b *Instance) Unpin(pageID int64, isDirty bool) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	frameID, ok := b.pageTable[pageID]
	if !ok {
		return false, nil
	}
	pg := b.frames[frameID]
	if pg.PinCount <= 0 {
		return false, nil
	}

	pg.PinCount--
	if isDirty {
		pg.IsDirty = true
	}
	if pg.PinCount == 0 {
		b.repl.Unpin(frameID)
	}
	return true, nil
}

// Delete removes pageID from the pool and deallocates its id. Fails if
// the page is resident and still pinned.
func (b *Instance) Delete(pageID int64) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	frameID, ok := b.pageTable[pageID]
	if !ok {
		return true, b.disk.DeallocatePage(pageID)
	}
	pg := b.frames[frameID]
	if pg.PinCount > 0 {
		return false, nil
	}

	b.repl.Pin(frameID)
	delete(b.pageTable, pageID)
	pg.Reset(page.InvalidID)
	b.freeList = append(b.freeList, frameID)

	if err := b.disk.DeallocatePage(pageID); err != nil {
		return false, fmt.Errorf("buffer: deallocate page %d: %w", pageID, err)
	}
	return true, nil
}

// Flush writes pageID to disk if dirty, without touching its pin count.
func (b *Instance) Flush(pageID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	frameID, ok := b.pageTable[pageID]
	if !ok {
		return fmt.Errorf("buffer: page %d not resident", pageID)
	}
	pg := b.frames[frameID]
	if !pg.IsDirty {
		return nil
	}
	if err := b.disk.WritePage(pg.ID, pg.Data); err != nil {
		return fmt.Errorf("buffer: flush page %d: %w", pageID, err)
	}
	pg.IsDirty = false
	b.logf("FLUSH pageID=%d", pageID)
	return nil
}

// FlushAll writes every dirty resident page to disk.
func (b *Instance) FlushAll() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.logf("FlushAll — resident=%d", len(b.pageTable))
	for pageID, frameID := range b.pageTable {
		pg := b.frames[frameID]
		if !pg.IsDirty {
			continue
		}
		if err := b.disk.WritePage(pg.ID, pg.Data); err != nil {
			return fmt.Errorf("buffer: flush page %d: %w", pageID, err)
		}
		pg.IsDirty = false
	}
	return nil
}

// Size returns the instance's frame capacity.
func (b *Instance) Size() int {
	return len(b.frames)
}

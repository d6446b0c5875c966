package buffer

import (
	"fmt"
	"sync/atomic"

	"diskindex/diskmanager"
	"diskindex/page"
)

// Parallel shards N buffer pool instances by pageID mod N, the way
// original_source/.../parallel_buffer_pool_manager.cpp shards its member
// BufferPoolManagers. All instances share one DiskManager: sharding only
// partitions which instance's metadata/replacer owns a page, not where
// its bytes live.
type Parallel struct {
	instances []*Instance
	start     int64 // atomically advanced start index for New's round-robin
}

// NewParallel creates n instances of poolSizePerInstance frames each,
// sharing disk.
func NewParallel(n, poolSizePerInstance int, disk diskmanager.DiskManager) *Parallel {
	instances := make([]*Instance, n)
	for i := range instances {
		instances[i] = NewInstance(poolSizePerInstance, i, n, disk)
	}
	return &Parallel{instances: instances}
}

func (p *Parallel) shardFor(pageID int64) *Instance {
	n := int64(len(p.instances))
	idx := pageID % n
	if idx < 0 {
		idx += n
	}
	return p.instances[idx]
}

func (p *Parallel) Fetch(pageID int64) (*page.Page, error) {
	return p.shardFor(pageID).Fetch(pageID)
}

// New round-robins from an atomically advanced start index: it tries each
// instance in order starting there until one succeeds, matching
// ParallelBufferPoolManager::NewPgImp. Returns ErrAllFramesPinned only if
// every instance is full.
func (p *Parallel) New() (*page.Page, error) {
	n := int64(len(p.instances))
	start := atomic.AddInt64(&p.start, 1) % n

	var lastErr error
	for i := int64(0); i < n; i++ {
		idx := (start + i) % n
		pg, err := p.instances[idx].New()
		if err == nil {
			return pg, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("buffer: parallel new: %w", lastErr)
}

func (p *Parallel) Unpin(pageID int64, isDirty bool) (bool, error) {
	return p.shardFor(pageID).Unpin(pageID, isDirty)
}

func (p *Parallel) Delete(pageID int64) (bool, error) {
	return p.shardFor(pageID).Delete(pageID)
}

func (p *Parallel) Flush(pageID int64) error {
	return p.shardFor(pageID).Flush(pageID)
}

func (p *Parallel) FlushAll() error {
	for _, inst := range p.instances {
		if err := inst.FlushAll(); err != nil {
			return err
		}
	}
	return nil
}

// Size returns the pool's total addressable frame count: N * pool_size.
func (p *Parallel) Size() int {
	total := 0
	for _, inst := range p.instances {
		total += inst.Size()
	}
	return total
}

package buffer

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"diskindex/page"
)

// Stats is an operator-facing snapshot of an instance's occupancy,
// grounded on bufferpool/structs.go's BufferPoolStats.
type Stats struct {
	Resident int
	Pinned   int
	Dirty    int
	Capacity int
}

// String renders the snapshot the way a production buffer pool would log
// its footprint: byte counts humanized rather than raw integers.
func (s Stats) String() string {
	bytes := humanize.Bytes(uint64(s.Resident) * page.Size)
	capBytes := humanize.Bytes(uint64(s.Capacity) * page.Size)
	return fmt.Sprintf("resident=%s/%s pages=%s pinned=%s dirty=%s",
		bytes, capBytes,
		humanize.Comma(int64(s.Resident)), humanize.Comma(int64(s.Pinned)), humanize.Comma(int64(s.Dirty)))
}

// Stats reports the instance's current occupancy.
func (b *Instance) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := Stats{Capacity: len(b.frames)}
	for _, frameID := range b.pageTable {
		pg := b.frames[frameID]
		s.Resident++
		if pg.PinCount > 0 {
			s.Pinned++
		}
		if pg.IsDirty {
			s.Dirty++
		}
	}
	return s
}

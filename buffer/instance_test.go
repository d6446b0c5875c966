package buffer

import (
	"testing"

	"diskindex/diskmanager"
)

// TestEvictionWritesDirtyVictimAndFetchRereads is scenario S6 from spec.md
// §8: pool_size=3, three pages pinned, a fourth New fails, unpinning one
// dirty page lets a fourth New succeed by evicting it (writing it to
// disk), and, once the fourth page is unpinned, a Fetch reads it back.
func TestEvictionWritesDirtyVictimAndFetchRereads(t *testing.T) {
	disk := diskmanager.NewMemDiskManager()
	b := NewInstance(3, 0, 1, disk)

	a, err := b.New()
	if err != nil {
		t.Fatalf("New A: %v", err)
	}
	aID := a.ID
	a.Data[0] = 0x11

	bp, err := b.New()
	if err != nil {
		t.Fatalf("New B: %v", err)
	}
	c, err := b.New()
	if err != nil {
		t.Fatalf("New C: %v", err)
	}

	if _, err := b.New(); err != ErrAllFramesPinned {
		t.Fatalf("New with all frames pinned = %v, want ErrAllFramesPinned", err)
	}

	if ok, err := b.Unpin(a.ID, true); err != nil || !ok {
		t.Fatalf("Unpin(A, true) = (%v, %v), want (true, nil)", ok, err)
	}

	if disk.PageCount() != 0 {
		t.Fatalf("disk should not have seen a write yet, PageCount=%d", disk.PageCount())
	}

	d, err := b.New()
	if err != nil {
		t.Fatalf("fourth New after unpin: %v", err)
	}
	if d.ID == aID {
		t.Fatalf("fourth page reused A's id %d, expected a fresh id", aID)
	}
	if disk.PageCount() != 1 {
		t.Fatalf("eviction of dirty A should have written it to disk, PageCount=%d", disk.PageCount())
	}

	b.Unpin(d.ID, false)
	refetched, err := b.Fetch(aID)
	if err != nil {
		t.Fatalf("Fetch(A) after eviction: %v", err)
	}
	if refetched.Data[0] != 0x11 {
		t.Fatalf("Fetch(A) = %#v, want to read back the dirty write byte 0x11", refetched.Data[0])
	}

	b.Unpin(bp.ID, false)
	b.Unpin(c.ID, false)
	b.Unpin(aID, false)
}

func TestFetchHitIncrementsPinAndSkipsReplacer(t *testing.T) {
	disk := diskmanager.NewMemDiskManager()
	b := NewInstance(2, 0, 1, disk)

	pg, err := b.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b.Unpin(pg.ID, false)

	got1, err := b.Fetch(pg.ID)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	got2, err := b.Fetch(pg.ID)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got1 != got2 {
		t.Fatal("two fetches of the same resident page should return the same frame")
	}
	if got1.PinCount != 2 {
		t.Fatalf("PinCount = %d, want 2 after two fetches", got1.PinCount)
	}
}

func TestUnpinFalseNeverClearsDirty(t *testing.T) {
	disk := diskmanager.NewMemDiskManager()
	b := NewInstance(2, 0, 1, disk)

	pg, _ := b.New() // pin=1, dirty=true
	b.Unpin(pg.ID, false)

	got, _ := b.Fetch(pg.ID)
	if !got.IsDirty {
		t.Fatal("dirty flag should not have been cleared by Unpin(false)")
	}
}

func TestUnpinUnresidentOrOverUnpinReturnsFalse(t *testing.T) {
	disk := diskmanager.NewMemDiskManager()
	b := NewInstance(2, 0, 1, disk)

	if ok, err := b.Unpin(999, false); err != nil || ok {
		t.Fatalf("Unpin of unresident page = (%v, %v), want (false, nil)", ok, err)
	}

	pg, _ := b.New()
	b.Unpin(pg.ID, false)
	if ok, err := b.Unpin(pg.ID, false); err != nil || ok {
		t.Fatalf("second Unpin of an already-zero-pin page = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestDeleteRefusesWhilePinned(t *testing.T) {
	disk := diskmanager.NewMemDiskManager()
	b := NewInstance(2, 0, 1, disk)

	pg, _ := b.New()
	if ok, err := b.Delete(pg.ID); err != nil || ok {
		t.Fatalf("Delete of a pinned page = (%v, %v), want (false, nil)", ok, err)
	}

	b.Unpin(pg.ID, false)
	if ok, err := b.Delete(pg.ID); err != nil || !ok {
		t.Fatalf("Delete of an unpinned page = (%v, %v), want (true, nil)", ok, err)
	}
}

func TestFreeListReusedBeforeEviction(t *testing.T) {
	disk := diskmanager.NewMemDiskManager()
	b := NewInstance(2, 0, 1, disk)

	pg1, _ := b.New()
	b.Unpin(pg1.ID, false)
	b.Delete(pg1.ID)

	pg2, err := b.New()
	if err != nil {
		t.Fatalf("New after Delete: %v", err)
	}
	b.Unpin(pg2.ID, false)

	pg3, err := b.New()
	if err != nil {
		t.Fatalf("second New: %v", err)
	}
	_ = pg3
	if disk.PageCount() != 0 {
		t.Fatalf("second New evicted dirty pg2 instead of reusing the freed frame, PageCount=%d", disk.PageCount())
	}
}

func TestShardedPageIDsRespectModulus(t *testing.T) {
	disk := diskmanager.NewMemDiskManager()
	b := NewInstance(4, 2, 5, disk) // shard 2 of 5

	for i := 0; i < 3; i++ {
		pg, err := b.New()
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if pg.ID%5 != 2 {
			t.Fatalf("page id %d not congruent to shard index 2 mod 5", pg.ID)
		}
		b.Unpin(pg.ID, false)
	}
}

func TestFlushClearsDirtyWithoutChangingPin(t *testing.T) {
	disk := diskmanager.NewMemDiskManager()
	b := NewInstance(2, 0, 1, disk)

	pg, _ := b.New()
	if err := b.Flush(pg.ID); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if pg.IsDirty {
		t.Fatal("Flush should clear the dirty flag")
	}
	if pg.PinCount != 1 {
		t.Fatalf("Flush changed pin count to %d, want unchanged 1", pg.PinCount)
	}
	if disk.PageCount() != 1 {
		t.Fatalf("Flush should have written to disk, PageCount=%d", disk.PageCount())
	}
}

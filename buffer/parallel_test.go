package buffer

import (
	"testing"

	"diskindex/diskmanager"
)

func TestParallelShardsByPageIDModulus(t *testing.T) {
	disk := diskmanager.NewMemDiskManager()
	p := NewParallel(3, 2, disk)

	seen := map[int64]bool{}
	for i := 0; i < 9; i++ {
		pg, err := p.New()
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if seen[pg.ID] {
			t.Fatalf("duplicate page id %d", pg.ID)
		}
		seen[pg.ID] = true
		p.Unpin(pg.ID, false)
	}

	for id := range seen {
		refetched, err := p.Fetch(id)
		if err != nil {
			t.Fatalf("Fetch(%d): %v", id, err)
		}
		if refetched.ID != id {
			t.Fatalf("Fetch(%d).ID = %d", id, refetched.ID)
		}
		p.Unpin(id, false)
	}
}

func TestParallelNewRoundRobinsAcrossInstances(t *testing.T) {
	disk := diskmanager.NewMemDiskManager()
	p := NewParallel(3, 4, disk)

	shardOf := func(id int64) int64 {
		m := id % 3
		if m < 0 {
			m += 3
		}
		return m
	}

	counts := map[int64]int{}
	for i := 0; i < 6; i++ {
		pg, err := p.New()
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		counts[shardOf(pg.ID)]++
		p.Unpin(pg.ID, false)
	}
	for shard, n := range counts {
		if n != 2 {
			t.Fatalf("shard %d got %d allocations, want 2 (round-robin over 3 shards x 6 calls)", shard, n)
		}
	}
}

func TestParallelSizeIsSumOfInstances(t *testing.T) {
	disk := diskmanager.NewMemDiskManager()
	p := NewParallel(4, 3, disk)
	if got, want := p.Size(), 12; got != want {
		t.Fatalf("Size() = %d, want %d", got, want)
	}
}

func TestParallelNewFailsOnlyWhenAllInstancesFull(t *testing.T) {
	disk := diskmanager.NewMemDiskManager()
	p := NewParallel(2, 1, disk) // 2 shards, 1 frame each

	pg1, err := p.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	pg2, err := p.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.New(); err == nil {
		t.Fatal("New should fail once every shard's single frame is pinned")
	}
	p.Unpin(pg1.ID, false)
	p.Unpin(pg2.ID, false)
}

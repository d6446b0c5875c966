package hash

import (
	"bytes"
	"testing"

	"diskindex/buffer"
	"diskindex/diskmanager"
)

func identityHash(key []byte) uint64 {
	var v uint64
	for _, b := range key {
		v = v<<8 | uint64(b)
	}
	return v
}

func newTestTable(t *testing.T) (*ExtendibleHashTable, buffer.Pool) {
	t.Helper()
	disk := diskmanager.NewMemDiskManager()
	pool := buffer.NewInstance(64, 0, 1, disk)
	ht, err := New(pool, identityHash, bytes.Compare)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return ht, pool
}

func TestHashInsertGetRemoveBasic(t *testing.T) {
	ht, _ := newTestTable(t)

	ok, err := ht.Insert(key(1), key(100))
	if err != nil || !ok {
		t.Fatalf("Insert(1,100) = (%v, %v), want (true, nil)", ok, err)
	}
	if ok, _ := ht.Insert(key(1), key(100)); ok {
		t.Fatal("duplicate (key,value) insert should fail")
	}

	out, err := ht.GetValue(key(1))
	if err != nil || len(out) != 1 || !bytes.Equal(out[0], key(100)) {
		t.Fatalf("GetValue(1) = %v, %v, want [100]", out, err)
	}

	removed, err := ht.Remove(key(1), key(100))
	if err != nil || !removed {
		t.Fatalf("Remove(1,100) = (%v, %v), want (true, nil)", removed, err)
	}
	out, _ = ht.GetValue(key(1))
	if len(out) != 0 {
		t.Fatalf("GetValue(1) after Remove = %v, want empty", out)
	}
	if removed, _ := ht.Remove(key(1), key(100)); removed {
		t.Fatal("second Remove of the same pair should fail")
	}
}

// TestHashSplitsAndPreservesAllValues inserts enough distinct keys under
// an identity hash (so they all initially collide at directory slot 0) to
// force multiple bucket splits, then checks every key is still retrievable
// and the directory's sharing invariant (spec.md §8 invariant 1) holds —
// the extendible-hash analogue of scenario S4.
func TestHashSplitsAndPreservesAllValues(t *testing.T) {
	ht, _ := newTestTable(t)

	const n = 2000
	for i := int64(0); i < n; i++ {
		ok, err := ht.Insert(key(i), key(i))
		if err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
		if !ok {
			t.Fatalf("Insert(%d) returned false unexpectedly", i)
		}
	}

	depth, err := ht.GetGlobalDepth()
	if err != nil {
		t.Fatalf("GetGlobalDepth: %v", err)
	}
	if depth == 0 {
		t.Fatal("inserting far more keys than one bucket holds should have split at least once")
	}

	for i := int64(0); i < n; i++ {
		out, err := ht.GetValue(key(i))
		if err != nil {
			t.Fatalf("GetValue(%d): %v", i, err)
		}
		if len(out) != 1 || !bytes.Equal(out[0], key(i)) {
			t.Fatalf("GetValue(%d) = %v, want [%d]", i, out, i)
		}
	}

	if errs := ht.VerifyIntegrity(); len(errs) != 0 {
		t.Fatalf("VerifyIntegrity() = %v, want none", errs)
	}
}

// TestHashRemoveMergesAndShrinks removes every key back out after a split
// sequence and checks the global depth comes back down via Merge/CanShrink
// — the analogue of scenario S5 — and that every key is gone from the
// table afterwards.
func TestHashRemoveMergesAndShrinks(t *testing.T) {
	ht, _ := newTestTable(t)

	const n = 2000
	for i := int64(0); i < n; i++ {
		if _, err := ht.Insert(key(i), key(i)); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	peakDepth, _ := ht.GetGlobalDepth()
	if peakDepth == 0 {
		t.Fatal("expected at least one split at n=2000")
	}

	for i := int64(0); i < n; i++ {
		removed, err := ht.Remove(key(i), key(i))
		if err != nil {
			t.Fatalf("Remove(%d): %v", i, err)
		}
		if !removed {
			t.Fatalf("Remove(%d) returned false unexpectedly", i)
		}
	}

	finalDepth, _ := ht.GetGlobalDepth()
	if finalDepth >= peakDepth {
		t.Fatalf("GetGlobalDepth() = %d after removing everything, want < peak %d", finalDepth, peakDepth)
	}

	for i := int64(0); i < n; i++ {
		out, err := ht.GetValue(key(i))
		if err != nil {
			t.Fatalf("GetValue(%d): %v", i, err)
		}
		if len(out) != 0 {
			t.Fatalf("GetValue(%d) = %v after removing everything, want empty", i, out)
		}
	}

	if errs := ht.VerifyIntegrity(); len(errs) != 0 {
		t.Fatalf("VerifyIntegrity() = %v, want none", errs)
	}
}

func TestHashSupportsDuplicateKeysDistinctValues(t *testing.T) {
	ht, _ := newTestTable(t)

	ht.Insert(key(1), key(10))
	ht.Insert(key(1), key(20))
	ht.Insert(key(1), key(30))

	out, err := ht.GetValue(key(1))
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("GetValue(1) = %v, want 3 values for a duplicate key", out)
	}
}

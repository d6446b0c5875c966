package hash

import (
	"bytes"
	"testing"

	"diskindex/page"
)

func key(n int64) []byte {
	b := make([]byte, KeySize)
	for i := 0; i < KeySize; i++ {
		b[KeySize-1-i] = byte(n >> (8 * i))
	}
	return b
}

func TestBucketInsertGetRemoveRoundTrip(t *testing.T) {
	b := NewBucketPage(page.New(0))

	if !b.Insert(key(1), key(100), bytes.Compare) {
		t.Fatal("Insert should succeed on an empty bucket")
	}
	var out [][]byte
	if !b.GetValue(key(1), bytes.Compare, &out) || len(out) != 1 || !bytes.Equal(out[0], key(100)) {
		t.Fatalf("GetValue(1) = %v, want [[100]]", out)
	}

	if !b.Remove(key(1), key(100), bytes.Compare) {
		t.Fatal("Remove of an existing pair should succeed")
	}
	out = nil
	if b.GetValue(key(1), bytes.Compare, &out) {
		t.Fatalf("GetValue(1) after Remove = %v, want no match", out)
	}
	if b.Remove(key(1), key(100), bytes.Compare) {
		t.Fatal("second Remove of the same pair should fail")
	}
}

func TestBucketTombstoneDoesNotBreakScanContinuation(t *testing.T) {
	b := NewBucketPage(page.New(0))
	b.Insert(key(1), key(1), bytes.Compare)
	b.Insert(key(2), key(2), bytes.Compare)
	b.Insert(key(3), key(3), bytes.Compare)

	b.Remove(key(2), key(2), bytes.Compare) // tombstone the middle slot

	var out [][]byte
	if !b.GetValue(key(3), bytes.Compare, &out) {
		t.Fatal("GetValue for a key past a tombstone must still be found")
	}
	if b.IsOccupied(1) == false {
		t.Fatal("occupied bit must survive Remove, only readable clears")
	}
	if b.IsReadable(1) {
		t.Fatal("readable bit should be cleared after Remove")
	}
}

func TestBucketDuplicatePairRejected(t *testing.T) {
	b := NewBucketPage(page.New(0))
	b.Insert(key(1), key(1), bytes.Compare)
	if b.Insert(key(1), key(1), bytes.Compare) {
		t.Fatal("inserting an identical (key,value) pair twice should fail")
	}
	// Same key, different value is allowed (hash table supports
	// duplicate keys at the bucket level).
	if !b.Insert(key(1), key(2), bytes.Compare) {
		t.Fatal("inserting the same key with a different value should succeed")
	}
	var out [][]byte
	b.GetValue(key(1), bytes.Compare, &out)
	if len(out) != 2 {
		t.Fatalf("GetValue(1) = %v, want 2 values", out)
	}
}

func TestBucketFullAndEmpty(t *testing.T) {
	b := NewBucketPage(page.New(0))
	if !b.IsEmpty() {
		t.Fatal("fresh bucket should be empty")
	}
	for i := 0; i < BucketArraySize; i++ {
		if !b.Insert(key(int64(i)), key(int64(i)), bytes.Compare) {
			t.Fatalf("Insert %d should succeed before bucket is full", i)
		}
	}
	if !b.IsFull() {
		t.Fatal("bucket should be full after BucketArraySize inserts")
	}
	if b.Insert(key(9999), key(9999), bytes.Compare) {
		t.Fatal("Insert into a full bucket should fail")
	}
	if b.NumReadable() != BucketArraySize {
		t.Fatalf("NumReadable() = %d, want %d", b.NumReadable(), BucketArraySize)
	}
}

func TestBucketClearResetsBothBitmaps(t *testing.T) {
	b := NewBucketPage(page.New(0))
	b.Insert(key(1), key(1), bytes.Compare)
	b.Remove(key(1), key(1), bytes.Compare)
	b.Clear()
	if !b.IsEmpty() {
		t.Fatal("Clear should reset the bucket to empty")
	}
	if b.IsOccupied(0) {
		t.Fatal("Clear must clear occupied too, unlike Remove")
	}
	if !b.Insert(key(1), key(1), bytes.Compare) {
		t.Fatal("bucket should accept inserts again after Clear")
	}
}

func TestBucketGetAllPairs(t *testing.T) {
	b := NewBucketPage(page.New(0))
	want := map[int64]bool{1: true, 2: true, 3: true}
	for k := range want {
		b.Insert(key(k), key(k), bytes.Compare)
	}
	b.Remove(key(2), key(2), bytes.Compare)
	delete(want, 2)

	pairs := b.GetAllPairs()
	if len(pairs) != len(want) {
		t.Fatalf("GetAllPairs() returned %d pairs, want %d", len(pairs), len(want))
	}
	for _, p := range pairs {
		k := int64(0)
		for _, bb := range p.Key {
			k = k<<8 | int64(bb)
		}
		if !want[k] {
			t.Fatalf("GetAllPairs() returned unexpected key %d", k)
		}
	}
}

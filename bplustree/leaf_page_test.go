package bplustree

import (
	"bytes"
	"testing"

	"diskindex/page"
)

func TestLeafInsertKeepsSortedOrderAndRejectsDuplicates(t *testing.T) {
	l := NewLeafPage(page.New(1))
	l.Init(5, page.InvalidID)

	for _, k := range []int64{3, 1, 4, 5} {
		l.Insert(EncodeIntKey(k), EncodeIntKey(k), bytes.Compare)
	}
	before := l.Size()
	after := l.Insert(EncodeIntKey(1), EncodeIntKey(999), bytes.Compare)
	if after != before {
		t.Fatalf("duplicate insert of 1 changed size %d -> %d", before, after)
	}

	want := []int64{1, 3, 4, 5}
	if int(l.Size()) != len(want) {
		t.Fatalf("Size() = %d, want %d", l.Size(), len(want))
	}
	for i, k := range want {
		if DecodeIntKey(l.KeyAt(i)) != k {
			t.Fatalf("KeyAt(%d) = %d, want %d", i, DecodeIntKey(l.KeyAt(i)), k)
		}
	}
}

func TestLeafLookupAndRemove(t *testing.T) {
	l := NewLeafPage(page.New(1))
	l.Init(10, page.InvalidID)
	for _, k := range []int64{1, 2, 3} {
		l.Insert(EncodeIntKey(k), EncodeIntKey(k*10), bytes.Compare)
	}

	var v []byte
	if !l.Lookup(EncodeIntKey(2), &v, bytes.Compare) || DecodeIntKey(v) != 20 {
		t.Fatalf("Lookup(2) failed or wrong value: found=%v v=%v", l.Lookup(EncodeIntKey(2), &v, bytes.Compare), v)
	}
	if l.Lookup(EncodeIntKey(99), &v, bytes.Compare) {
		t.Fatal("Lookup of a missing key should fail")
	}

	newSize := l.RemoveAndDeleteRecord(EncodeIntKey(2), bytes.Compare)
	if newSize != 2 {
		t.Fatalf("size after remove = %d, want 2", newSize)
	}
	if l.Lookup(EncodeIntKey(2), &v, bytes.Compare) {
		t.Fatal("removed key should no longer be found")
	}
}

func TestLeafMoveHalfTo(t *testing.T) {
	left := NewLeafPage(page.New(1))
	left.Init(5, page.InvalidID)
	right := NewLeafPage(page.New(2))
	right.Init(5, page.InvalidID)

	for _, k := range []int64{1, 2, 3, 4, 5} {
		left.Insert(EncodeIntKey(k), EncodeIntKey(k), bytes.Compare)
	}
	left.MoveHalfTo(right)

	if left.Size() != 2 || right.Size() != 3 {
		t.Fatalf("sizes after split = left %d right %d, want 2,3", left.Size(), right.Size())
	}
	if DecodeIntKey(left.KeyAt(0)) != 1 || DecodeIntKey(left.KeyAt(1)) != 2 {
		t.Fatalf("left keys wrong after split")
	}
	if DecodeIntKey(right.KeyAt(0)) != 3 || DecodeIntKey(right.KeyAt(2)) != 5 {
		t.Fatalf("right keys wrong after split")
	}
}

func TestLeafMoveAllToAndRedistribute(t *testing.T) {
	left := NewLeafPage(page.New(1))
	left.Init(10, page.InvalidID)
	left.Insert(EncodeIntKey(1), EncodeIntKey(1), bytes.Compare)

	right := NewLeafPage(page.New(2))
	right.Init(10, page.InvalidID)
	right.Insert(EncodeIntKey(2), EncodeIntKey(2), bytes.Compare)
	right.Insert(EncodeIntKey(3), EncodeIntKey(3), bytes.Compare)

	right.MoveFirstToEndOf(left)
	if left.Size() != 2 || DecodeIntKey(left.KeyAt(1)) != 2 {
		t.Fatalf("MoveFirstToEndOf failed: left size=%d key1=%d", left.Size(), DecodeIntKey(left.KeyAt(1)))
	}
	if right.Size() != 1 || DecodeIntKey(right.KeyAt(0)) != 3 {
		t.Fatalf("MoveFirstToEndOf left right in bad state: size=%d key0=%d", right.Size(), DecodeIntKey(right.KeyAt(0)))
	}

	left.MoveLastToFrontOf(right)
	if right.Size() != 2 || DecodeIntKey(right.KeyAt(0)) != 2 {
		t.Fatalf("MoveLastToFrontOf failed: right size=%d key0=%d", right.Size(), DecodeIntKey(right.KeyAt(0)))
	}
	if left.Size() != 1 || DecodeIntKey(left.KeyAt(0)) != 1 {
		t.Fatalf("MoveLastToFrontOf left left in bad state: size=%d", left.Size())
	}

	left.MoveAllTo(right) // concat onto right — caller would normally go the other way, exercised here just for the operator itself
	if left.Size() != 0 {
		t.Fatalf("source leaf should be emptied by MoveAllTo, size=%d", left.Size())
	}
}

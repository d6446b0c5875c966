package bplustree

import (
	"testing"

	"diskindex/page"
)

func TestHeaderPageInsertsOnFirstPublishUpdatesAfter(t *testing.T) {
	h := NewHeaderPage(page.New(0))
	h.Init()

	if _, err := h.GetRootID("orders"); err != ErrIndexNotFound {
		t.Fatalf("GetRootID on empty header = %v, want ErrIndexNotFound", err)
	}

	if err := h.UpdateRootID("orders", 7); err != nil {
		t.Fatalf("UpdateRootID: %v", err)
	}
	id, err := h.GetRootID("orders")
	if err != nil || id != 7 {
		t.Fatalf("GetRootID(orders) = (%d, %v), want (7, nil)", id, err)
	}

	if err := h.UpdateRootID("orders", 99); err != nil {
		t.Fatalf("UpdateRootID overwrite: %v", err)
	}
	id, err = h.GetRootID("orders")
	if err != nil || id != 99 {
		t.Fatalf("GetRootID(orders) after overwrite = (%d, %v), want (99, nil)", id, err)
	}
}

func TestHeaderPageMultipleIndexNames(t *testing.T) {
	h := NewHeaderPage(page.New(0))
	h.Init()
	h.UpdateRootID("orders", 1)
	h.UpdateRootID("customers", 2)

	id, err := h.GetRootID("customers")
	if err != nil || id != 2 {
		t.Fatalf("GetRootID(customers) = (%d, %v), want (2, nil)", id, err)
	}
	id, err = h.GetRootID("orders")
	if err != nil || id != 1 {
		t.Fatalf("GetRootID(orders) = (%d, %v), want (1, nil)", id, err)
	}
}

func TestHeaderPageNameTooLong(t *testing.T) {
	h := NewHeaderPage(page.New(0))
	h.Init()
	long := make([]byte, headerNameLen+1)
	for i := range long {
		long[i] = 'a'
	}
	if err := h.UpdateRootID(string(long), 1); err == nil {
		t.Fatal("UpdateRootID with an over-length name should fail")
	}
}

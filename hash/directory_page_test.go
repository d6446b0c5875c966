package hash

import (
	"testing"

	"diskindex/page"
)

func TestDirectoryBasicAccessors(t *testing.T) {
	d := NewDirectoryPage(page.New(0))
	d.SetPageID(0)
	d.SetBucketPageId(0, 5)
	d.SetLocalDepth(0, 0)

	if d.PageID() != 0 {
		t.Fatalf("PageID() = %d, want 0", d.PageID())
	}
	if d.GetBucketPageId(0) != 5 {
		t.Fatalf("GetBucketPageId(0) = %d, want 5", d.GetBucketPageId(0))
	}
	if d.Size() != 1 {
		t.Fatalf("Size() = %d, want 1 at global depth 0", d.Size())
	}

	d.IncrGlobalDepth()
	if d.GetGlobalDepth() != 1 || d.Size() != 2 {
		t.Fatalf("after IncrGlobalDepth: depth=%d size=%d, want 1,2", d.GetGlobalDepth(), d.Size())
	}
	if d.GetGlobalDepthMask() != 1 {
		t.Fatalf("GetGlobalDepthMask() = %d, want 1", d.GetGlobalDepthMask())
	}
}

func TestDirectoryCanShrink(t *testing.T) {
	d := NewDirectoryPage(page.New(0))
	d.SetPageID(0)
	d.IncrGlobalDepth() // global=1, size=2
	d.SetLocalDepth(0, 1)
	d.SetLocalDepth(1, 1)

	if d.CanShrink() {
		t.Fatal("CanShrink should be false when a slot's local depth equals global depth")
	}

	d.SetLocalDepth(0, 0)
	d.SetLocalDepth(1, 0)
	if !d.CanShrink() {
		t.Fatal("CanShrink should be true when every local depth is strictly below global depth")
	}
	if d.GetGlobalDepth() != 0 {
		t.Fatalf("GetGlobalDepth() = %d, want 0 after shrink", d.GetGlobalDepth())
	}
}

func TestDirectoryCanShrinkAtZeroIsFalse(t *testing.T) {
	d := NewDirectoryPage(page.New(0))
	d.SetPageID(0)
	if d.CanShrink() {
		t.Fatal("a global-depth-0 directory can never shrink further")
	}
}

func TestDirectoryVerifyIntegritySharedBucketInvariant(t *testing.T) {
	d := NewDirectoryPage(page.New(0))
	d.SetPageID(0)
	d.IncrGlobalDepth()
	d.IncrGlobalDepth() // global=2, size=4
	d.SetLocalDepth(0, 1)
	d.SetLocalDepth(2, 1)
	d.SetBucketPageId(0, 10)
	d.SetBucketPageId(2, 10)
	d.SetLocalDepth(1, 2)
	d.SetLocalDepth(3, 2)
	d.SetBucketPageId(1, 20)
	d.SetBucketPageId(3, 30)

	if errs := d.VerifyIntegrity(); len(errs) != 0 {
		t.Fatalf("VerifyIntegrity() = %v, want no violations", errs)
	}

	// Corrupt: give slot 1 the same bucket id as slot 0 without matching
	// local depth/stride — must be flagged.
	d.SetBucketPageId(1, 10)
	if errs := d.VerifyIntegrity(); len(errs) == 0 {
		t.Fatal("VerifyIntegrity() should flag a bucket shared without matching stride/depth")
	}
}

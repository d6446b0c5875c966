// Package txn provides the thin transaction hand-off the B+-tree and hash
// table use for latch-crabbing bookkeeping and deferred page deletion.
// Everything else a real transaction manager would own — isolation,
// commit/abort, undo/redo — is out of scope for this core; see spec.md §1.
package txn

import "diskindex/page"

// Transaction is an ordered bag of pages write-latched by the current
// operation (PageSet) and page ids queued for deletion once it's safe to
// drop their pins (DeletedPageSet). Grounded on
// original_source/.../b_plus_tree.cpp's AddIntoPageSet/AddIntoDeletedPageSet
// usage during crabbing.
type Transaction struct {
	pageSet        []*page.Page
	deletedPageSet []int64
}

// New returns an empty transaction.
func New() *Transaction {
	return &Transaction{}
}

// AddToPageSet appends a page to the held-ancestors list, in acquisition order.
func (t *Transaction) AddToPageSet(p *page.Page) {
	t.pageSet = append(t.pageSet, p)
}

// PageSet returns the currently held ancestor pages, oldest first.
func (t *Transaction) PageSet() []*page.Page {
	return t.pageSet
}

// ClearPageSet empties the held-ancestors list without touching the pages
// themselves — the caller is responsible for unlatching/unpinning first.
func (t *Transaction) ClearPageSet() {
	t.pageSet = t.pageSet[:0]
}

// AddDeletedPage queues pageID for deletion once the operation completes
// and every latch on it has been released.
func (t *Transaction) AddDeletedPage(pageID int64) {
	t.deletedPageSet = append(t.deletedPageSet, pageID)
}

// DeletedPageSet returns the page ids queued for deletion.
func (t *Transaction) DeletedPageSet() []int64 {
	return t.deletedPageSet
}

// ClearDeletedPageSet empties the deferred-deletion list.
func (t *Transaction) ClearDeletedPageSet() {
	t.deletedPageSet = t.deletedPageSet[:0]
}

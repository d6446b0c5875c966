package bplustree

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"diskindex/page"
	"diskindex/txn"
)

// InsertFromFile reads whitespace-separated int64 keys from path and
// inserts each with EncodeIntKey(key) as both key and value, in the
// BusTub-derived test-fixture convention (a RID constructed from the raw
// integer). Grounded on b_plus_tree.cpp's InsertFromFile.
func (t *BPlusTree) InsertFromFile(path string, tx *txn.Transaction) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("bplustree: open %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Split(bufio.ScanWords)
	for sc.Scan() {
		var key int64
		if _, err := fmt.Sscan(sc.Text(), &key); err != nil {
			return fmt.Errorf("bplustree: parse key %q: %w", sc.Text(), err)
		}
		enc := EncodeIntKey(key)
		if _, err := t.Insert(enc, enc, tx); err != nil {
			return err
		}
	}
	return sc.Err()
}

// RemoveFromFile reads whitespace-separated int64 keys from path and
// removes each. Grounded on b_plus_tree.cpp's RemoveFromFile.
func (t *BPlusTree) RemoveFromFile(path string, tx *txn.Transaction) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("bplustree: open %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Split(bufio.ScanWords)
	for sc.Scan() {
		var key int64
		if _, err := fmt.Sscan(sc.Text(), &key); err != nil {
			return fmt.Errorf("bplustree: parse key %q: %w", sc.Text(), err)
		}
		if err := t.Remove(EncodeIntKey(key), tx); err != nil {
			return err
		}
	}
	return sc.Err()
}

// Print writes a plain textual dump of every page in the tree to w,
// parent/next-pointers included. Grounded on b_plus_tree.cpp's
// Print/ToString.
func (t *BPlusTree) Print(w io.Writer) error {
	t.rwlatch.RLock()
	root := t.rootPageID
	t.rwlatch.RUnlock()
	if root == page.InvalidID {
		fmt.Fprintln(w, "(empty tree)")
		return nil
	}
	return t.printNode(w, root)
}

func (t *BPlusTree) printNode(w io.Writer, id int64) error {
	pg, err := t.pool.Fetch(id)
	if err != nil {
		return fmt.Errorf("bplustree: fetch %d: %w", id, err)
	}
	pg.RLock()
	defer func() {
		pg.RUnlock()
		t.pool.Unpin(id, false)
	}()

	if pageType(pg) == PageTypeLeaf {
		leaf := NewLeafPage(pg)
		fmt.Fprintf(w, "Leaf Page: %d parent: %d next: %d\n", leaf.PageID(), leaf.ParentPageID(), leaf.NextPageID())
		for i := 0; i < int(leaf.Size()); i++ {
			fmt.Fprintf(w, "%d,", DecodeIntKey(leaf.KeyAt(i)))
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w)
		return nil
	}

	internal := NewInternalPage(pg)
	fmt.Fprintf(w, "Internal Page: %d parent: %d\n", internal.PageID(), internal.ParentPageID())
	children := make([]int64, internal.Size())
	for i := 0; i < int(internal.Size()); i++ {
		if i > 0 {
			fmt.Fprintf(w, "%d: %d,", DecodeIntKey(internal.KeyAt(i)), internal.ValueAt(i))
		} else {
			fmt.Fprintf(w, ": %d,", internal.ValueAt(i))
		}
		children[i] = internal.ValueAt(i)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w)

	for _, c := range children {
		if err := t.printNode(w, c); err != nil {
			return err
		}
	}
	return nil
}

// Draw writes a graphviz dot-format rendering of the whole tree to w, in
// the same leaf/internal node styling as b_plus_tree.cpp's ToGraph.
func (t *BPlusTree) Draw(w io.Writer) error {
	t.rwlatch.RLock()
	root := t.rootPageID
	t.rwlatch.RUnlock()
	if root == page.InvalidID {
		return fmt.Errorf("bplustree: cannot draw an empty tree")
	}
	fmt.Fprintln(w, "digraph G {")
	if err := t.drawNode(w, root); err != nil {
		return err
	}
	fmt.Fprintln(w, "}")
	return nil
}

func (t *BPlusTree) drawNode(w io.Writer, id int64) error {
	pg, err := t.pool.Fetch(id)
	if err != nil {
		return fmt.Errorf("bplustree: fetch %d: %w", id, err)
	}
	pg.RLock()

	if pageType(pg) == PageTypeLeaf {
		leaf := NewLeafPage(pg)
		fmt.Fprintf(w, "LEAF_%d[shape=plain color=green label=<<TABLE BORDER=\"0\" CELLBORDER=\"1\" CELLSPACING=\"0\" CELLPADDING=\"4\">\n", leaf.PageID())
		fmt.Fprintf(w, "<TR><TD COLSPAN=\"%d\">P=%d</TD></TR>\n", leaf.Size(), leaf.PageID())
		fmt.Fprintf(w, "<TR><TD COLSPAN=\"%d\">max_size=%d,min_size=%d,size=%d</TD></TR>\n", leaf.Size(), leaf.MaxSize(), minSize(leaf.MaxSize()), leaf.Size())
		fmt.Fprint(w, "<TR>")
		for i := 0; i < int(leaf.Size()); i++ {
			fmt.Fprintf(w, "<TD>%d</TD>\n", DecodeIntKey(leaf.KeyAt(i)))
		}
		fmt.Fprint(w, "</TR></TABLE>>];\n")

		if next := leaf.NextPageID(); next != page.InvalidID {
			fmt.Fprintf(w, "LEAF_%d -> LEAF_%d;\n", leaf.PageID(), next)
			fmt.Fprintf(w, "{rank=same LEAF_%d LEAF_%d};\n", leaf.PageID(), next)
		}
		if parent := leaf.ParentPageID(); parent != page.InvalidID {
			fmt.Fprintf(w, "INT_%d:p%d -> LEAF_%d;\n", parent, leaf.PageID(), leaf.PageID())
		}
		pg.RUnlock()
		t.pool.Unpin(id, false)
		return nil
	}

	internal := NewInternalPage(pg)
	fmt.Fprintf(w, "INT_%d[shape=plain color=pink label=<<TABLE BORDER=\"0\" CELLBORDER=\"1\" CELLSPACING=\"0\" CELLPADDING=\"4\">\n", internal.PageID())
	fmt.Fprintf(w, "<TR><TD COLSPAN=\"%d\">P=%d</TD></TR>\n", internal.Size(), internal.PageID())
	fmt.Fprintf(w, "<TR><TD COLSPAN=\"%d\">max_size=%d,min_size=%d,size=%d</TD></TR>\n", internal.Size(), internal.MaxSize(), internalMinSize(internal.MaxSize()), internal.Size())
	fmt.Fprint(w, "<TR>")
	children := make([]int64, internal.Size())
	for i := 0; i < int(internal.Size()); i++ {
		children[i] = internal.ValueAt(i)
		fmt.Fprintf(w, "<TD PORT=\"p%d\">", children[i])
		if i > 0 {
			fmt.Fprintf(w, "%d", DecodeIntKey(internal.KeyAt(i)))
		} else {
			fmt.Fprint(w, " ")
		}
		fmt.Fprint(w, "</TD>\n")
	}
	fmt.Fprint(w, "</TR></TABLE>>];\n")
	if parent := internal.ParentPageID(); parent != page.InvalidID {
		fmt.Fprintf(w, "INT_%d:p%d -> INT_%d;\n", parent, internal.PageID(), internal.PageID())
	}
	pg.RUnlock()
	t.pool.Unpin(id, false)

	for i, c := range children {
		if err := t.drawNode(w, c); err != nil {
			return err
		}
		if i > 0 {
			bothInternal, err := t.bothInternal(children[i-1], c)
			if err != nil {
				return err
			}
			if bothInternal {
				fmt.Fprintf(w, "{rank=same INT_%d INT_%d};\n", children[i-1], c)
			}
		}
	}
	return nil
}

func (t *BPlusTree) bothInternal(a, b int64) (bool, error) {
	pa, err := t.pool.Fetch(a)
	if err != nil {
		return false, err
	}
	aIsInternal := pageType(pa) == PageTypeInternal
	t.pool.Unpin(a, false)

	pb, err := t.pool.Fetch(b)
	if err != nil {
		return false, err
	}
	bIsInternal := pageType(pb) == PageTypeInternal
	t.pool.Unpin(b, false)

	return aIsInternal && bIsInternal, nil
}

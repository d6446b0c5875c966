// A narration-style walkthrough of the buffer pool, extendible hash table,
// and B+-tree working together over a toy dataset of students.
// Usage: go run ./cmd/demo
package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"

	"diskindex/bplustree"
	"diskindex/buffer"
	"diskindex/diskmanager"
	"diskindex/hash"
	"diskindex/txn"
)

type student struct {
	id    int64
	name  string
	grade string
}

func main() {
	disk := diskmanager.NewMemDiskManager()
	pool := buffer.NewInstance(16, 0, 1, disk)

	fmt.Println("=== Student Index Demo ===")

	students := []student{
		{1, "Alice Johnson", "A"},
		{2, "Bob Smith", "B"},
		{3, "Charlie Brown", "A"},
		{4, "Diana Prince", "C"},
		{5, "Eve Wilson", "B"},
	}

	fmt.Println("\n--- B+-tree primary index (unique student id -> record) ---")
	tree := buildPrimaryIndex(pool, students)

	fmt.Println("\n--- Extendible hash secondary index (grade -> student id, multi-valued) ---")
	byGrade := buildGradeIndex(pool, students)

	fmt.Println("\n--- Range scan over the primary index ---")
	rangeScan(tree)

	fmt.Println("\n--- Point lookups on the secondary index ---")
	for _, grade := range []string{"A", "B", "C", "F"} {
		ids, err := byGrade.GetValue(gradeKey(grade))
		if err != nil {
			fmt.Fprintf(os.Stderr, "GetValue(%s): %v\n", grade, err)
			os.Exit(1)
		}
		if len(ids) == 0 {
			fmt.Printf("grade %s: no students\n", grade)
			continue
		}
		fmt.Printf("grade %s: student ids %v\n", grade, decodeIDs(ids))
	}

	fmt.Println("\n--- Integrity checks ---")
	if errs := tree.VerifyIntegrity(); len(errs) == 0 {
		fmt.Println("B+-tree: OK")
	} else {
		fmt.Printf("B+-tree: %d violation(s): %v\n", len(errs), errs)
	}
	if errs := byGrade.VerifyIntegrity(); len(errs) == 0 {
		fmt.Println("hash table: OK")
	} else {
		fmt.Printf("hash table: %d violation(s): %v\n", len(errs), errs)
	}
	if depth, err := byGrade.GetGlobalDepth(); err == nil {
		fmt.Printf("hash table global depth: %d\n", depth)
	}

	fmt.Println("\n--- Buffer pool footprint ---")
	fmt.Println(pool.Stats())
}

func buildPrimaryIndex(pool buffer.Pool, students []student) *bplustree.BPlusTree {
	tree, err := bplustree.NewBPlusTree(pool, "students_primary", 4, 4, bytes.Compare)
	if err != nil {
		fmt.Fprintf(os.Stderr, "NewBPlusTree: %v\n", err)
		os.Exit(1)
	}
	tx := txn.New()
	for _, s := range students {
		record := s.name + "|" + s.grade
		ok, err := tree.Insert(bplustree.EncodeIntKey(s.id), []byte(record), tx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Insert(%d): %v\n", s.id, err)
			os.Exit(1)
		}
		fmt.Printf("inserted id=%d -> %q (ok=%v)\n", s.id, record, ok)
	}
	return tree
}

func buildGradeIndex(pool buffer.Pool, students []student) *hash.ExtendibleHashTable {
	byGrade, err := hash.New(pool, func(key []byte) uint64 { return xxhash.Sum64(key) }, bytes.Compare)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash.New: %v\n", err)
		os.Exit(1)
	}
	for _, s := range students {
		ok, err := byGrade.Insert(gradeKey(s.grade), encodeID(s.id))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Insert(%s): %v\n", s.grade, err)
			os.Exit(1)
		}
		fmt.Printf("indexed grade=%s -> id=%d (ok=%v)\n", s.grade, s.id, ok)
	}
	return byGrade
}

func rangeScan(tree *bplustree.BPlusTree) {
	it, err := tree.Begin()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Begin: %v\n", err)
		os.Exit(1)
	}
	defer it.Close()
	for !it.IsEnd() {
		fmt.Printf("id=%d -> %s\n", bplustree.DecodeIntKey(it.Key()), it.Value())
		it.Next()
	}
}

// gradeKey zero-pads a grade to the hash table's fixed key width, the
// form in which the bucket stores and compares keys.
func gradeKey(g string) []byte {
	k := make([]byte, hash.KeySize)
	copy(k, g)
	return k
}

func encodeID(id int64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[7-i] = byte(id >> (8 * i))
	}
	return b
}

func decodeIDs(vals [][]byte) []int64 {
	ids := make([]int64, len(vals))
	for i, v := range vals {
		var id int64
		for _, b := range v {
			id = id<<8 | int64(b)
		}
		ids[i] = id
	}
	return ids
}

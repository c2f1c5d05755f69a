package dataset

import (
	"context"
	"testing"

	"github.com/viant/balltree/engine"
)

// TestSQLiteStore_AddRecordsRemove exercises inserting, listing, upserting
// and removing labeled samples.
func TestSQLiteStore_AddRecordsRemove(t *testing.T) {
	db, err := engine.Open(":memory:")
	if err != nil {
		t.Fatalf("engine.Open(:memory:) failed: %v", err)
	}
	defer db.Close()

	store, err := NewSQLiteStore(db, "")
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	if store.Table() != DefaultTable {
		t.Fatalf("Table() = %q, want %q", store.Table(), DefaultTable)
	}
	ctx := context.Background()

	records := []Record{
		{ID: "r1", Label: "a", Features: []float32{0, 0}},
		{ID: "r2", Label: "a", Features: []float32{1, 0}},
		{Label: "b", Features: []float32{10, 10}},
	}
	ids, err := store.AddRecords(ctx, records)
	if err != nil {
		t.Fatalf("AddRecords failed: %v", err)
	}
	if len(ids) != 3 || ids[0] != "r1" || ids[1] != "r2" || ids[2] == "" {
		t.Fatalf("AddRecords ids = %v", ids)
	}

	// Upsert r2 with a new label and vector; insertion order is kept.
	if _, err := store.AddRecords(ctx, []Record{{ID: "r2", Label: "c", Features: []float32{2, 2}}}); err != nil {
		t.Fatalf("AddRecords upsert failed: %v", err)
	}
	out, err := store.Records(ctx)
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("Records returned %d, want 3", len(out))
	}
	if out[1].ID != "r2" || out[1].Label != "c" || out[1].Features[0] != 2 {
		t.Errorf("upserted record = %+v", out[1])
	}
	if out[2].ID != ids[2] || out[2].Label != "b" {
		t.Errorf("generated record = %+v", out[2])
	}

	if err := store.Remove(ctx, "r1"); err != nil {
		t.Fatalf("Remove(r1) failed: %v", err)
	}
	n, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Count = %d, want 2", n)
	}
	if err := store.Remove(ctx, ""); err == nil {
		t.Errorf("Remove with empty id should fail")
	}
}

func TestSQLiteStore_Validation(t *testing.T) {
	db, err := engine.Open(":memory:")
	if err != nil {
		t.Fatalf("engine.Open(:memory:) failed: %v", err)
	}
	defer db.Close()

	if _, err := NewSQLiteStore(nil, ""); err == nil {
		t.Errorf("NewSQLiteStore(nil) should fail")
	}
	if _, err := NewSQLiteStore(db, "samples; DROP TABLE x"); err == nil {
		t.Errorf("NewSQLiteStore with an invalid table name should fail")
	}
	store, err := NewSQLiteStore(db, "iris")
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	ctx := context.Background()
	if _, err := store.AddRecords(ctx, []Record{{ID: "x", Features: []float32{1}}, {ID: "y", Features: []float32{1, 2}}}); err == nil {
		t.Errorf("AddRecords with mixed dimensions should fail")
	}
	if _, err := store.AddRecords(ctx, []Record{{ID: "x"}}); err == nil {
		t.Errorf("AddRecords without features should fail")
	}
	n, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 0 {
		t.Errorf("failed batches must not be committed, Count = %d", n)
	}
}

// TestLoad_SkipsEmptyFeatures verifies rows inserted directly with NULL or
// empty features are not returned.
func TestLoad_SkipsEmptyFeatures(t *testing.T) {
	db, err := engine.Open(":memory:")
	if err != nil {
		t.Fatalf("engine.Open(:memory:) failed: %v", err)
	}
	defer db.Close()
	if err := EnsureSchema(db, DefaultTable); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO samples(id, label, features) VALUES('a', 'x', NULL), ('b', NULL, X''), ('c', NULL, ?)`, EncodeFeatures([]float32{1, 2})); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	out, err := Load(context.Background(), db, DefaultTable)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(out) != 1 || out[0].ID != "c" || out[0].Label != "" {
		t.Fatalf("Load = %+v, want only c", out)
	}
}

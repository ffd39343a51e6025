package vector

import (
	"context"
	"testing"
)

func TestMemoryStore_QueryEmptyCollection(t *testing.T) {
	s := NewMemory()

	results, err := s.Query(context.Background(), "codebase_chunks", []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if results == nil {
		t.Fatal("Expected empty slice, got nil")
	}
	if len(results) != 0 {
		t.Errorf("Expected 0 results, got %d", len(results))
	}
}

func TestMemoryStore_UpsertReplaces(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	first := Document{
		ID:       "a.go#0",
		Content:  "original",
		Vector:   []float32{1, 0, 0},
		Metadata: map[string]string{"path": "a.go", "start_line": "1"},
	}
	if err := s.Upsert(ctx, "c", []Document{first}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	// Replace under the same id; the old metadata must not survive as a
	// partial merge.
	second := Document{
		ID:      "a.go#0",
		Content: "replaced",
		Vector:  []float32{0, 1, 0},
	}
	if err := s.Upsert(ctx, "c", []Document{second}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	if s.Count("c") != 1 {
		t.Fatalf("Expected 1 document after replace, got %d", s.Count("c"))
	}

	docs, err := s.Get(ctx, "c", []string{"a.go#0"})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("Expected 1 document, got %d", len(docs))
	}
	if docs[0].Content != "replaced" {
		t.Errorf("Expected replaced content, got %q", docs[0].Content)
	}
	if docs[0].Metadata != nil {
		t.Errorf("Expected metadata fully replaced, found leftover %v", docs[0].Metadata)
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	docs := []Document{
		{ID: "x#0", Vector: []float32{1, 0}},
		{ID: "x#1", Vector: []float32{0, 1}},
	}
	if err := s.Upsert(ctx, "c", docs); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	if err := s.Delete(ctx, "c", []string{"x#0", "never-existed"}); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if s.Count("c") != 1 {
		t.Errorf("Expected 1 document remaining, got %d", s.Count("c"))
	}

	// Deleting from a nonexistent collection is a no-op.
	if err := s.Delete(ctx, "ghost", []string{"x#1"}); err != nil {
		t.Errorf("Delete on missing collection returned %v", err)
	}
}

func TestMemoryStore_QueryRanking(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	docs := []Document{
		{ID: "exact", Vector: []float32{1, 0, 0}},
		{ID: "close", Vector: []float32{0.9, 0.1, 0}},
		{ID: "far", Vector: []float32{0, 0, 1}},
	}
	if err := s.Upsert(ctx, "c", docs); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	results, err := s.Query(ctx, "c", []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].ID != "exact" {
		t.Errorf("Expected 'exact' first, got %q", results[0].ID)
	}
	if results[1].ID != "close" {
		t.Errorf("Expected 'close' second, got %q", results[1].ID)
	}
	if results[0].Score < results[1].Score {
		t.Errorf("Scores not descending: %f < %f", results[0].Score, results[1].Score)
	}
}

func TestMemoryStore_GetMissingIDs(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	if err := s.Upsert(ctx, "c", []Document{{ID: "present", Vector: []float32{1}}}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	docs, err := s.Get(ctx, "c", []string{"present", "absent"})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(docs) != 1 {
		t.Errorf("Expected only present ids returned, got %d docs", len(docs))
	}
}

func TestCosineSimilarity(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"dimension mismatch", []float32{1, 0}, []float32{1}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := cosineSimilarity(tc.a, tc.b)
			if diff := got - tc.want; diff > 1e-6 || diff < -1e-6 {
				t.Errorf("cosineSimilarity = %f, want %f", got, tc.want)
			}
		})
	}
}

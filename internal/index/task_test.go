package index

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/locusdev/locus/internal/embed"
	"github.com/locusdev/locus/internal/vector"
)

func newTaskIndexer(store *vector.MemoryStore) *TaskIndexer {
	return NewTaskIndexer(TaskConfig{
		Provider:   embed.NewStatic(64),
		Store:      store,
		Collection: "task_history",
	})
}

func TestTaskIndexer_Index(t *testing.T) {
	store := vector.NewMemory()
	ti := newTaskIndexer(store)

	task := Task{
		ID:          "42",
		Title:       "Fix login timeout",
		Type:        "bug",
		Priority:    "high",
		Description: "Sessions expire after 30 seconds instead of 30 minutes",
		Analysis:    "TTL configured in seconds but read as minutes",
		StageResults: []StageResult{
			{Stage: "implement", Summary: "Normalized TTL units at the config boundary"},
			{Stage: "verify", Summary: "Added regression test for session expiry"},
		},
	}

	if err := ti.Index(context.Background(), task); err != nil {
		t.Fatalf("Index failed: %v", err)
	}

	docs, err := store.Get(context.Background(), "task_history", []string{"task_42"})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("Expected 1 document, got %d", len(docs))
	}

	doc := docs[0]
	if doc.Metadata["task_id"] != "42" || doc.Metadata["title"] != "Fix login timeout" {
		t.Errorf("Unexpected metadata: %+v", doc.Metadata)
	}
	for _, want := range []string{"Fix login timeout", "TTL configured in seconds", "Normalized TTL units", "regression test"} {
		if !strings.Contains(doc.Content, want) {
			t.Errorf("Document content missing %q", want)
		}
	}
	if len(doc.Vector) != 64 {
		t.Errorf("Vector dimension = %d, expected 64", len(doc.Vector))
	}
}

func TestTaskIndexer_Idempotent(t *testing.T) {
	store := vector.NewMemory()
	ti := newTaskIndexer(store)

	// The same task completes five times, e.g. re-opened and re-done.
	for i := 1; i <= 5; i++ {
		task := Task{
			ID:       "42",
			Title:    fmt.Sprintf("Attempt %d", i),
			Analysis: fmt.Sprintf("analysis from run %d", i),
		}
		if err := ti.Index(context.Background(), task); err != nil {
			t.Fatalf("Index %d failed: %v", i, err)
		}
	}

	if got := store.Count("task_history"); got != 1 {
		t.Fatalf("Expected exactly 1 record, got %d", got)
	}

	docs, err := store.Get(context.Background(), "task_history", []string{"task_42"})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("Expected the record under task_42, got %d docs", len(docs))
	}
	if !strings.Contains(docs[0].Content, "analysis from run 5") {
		t.Errorf("Record does not hold the last outcome: %q", docs[0].Content)
	}
	if strings.Contains(docs[0].Content, "analysis from run 4") {
		t.Error("Record still holds a previous outcome")
	}
}

func TestTaskIndexer_EmptyID(t *testing.T) {
	ti := newTaskIndexer(vector.NewMemory())
	if err := ti.Index(context.Background(), Task{Title: "no id"}); err == nil {
		t.Fatal("Expected error for empty task id")
	}
}

func TestBuildTaskDocument_OmitsEmptySections(t *testing.T) {
	doc := BuildTaskDocument(Task{ID: "7", Title: "Minimal"})
	if !strings.Contains(doc, "Title: Minimal") {
		t.Errorf("Missing title: %q", doc)
	}
	for _, absent := range []string{"Description:", "Analysis:", "Stage results:"} {
		if strings.Contains(doc, absent) {
			t.Errorf("Empty section %q rendered: %q", absent, doc)
		}
	}
}

package index

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/locusdev/locus/internal/embed"
	"github.com/locusdev/locus/internal/vector"
)

// Task is the outcome record handed over by the task-lifecycle manager
// when a task reaches its terminal Done state.
type Task struct {
	ID          string
	Title       string
	Type        string
	Priority    string
	Description string
	// Analysis is the recorded up-front analysis of the task.
	Analysis string
	// StageResults is the cumulative narrative of how each execution stage
	// went, the "how was this solved" half of the record.
	StageResults []StageResult
}

// StageResult is one stage's contribution to the task narrative.
type StageResult struct {
	Stage   string
	Summary string
}

// TaskConfig configures the task indexer.
type TaskConfig struct {
	Provider   embed.Provider
	Store      vector.Store
	Collection string
	Logger     *slog.Logger
}

// TaskIndexer stores one searchable document per completed task. Indexing
// is triggered on the transition into Done and is idempotent: the document
// id derives solely from the task id, and upsert replaces any previous
// record, so re-opened and re-done tasks end up with exactly one record
// holding the latest outcome.
type TaskIndexer struct {
	provider   embed.Provider
	store      vector.Store
	collection string
	logger     *slog.Logger
}

// NewTaskIndexer creates a task indexer.
func NewTaskIndexer(cfg TaskConfig) *TaskIndexer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskIndexer{
		provider:   cfg.Provider,
		store:      cfg.Store,
		collection: cfg.Collection,
		logger:     logger,
	}
}

// Index embeds and upserts the task's outcome document.
func (t *TaskIndexer) Index(ctx context.Context, task Task) error {
	if task.ID == "" {
		return fmt.Errorf("task id is empty")
	}

	doc := BuildTaskDocument(task)

	vectors, err := t.provider.Embed(ctx, []string{doc})
	if err != nil {
		return fmt.Errorf("embed task %s: %w", task.ID, err)
	}

	err = t.store.Upsert(ctx, t.collection, []vector.Document{{
		ID:      TaskDocID(task.ID),
		Content: doc,
		Vector:  vectors[0],
		Metadata: map[string]string{
			"task_id":  task.ID,
			"title":    task.Title,
			"type":     task.Type,
			"priority": task.Priority,
		},
	}})
	if err != nil {
		return fmt.Errorf("upsert task %s: %w", task.ID, err)
	}

	t.logger.Info("task indexed", "task_id", task.ID, "title", task.Title)
	return nil
}

// BuildTaskDocument concatenates the task's request and its solution
// narrative into the text that gets embedded. Including the analysis and
// stage results is what makes "how was X solved before" retrievable, not
// just "what was asked".
func BuildTaskDocument(task Task) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Title: %s\n", task.Title)
	if task.Type != "" {
		fmt.Fprintf(&b, "Type: %s\n", task.Type)
	}
	if task.Priority != "" {
		fmt.Fprintf(&b, "Priority: %s\n", task.Priority)
	}
	if task.Description != "" {
		fmt.Fprintf(&b, "\nDescription:\n%s\n", task.Description)
	}
	if task.Analysis != "" {
		fmt.Fprintf(&b, "\nAnalysis:\n%s\n", task.Analysis)
	}
	if len(task.StageResults) > 0 {
		b.WriteString("\nStage results:\n")
		for _, sr := range task.StageResults {
			fmt.Fprintf(&b, "[%s] %s\n", sr.Stage, sr.Summary)
		}
	}

	return b.String()
}

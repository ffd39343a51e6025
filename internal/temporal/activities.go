package temporal

import (
	"context"
	"errors"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/locusdev/locus/internal/engine"
	"github.com/locusdev/locus/internal/index"
	"github.com/locusdev/locus/internal/observability"
)

// TaskRecord is the serializable task payload passed through workflow
// history.
type TaskRecord struct {
	ID           string
	Title        string
	Type         string
	Priority     string
	Description  string
	Analysis     string
	StageResults []StageRecord
}

// StageRecord is one stage's summary within a TaskRecord.
type StageRecord struct {
	Stage   string
	Summary string
}

// MergeReindexResult is the serializable result of the merge activity.
type MergeReindexResult struct {
	FilesIndexed  int
	FilesDeleted  int
	FilesIgnored  int
	ChunksWritten int
}

// FullReindexResult is the serializable result of the full activity.
type FullReindexResult struct {
	FilesIndexed  int
	FilesDeleted  int
	ChunksWritten int
}

// Dependencies holds shared resources injected into activities.
type Dependencies struct {
	Engine *engine.Engine
}

var deps *Dependencies

// SetDependencies injects shared resources (called during worker setup).
func SetDependencies(d *Dependencies) {
	deps = d
}

// unavailable converts the engine's disabled sentinel into a
// non-retryable application error: retrying cannot help until an operator
// fixes the embedding backend and restarts.
func unavailable(err error) error {
	if errors.Is(err, engine.ErrUnavailable) {
		return temporal.NewNonRetryableApplicationError(err.Error(), "engine_unavailable", err)
	}
	return err
}

// auditRun emits workflow start/end audit events around an activity body.
func auditRun(ctx context.Context, kind string, fn func() error) error {
	workflowID := ""
	if activity.IsActivity(ctx) {
		workflowID = activity.GetInfo(ctx).WorkflowExecution.ID
	}
	observability.Audit().LogWorkflowStart(ctx, workflowID, kind)
	start := time.Now()
	err := fn()
	observability.Audit().LogWorkflowEnd(ctx, workflowID, err == nil, time.Since(start))
	return err
}

func ReindexMergeCommitActivity(ctx context.Context, input MergeReindexInput) (MergeReindexResult, error) {
	var result *index.MergeResult
	err := auditRun(ctx, "merge-reindex", func() error {
		var err error
		result, err = deps.Engine.ReindexMergeCommit(ctx, input.RepoPath, input.CommitSHA)
		return err
	})
	if err != nil {
		return MergeReindexResult{}, unavailable(err)
	}
	return MergeReindexResult{
		FilesIndexed:  result.FilesIndexed,
		FilesDeleted:  result.FilesDeleted,
		FilesIgnored:  result.FilesIgnored,
		ChunksWritten: result.ChunksWritten,
	}, nil
}

func IndexTaskActivity(ctx context.Context, input TaskDoneInput) error {
	task := index.Task{
		ID:          input.Task.ID,
		Title:       input.Task.Title,
		Type:        input.Task.Type,
		Priority:    input.Task.Priority,
		Description: input.Task.Description,
		Analysis:    input.Task.Analysis,
	}
	for _, sr := range input.Task.StageResults {
		task.StageResults = append(task.StageResults, index.StageResult{
			Stage:   sr.Stage,
			Summary: sr.Summary,
		})
	}

	err := auditRun(ctx, "task-done", func() error {
		return deps.Engine.IndexTask(ctx, task)
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func FullReindexActivity(ctx context.Context, input FullReindexInput) (FullReindexResult, error) {
	var result *index.FullResult
	err := auditRun(ctx, "full-reindex", func() error {
		var err error
		result, err = deps.Engine.IndexCodebase(ctx, input.RepoPath)
		return err
	})
	if err != nil {
		return FullReindexResult{}, unavailable(err)
	}
	return FullReindexResult{
		FilesIndexed:  result.FilesIndexed,
		FilesDeleted:  result.FilesDeleted,
		ChunksWritten: result.ChunksWritten,
	}, nil
}

package temporal

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// MergeReindexInput holds the merge-triggered reindex parameters.
type MergeReindexInput struct {
	RepoPath  string
	CommitSHA string
}

// MergeReindexOutput holds the workflow result. Succeeded false means the
// reindex was skipped or failed; the merge pipeline proceeds either way.
type MergeReindexOutput struct {
	Succeeded     bool
	FilesIndexed  int
	FilesDeleted  int
	ChunksWritten int
	Error         string
}

// TaskDoneInput carries a completed task into the history index.
type TaskDoneInput struct {
	Task TaskRecord
}

// TaskDoneOutput holds the workflow result.
type TaskDoneOutput struct {
	Succeeded bool
	Error     string
}

// FullReindexInput holds the manual full-reindex parameters.
type FullReindexInput struct {
	RepoPath string
}

// FullReindexOutput holds the workflow result.
type FullReindexOutput struct {
	Succeeded     bool
	FilesIndexed  int
	FilesDeleted  int
	ChunksWritten int
	Error         string
}

func activityOptions(timeout time.Duration) workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: 5 * time.Second,
			MaximumAttempts: 3,
		},
	}
}

// MergeReindexWorkflow runs the merge-scoped incremental reindex.
// Indexing is best-effort relative to the merge pipeline: an activity
// failure is recorded in the output, never propagated as a workflow
// failure, so the merge that triggered it is unaffected.
func MergeReindexWorkflow(ctx workflow.Context, input MergeReindexInput) (*MergeReindexOutput, error) {
	logger := workflow.GetLogger(ctx)
	ctx = workflow.WithActivityOptions(ctx, activityOptions(10*time.Minute))

	var result MergeReindexResult
	err := workflow.ExecuteActivity(ctx, ReindexMergeCommitActivity, input).Get(ctx, &result)
	if err != nil {
		logger.Warn("merge reindex failed, continuing", "commit", input.CommitSHA, "error", err)
		return &MergeReindexOutput{Succeeded: false, Error: err.Error()}, nil
	}

	return &MergeReindexOutput{
		Succeeded:     true,
		FilesIndexed:  result.FilesIndexed,
		FilesDeleted:  result.FilesDeleted,
		ChunksWritten: result.ChunksWritten,
	}, nil
}

// TaskDoneWorkflow records a completed task's outcome. Same best-effort
// contract as MergeReindexWorkflow: the task lifecycle never fails
// because history indexing did.
func TaskDoneWorkflow(ctx workflow.Context, input TaskDoneInput) (*TaskDoneOutput, error) {
	logger := workflow.GetLogger(ctx)
	ctx = workflow.WithActivityOptions(ctx, activityOptions(2*time.Minute))

	err := workflow.ExecuteActivity(ctx, IndexTaskActivity, input).Get(ctx, nil)
	if err != nil {
		logger.Warn("task indexing failed, continuing", "task_id", input.Task.ID, "error", err)
		return &TaskDoneOutput{Succeeded: false, Error: err.Error()}, nil
	}

	return &TaskDoneOutput{Succeeded: true}, nil
}

// FullReindexWorkflow runs a whole-repository reindex. Unlike the
// merge-triggered path this is operator-initiated, so failures surface.
func FullReindexWorkflow(ctx workflow.Context, input FullReindexInput) (*FullReindexOutput, error) {
	ctx = workflow.WithActivityOptions(ctx, activityOptions(2*time.Hour))

	var result FullReindexResult
	if err := workflow.ExecuteActivity(ctx, FullReindexActivity, input).Get(ctx, &result); err != nil {
		return nil, err
	}

	return &FullReindexOutput{
		Succeeded:     true,
		FilesIndexed:  result.FilesIndexed,
		FilesDeleted:  result.FilesDeleted,
		ChunksWritten: result.ChunksWritten,
	}, nil
}

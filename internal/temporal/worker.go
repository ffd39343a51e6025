package temporal

import (
	"fmt"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

// StartWorker creates and starts a Temporal worker.
func StartWorker(c client.Client, taskQueue string) (worker.Worker, error) {
	w := worker.New(c, taskQueue, worker.Options{})

	w.RegisterWorkflow(MergeReindexWorkflow)
	w.RegisterWorkflow(TaskDoneWorkflow)
	w.RegisterWorkflow(FullReindexWorkflow)
	w.RegisterActivity(ReindexMergeCommitActivity)
	w.RegisterActivity(IndexTaskActivity)
	w.RegisterActivity(FullReindexActivity)

	if err := w.Start(); err != nil {
		return nil, fmt.Errorf("starting worker: %w", err)
	}
	return w, nil
}

// Package index maintains the vector index of codebase chunks and task
// outcome records: full reindex, merge-scoped incremental reindex, and
// task-completion indexing.
package index

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ChunkID returns the deterministic document id for a chunk: a pure
// function of the repo-relative path and the chunk sequence number, so
// repeated indexing of identical content is idempotent.
func ChunkID(path string, seq int) string {
	return fmt.Sprintf("%s#%d", NormalizePath(path), seq)
}

// ChunkIDs returns the ids for the first n chunks of a path.
func ChunkIDs(path string, n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = ChunkID(path, i)
	}
	return ids
}

// TaskDocID returns the deterministic document id for a task outcome
// record. Derived solely from the task id, never randomized, so a task is
// stored exactly once no matter how often indexing is triggered.
func TaskDocID(taskID string) string {
	return "task_" + taskID
}

// NormalizePath converts a path to the slash-separated repo-relative form
// used as the stable chunk key.
func NormalizePath(path string) string {
	return strings.TrimPrefix(filepath.ToSlash(path), "./")
}

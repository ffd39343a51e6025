// Package vector provides durable, queryable storage of embedded documents
// partitioned into named collections.
package vector

import "context"

// Document is one indexed unit: a code chunk or a task outcome record.
// ID is a logical key computed deterministically by the caller (for example
// "internal/app/main.go#3" or "task_42"); logical deduplication rests
// entirely on that construction, not on the store.
type Document struct {
	ID       string
	Content  string
	Vector   []float32
	Metadata map[string]string
}

// SearchResult is a single match from a similarity query, ordered by
// descending similarity score.
type SearchResult struct {
	ID       string
	Score    float32
	Content  string
	Metadata map[string]string
}

// Store provides per-collection vector storage and nearest-neighbor search.
//
// Contract: Upsert replaces any existing document with the same ID in full
// (delete-then-insert, never a partial field merge) and creates the
// collection implicitly on first write. Query and Get against a collection
// that does not exist return empty results, never an error. Writes are
// atomic per document id, not per batch.
type Store interface {
	// Get returns the documents stored under the given ids; missing ids are
	// simply absent from the result.
	Get(ctx context.Context, collection string, ids []string) ([]Document, error)
	// Upsert inserts or fully replaces documents by id.
	Upsert(ctx context.Context, collection string, docs []Document) error
	// Delete removes the documents with the given ids; unknown ids are a
	// no-op.
	Delete(ctx context.Context, collection string, ids []string) error
	// Query returns the topK most similar documents to the given vector.
	Query(ctx context.Context, collection string, vector []float32, topK int) ([]SearchResult, error)
	// Close releases resources.
	Close() error
}

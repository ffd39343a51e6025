package vector

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store backed by maps. It serves tests and
// embedded single-process operation; durability comes from the Qdrant
// backend.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Document
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]Document),
	}
}

func (s *MemoryStore) Get(_ context.Context, collection string, ids []string) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll, ok := s.collections[collection]
	if !ok {
		return nil, nil
	}
	var out []Document
	for _, id := range ids {
		if doc, ok := coll[id]; ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (s *MemoryStore) Upsert(_ context.Context, collection string, docs []Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string]Document)
		s.collections[collection] = coll
	}
	for _, doc := range docs {
		// Whole-document replace: the map assignment swaps the previous
		// value atomically under the lock.
		coll[doc.ID] = doc
	}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, collection string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[collection]
	if !ok {
		return nil
	}
	for _, id := range ids {
		delete(coll, id)
	}
	return nil
}

func (s *MemoryStore) Query(_ context.Context, collection string, vector []float32, topK int) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll, ok := s.collections[collection]
	if !ok || topK <= 0 {
		return []SearchResult{}, nil
	}

	results := make([]SearchResult, 0, len(coll))
	for _, doc := range coll {
		results = append(results, SearchResult{
			ID:       doc.ID,
			Score:    cosineSimilarity(vector, doc.Vector),
			Content:  doc.Content,
			Metadata: doc.Metadata,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (s *MemoryStore) Close() error { return nil }

// Count returns the number of documents in a collection. Used by tests and
// diagnostics; not part of the Store contract.
func (s *MemoryStore) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

var _ Store = (*MemoryStore)(nil)

// Package search serves semantic queries against the indexed codebase and
// the task-outcome history.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/locusdev/locus/internal/embed"
	"github.com/locusdev/locus/internal/vector"
)

const defaultTopK = 10

// CodeHit is one code-chunk match, carrying enough location detail for a
// caller to open the file at the right place.
type CodeHit struct {
	Path      string  `json:"path"`
	StartLine int     `json:"start_line"`
	EndLine   int     `json:"end_line"`
	Language  string  `json:"language,omitempty"`
	Score     float32 `json:"score"`
	Content   string  `json:"content"`
}

// TaskHit is one historical task match.
type TaskHit struct {
	TaskID   string  `json:"task_id"`
	Title    string  `json:"title"`
	Type     string  `json:"type,omitempty"`
	Priority string  `json:"priority,omitempty"`
	Score    float32 `json:"score"`
	Content  string  `json:"content"`
}

// Config configures the search service.
type Config struct {
	Provider       embed.Provider
	Store          vector.Store
	CodeCollection string
	TaskCollection string
	Logger         *slog.Logger
}

// Service answers natural-language queries by embedding the query with the
// same provider used at index time and running nearest-neighbor search.
type Service struct {
	provider embed.Provider
	store    vector.Store
	codeColl string
	taskColl string
	logger   *slog.Logger
}

// New creates a search service.
func New(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		provider: cfg.Provider,
		store:    cfg.Store,
		codeColl: cfg.CodeCollection,
		taskColl: cfg.TaskCollection,
		logger:   logger,
	}
}

// SearchCodebase returns the topK code chunks most similar to the query.
// An empty or never-populated index yields an empty slice, not an error.
func (s *Service) SearchCodebase(ctx context.Context, query string, topK int) ([]CodeHit, error) {
	results, err := s.query(ctx, s.codeColl, query, topK)
	if err != nil {
		return nil, err
	}

	hits := make([]CodeHit, 0, len(results))
	for _, r := range results {
		hit := CodeHit{
			Path:     r.Metadata["path"],
			Language: r.Metadata["language"],
			Score:    r.Score,
			Content:  r.Content,
		}
		hit.StartLine, _ = strconv.Atoi(r.Metadata["start_line"])
		hit.EndLine, _ = strconv.Atoi(r.Metadata["end_line"])
		if hit.Path == "" {
			// A store populated outside the indexers may omit the path
			// metadata; the id's path half is still authoritative.
			hit.Path = pathFromChunkID(r.ID)
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// FindSimilarTasks returns historical tasks whose recorded outcome is
// similar to the query, most similar first.
func (s *Service) FindSimilarTasks(ctx context.Context, query string, topK int) ([]TaskHit, error) {
	results, err := s.query(ctx, s.taskColl, query, topK)
	if err != nil {
		return nil, err
	}

	hits := make([]TaskHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, TaskHit{
			TaskID:   r.Metadata["task_id"],
			Title:    r.Metadata["title"],
			Type:     r.Metadata["type"],
			Priority: r.Metadata["priority"],
			Score:    r.Score,
			Content:  r.Content,
		})
	}
	return hits, nil
}

func (s *Service) query(ctx context.Context, collection, query string, topK int) ([]vector.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is empty")
	}
	if topK <= 0 {
		topK = defaultTopK
	}

	vectors, err := s.provider.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := s.store.Query(ctx, collection, vectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}

	s.logger.Debug("search complete", "collection", collection, "hits", len(results))
	return results, nil
}

func pathFromChunkID(id string) string {
	if i := strings.LastIndex(id, "#"); i > 0 {
		return id[:i]
	}
	return id
}

package index

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/locusdev/locus/internal/chunker"
	"github.com/locusdev/locus/internal/embed"
	"github.com/locusdev/locus/internal/vector"
)

// pipeline is the chunk → embed → upsert path shared by the full and
// incremental indexers.
type pipeline struct {
	chunker    *chunker.Chunker
	provider   embed.Provider
	store      vector.Store
	collection string
	batchSize  int
	logger     *slog.Logger
}

// replaceFile fully replaces a path's chunks: delete every previously
// stored chunk id, then re-chunk, re-embed and upsert current content.
// Never a partial patch. Returns the new chunk count.
func (p *pipeline) replaceFile(ctx context.Context, relPath string, content []byte, oldCount int) (int, error) {
	if oldCount > 0 {
		if err := p.store.Delete(ctx, p.collection, ChunkIDs(relPath, oldCount)); err != nil {
			return 0, fmt.Errorf("delete chunks for %s: %w", relPath, err)
		}
	}

	chunks := p.chunker.Split(relPath, content)
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}

	vectors, err := p.embedBatched(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed %s: %w", relPath, err)
	}

	docs := make([]vector.Document, len(chunks))
	for i, ch := range chunks {
		docs[i] = vector.Document{
			ID:      ChunkID(relPath, ch.Seq),
			Content: ch.Content,
			Vector:  vectors[i],
			Metadata: map[string]string{
				"path":       relPath,
				"start_line": strconv.Itoa(ch.StartLine),
				"end_line":   strconv.Itoa(ch.EndLine),
				"language":   ch.Language,
			},
		}
	}

	if err := p.store.Upsert(ctx, p.collection, docs); err != nil {
		return 0, fmt.Errorf("upsert chunks for %s: %w", relPath, err)
	}
	return len(chunks), nil
}

// deleteFile removes all stored chunks for a path.
func (p *pipeline) deleteFile(ctx context.Context, relPath string, oldCount int) error {
	if oldCount == 0 {
		return nil
	}
	if err := p.store.Delete(ctx, p.collection, ChunkIDs(relPath, oldCount)); err != nil {
		return fmt.Errorf("delete chunks for %s: %w", relPath, err)
	}
	return nil
}

// embedBatched embeds texts in batches. Batching is purely an
// optimization: results are identical to embedding one text at a time.
func (p *pipeline) embedBatched(ctx context.Context, texts []string) ([][]float32, error) {
	batch := p.batchSize
	if batch <= 0 {
		batch = len(texts)
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batch {
		end := start + batch
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := p.provider.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(vecs), end-start)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

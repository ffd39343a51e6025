package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/locusdev/locus/internal/chunker"
	"github.com/locusdev/locus/internal/embed"
	"github.com/locusdev/locus/internal/vector"
)

const testModel = "static-test"

func testChunker() *chunker.Chunker {
	return chunker.New(chunker.Config{
		MaxTokens:  50,
		MinTokens:  10,
		Extensions: []string{"go", "py"},
	})
}

// testHarness bundles the fixtures shared by the indexer tests.
type testHarness struct {
	repo     string
	stateDir string
	store    *vector.MemoryStore
	provider *embed.Static
	chunker  *chunker.Chunker
	maxBytes int64 // applied to both indexers; zero means no cap
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	return &testHarness{
		repo:     t.TempDir(),
		stateDir: t.TempDir(),
		store:    vector.NewMemory(),
		provider: embed.NewStatic(64),
		chunker:  testChunker(),
	}
}

func (h *testHarness) fullIndexer() *FullIndexer {
	return NewFullIndexer(FullConfig{
		Chunker:      h.chunker,
		Provider:     h.provider,
		Store:        h.store,
		Collection:   "codebase_chunks",
		Model:        testModel,
		StateDir:     h.stateDir,
		MaxFileBytes: h.maxBytes,
		Workers:      2,
		BatchSize:    8,
	})
}

func (h *testHarness) mergeIndexer(resolver ChangeSetResolver) *MergeIndexer {
	return NewMergeIndexer(MergeConfig{
		Chunker:      h.chunker,
		Provider:     h.provider,
		Store:        h.store,
		Collection:   "codebase_chunks",
		Model:        testModel,
		Resolver:     resolver,
		StateDir:     h.stateDir,
		MaxFileBytes: h.maxBytes,
		BatchSize:    8,
	})
}

func (h *testHarness) write(t *testing.T, relPath, content string) {
	t.Helper()
	abs := filepath.Join(h.repo, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", relPath, err)
	}
}

func (h *testHarness) remove(t *testing.T, relPath string) {
	t.Helper()
	if err := os.Remove(filepath.Join(h.repo, filepath.FromSlash(relPath))); err != nil {
		t.Fatalf("remove %s: %v", relPath, err)
	}
}

func (h *testHarness) chunkCount(t *testing.T, relPath string) int {
	t.Helper()
	m, err := LoadManifest(h.stateDir)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if m == nil || m.Files[relPath] == nil {
		return 0
	}
	return m.Files[relPath].ChunkCount
}

// stubResolver returns a fixed set of touched paths.
type stubResolver struct {
	paths []string
	err   error
}

func (s *stubResolver) TouchedPaths(context.Context, string, string) ([]string, error) {
	return s.paths, s.err
}

// genLines builds a file of n short distinct lines.
func genLines(prefix string, n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "%s_line_%03d = process(%d)\n", prefix, i, i)
	}
	return b.String()
}

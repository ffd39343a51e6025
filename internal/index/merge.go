package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/locusdev/locus/internal/chunker"
	"github.com/locusdev/locus/internal/embed"
	"github.com/locusdev/locus/internal/vector"
)

// ChangeSet partitions the paths touched by a merge into those still
// present in the working tree and those the merge removed. It is derived
// per invocation and never persisted.
type ChangeSet struct {
	Changed map[string]bool
	Deleted map[string]bool
}

// ChangeSetResolver resolves the paths touched by a commit. Version
// control is an injected capability so the indexing core is testable with
// synthetic diffs.
//
// The returned paths must include both the old and the new name of every
// diff entry: a rename is delete-old plus add-new, which is what prevents
// a stale duplicate lingering under the old name.
type ChangeSetResolver interface {
	// TouchedPaths returns the repo-relative paths changed between commitSHA
	// (default repository head when empty) and its first parent. For a
	// commit with fewer than two parents this degrades to the regular
	// single-parent diff; for a root commit it returns every path in the
	// tree.
	TouchedPaths(ctx context.Context, repoPath, commitSHA string) ([]string, error)
}

// MergeConfig configures the merge-scoped incremental indexer.
type MergeConfig struct {
	Chunker      *chunker.Chunker
	Provider     embed.Provider
	Store        vector.Store
	Collection   string
	Model        string // embedding model identity, fixed per project
	Resolver     ChangeSetResolver
	StateDir     string
	MaxFileBytes int64
	BatchSize    int
	Logger       *slog.Logger
}

// MergeIndexer reindexes only the files touched by a merge commit,
// bounding update cost to the size of the change rather than the size of
// the repository.
//
// Known limitation: there is no mutual exclusion across concurrent merges
// touching overlapping files; interleaving of such writers is undefined.
type MergeIndexer struct {
	pipe     pipeline
	model    string
	resolver ChangeSetResolver
	stateDir string
	maxBytes int64
	logger   *slog.Logger
}

// MergeResult captures the outcome of an incremental reindex.
type MergeResult struct {
	Commit         string        `json:"commit"`
	TouchedPaths   int           `json:"touched_paths"`
	FilesIndexed   int           `json:"files_indexed"`
	FilesUnchanged int           `json:"files_unchanged"`
	FilesDeleted   int           `json:"files_deleted"`
	FilesIgnored   int           `json:"files_ignored"`
	ChunksWritten  int           `json:"chunks_written"`
	Duration       time.Duration `json:"duration"`
}

// NewMergeIndexer creates a merge-scoped incremental indexer.
func NewMergeIndexer(cfg MergeConfig) *MergeIndexer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &MergeIndexer{
		pipe: pipeline{
			chunker:    cfg.Chunker,
			provider:   cfg.Provider,
			store:      cfg.Store,
			collection: cfg.Collection,
			batchSize:  cfg.BatchSize,
			logger:     logger,
		},
		model:    cfg.Model,
		resolver: cfg.Resolver,
		stateDir: cfg.StateDir,
		maxBytes: cfg.MaxFileBytes,
		logger:   logger,
	}
}

// Run reindexes the files touched by commitSHA (repository head when
// empty). Paths still on disk that a full walk would accept are fully
// replaced; paths gone from disk have their chunks deleted; paths a full
// walk would not visit (unsupported extension, skipped directory,
// oversized file) are ignored outright; a supported-to-unsupported rename
// is still cleaned up because the old path appears in the diff.
func (m *MergeIndexer) Run(ctx context.Context, repoPath, commitSHA string) (*MergeResult, error) {
	start := time.Now()
	result := &MergeResult{Commit: commitSHA}

	touched, err := m.resolver.TouchedPaths(ctx, repoPath, commitSHA)
	if err != nil {
		return nil, fmt.Errorf("resolve change set: %w", err)
	}
	result.TouchedPaths = len(touched)

	manifest, err := LoadManifest(m.stateDir)
	if err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}
	if manifest == nil {
		manifest = NewManifest(m.model, m.pipe.provider.Dimension())
	} else if manifest.Model != "" && manifest.Model != m.model {
		return nil, fmt.Errorf("index was built with model %q, configured model is %q: a model change requires a fresh project store", manifest.Model, m.model)
	}

	cs, ignored := m.partition(repoPath, touched)
	result.FilesIgnored = ignored

	for _, path := range sortedKeys(cs.Deleted) {
		entry := manifest.Files[path]
		if entry == nil {
			// Never indexed (or already cleaned up): nothing to delete.
			continue
		}
		if err := m.pipe.deleteFile(ctx, path, entry.ChunkCount); err != nil {
			return result, err
		}
		delete(manifest.Files, path)
		result.FilesDeleted++
	}

	for _, path := range sortedKeys(cs.Changed) {
		content, err := os.ReadFile(filepath.Join(repoPath, filepath.FromSlash(path)))
		if err != nil {
			m.logger.Warn("skipping unreadable file", "path", path, "error", err)
			continue
		}

		hash := HashContent(content)
		entry := manifest.Files[path]
		if entry != nil && entry.ContentHash == hash {
			result.FilesUnchanged++
			continue
		}

		oldCount := 0
		if entry != nil {
			oldCount = entry.ChunkCount
		}

		n, err := m.pipe.replaceFile(ctx, path, content, oldCount)
		if err != nil {
			return result, err
		}
		manifest.Files[path] = &FileEntry{ContentHash: hash, ChunkCount: n}
		result.FilesIndexed++
		result.ChunksWritten += n
	}

	if err := manifest.Save(m.stateDir); err != nil {
		return result, fmt.Errorf("save manifest: %w", err)
	}

	result.Duration = time.Since(start)

	m.logger.Info("merge reindex complete",
		"commit", commitSHA,
		"touched", result.TouchedPaths,
		"indexed", result.FilesIndexed,
		"unchanged", result.FilesUnchanged,
		"deleted", result.FilesDeleted,
		"ignored", result.FilesIgnored,
		"chunks", result.ChunksWritten,
		"duration", result.Duration.Round(time.Millisecond),
	)

	return result, nil
}

// partition splits touched paths into present-and-indexable (replace),
// absent (delete) and ignored. The indexable predicate and the size cap
// are the same ones the full walk applies.
func (m *MergeIndexer) partition(repoPath string, touched []string) (*ChangeSet, int) {
	cs := &ChangeSet{
		Changed: make(map[string]bool),
		Deleted: make(map[string]bool),
	}
	ignored := 0
	for _, raw := range touched {
		path := NormalizePath(raw)
		if path == "" {
			continue
		}
		info, err := os.Stat(filepath.Join(repoPath, filepath.FromSlash(path)))
		if err != nil {
			// Gone from the working tree: delete whatever was indexed
			// under this name, supported or not.
			cs.Deleted[path] = true
			continue
		}
		if !indexable(path, m.pipe.chunker.Supported) {
			// Present but outside what a full walk would index: no
			// deletion, no insertion.
			ignored++
			continue
		}
		if m.maxBytes > 0 && info.Size() > m.maxBytes {
			ignored++
			continue
		}
		cs.Changed[path] = true
	}
	return cs, ignored
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

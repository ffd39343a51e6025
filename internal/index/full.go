package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/locusdev/locus/internal/chunker"
	"github.com/locusdev/locus/internal/embed"
	"github.com/locusdev/locus/internal/vector"
)

// FullConfig configures the full indexer.
type FullConfig struct {
	Chunker      *chunker.Chunker
	Provider     embed.Provider
	Store        vector.Store
	Collection   string
	Model        string // embedding model identity, fixed per project
	StateDir     string
	MaxFileBytes int64
	Workers      int
	BatchSize    int
	Logger       *slog.Logger
}

// FullIndexer walks the entire working tree and brings the chunk
// collection into exact 1:1 correspondence with the tree's supported
// files. Cost is O(repository size); it exists for bootstrap and explicit
// manual reindexing, never as a per-merge operation.
type FullIndexer struct {
	pipe     pipeline
	model    string
	stateDir string
	maxBytes int64
	workers  int
	logger   *slog.Logger
}

// FullResult captures the outcome of a full reindex run.
type FullResult struct {
	TotalFiles     int           `json:"total_files"`
	FilesIndexed   int           `json:"files_indexed"`
	FilesUnchanged int           `json:"files_unchanged"`
	FilesSkipped   int           `json:"files_skipped"`
	FilesDeleted   int           `json:"files_deleted"`
	ChunksWritten  int           `json:"chunks_written"`
	Duration       time.Duration `json:"duration"`
	IsFirstRun     bool          `json:"is_first_run"`
}

// NewFullIndexer creates a full indexer.
func NewFullIndexer(cfg FullConfig) *FullIndexer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	return &FullIndexer{
		pipe: pipeline{
			chunker:    cfg.Chunker,
			provider:   cfg.Provider,
			store:      cfg.Store,
			collection: cfg.Collection,
			batchSize:  cfg.BatchSize,
			logger:     logger,
		},
		model:    cfg.Model,
		stateDir: cfg.StateDir,
		maxBytes: cfg.MaxFileBytes,
		workers:  workers,
		logger:   logger,
	}
}

// Run walks repoPath and reindexes every supported file whose content
// changed since the recorded manifest, then deletes chunks for paths no
// longer present. Cancelling the context stops the run between files; a
// cancelled run leaves the index partially updated but every id either
// fully pre-write or fully post-write, and the manifest reflects only
// completed files.
func (f *FullIndexer) Run(ctx context.Context, repoPath string) (*FullResult, error) {
	start := time.Now()
	result := &FullResult{}

	prev, err := LoadManifest(f.stateDir)
	if err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}

	var next *Manifest
	if prev == nil {
		result.IsFirstRun = true
		next = NewManifest(f.model, f.pipe.provider.Dimension())
	} else {
		if prev.Model != "" && prev.Model != f.model {
			return nil, fmt.Errorf("index was built with model %q, configured model is %q: a model change requires a fresh project store", prev.Model, f.model)
		}
		next = prev.Clone()
	}

	files, err := walkTree(repoPath, f.pipe.chunker.Supported, f.maxBytes)
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", repoPath, err)
	}
	result.TotalFiles = len(files)

	seen := make(map[string]bool, len(files))
	for _, wf := range files {
		seen[wf.RelPath] = true
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers)

	for _, wf := range files {
		wf := wf
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			content, err := os.ReadFile(wf.AbsPath)
			if err != nil {
				// Transient I/O: skip and continue, never abort the run.
				f.logger.Warn("skipping unreadable file", "path", wf.RelPath, "error", err)
				mu.Lock()
				result.FilesSkipped++
				mu.Unlock()
				return nil
			}

			hash := HashContent(content)
			mu.Lock()
			entry := next.Files[wf.RelPath]
			mu.Unlock()

			if entry != nil && entry.ContentHash == hash {
				mu.Lock()
				result.FilesUnchanged++
				mu.Unlock()
				return nil
			}

			oldCount := 0
			if entry != nil {
				oldCount = entry.ChunkCount
			}

			n, err := f.pipe.replaceFile(gctx, wf.RelPath, content, oldCount)
			if err != nil {
				return err
			}

			mu.Lock()
			next.Files[wf.RelPath] = &FileEntry{ContentHash: hash, ChunkCount: n}
			result.FilesIndexed++
			result.ChunksWritten += n
			mu.Unlock()
			return nil
		})
	}

	runErr := g.Wait()

	// Deletions run only on a clean pass; a cancelled run must not drop
	// chunks for files it never got to verify.
	if runErr == nil {
		for path, entry := range next.Files {
			if seen[path] {
				continue
			}
			if err := f.pipe.deleteFile(ctx, path, entry.ChunkCount); err != nil {
				runErr = err
				break
			}
			delete(next.Files, path)
			result.FilesDeleted++
		}
	}

	// Persist what completed even when interrupted: manifest entries are
	// only ever updated after a successful per-file replace.
	if err := next.Save(f.stateDir); err != nil {
		if runErr == nil {
			runErr = fmt.Errorf("save manifest: %w", err)
		} else {
			f.logger.Error("saving manifest after failed run", "error", err)
		}
	}

	result.Duration = time.Since(start)

	f.logger.Info("full reindex complete",
		"repo", filepath.Clean(repoPath),
		"total", result.TotalFiles,
		"indexed", result.FilesIndexed,
		"unchanged", result.FilesUnchanged,
		"skipped", result.FilesSkipped,
		"deleted", result.FilesDeleted,
		"chunks", result.ChunksWritten,
		"first_run", result.IsFirstRun,
		"duration", result.Duration.Round(time.Millisecond),
	)

	if runErr != nil {
		return result, runErr
	}
	return result, nil
}

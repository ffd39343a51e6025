// Package engine wires chunking, embedding, vector storage, indexing and
// search behind one facade and owns the availability state of the whole
// semantic layer.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/locusdev/locus/internal/chunker"
	"github.com/locusdev/locus/internal/config"
	"github.com/locusdev/locus/internal/embed"
	"github.com/locusdev/locus/internal/index"
	"github.com/locusdev/locus/internal/observability"
	"github.com/locusdev/locus/internal/search"
	"github.com/locusdev/locus/internal/vector"
)

// ErrUnavailable is returned by every operation while the engine is
// disabled. Callers treat it as "feature off", not as a failure to retry.
var ErrUnavailable = errors.New("semantic search unavailable: embedding backend could not be reached")

// State is the engine availability state.
type State string

const (
	StateReady    State = "ready"
	StateDisabled State = "disabled"
)

// Status reports the engine state and, when disabled, why.
type Status struct {
	State  State  `json:"state"`
	Reason string `json:"reason,omitempty"`
	Model  string `json:"model,omitempty"`
}

// Engine is the semantic indexing and retrieval engine.
type Engine struct {
	cfg      *config.Config
	provider embed.Provider
	store    vector.Store
	chunker  *chunker.Chunker
	full     *index.FullIndexer
	merge    *index.MergeIndexer
	tasks    *index.TaskIndexer
	searcher *search.Service
	metrics  *observability.EngineMetrics
	logger   *slog.Logger

	status Status
}

// Options tunes engine construction; zero value is fine.
type Options struct {
	// Provider overrides the configured embedding backend.
	Provider embed.Provider
	// Store overrides the configured vector backend, used by callers that
	// already hold a store (and by tests).
	Store vector.Store
	// Resolver overrides the git-backed change set resolver.
	Resolver index.ChangeSetResolver
	Logger   *slog.Logger
	Metrics  *observability.EngineMetrics
}

// New builds the engine from configuration. Construction always succeeds
// if the pieces can be built; availability is decided by a startup probe
// against the embedding backend. A failed probe yields a functioning
// Engine in the disabled state rather than an error: the host keeps
// running, only semantic features are off.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.Metrics()
	}

	provider := opts.Provider
	if provider == nil {
		var err error
		provider, err = embed.NewProvider(embed.ProviderConfig{
			Provider:  cfg.Embedding.Provider,
			APIKey:    cfg.Embedding.APIKey,
			Model:     cfg.Embedding.Model,
			BaseURL:   cfg.Embedding.BaseURL,
			Dimension: cfg.Embedding.Dimension,
		})
		if err != nil {
			return nil, fmt.Errorf("build embedding provider: %w", err)
		}
	}

	store := opts.Store
	if store == nil {
		switch cfg.Vector.Backend {
		case "memory":
			store = vector.NewMemory()
		default:
			qs, err := vector.NewQdrant(cfg.Vector.Host, cfg.Vector.Port)
			if err != nil {
				return nil, fmt.Errorf("build vector store: %w", err)
			}
			store = qs
		}
	}

	resolver := opts.Resolver
	if resolver == nil {
		resolver = index.NewGitResolver()
	}

	ch := chunker.New(chunker.Config{
		MaxTokens:  cfg.Index.MaxChunkTokens,
		MinTokens:  cfg.Index.MinChunkTokens,
		Extensions: cfg.Index.Extensions,
	})

	e := &Engine{
		cfg:      cfg,
		provider: provider,
		store:    store,
		chunker:  ch,
		metrics:  metrics,
		logger:   logger,
		full: index.NewFullIndexer(index.FullConfig{
			Chunker:      ch,
			Provider:     provider,
			Store:        store,
			Collection:   cfg.Vector.CodeCollection,
			Model:        cfg.Embedding.Model,
			StateDir:     cfg.Index.StateDir,
			MaxFileBytes: cfg.Index.MaxFileBytes,
			Workers:      cfg.Index.Workers,
			BatchSize:    cfg.Embedding.BatchSize,
			Logger:       logger,
		}),
		merge: index.NewMergeIndexer(index.MergeConfig{
			Chunker:      ch,
			Provider:     provider,
			Store:        store,
			Collection:   cfg.Vector.CodeCollection,
			Model:        cfg.Embedding.Model,
			Resolver:     resolver,
			StateDir:     cfg.Index.StateDir,
			MaxFileBytes: cfg.Index.MaxFileBytes,
			BatchSize:    cfg.Embedding.BatchSize,
			Logger:       logger,
		}),
		tasks: index.NewTaskIndexer(index.TaskConfig{
			Provider:   provider,
			Store:      store,
			Collection: cfg.Vector.TaskCollection,
			Logger:     logger,
		}),
		searcher: search.New(search.Config{
			Provider:       provider,
			Store:          store,
			CodeCollection: cfg.Vector.CodeCollection,
			TaskCollection: cfg.Vector.TaskCollection,
			Logger:         logger,
		}),
	}

	e.probe(ctx)
	return e, nil
}

// probe verifies the embedding backend once at startup. The probe text is
// arbitrary; only reachability and dimension matter.
func (e *Engine) probe(ctx context.Context) {
	_, err := e.provider.Embed(ctx, []string{"startup probe"})
	if err != nil {
		e.status = Status{
			State:  StateDisabled,
			Reason: err.Error(),
			Model:  e.cfg.Embedding.Model,
		}
		e.metrics.EngineReady.Set(0)
		observability.Audit().LogEngineDisabled(ctx, err)
		e.logger.Warn("semantic search disabled", "reason", err)
		return
	}
	e.status = Status{State: StateReady, Model: e.cfg.Embedding.Model}
	e.metrics.EngineReady.Set(1)
	e.logger.Info("semantic search ready",
		"provider", e.provider.Name(),
		"model", e.cfg.Embedding.Model,
		"dimension", e.provider.Dimension(),
	)
}

// Status returns the current availability status.
func (e *Engine) Status() Status {
	return e.status
}

func (e *Engine) ready() error {
	if e.status.State != StateReady {
		return ErrUnavailable
	}
	return nil
}

// IndexCodebase walks and indexes the whole repository.
func (e *Engine) IndexCodebase(ctx context.Context, repoPath string) (*index.FullResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	ctx, span := observability.StartIndexSpan(ctx, "full")
	defer span.End()
	start := time.Now()

	observability.Audit().LogIndexStart(ctx, "full", repoPath, "")
	result, err := e.full.Run(ctx, repoPath)
	if result == nil {
		result = &index.FullResult{}
	}
	e.recordIndex(ctx, span, "full", start, err, result.FilesIndexed, result.FilesDeleted, result.ChunksWritten)
	if err != nil {
		return result, err
	}
	return result, nil
}

// ReindexMergeCommit reindexes only what the given merge commit touched.
func (e *Engine) ReindexMergeCommit(ctx context.Context, repoPath, commitSHA string) (*index.MergeResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	ctx, span := observability.StartIndexSpan(ctx, "merge")
	defer span.End()
	start := time.Now()

	observability.Audit().LogIndexStart(ctx, "merge", repoPath, commitSHA)
	result, err := e.merge.Run(ctx, repoPath, commitSHA)
	if result == nil {
		result = &index.MergeResult{Commit: commitSHA}
	}
	e.recordIndex(ctx, span, "merge", start, err, result.FilesIndexed, result.FilesDeleted, result.ChunksWritten)
	if err != nil {
		return result, err
	}
	return result, nil
}

// IndexTask records a completed task's outcome in the task history.
func (e *Engine) IndexTask(ctx context.Context, task index.Task) error {
	if err := e.ready(); err != nil {
		return err
	}

	ctx, span := observability.StartIndexSpan(ctx, "task")
	defer span.End()

	err := e.tasks.Index(ctx, task)
	if err != nil {
		observability.RecordError(span, err)
		return err
	}
	e.metrics.TasksIndexedTotal.Inc()
	observability.Audit().LogTaskIndexed(ctx, task.ID)
	return nil
}

// SearchCodebase answers a natural-language query against the code index.
func (e *Engine) SearchCodebase(ctx context.Context, query string, topK int) ([]search.CodeHit, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	ctx, span := observability.StartSearchSpan(ctx, e.cfg.Vector.CodeCollection, topK)
	defer span.End()
	start := time.Now()

	hits, err := e.searcher.SearchCodebase(ctx, query, topK)
	e.recordSearch(ctx, span, e.cfg.Vector.CodeCollection, start, len(hits), err)
	return hits, err
}

// FindSimilarTasks answers a query against the task history.
func (e *Engine) FindSimilarTasks(ctx context.Context, query string, topK int) ([]search.TaskHit, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	ctx, span := observability.StartSearchSpan(ctx, e.cfg.Vector.TaskCollection, topK)
	defer span.End()
	start := time.Now()

	hits, err := e.searcher.FindSimilarTasks(ctx, query, topK)
	e.recordSearch(ctx, span, e.cfg.Vector.TaskCollection, start, len(hits), err)
	return hits, err
}

// Close releases the vector store connection.
func (e *Engine) Close() error {
	return e.store.Close()
}

func (e *Engine) recordIndex(ctx context.Context, span trace.Span, mode string, start time.Time, err error, filesIndexed, filesDeleted, chunksWritten int) {
	duration := time.Since(start)
	e.metrics.RecordIndexRun(duration, filesIndexed, filesDeleted, chunksWritten, err)
	if err != nil {
		observability.RecordError(span, err)
		observability.Audit().LogIndexError(ctx, mode, err)
		return
	}
	observability.RecordIndexResult(span, filesIndexed, filesDeleted, chunksWritten)
	observability.Audit().LogIndexComplete(ctx, mode, duration, filesIndexed, filesDeleted, chunksWritten)
}

func (e *Engine) recordSearch(ctx context.Context, span trace.Span, collection string, start time.Time, hits int, err error) {
	duration := time.Since(start)
	e.metrics.RecordSearch(duration, hits, err)
	if err != nil {
		observability.RecordError(span, err)
		return
	}
	observability.RecordSearchResult(span, hits)
	observability.Audit().LogSearchQuery(ctx, collection, hits, duration)
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/locusdev/locus/internal/config"
	"github.com/locusdev/locus/internal/engine"
	"github.com/locusdev/locus/internal/index"
	"github.com/locusdev/locus/internal/observability"
	"github.com/locusdev/locus/internal/secrets"
	"github.com/locusdev/locus/internal/server"
)

const version = "0.1.0"

func main() {
	var (
		configPath string
		repoPath   string
		commitSHA  string
		topK       int
		taskFile   string
		jsonOutput bool
		serveAddr  string
	)

	rootCmd := &cobra.Command{
		Use:   "locus",
		Short: "Semantic code and task-history indexing engine",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path")

	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Index the whole repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, cleanup, err := buildEngine(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			start := time.Now()
			result, err := e.IndexCodebase(cmd.Context(), repoPath)
			if err != nil {
				return fmt.Errorf("full index: %w", err)
			}
			fmt.Printf("Indexed %d files (%d chunks, %d deleted, %d unchanged) in %v\n",
				result.FilesIndexed, result.ChunksWritten, result.FilesDeleted,
				result.FilesUnchanged, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	indexCmd.Flags().StringVar(&repoPath, "repo", ".", "Repository path")

	reindexCmd := &cobra.Command{
		Use:   "reindex",
		Short: "Reindex only what a merge commit touched",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, cleanup, err := buildEngine(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := e.ReindexMergeCommit(cmd.Context(), repoPath, commitSHA)
			if err != nil {
				return fmt.Errorf("merge reindex: %w", err)
			}
			fmt.Printf("Commit %s: %d indexed, %d deleted, %d unchanged, %d ignored\n",
				result.Commit, result.FilesIndexed, result.FilesDeleted,
				result.FilesUnchanged, result.FilesIgnored)
			return nil
		},
	}
	reindexCmd.Flags().StringVar(&repoPath, "repo", ".", "Repository path")
	reindexCmd.Flags().StringVar(&commitSHA, "commit", "", "Merge commit SHA")
	_ = reindexCmd.MarkFlagRequired("commit")

	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the code index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, cleanup, err := buildEngine(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			hits, err := e.SearchCodebase(cmd.Context(), args[0], topK)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			if jsonOutput {
				data, _ := json.MarshalIndent(hits, "", "  ")
				fmt.Println(string(data))
				return nil
			}
			if len(hits) == 0 {
				fmt.Println("No results")
				return nil
			}
			for _, h := range hits {
				fmt.Printf("%.3f  %s:%d-%d\n", h.Score, h.Path, h.StartLine, h.EndLine)
			}
			return nil
		},
	}
	searchCmd.Flags().IntVar(&topK, "top", 10, "Maximum results")
	searchCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output hits as JSON")

	tasksCmd := &cobra.Command{
		Use:   "tasks",
		Short: "Task history operations",
	}

	tasksFindCmd := &cobra.Command{
		Use:   "find <query>",
		Short: "Find tasks similar to a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, cleanup, err := buildEngine(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			hits, err := e.FindSimilarTasks(cmd.Context(), args[0], topK)
			if err != nil {
				return fmt.Errorf("find tasks: %w", err)
			}
			if jsonOutput {
				data, _ := json.MarshalIndent(hits, "", "  ")
				fmt.Println(string(data))
				return nil
			}
			if len(hits) == 0 {
				fmt.Println("No results")
				return nil
			}
			for _, h := range hits {
				fmt.Printf("%.3f  [%s] %s\n", h.Score, h.TaskID, h.Title)
			}
			return nil
		},
	}
	tasksFindCmd.Flags().IntVar(&topK, "top", 5, "Maximum results")
	tasksFindCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output hits as JSON")

	tasksRecordCmd := &cobra.Command{
		Use:   "record",
		Short: "Record a completed task from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(taskFile)
			if err != nil {
				return fmt.Errorf("read task file: %w", err)
			}
			var task index.Task
			if err := json.Unmarshal(data, &task); err != nil {
				return fmt.Errorf("parse task file: %w", err)
			}

			e, cleanup, err := buildEngine(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := e.IndexTask(cmd.Context(), task); err != nil {
				return fmt.Errorf("record task: %w", err)
			}
			fmt.Printf("Recorded task %s\n", task.ID)
			return nil
		},
	}
	tasksRecordCmd.Flags().StringVar(&taskFile, "file", "", "Path to task JSON file")
	_ = tasksRecordCmd.MarkFlagRequired("file")

	tasksCmd.AddCommand(tasksFindCmd, tasksRecordCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Report engine availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, cleanup, err := buildEngine(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			data, _ := json.MarshalIndent(e.Status(), "", "  ")
			fmt.Println(string(data))
			return nil
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve health and metrics endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configPath, serveAddr)
		},
	}
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")

	rootCmd.AddCommand(indexCmd, reindexCmd, searchCmd, tasksCmd, statusCmd, serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildEngine loads configuration, sets up logging, tracing and auditing,
// and constructs the engine. The returned cleanup flushes everything.
func buildEngine(ctx context.Context, configPath string) (*engine.Engine, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	// Config may leave the API key empty; fall back to the secrets manager
	// (LOCUS_EMBEDDING_API_KEY or a configured file/vault backend).
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = secrets.GetOrDefault(ctx, string(secrets.SecretEmbeddingAPIKey), "")
	}

	tp, err := observability.InitTracing(ctx, &observability.TracingConfig{
		ServiceName:    "locus",
		ServiceVersion: version,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("tracing: %w", err)
	}

	if err := observability.InitGlobalAuditLogger(observability.DefaultAuditConfig()); err != nil {
		return nil, nil, fmt.Errorf("audit: %w", err)
	}

	e, err := engine.New(ctx, cfg, engine.Options{Logger: logger})
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		e.Close()
		observability.Audit().Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		tp.Shutdown(shutdownCtx)
	}
	return e, cleanup, nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// serve runs the health and metrics endpoints until interrupted. A
// disabled engine reports degraded, not unhealthy: the process is fine,
// one feature is off.
func serve(ctx context.Context, configPath, addr string) error {
	e, cleanup, err := buildEngine(ctx, configPath)
	if err != nil {
		return err
	}
	defer cleanup()

	g := server.NewGracefulServer(&server.HealthConfig{
		Version: version,
		Addr:    addr,
	}, nil)

	g.Health.RegisterCheck("engine", server.EngineHealthChecker(func() (bool, string) {
		st := e.Status()
		return st.State == engine.StateReady, st.Reason
	}))
	g.Health.RegisterHandler("/metrics", observability.Metrics().Handler())

	hook := server.EngineShutdownHook(e.Close)
	g.RegisterHook(hook.Name, hook.Priority, hook.Fn)

	if err := g.Start(addr); err != nil {
		return err
	}
	slog.Info("serving", "addr", addr)
	g.Wait()
	return nil
}

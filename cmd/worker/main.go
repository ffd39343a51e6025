package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	temporalclient "go.temporal.io/sdk/client"

	"github.com/locusdev/locus/internal/config"
	"github.com/locusdev/locus/internal/engine"
	"github.com/locusdev/locus/internal/observability"
	"github.com/locusdev/locus/internal/secrets"
	"github.com/locusdev/locus/internal/server"
	temporalmod "github.com/locusdev/locus/internal/temporal"
)

func main() {
	configPath := ""
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = secrets.GetOrDefault(ctx, string(secrets.SecretEmbeddingAPIKey), "")
	}

	tp, err := observability.InitTracing(ctx, &observability.TracingConfig{
		ServiceName:  "locus-worker",
		Environment:  cfg.Tracing.Environment,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SampleRate:   cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalf("tracing: %v", err)
	}

	if err := observability.InitGlobalAuditLogger(observability.DefaultAuditConfig()); err != nil {
		log.Fatalf("audit: %v", err)
	}

	// A disabled engine still serves a worker: activities fail fast with a
	// non-retryable error instead of the worker refusing to start.
	e, err := engine.New(ctx, cfg, engine.Options{})
	if err != nil {
		log.Fatalf("engine: %v", err)
	}
	if st := e.Status(); st.State != engine.StateReady {
		slog.Warn("starting with semantic search disabled", "reason", st.Reason)
	}

	temporalmod.SetDependencies(&temporalmod.Dependencies{Engine: e})

	c, err := temporalclient.Dial(temporalclient.Options{
		HostPort:  cfg.Temporal.Host,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w, err := temporalmod.StartWorker(c, cfg.Temporal.TaskQueue)
	if err != nil {
		log.Fatalf("worker: %v", err)
	}

	fmt.Printf("Worker started on task queue: %s\n", cfg.Temporal.TaskQueue)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdown := server.NewShutdownHandler(nil)
	workerHook := server.TemporalWorkerShutdownHook(w.Stop)
	shutdown.RegisterHook(workerHook.Name, workerHook.Priority, workerHook.Fn)
	engineHook := server.EngineShutdownHook(e.Close)
	shutdown.RegisterHook(engineHook.Name, engineHook.Priority, engineHook.Fn)
	auditHook := server.AuditLoggerShutdownHook(observability.Audit().Close)
	shutdown.RegisterHook(auditHook.Name, auditHook.Priority, auditHook.Fn)
	tracingHook := server.TracingShutdownHook(tp.Shutdown)
	shutdown.RegisterHook(tracingHook.Name, tracingHook.Priority, tracingHook.Fn)

	shutdown.Start()
	shutdown.Shutdown()
	if !shutdown.WaitWithTimeout(30 * time.Second) {
		log.Fatal("shutdown timed out")
	}
	fmt.Println("Worker stopped")
}

package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"flowkit/features/chatio"
	"flowkit/features/components"
	"flowkit/features/embeddings"
	"flowkit/features/job"
	"flowkit/features/stats"
	"flowkit/features/vectorstores"
	"flowkit/internal/adapter/gemini"
	"flowkit/internal/adapter/openai"
	"flowkit/internal/adapter/supabase"
	"flowkit/internal/chat"
	"flowkit/internal/component"
	"flowkit/internal/config"
	"flowkit/internal/metrics"
	"flowkit/internal/middleware"
	"flowkit/internal/vectorstore"
	"flowkit/internal/worker"
)

// Publisher is the NSQ producer surface the app needs.
type Publisher interface {
	Publish(topic string, body []byte) error
}

type App struct {
	Handler        http.Handler
	Registry       *component.Registry
	ChatService    *chat.Service
	JobService     *job.Service
	IngestConsumer *worker.IngestConsumer

	port    int
	closers []io.Closer
}

func New(cfg *config.Config, db *sql.DB, pub Publisher, logger *slog.Logger) (*App, error) {
	// Feature: Chat
	chatRepo := chat.NewPostgresRepo(db)
	chatService := chat.NewService(chatRepo, pub)
	chatHandler := chat.NewHandler(chatService)

	// Feature: Job
	jobRepo := job.NewPostgresRepo(db)
	jobService := job.NewService(jobRepo, pub)
	jobHandler := job.NewHandler(jobService)

	queryLogger, err := vectorstore.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		logger.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = vectorstore.NewQueryLogger(os.Stdout)
	}

	// Components
	geminiEmbeddings := embeddings.NewGeminiComponent(cfg.GeminiAPIKey)
	registry := component.NewRegistry()
	registry.MustRegister(
		chatio.NewChatInput(chatService),
		chatio.NewChatOutput(chatService),
		vectorstores.NewSupabaseComponent(vectorstores.WithQueryLogger(queryLogger)),
		vectorstores.NewWeaviateComponent(fmt.Sprintf("%s://%s", cfg.WeaviateScheme, cfg.WeaviateHost), queryLogger),
		vectorstores.NewLocalComponent(cfg.LocalStorePath, queryLogger),
		geminiEmbeddings,
		embeddings.NewOpenAIComponent(openai.Config{APIKey: cfg.OpenAIAPIKey, BaseURL: cfg.OpenAIBaseURL}),
	)
	componentHandler := components.NewHandler(registry, pub)
	statsHandler := stats.NewHandler(chatRepo, jobRepo, registry)

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := metrics.Register(reg); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	// Routes
	mux := http.NewServeMux()

	mux.Handle("GET /components", middleware.Wrap(componentHandler.List))
	mux.Handle("POST /components/{name}/build", middleware.Wrap(componentHandler.Build))
	mux.Handle("POST /ingest", middleware.Wrap(componentHandler.Ingest))

	mux.Handle("GET /sessions/{id}/messages", middleware.Wrap(chatHandler.ListMessages))
	mux.Handle("DELETE /sessions/{id}/messages", middleware.Wrap(chatHandler.DeleteMessages))

	mux.Handle("GET /jobs/failed", middleware.Wrap(jobHandler.List))
	mux.Handle("POST /jobs/{id}/retry", middleware.Wrap(jobHandler.Retry))
	mux.Handle("GET /stats", middleware.Wrap(statsHandler.GetStats))

	// Method-scoped patterns would answer preflight with 405.
	mux.Handle("OPTIONS /", middleware.Wrap(func(http.ResponseWriter, *http.Request) {}))

	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	a := &App{
		Handler:     mux,
		Registry:    registry,
		ChatService: chatService,
		JobService:  jobService,
		port:        cfg.ServerPort,
		closers:     []io.Closer{geminiEmbeddings},
	}

	// Worker (Ingest Consumer) Setup
	if cfg.EnableIngestWorker {
		indexers, embedder := supabaseIndexers(cfg)
		if c, ok := embedder.(io.Closer); ok {
			a.closers = append(a.closers, c)
		}
		a.IngestConsumer = worker.NewIngestConsumer(indexers).
			WithFailureRecorder(jobService, cfg.IngestMaxAttempts)
	}
	return a, nil
}

// supabaseIndexers opens the configured Supabase project with the first
// embeddings provider that has a key. Every indexer shares the returned
// embedder, which is nil when no provider is configured.
func supabaseIndexers(cfg *config.Config) (worker.IndexerFactory, vectorstore.Embedder) {
	embedder, embedErr := configuredEmbedder(cfg)
	if embedErr != nil {
		embedder = nil
	}
	return func(table, query string) (worker.Indexer, error) {
		if embedErr != nil {
			return nil, embedErr
		}
		client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey)
		if err != nil {
			return nil, err
		}
		if table == "" {
			table = cfg.SupabaseTable
		}
		if query == "" {
			query = cfg.SupabaseQueryName
		}
		return supabase.NewVectorStore(client, embedder, supabase.StoreOptions{TableName: table, QueryName: query}), nil
	}, embedder
}

func configuredEmbedder(cfg *config.Config) (vectorstore.Embedder, error) {
	if cfg.GeminiAPIKey != "" {
		return gemini.NewEmbedder(cfg.GeminiAPIKey, "")
	}
	return openai.NewEmbedder(openai.Config{APIKey: cfg.OpenAIAPIKey, BaseURL: cfg.OpenAIBaseURL})
}

// Close releases the embedding clients held by the app.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *App) Run(ctx context.Context) error {
	port := a.port
	if port == 0 {
		port = 8081
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", port)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

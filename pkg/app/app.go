// Package app wires configuration into the components shared by the server
// and the command line tool. Components are built on first use so commands
// only connect to what they need.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/mikeboe/paper-search/pkg/agent"
	"github.com/mikeboe/paper-search/pkg/clients"
	"github.com/mikeboe/paper-search/pkg/config"
	"github.com/mikeboe/paper-search/pkg/database"
	"github.com/mikeboe/paper-search/pkg/embeddings"
	"github.com/mikeboe/paper-search/pkg/evaluation"
	"github.com/mikeboe/paper-search/pkg/ingest"
	"github.com/mikeboe/paper-search/pkg/logging"
	"github.com/mikeboe/paper-search/pkg/papers"
	"github.com/mikeboe/paper-search/pkg/search"
	"github.com/mikeboe/paper-search/pkg/splitter"
	"github.com/mikeboe/paper-search/pkg/telemetry"
	"github.com/mikeboe/paper-search/pkg/tools"
)

type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Metrics  *telemetry.Metrics

	DB       *database.PostgresDB
	Store    *papers.Store
	Embedder *embeddings.GoogleEmbedder
}

func New(cfg *config.Config) *App {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &App{
		Config:   cfg,
		Logger:   logging.New(cfg.LogLevel, cfg.LogFormat),
		Registry: reg,
		Metrics:  telemetry.New(reg),
	}
}

// OpenStore connects to Postgres once and returns the paper store.
func (a *App) OpenStore(ctx context.Context) (*papers.Store, error) {
	if a.Store != nil {
		return a.Store, nil
	}
	db, err := database.NewPostgresDB(ctx, a.Config.DatabaseURL)
	if err != nil {
		return nil, err
	}
	a.DB = db
	a.Store = papers.NewStore(db.Pool)
	return a.Store, nil
}

func (a *App) OpenEmbedder(ctx context.Context) (*embeddings.GoogleEmbedder, error) {
	if a.Embedder != nil {
		return a.Embedder, nil
	}
	if a.Config.EmbeddingDimensions != database.EmbeddingDimensions {
		return nil, fmt.Errorf("EMBEDDING_DIMENSIONS must be %d to match the schema, got %d",
			database.EmbeddingDimensions, a.Config.EmbeddingDimensions)
	}
	e, err := embeddings.NewGoogleEmbedder(ctx, a.Config.EmbeddingModel, a.Config.GoogleApiKey, a.Config.EmbeddingDimensions)
	if err != nil {
		return nil, err
	}
	a.Embedder = e
	return e, nil
}

// Gateway talks to the tool server at TOOL_BASE_URL when set and to the
// local store otherwise.
func (a *App) Gateway(ctx context.Context) (search.Gateway, error) {
	if a.Config.ToolBaseURL != "" {
		a.Logger.Info("using remote tool server", "url", a.Config.ToolBaseURL)
		return search.NewClient(a.Config.ToolBaseURL, nil)
	}

	store, err := a.OpenStore(ctx)
	if err != nil {
		return nil, err
	}
	embedder, err := a.OpenEmbedder(ctx)
	if err != nil {
		return nil, err
	}
	return search.NewService(store, embedder, a.Config.EfSearch, a.Metrics), nil
}

func (a *App) Dispatcher(gateway search.Gateway) *tools.Dispatcher {
	d := tools.NewDispatcher(gateway, a.Logger)
	d.MaxParallel = a.Config.MaxParallelTools
	d.Timeout = a.Config.ToolTimeout
	d.Metrics = a.Metrics
	return d
}

// Orchestrator builds the agent loop over executor.
func (a *App) Orchestrator(executor agent.ToolExecutor) (*agent.Orchestrator, error) {
	client, err := clients.NewChatClient(a.Config.LLMBaseURL, a.Config.LLMApiKey, a.Config.LLMUserAgent, a.Config.ModelTimeout)
	if err != nil {
		return nil, err
	}

	o := agent.New(client, executor, a.Logger)
	o.ModelName = a.Config.LLMModel
	o.MaxTurns = a.Config.MaxTurns
	o.Metrics = a.Metrics
	return o, nil
}

// Agent builds the gateway, dispatcher and orchestrator in one step.
func (a *App) Agent(ctx context.Context) (*agent.Orchestrator, *tools.Dispatcher, error) {
	gateway, err := a.Gateway(ctx)
	if err != nil {
		return nil, nil, err
	}
	dispatcher := a.Dispatcher(gateway)
	o, err := a.Orchestrator(dispatcher)
	if err != nil {
		return nil, nil, err
	}
	return o, dispatcher, nil
}

func (a *App) Harness(runner evaluation.Runner) *evaluation.Harness {
	h := evaluation.NewHarness(runner, a.Config.EvalConcurrency, a.Logger)
	h.Metrics = a.Metrics
	return h
}

// Ingest builds the ingestion service over the local store.
func (a *App) Ingest(ctx context.Context) (*ingest.Service, error) {
	store, err := a.OpenStore(ctx)
	if err != nil {
		return nil, err
	}
	embedder, err := a.OpenEmbedder(ctx)
	if err != nil {
		return nil, err
	}
	pages := splitter.NewPageSplitter(a.Config.ChunkSize, a.Config.ChunkOverlap)
	return ingest.NewService(store, embedder, pages, a.Logger), nil
}

func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
}

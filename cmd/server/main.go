package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/mikeboe/paper-search/pkg/app"
	"github.com/mikeboe/paper-search/pkg/config"
	"github.com/mikeboe/paper-search/pkg/server"
)

var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load(os.Getenv("PAPER_SEARCH_CONFIG"))
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	a := app.New(cfg)
	defer a.Close()
	slog.SetDefault(a.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gateway, err := a.Gateway(ctx)
	if err != nil {
		slog.Error("Failed to initialize search gateway", "error", err)
		os.Exit(1)
	}
	dispatcher := a.Dispatcher(gateway)
	svc := server.NewService(gateway, nil, nil, dispatcher)

	if cfg.LLMBaseURL != "" {
		orchestrator, err := a.Orchestrator(dispatcher)
		if err != nil {
			slog.Error("Failed to initialize agent", "error", err)
			os.Exit(1)
		}
		svc.Agent = orchestrator
	} else {
		slog.Warn("LLM_BASE_URL not set, /api/agent/run is disabled")
	}

	handler := server.NewHandler(svc, a.Logger)
	handler.Metrics = a.Metrics
	handler.Gatherer = a.Registry
	handler.MCP = server.NewMCPHandler(server.NewMCPServer(svc, version))
	if a.DB != nil {
		if err := a.DB.InitSchema(ctx); err != nil {
			slog.Error("Failed to initialize schema", "error", err)
			os.Exit(1)
		}
		svc.Papers = a.Store
		handler.Pingers = []server.Pinger{a.DB}
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Mcp-Session-Id", "Mcp-Protocol-Version"},
		ExposeHeaders:    []string{"Content-Length", "Mcp-Session-Id"},
		AllowCredentials: true,
	}))
	handler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Server starting", "port", cfg.Port, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Failed to start server", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
}

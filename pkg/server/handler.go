package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mikeboe/paper-search/pkg/domain"
	"github.com/mikeboe/paper-search/pkg/logging"
	"github.com/mikeboe/paper-search/pkg/search"
	"github.com/mikeboe/paper-search/pkg/telemetry"
)

// DefaultEmbeddingLimit is the page size of /api/search/embedding.
const DefaultEmbeddingLimit = 20

const probeTimeout = 5 * time.Second

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
	Name() string
}

type Handler struct {
	Service *Service
	Logger  *slog.Logger
	Metrics *telemetry.Metrics
	// Gatherer backs /metrics; the route is omitted when nil.
	Gatherer prometheus.Gatherer
	Pingers  []Pinger
	// MCP serves /mcp; the route is omitted when nil.
	MCP http.Handler
}

func NewHandler(s *Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Service: s, Logger: logger}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.Use(h.requestLogger())

	r.GET("/health", h.health)
	r.GET("/ready", h.ready)
	if h.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.Gatherer, promhttp.HandlerOpts{})))
	}
	if h.MCP != nil {
		r.Any("/mcp", gin.WrapH(h.MCP))
	}

	api := r.Group("/api")
	{
		api.GET("/search/embedding", h.searchEmbedding)
		api.GET("/search/keyword", h.searchKeyword)
		api.GET("/page", h.getPage)

		api.GET("/papers/:id", h.getPaper)
		api.GET("/papers/:id/full", h.getFullPaper)

		api.POST("/tools/:name", h.callTool)
		api.POST("/agent/run", h.runAgent)
	}
}

// requestLogger tags each request with an id, stores a child logger in the
// request context and records the outcome.
func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := h.Logger.With(
			slog.String("request_id", uuid.NewString()),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
		)
		c.Request = c.Request.WithContext(logging.WithLogger(c.Request.Context(), log))

		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		h.Metrics.ObserveHTTP(c.Request.Method, route, strconv.Itoa(status), elapsed)
		log.Info("request", slog.Int("status", status), slog.Duration("duration", elapsed))
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type readyCheck struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (h *Handler) ready(c *gin.Context) {
	checks := []readyCheck{}
	allOK := true
	for _, p := range h.Pingers {
		ctx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
		err := p.Ping(ctx)
		cancel()

		check := readyCheck{Name: p.Name(), OK: err == nil}
		if err != nil {
			check.Error = err.Error()
			allOK = false
			logging.FromContext(c.Request.Context()).Warn("readiness probe failed",
				slog.String("dependency", p.Name()),
				slog.Any("error", err),
			)
		}
		checks = append(checks, check)
	}

	status := http.StatusOK
	if !allOK {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"ready": allOK, "checks": checks})
}

func (h *Handler) searchEmbedding(c *gin.Context) {
	query := c.Query("query")
	if query == "" {
		h.fail(c, fmt.Errorf("%w: query is required", domain.ErrInvalidInput))
		return
	}
	limit, err := positiveInt(c, "limit", DefaultEmbeddingLimit)
	if err != nil {
		h.fail(c, err)
		return
	}
	after, err := search.ParseDate(c.Query("minPublicationDate"))
	if err != nil {
		h.fail(c, err)
		return
	}

	results, err := h.Service.Search.Semantic(c.Request.Context(), query, search.SemanticOptions{
		Limit: limit,
		After: after,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": emptyIfNil(results), "totalResults": len(results)})
}

func (h *Handler) searchKeyword(c *gin.Context) {
	keyword := c.Query("keyword")
	if keyword == "" {
		h.fail(c, fmt.Errorf("%w: keyword is required", domain.ErrInvalidInput))
		return
	}

	var opts search.KeywordOptions
	var err error
	if opts.MaxPapers, err = positiveInt(c, "maxPapers", 0); err != nil {
		h.fail(c, err)
		return
	}
	if opts.MaxSnippetsPerPaper, err = positiveInt(c, "maxSnippetsPerPaper", 0); err != nil {
		h.fail(c, err)
		return
	}
	if opts.After, err = search.ParseDate(c.Query("minPublicationDate")); err != nil {
		h.fail(c, err)
		return
	}
	if opts.Before, err = search.ParseDate(c.Query("maxPublicationDate")); err != nil {
		h.fail(c, err)
		return
	}

	results, err := h.Service.Search.Keyword(c.Request.Context(), keyword, opts)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": emptyIfNil(results), "totalResults": len(results)})
}

func (h *Handler) getPage(c *gin.Context) {
	pageNumber, err := positiveInt(c, "pageNumber", 1)
	if err != nil {
		h.fail(c, err)
		return
	}

	page, err := h.Service.Search.ReadPage(c.Request.Context(), c.Query("universalId"), pageNumber)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) getPaper(c *gin.Context) {
	if h.Service.Papers == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "paper store not configured"})
		return
	}
	paper, err := h.Service.Papers.GetPaperByUniversalID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, paper)
}

func (h *Handler) getFullPaper(c *gin.Context) {
	if h.Service.Papers == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "paper store not configured"})
		return
	}
	full, err := h.Service.Papers.GetFullPaper(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, full)
}

// callTool runs one catalogue tool with the request body as its arguments
// and returns the rendered <doc> blocks.
func (h *Handler) callTool(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	content, err := h.Service.CallTool(c.Request.Context(), c.Param("name"), string(raw))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"content": content})
}

func (h *Handler) runAgent(c *gin.Context) {
	if h.Service.Agent == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "agent not configured"})
		return
	}

	var req struct {
		Query string `json:"query"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := h.Service.RunAgent(c.Request.Context(), req.Query)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// fail maps err onto a status code and writes {"error": ...}.
func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(c.Request.Context()).Error("request failed", slog.Any("error", err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrUnknownTool):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// positiveInt reads an optional positive integer query parameter.
func positiveInt(c *gin.Context, key string, def int) (int, error) {
	s := c.Query(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer, got %q", domain.ErrInvalidInput, key, s)
	}
	return n, nil
}

func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

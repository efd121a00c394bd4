package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/paper-search/pkg/agent"
	"github.com/mikeboe/paper-search/pkg/domain"
	"github.com/mikeboe/paper-search/pkg/papers"
	"github.com/mikeboe/paper-search/pkg/search"
	"github.com/mikeboe/paper-search/pkg/telemetry"
	"github.com/mikeboe/paper-search/pkg/tools"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeGateway struct {
	mu           sync.Mutex
	semanticOpts search.SemanticOptions
	keywordOpts  search.KeywordOptions
	err          error
}

func (f *fakeGateway) Semantic(_ context.Context, query string, opts search.SemanticOptions) ([]papers.EmbeddingResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.semanticOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return []papers.EmbeddingResult{{UniversalID: "2401.00001", Title: "On " + query, Abstract: "abstract", Distance: 0.12}}, nil
}

func (f *fakeGateway) Keyword(_ context.Context, query string, opts search.KeywordOptions) ([]papers.KeywordResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keywordOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	if query == "nothing" {
		return nil, nil
	}
	return []papers.KeywordResult{{
		UniversalID: "2401.00002",
		Title:       "Keyword paper",
		Occurrences: []papers.Occurrence{{PageNumber: 3, Snippet: "a " + query + " b"}},
	}}, nil
}

func (f *fakeGateway) ReadPage(_ context.Context, id string, n int) (*papers.Page, error) {
	if id == "" {
		return nil, domain.ErrInvalidInput
	}
	if id != "2401.00001" || n != 2 {
		return nil, domain.ErrNotFound
	}
	return &papers.Page{UniversalID: id, PageNumber: n, Text: "page two"}, nil
}

type fakeReader struct{}

func (fakeReader) GetPaperByUniversalID(_ context.Context, id string) (*papers.Paper, error) {
	if id != "2401.00001" {
		return nil, domain.ErrNotFound
	}
	return &papers.Paper{UniversalID: id, Title: "A paper"}, nil
}

func (fakeReader) GetFullPaper(_ context.Context, id string) (*papers.FullPaper, error) {
	if id != "2401.00001" {
		return nil, domain.ErrNotFound
	}
	return &papers.FullPaper{UniversalID: id, Title: "A paper", Pages: []papers.PageText{{PageNumber: 1, Text: "one"}}}, nil
}

type fakeAgent struct{}

func (fakeAgent) Run(_ context.Context, query string) (*agent.Session, error) {
	if query == "boom" {
		return nil, &domain.UpstreamError{Service: "chat completions", Status: 503, Body: "overloaded"}
	}
	return &agent.Session{Query: query, Turns: 2, Outcome: agent.OutcomeReported, ReportedIDs: []string{"2401.00001"}}, nil
}

type fakePinger struct {
	name string
	err  error
}

func (p fakePinger) Ping(context.Context) error { return p.err }
func (p fakePinger) Name() string               { return p.name }

func newTestRouter(gw *fakeGateway, configure func(*Handler)) *gin.Engine {
	svc := NewService(gw, fakeReader{}, fakeAgent{}, tools.NewDispatcher(gw, nil))
	h := NewHandler(svc, nil)
	if configure != nil {
		configure(h)
	}
	r := gin.New()
	h.RegisterRoutes(r)
	return r
}

func do(t *testing.T, r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := do(t, newTestRouter(&fakeGateway{}, nil), http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestReady(t *testing.T) {
	r := newTestRouter(&fakeGateway{}, func(h *Handler) {
		h.Pingers = []Pinger{fakePinger{name: "postgres"}}
	})
	w := do(t, r, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, w.Code)

	r = newTestRouter(&fakeGateway{}, func(h *Handler) {
		h.Pingers = []Pinger{fakePinger{name: "postgres", err: errors.New("connection refused")}}
	})
	w = do(t, r, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestSearchEmbedding(t *testing.T) {
	gw := &fakeGateway{}
	r := newTestRouter(gw, nil)

	w := do(t, r, http.MethodGet, "/api/search/embedding?query=graph+neural+networks&minPublicationDate=2024-01-01", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Results      []papers.EmbeddingResult `json:"results"`
		TotalResults int                      `json:"totalResults"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.TotalResults)
	assert.Equal(t, "2401.00001", body.Results[0].UniversalID)
	assert.InDelta(t, 0.12, body.Results[0].Distance, 1e-9)

	assert.Equal(t, DefaultEmbeddingLimit, gw.semanticOpts.Limit)
	require.NotNil(t, gw.semanticOpts.After)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), *gw.semanticOpts.After)
}

func TestSearchEmbedding_BadRequest(t *testing.T) {
	r := newTestRouter(&fakeGateway{}, nil)

	for _, target := range []string{
		"/api/search/embedding",
		"/api/search/embedding?query=x&limit=0",
		"/api/search/embedding?query=x&limit=abc",
		"/api/search/embedding?query=x&minPublicationDate=yesterday",
	} {
		w := do(t, r, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
		assert.Contains(t, w.Body.String(), `"error"`, target)
	}
}

func TestSearchKeyword(t *testing.T) {
	gw := &fakeGateway{}
	r := newTestRouter(gw, nil)

	w := do(t, r, http.MethodGet, "/api/search/keyword?keyword=attention&maxPapers=5&maxSnippetsPerPaper=2&maxPublicationDate=2024-06", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"paperTitle":"Keyword paper"`)
	assert.Equal(t, 5, gw.keywordOpts.MaxPapers)
	assert.Equal(t, 2, gw.keywordOpts.MaxSnippetsPerPaper)
	assert.Nil(t, gw.keywordOpts.After)
	require.NotNil(t, gw.keywordOpts.Before)
	assert.Equal(t, time.June, gw.keywordOpts.Before.Month())

	w = do(t, r, http.MethodGet, "/api/search/keyword?keyword=nothing", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"results":[],"totalResults":0}`, w.Body.String())
}

func TestGetPage(t *testing.T) {
	r := newTestRouter(&fakeGateway{}, nil)

	w := do(t, r, http.MethodGet, "/api/page?universalId=2401.00001&pageNumber=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"text":"page two"`)

	w = do(t, r, http.MethodGet, "/api/page?universalId=2401.00001&pageNumber=9", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodGet, "/api/page?pageNumber=1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpstreamErrorMapsToBadGateway(t *testing.T) {
	gw := &fakeGateway{err: &domain.UpstreamError{Service: "embeddings", Status: 500, Body: "boom"}}
	w := do(t, newTestRouter(gw, nil), http.MethodGet, "/api/search/embedding?query=x", "")

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestPapers(t *testing.T) {
	r := newTestRouter(&fakeGateway{}, nil)

	w := do(t, r, http.MethodGet, "/api/papers/2401.00001", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"title":"A paper"`)

	w = do(t, r, http.MethodGet, "/api/papers/2401.00001/full", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"pages":[{"pageNumber":1,"text":"one"}]`)

	w = do(t, r, http.MethodGet, "/api/papers/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCallTool(t *testing.T) {
	r := newTestRouter(&fakeGateway{}, nil)

	w := do(t, r, http.MethodPost, "/api/tools/search", `{"query":"transformers","limit":"3"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Content string `json:"content"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []string{"2401.00001"}, tools.DocIDs(body.Content))

	w = do(t, r, http.MethodPost, "/api/tools/read", `{"id":"2401.00001","pageNumber":2}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Page 2")

	w = do(t, r, http.MethodPost, "/api/tools/search", `{"query":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/api/tools/report_helpful_ids", `{"ids":["a"]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/api/tools/browse", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRunAgent(t *testing.T) {
	r := newTestRouter(&fakeGateway{}, nil)

	w := do(t, r, http.MethodPost, "/api/agent/run", `{"query":"papers on diffusion"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var sess agent.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sess))
	assert.Equal(t, agent.OutcomeReported, sess.Outcome)
	assert.Equal(t, []string{"2401.00001"}, sess.ReportedIDs)

	w = do(t, r, http.MethodPost, "/api/agent/run", `{"query":"  "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/api/agent/run", `{"query":"boom"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestRunAgent_NotConfigured(t *testing.T) {
	r := newTestRouter(&fakeGateway{}, func(h *Handler) { h.Service.Agent = nil })

	w := do(t, r, http.MethodPost, "/api/agent/run", `{"query":"x"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := newTestRouter(&fakeGateway{}, func(h *Handler) {
		h.Metrics = telemetry.New(reg)
		h.Gatherer = reg
	})

	do(t, r, http.MethodGet, "/health", "")
	w := do(t, r, http.MethodGet, "/metrics", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `paper_search_http_requests_total{code="200",handler="/health",method="GET"} 1`)
}

// The remote gateway must be able to talk to this server unchanged.
func TestSearchClientRoundTrip(t *testing.T) {
	gw := &fakeGateway{}
	ts := httptest.NewServer(newTestRouter(gw, nil))
	defer ts.Close()

	client, err := search.NewClient(ts.URL, nil)
	require.NoError(t, err)
	ctx := context.Background()

	after := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	sem, err := client.Semantic(ctx, "retrieval", search.SemanticOptions{Limit: 7, After: &after})
	require.NoError(t, err)
	require.Len(t, sem, 1)
	assert.Equal(t, 7, gw.semanticOpts.Limit)
	assert.Equal(t, after, *gw.semanticOpts.After)

	kw, err := client.Keyword(ctx, "attention", search.KeywordOptions{MaxPapers: 4})
	require.NoError(t, err)
	require.Len(t, kw, 1)
	assert.Equal(t, "a attention b", kw[0].Occurrences[0].Snippet)
	assert.Equal(t, 4, gw.keywordOpts.MaxPapers)

	page, err := client.ReadPage(ctx, "2401.00001", 2)
	require.NoError(t, err)
	assert.Equal(t, "page two", page.Text)

	_, err = client.ReadPage(ctx, "2401.00001", 5)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, err, domain.ErrUpstream)
}

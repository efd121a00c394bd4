package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/paper-search/pkg/domain"
	"github.com/mikeboe/paper-search/pkg/httputil"
	"github.com/mikeboe/paper-search/pkg/papers"
)

func init() {
	httputil.RetryBaseDelay = time.Millisecond
}

func TestClient_Semantic(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathSemantic, r.URL.Path)
		assert.Equal(t, "diffusion models", r.URL.Query().Get("query"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.Equal(t, "2023-01-01", r.URL.Query().Get("minPublicationDate"))

		json.NewEncoder(w).Encode(map[string]any{
			"results": []papers.EmbeddingResult{{UniversalID: "2301.1", Title: "A", Abstract: "abs", Distance: 0.2}},
		})
	}))
	defer ts.Close()

	c, err := NewClient(ts.URL, ts.Client())
	require.NoError(t, err)

	after := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	results, err := c.Semantic(context.Background(), "diffusion models", SemanticOptions{Limit: 5, After: &after})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "2301.1", results[0].UniversalID)
	assert.Equal(t, "abs", results[0].Abstract)
}

func TestClient_Keyword(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathKeyword, r.URL.Path)
		assert.Equal(t, `"exact phrase" -noise`, r.URL.Query().Get("keyword"))
		assert.Equal(t, "20", r.URL.Query().Get("maxPapers"))
		assert.Empty(t, r.URL.Query().Get("minPublicationDate"))

		w.Write([]byte(`{"results":[{"universalId":"2301.2","paperTitle":"B","occurrences":[{"pageNumber":3,"snippet":"...x..."}]}]}`))
	}))
	defer ts.Close()

	c, err := NewClient(ts.URL+"/", nil)
	require.NoError(t, err)

	results, err := c.Keyword(context.Background(), `"exact phrase" -noise`, KeywordOptions{MaxPapers: 20})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "B", results[0].Title)
	assert.Equal(t, 3, results[0].Occurrences[0].PageNumber)
}

func TestClient_ReadPage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2301.3", r.URL.Query().Get("universalId"))
		assert.Equal(t, "2", r.URL.Query().Get("pageNumber"))
		w.Write([]byte(`{"universalId":"2301.3","pageNumber":2,"text":"page two"}`))
	}))
	defer ts.Close()

	c, err := NewClient(ts.URL, ts.Client())
	require.NoError(t, err)

	page, err := c.ReadPage(context.Background(), "2301.3", 2)

	require.NoError(t, err)
	assert.Equal(t, "page two", page.Text)
}

func TestClient_UpstreamErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		notFound bool
	}{
		{"server error", http.StatusInternalServerError, false},
		{"not found", http.StatusNotFound, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"error":"nope"}`))
			}))
			defer ts.Close()

			c, err := NewClient(ts.URL, ts.Client())
			require.NoError(t, err)

			_, err = c.ReadPage(context.Background(), "x", 1)

			var upErr *domain.UpstreamError
			require.ErrorAs(t, err, &upErr)
			assert.Equal(t, tt.status, upErr.Status)
			assert.Contains(t, upErr.Body, "nope")
			assert.ErrorIs(t, err, domain.ErrUpstream)
			assert.Equal(t, tt.notFound, errors.Is(err, domain.ErrNotFound))
		})
	}
}

func TestClient_RetriesRateLimit(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"results":[]}`))
	}))
	defer ts.Close()

	c, err := NewClient(ts.URL, ts.Client())
	require.NoError(t, err)

	results, err := c.Keyword(context.Background(), "q", KeywordOptions{})

	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 2, calls)
}

func TestNewClient_RejectsRelativeURL(t *testing.T) {
	_, err := NewClient("localhost", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

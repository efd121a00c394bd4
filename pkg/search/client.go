package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mikeboe/paper-search/pkg/domain"
	"github.com/mikeboe/paper-search/pkg/httputil"
	"github.com/mikeboe/paper-search/pkg/papers"
)

const (
	PathSemantic = "/api/search/embedding"
	PathKeyword  = "/api/search/keyword"
	PathPage     = "/api/page"
)

// maxErrorBody caps how much of a failed response is kept in UpstreamError.
const maxErrorBody = 4096

// Client is a Gateway backed by the HTTP endpoints of a running server.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	MaxRetries int
}

// NewClient targets the server at baseURL. A nil httpClient gets a 60s timeout.
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse tool base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: tool base URL %q must be absolute", domain.ErrInvalidInput, baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{baseURL: u, httpClient: httpClient}, nil
}

type resultsEnvelope[T any] struct {
	Results []T `json:"results"`
}

func (c *Client) Semantic(ctx context.Context, query string, opts SemanticOptions) ([]papers.EmbeddingResult, error) {
	if opts.Limit <= 0 {
		opts.Limit = DefaultSemanticLimit
	}
	params := url.Values{}
	params.Set("query", query)
	params.Set("limit", strconv.Itoa(opts.Limit))
	if opts.After != nil {
		params.Set("minPublicationDate", FormatDate(*opts.After))
	}

	var out resultsEnvelope[papers.EmbeddingResult]
	if err := c.get(ctx, PathSemantic, params, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

func (c *Client) Keyword(ctx context.Context, query string, opts KeywordOptions) ([]papers.KeywordResult, error) {
	params := url.Values{}
	params.Set("keyword", query)
	if opts.MaxPapers > 0 {
		params.Set("maxPapers", strconv.Itoa(opts.MaxPapers))
	}
	if opts.MaxSnippetsPerPaper > 0 {
		params.Set("maxSnippetsPerPaper", strconv.Itoa(opts.MaxSnippetsPerPaper))
	}
	if opts.After != nil {
		params.Set("minPublicationDate", FormatDate(*opts.After))
	}
	if opts.Before != nil {
		params.Set("maxPublicationDate", FormatDate(*opts.Before))
	}

	var out resultsEnvelope[papers.KeywordResult]
	if err := c.get(ctx, PathKeyword, params, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

func (c *Client) ReadPage(ctx context.Context, universalID string, pageNumber int) (*papers.Page, error) {
	params := url.Values{}
	params.Set("universalId", universalID)
	params.Set("pageNumber", strconv.Itoa(pageNumber))

	var page papers.Page
	if err := c.get(ctx, PathPage, params, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL.JoinPath(path)
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, c.MaxRetries)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		upErr := &domain.UpstreamError{Service: "tool server " + path, Status: resp.StatusCode, Body: string(body)}
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %w", upErr, domain.ErrNotFound)
		}
		return upErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// Package arxiv imports paper metadata from the arXiv Atom API.
package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mikeboe/paper-search/pkg/domain"
	"github.com/mikeboe/paper-search/pkg/httputil"
	"github.com/mikeboe/paper-search/pkg/papers"
)

const (
	DefaultBaseURL    = "https://export.arxiv.org/api/query"
	DefaultMaxResults = 5
)

type entry struct {
	ID        string `xml:"id"`
	Title     string `xml:"title"`
	Summary   string `xml:"summary"`
	Published string `xml:"published"`
	Links     []link `xml:"link"`
}

type link struct {
	Href  string `xml:"href,attr"`
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr"`
}

type feed struct {
	XMLName xml.Name `xml:"feed"`
	Entries []entry  `xml:"entry"`
}

// Paper is an arXiv entry mapped onto the ingestion model plus its PDF link.
type Paper struct {
	papers.NewPaper
	PDFURL string
}

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

func NewClient(logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		BaseURL:    DefaultBaseURL,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		Logger:     logger,
	}
}

// Search runs an arXiv search_query (e.g. "all:retrieval augmented") and
// returns up to maxResults papers.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]Paper, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: arXiv query is required", domain.ErrInvalidInput)
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	params := url.Values{}
	params.Add("search_query", query)
	params.Add("max_results", strconv.Itoa(maxResults))
	params.Add("start", "0")
	apiURL := c.BaseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create arXiv request: %w", err)
	}

	c.Logger.Info("Searching arXiv", "query", query, "max_results", maxResults)
	resp, err := httputil.DoWithRetry(ctx, c.HTTPClient, req, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to make API request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &domain.UpstreamError{Service: "arXiv", Status: resp.StatusCode, Body: string(body)}
	}

	var f feed
	if err := xml.Unmarshal(body, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal XML: %w", err)
	}

	out := make([]Paper, 0, len(f.Entries))
	for _, e := range f.Entries {
		p, err := e.toPaper()
		if err != nil {
			c.Logger.Warn("Skipping arXiv entry", "id", e.ID, "error", err)
			continue
		}
		out = append(out, p)
	}
	c.Logger.Info("arXiv search finished", "query", query, "count", len(out))
	return out, nil
}

var versionSuffix = regexp.MustCompile(`v\d+$`)

// UniversalID turns "http://arxiv.org/abs/2301.12345v2" into "2301.12345".
func UniversalID(absURL string) string {
	id := absURL
	if i := strings.Index(id, "/abs/"); i >= 0 {
		id = id[i+len("/abs/"):]
	}
	return versionSuffix.ReplaceAllString(strings.TrimSpace(id), "")
}

func (e entry) toPaper() (Paper, error) {
	id := UniversalID(e.ID)
	if id == "" {
		return Paper{}, fmt.Errorf("entry has no id")
	}
	published, err := time.Parse(time.RFC3339, strings.TrimSpace(e.Published))
	if err != nil {
		return Paper{}, fmt.Errorf("invalid published date %q: %w", e.Published, err)
	}

	p := Paper{NewPaper: papers.NewPaper{
		UniversalID:     id,
		Title:           collapseSpace(e.Title),
		Abstract:        collapseSpace(e.Summary),
		PublicationDate: published,
	}}
	for _, l := range e.Links {
		if l.Type == "application/pdf" || l.Title == "pdf" {
			p.PDFURL = strings.Replace(l.Href, "http://", "https://", 1)
			break
		}
	}
	return p, nil
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

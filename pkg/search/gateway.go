// Package search is the hybrid retrieval gateway: keyword search over page
// text, semantic search over abstract embeddings, and page reads. Service
// talks to the paper store directly; Client talks to a running tool server.
package search

import (
	"context"
	"fmt"
	"time"

	"github.com/mikeboe/paper-search/pkg/domain"
	"github.com/mikeboe/paper-search/pkg/papers"
)

// Gateway is implemented by Service and Client. Implementations hold no
// per-call state and are safe for concurrent use.
type Gateway interface {
	Semantic(ctx context.Context, query string, opts SemanticOptions) ([]papers.EmbeddingResult, error)
	Keyword(ctx context.Context, query string, opts KeywordOptions) ([]papers.KeywordResult, error)
	ReadPage(ctx context.Context, universalID string, pageNumber int) (*papers.Page, error)
}

type SemanticOptions struct {
	Limit int
	After *time.Time
}

type KeywordOptions struct {
	MaxPapers           int
	MaxSnippetsPerPaper int
	After               *time.Time
	Before              *time.Time
}

const DefaultSemanticLimit = 10

const dateLayout = "2006-01-02"

var dateLayouts = []string{time.RFC3339, dateLayout, "2006-01", "2006"}

// ParseDate accepts an ISO date, a full RFC 3339 timestamp, a year-month or
// a bare year. An empty string yields nil.
func ParseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: invalid date %q", domain.ErrInvalidInput, s)
}

// FormatDate renders t the way ParseDate and the HTTP endpoints expect.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

var _ Gateway = (*Service)(nil)
var _ Gateway = (*Client)(nil)

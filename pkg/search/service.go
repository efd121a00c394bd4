package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mikeboe/paper-search/pkg/domain"
	"github.com/mikeboe/paper-search/pkg/papers"
	"github.com/mikeboe/paper-search/pkg/telemetry"
)

// PaperStore is the read side of *papers.Store.
type PaperStore interface {
	SearchByKeyword(ctx context.Context, keyword string, opts papers.KeywordOptions) ([]papers.KeywordResult, error)
	SearchByEmbedding(ctx context.Context, vec []float32, opts papers.EmbeddingOptions) ([]papers.EmbeddingResult, error)
	GetPageByUniversalIDAndNumber(ctx context.Context, universalID string, pageNumber int) (*papers.Page, error)
}

// QueryEmbedder turns a search query into a vector.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Service answers searches from the local paper store.
type Service struct {
	store    PaperStore
	embedder QueryEmbedder
	efSearch int
	metrics  *telemetry.Metrics
}

// NewService builds a gateway over store. efSearch applies to every
// semantic query issued by this service; zero uses the store default.
func NewService(store PaperStore, embedder QueryEmbedder, efSearch int, metrics *telemetry.Metrics) *Service {
	return &Service{
		store:    store,
		embedder: embedder,
		efSearch: efSearch,
		metrics:  metrics,
	}
}

func (s *Service) Semantic(ctx context.Context, query string, opts SemanticOptions) ([]papers.EmbeddingResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultSemanticLimit
	}

	start := time.Now()
	defer func() { s.metrics.ObserveSearch("semantic", time.Since(start)) }()

	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	return s.store.SearchByEmbedding(ctx, vec, papers.EmbeddingOptions{
		Limit:    opts.Limit,
		After:    opts.After,
		EfSearch: s.efSearch,
	})
}

func (s *Service) Keyword(ctx context.Context, query string, opts KeywordOptions) ([]papers.KeywordResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: keyword is required", domain.ErrInvalidInput)
	}

	start := time.Now()
	defer func() { s.metrics.ObserveSearch("keyword", time.Since(start)) }()

	return s.store.SearchByKeyword(ctx, query, papers.KeywordOptions{
		MaxPapers:           opts.MaxPapers,
		MaxSnippetsPerPaper: opts.MaxSnippetsPerPaper,
		After:               opts.After,
		Before:              opts.Before,
	})
}

func (s *Service) ReadPage(ctx context.Context, universalID string, pageNumber int) (*papers.Page, error) {
	if universalID == "" {
		return nil, fmt.Errorf("%w: universalId is required", domain.ErrInvalidInput)
	}
	if pageNumber < 1 {
		return nil, fmt.Errorf("%w: page number must be >= 1, got %d", domain.ErrInvalidInput, pageNumber)
	}

	start := time.Now()
	defer func() { s.metrics.ObserveSearch("read", time.Since(start)) }()

	return s.store.GetPageByUniversalIDAndNumber(ctx, universalID, pageNumber)
}

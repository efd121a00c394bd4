package search

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/paper-search/pkg/domain"
	"github.com/mikeboe/paper-search/pkg/papers"
)

type fakeStore struct {
	mu          sync.Mutex
	keywordOpts papers.KeywordOptions
	embedOpts   papers.EmbeddingOptions
	keywordErr  error
	page        *papers.Page
}

func (f *fakeStore) SearchByKeyword(_ context.Context, keyword string, opts papers.KeywordOptions) ([]papers.KeywordResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keywordOpts = opts
	if f.keywordErr != nil {
		return nil, f.keywordErr
	}
	return []papers.KeywordResult{{UniversalID: "2301.00001", Title: keyword}}, nil
}

func (f *fakeStore) SearchByEmbedding(_ context.Context, vec []float32, opts papers.EmbeddingOptions) ([]papers.EmbeddingResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embedOpts = opts
	return []papers.EmbeddingResult{{UniversalID: "2301.00002", Distance: float64(len(vec))}}, nil
}

func (f *fakeStore) GetPageByUniversalIDAndNumber(_ context.Context, id string, n int) (*papers.Page, error) {
	if f.page == nil {
		return nil, domain.ErrNotFound
	}
	return f.page, nil
}

type fakeEmbedder struct {
	err error
}

func (f fakeEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return make([]float32, 3072), nil
}

func TestService_Semantic(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, fakeEmbedder{}, 200, nil)
	after := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	results, err := svc.Semantic(context.Background(), "graph neural networks", SemanticOptions{After: &after})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 3072.0, results[0].Distance)
	assert.Equal(t, DefaultSemanticLimit, store.embedOpts.Limit)
	assert.Equal(t, 200, store.embedOpts.EfSearch)
	assert.Equal(t, &after, store.embedOpts.After)
}

func TestService_SemanticEmbedFailure(t *testing.T) {
	svc := NewService(&fakeStore{}, fakeEmbedder{err: errors.New("quota")}, 0, nil)

	_, err := svc.Semantic(context.Background(), "q", SemanticOptions{})

	assert.ErrorContains(t, err, "quota")
}

func TestService_RejectsEmptyQueries(t *testing.T) {
	svc := NewService(&fakeStore{}, fakeEmbedder{}, 0, nil)

	_, err := svc.Semantic(context.Background(), "  ", SemanticOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Keyword(context.Background(), "", KeywordOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.ReadPage(context.Background(), "2301.00001", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestService_KeywordPassesOptions(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, fakeEmbedder{}, 0, nil)
	before := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	results, err := svc.Keyword(context.Background(), "attention", KeywordOptions{MaxPapers: 3, MaxSnippetsPerPaper: 2, Before: &before})

	require.NoError(t, err)
	assert.Equal(t, "attention", results[0].Title)
	assert.Equal(t, 3, store.keywordOpts.MaxPapers)
	assert.Equal(t, 2, store.keywordOpts.MaxSnippetsPerPaper)
	assert.Equal(t, &before, store.keywordOpts.Before)
}

func TestService_ReadPageNotFound(t *testing.T) {
	svc := NewService(&fakeStore{}, fakeEmbedder{}, 0, nil)

	_, err := svc.ReadPage(context.Background(), "missing", 1)

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-03-15", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"2024-03-15T10:00:00Z", time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)},
		{"2024-03", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"2024", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDate(tt.in)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(*got))
		})
	}

	got, err := ParseDate("")
	assert.NoError(t, err)
	assert.Nil(t, got)

	_, err = ParseDate("last tuesday")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

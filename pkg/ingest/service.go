// Package ingest loads papers into the store: pages for full-text search
// and abstract embeddings for semantic search.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.yaml.in/yaml/v3"

	"github.com/mikeboe/paper-search/pkg/arxiv"
	"github.com/mikeboe/paper-search/pkg/domain"
	"github.com/mikeboe/paper-search/pkg/papers"
	"github.com/mikeboe/paper-search/pkg/splitter"
)

const DefaultEmbedConcurrency = 4

// Store is the write side of *papers.Store.
type Store interface {
	GetPapersByUniversalIDs(ctx context.Context, universalIDs []string) ([]papers.Paper, error)
	CreatePapersWithPages(ctx context.Context, input []papers.NewPaper) ([]papers.Paper, error)
	InsertAbstractEmbedding(ctx context.Context, paperID uuid.UUID, embedding []float32) (bool, error)
	PapersWithoutEmbeddings(ctx context.Context, limit int) ([]papers.Paper, error)
}

type DocumentEmbedder interface {
	EmbedDocument(ctx context.Context, title, text string) ([]float32, error)
}

// PageExtractor turns a PDF URL into page text. *ocr.Client implements it.
type PageExtractor interface {
	ExtractPages(ctx context.Context, documentURL string) ([]papers.PageText, error)
}

// ArxivSearcher is implemented by *arxiv.Client.
type ArxivSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]arxiv.Paper, error)
}

// Report counts what one ingestion call did.
type Report struct {
	Requested int `json:"requested"`
	Created   int `json:"created"`
	Skipped   int `json:"skipped"`
	Embedded  int `json:"embedded"`
	Failed    int `json:"embedFailures"`
}

type Service struct {
	store    Store
	embedder DocumentEmbedder
	splitter *splitter.PageSplitter

	Concurrency int
	Logger      *slog.Logger
}

func NewService(store Store, embedder DocumentEmbedder, pages *splitter.PageSplitter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:       store,
		embedder:    embedder,
		splitter:    pages,
		Concurrency: DefaultEmbedConcurrency,
		Logger:      logger,
	}
}

// Ingest stores the papers that are not in the store yet, then embeds
// their abstracts. Papers already present are counted as skipped.
func (s *Service) Ingest(ctx context.Context, input []papers.NewPaper) (Report, error) {
	report := Report{Requested: len(input)}

	fresh, err := s.filterNew(ctx, input)
	if err != nil {
		return report, err
	}
	report.Skipped = len(input) - len(fresh)
	if len(fresh) == 0 {
		s.Logger.Info("Nothing to ingest", "requested", len(input))
		return report, nil
	}

	if s.splitter != nil {
		if err := s.splitter.Fill(fresh); err != nil {
			return report, err
		}
	}

	created, err := s.store.CreatePapersWithPages(ctx, fresh)
	if err != nil {
		return report, fmt.Errorf("failed to store papers: %w", err)
	}
	report.Created = len(created)
	s.Logger.Info("Stored papers", "created", len(created), "skipped", report.Skipped)

	report.Embedded, report.Failed = s.EmbedPapers(ctx, created)
	return report, nil
}

func (s *Service) filterNew(ctx context.Context, input []papers.NewPaper) ([]papers.NewPaper, error) {
	ids := make([]string, 0, len(input))
	for i, p := range input {
		if strings.TrimSpace(p.UniversalID) == "" || strings.TrimSpace(p.Title) == "" {
			return nil, fmt.Errorf("%w: paper %d needs universalId and title", domain.ErrInvalidInput, i+1)
		}
		ids = append(ids, p.UniversalID)
	}

	existing, err := s.store.GetPapersByUniversalIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to look up existing papers: %w", err)
	}
	seen := make(map[string]bool, len(existing)+len(input))
	for _, p := range existing {
		seen[p.UniversalID] = true
	}

	fresh := make([]papers.NewPaper, 0, len(input))
	for _, p := range input {
		if seen[p.UniversalID] {
			continue
		}
		seen[p.UniversalID] = true
		fresh = append(fresh, p)
	}
	return fresh, nil
}

// EmbedPapers embeds each abstract and stores it. Failures are logged and
// counted; an embedding that already exists is not an error.
func (s *Service) EmbedPapers(ctx context.Context, list []papers.Paper) (embedded, failed int) {
	if s.embedder == nil || len(list) == 0 {
		return 0, 0
	}
	limit := s.Concurrency
	if limit <= 0 {
		limit = DefaultEmbedConcurrency
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, limit)

	for _, p := range list {
		wg.Add(1)
		go func(p papers.Paper) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			inserted, err := s.embedOne(ctx, p)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				s.Logger.Error("Failed to embed abstract", "universal_id", p.UniversalID, "error", err)
				return
			}
			if inserted {
				embedded++
			}
		}(p)
	}
	wg.Wait()

	s.Logger.Info("Embedded abstracts", "embedded", embedded, "failed", failed)
	return embedded, failed
}

func (s *Service) embedOne(ctx context.Context, p papers.Paper) (bool, error) {
	text := p.Abstract
	if strings.TrimSpace(text) == "" {
		text = p.Title
	}
	vec, err := s.embedder.EmbedDocument(ctx, p.Title, text)
	if err != nil {
		return false, err
	}
	return s.store.InsertAbstractEmbedding(ctx, p.ID, vec)
}

// EmbedMissing embeds up to limit papers that have no abstract embedding.
func (s *Service) EmbedMissing(ctx context.Context, limit int) (embedded, failed int, err error) {
	list, err := s.store.PapersWithoutEmbeddings(ctx, limit)
	if err != nil {
		return 0, 0, err
	}
	embedded, failed = s.EmbedPapers(ctx, list)
	return embedded, failed, nil
}

// ImportArxiv searches arXiv and ingests the results. With an extractor the
// PDF pages are OCRed; otherwise the abstract becomes the only page.
func (s *Service) ImportArxiv(ctx context.Context, searcher ArxivSearcher, extractor PageExtractor, query string, maxResults int) (Report, error) {
	found, err := searcher.Search(ctx, query, maxResults)
	if err != nil {
		return Report{}, fmt.Errorf("failed to search arXiv: %w", err)
	}

	input := make([]papers.NewPaper, 0, len(found))
	for _, f := range found {
		np := f.NewPaper
		if extractor != nil && f.PDFURL != "" {
			pages, err := extractor.ExtractPages(ctx, f.PDFURL)
			if err != nil {
				s.Logger.Warn("Failed to OCR paper, using abstract", "universal_id", np.UniversalID, "error", err)
			} else {
				np.Pages = pages
			}
		}
		if len(np.Pages) == 0 {
			np.Text = np.Abstract
		}
		input = append(input, np)
	}

	return s.Ingest(ctx, input)
}

// LoadPapers reads a JSON or YAML list of papers, chosen by file extension.
func LoadPapers(path string) ([]papers.NewPaper, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read papers file: %w", err)
	}

	var out []papers.NewPaper
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &out)
	default:
		err = json.Unmarshal(data, &out)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse papers file %s: %w", path, err)
	}
	return out, nil
}

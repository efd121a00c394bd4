package splitter

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/mikeboe/paper-search/pkg/papers"
)

// PageSplitter cuts raw paper text into numbered pages for full-text search.
type PageSplitter struct {
	splitter textsplitter.TextSplitter
}

// NewPageSplitter creates a recursive character splitter with the given page size.
func NewPageSplitter(pageSize, overlap int) *PageSplitter {
	ts := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(pageSize),
		textsplitter.WithChunkOverlap(overlap),
	)
	return &PageSplitter{splitter: ts}
}

// Paginate splits text into pages numbered from 1. Blank text yields no pages.
func (s *PageSplitter) Paginate(text string) ([]papers.PageText, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	chunks, err := s.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("failed to split text: %w", err)
	}

	pages := make([]papers.PageText, 0, len(chunks))
	for _, chunk := range chunks {
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		pages = append(pages, papers.PageText{PageNumber: len(pages) + 1, Text: chunk})
	}
	return pages, nil
}

// Fill paginates every paper that has raw text but no pages.
func (s *PageSplitter) Fill(input []papers.NewPaper) error {
	for i := range input {
		if len(input[i].Pages) > 0 || input[i].Text == "" {
			continue
		}
		pages, err := s.Paginate(input[i].Text)
		if err != nil {
			return fmt.Errorf("paper %s: %w", input[i].UniversalID, err)
		}
		input[i].Pages = pages
	}
	return nil
}

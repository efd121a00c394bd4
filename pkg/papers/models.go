package papers

import (
	"time"

	"github.com/google/uuid"
)

// Paper is one indexed publication. UniversalID is the external id (e.g. arXiv).
type Paper struct {
	ID              uuid.UUID `json:"id"`
	UniversalID     string    `json:"universalId"`
	Title           string    `json:"title"`
	Abstract        string    `json:"abstract"`
	PublicationDate time.Time `json:"publicationDate"`
	Votes           int       `json:"votes"`
}

// Page is one full-text searchable page of a paper.
type Page struct {
	PaperID     uuid.UUID `json:"paperId"`
	UniversalID string    `json:"universalId"`
	PageNumber  int       `json:"pageNumber"`
	Text        string    `json:"text"`
}

// FullPaper is a paper with all of its pages in page order.
type FullPaper struct {
	Title       string     `json:"title"`
	UniversalID string     `json:"universalId"`
	Pages       []PageText `json:"pages"`
}

type PageText struct {
	PageNumber int    `json:"pageNumber"`
	Text       string `json:"text"`
}

// Occurrence is one snippet of a keyword match.
type Occurrence struct {
	PageNumber int    `json:"pageNumber"`
	Snippet    string `json:"snippet"`
}

// KeywordResult groups the keyword matches of a single paper.
type KeywordResult struct {
	UniversalID     string       `json:"universalId"`
	Title           string       `json:"paperTitle"`
	Votes           int          `json:"votes"`
	PublicationDate time.Time    `json:"publicationDate"`
	Occurrences     []Occurrence `json:"occurrences"`
}

// EmbeddingResult is a paper ranked by cosine distance to a query embedding.
type EmbeddingResult struct {
	UniversalID     string    `json:"universalId"`
	Title           string    `json:"title"`
	Abstract        string    `json:"abstract"`
	PublicationDate time.Time `json:"publicationDate"`
	Votes           int       `json:"votes"`
	Distance        float64   `json:"similarityDistance"`
}

// NewPaper is the input for ingestion.
type NewPaper struct {
	Title           string     `json:"title" yaml:"title"`
	Abstract        string     `json:"abstract" yaml:"abstract"`
	UniversalID     string     `json:"universalId" yaml:"universalId"`
	PublicationDate time.Time  `json:"publicationDate" yaml:"publicationDate"`
	Votes           int        `json:"votes" yaml:"votes"`
	Pages           []PageText `json:"pages,omitempty" yaml:"pages,omitempty"`
	// Text is split into pages when Pages is empty.
	Text string `json:"text,omitempty" yaml:"text,omitempty"`
}

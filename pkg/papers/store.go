package papers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/mikeboe/paper-search/pkg/database"
	"github.com/mikeboe/paper-search/pkg/domain"
)

const (
	// DefaultEfSearch widens the HNSW candidate list well past the server default of 40.
	DefaultEfSearch       = 1000
	DefaultEmbeddingLimit = 100
	DefaultMaxPapers      = 10
	DefaultMaxSnippets    = 10
)

// DB is the part of pgx the store needs. *pgxpool.Pool and pgxmock both satisfy it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store reads and writes papers, pages and abstract embeddings.
// It holds no mutable state and is safe for concurrent use.
type Store struct {
	db DB
}

func NewStore(db DB) *Store {
	return &Store{db: db}
}

type KeywordOptions struct {
	MaxPapers           int
	MaxSnippetsPerPaper int
	After               *time.Time
	Before              *time.Time
}

type EmbeddingOptions struct {
	Limit int
	After *time.Time
	// EfSearch applies to this query only; zero means DefaultEfSearch.
	EfSearch int
}

const paperColumns = "id, universal_id, title, abstract, publication_date, votes"

func scanPaper(row pgx.Row) (Paper, error) {
	var p Paper
	err := row.Scan(&p.ID, &p.UniversalID, &p.Title, &p.Abstract, &p.PublicationDate, &p.Votes)
	return p, err
}

// GetPaperByUniversalID returns domain.ErrNotFound when no paper matches.
func (s *Store) GetPaperByUniversalID(ctx context.Context, universalID string) (*Paper, error) {
	query := "SELECT " + paperColumns + " FROM papers WHERE universal_id = $1 LIMIT 1"

	p, err := scanPaper(s.db.QueryRow(ctx, query, universalID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("paper %s: %w", universalID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get paper: %w", err)
	}
	return &p, nil
}

func (s *Store) GetPapersByUniversalIDs(ctx context.Context, universalIDs []string) ([]Paper, error) {
	if len(universalIDs) == 0 {
		return nil, nil
	}

	query := "SELECT " + paperColumns + " FROM papers WHERE universal_id = ANY($1)"
	rows, err := s.db.Query(ctx, query, universalIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get papers: %w", err)
	}
	defer rows.Close()

	var out []Paper
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan paper: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

// GetPageByUniversalIDAndNumber returns domain.ErrNotFound when the paper or page is missing.
func (s *Store) GetPageByUniversalIDAndNumber(ctx context.Context, universalID string, pageNumber int) (*Page, error) {
	query := `
		SELECT pp.paper_id, p.universal_id, pp.page_number, pp.text
		FROM paper_pages pp
		INNER JOIN papers p ON pp.paper_id = p.id
		WHERE p.universal_id = $1 AND pp.page_number = $2
		LIMIT 1
	`

	var page Page
	err := s.db.QueryRow(ctx, query, universalID, pageNumber).Scan(&page.PaperID, &page.UniversalID, &page.PageNumber, &page.Text)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("page %d of paper %s: %w", pageNumber, universalID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get page: %w", err)
	}
	return &page, nil
}

// GetFullPaper returns the paper title and every page in page order.
func (s *Store) GetFullPaper(ctx context.Context, universalID string) (*FullPaper, error) {
	paper, err := s.GetPaperByUniversalID(ctx, universalID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT page_number, text
		FROM paper_pages
		WHERE paper_id = $1
		ORDER BY page_number
	`, paper.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pages: %w", err)
	}
	defer rows.Close()

	full := &FullPaper{Title: paper.Title, UniversalID: paper.UniversalID, Pages: []PageText{}}
	for rows.Next() {
		var pt PageText
		if err := rows.Scan(&pt.PageNumber, &pt.Text); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		full.Pages = append(full.Pages, pt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return full, nil
}

// PapersWithoutEmbeddings lists papers that have no abstract embedding yet.
func (s *Store) PapersWithoutEmbeddings(ctx context.Context, limit int) ([]Paper, error) {
	query := `
		SELECT p.id, p.universal_id, p.title, p.abstract, p.publication_date, p.votes
		FROM papers p
		LEFT JOIN paper_abstract_embeddings e ON e.paper_id = p.id
		WHERE e.id IS NULL
		ORDER BY p.id
		LIMIT $1
	`
	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list papers without embeddings: %w", err)
	}
	defer rows.Close()

	var out []Paper
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan paper: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

// CreatePapersWithPages inserts papers and their pages in one transaction.
// A duplicate universal id fails the whole call with domain.ErrConflict.
func (s *Store) CreatePapersWithPages(ctx context.Context, input []NewPaper) ([]Paper, error) {
	if len(input) == 0 {
		return nil, nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	created := make([]Paper, 0, len(input))
	for _, np := range input {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("failed to generate paper id: %w", err)
		}
		p := Paper{
			ID:              id,
			UniversalID:     np.UniversalID,
			Title:           np.Title,
			Abstract:        np.Abstract,
			PublicationDate: np.PublicationDate,
			Votes:           np.Votes,
		}
		batch.Queue(`
			INSERT INTO papers (id, universal_id, title, abstract, publication_date, votes)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, p.ID, p.UniversalID, p.Title, p.Abstract, p.PublicationDate, p.Votes)

		for _, page := range np.Pages {
			pageID, err := uuid.NewV7()
			if err != nil {
				return nil, fmt.Errorf("failed to generate page id: %w", err)
			}
			batch.Queue(`
				INSERT INTO paper_pages (id, paper_id, page_number, text)
				VALUES ($1, $2, $3, $4)
			`, pageID, p.ID, page.PageNumber, page.Text)
		}
		created = append(created, p)
	}

	br := tx.SendBatch(ctx, batch)
	for range batch.Len() {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return nil, fmt.Errorf("failed to insert paper: %w", conflictErr(err))
		}
	}
	if err := br.Close(); err != nil {
		return nil, fmt.Errorf("failed to insert papers: %w", conflictErr(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit papers: %w", err)
	}
	return created, nil
}

func conflictErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", domain.ErrConflict, pgErr.Detail)
	}
	return err
}

// InsertAbstractEmbedding stores both precisions of an abstract embedding.
// An existing embedding for the paper is left untouched; inserted reports whether a row was written.
func (s *Store) InsertAbstractEmbedding(ctx context.Context, paperID uuid.UUID, embedding []float32) (inserted bool, err error) {
	if len(embedding) != database.EmbeddingDimensions {
		return false, domain.DimensionError(database.EmbeddingDimensions, len(embedding))
	}

	id, err := uuid.NewV7()
	if err != nil {
		return false, fmt.Errorf("failed to generate embedding id: %w", err)
	}

	tag, err := s.db.Exec(ctx, `
		INSERT INTO paper_abstract_embeddings (id, paper_id, abstract_embedding, abstract_embedding_half)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (paper_id) DO NOTHING
	`, id, paperID, pgvector.NewVector(embedding), pgvector.NewHalfVector(embedding))
	if err != nil {
		return false, fmt.Errorf("failed to insert embedding: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// SearchByKeyword matches pages against a web-search style query and groups
// the hits per paper. Rows are capped at MaxPapers*MaxSnippetsPerPaper, and
// once MaxPapers distinct papers are held any further paper is skipped, so
// results for papers late in the scan can be dropped.
func (s *Store) SearchByKeyword(ctx context.Context, keyword string, opts KeywordOptions) ([]KeywordResult, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, fmt.Errorf("%w: empty keyword", domain.ErrInvalidInput)
	}
	if opts.MaxPapers <= 0 {
		opts.MaxPapers = DefaultMaxPapers
	}
	if opts.MaxSnippetsPerPaper <= 0 {
		opts.MaxSnippetsPerPaper = DefaultMaxSnippets
	}

	args := []any{keyword}
	conds := []string{"to_tsvector('english', pp.text) @@ websearch_to_tsquery('english', $1)"}
	if opts.After != nil {
		args = append(args, *opts.After)
		conds = append(conds, fmt.Sprintf("p.publication_date >= $%d", len(args)))
	}
	if opts.Before != nil {
		args = append(args, *opts.Before)
		conds = append(conds, fmt.Sprintf("p.publication_date <= $%d", len(args)))
	}
	args = append(args, opts.MaxPapers*opts.MaxSnippetsPerPaper)

	query := fmt.Sprintf(`
		SELECT pp.paper_id, p.universal_id, p.title, p.votes, p.publication_date, pp.page_number, pp.text
		FROM paper_pages pp
		INNER JOIN papers p ON pp.paper_id = p.id
		WHERE %s
		LIMIT $%d
	`, strings.Join(conds, " AND "), len(args))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute keyword search: %w", err)
	}
	defer rows.Close()

	snippetKeyword := strings.Join(SnippetTerms(keyword), " ")
	index := make(map[uuid.UUID]int)
	var results []KeywordResult

	for rows.Next() {
		var (
			paperID    uuid.UUID
			r          KeywordResult
			pageNumber int
			text       string
		)
		if err := rows.Scan(&paperID, &r.UniversalID, &r.Title, &r.Votes, &r.PublicationDate, &pageNumber, &text); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		i, seen := index[paperID]
		if !seen {
			if len(results) >= opts.MaxPapers {
				continue
			}
			r.Occurrences = []Occurrence{}
			results = append(results, r)
			i = len(results) - 1
			index[paperID] = i
		}

		paper := &results[i]
		if len(paper.Occurrences) >= opts.MaxSnippetsPerPaper {
			continue
		}
		for _, snippet := range ExtractSnippets(text, snippetKeyword, DefaultSnippetWindow) {
			if len(paper.Occurrences) >= opts.MaxSnippetsPerPaper {
				break
			}
			paper.Occurrences = append(paper.Occurrences, Occurrence{PageNumber: pageNumber, Snippet: snippet})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return results, nil
}

// SearchByEmbedding ranks papers by cosine distance between their abstract
// embedding and vec. The HNSW breadth is set with SET LOCAL inside the
// query's own transaction so it never leaks to other sessions on the pool.
// The date filter runs after the nearest-neighbour scan.
func (s *Store) SearchByEmbedding(ctx context.Context, vec []float32, opts EmbeddingOptions) ([]EmbeddingResult, error) {
	if len(vec) != database.EmbeddingDimensions {
		return nil, domain.DimensionError(database.EmbeddingDimensions, len(vec))
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultEmbeddingLimit
	}
	if opts.EfSearch <= 0 {
		opts.EfSearch = DefaultEfSearch
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", opts.EfSearch)); err != nil {
		return nil, fmt.Errorf("failed to set ef_search: %w", err)
	}

	rows, err := tx.Query(ctx, `
		SELECT paper_id, abstract_embedding_half <=> $1 AS distance
		FROM paper_abstract_embeddings
		ORDER BY abstract_embedding_half <=> $1
		LIMIT $2
	`, pgvector.NewHalfVector(vec), opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute similarity search: %w", err)
	}

	var (
		order     []uuid.UUID
		ids       []string
		distances = make(map[uuid.UUID]float64)
	)
	for rows.Next() {
		var id uuid.UUID
		var distance float64
		if err := rows.Scan(&id, &distance); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		order = append(order, id)
		ids = append(ids, id.String())
		distances[id] = distance
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	if len(order) == 0 {
		return []EmbeddingResult{}, tx.Commit(ctx)
	}

	args := []any{ids}
	query := "SELECT " + paperColumns + " FROM papers WHERE id = ANY($1::uuid[])"
	if opts.After != nil {
		args = append(args, *opts.After)
		query += " AND publication_date >= $2"
	}

	meta, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load papers: %w", err)
	}
	details := make(map[uuid.UUID]Paper, len(order))
	for meta.Next() {
		p, err := scanPaper(meta)
		if err != nil {
			meta.Close()
			return nil, fmt.Errorf("failed to scan paper: %w", err)
		}
		details[p.ID] = p
	}
	meta.Close()
	if err := meta.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	results := make([]EmbeddingResult, 0, len(order))
	for _, id := range order {
		p, ok := details[id]
		if !ok {
			continue
		}
		results = append(results, EmbeddingResult{
			UniversalID:     p.UniversalID,
			Title:           p.Title,
			Abstract:        p.Abstract,
			PublicationDate: p.PublicationDate,
			Votes:           p.Votes,
			Distance:        distances[id],
		})
		if len(results) == opts.Limit {
			break
		}
	}
	return results, nil
}

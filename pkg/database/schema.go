package database

import (
	"context"
	"fmt"
)

// EmbeddingDimensions is the width of the stored abstract embeddings.
const EmbeddingDimensions = 3072

var schema = []struct {
	name  string
	query string
}{
	{"papers table", `
		CREATE TABLE IF NOT EXISTS papers (
			id UUID PRIMARY KEY,
			title TEXT NOT NULL,
			abstract TEXT NOT NULL,
			universal_id TEXT NOT NULL,
			publication_date TIMESTAMP WITH TIME ZONE NOT NULL,
			votes INTEGER NOT NULL DEFAULT 0
		)`},
	{"papers universal_id index", `
		CREATE UNIQUE INDEX IF NOT EXISTS papers_universal_id_idx ON papers (universal_id)`},
	{"paper_pages table", `
		CREATE TABLE IF NOT EXISTS paper_pages (
			id UUID PRIMARY KEY,
			paper_id UUID NOT NULL REFERENCES papers(id) ON DELETE CASCADE,
			page_number INTEGER NOT NULL,
			text TEXT NOT NULL
		)`},
	// Full-text search matches against this expression, so the index must use the same one.
	{"paper_pages text index", `
		CREATE INDEX IF NOT EXISTS paper_pages_text_gin_idx
		ON paper_pages USING gin (to_tsvector('english', text))`},
	{"paper_pages page index", `
		CREATE UNIQUE INDEX IF NOT EXISTS paper_pages_paper_id_page_number_idx
		ON paper_pages (paper_id, page_number)`},
	{"paper_abstract_embeddings table", fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS paper_abstract_embeddings (
			id UUID PRIMARY KEY,
			paper_id UUID NOT NULL REFERENCES papers(id) ON DELETE CASCADE,
			abstract_embedding vector(%d) NOT NULL,
			abstract_embedding_half halfvec(%d) NOT NULL
		)`, EmbeddingDimensions, EmbeddingDimensions)},
	{"paper_abstract_embeddings paper index", `
		CREATE UNIQUE INDEX IF NOT EXISTS paper_abstract_embeddings_paper_id_idx
		ON paper_abstract_embeddings (paper_id)`},
	// HNSW on vector is capped at 2000 dimensions; halfvec goes up to 4000.
	{"paper_abstract_embeddings hnsw index", `
		CREATE INDEX IF NOT EXISTS paper_abstract_embeddings_half_hnsw_idx
		ON paper_abstract_embeddings USING hnsw (abstract_embedding_half halfvec_cosine_ops)`},
}

// InitSchema creates the paper tables and indexes if they don't exist.
func InitSchema(ctx context.Context, db Execer) error {
	if err := EnsureVectorExtension(ctx, db); err != nil {
		return err
	}
	for _, stmt := range schema {
		if _, err := db.Exec(ctx, stmt.query); err != nil {
			return fmt.Errorf("failed to create %s: %w", stmt.name, err)
		}
	}
	return nil
}

func (db *PostgresDB) InitSchema(ctx context.Context) error {
	return InitSchema(ctx, db.Pool)
}

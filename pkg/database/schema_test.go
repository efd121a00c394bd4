package database

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitSchema(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE EXTENSION IF NOT EXISTS vector").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	for range schema {
		mock.ExpectExec("CREATE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	}

	require.NoError(t, InitSchema(context.Background(), mock))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInitSchemaStopsOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE EXTENSION").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS papers").WillReturnError(errors.New("permission denied"))

	err = InitSchema(context.Background(), mock)
	assert.ErrorContains(t, err, "failed to create papers table")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchemaHalfvecIndex(t *testing.T) {
	var found bool
	for _, stmt := range schema {
		if stmt.name == "paper_abstract_embeddings hnsw index" {
			found = true
			assert.Contains(t, stmt.query, "halfvec_cosine_ops")
		}
	}
	assert.True(t, found)
}

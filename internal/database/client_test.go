package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iskng/embed-star/internal/domain"
)

func TestRow_ToDomain_CopiesEveryField(t *testing.T) {
	now := time.Now()
	r := row{
		ID:                   "repo:1",
		FullName:             "iskng/embed-star",
		Description:          "background worker",
		Language:             "Go",
		Stars:                7,
		OwnerLogin:           "iskng",
		Embedding:            []float32{0.1, 0.2},
		EmbeddingModel:       "nomic-embed-text",
		UpdatedAt:            now,
		EmbeddingGeneratedAt: now,
	}

	got := r.toDomain()

	assert.Equal(t, domain.Repository{
		ID:                   "repo:1",
		FullName:             "iskng/embed-star",
		Description:          "background worker",
		Language:             "Go",
		Stars:                7,
		OwnerLogin:           "iskng",
		Embedding:            []float32{0.1, 0.2},
		EmbeddingModel:       "nomic-embed-text",
		UpdatedAt:            now,
		EmbeddingGeneratedAt: now,
	}, got)
}

func TestRow_ToDomain_ZeroValueRowHasEmptyEmbedding(t *testing.T) {
	var r row
	r.ID = "repo:2"

	got := r.toDomain()

	assert.Equal(t, "repo:2", got.ID)
	assert.Nil(t, got.Embedding)
}

func TestWrapQueryErr_ClassifiesAsDatabaseQueryAndRetryable(t *testing.T) {
	cause := assert.AnError
	err := wrapQueryErr(cause)

	assert.Equal(t, domain.ErrDatabaseQuery, domain.Kind(err))
	assert.True(t, domain.IsRetryable(err))

	var derr *domain.Error
	ok := errorsAs(err, &derr)
	assert.True(t, ok)
	assert.Equal(t, cause, derr.Cause)
}

func errorsAs(err error, target **domain.Error) bool {
	e, ok := err.(*domain.Error)
	if !ok {
		return false
	}
	*target = e
	return true
}

func TestDecodeStatementResults_ParsesStatusPerStatement(t *testing.T) {
	res := []map[string]any{
		{"status": "OK", "result": nil, "time": "1ms"},
		{"status": "ERR", "result": nil, "detail": "id already exists", "time": "1ms"},
	}

	stmts, err := decodeStatementResults(res)

	require.NoError(t, err)
	require.Len(t, stmts, 2)
	assert.Equal(t, "OK", stmts[0].Status)
	assert.Equal(t, "ERR", stmts[1].Status)
	assert.Equal(t, "id already exists", stmts[1].Detail)
}

func TestDecodeStatementResults_UnexpectedShapeReturnsError(t *testing.T) {
	_, err := decodeStatementResults(map[string]any{"not": "a list"})
	assert.Error(t, err)
}

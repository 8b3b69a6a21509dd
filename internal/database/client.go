package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/iskng/embed-star/internal/domain"
)

// row mirrors the subset of the repo table's schema this engine reads.
type row struct {
	ID                   string    `json:"id"`
	FullName             string    `json:"full_name"`
	Description          string    `json:"description"`
	Language             string    `json:"language"`
	Stars                int       `json:"stars"`
	OwnerLogin           string    `json:"owner_login"`
	Embedding            []float32 `json:"embedding"`
	EmbeddingModel       string    `json:"embedding_model"`
	UpdatedAt            time.Time `json:"updated_at"`
	EmbeddingGeneratedAt time.Time `json:"embedding_generated_at"`
}

func (r row) toDomain() domain.Repository {
	return domain.Repository{
		ID:                   r.ID,
		FullName:             r.FullName,
		Description:          r.Description,
		Language:             r.Language,
		Stars:                r.Stars,
		OwnerLogin:           r.OwnerLogin,
		Embedding:            r.Embedding,
		EmbeddingModel:       r.EmbeddingModel,
		UpdatedAt:            r.UpdatedAt,
		EmbeddingGeneratedAt: r.EmbeddingGeneratedAt,
	}
}

// FetchPending returns up to limit repositories needing embedding against
// model, ordered by updated_at ascending then id ascending, excluding any
// id in skip. The id tie-break makes the ordering a total order even when
// many rows share an updated_at timestamp, so repeated polls see rows in
// the same order.
func (p *Pool) FetchPending(ctx context.Context, model string, limit int, skip []string) ([]domain.Repository, error) {
	c, err := p.checkout(ctx)
	if err != nil {
		return nil, wrapQueryErr(err)
	}
	defer p.checkin(c)

	ql := `SELECT * FROM repo
		WHERE (embedding = NONE
		   OR embedding_model != $model
		   OR embedding_generated_at < updated_at)`
	vars := map[string]any{"model": model, "limit": limit}
	if len(skip) > 0 {
		ql += " AND id NOT IN $skip"
		vars["skip"] = skip
	}
	ql += " ORDER BY updated_at ASC, id ASC LIMIT $limit;"

	var rows []row
	if err := c.query(ql, vars, &rows); err != nil {
		return nil, wrapQueryErr(err)
	}

	repos := make([]domain.Repository, len(rows))
	for i, r := range rows {
		repos[i] = r.toDomain()
	}
	return repos, nil
}

// UpdateEmbedding sets the three embedding fields on a single row.
func (p *Pool) UpdateEmbedding(ctx context.Context, result domain.EmbeddingResult) error {
	c, err := p.checkout(ctx)
	if err != nil {
		return wrapQueryErr(err)
	}
	defer p.checkin(c)

	ql := `UPDATE $id MERGE { embedding: $vector, embedding_model: $model, embedding_generated_at: $ts };`
	vars := map[string]any{
		"id":     result.RepoID,
		"vector": result.Vector,
		"model":  result.Model,
		"ts":     result.GeneratedAt,
	}
	var ignored any
	if err := c.query(ql, vars, &ignored); err != nil {
		return wrapQueryErr(err)
	}
	return nil
}

// BatchUpdateEmbeddings writes every result in one round trip as N
// semicolon-joined UPDATE statements and reads back the per-statement
// status SurrealDB returns for a multi-statement query. A row whose
// statement actually failed is retried individually via UpdateEmbedding,
// rather than being silently counted as succeeded or lumped in with every
// other row in the batch. Only a failure of the round trip itself (a
// transport/connection error, not a bad statement) falls back to retrying
// every row individually.
func (p *Pool) BatchUpdateEmbeddings(ctx context.Context, results []domain.EmbeddingResult) (succeeded, failed []string) {
	if len(results) == 0 {
		return nil, nil
	}

	statuses, err := p.batchUpdateOneRoundTrip(ctx, results)
	if err != nil {
		for _, r := range results {
			if err := p.UpdateEmbedding(ctx, r); err != nil {
				failed = append(failed, r.RepoID)
				continue
			}
			succeeded = append(succeeded, r.RepoID)
		}
		return succeeded, failed
	}

	for i, r := range results {
		if statuses[i] {
			succeeded = append(succeeded, r.RepoID)
			continue
		}
		if err := p.UpdateEmbedding(ctx, r); err != nil {
			failed = append(failed, r.RepoID)
			continue
		}
		succeeded = append(succeeded, r.RepoID)
	}
	return succeeded, failed
}

// batchUpdateOneRoundTrip runs one multi-statement query and returns, per
// result in the same order, whether that row's UPDATE statement reported
// status "OK". An error here means the round trip itself failed, not that
// any individual statement did.
func (p *Pool) batchUpdateOneRoundTrip(ctx context.Context, results []domain.EmbeddingResult) ([]bool, error) {
	c, err := p.checkout(ctx)
	if err != nil {
		return nil, wrapQueryErr(err)
	}
	defer p.checkin(c)

	var stmts []string
	vars := make(map[string]any, len(results)*4)
	for i, r := range results {
		idKey := fmt.Sprintf("id%d", i)
		vecKey := fmt.Sprintf("vector%d", i)
		modelKey := fmt.Sprintf("model%d", i)
		tsKey := fmt.Sprintf("ts%d", i)
		stmts = append(stmts, fmt.Sprintf(
			"UPDATE $%s MERGE { embedding: $%s, embedding_model: $%s, embedding_generated_at: $%s }",
			idKey, vecKey, modelKey, tsKey))
		vars[idKey] = r.RepoID
		vars[vecKey] = r.Vector
		vars[modelKey] = r.Model
		vars[tsKey] = r.GeneratedAt
	}

	ql := strings.Join(stmts, ";") + ";"
	stmtResults, err := c.queryStatements(ql, vars)
	if err != nil {
		return nil, wrapQueryErr(err)
	}
	if len(stmtResults) != len(results) {
		return nil, wrapQueryErr(fmt.Errorf(
			"expected %d statement results, got %d", len(results), len(stmtResults)))
	}

	statuses := make([]bool, len(stmtResults))
	for i, s := range stmtResults {
		statuses[i] = s.Status == "OK"
	}
	return statuses, nil
}

func wrapQueryErr(err error) error {
	return domain.NewError(domain.ErrDatabaseQuery, "database query failed").
		WithRetryable(true).
		WithCause(err)
}

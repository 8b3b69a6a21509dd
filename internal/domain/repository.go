// Package domain holds the record types shared across every pipeline stage:
// the repository record read from the store, the work item that flows
// through workers, and the embedding vector produced by a provider.
package domain

import "time"

// Repository is a GitHub repository row read from the document store. Only
// the three embedding fields are ever written back by this engine.
type Repository struct {
	ID                  string
	FullName            string
	Description         string
	Language            string
	Stars               int
	OwnerLogin          string
	Embedding           []float32
	EmbeddingModel      string
	UpdatedAt           time.Time
	EmbeddingGeneratedAt time.Time
}

// NeedsEmbedding reports whether this row should be (re-)embedded against
// activeModel: absent vector, stale model, or a generation timestamp
// older than the last update.
func (r Repository) NeedsEmbedding(activeModel string) bool {
	if len(r.Embedding) == 0 {
		return true
	}
	if r.EmbeddingModel != activeModel {
		return true
	}
	return r.EmbeddingGeneratedAt.Before(r.UpdatedAt)
}

// WorkItem is the unit a worker claims: a repository id plus the canonical
// text and fingerprint computed by the transform stage.
type WorkItem struct {
	RepoID      string
	Text        string
	Fingerprint string
}

// EmbeddingResult is a successfully produced, validated vector awaiting
// batched writeback.
type EmbeddingResult struct {
	RepoID      string
	Vector      []float32
	Model       string
	GeneratedAt time.Time
}

// CacheKey identifies a cached vector by the model that produced it and the
// fingerprint of the text it was computed from.
type CacheKey struct {
	Model       string
	Fingerprint string
}

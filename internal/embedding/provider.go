// Package embedding implements the provider interface: one "compute
// embedding for text" operation backed by Ollama, OpenAI, or Together.
package embedding

import "context"

// Provider is the uniform embedding operation every backend exposes.
type Provider interface {
	// Embed computes the embedding vector for text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// Name identifies the backend for logging/metrics.
	Name() string
	// Model is the active model identifier.
	Model() string
	// Dimensions is the declared vector length for Model.
	Dimensions() int
}

// dimensionTable declares the vector length for model/provider pairs this
// engine knows about, so vector validation does not need a network round
// trip to learn the expected dimension. Unknown models fall back to the
// provider's configured default dimension.
var dimensionTable = map[string]int{
	"nomic-embed-text":        768,
	"mxbai-embed-large":       1024,
	"text-embedding-3-small":  1536,
	"text-embedding-3-large":  3072,
	"togethercomputer/m2-bert-80M-8k-retrieval": 768,
}

func dimensionFor(model string, fallback int) int {
	if d, ok := dimensionTable[model]; ok {
		return d
	}
	return fallback
}

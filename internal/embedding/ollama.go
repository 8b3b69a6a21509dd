package embedding

import (
	"context"
	"time"
)

// OllamaProvider calls a local/self-hosted Ollama instance's embeddings
// endpoint.
type OllamaProvider struct {
	*baseProvider
}

// NewOllama builds a provider against baseURL for model, declaring
// dimensions per the known-model table (falling back to 768, Ollama's
// common embedding width, when the model is not in the table).
func NewOllama(baseURL, model string, timeout int) *OllamaProvider {
	return &OllamaProvider{
		baseProvider: newBaseProvider(baseConfig{
			Name:       "ollama",
			BaseURL:    baseURL,
			Model:      model,
			Dimensions: dimensionFor(model, 768),
			Timeout:    time.Duration(timeout) * time.Second,
		}),
	}
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed posts {model, prompt} to {base}/api/embeddings and reads the
// "embedding" field.
func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	body := ollamaEmbedRequest{Model: p.model, Prompt: text}

	respBody, err := p.doRequest(ctx, "POST", "/api/embeddings", body, nil)
	if err != nil {
		return nil, err
	}

	var parsed ollamaEmbedResponse
	if err := unmarshal(respBody, &parsed); err != nil {
		return nil, err
	}
	return parsed.Embedding, nil
}

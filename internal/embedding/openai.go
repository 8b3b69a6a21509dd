package embedding

import (
	"context"
	"fmt"
	"time"
)

// OpenAIProvider calls OpenAI's embeddings endpoint.
type OpenAIProvider struct {
	*baseProvider
	apiKey string
}

func NewOpenAI(apiKey, model string, timeout int) *OpenAIProvider {
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &OpenAIProvider{
		baseProvider: newBaseProvider(baseConfig{
			Name:       "openai",
			BaseURL:    "https://api.openai.com",
			Model:      model,
			Dimensions: dimensionFor(model, 1536),
			Timeout:    time.Duration(timeout) * time.Second,
		}),
		apiKey: apiKey,
	}
}

type openAIEmbedRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed posts {model, input} with bearer auth to /v1/embeddings and reads
// data[0].embedding.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	body := openAIEmbedRequest{Input: text, Model: p.model}

	respBody, err := p.doRequest(ctx, "POST", "/v1/embeddings", body, map[string]string{
		"Authorization": "Bearer " + p.apiKey,
	})
	if err != nil {
		return nil, err
	}

	var parsed openAIEmbedResponse
	if err := unmarshal(respBody, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("embedding: openai response had no data entries")
	}
	return parsed.Data[0].Embedding, nil
}

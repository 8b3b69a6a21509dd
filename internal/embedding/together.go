package embedding

import (
	"context"
	"fmt"
	"time"
)

// TogetherProvider calls Together AI's embeddings endpoint, which shares
// OpenAI's request/response shape.
type TogetherProvider struct {
	*baseProvider
	apiKey string
}

func NewTogether(apiKey, model string, timeout int) *TogetherProvider {
	if model == "" {
		model = "togethercomputer/m2-bert-80M-8k-retrieval"
	}
	return &TogetherProvider{
		baseProvider: newBaseProvider(baseConfig{
			Name:       "together",
			BaseURL:    "https://api.together.xyz",
			Model:      model,
			Dimensions: dimensionFor(model, 768),
			Timeout:    time.Duration(timeout) * time.Second,
		}),
		apiKey: apiKey,
	}
}

type togetherEmbedRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

type togetherEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (p *TogetherProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	body := togetherEmbedRequest{Input: text, Model: p.model}

	respBody, err := p.doRequest(ctx, "POST", "/v1/embeddings", body, map[string]string{
		"Authorization": "Bearer " + p.apiKey,
	})
	if err != nil {
		return nil, err
	}

	var parsed togetherEmbedResponse
	if err := unmarshal(respBody, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("embedding: together response had no data entries")
	}
	return parsed.Data[0].Embedding, nil
}

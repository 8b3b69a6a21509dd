package embedding

import (
	"fmt"

	"github.com/iskng/embed-star/config"
)

// New dispatches to the configured backend once at startup; there is no
// need for dynamic re-selection at runtime.
func New(cfg config.ProviderConfig, timeoutSeconds int) (Provider, error) {
	switch cfg.Active {
	case config.ProviderOllama:
		return NewOllama(cfg.OllamaURL, cfg.Model, timeoutSeconds), nil
	case config.ProviderOpenAI:
		return NewOpenAI(cfg.OpenAIAPIKey, cfg.Model, timeoutSeconds), nil
	case config.ProviderTogether:
		return NewTogether(cfg.TogetherAPIKey, cfg.Model, timeoutSeconds), nil
	default:
		return nil, fmt.Errorf("embedding: unknown provider %q", cfg.Active)
	}
}

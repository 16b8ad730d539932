package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/abhisek/examgen/internal/store"
)

// NewProvider creates a Provider from configuration. Every SDK client shares
// httpClient, so whoever builds it decides which transport a request takes.
// When eventRepo is non-nil the provider is wrapped with request logging.
func NewProvider(ctx context.Context, cfg Config, httpClient *http.Client, eventRepo store.EventRepo) (Provider, error) {
	var base Provider
	var err error

	switch cfg.Provider {
	case "anthropic":
		base, err = NewAnthropicProvider(cfg.Anthropic, httpClient)
	case "openai":
		base, err = NewOpenAIProvider(cfg.OpenAI, httpClient)
	case "openrouter":
		base, err = NewOpenRouterProvider(cfg.OpenRouter, httpClient)
	case "gemini":
		base, err = NewGeminiProvider(ctx, cfg.Gemini, httpClient)
	case "ollama":
		base, err = NewOllamaProvider(cfg.Ollama, httpClient)
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	if eventRepo == nil {
		return base, nil
	}
	return WithLogging(base, cfg.Provider, eventRepo), nil
}

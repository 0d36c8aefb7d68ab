package llm

import (
	"context"
	"fmt"

	"github.com/vanmaster/vanmaster/internal/logger"
)

// NewProvider creates a Provider from configuration.
// It returns the provider wrapped with retry and logging middleware.
// The sink may be nil to disable call persistence.
func NewProvider(ctx context.Context, cfg Config, sink CallSink, log *logger.Logger) (Provider, error) {
	var base Provider
	var err error

	switch cfg.Provider {
	case "gemini":
		base, err = NewGeminiProvider(ctx, cfg.Gemini)
	case "openai":
		base, err = NewOpenAIProvider(cfg.OpenAI)
	case "anthropic":
		base, err = NewAnthropicProvider(cfg.Anthropic)
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	// Wrap with middleware: caller → retry → logging → base
	logged := WithLogging(base, cfg.Provider, sink, log)
	retried := WithRetry(logged, cfg.Retry)

	return retried, nil
}

// NewImageGen creates an image generator from configuration. Only the
// gemini provider supports image generation; mock returns a stub.
func NewImageGen(ctx context.Context, cfg Config) (ImageGenerator, error) {
	switch cfg.Provider {
	case "mock":
		return NewMockImageGenerator(), nil
	default:
		if cfg.Gemini.APIKey == "" {
			return nil, fmt.Errorf("image generation requires a Gemini API key")
		}
		return NewImagenGenerator(ctx, cfg.Gemini)
	}
}

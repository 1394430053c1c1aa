package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"pulse/config"
)

// ErrDisabled is returned by the no-op generator when no provider is configured.
var ErrDisabled = errors.New("llm: no provider configured")

// Generator is the text-generation capability the enrichment pipeline consumes.
// Implementations must be safe for concurrent use.
type Generator interface {
	Generate(ctx context.Context, prompt string, temperature float64) (string, error)
}

// Embedder turns texts into fixed-size vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// GeneratorFunc adapts a plain function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string, temperature float64) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	return f(ctx, prompt, temperature)
}

type disabled struct{}

func (disabled) Generate(context.Context, string, float64) (string, error) {
	return "", ErrDisabled
}

// Disabled returns a Generator that always fails with ErrDisabled.
func Disabled() Generator {
	return disabled{}
}

// New builds the configured generator. An empty provider yields Disabled so
// callers can run on the rule-based path alone.
func New(ctx context.Context, cfg config.LLMConfig, log zerolog.Logger) (Generator, error) {
	switch cfg.Provider {
	case "":
		log.Info().Msg("no LLM provider configured, annotations will use rules only")
		return Disabled(), nil
	case "openai":
		log.Info().Str("model", cfg.Model).Str("base_url", cfg.BaseURL).Msg("using OpenAI provider")
		return NewOpenAIClient(cfg, log), nil
	case "gemini":
		log.Info().Str("model", cfg.Model).Msg("using Gemini provider")
		return NewGeminiClient(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("unknown provider: %s (supported: openai, gemini)", cfg.Provider)
	}
}

// EmbedderOf reports whether gen can also produce embeddings.
func EmbedderOf(gen Generator) (Embedder, bool) {
	e, ok := gen.(Embedder)
	return e, ok
}

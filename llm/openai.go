package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"

	"pulse/config"
)

// EmbeddingDimensions is the vector size stored alongside feedback.
const EmbeddingDimensions = 1536

const (
	defaultOpenAIModel    = "gpt-4o-mini"
	defaultEmbeddingModel = "text-embedding-3-small"
	maxCompletionTokens   = 1000
)

// OpenAIClient talks to the OpenAI API or any compatible gateway.
type OpenAIClient struct {
	client     openai.Client
	model      string
	embedModel string
	limiter    *limiter
	log        zerolog.Logger
}

func NewOpenAIClient(cfg config.LLMConfig, log zerolog.Logger) *OpenAIClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	embedModel := cfg.EmbeddingModel
	if embedModel == "" {
		embedModel = defaultEmbeddingModel
	}

	return &OpenAIClient{
		client:     openai.NewClient(opts...),
		model:      model,
		embedModel: embedModel,
		limiter:    newLimiter(cfg.MaxConcurrent, cfg.MaxRetries, cfg.Timeout, log),
		log:        log,
	}
}

func (c *OpenAIClient) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	var text string
	err := c.limiter.do(ctx, "openai chat", func(ctx context.Context) error {
		resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model:               c.model,
			Messages:            []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
			Temperature:         openai.Float(temperature),
			MaxCompletionTokens: openai.Int(maxCompletionTokens),
		})
		if err != nil {
			return classify(err)
		}
		if len(resp.Choices) == 0 {
			return errors.New("no choices in response")
		}
		text = resp.Choices[0].Message.Content
		if strings.TrimSpace(text) == "" {
			return errors.New("empty response from model")
		}
		c.log.Debug().
			Str("model", c.model).
			Int64("prompt_tokens", resp.Usage.PromptTokens).
			Int64("completion_tokens", resp.Usage.CompletionTokens).
			Msg("chat completion finished")
		return nil
	})
	return text, err
}

func (c *OpenAIClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	err := c.limiter.do(ctx, "openai embeddings", func(ctx context.Context) error {
		resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input:      openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
			Model:      openai.EmbeddingModel(c.embedModel),
			Dimensions: openai.Int(EmbeddingDimensions),
		})
		if err != nil {
			return classify(err)
		}
		if len(resp.Data) != len(texts) {
			return fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
		}
		for _, d := range resp.Data {
			if d.Index < 0 || int(d.Index) >= len(out) {
				return fmt.Errorf("embedding index %d out of range", d.Index)
			}
			vec := make([]float32, len(d.Embedding))
			for i, v := range d.Embedding {
				vec[i] = float32(v)
			}
			out[d.Index] = vec
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// classify marks client errors that retrying cannot fix as permanent.
func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests, apiErr.StatusCode >= 500:
			return err
		case apiErr.StatusCode >= 400:
			return backoff.Permanent(err)
		}
	}
	return err
}

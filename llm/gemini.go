package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"pulse/config"
)

const (
	defaultGeminiModel          = "gemini-2.0-flash"
	defaultGeminiEmbeddingModel = "gemini-embedding-001"
)

// GeminiClient wraps the Gemini API.
type GeminiClient struct {
	client     *genai.Client
	model      string
	embedModel string
	limiter    *limiter
	log        zerolog.Logger
}

func NewGeminiClient(ctx context.Context, cfg config.LLMConfig, log zerolog.Logger) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	// OpenAI model names are the config defaults; map them to Gemini ones.
	model := cfg.Model
	if model == "" || strings.HasPrefix(model, "gpt-") {
		model = defaultGeminiModel
	}
	embedModel := cfg.EmbeddingModel
	if embedModel == "" || strings.HasPrefix(embedModel, "text-embedding-") {
		embedModel = defaultGeminiEmbeddingModel
	}

	return &GeminiClient{
		client:     client,
		model:      model,
		embedModel: embedModel,
		limiter:    newLimiter(cfg.MaxConcurrent, cfg.MaxRetries, cfg.Timeout, log),
		log:        log,
	}, nil
}

func (c *GeminiClient) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	temp := float32(temperature)
	cfg := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: maxCompletionTokens,
	}

	var text string
	err := c.limiter.do(ctx, "gemini generate", func(ctx context.Context) error {
		resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
		if err != nil {
			return fmt.Errorf("failed to generate content: %w", err)
		}
		text = resp.Text()
		if strings.TrimSpace(text) == "" {
			return errors.New("empty response from model")
		}
		return nil
	})
	return text, err
}

func (c *GeminiClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}
	dims := int32(EmbeddingDimensions)
	cfg := &genai.EmbedContentConfig{OutputDimensionality: &dims}

	var out [][]float32
	err := c.limiter.do(ctx, "gemini embed", func(ctx context.Context) error {
		resp, err := c.client.Models.EmbedContent(ctx, c.embedModel, contents, cfg)
		if err != nil {
			return fmt.Errorf("failed to generate embedding: %w", err)
		}
		if resp == nil || len(resp.Embeddings) != len(texts) {
			return errors.New("embedding count does not match input")
		}
		out = make([][]float32, len(texts))
		for i, e := range resp.Embeddings {
			if e == nil {
				return fmt.Errorf("missing embedding at %d", i)
			}
			out[i] = e.Values
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

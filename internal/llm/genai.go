// Package llm wraps the Google GenAI API behind the small Completer interface the triage client needs.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

var (
	// ErrEmptyResponse is returned when the model answers with no text.
	ErrEmptyResponse = errors.New("llm: empty response")
	// ErrMissingAPIKey is returned by NewGenAIClient for an empty key.
	ErrMissingAPIKey = errors.New("llm: GenAI API key is required")
)

// Completer is a text and vision completion backend.
type Completer interface {
	Complete(ctx context.Context, prompt string, temperature float32) (string, error)
	CompleteWithImage(ctx context.Context, prompt string, image []byte, mimeType string, temperature float32) (string, error)
}

// GenAIClient implements Completer over google.golang.org/genai.
type GenAIClient struct {
	client      *genai.Client
	model       string
	visionModel string
}

// NewGenAIClient створює клієнт. Порожній ключ є помилкою конфігурації.
func NewGenAIClient(ctx context.Context, apiKey, model, visionModel string) (*GenAIClient, error) {
	return newGenAIClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}, model, visionModel)
}

func newGenAIClient(ctx context.Context, cfg *genai.ClientConfig, model, visionModel string) (*GenAIClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	if visionModel == "" {
		visionModel = model
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIClient{client: client, model: model, visionModel: visionModel}, nil
}

func (c *GenAIClient) Complete(ctx context.Context, prompt string, temperature float32) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}
	return c.generate(ctx, c.model, contents, temperature)
}

func (c *GenAIClient) CompleteWithImage(ctx context.Context, prompt string, image []byte, mimeType string, temperature float32) (string, error) {
	parts := []*genai.Part{
		genai.NewPartFromText(prompt),
		genai.NewPartFromBytes(image, mimeType),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}
	return c.generate(ctx, c.visionModel, contents, temperature)
}

func (c *GenAIClient) generate(ctx context.Context, model string, contents []*genai.Content, temperature float32) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, model, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temperature),
	})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Package gemini implements the two-tier document classifier on Google's Gemini API.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/ai-bookkeeper/internal/application/port"
	"github.com/garyjia/ai-bookkeeper/internal/infrastructure/external/classification"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// generator is the part of *genai.Models the classifier uses
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config selects models for each tier
type Config struct {
	APIKey     string
	Tier1Model string
	Tier2Model string
}

// Classifier implements port.Classifier using Gemini. PDFs are sent inline,
// the model reads them natively.
type Classifier struct {
	models     generator
	prompts    *classification.PromptConfig
	tier1Model string
	tier2Model string
	logger     *zap.Logger
}

var _ port.Classifier = (*Classifier)(nil)

// NewClassifier creates a Gemini classifier
func NewClassifier(ctx context.Context, cfg Config, prompts *classification.PromptConfig, logger *zap.Logger) (*Classifier, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1beta"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newClassifier(client.Models, cfg, prompts, logger), nil
}

func newClassifier(models generator, cfg Config, prompts *classification.PromptConfig, logger *zap.Logger) *Classifier {
	tier2 := cfg.Tier2Model
	if tier2 == "" {
		tier2 = cfg.Tier1Model
	}
	return &Classifier{
		models:     models,
		prompts:    prompts,
		tier1Model: cfg.Tier1Model,
		tier2Model: tier2,
		logger:     logger,
	}
}

// ClassifyTier1 runs the cheap triage pass
func (c *Classifier) ClassifyTier1(ctx context.Context, content []byte, mimeType string) (*port.Tier1Result, error) {
	raw, err := c.generate(ctx, c.tier1Model, c.prompts.Tier1, content, mimeType)
	if err != nil {
		return nil, fmt.Errorf("tier1 classification: %w", err)
	}
	result, err := classification.DecodeTier1(raw)
	if err != nil {
		c.logger.Error("Failed to parse tier1 response", zap.Error(err), zap.String("content", raw))
		return nil, err
	}
	return result, nil
}

// ClassifyTier2 runs the deep extraction pass
func (c *Classifier) ClassifyTier2(ctx context.Context, content []byte, mimeType string) (*port.Tier2Result, error) {
	raw, err := c.generate(ctx, c.tier2Model, c.prompts.Tier2, content, mimeType)
	if err != nil {
		return nil, fmt.Errorf("tier2 extraction: %w", err)
	}
	result, err := classification.DecodeTier2(raw)
	if err != nil {
		c.logger.Error("Failed to parse tier2 response", zap.Error(err), zap.String("content", raw))
		return nil, err
	}
	return result, nil
}

func (c *Classifier) generate(ctx context.Context, model string, prompt classification.Prompt, content []byte, mimeType string) (string, error) {
	userText, err := prompt.RenderUser()
	if err != nil {
		return "", err
	}

	parts := []*genai.Part{{Text: userText}}
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case mimeType == "application/pdf", strings.HasPrefix(mimeType, "image/"):
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: mimeType, Data: content}})
	case strings.HasPrefix(mimeType, "text/"), mimeType == "":
		parts = append(parts, &genai.Part{Text: "Document text:\n" + string(content)})
	default:
		return "", fmt.Errorf("unsupported mime type: %s", mimeType)
	}

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(prompt.Temperature),
		ResponseMIMEType: "application/json",
	}
	if prompt.MaxTokens > 0 {
		config.MaxOutputTokens = int32(prompt.MaxTokens)
	}
	if prompt.System != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: prompt.System}}}
	}

	resp, err := c.models.GenerateContent(ctx, model, []*genai.Content{{Role: "user", Parts: parts}}, config)
	if err != nil {
		c.logger.Error("Gemini API call failed", zap.String("model", model), zap.Error(err))
		return "", fmt.Errorf("generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return rawText, nil
}

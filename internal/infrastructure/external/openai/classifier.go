// Package openai implements the two-tier document classifier on the OpenAI chat API.
package openai

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/garyjia/ai-bookkeeper/internal/application/port"
	"github.com/garyjia/ai-bookkeeper/internal/infrastructure/external/classification"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// chatCompleter is the part of *openai.Client the classifier uses
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config selects models for each tier
type Config struct {
	APIKey     string
	BaseURL    string
	Tier1Model string
	Tier2Model string
	MaxPages   int
}

// Classifier implements port.Classifier using OpenAI vision models
type Classifier struct {
	client     chatCompleter
	rasterizer PageRasterizer
	prompts    *classification.PromptConfig
	tier1Model string
	tier2Model string
	maxPages   int
	logger     *zap.Logger
}

var _ port.Classifier = (*Classifier)(nil)

// NewClassifier creates an OpenAI classifier
func NewClassifier(cfg Config, prompts *classification.PromptConfig, logger *zap.Logger) *Classifier {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return newClassifier(openai.NewClientWithConfig(clientCfg), NewFitzRasterizer(logger), cfg, prompts, logger)
}

func newClassifier(client chatCompleter, rasterizer PageRasterizer, cfg Config, prompts *classification.PromptConfig, logger *zap.Logger) *Classifier {
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	tier2 := cfg.Tier2Model
	if tier2 == "" {
		tier2 = cfg.Tier1Model
	}
	return &Classifier{
		client:     client,
		rasterizer: rasterizer,
		prompts:    prompts,
		tier1Model: cfg.Tier1Model,
		tier2Model: tier2,
		maxPages:   maxPages,
		logger:     logger,
	}
}

// ClassifyTier1 runs the cheap triage pass
func (c *Classifier) ClassifyTier1(ctx context.Context, content []byte, mimeType string) (*port.Tier1Result, error) {
	raw, err := c.complete(ctx, c.tier1Model, c.prompts.Tier1, content, mimeType)
	if err != nil {
		return nil, fmt.Errorf("tier1 classification: %w", err)
	}

	result, err := classification.DecodeTier1(raw)
	if err != nil {
		c.logger.Error("Failed to parse tier1 response", zap.Error(err), zap.String("content", raw))
		return nil, err
	}

	c.logger.Info("Tier1 classification completed",
		zap.String("category", result.Category),
		zap.String("subcategory", result.Subcategory),
		zap.Bool("needs_deep_analysis", result.NeedsDeepAnalysis))
	return result, nil
}

// ClassifyTier2 runs the deep extraction pass
func (c *Classifier) ClassifyTier2(ctx context.Context, content []byte, mimeType string) (*port.Tier2Result, error) {
	raw, err := c.complete(ctx, c.tier2Model, c.prompts.Tier2, content, mimeType)
	if err != nil {
		return nil, fmt.Errorf("tier2 extraction: %w", err)
	}

	result, err := classification.DecodeTier2(raw)
	if err != nil {
		c.logger.Error("Failed to parse tier2 response", zap.Error(err), zap.String("content", raw))
		return nil, err
	}

	c.logger.Info("Tier2 extraction completed",
		zap.String("vendor", result.VendorName),
		zap.Float64("amount", result.Amount),
		zap.String("filing_category", result.FilingCategory))
	return result, nil
}

func (c *Classifier) complete(ctx context.Context, model string, prompt classification.Prompt, content []byte, mimeType string) (string, error) {
	userText, err := prompt.RenderUser()
	if err != nil {
		return "", err
	}

	parts, err := c.contentParts(userText, content, mimeType)
	if err != nil {
		return "", err
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		MaxTokens:   prompt.MaxTokens,
		Temperature: prompt.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: prompt.System,
			},
			{
				Role:         openai.ChatMessageRoleUser,
				MultiContent: parts,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		c.logger.Error("OpenAI API call failed", zap.String("model", model), zap.Error(err))
		return "", fmt.Errorf("OpenAI API call failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI")
	}
	return resp.Choices[0].Message.Content, nil
}

// contentParts builds the user message: prompt text followed by the document
func (c *Classifier) contentParts(userText string, content []byte, mimeType string) ([]openai.ChatMessagePart, error) {
	parts := []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: userText}}

	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case mimeType == "application/pdf":
		pages, err := c.rasterizer.Rasterize(content, c.maxPages)
		if err != nil {
			return nil, err
		}
		for _, page := range pages {
			parts = append(parts, imagePart("image/jpeg", page))
		}
	case strings.HasPrefix(mimeType, "image/"):
		parts = append(parts, imagePart(mimeType, content))
	case strings.HasPrefix(mimeType, "text/"), mimeType == "":
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeText,
			Text: "Document text:\n" + string(content),
		})
	default:
		return nil, fmt.Errorf("unsupported mime type: %s", mimeType)
	}
	return parts, nil
}

func imagePart(mimeType string, data []byte) openai.ChatMessagePart {
	return openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeImageURL,
		ImageURL: &openai.ChatMessageImageURL{
			URL:    fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data)),
			Detail: openai.ImageURLDetailHigh,
		},
	}
}

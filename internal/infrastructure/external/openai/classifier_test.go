package openai

import (
	"context"
	"errors"
	"testing"

	"github.com/garyjia/ai-bookkeeper/internal/domain/entity"
	"github.com/garyjia/ai-bookkeeper/internal/infrastructure/external/classification"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCompleter struct {
	reply    string
	err      error
	requests []openai.ChatCompletionRequest
}

func (f *fakeCompleter) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: f.reply}}},
	}, nil
}

type fakeRasterizer struct {
	pages    [][]byte
	maxPages int
}

func (f *fakeRasterizer) Rasterize(content []byte, maxPages int) ([][]byte, error) {
	f.maxPages = maxPages
	return f.pages, nil
}

func newTestClassifier(t *testing.T, completer *fakeCompleter, rasterizer PageRasterizer) *Classifier {
	t.Helper()
	prompts, err := classification.LoadPrompts("")
	require.NoError(t, err)
	return newClassifier(completer, rasterizer, Config{Tier1Model: "mini", Tier2Model: "full"}, prompts, zap.NewNop())
}

func TestClassifyTier1_SendsImageAndDecodes(t *testing.T) {
	completer := &fakeCompleter{reply: `{"category":"legal","subcategory":"Legal","needs_deep_analysis":false}`}
	c := newTestClassifier(t, completer, &fakeRasterizer{})

	result, err := c.ClassifyTier1(context.Background(), []byte{0xff, 0xd8}, "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, entity.CategoryLegal, result.Category)
	assert.False(t, result.NeedsDeepAnalysis)

	require.Len(t, completer.requests, 1)
	req := completer.requests[0]
	assert.Equal(t, "mini", req.Model)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, req.ResponseFormat.Type)
	parts := req.Messages[1].MultiContent
	require.Len(t, parts, 2)
	assert.Equal(t, openai.ChatMessagePartTypeImageURL, parts[1].Type)
	assert.Contains(t, parts[1].ImageURL.URL, "data:image/jpeg;base64,")
}

func TestClassifyTier2_RasterizesPDF(t *testing.T) {
	completer := &fakeCompleter{reply: "```json\n{\"vendorName\":\"Acme Power\",\"amount\":\"$125.40\",\"date\":\"2026-02-03\",\"filingCategory\":\"Utility Invoices\"}\n```"}
	rasterizer := &fakeRasterizer{pages: [][]byte{{1}, {2}}}
	c := newTestClassifier(t, completer, rasterizer)

	result, err := c.ClassifyTier2(context.Background(), []byte("%PDF-1.4"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "Acme Power", result.VendorName)
	assert.Equal(t, 125.40, result.Amount)
	assert.Equal(t, entity.FilingUtilityInvoices, result.FilingCategory)

	assert.Equal(t, DefaultMaxPages, rasterizer.maxPages)
	req := completer.requests[0]
	assert.Equal(t, "full", req.Model)
	assert.Len(t, req.Messages[1].MultiContent, 3)
}

func TestClassify_Errors(t *testing.T) {
	c := newTestClassifier(t, &fakeCompleter{err: errors.New("rate limited")}, &fakeRasterizer{})
	_, err := c.ClassifyTier1(context.Background(), []byte("hello"), "text/plain")
	assert.Error(t, err)

	c = newTestClassifier(t, &fakeCompleter{reply: "not json at all"}, &fakeRasterizer{})
	_, err = c.ClassifyTier2(context.Background(), []byte("hello"), "text/plain")
	assert.Error(t, err)

	c = newTestClassifier(t, &fakeCompleter{reply: "{}"}, &fakeRasterizer{})
	_, err = c.ClassifyTier1(context.Background(), []byte("PK"), "application/zip")
	assert.Error(t, err)
}

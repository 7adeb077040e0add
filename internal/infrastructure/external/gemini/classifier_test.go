package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/garyjia/ai-bookkeeper/internal/domain/entity"
	"github.com/garyjia/ai-bookkeeper/internal/infrastructure/external/classification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

type fakeGenerator struct {
	reply    string
	err      error
	models   []string
	contents [][]*genai.Content
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.models = append(f.models, model)
	f.contents = append(f.contents, contents)
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: f.reply}}},
		}},
	}, nil
}

func newTestClassifier(t *testing.T, gen *fakeGenerator) *Classifier {
	t.Helper()
	prompts, err := classification.LoadPrompts("")
	require.NoError(t, err)
	return newClassifier(gen, Config{Tier1Model: "flash"}, prompts, zap.NewNop())
}

func TestClassifyTier2_SendsPDFInline(t *testing.T) {
	gen := &fakeGenerator{reply: `{"vendorName":"Verde Farms","amount":2500,"date":"2026-01-10","filingCategory":"Inventory Invoices"}`}
	c := newTestClassifier(t, gen)

	result, err := c.ClassifyTier2(context.Background(), []byte("%PDF"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "Verde Farms", result.VendorName)
	assert.Equal(t, entity.FilingInventory, result.FilingCategory)

	assert.Equal(t, []string{"flash"}, gen.models)
	parts := gen.contents[0][0].Parts
	require.Len(t, parts, 2)
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, "application/pdf", parts[1].InlineData.MIMEType)
}

func TestClassifyTier1_Errors(t *testing.T) {
	c := newTestClassifier(t, &fakeGenerator{err: errors.New("quota")})
	_, err := c.ClassifyTier1(context.Background(), []byte("x"), "image/png")
	assert.Error(t, err)

	c = newTestClassifier(t, &fakeGenerator{reply: ""})
	_, err = c.ClassifyTier1(context.Background(), []byte("x"), "image/png")
	assert.Error(t, err)

	c = newTestClassifier(t, &fakeGenerator{reply: `{"category":"government","subcategory":"Tax Documents"}`})
	result, err := c.ClassifyTier1(context.Background(), []byte("x"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, entity.CategoryGovernment, result.Category)
}

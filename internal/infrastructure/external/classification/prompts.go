// Package classification holds the prompt catalog and response decoding shared
// by the model-backed document classifiers.
package classification

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"text/template"

	"github.com/garyjia/ai-bookkeeper/internal/domain/entity"
	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// Prompt is one tier's prompt and sampling parameters
type Prompt struct {
	Temperature  float32 `yaml:"temperature"`
	MaxTokens    int     `yaml:"max_tokens"`
	System       string  `yaml:"system"`
	UserTemplate string  `yaml:"user_template"`
}

// PromptConfig holds the prompts for both classification tiers
type PromptConfig struct {
	Tier1 Prompt `yaml:"tier1"`
	Tier2 Prompt `yaml:"tier2"`
}

// LoadPrompts loads prompt configuration from a YAML file.
// An empty path returns the built-in prompts.
func LoadPrompts(promptsPath string) (*PromptConfig, error) {
	if promptsPath == "" {
		return ParsePrompts(defaultPrompts)
	}

	data, err := os.ReadFile(promptsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}
	return ParsePrompts(data)
}

// ParsePrompts parses a YAML prompt catalog
func ParsePrompts(data []byte) (*PromptConfig, error) {
	var prompts PromptConfig
	if err := yaml.Unmarshal(data, &prompts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prompts: %w", err)
	}
	if prompts.Tier1.UserTemplate == "" || prompts.Tier2.UserTemplate == "" {
		return nil, fmt.Errorf("prompts must define tier1 and tier2 user_template")
	}
	return &prompts, nil
}

type promptData struct {
	Categories       []string
	FilingCategories []string
}

// RenderUser renders the prompt's user template with the category allow-lists
func (p Prompt) RenderUser() (string, error) {
	return renderTemplate(p.UserTemplate, promptData{
		Categories: []string{
			entity.CategoryFinancialActionable,
			entity.CategoryFinancialReference,
			entity.CategoryLegal,
			entity.CategoryGovernment,
			entity.CategoryPersonal,
			entity.CategoryUnknown,
		},
		FilingCategories: entity.AllowedFilingCategories,
	})
}

// renderTemplate renders a template with provided data
func renderTemplate(templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New("prompt").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

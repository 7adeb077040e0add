package classification

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/garyjia/ai-bookkeeper/internal/application/port"
	"github.com/garyjia/ai-bookkeeper/internal/domain/entity"
)

var tier1Categories = map[string]bool{
	entity.CategoryFinancialActionable: true,
	entity.CategoryFinancialReference:  true,
	entity.CategoryLegal:               true,
	entity.CategoryGovernment:          true,
	entity.CategoryPersonal:            true,
	entity.CategoryUnknown:             true,
}

// flexAmount accepts 12.5, "12.50" and "$1,250.00"
type flexAmount float64

func (a *flexAmount) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == `""` {
		*a = 0
		return nil
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %s", string(b))
	}
	*a = flexAmount(f)
	return nil
}

type tier2Payload struct {
	VendorName     string     `json:"vendorName"`
	Amount         flexAmount `json:"amount"`
	Date           string     `json:"date"`
	Description    string     `json:"description"`
	FilingCategory string     `json:"filingCategory"`
	Confidence     float64    `json:"confidence"`
}

// DecodeTier1 parses a triage answer. Categories outside the allow-list become unknown.
func DecodeTier1(raw string) (*port.Tier1Result, error) {
	var result port.Tier1Result
	if err := decodeObject(raw, &result); err != nil {
		return nil, err
	}

	result.Category = strings.ToLower(strings.TrimSpace(result.Category))
	if !tier1Categories[result.Category] {
		result.Category = entity.CategoryUnknown
	}
	result.Subcategory = strings.TrimSpace(result.Subcategory)
	if result.Subcategory == "" {
		result.Subcategory = entity.FilingAdministrative
	}
	result.Confidence = clamp01(result.Confidence)
	return &result, nil
}

// DecodeTier2 parses an extraction answer. Filing categories outside the
// allow-list fall back to Administrative.
func DecodeTier2(raw string) (*port.Tier2Result, error) {
	var payload tier2Payload
	if err := decodeObject(raw, &payload); err != nil {
		return nil, err
	}

	result := &port.Tier2Result{
		VendorName:     strings.TrimSpace(payload.VendorName),
		Amount:         float64(payload.Amount),
		Date:           normalizeDate(payload.Date),
		Description:    strings.TrimSpace(payload.Description),
		FilingCategory: strings.TrimSpace(payload.FilingCategory),
		Confidence:     clamp01(payload.Confidence),
	}
	if !entity.IsAllowedFilingCategory(result.FilingCategory) {
		result.FilingCategory = entity.FilingAdministrative
	}
	return result, nil
}

// CleanJSON strips markdown code fences a model may wrap around its answer
func CleanJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(s, "```json")
			s = strings.TrimPrefix(s, "```")
		}
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

func decodeObject(raw string, v interface{}) error {
	clean := CleanJSON(raw)
	if clean == "" {
		return fmt.Errorf("empty response from model")
	}
	if err := json.Unmarshal([]byte(clean), v); err == nil {
		return nil
	}

	// Fallback: the first balanced object in the text
	if obj := extractJSON(clean); obj != "" {
		if err := json.Unmarshal([]byte(obj), v); err == nil {
			return nil
		}
	}
	return fmt.Errorf("failed to parse model response: %.200s", raw)
}

// extractJSON returns the first balanced {...} object in content
func extractJSON(content string) string {
	start := strings.IndexByte(content, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escapeNext := false
	for i := start; i < len(content); i++ {
		c := content[i]
		if escapeNext {
			escapeNext = false
			continue
		}
		switch {
		case c == '\\':
			escapeNext = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}
	return ""
}

func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 10 && s[4] == '-' && s[7] == '-' {
		return s[:10]
	}
	return s
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

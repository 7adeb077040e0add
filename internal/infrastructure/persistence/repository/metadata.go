package repository

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/garyjia/ai-bookkeeper/internal/domain/entity"
)

// Metadata versions stored in documents.metadata_version.
//
// Version 1 rows hold whatever shape the classifier of the day produced:
// vendor under "extracted_data.vendorName", "vendorName", "vendor" or
// "data.vendorName"; amount under "extracted_data.totalAmount",
// "totalAmount", "amount" or "data.amount"; date under
// "extracted_data.invoiceDate", "invoiceDate", "date" or "data.date".
// Version 2 rows hold entity.ExtractedFields verbatim.
const (
	metadataVersionLegacy = 1
)

var (
	vendorKeys      = [][]string{{"extracted_data", "vendorName"}, {"vendorName"}, {"vendor"}, {"data", "vendorName"}}
	amountKeys      = [][]string{{"extracted_data", "totalAmount"}, {"totalAmount"}, {"amount"}, {"data", "amount"}}
	dateKeys        = [][]string{{"extracted_data", "invoiceDate"}, {"invoiceDate"}, {"date"}, {"data", "date"}}
	descriptionKeys = [][]string{{"description"}, {"data", "description"}, {"summary"}}
)

// encodeExtracted serializes fields in the current canonical shape
func encodeExtracted(fields entity.ExtractedFields) (string, error) {
	b, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("failed to marshal extracted fields: %w", err)
	}
	return string(b), nil
}

// decodeExtracted reads a stored extracted_data column of the given version
func decodeExtracted(raw string, version int) (entity.ExtractedFields, error) {
	if strings.TrimSpace(raw) == "" {
		return entity.ExtractedFields{}, nil
	}
	if version >= entity.ExtractedFieldsVersion {
		var fields entity.ExtractedFields
		if err := json.Unmarshal([]byte(raw), &fields); err != nil {
			return entity.ExtractedFields{}, fmt.Errorf("failed to unmarshal extracted fields: %w", err)
		}
		return fields, nil
	}

	var legacy map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &legacy); err != nil {
		return entity.ExtractedFields{}, fmt.Errorf("failed to unmarshal legacy metadata: %w", err)
	}
	return NormalizeLegacyMetadata(legacy), nil
}

// NormalizeLegacyMetadata maps a loosely-typed metadata object onto the
// canonical record, trying each historical key in order.
func NormalizeLegacyMetadata(m map[string]interface{}) entity.ExtractedFields {
	fields := entity.ExtractedFields{
		VendorName:     firstString(m, vendorKeys),
		Amount:         firstNumber(m, amountKeys),
		Date:           firstString(m, dateKeys),
		Description:    firstString(m, descriptionKeys),
		FilingCategory: firstString(m, [][]string{{"filingCategory"}}),
		SuggestedPath:  firstString(m, [][]string{{"suggestedPath"}}),
	}

	if v, ok := lookup(m, []string{"isFinancial"}).(bool); ok {
		fields.IsFinancial = v
	}
	if d, ok := entity.ParseDestination(firstString(m, [][]string{{"suggestedDestination"}})); ok {
		fields.SuggestedDestination = d
	}
	if fields.Date != "" && len(fields.Date) > 10 {
		// ISO timestamps are truncated to the calendar date
		fields.Date = fields.Date[:10]
	}

	return fields
}

func lookup(m map[string]interface{}, path []string) interface{} {
	var cur interface{} = m
	for _, key := range path {
		obj, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		cur = obj[key]
	}
	return cur
}

func firstString(m map[string]interface{}, paths [][]string) string {
	for _, p := range paths {
		if s, ok := lookup(m, p).(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func firstNumber(m map[string]interface{}, paths [][]string) float64 {
	for _, p := range paths {
		switch v := lookup(m, p).(type) {
		case float64:
			return v
		case string:
			cleaned := strings.NewReplacer("$", "", ",", "").Replace(strings.TrimSpace(v))
			if f, err := strconv.ParseFloat(cleaned, 64); err == nil {
				return f
			}
		}
	}
	return 0
}

func encodeMetadata(m map[string]interface{}) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return string(b), nil
}

func decodeMetadata(raw string) (map[string]interface{}, error) {
	if strings.TrimSpace(raw) == "" || raw == "{}" {
		return nil, nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return m, nil
}

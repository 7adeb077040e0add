package entity

import (
	"strconv"
	"strings"
	"time"
)

// ExtractedFieldsVersion is the current canonical metadata version
const ExtractedFieldsVersion = 2

// ExtractedFields is the canonical structured prediction for a document
type ExtractedFields struct {
	VendorName           string      `json:"vendorName"`
	Amount               float64     `json:"amount"`
	Date                 string      `json:"date,omitempty"` // YYYY-MM-DD
	Description          string      `json:"description"`
	FilingCategory       string      `json:"filingCategory,omitempty"`
	IsFinancial          bool        `json:"isFinancial"`
	SuggestedPath        string      `json:"suggestedPath"`
	SuggestedDestination Destination `json:"suggestedDestination"`
}

// Year returns the year of the extracted date, or fallback's year when the
// date is missing or malformed.
func (f ExtractedFields) Year(fallback time.Time) int {
	if t, err := time.Parse("2006-01-02", strings.TrimSpace(f.Date)); err == nil {
		return t.Year()
	}
	if len(f.Date) >= 4 {
		if y, err := strconv.Atoi(f.Date[:4]); err == nil && y > 1900 {
			return y
		}
	}
	return fallback.Year()
}

// Document is an uploaded file moving through intake, review and approval
type Document struct {
	ID            string                 `json:"id"`
	FileRef       string                 `json:"file_ref"`
	FileName      string                 `json:"file_name"`
	MimeType      string                 `json:"mime_type"`
	Source        DocumentSource         `json:"source"`
	Status        DocumentStatus         `json:"status"`
	Category      string                 `json:"category"`
	Tier1Category string                 `json:"tier1_category"`
	Subcategory   string                 `json:"subcategory"`
	Summary       string                 `json:"summary,omitempty"`
	Extracted     ExtractedFields        `json:"extracted"`
	Confidence    float64                `json:"confidence"`
	IsDuplicate   bool                   `json:"is_duplicate"`
	DuplicateOfID *string                `json:"duplicate_of_id,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	LastError     string                 `json:"last_error,omitempty"`
	ClaimedUntil  *time.Time             `json:"-"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
	ProcessedAt   *time.Time             `json:"processed_at,omitempty"`
}

// IsPending reports whether the document is waiting for a reviewer
func (d *Document) IsPending() bool {
	return d.Status == DocumentStatusNeedsReview
}

// IsClaimed reports whether an approval currently holds the document
func (d *Document) IsClaimed(now time.Time) bool {
	return d.ClaimedUntil != nil && d.ClaimedUntil.After(now)
}

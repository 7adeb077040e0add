package port

import (
	"context"

	"github.com/garyjia/ai-bookkeeper/internal/domain/entity"
)

// Tier1Result is the cheap triage answer
type Tier1Result struct {
	Category          string  `json:"category"`
	Subcategory       string  `json:"subcategory"`
	NeedsDeepAnalysis bool    `json:"needs_deep_analysis"`
	Confidence        float64 `json:"confidence,omitempty"`
}

// Tier2Result is the deep extraction answer
type Tier2Result struct {
	VendorName     string  `json:"vendorName"`
	Amount         float64 `json:"amount"`
	Date           string  `json:"date"`
	Description    string  `json:"description"`
	FilingCategory string  `json:"filingCategory"`
	Confidence     float64 `json:"confidence,omitempty"`
}

// Classifier is the two-tier document classification service
type Classifier interface {
	ClassifyTier1(ctx context.Context, content []byte, mimeType string) (*Tier1Result, error)
	ClassifyTier2(ctx context.Context, content []byte, mimeType string) (*Tier2Result, error)
}

// VendorRef identifies a vendor in the accounting system
type VendorRef struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// BillLineItem is one expense line of a bill
type BillLineItem struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
}

// BillRequest describes a bill to create
type BillRequest struct {
	Vendor    VendorRef      `json:"vendor"`
	DueDate   string         `json:"due_date"`
	LineItems []BillLineItem `json:"line_items"`
}

// Bill is a bill as returned by the accounting system
type Bill struct {
	ID         string  `json:"id"`
	TxnDate    string  `json:"txn_date"`
	DueDate    string  `json:"due_date,omitempty"`
	TotalAmt   float64 `json:"total_amt"`
	VendorName string  `json:"vendor_name"`
}

// AccountingSystem is the system of record for vendors and bills.
// Vendor find-or-create must be safe to call concurrently for the same name.
type AccountingSystem interface {
	FindOrCreateVendor(ctx context.Context, displayName string) (*VendorRef, error)
	CreateBill(ctx context.Context, req BillRequest) (*Bill, error)
	ListBills(ctx context.Context, realmID string) ([]Bill, error)
}

// ReviewNotifier tells reviewers that a document is waiting for them
type ReviewNotifier interface {
	NotifyPendingReview(ctx context.Context, doc *entity.Document) error
}

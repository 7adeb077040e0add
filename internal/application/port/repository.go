package port

import (
	"context"
	"errors"
	"time"

	"github.com/garyjia/ai-bookkeeper/internal/domain/entity"
)

var (
	// ErrRecordNotFound is returned by updates addressed to a missing row
	ErrRecordNotFound = errors.New("record not found")

	// ErrStaleStatus is returned when a conditional update finds the row in
	// a different status than expected
	ErrStaleStatus = errors.New("record status changed concurrently")

	// ErrDuplicateRecord is returned when an insert collides with an existing key
	ErrDuplicateRecord = errors.New("record already exists")
)

// DocumentPatch lists the document columns an update touches.
// Nil fields are left unchanged.
type DocumentPatch struct {
	Status      *entity.DocumentStatus
	Category    *string
	FileRef     *string
	Extracted   *entity.ExtractedFields
	Metadata    map[string]interface{}
	ProcessedAt *time.Time
	LastError   *string

	// ReleaseClaim clears the approval lease
	ReleaseClaim bool

	// ExpectedStatus makes the update conditional on the current status
	ExpectedStatus *entity.DocumentStatus
}

// DocumentRepository defines persistence operations for Document
type DocumentRepository interface {
	// Insert assigns an ID and timestamps when missing and stores the document
	Insert(ctx context.Context, doc *entity.Document) error

	// GetByID returns nil, nil when the document does not exist
	GetByID(ctx context.Context, id string) (*entity.Document, error)

	// UpdateByID applies patch; ErrRecordNotFound when id is unknown,
	// ErrStaleStatus when ExpectedStatus does not match
	UpdateByID(ctx context.Context, id string, patch DocumentPatch) error

	// ClaimForApproval takes the approval lease on a needs_review document
	// whose lease is free or expired. Returns false when someone else holds it
	// or the document left needs_review.
	ClaimForApproval(ctx context.Context, id string, now, until time.Time) (bool, error)

	// QueryByStatus returns documents in status, newest first
	QueryByStatus(ctx context.Context, status entity.DocumentStatus, limit int) ([]*entity.Document, error)

	// QueryByVendorAndAmountSince returns documents with an exact vendor and
	// amount match created at or after since, newest first
	QueryByVendorAndAmountSince(ctx context.Context, vendor string, amount float64, since time.Time) ([]*entity.Document, error)
}

// TransactionRepository defines persistence operations for Transaction
type TransactionRepository interface {
	// Upsert inserts or updates by (source, external_id)
	Upsert(ctx context.Context, tx *entity.Transaction) error

	// ListByRealmAndSource returns every transaction of one source in a realm
	ListByRealmAndSource(ctx context.Context, realmID string, source entity.TransactionSource) ([]*entity.Transaction, error)

	// CountBySource counts rows of one source in a realm
	CountBySource(ctx context.Context, realmID string, source entity.TransactionSource) (int, error)
}

// TransactionManager manages database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

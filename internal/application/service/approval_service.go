package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/ai-bookkeeper/internal/application/port"
	"github.com/garyjia/ai-bookkeeper/internal/domain/entity"
	"github.com/garyjia/ai-bookkeeper/internal/domain/workflow"
	"github.com/garyjia/ai-bookkeeper/pkg/utils"
)

// DefaultApprovalLease bounds how long one approval may hold a document
const DefaultApprovalLease = 2 * time.Minute

// ApproveRequest is a reviewer's decision to commit a staged document
type ApproveRequest struct {
	DocumentID  string
	Destination entity.Destination
	// Metadata holds the reviewer-confirmed fields; nil keeps the stored ones
	Metadata   *entity.ExtractedFields
	TargetPath string
}

// ApproveResult reports what the approval committed
type ApproveResult struct {
	Document      *entity.Document `json:"document"`
	CreatedBillID *string          `json:"created_bill_id"`
	FinalPath     string           `json:"final_path"`
	FileMoveError string           `json:"file_move_error,omitempty"`
}

// ApprovalService commits or rejects documents waiting for review
type ApprovalService interface {
	Approve(ctx context.Context, req ApproveRequest) (*ApproveResult, error)
	Reject(ctx context.Context, documentID string) (*entity.Document, error)
}

type approvalServiceImpl struct {
	docRepo    port.DocumentRepository
	accounting port.AccountingSystem
	files      port.FileRepository
	lease      time.Duration
	now        func() time.Time
	logger     Logger
}

// NewApprovalService creates a new ApprovalService
func NewApprovalService(
	docRepo port.DocumentRepository,
	accounting port.AccountingSystem,
	files port.FileRepository,
	lease time.Duration,
	logger Logger,
) ApprovalService {
	if lease <= 0 {
		lease = DefaultApprovalLease
	}
	return &approvalServiceImpl{
		docRepo:    docRepo,
		accounting: accounting,
		files:      files,
		lease:      lease,
		now:        time.Now,
		logger:     logger,
	}
}

// Approve runs accounting write, file move and status update strictly in that order
func (s *approvalServiceImpl) Approve(ctx context.Context, req ApproveRequest) (*ApproveResult, error) {
	if req.DocumentID == "" {
		return nil, fmt.Errorf("%w: documentId is required", ErrInvalidRequest)
	}

	doc, err := s.load(ctx, req.DocumentID, workflow.TriggerApprove)
	if err != nil {
		return nil, err
	}

	fields := doc.Extracted
	if req.Metadata != nil {
		fields = *req.Metadata
	}
	if err := utils.ValidateAmount(fields.Amount); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	requested := req.Destination
	if requested == "" {
		requested = fields.SuggestedDestination
	}
	destination, ok := entity.ParseDestination(string(requested))
	if !ok {
		return nil, fmt.Errorf("%w: unknown destination %q", ErrInvalidRequest, requested)
	}

	now := s.now().UTC()
	claimed, err := s.docRepo.ClaimForApproval(ctx, doc.ID, now, now.Add(s.lease))
	if err != nil {
		return nil, fmt.Errorf("claim document: %w", err)
	}
	if !claimed {
		return nil, fmt.Errorf("%w: document %s is being approved by another request", ErrConflict, doc.ID)
	}

	// Step 1: accounting write. Failure leaves the document in review.
	var billID *string
	if destination == entity.DestinationAccountingSystem && fields.Amount > 0 {
		bill, err := s.createBill(ctx, doc, fields, now)
		if err != nil {
			s.logger.Error("Accounting write failed, document remains in review", "id", doc.ID, "error", err)
			s.releaseWithError(ctx, doc.ID, err)
			return nil, &AccountingWriteError{DocumentID: doc.ID, Err: err}
		}
		billID = &bill.ID
	}

	// Step 2: file move. Best-effort.
	target := utils.SanitizePath(req.TargetPath)
	if target == "" {
		target = entity.FolderDefault
	}
	finalPath := utils.JoinPath(entity.FolderAllFiles, target)

	result := &ApproveResult{CreatedBillID: billID, FinalPath: finalPath}
	fileRef := doc.FileRef
	if newRef, err := s.files.MovePath(ctx, doc.FileRef, finalPath); err != nil {
		s.logger.Warn("Failed to move approved document, continuing", "id", doc.ID, "target", finalPath, "error", err)
		result.FileMoveError = err.Error()
	} else if newRef != "" {
		fileRef = newRef
	}

	// Step 3: status update, conditional on the document still being in review
	metadata := mergeMetadata(doc.Metadata, map[string]interface{}{
		"destination":   string(destination),
		"createdBillId": billID,
		"finalPath":     finalPath,
	})
	processed := entity.DocumentStatusProcessed
	expected := entity.DocumentStatusNeedsReview
	noError := ""
	processedAt := s.now().UTC()
	err = s.docRepo.UpdateByID(ctx, doc.ID, port.DocumentPatch{
		Status:         &processed,
		Category:       &target,
		FileRef:        &fileRef,
		Extracted:      &fields,
		Metadata:       metadata,
		ProcessedAt:    &processedAt,
		LastError:      &noError,
		ReleaseClaim:   true,
		ExpectedStatus: &expected,
	})
	if err != nil {
		s.logger.Error("Failed to mark document processed after commit, manual reconciliation required",
			"id", doc.ID,
			"bill_id", billID,
			"final_path", finalPath,
			"error", err)
		if errors.Is(err, port.ErrStaleStatus) {
			return nil, fmt.Errorf("%w: document %s changed during approval", ErrConflict, doc.ID)
		}
		return nil, fmt.Errorf("update document after approval: %w", err)
	}

	doc.Status = processed
	doc.Category = target
	doc.FileRef = fileRef
	doc.Extracted = fields
	doc.Metadata = metadata
	doc.ProcessedAt = &processedAt
	doc.LastError = ""
	doc.ClaimedUntil = nil
	result.Document = doc

	s.logger.Info("Document approved",
		"id", doc.ID,
		"destination", destination,
		"bill_id", billID,
		"final_path", finalPath)
	return result, nil
}

func (s *approvalServiceImpl) createBill(ctx context.Context, doc *entity.Document, fields entity.ExtractedFields, now time.Time) (*port.Bill, error) {
	vendorName := fields.VendorName
	if vendorName == "" {
		vendorName = unknownVendor
	}

	vendor, err := s.accounting.FindOrCreateVendor(ctx, vendorName)
	if err != nil {
		return nil, fmt.Errorf("find or create vendor %q: %w", vendorName, err)
	}

	dueDate := fields.Date
	if utils.ValidateDate(dueDate) != nil || dueDate == "" {
		dueDate = now.Format("2006-01-02")
	}

	description := fields.Description
	if description == "" {
		description = doc.FileName
	}

	bill, err := s.accounting.CreateBill(ctx, port.BillRequest{
		Vendor:  *vendor,
		DueDate: dueDate,
		LineItems: []port.BillLineItem{{
			Description: description,
			Amount:      fields.Amount,
			Category:    fields.FilingCategory,
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("create bill: %w", err)
	}
	return bill, nil
}

func (s *approvalServiceImpl) releaseWithError(ctx context.Context, id string, cause error) {
	// The lease must be released even when the request context is already done.
	ctx = context.WithoutCancel(ctx)
	msg := cause.Error()
	if err := s.docRepo.UpdateByID(ctx, id, port.DocumentPatch{LastError: &msg, ReleaseClaim: true}); err != nil {
		s.logger.Warn("Failed to record approval error", "id", id, "error", err)
	}
}

// Reject moves the file to the rejected folder and closes the document
func (s *approvalServiceImpl) Reject(ctx context.Context, documentID string) (*entity.Document, error) {
	if documentID == "" {
		return nil, fmt.Errorf("%w: documentId is required", ErrInvalidRequest)
	}

	doc, err := s.load(ctx, documentID, workflow.TriggerReject)
	if err != nil {
		return nil, err
	}
	return s.reject(ctx, doc)
}

func (s *approvalServiceImpl) reject(ctx context.Context, doc *entity.Document) (*entity.Document, error) {
	now := s.now().UTC()
	if doc.IsClaimed(now) {
		return nil, fmt.Errorf("%w: document %s is being approved", ErrConflict, doc.ID)
	}

	fileRef := doc.FileRef
	if newRef, err := s.files.MovePath(ctx, doc.FileRef, entity.FolderRejected); err != nil {
		s.logger.Warn("Failed to move rejected document, continuing", "id", doc.ID, "error", err)
	} else if newRef != "" {
		fileRef = newRef
	}

	rejected := entity.DocumentStatusRejected
	expected := entity.DocumentStatusNeedsReview
	err := s.docRepo.UpdateByID(ctx, doc.ID, port.DocumentPatch{
		Status:         &rejected,
		FileRef:        &fileRef,
		ProcessedAt:    &now,
		ExpectedStatus: &expected,
	})
	if err != nil {
		if errors.Is(err, port.ErrStaleStatus) {
			return nil, fmt.Errorf("%w: document %s changed during rejection", ErrConflict, doc.ID)
		}
		s.logger.Error("Failed to reject document", "id", doc.ID, "error", err)
		return nil, fmt.Errorf("update document: %w", err)
	}

	doc.Status = rejected
	doc.FileRef = fileRef
	doc.ProcessedAt = &now

	s.logger.Info("Document rejected", "id", doc.ID)
	return doc, nil
}

// load fetches the document and checks that trigger is allowed from its status
func (s *approvalServiceImpl) load(ctx context.Context, id string, trigger workflow.Trigger) (*entity.Document, error) {
	doc, err := s.docRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to load document", "id", id, "error", err)
		return nil, fmt.Errorf("load document: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if doc.Status == entity.DocumentStatusProcessed {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyProcessed, id)
	}

	facts := workflow.DocumentFacts{IsDuplicate: doc.IsDuplicate}
	if _, err := workflow.Next(ctx, workflow.State(doc.Status), trigger, facts); err != nil {
		return nil, fmt.Errorf("%w: cannot %s document in status %s", ErrConflict, trigger, doc.Status)
	}
	return doc, nil
}

func mergeMetadata(base, extra map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}

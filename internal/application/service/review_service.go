package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/garyjia/ai-bookkeeper/internal/application/port"
	"github.com/garyjia/ai-bookkeeper/internal/domain/entity"
	"github.com/garyjia/ai-bookkeeper/internal/domain/workflow"
	"github.com/garyjia/ai-bookkeeper/pkg/utils"
)

// Duplicate resolutions
const (
	ResolveKeepBoth  = "keep_both"
	ResolveDeleteNew = "delete_new"
)

// ReviewService backs the review queue
type ReviewService interface {
	ListPending(ctx context.Context, limit int) ([]*entity.Document, error)
	Get(ctx context.Context, id string) (*entity.Document, error)
	UpdateExtracted(ctx context.Context, id string, fields entity.ExtractedFields) (*entity.Document, error)
	ResolveDuplicate(ctx context.Context, id, action string) (*entity.Document, error)
}

type reviewServiceImpl struct {
	docRepo   port.DocumentRepository
	approvals ApprovalService
	logger    Logger
}

// NewReviewService creates a new ReviewService
func NewReviewService(docRepo port.DocumentRepository, approvals ApprovalService, logger Logger) ReviewService {
	return &reviewServiceImpl{
		docRepo:   docRepo,
		approvals: approvals,
		logger:    logger,
	}
}

// ListPending returns documents waiting for review, newest first
func (s *reviewServiceImpl) ListPending(ctx context.Context, limit int) ([]*entity.Document, error) {
	docs, err := s.docRepo.QueryByStatus(ctx, entity.DocumentStatusNeedsReview, limit)
	if err != nil {
		s.logger.Error("Failed to list pending documents", "error", err)
		return nil, err
	}
	if docs == nil {
		docs = []*entity.Document{}
	}
	return docs, nil
}

// Get returns one document
func (s *reviewServiceImpl) Get(ctx context.Context, id string) (*entity.Document, error) {
	doc, err := s.docRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get document", "id", id, "error", err)
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return doc, nil
}

// UpdateExtracted stores reviewer corrections on a document still in review
func (s *reviewServiceImpl) UpdateExtracted(ctx context.Context, id string, fields entity.ExtractedFields) (*entity.Document, error) {
	if err := utils.ValidateAmount(fields.Amount); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := utils.ValidateDate(fields.Date); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if fields.SuggestedDestination != "" {
		d, ok := entity.ParseDestination(string(fields.SuggestedDestination))
		if !ok {
			return nil, fmt.Errorf("%w: unknown destination %q", ErrInvalidRequest, fields.SuggestedDestination)
		}
		fields.SuggestedDestination = d
	}

	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !doc.IsPending() {
		return nil, fmt.Errorf("%w: document %s is %s", ErrConflict, id, doc.Status)
	}

	patch := port.DocumentPatch{
		Extracted:      &fields,
		ExpectedStatus: &doc.Status,
	}
	if fields.FilingCategory != "" {
		patch.Category = &fields.FilingCategory
	}
	if err := s.docRepo.UpdateByID(ctx, id, patch); err != nil {
		if errors.Is(err, port.ErrStaleStatus) {
			return nil, fmt.Errorf("%w: document %s changed during edit", ErrConflict, id)
		}
		s.logger.Error("Failed to update extracted fields", "id", id, "error", err)
		return nil, err
	}

	doc.Extracted = fields
	if patch.Category != nil {
		doc.Category = *patch.Category
	}
	s.logger.Info("Document fields corrected", "id", id)
	return doc, nil
}

// ResolveDuplicate applies a reviewer's decision on a flagged duplicate.
// keep_both leaves the document in review; delete_new rejects it.
func (s *reviewServiceImpl) ResolveDuplicate(ctx context.Context, id, action string) (*entity.Document, error) {
	var trigger workflow.Trigger
	switch action {
	case ResolveKeepBoth:
		trigger = workflow.TriggerKeepBoth
	case ResolveDeleteNew:
		trigger = workflow.TriggerDeleteNew
	default:
		return nil, fmt.Errorf("%w: unknown duplicate resolution %q", ErrInvalidRequest, action)
	}

	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Status == entity.DocumentStatusProcessed {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyProcessed, id)
	}

	facts := workflow.DocumentFacts{IsDuplicate: doc.IsDuplicate}
	if _, err := workflow.Next(ctx, workflow.State(doc.Status), trigger, facts); err != nil {
		return nil, fmt.Errorf("%w: cannot resolve document %s: %v", ErrConflict, id, err)
	}

	if trigger == workflow.TriggerKeepBoth {
		s.logger.Info("Duplicate kept", "id", id, "duplicate_of", doc.DuplicateOfID)
		return doc, nil
	}
	return s.approvals.Reject(ctx, id)
}

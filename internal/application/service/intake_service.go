package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/garyjia/ai-bookkeeper/internal/application/port"
	"github.com/garyjia/ai-bookkeeper/internal/domain/entity"
	"github.com/garyjia/ai-bookkeeper/internal/domain/workflow"
	"github.com/garyjia/ai-bookkeeper/pkg/utils"
)

const (
	unknownVendor          = "Unknown"
	extractionFailedReason = "extraction failed"
)

// IngestRequest describes one file that is already staged in the file repository
type IngestRequest struct {
	FileRef  string
	FileName string
	MimeType string
	Source   entity.DocumentSource
	Content  []byte
}

// BatchItem is one file of a batch. Open is called only when the item is
// processed, so a batch never holds more than one file in memory.
type BatchItem struct {
	FileRef  string
	FileName string
	MimeType string
	Source   entity.DocumentSource
	Open     func() (io.ReadCloser, error)
}

// BatchResult is the outcome for one batch item
type BatchResult struct {
	FileRef  string           `json:"file_ref"`
	Document *entity.Document `json:"document,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// IntakeConfig tunes the intake pipeline
type IntakeConfig struct {
	DuplicateWindowDays int
	MaxFileBytes        int64
}

// IntakeService turns staged files into reviewable documents
type IntakeService interface {
	Ingest(ctx context.Context, req IngestRequest) (*entity.Document, error)
	IngestBatch(ctx context.Context, items []BatchItem) []BatchResult
}

type intakeServiceImpl struct {
	classifier port.Classifier
	duplicates DuplicateDetector
	docRepo    port.DocumentRepository
	files      port.FileRepository
	notifier   port.ReviewNotifier
	config     IntakeConfig
	now        func() time.Time
	logger     Logger
}

// NewIntakeService creates a new IntakeService. notifier may be nil.
func NewIntakeService(
	classifier port.Classifier,
	duplicates DuplicateDetector,
	docRepo port.DocumentRepository,
	files port.FileRepository,
	notifier port.ReviewNotifier,
	config IntakeConfig,
	logger Logger,
) IntakeService {
	if config.DuplicateWindowDays <= 0 {
		config.DuplicateWindowDays = entity.DuplicateWindowDays
	}
	return &intakeServiceImpl{
		classifier: classifier,
		duplicates: duplicates,
		docRepo:    docRepo,
		files:      files,
		notifier:   notifier,
		config:     config,
		now:        time.Now,
		logger:     logger,
	}
}

// Ingest classifies one staged file and records it
func (s *intakeServiceImpl) Ingest(ctx context.Context, req IngestRequest) (*entity.Document, error) {
	if req.FileRef == "" {
		return nil, fmt.Errorf("%w: file reference is required", ErrInvalidRequest)
	}
	if len(req.Content) == 0 {
		return nil, fmt.Errorf("%w: file content is empty", ErrInvalidRequest)
	}
	if req.Source == "" {
		req.Source = entity.SourceWeb
	}

	now := s.now().UTC()
	doc := &entity.Document{
		FileRef:   req.FileRef,
		FileName:  req.FileName,
		MimeType:  req.MimeType,
		Source:    req.Source,
		Status:    entity.DocumentStatusStagedUnclassified,
		CreatedAt: now,
	}

	tier1 := s.classifyTier1(ctx, req)
	doc.Tier1Category = tier1.Category
	doc.Subcategory = tier1.Subcategory
	doc.Confidence = tier1.Confidence

	var trigger workflow.Trigger
	if !tier1.NeedsDeepAnalysis {
		trigger = s.fileWithoutReview(doc, tier1, now)
	} else {
		trigger = s.extractForReview(ctx, req, doc, tier1, now)
	}

	next, err := workflow.Next(ctx, workflow.State(doc.Status), trigger, workflow.DocumentFacts{IsDuplicate: doc.IsDuplicate})
	if err != nil {
		return nil, fmt.Errorf("failed to classify document: %w", err)
	}
	doc.Status = entity.DocumentStatus(next)
	if doc.Status == entity.DocumentStatusProcessed || doc.Status == entity.DocumentStatusArchived {
		processedAt := now
		doc.ProcessedAt = &processedAt
	}

	if err := s.docRepo.Insert(ctx, doc); err != nil {
		s.logger.Error("Failed to store document", "file_ref", req.FileRef, "error", err)
		return nil, fmt.Errorf("store document: %w", err)
	}

	s.logger.Info("Document ingested",
		"id", doc.ID,
		"status", doc.Status,
		"tier1_category", doc.Tier1Category,
		"duplicate", doc.IsDuplicate)

	switch doc.Status {
	case entity.DocumentStatusArchived:
		s.moveArchived(ctx, doc)
	case entity.DocumentStatusNeedsReview:
		s.notify(ctx, doc)
	}

	return doc, nil
}

// classifyTier1 runs the cheap triage tier, degrading to unknown on failure
func (s *intakeServiceImpl) classifyTier1(ctx context.Context, req IngestRequest) port.Tier1Result {
	result, err := s.classifier.ClassifyTier1(ctx, req.Content, req.MimeType)
	if err != nil || result == nil {
		s.logger.Warn("Tier-1 classification failed, using default category",
			"file_ref", req.FileRef,
			"error", err)
		return port.Tier1Result{
			Category:          entity.CategoryUnknown,
			Subcategory:       entity.FilingAdministrative,
			NeedsDeepAnalysis: false,
		}
	}
	return *result
}

// fileWithoutReview applies the shortcut for documents that need no deep analysis
func (s *intakeServiceImpl) fileWithoutReview(doc *entity.Document, tier1 port.Tier1Result, now time.Time) workflow.Trigger {
	subcategory := utils.SanitizePathSegment(tier1.Subcategory)
	if subcategory == "" {
		subcategory = entity.FilingAdministrative
	}

	doc.Category = subcategory
	doc.Extracted = entity.ExtractedFields{
		IsFinancial:          isFinancialCategory(tier1.Category),
		SuggestedPath:        fmt.Sprintf("Documents/%d/%s", now.Year(), subcategory),
		SuggestedDestination: entity.DestinationArchiveOnly,
	}
	return workflow.TriggerClassifyShortcut
}

// extractForReview runs the expensive tier and prepares the review record
func (s *intakeServiceImpl) extractForReview(ctx context.Context, req IngestRequest, doc *entity.Document, tier1 port.Tier1Result, now time.Time) workflow.Trigger {
	tier2, err := s.classifier.ClassifyTier2(ctx, req.Content, req.MimeType)
	extracted := err == nil && tier2 != nil
	if !extracted {
		s.logger.Warn("Tier-2 extraction failed, using default fields",
			"file_ref", req.FileRef,
			"error", err)
		tier2 = &port.Tier2Result{
			VendorName:     unknownVendor,
			Amount:         0,
			Description:    extractionFailedReason,
			FilingCategory: entity.FilingAdministrative,
		}
	}

	fields := entity.ExtractedFields{
		VendorName:     strings.TrimSpace(tier2.VendorName),
		Amount:         tier2.Amount,
		Date:           strings.TrimSpace(tier2.Date),
		Description:    tier2.Description,
		FilingCategory: tier2.FilingCategory,
		IsFinancial:    isFinancialCategory(tier1.Category),
	}
	if fields.Amount < 0 {
		fields.Amount = 0
	}
	if fields.FilingCategory == "" {
		fields.FilingCategory = entity.FilingAdministrative
	}

	vendorFolder := utils.SanitizePathSegment(fields.VendorName)
	if vendorFolder == "" {
		vendorFolder = unknownVendor
	}
	fields.SuggestedPath = fmt.Sprintf("Invoices/%d/%s", fields.Year(now), vendorFolder)
	if fields.IsFinancial && fields.Amount > 0 {
		fields.SuggestedDestination = entity.DestinationAccountingSystem
	} else {
		fields.SuggestedDestination = entity.DestinationArchiveOnly
	}

	doc.Extracted = fields
	doc.Category = fields.FilingCategory
	doc.Summary = fields.Description
	if tier2.Confidence > 0 {
		doc.Confidence = tier2.Confidence
	}

	// Failed extractions all share the same placeholder vendor and amount
	if extracted {
		if dup := s.duplicates.FindDuplicate(ctx, fields.VendorName, fields.Amount, s.config.DuplicateWindowDays); dup != nil {
			doc.IsDuplicate = true
			dupID := dup.ID
			doc.DuplicateOfID = &dupID
		}
	}

	if req.Source == entity.SourceRepositoryScan && !fields.IsFinancial {
		return workflow.TriggerArchive
	}
	return workflow.TriggerClassifyForReview
}

// moveArchived files an archived repository-scan document, best-effort
func (s *intakeServiceImpl) moveArchived(ctx context.Context, doc *entity.Document) {
	target := utils.JoinPath(entity.FolderAllFiles, utils.SanitizePath(doc.Extracted.SuggestedPath))
	newRef, err := s.files.MovePath(ctx, doc.FileRef, target)
	if err != nil {
		s.logger.Warn("Failed to move archived document", "id", doc.ID, "target", target, "error", err)
		return
	}
	if newRef == "" || newRef == doc.FileRef {
		return
	}
	if err := s.docRepo.UpdateByID(ctx, doc.ID, port.DocumentPatch{FileRef: &newRef}); err != nil {
		s.logger.Warn("Failed to record archived file location", "id", doc.ID, "error", err)
		return
	}
	doc.FileRef = newRef
}

func (s *intakeServiceImpl) notify(ctx context.Context, doc *entity.Document) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyPendingReview(ctx, doc); err != nil {
		s.logger.Warn("Failed to notify reviewers", "id", doc.ID, "error", err)
	}
}

// IngestBatch ingests items one at a time; a failing item never stops the batch
func (s *intakeServiceImpl) IngestBatch(ctx context.Context, items []BatchItem) []BatchResult {
	results := make([]BatchResult, 0, len(items))

	for _, item := range items {
		result := BatchResult{FileRef: item.FileRef}

		if err := ctx.Err(); err != nil {
			result.Error = err.Error()
			results = append(results, result)
			continue
		}

		content, err := s.readItem(item)
		if err != nil {
			s.logger.Warn("Failed to read batch item", "file_ref", item.FileRef, "error", err)
			result.Error = err.Error()
			results = append(results, result)
			continue
		}

		doc, err := s.Ingest(ctx, IngestRequest{
			FileRef:  item.FileRef,
			FileName: item.FileName,
			MimeType: item.MimeType,
			Source:   item.Source,
			Content:  content,
		})
		if err != nil {
			result.Error = err.Error()
		} else {
			result.Document = doc
		}
		results = append(results, result)
	}

	s.logger.Info("Batch ingested", "count", len(items))
	return results
}

func (s *intakeServiceImpl) readItem(item BatchItem) ([]byte, error) {
	if item.Open == nil {
		return nil, fmt.Errorf("%w: batch item %s has no content", ErrInvalidRequest, item.FileRef)
	}
	rc, err := item.Open()
	if err != nil {
		return nil, fmt.Errorf("open batch item: %w", err)
	}
	defer rc.Close()

	var r io.Reader = rc
	if s.config.MaxFileBytes > 0 {
		r = io.LimitReader(rc, s.config.MaxFileBytes+1)
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read batch item: %w", err)
	}
	if s.config.MaxFileBytes > 0 && int64(len(content)) > s.config.MaxFileBytes {
		return nil, fmt.Errorf("%w: file %s exceeds %d bytes", ErrInvalidRequest, item.FileRef, s.config.MaxFileBytes)
	}
	return content, nil
}

func isFinancialCategory(category string) bool {
	return strings.HasPrefix(category, "financial")
}

package service

import (
	"context"
	"time"

	"github.com/garyjia/ai-bookkeeper/internal/application/port"
	"github.com/garyjia/ai-bookkeeper/internal/domain/entity"
)

// DuplicateDetector finds earlier documents with the same vendor and amount
type DuplicateDetector interface {
	// FindDuplicate returns the newest document created within the last
	// withinDays days with exactly this vendor and amount, or nil.
	// Lookup failures are logged and reported as no duplicate.
	FindDuplicate(ctx context.Context, vendorName string, amount float64, withinDays int) *entity.Document
}

type duplicateDetectorImpl struct {
	docRepo port.DocumentRepository
	now     func() time.Time
	logger  Logger
}

// NewDuplicateDetector creates a new DuplicateDetector
func NewDuplicateDetector(docRepo port.DocumentRepository, logger Logger) DuplicateDetector {
	return &duplicateDetectorImpl{
		docRepo: docRepo,
		now:     time.Now,
		logger:  logger,
	}
}

func (d *duplicateDetectorImpl) FindDuplicate(ctx context.Context, vendorName string, amount float64, withinDays int) *entity.Document {
	if vendorName == "" {
		return nil
	}
	if withinDays <= 0 {
		withinDays = entity.DuplicateWindowDays
	}

	since := d.now().AddDate(0, 0, -withinDays)
	matches, err := d.docRepo.QueryByVendorAndAmountSince(ctx, vendorName, amount, since)
	if err != nil {
		d.logger.Warn("Duplicate check failed, treating as unique",
			"vendor", vendorName,
			"amount", amount,
			"error", err)
		return nil
	}
	if len(matches) == 0 {
		return nil
	}

	return matches[0]
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/garyjia/ai-bookkeeper/internal/application/port"
	"github.com/garyjia/ai-bookkeeper/internal/domain/entity"
	"github.com/garyjia/ai-bookkeeper/internal/infrastructure/persistence/sqldb"
	"github.com/garyjia/ai-bookkeeper/pkg/database"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var documentColumns = []string{
	"id", "file_ref", "file_name", "mime_type", "source", "status",
	"category", "tier1_category", "subcategory", "summary",
	"extracted_data", "metadata_version", "confidence",
	"is_duplicate", "duplicate_of_id", "metadata", "last_error",
	"claimed_until", "created_at", "updated_at", "processed_at",
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// DocumentRepository implements port.DocumentRepository
type DocumentRepository struct {
	db     *sql.DB
	sb     sq.StatementBuilderType
	logger *zap.Logger
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *sql.DB, placeholder sq.PlaceholderFormat, logger *zap.Logger) *DocumentRepository {
	return &DocumentRepository{
		db:     db,
		sb:     sq.StatementBuilder.PlaceholderFormat(placeholder),
		logger: logger,
	}
}

// Insert stores a new document
func (r *DocumentRepository) Insert(ctx context.Context, doc *entity.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.CreatedAt = doc.CreatedAt.UTC()
	doc.UpdatedAt = now
	if doc.Source == "" {
		doc.Source = entity.SourceWeb
	}

	extracted, err := encodeExtracted(doc.Extracted)
	if err != nil {
		return err
	}
	metadata, err := encodeMetadata(doc.Metadata)
	if err != nil {
		return err
	}

	query, args, err := r.sb.Insert("documents").
		Columns(append([]string{"vendor_name", "amount"}, documentColumns...)...).
		Values(
			doc.Extracted.VendorName, doc.Extracted.Amount,
			doc.ID, doc.FileRef, doc.FileName, doc.MimeType, string(doc.Source), string(doc.Status),
			doc.Category, doc.Tier1Category, doc.Subcategory, doc.Summary,
			extracted, entity.ExtractedFieldsVersion, doc.Confidence,
			doc.IsDuplicate, doc.DuplicateOfID, metadata, doc.LastError,
			utcPtr(doc.ClaimedUntil), doc.CreatedAt, doc.UpdatedAt, utcPtr(doc.ProcessedAt),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}

	if _, err := sqldb.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: document %s", port.ErrDuplicateRecord, doc.ID)
		}
		r.logger.Error("Failed to insert document", zap.String("id", doc.ID), zap.Error(err))
		return fmt.Errorf("failed to insert document: %w", err)
	}

	return nil
}

// GetByID retrieves a document by ID
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*entity.Document, error) {
	query, args, err := r.sb.Select(documentColumns...).
		From("documents").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	doc, err := scanDocument(sqldb.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get document by ID", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return doc, nil
}

// UpdateByID applies the non-nil fields of patch
func (r *DocumentRepository) UpdateByID(ctx context.Context, id string, patch port.DocumentPatch) error {
	ub := r.sb.Update("documents").
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id})

	if patch.Status != nil {
		ub = ub.Set("status", string(*patch.Status))
	}
	if patch.Category != nil {
		ub = ub.Set("category", *patch.Category)
	}
	if patch.FileRef != nil {
		ub = ub.Set("file_ref", *patch.FileRef)
	}
	if patch.Extracted != nil {
		extracted, err := encodeExtracted(*patch.Extracted)
		if err != nil {
			return err
		}
		ub = ub.SetMap(map[string]interface{}{
			"extracted_data":   extracted,
			"metadata_version": entity.ExtractedFieldsVersion,
			"vendor_name":      patch.Extracted.VendorName,
			"amount":           patch.Extracted.Amount,
		})
	}
	if patch.Metadata != nil {
		metadata, err := encodeMetadata(patch.Metadata)
		if err != nil {
			return err
		}
		ub = ub.Set("metadata", metadata)
	}
	if patch.ProcessedAt != nil {
		ub = ub.Set("processed_at", patch.ProcessedAt.UTC())
	}
	if patch.LastError != nil {
		ub = ub.Set("last_error", *patch.LastError)
	}
	if patch.ReleaseClaim {
		ub = ub.Set("claimed_until", nil)
	}
	if patch.ExpectedStatus != nil {
		ub = ub.Where(sq.Eq{"status": string(*patch.ExpectedStatus)})
	}

	query, args, err := ub.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}

	result, err := sqldb.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update document", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to update document: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return port.ErrRecordNotFound
	}
	if patch.ExpectedStatus != nil {
		return port.ErrStaleStatus
	}
	return nil
}

// ClaimForApproval takes the approval lease when it is free or expired
func (r *DocumentRepository) ClaimForApproval(ctx context.Context, id string, now, until time.Time) (bool, error) {
	now = now.UTC()
	query, args, err := r.sb.Update("documents").
		Set("claimed_until", until.UTC()).
		Set("updated_at", now).
		Where(sq.Eq{"id": id, "status": string(entity.DocumentStatusNeedsReview)}).
		Where(sq.Or{sq.Eq{"claimed_until": nil}, sq.Lt{"claimed_until": now}}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build claim: %w", err)
	}

	result, err := sqldb.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to claim document", zap.String("id", id), zap.Error(err))
		return false, fmt.Errorf("failed to claim document: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

// QueryByStatus returns documents in status, newest first. limit <= 0 means no limit.
func (r *DocumentRepository) QueryByStatus(ctx context.Context, status entity.DocumentStatus, limit int) ([]*entity.Document, error) {
	sb := r.sb.Select(documentColumns...).
		From("documents").
		Where(sq.Eq{"status": string(status)}).
		OrderBy("created_at DESC")
	if limit > 0 {
		sb = sb.Limit(uint64(limit))
	}

	docs, err := r.query(ctx, sb)
	if err != nil {
		r.logger.Error("Failed to query documents by status", zap.String("status", string(status)), zap.Error(err))
		return nil, fmt.Errorf("failed to query documents by status: %w", err)
	}
	return docs, nil
}

// QueryByVendorAndAmountSince returns exact vendor and amount matches created at or after since
func (r *DocumentRepository) QueryByVendorAndAmountSince(ctx context.Context, vendor string, amount float64, since time.Time) ([]*entity.Document, error) {
	sb := r.sb.Select(documentColumns...).
		From("documents").
		Where(sq.Eq{"vendor_name": vendor, "amount": amount}).
		Where(sq.GtOrEq{"created_at": since.UTC()}).
		OrderBy("created_at DESC")

	docs, err := r.query(ctx, sb)
	if err != nil {
		r.logger.Error("Failed to query documents by vendor and amount",
			zap.String("vendor", vendor),
			zap.Float64("amount", amount),
			zap.Error(err))
		return nil, fmt.Errorf("failed to query documents by vendor and amount: %w", err)
	}
	return docs, nil
}

// MigrateLegacyMetadata rewrites every pre-canonical extracted_data value in
// the current shape and returns how many rows changed.
func (r *DocumentRepository) MigrateLegacyMetadata(ctx context.Context) (int, error) {
	query, args, err := r.sb.Select("id", "extracted_data", "metadata_version").
		From("documents").
		Where(sq.Lt{"metadata_version": entity.ExtractedFieldsVersion}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build select: %w", err)
	}

	type legacyRow struct {
		id     string
		fields entity.ExtractedFields
	}

	rows, err := sqldb.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to query legacy metadata: %w", err)
	}

	var pending []legacyRow
	for rows.Next() {
		var id, raw string
		var version int
		if err := rows.Scan(&id, &raw, &version); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan legacy metadata: %w", err)
		}
		fields, err := decodeExtracted(raw, version)
		if err != nil {
			r.logger.Warn("Skipping unreadable legacy metadata", zap.String("id", id), zap.Error(err))
			continue
		}
		pending = append(pending, legacyRow{id: id, fields: fields})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("failed to iterate legacy metadata: %w", err)
	}
	rows.Close()

	for _, row := range pending {
		fields := row.fields
		if err := r.UpdateByID(ctx, row.id, port.DocumentPatch{Extracted: &fields}); err != nil {
			return 0, err
		}
	}

	if len(pending) > 0 {
		r.logger.Info("Migrated legacy document metadata", zap.Int("count", len(pending)))
	}
	return len(pending), nil
}

func (r *DocumentRepository) query(ctx context.Context, sb sq.SelectBuilder) ([]*entity.Document, error) {
	query, args, err := sb.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := sqldb.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*entity.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func scanDocument(row rowScanner) (*entity.Document, error) {
	var (
		doc           entity.Document
		source        string
		status        string
		extracted     string
		version       int
		duplicateOfID sql.NullString
		metadata      string
		claimedUntil  sql.NullTime
		processedAt   sql.NullTime
	)

	err := row.Scan(
		&doc.ID,
		&doc.FileRef,
		&doc.FileName,
		&doc.MimeType,
		&source,
		&status,
		&doc.Category,
		&doc.Tier1Category,
		&doc.Subcategory,
		&doc.Summary,
		&extracted,
		&version,
		&doc.Confidence,
		&doc.IsDuplicate,
		&duplicateOfID,
		&metadata,
		&doc.LastError,
		&claimedUntil,
		&doc.CreatedAt,
		&doc.UpdatedAt,
		&processedAt,
	)
	if err != nil {
		return nil, err
	}

	doc.Source = entity.DocumentSource(source)
	doc.Status = entity.DocumentStatus(status)
	if doc.Extracted, err = decodeExtracted(extracted, version); err != nil {
		return nil, err
	}
	if doc.Metadata, err = decodeMetadata(metadata); err != nil {
		return nil, err
	}
	if duplicateOfID.Valid {
		doc.DuplicateOfID = &duplicateOfID.String
	}
	if claimedUntil.Valid {
		t := claimedUntil.Time.UTC()
		doc.ClaimedUntil = &t
	}
	if processedAt.Valid {
		t := processedAt.Time.UTC()
		doc.ProcessedAt = &t
	}
	doc.CreatedAt = doc.CreatedAt.UTC()
	doc.UpdatedAt = doc.UpdatedAt.UTC()

	return &doc, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// Verify interface compliance
var _ port.DocumentRepository = (*DocumentRepository)(nil)

package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/garyjia/ai-bookkeeper/internal/application/port"
	"github.com/garyjia/ai-bookkeeper/internal/domain/entity"
	"github.com/garyjia/ai-bookkeeper/internal/infrastructure/persistence/sqldb"
	"github.com/garyjia/ai-bookkeeper/migrations"
	"github.com/garyjia/ai-bookkeeper/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(database.Config{Driver: database.DriverSQLite, Path: ":memory:"}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.NewMigrator(db, logger).RunMigrations(context.Background(), migrations.FS))
	return db.DB
}

func newDocRepo(t *testing.T) (*DocumentRepository, *sql.DB) {
	db := newTestDB(t)
	return NewDocumentRepository(db, database.Placeholder(database.DriverSQLite), zap.NewNop()), db
}

func statusPtr(s entity.DocumentStatus) *entity.DocumentStatus { return &s }

func TestDocumentRepository_InsertAndGet(t *testing.T) {
	repo, _ := newDocRepo(t)
	ctx := context.Background()

	doc := &entity.Document{
		FileRef:       "Unprocessed Files/invoice.pdf",
		FileName:      "invoice.pdf",
		MimeType:      "application/pdf",
		Status:        entity.DocumentStatusNeedsReview,
		Category:      entity.FilingUtilityInvoices,
		Tier1Category: entity.CategoryFinancialActionable,
		Extracted: entity.ExtractedFields{
			VendorName:           "Acme Power",
			Amount:               120.5,
			Date:                 "2026-03-04",
			IsFinancial:          true,
			SuggestedPath:        "Utility Invoices/2026/Acme Power",
			SuggestedDestination: entity.DestinationAccountingSystem,
		},
		Metadata: map[string]interface{}{"uploader": "web"},
	}
	require.NoError(t, repo.Insert(ctx, doc))
	require.NotEmpty(t, doc.ID)
	assert.Equal(t, entity.SourceWeb, doc.Source)

	got, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, doc.FileRef, got.FileRef)
	assert.Equal(t, doc.Extracted, got.Extracted)
	assert.Equal(t, "web", got.Metadata["uploader"])
	assert.Nil(t, got.DuplicateOfID)
	assert.Nil(t, got.ProcessedAt)
	assert.Equal(t, time.UTC, got.CreatedAt.Location())

	missing, err := repo.GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDocumentRepository_InsertDuplicateID(t *testing.T) {
	repo, _ := newDocRepo(t)
	ctx := context.Background()

	first := &entity.Document{ID: "d1", FileRef: "a.pdf", FileName: "a.pdf", Status: entity.DocumentStatusNeedsReview}
	require.NoError(t, repo.Insert(ctx, first))

	second := &entity.Document{ID: "d1", FileRef: "b.pdf", FileName: "b.pdf", Status: entity.DocumentStatusNeedsReview}
	err := repo.Insert(ctx, second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, port.ErrDuplicateRecord))

	got, err := repo.GetByID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "a.pdf", got.FileRef)
}

func TestDocumentRepository_UpdateByID(t *testing.T) {
	repo, _ := newDocRepo(t)
	ctx := context.Background()

	doc := &entity.Document{FileRef: "a", Status: entity.DocumentStatusNeedsReview}
	require.NoError(t, repo.Insert(ctx, doc))

	processedAt := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	newRef := "All Files/Uncategorized/a"
	err := repo.UpdateByID(ctx, doc.ID, port.DocumentPatch{
		Status:         statusPtr(entity.DocumentStatusProcessed),
		FileRef:        &newRef,
		ProcessedAt:    &processedAt,
		ExpectedStatus: statusPtr(entity.DocumentStatusNeedsReview),
	})
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.DocumentStatusProcessed, got.Status)
	assert.Equal(t, newRef, got.FileRef)
	require.NotNil(t, got.ProcessedAt)
	assert.True(t, processedAt.Equal(*got.ProcessedAt))

	// status moved on, so a second conditional update is stale
	err = repo.UpdateByID(ctx, doc.ID, port.DocumentPatch{
		Status:         statusPtr(entity.DocumentStatusRejected),
		ExpectedStatus: statusPtr(entity.DocumentStatusNeedsReview),
	})
	assert.True(t, errors.Is(err, port.ErrStaleStatus))

	err = repo.UpdateByID(ctx, "missing", port.DocumentPatch{Status: statusPtr(entity.DocumentStatusRejected)})
	assert.True(t, errors.Is(err, port.ErrRecordNotFound))
}

func TestDocumentRepository_UpdateExtractedRefreshesDuplicateColumns(t *testing.T) {
	repo, _ := newDocRepo(t)
	ctx := context.Background()

	doc := &entity.Document{FileRef: "a", Status: entity.DocumentStatusNeedsReview}
	require.NoError(t, repo.Insert(ctx, doc))

	fields := entity.ExtractedFields{VendorName: "Verde Farms", Amount: 42}
	require.NoError(t, repo.UpdateByID(ctx, doc.ID, port.DocumentPatch{Extracted: &fields}))

	matches, err := repo.QueryByVendorAndAmountSince(ctx, "Verde Farms", 42, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, doc.ID, matches[0].ID)
}

func TestDocumentRepository_ClaimForApproval(t *testing.T) {
	repo, _ := newDocRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	doc := &entity.Document{FileRef: "a", Status: entity.DocumentStatusNeedsReview}
	require.NoError(t, repo.Insert(ctx, doc))

	ok, err := repo.ClaimForApproval(ctx, doc.ID, now, now.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ClaimForApproval(ctx, doc.ID, now.Add(time.Second), now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, ok, "lease still held")

	ok, err = repo.ClaimForApproval(ctx, doc.ID, now.Add(2*time.Minute), now.Add(3*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok, "expired lease can be retaken")

	require.NoError(t, repo.UpdateByID(ctx, doc.ID, port.DocumentPatch{ReleaseClaim: true}))
	got, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ClaimedUntil)

	require.NoError(t, repo.UpdateByID(ctx, doc.ID, port.DocumentPatch{Status: statusPtr(entity.DocumentStatusRejected)}))
	ok, err = repo.ClaimForApproval(ctx, doc.ID, now.Add(5*time.Minute), now.Add(6*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok, "only needs_review documents can be claimed")
}

func TestDocumentRepository_QueryByStatusNewestFirst(t *testing.T) {
	repo, _ := newDocRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, ref := range []string{"old", "mid", "new"} {
		require.NoError(t, repo.Insert(ctx, &entity.Document{
			FileRef:   ref,
			Status:    entity.DocumentStatusNeedsReview,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, repo.Insert(ctx, &entity.Document{FileRef: "done", Status: entity.DocumentStatusProcessed}))

	docs, err := repo.QueryByStatus(ctx, entity.DocumentStatusNeedsReview, 0)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "new", docs[0].FileRef)
	assert.Equal(t, "old", docs[2].FileRef)

	docs, err = repo.QueryByStatus(ctx, entity.DocumentStatusNeedsReview, 2)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestDocumentRepository_QueryByVendorAndAmountSince(t *testing.T) {
	repo, _ := newDocRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	insert := func(vendor string, amount float64, createdAt time.Time) {
		require.NoError(t, repo.Insert(ctx, &entity.Document{
			FileRef:   vendor,
			Status:    entity.DocumentStatusNeedsReview,
			CreatedAt: createdAt,
			Extracted: entity.ExtractedFields{VendorName: vendor, Amount: amount},
		}))
	}
	insert("Acme", 100, now.AddDate(0, 0, -5))
	insert("Acme", 100, now.AddDate(0, 0, -40))
	insert("Acme", 100.01, now.AddDate(0, 0, -1))
	insert("acme", 100, now.AddDate(0, 0, -1))

	docs, err := repo.QueryByVendorAndAmountSince(ctx, "Acme", 100, now.AddDate(0, 0, -entity.DuplicateWindowDays))
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestDocumentRepository_ReadsLegacyMetadata(t *testing.T) {
	repo, db := newDocRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := db.ExecContext(ctx, `INSERT INTO documents (id, file_ref, status, extracted_data, metadata_version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		"legacy-1", "x.pdf", "needs_review",
		`{"extracted_data": {"vendorName": "Old Vendor", "totalAmount": "1,250.00", "invoiceDate": "2025-11-02T00:00:00Z"}}`,
		metadataVersionLegacy, now, now)
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, "legacy-1")
	require.NoError(t, err)
	assert.Equal(t, "Old Vendor", got.Extracted.VendorName)
	assert.Equal(t, 1250.0, got.Extracted.Amount)
	assert.Equal(t, "2025-11-02", got.Extracted.Date)

	n, err := repo.MigrateLegacyMetadata(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var version int
	var vendor string
	require.NoError(t, db.QueryRowContext(ctx, "SELECT metadata_version, vendor_name FROM documents WHERE id = ?", "legacy-1").Scan(&version, &vendor))
	assert.Equal(t, entity.ExtractedFieldsVersion, version)
	assert.Equal(t, "Old Vendor", vendor)

	n, err = repo.MigrateLegacyMetadata(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNormalizeLegacyMetadata(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]interface{}
		want entity.ExtractedFields
	}{
		{
			name: "flat keys",
			in:   map[string]interface{}{"vendor": "Acme", "amount": 12.5, "date": "2026-01-02"},
			want: entity.ExtractedFields{VendorName: "Acme", Amount: 12.5, Date: "2026-01-02"},
		},
		{
			name: "nested data object",
			in: map[string]interface{}{"data": map[string]interface{}{
				"vendorName": "Nested", "amount": 3.0, "date": "2026-02-03", "description": "soil",
			}},
			want: entity.ExtractedFields{VendorName: "Nested", Amount: 3, Date: "2026-02-03", Description: "soil"},
		},
		{
			name: "destination label",
			in:   map[string]interface{}{"vendorName": "X", "suggestedDestination": "QuickBooks", "isFinancial": true},
			want: entity.ExtractedFields{VendorName: "X", IsFinancial: true, SuggestedDestination: entity.DestinationAccountingSystem},
		},
		{
			name: "empty",
			in:   map[string]interface{}{},
			want: entity.ExtractedFields{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeLegacyMetadata(tt.in))
		})
	}
}

func TestTransactionRepository_UpsertAndList(t *testing.T) {
	db := newTestDB(t)
	repo := NewTransactionRepository(db, database.Placeholder(database.DriverSQLite), zap.NewNop())
	ctx := context.Background()

	first := &entity.Transaction{
		RealmID:              "realm-1",
		Amount:               50,
		Date:                 time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC),
		VendorOrCounterparty: "Acme",
		Source:               entity.TransactionSourceBook,
		ExternalID:           "bill-1",
	}
	require.NoError(t, repo.Upsert(ctx, first))
	originalID := first.ID

	again := &entity.Transaction{
		RealmID:    "realm-1",
		Amount:     55,
		Date:       time.Date(2026, 4, 3, 0, 0, 0, 0, time.UTC),
		Source:     entity.TransactionSourceBook,
		ExternalID: "bill-1",
	}
	require.NoError(t, repo.Upsert(ctx, again))
	assert.Equal(t, originalID, again.ID)

	require.NoError(t, repo.Upsert(ctx, &entity.Transaction{
		RealmID: "realm-1", Amount: 55, Date: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		Source: entity.TransactionSourceBank, ExternalID: "bank-1",
	}))

	books, err := repo.ListByRealmAndSource(ctx, "realm-1", entity.TransactionSourceBook)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, 55.0, books[0].Amount)
	assert.Equal(t, 3, books[0].Date.Day())

	count, err := repo.CountBySource(ctx, "realm-1", entity.TransactionSourceBank)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = repo.CountBySource(ctx, "realm-2", entity.TransactionSourceBank)
	require.NoError(t, err)
	assert.Zero(t, count)

	assert.Error(t, repo.Upsert(ctx, &entity.Transaction{RealmID: "realm-1"}))
}

func TestRepositories_JoinContextTransaction(t *testing.T) {
	db := newTestDB(t)
	repo := NewDocumentRepository(db, database.Placeholder(database.DriverSQLite), zap.NewNop())
	txm := sqldb.NewTxManager(db, zap.NewNop())
	ctx := context.Background()

	var id string
	err := txm.WithTransaction(ctx, func(ctx context.Context) error {
		doc := &entity.Document{FileRef: "tx", Status: entity.DocumentStatusNeedsReview}
		if err := repo.Insert(ctx, doc); err != nil {
			return err
		}
		id = doc.ID
		return errors.New("abort")
	})
	require.Error(t, err)

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got, "insert rolled back with the transaction")
}

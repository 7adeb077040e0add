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
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const txnDateLayout = "2006-01-02"

// TransactionRepository implements port.TransactionRepository
type TransactionRepository struct {
	db     *sql.DB
	sb     sq.StatementBuilderType
	logger *zap.Logger
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *sql.DB, placeholder sq.PlaceholderFormat, logger *zap.Logger) *TransactionRepository {
	return &TransactionRepository{
		db:     db,
		sb:     sq.StatementBuilder.PlaceholderFormat(placeholder),
		logger: logger,
	}
}

// Upsert inserts the transaction or refreshes the row with the same source and external id.
// tx.ID is set to the stored row's id.
func (r *TransactionRepository) Upsert(ctx context.Context, tx *entity.Transaction) error {
	if tx.ExternalID == "" {
		return fmt.Errorf("transaction external id is required")
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	tx.UpdatedAt = now

	query, args, err := r.sb.Insert("transactions").
		Columns("id", "realm_id", "amount", "txn_date", "vendor", "source", "external_id",
			"is_reconciled", "created_at", "updated_at").
		Values(tx.ID, tx.RealmID, tx.Amount, tx.Date.Format(txnDateLayout), tx.VendorOrCounterparty,
			string(tx.Source), tx.ExternalID, tx.IsReconciled, tx.CreatedAt.UTC(), tx.UpdatedAt).
		Suffix(`ON CONFLICT (source, external_id) DO UPDATE SET
			realm_id = excluded.realm_id,
			amount = excluded.amount,
			txn_date = excluded.txn_date,
			vendor = excluded.vendor,
			is_reconciled = excluded.is_reconciled,
			updated_at = excluded.updated_at
			RETURNING id`).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build upsert: %w", err)
	}

	if err := sqldb.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, args...).Scan(&tx.ID); err != nil {
		r.logger.Error("Failed to upsert transaction",
			zap.String("source", string(tx.Source)),
			zap.String("external_id", tx.ExternalID),
			zap.Error(err))
		return fmt.Errorf("failed to upsert transaction: %w", err)
	}

	return nil
}

// ListByRealmAndSource returns every transaction of source in the realm, oldest first
func (r *TransactionRepository) ListByRealmAndSource(ctx context.Context, realmID string, source entity.TransactionSource) ([]*entity.Transaction, error) {
	query, args, err := r.sb.Select("id", "realm_id", "amount", "txn_date", "vendor", "source",
		"external_id", "is_reconciled", "created_at", "updated_at").
		From("transactions").
		Where(sq.Eq{"realm_id": realmID, "source": string(source)}).
		OrderBy("txn_date", "external_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	rows, err := sqldb.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list transactions",
			zap.String("realm_id", realmID),
			zap.String("source", string(source)),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txns []*entity.Transaction
	for rows.Next() {
		var (
			t       entity.Transaction
			date    string
			txnType string
		)
		if err := rows.Scan(&t.ID, &t.RealmID, &t.Amount, &date, &t.VendorOrCounterparty, &txnType,
			&t.ExternalID, &t.IsReconciled, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		parsed, err := time.Parse(txnDateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("failed to parse transaction date %q: %w", date, err)
		}
		t.Date = parsed
		t.Source = entity.TransactionSource(txnType)
		txns = append(txns, &t)
	}

	return txns, rows.Err()
}

// CountBySource counts transactions of source in the realm
func (r *TransactionRepository) CountBySource(ctx context.Context, realmID string, source entity.TransactionSource) (int, error) {
	query, args, err := r.sb.Select("COUNT(*)").
		From("transactions").
		Where(sq.Eq{"realm_id": realmID, "source": string(source)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count: %w", err)
	}

	var count int
	if err := sqldb.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		r.logger.Error("Failed to count transactions", zap.String("realm_id", realmID), zap.Error(err))
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// Verify interface compliance
var _ port.TransactionRepository = (*TransactionRepository)(nil)

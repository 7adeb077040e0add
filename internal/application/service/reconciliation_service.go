package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/garyjia/ai-bookkeeper/internal/application/port"
	"github.com/garyjia/ai-bookkeeper/internal/domain/entity"
)

// Ghost matching tolerances
const (
	AmountTolerance   = 0.01
	DateToleranceDays = 3
)

// SyncResult summarises one book sync
type SyncResult struct {
	RealmID  string `json:"realm_id"`
	Fetched  int    `json:"fetched"`
	Upserted int    `json:"upserted"`
	Skipped  int    `json:"skipped"`
	// Total is the number of book rows stored for the realm after the sync
	Total int `json:"total"`
}

// ReconciliationService matches bank movements against the books
type ReconciliationService interface {
	DetectGhosts(ctx context.Context, realmID string) ([]*entity.Transaction, error)
	SyncBookTransactions(ctx context.Context, realmID string) (*SyncResult, error)
}

type reconciliationServiceImpl struct {
	txnRepo    port.TransactionRepository
	accounting port.AccountingSystem
	txManager  port.TransactionManager
	logger     Logger
}

// NewReconciliationService creates a new ReconciliationService
func NewReconciliationService(
	txnRepo port.TransactionRepository,
	accounting port.AccountingSystem,
	txManager port.TransactionManager,
	logger Logger,
) ReconciliationService {
	return &reconciliationServiceImpl{
		txnRepo:    txnRepo,
		accounting: accounting,
		txManager:  txManager,
		logger:     logger,
	}
}

// DetectGhosts returns the realm's bank transactions with no book counterpart
func (s *reconciliationServiceImpl) DetectGhosts(ctx context.Context, realmID string) ([]*entity.Transaction, error) {
	if realmID == "" {
		return nil, fmt.Errorf("%w: realmId is required", ErrInvalidRequest)
	}

	bank, err := s.txnRepo.ListByRealmAndSource(ctx, realmID, entity.TransactionSourceBank)
	if err != nil {
		s.logger.Error("Failed to load bank transactions", "realm_id", realmID, "error", err)
		return nil, fmt.Errorf("load bank transactions: %w", err)
	}
	book, err := s.txnRepo.ListByRealmAndSource(ctx, realmID, entity.TransactionSourceBook)
	if err != nil {
		s.logger.Error("Failed to load book transactions", "realm_id", realmID, "error", err)
		return nil, fmt.Errorf("load book transactions: %w", err)
	}

	ghosts := FindGhosts(bank, book)
	s.logger.Info("Ghost detection finished",
		"realm_id", realmID,
		"bank", len(bank),
		"book", len(book),
		"ghosts", len(ghosts))
	return ghosts, nil
}

// FindGhosts returns the bank transactions that no book transaction matches.
// A book transaction may match any number of bank transactions.
func FindGhosts(bank, book []*entity.Transaction) []*entity.Transaction {
	ghosts := []*entity.Transaction{}
	for _, b := range bank {
		if !hasBookMatch(b, book) {
			ghosts = append(ghosts, b)
		}
	}
	return ghosts
}

func hasBookMatch(bank *entity.Transaction, book []*entity.Transaction) bool {
	for _, k := range book {
		if math.Abs(k.Amount-bank.Amount) < AmountTolerance && bank.DaysApart(k) <= DateToleranceDays {
			return true
		}
	}
	return false
}

// SyncBookTransactions copies the realm's bills into book transactions
func (s *reconciliationServiceImpl) SyncBookTransactions(ctx context.Context, realmID string) (*SyncResult, error) {
	if realmID == "" {
		return nil, fmt.Errorf("%w: realmId is required", ErrInvalidRequest)
	}

	bills, err := s.accounting.ListBills(ctx, realmID)
	if err != nil {
		s.logger.Error("Failed to list bills", "realm_id", realmID, "error", err)
		return nil, fmt.Errorf("list bills: %w", err)
	}

	result := &SyncResult{RealmID: realmID, Fetched: len(bills)}
	txns := make([]*entity.Transaction, 0, len(bills))
	for _, bill := range bills {
		date, err := time.Parse("2006-01-02", strings.TrimSpace(bill.TxnDate))
		if err != nil || bill.ID == "" {
			s.logger.Warn("Skipping bill without id or date", "realm_id", realmID, "bill_id", bill.ID, "txn_date", bill.TxnDate)
			result.Skipped++
			continue
		}
		vendor := bill.VendorName
		if vendor == "" {
			vendor = unknownVendor
		}
		txns = append(txns, &entity.Transaction{
			RealmID:              realmID,
			Amount:               bill.TotalAmt,
			Date:                 date,
			VendorOrCounterparty: vendor,
			Source:               entity.TransactionSourceBook,
			ExternalID:           bill.ID,
			IsReconciled:         true,
		})
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		for _, txn := range txns {
			if err := s.txnRepo.Upsert(txCtx, txn); err != nil {
				return fmt.Errorf("upsert bill %s: %w", txn.ExternalID, err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to store book transactions", "realm_id", realmID, "error", err)
		return nil, err
	}
	result.Upserted = len(txns)

	total, err := s.txnRepo.CountBySource(ctx, realmID, entity.TransactionSourceBook)
	if err != nil {
		s.logger.Error("Failed to count book transactions", "realm_id", realmID, "error", err)
		return nil, fmt.Errorf("count book transactions: %w", err)
	}
	result.Total = total

	s.logger.Info("Book transactions synced",
		"realm_id", realmID,
		"fetched", result.Fetched,
		"upserted", result.Upserted,
		"skipped", result.Skipped,
		"total", result.Total)
	return result, nil
}

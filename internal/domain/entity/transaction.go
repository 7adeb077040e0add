package entity

import (
	"math"
	"time"
)

// TransactionSource identifies which side of the ledger a transaction came from
type TransactionSource string

// Transaction source constants
const (
	TransactionSourceBank TransactionSource = "bank"
	TransactionSourceBook TransactionSource = "book"
)

// Transaction is one bank- or book-sourced money movement
type Transaction struct {
	ID                   string            `json:"id"`
	RealmID              string            `json:"realm_id"`
	Amount               float64           `json:"amount"`
	Date                 time.Time         `json:"date"`
	VendorOrCounterparty string            `json:"vendor"`
	Source               TransactionSource `json:"source"`
	ExternalID           string            `json:"external_id"`
	IsReconciled         bool              `json:"is_reconciled"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

// DaysApart returns the absolute number of calendar days between the two
// transaction dates.
func (t *Transaction) DaysApart(other *Transaction) int {
	a := time.Date(t.Date.Year(), t.Date.Month(), t.Date.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(other.Date.Year(), other.Date.Month(), other.Date.Day(), 0, 0, 0, 0, time.UTC)
	days := int(math.Round(a.Sub(b).Hours() / 24))
	if days < 0 {
		return -days
	}
	return days
}

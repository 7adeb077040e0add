package entity

// DocumentStatus is the lifecycle status of a Document
type DocumentStatus string

// Document status constants
const (
	DocumentStatusStagedUnclassified DocumentStatus = "staged_unclassified"
	DocumentStatusNeedsReview        DocumentStatus = "needs_review"
	DocumentStatusArchived           DocumentStatus = "archived"
	DocumentStatusProcessed          DocumentStatus = "processed"
	DocumentStatusRejected           DocumentStatus = "rejected"
)

// IsValid reports whether s is a known status
func (s DocumentStatus) IsValid() bool {
	switch s {
	case DocumentStatusStagedUnclassified, DocumentStatusNeedsReview,
		DocumentStatusArchived, DocumentStatusProcessed, DocumentStatusRejected:
		return true
	}
	return false
}

// Destination is where an approved document is committed
type Destination string

// Destination constants
const (
	DestinationAccountingSystem Destination = "AccountingSystem"
	DestinationArchiveOnly      Destination = "ArchiveOnly"
)

// ParseDestination accepts both the canonical names and the labels used by the
// review UI ("QuickBooks", "Archive Only").
func ParseDestination(s string) (Destination, bool) {
	switch s {
	case string(DestinationAccountingSystem), "QuickBooks", "quickbooks":
		return DestinationAccountingSystem, true
	case string(DestinationArchiveOnly), "Archive Only", "archive":
		return DestinationArchiveOnly, true
	}
	return "", false
}

// DocumentSource tells the intake pipeline where a file came from
type DocumentSource string

// Document source constants
const (
	SourceWeb            DocumentSource = "web"
	SourceRepositoryScan DocumentSource = "repository-scan"
)

// Tier-1 classification categories
const (
	CategoryFinancialActionable = "financial_actionable"
	CategoryFinancialReference  = "financial_reference"
	CategoryLegal               = "legal"
	CategoryGovernment          = "government"
	CategoryPersonal            = "personal"
	CategoryUnknown             = "unknown"
)

// Filing categories. Classifiers must answer with one of these.
const (
	FilingPropertyInvoices = "Property Invoices"
	FilingRepairInvoices   = "Repair Invoices"
	FilingUtilityInvoices  = "Utility Invoices"
	FilingInventory        = "Inventory Invoices"
	FilingLegal            = "Legal Documents"
	FilingPayroll          = "Payroll Documents"
	FilingTax              = "Tax Documents"
	FilingAdministrative   = "Administrative"
)

// AllowedFilingCategories is the allow-list offered to the classifiers
var AllowedFilingCategories = []string{
	FilingPropertyInvoices,
	FilingRepairInvoices,
	FilingUtilityInvoices,
	FilingInventory,
	FilingLegal,
	FilingPayroll,
	FilingTax,
	FilingAdministrative,
}

// IsAllowedFilingCategory reports whether name is on the allow-list
func IsAllowedFilingCategory(name string) bool {
	for _, c := range AllowedFilingCategories {
		if c == name {
			return true
		}
	}
	return false
}

// File repository folder names
const (
	FolderUnprocessed = "Unprocessed Files"
	FolderAllFiles    = "All Files"
	FolderRejected    = "Rejected"
	FolderDefault     = "Uncategorized"
)

// DuplicateWindowDays is the trailing window searched for duplicates
const DuplicateWindowDays = 30

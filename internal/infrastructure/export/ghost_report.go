// Package export renders reconciliation results as spreadsheets.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/garyjia/ai-bookkeeper/internal/domain/entity"
	"github.com/xuri/excelize/v2"
)

const (
	ghostSheet    = "Ghost Transactions"
	headerRow     = 3
	firstDataRow  = 4
	dateFormat    = "2006-01-02"
	amountNumFmt  = "#,##0.00"
	titleFormat   = "Unbooked bank transactions: realm %s"
)

var ghostColumns = []struct {
	header string
	width  float64
}{
	{"Date", 12},
	{"Amount", 14},
	{"Counterparty", 32},
	{"Bank Transaction ID", 28},
	{"Days Outstanding", 16},
}

// WriteGhostReport writes an XLSX listing the ghost transactions of a realm
func WriteGhostReport(w io.Writer, realmID string, ghosts []*entity.Transaction, generatedAt time.Time) error {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", ghostSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	if err := file.SetCellValue(ghostSheet, "A1", fmt.Sprintf(titleFormat, realmID)); err != nil {
		return fmt.Errorf("failed to set title: %w", err)
	}
	if err := file.SetCellValue(ghostSheet, "A2", "Generated "+generatedAt.UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to set timestamp: %w", err)
	}

	boldStyle, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	amountStyle, err := file.NewStyle(&excelize.Style{CustomNumFmt: strPtr(amountNumFmt)})
	if err != nil {
		return fmt.Errorf("failed to create amount style: %w", err)
	}

	for i, col := range ghostColumns {
		name, _ := excelize.ColumnNumberToName(i + 1)
		if err := file.SetCellValue(ghostSheet, fmt.Sprintf("%s%d", name, headerRow), col.header); err != nil {
			return fmt.Errorf("failed to set header %s: %w", col.header, err)
		}
		if err := file.SetColWidth(ghostSheet, name, name, col.width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}
	if err := file.SetCellStyle(ghostSheet, "A1", fmt.Sprintf("E%d", headerRow), boldStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	var total float64
	for i, ghost := range ghosts {
		row := firstDataRow + i
		values := []interface{}{
			ghost.Date.Format(dateFormat),
			ghost.Amount,
			ghost.VendorOrCounterparty,
			ghost.ExternalID,
			daysOutstanding(ghost.Date, generatedAt),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := file.SetCellValue(ghostSheet, cell, v); err != nil {
				return fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
		total += ghost.Amount
	}

	totalRow := firstDataRow + len(ghosts)
	if err := file.SetCellValue(ghostSheet, fmt.Sprintf("A%d", totalRow), "Total"); err != nil {
		return fmt.Errorf("failed to set total label: %w", err)
	}
	if err := file.SetCellValue(ghostSheet, fmt.Sprintf("B%d", totalRow), total); err != nil {
		return fmt.Errorf("failed to set total: %w", err)
	}
	if err := file.SetCellStyle(ghostSheet, fmt.Sprintf("B%d", firstDataRow), fmt.Sprintf("B%d", totalRow), amountStyle); err != nil {
		return fmt.Errorf("failed to style amounts: %w", err)
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func daysOutstanding(date, now time.Time) int {
	d := int(now.Sub(date).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

func strPtr(s string) *string {
	return &s
}

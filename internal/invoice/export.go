package invoice

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Invoices"

var exportHeaders = []string{
	"Date",
	"Vendor",
	"Category",
	"Doc Type",
	"Total",
	"Currency",
	"Tax",
	"Payment Terms",
	"Confidence",
	"Pages",
	"ID",
}

// ExportXLSX returns every invoice as an XLSX workbook
func (s *Service) ExportXLSX(ctx context.Context) ([]byte, error) {
	invoices, err := s.db.ListInvoices(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}
	return writeWorkbook(invoices)
}

func writeWorkbook(invoices []*Invoice) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, fmt.Errorf("naming sheet: %w", err)
	}

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(exportSheet, cell, h); err != nil {
			return nil, fmt.Errorf("writing header: %w", err)
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("creating header style: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(exportHeaders), 1)
	_ = f.SetCellStyle(exportSheet, "A1", last, bold)

	for i, inv := range invoices {
		row := i + 2
		for col, v := range exportRow(inv) {
			if v == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(exportSheet, cell, v); err != nil {
				return nil, fmt.Errorf("writing row %d: %w", row, err)
			}
		}
	}

	_ = f.SetColWidth(exportSheet, "A", "A", 12)
	_ = f.SetColWidth(exportSheet, "B", "C", 28)
	_ = f.SetColWidth(exportSheet, "H", "H", 18)
	_ = f.SetColWidth(exportSheet, "K", "K", 38)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// exportRow returns the cell values of inv; nil leaves a cell empty
func exportRow(inv *Invoice) []any {
	var total, tax, confidence any
	if inv.Total.Valid {
		total = inv.Total.Decimal.InexactFloat64()
	}
	if inv.Tax.Valid {
		tax = inv.Tax.Decimal.InexactFloat64()
	}
	if inv.Confidence != nil {
		confidence = *inv.Confidence
	}

	pages := make([]string, len(inv.PageNumber))
	for i, p := range inv.PageNumber {
		pages[i] = strconv.Itoa(p)
	}

	return []any{
		inv.Date,
		inv.Vendor,
		inv.Category,
		inv.DocType,
		total,
		inv.Currency,
		tax,
		inv.PaymentTerms,
		confidence,
		strings.Join(pages, ","),
		inv.ID,
	}
}

package sales

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	sheetSummary = "Summary"
	sheetSales   = "Sales"
	sheetLines   = "Lines"
)

func writeRows(f *excelize.File, sheet string, header []any, rows [][]any, bold int) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	lastCol, _ := excelize.ColumnNumberToName(len(header))
	return f.SetColWidth(sheet, "A", lastCol, 18)
}

// ExportReport renders rep as an XLSX workbook with a summary sheet, one
// row per sale and one row per sold line.
func ExportReport(rep Report) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return nil, err
	}
	for _, name := range []string{sheetSales, sheetLines} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	s := rep.Summary
	summary := [][]any{
		{"From", s.From},
		{"To", s.To},
		{"Transactions", s.Transactions},
		{"Units sold", s.UnitsSold},
		{"Total sales", s.TotalSales.InexactFloat64()},
		{"Total discounts", rep.TotalDiscounts.InexactFloat64()},
		{"Total taxes", rep.TotalTaxes.InexactFloat64()},
	}
	for _, m := range rep.ByMethod {
		summary = append(summary, []any{fmt.Sprintf("Total %s", m.PaymentMethod), m.Total.InexactFloat64()})
	}
	if err := writeRows(f, sheetSummary, []any{"Metric", "Value"}, summary, bold); err != nil {
		return nil, err
	}

	saleRows := make([][]any, 0, len(rep.Sales))
	var lineRows [][]any
	for _, sale := range rep.Sales {
		saleRows = append(saleRows, []any{
			sale.Code, sale.Date, sale.Client, string(sale.PaymentMethod),
			sale.Subtotal.InexactFloat64(), sale.Discount.InexactFloat64(),
			sale.Tax.InexactFloat64(), sale.Total.InexactFloat64(), sale.CreatedBy,
		})
		for _, l := range sale.Lines {
			lineRows = append(lineRows, []any{
				sale.Code, l.ProductID, l.Product, l.Quantity,
				l.UnitPrice.InexactFloat64(), l.Subtotal.InexactFloat64(),
			})
		}
	}
	if err := writeRows(f, sheetSales,
		[]any{"Code", "Date", "Client", "Payment method", "Subtotal", "Discount", "Tax", "Total", "Seller"},
		saleRows, bold); err != nil {
		return nil, err
	}
	if err := writeRows(f, sheetLines,
		[]any{"Sale", "Product ID", "Product", "Quantity", "Unit price", "Subtotal"},
		lineRows, bold); err != nil {
		return nil, err
	}

	return f.WriteToBuffer()
}

package service

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

// BuildComparisonWorkbook renders a comparison as an xlsx workbook with a ranking
// sheet and a per-product price sheet.
func BuildComparisonWorkbook(cmp ComparisonResponse) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	const ranking = "Ranking"
	const products = "Products"

	if err := f.SetSheetName(f.GetSheetName(0), ranking); err != nil {
		return nil, fmt.Errorf("set sheet name: %w", err)
	}
	if _, err := f.NewSheet(products); err != nil {
		return nil, fmt.Errorf("create products sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#333333"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	bestStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2F0D9"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("create highlight style: %w", err)
	}

	// Ranking sheet
	title := fmt.Sprintf("%s - %s", cmp.RFPCode, cmp.Title)
	if err := f.SetCellValue(ranking, "A1", title); err != nil {
		return nil, fmt.Errorf("write title: %w", err)
	}
	headers := []string{"Rank", "Vendor", "Status", "Total without tax", "Tax", "Total with tax"}
	if err := writeRow(f, ranking, 3, headers); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(ranking, "A3", "F3", headerStyle); err != nil {
		return nil, fmt.Errorf("style ranking header: %w", err)
	}
	for i, w := range []float64{8, 32, 14, 20, 16, 20} {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(ranking, col, col, w); err != nil {
			return nil, fmt.Errorf("set col width %s: %w", col, err)
		}
	}
	for i, q := range cmp.Quotations {
		row := 4 + i
		values := []any{q.Rank, q.VendorName, q.Status, q.Total.WithoutTax, q.Total.Tax, q.Total.WithTax}
		if err := writeRow(f, ranking, row, values); err != nil {
			return nil, err
		}
		if q.Rank == 1 {
			if err := f.SetCellStyle(ranking, fmt.Sprintf("A%d", row), fmt.Sprintf("F%d", row), bestStyle); err != nil {
				return nil, fmt.Errorf("style best quotation: %w", err)
			}
		}
	}

	// Products sheet
	headers = []string{"Product", "Quantity", "Vendor", "Unit price", "Tax rate", "Line total with tax"}
	if err := writeRow(f, products, 1, headers); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(products, "A1", "F1", headerStyle); err != nil {
		return nil, fmt.Errorf("style products header: %w", err)
	}
	for i, w := range []float64{36, 10, 32, 14, 10, 20} {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(products, col, col, w); err != nil {
			return nil, fmt.Errorf("set col width %s: %w", col, err)
		}
	}
	row := 2
	for _, p := range cmp.Products {
		for _, offer := range p.Offers {
			values := []any{p.Name, p.Quantity, offer.VendorName, offer.UnitPrice, offer.TaxRate, offer.TotalWithTax}
			if err := writeRow(f, products, row, values); err != nil {
				return nil, err
			}
			if p.BestVendorID != nil && *p.BestVendorID == offer.VendorID {
				if err := f.SetCellStyle(products, fmt.Sprintf("A%d", row), fmt.Sprintf("F%d", row), bestStyle); err != nil {
					return nil, fmt.Errorf("style best offer: %w", err)
				}
			}
			row++
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf, nil
}

func writeRow[T any](f *excelize.File, sheet string, row int, values []T) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("write %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}

// BuildPurchaseOrderPDF renders a purchase order as an A4 PDF document.
func BuildPurchaseOrderPDF(po PurchaseOrderResponse) (*bytes.Buffer, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Purchase Order "+po.PONumber, false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, "Purchase Order "+po.PONumber)
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 10)
	lines := []string{
		"Date: " + po.CreatedAt.Format(dateLayout),
		"RFP: " + po.RFPCode + " " + po.RFPTitle,
		"Vendor: " + po.VendorName,
		"Company: " + po.CompanyName,
		"GSTIN: " + po.TaxCode,
		"Bill to: " + po.BillingAddress,
	}
	for _, line := range lines {
		pdf.MultiCell(0, 5, line, "", "L", false)
	}
	pdf.Ln(4)

	widths := []float64{70, 15, 25, 20, 25, 30}
	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(51, 51, 51)
	pdf.SetTextColor(255, 255, 255)
	for i, h := range []string{"Item", "Qty", "Unit price", "Tax", "Taxable", "Total"} {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	pdf.SetTextColor(0, 0, 0)
	for _, it := range po.Items {
		rate := it.TaxRate
		if rate != "EXEMPT" {
			rate += "%"
		}
		cells := []string{it.Name, fmt.Sprintf("%d", it.Quantity), it.UnitPrice, rate, it.TaxableAmount, it.TotalWithTax}
		aligns := []string{"L", "R", "R", "C", "R", "R"}
		for i, c := range cells {
			pdf.CellFormat(widths[i], 6, c, "1", 0, aligns[i], false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	for _, total := range [][2]string{
		{"Subtotal", po.Subtotal},
		{"Tax", po.TaxAmount},
		{"Total", po.TotalAmount},
	} {
		pdf.CellFormat(155, 6, total[0], "", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, total[1], "", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	if po.Note != "" {
		pdf.Ln(4)
		pdf.SetFont("Arial", "", 9)
		pdf.MultiCell(0, 5, "Note: "+po.Note, "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return &buf, nil
}

package render

import (
	"bytes"
	"fmt"

	"rentflow/models"

	"github.com/jung-kurt/gofpdf/v2"
)

// InvoicePDF renders invoices as A4 PDF documents.
type InvoicePDF struct {
	Company  string
	Currency string
}

func NewInvoicePDF(company, currency string) *InvoicePDF {
	if company == "" {
		company = "Rentflow"
	}
	if currency == "" {
		currency = "KES"
	}
	return &InvoicePDF{Company: company, Currency: currency}
}

// Render has no side effects; the same document always yields the same bytes.
func (r *InvoicePDF) Render(doc models.InvoiceDocument) ([]byte, error) {
	if doc.Number == "" {
		return nil, fmt.Errorf("render: invoice number is required")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(doc.IssuedAt)
	pdf.SetModificationDate(doc.IssuedAt)
	pdf.SetTitle("Invoice "+doc.Number, false)
	pdf.SetAuthor(r.Company, false)
	pdf.SetMargins(10, 10, 10)
	pdf.AddPage()

	// Header
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(190, 10, r.Company+" - Rent Invoice", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(190, 6, fmt.Sprintf("Invoice No: %s", doc.Number), "", 1, "C", false, 0, "")
	pdf.CellFormat(190, 6, fmt.Sprintf("Issued: %s", doc.IssuedAt.Format("02-Jan-2006 03:04 PM")), "", 1, "C", false, 0, "")
	pdf.Ln(5)

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, "Billed To", "1", 1, "L", true, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(95, 7, fmt.Sprintf("Name: %s", doc.CustomerName), "LB", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, fmt.Sprintf("Phone: %s", doc.CustomerPhone), "RB", 1, "L", false, 0, "")
	pdf.CellFormat(95, 7, fmt.Sprintf("Email: %s", doc.CustomerEmail), "LB", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, fmt.Sprintf("Rental: %s", doc.RentalID), "RB", 1, "L", false, 0, "")
	pdf.Ln(5)

	if len(doc.Items) > 0 {
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(190, 8, "Rented Items", "1", 1, "L", true, 0, "")

		pdf.SetFont("Arial", "B", 10)
		pdf.SetFillColor(200, 200, 200)
		pdf.CellFormat(90, 7, "Item", "1", 0, "C", true, 0, "")
		pdf.CellFormat(30, 7, "Qty", "1", 0, "C", true, 0, "")
		pdf.CellFormat(35, 7, "Monthly Rate", "1", 0, "C", true, 0, "")
		pdf.CellFormat(35, 7, "Line Total", "1", 1, "C", true, 0, "")

		pdf.SetFont("Arial", "", 10)
		for _, it := range doc.Items {
			name := it.Name
			if name == "" {
				name = it.ItemRef
			}
			pdf.CellFormat(90, 6, name, "1", 0, "L", false, 0, "")
			pdf.CellFormat(30, 6, fmt.Sprintf("%d", it.Quantity), "1", 0, "C", false, 0, "")
			pdf.CellFormat(35, 6, r.money(it.MonthlyRate), "1", 0, "R", false, 0, "")
			pdf.CellFormat(35, 6, r.money(it.MonthlyRate*float64(it.Quantity)), "1", 1, "R", false, 0, "")
		}
		pdf.Ln(5)
	}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, "Payment", "1", 1, "L", true, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(63, 8, fmt.Sprintf("Period: %s", doc.MonthKey), "1", 0, "C", false, 0, "")
	pdf.CellFormat(63, 8, fmt.Sprintf("Due: %s", doc.DueDate.Format("02-Jan-2006")), "1", 0, "C", false, 0, "")
	paid := "-"
	if !doc.PaidDate.IsZero() {
		paid = doc.PaidDate.Format("02-Jan-2006")
	}
	pdf.CellFormat(64, 8, fmt.Sprintf("Paid: %s", paid), "1", 1, "C", false, 0, "")
	pdf.CellFormat(190, 8, fmt.Sprintf("Method: %s", doc.PaymentMethod), "1", 1, "L", false, 0, "")

	pdf.SetFillColor(200, 255, 200)
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(190, 10, fmt.Sprintf("Amount Paid: %s", r.money(doc.Amount)), "1", 1, "C", true, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render: failed to write invoice %s: %w", doc.Number, err)
	}
	return buf.Bytes(), nil
}

func (r *InvoicePDF) money(v float64) string {
	return fmt.Sprintf("%s %.2f", r.Currency, v)
}

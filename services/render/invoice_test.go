package render

import (
	"bytes"
	"testing"
	"time"

	"rentflow/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDocument() models.InvoiceDocument {
	issued := time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC)
	return models.InvoiceDocument{
		Number:        "INV-2025-1110-0001",
		IssuedAt:      issued,
		CustomerName:  "Amina Wanjiru",
		CustomerEmail: "amina@example.com",
		CustomerPhone: "+254700000000",
		RentalID:      "r1",
		MonthKey:      "2025-10",
		DueDate:       time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC),
		PaidDate:      issued,
		Amount:        2000,
		PaymentMethod: "mpesa",
		Items: []models.RentalItem{
			{ItemRef: "sofa-1", Name: "Three-seater sofa", Quantity: 1, MonthlyRate: 1500},
			{ItemRef: "table-2", Quantity: 2, MonthlyRate: 250},
		},
	}
}

func TestInvoicePDF_Render(t *testing.T) {
	r := NewInvoicePDF("", "")

	out, err := r.Render(sampleDocument())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	again, err := r.Render(sampleDocument())
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestInvoicePDF_RequiresNumber(t *testing.T) {
	doc := sampleDocument()
	doc.Number = ""
	_, err := NewInvoicePDF("Rentflow", "KES").Render(doc)
	assert.Error(t, err)
}

package service

import (
	"testing"

	"pharmamarket/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestDeriveInvoiceStatus(t *testing.T) {
	// amount=100, commission=10 -> target=110
	target := 110.0

	t.Run("partial payment stays pending", func(t *testing.T) {
		status := deriveInvoiceStatus(50, target, models.InvoiceStatusPending)
		assert.Equal(t, models.InvoiceStatusPending, status)
	})

	t.Run("cumulative payments flip to paid", func(t *testing.T) {
		status := deriveInvoiceStatus(110, target, models.InvoiceStatusPending)
		assert.Equal(t, models.InvoiceStatusPaid, status)

		status = deriveInvoiceStatus(115, target, models.InvoiceStatusPending)
		assert.Equal(t, models.InvoiceStatusPaid, status)
	})

	t.Run("cancelled is sticky", func(t *testing.T) {
		status := deriveInvoiceStatus(500, target, models.InvoiceStatusCancelled)
		assert.Equal(t, models.InvoiceStatusCancelled, status)
	})

	t.Run("zero target never settles", func(t *testing.T) {
		status := deriveInvoiceStatus(0, 0, models.InvoiceStatusPending)
		assert.Equal(t, models.InvoiceStatusPending, status)
	})

	t.Run("paid reverts when target grows past payments", func(t *testing.T) {
		status := deriveInvoiceStatus(110, 200, models.InvoiceStatusPaid)
		assert.Equal(t, models.InvoiceStatusPending, status)
	})
}

func TestInvoiceTargetAmount(t *testing.T) {
	invoice := &models.Invoice{Amount: 100, Commission: 10}
	assert.InDelta(t, 110.0, invoice.TargetAmount(), 1e-9)
}

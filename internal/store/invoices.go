package store

import (
	"context"
	"database/sql"

	"pharmamarket/internal/apperr"
	"pharmamarket/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateInvoiceTx inserts the companion invoice for a freshly created order.
func (s *Store) CreateInvoiceTx(ctx context.Context, tx *sqlx.Tx, invoice *models.Invoice) error {
	query := `
		INSERT INTO invoices (order_id, amount, commission, net_amount, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err := tx.GetContext(ctx, invoice, query,
		invoice.OrderID, invoice.Amount, invoice.Commission, invoice.NetAmount, invoice.Status)
	if err != nil {
		return apperr.Internal("failed to create invoice", err)
	}
	return nil
}

// GetInvoice retrieves an invoice by ID
func (s *Store) GetInvoice(ctx context.Context, id int64) (*models.Invoice, error) {
	var invoice models.Invoice
	err := s.db.GetContext(ctx, &invoice, "SELECT * FROM invoices WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("invoice", id)
	}
	if err != nil {
		return nil, apperr.Internal("failed to load invoice", err)
	}
	return &invoice, nil
}

// GetInvoiceTx retrieves an invoice inside a transaction with a row lock.
func (s *Store) GetInvoiceTx(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Invoice, error) {
	var invoice models.Invoice
	err := tx.GetContext(ctx, &invoice, "SELECT * FROM invoices WHERE id = $1 FOR UPDATE", id)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("invoice", id)
	}
	if err != nil {
		return nil, apperr.Internal("failed to load invoice", err)
	}
	return &invoice, nil
}

// GetInvoiceByOrderTx retrieves the invoice anchored to an order, locked.
func (s *Store) GetInvoiceByOrderTx(ctx context.Context, tx *sqlx.Tx, orderID int64) (*models.Invoice, error) {
	var invoice models.Invoice
	err := tx.GetContext(ctx, &invoice,
		"SELECT * FROM invoices WHERE order_id = $1 FOR UPDATE", orderID)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("invoice", orderID)
	}
	if err != nil {
		return nil, apperr.Internal("failed to load invoice", err)
	}
	return &invoice, nil
}

// UpdateInvoiceStatusTx persists a derived status change along with the
// paid_at / cancelled_at housekeeping.
func (s *Store) UpdateInvoiceStatusTx(ctx context.Context, tx *sqlx.Tx, invoice *models.Invoice) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE invoices SET status = $1, paid_at = $2, cancelled_at = $3, updated_at = NOW()
		 WHERE id = $4`,
		invoice.Status, invoice.PaidAt, invoice.CancelledAt, invoice.ID)
	if err != nil {
		return apperr.Internal("failed to update invoice status", err)
	}
	return nil
}

// UpdateInvoiceAmountsTx rewrites amount/commission/net_amount. Only the
// administrative update path calls this; net must already equal
// amount + commission.
func (s *Store) UpdateInvoiceAmountsTx(ctx context.Context, tx *sqlx.Tx, invoice *models.Invoice) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE invoices SET amount = $1, commission = $2, net_amount = $3, updated_at = NOW()
		 WHERE id = $4`,
		invoice.Amount, invoice.Commission, invoice.NetAmount, invoice.ID)
	if err != nil {
		return apperr.Internal("failed to update invoice amounts", err)
	}
	return nil
}

// CreatePaymentTx appends a payment to an invoice.
func (s *Store) CreatePaymentTx(ctx context.Context, tx *sqlx.Tx, payment *models.InvoicePayment) error {
	query := `
		INSERT INTO invoice_payments (invoice_id, amount, payment_method, reference, note, paid_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := tx.GetContext(ctx, payment, query,
		payment.InvoiceID, payment.Amount, payment.PaymentMethod, payment.Reference,
		payment.Note, payment.PaidAt, payment.CreatedBy)
	if err != nil {
		return apperr.Internal("failed to create payment", err)
	}
	return nil
}

// SumPaymentsTx recomputes the cumulative paid amount for an invoice.
func (s *Store) SumPaymentsTx(ctx context.Context, tx *sqlx.Tx, invoiceID int64) (float64, error) {
	var total float64
	err := tx.GetContext(ctx, &total,
		"SELECT COALESCE(SUM(amount), 0) FROM invoice_payments WHERE invoice_id = $1", invoiceID)
	if err != nil {
		return 0, apperr.Internal("failed to sum payments", err)
	}
	return total, nil
}

// ListPayments retrieves all payments for an invoice
func (s *Store) ListPayments(ctx context.Context, invoiceID int64) ([]models.InvoicePayment, error) {
	var payments []models.InvoicePayment
	err := s.db.SelectContext(ctx, &payments,
		"SELECT * FROM invoice_payments WHERE invoice_id = $1 ORDER BY paid_at, id", invoiceID)
	if err != nil {
		return nil, apperr.Internal("failed to load payments", err)
	}
	return payments, nil
}

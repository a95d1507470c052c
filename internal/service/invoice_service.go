package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pharmamarket/internal/apperr"
	"pharmamarket/internal/models"
	"pharmamarket/internal/notify"
	"pharmamarket/internal/store"
	"pharmamarket/internal/util"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// InvoiceService reconciles invoices against their accumulated payments.
// It never mutates amount/commission/net_amount outside the explicit
// administrative update.
type InvoiceService struct {
	store    *store.Store
	notifier notify.Notifier
	logger   *zap.Logger
}

// NewInvoiceService creates a new invoice service
func NewInvoiceService(store *store.Store, notifier notify.Notifier) *InvoiceService {
	return &InvoiceService{
		store:    store,
		notifier: notifier,
		logger:   util.GetLogger(),
	}
}

// deriveInvoiceStatus recomputes an invoice's status from its cumulative
// payments. Cancelled is sticky and never recomputed away.
func deriveInvoiceStatus(totalPaid, targetAmount float64, current string) string {
	if current == models.InvoiceStatusCancelled {
		return models.InvoiceStatusCancelled
	}
	if totalPaid >= targetAmount && targetAmount > 0 {
		return models.InvoiceStatusPaid
	}
	return models.InvoiceStatusPending
}

// RecordPaymentRequest represents a payment against an invoice.
type RecordPaymentRequest struct {
	Amount        float64    `json:"amount"`
	PaymentMethod string     `json:"payment_method,omitempty"`
	Reference     string     `json:"reference,omitempty"`
	Note          string     `json:"note,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
}

// RecordPayment appends a payment and re-derives the invoice status from the
// new cumulative total, all in one transaction.
func (s *InvoiceService) RecordPayment(ctx context.Context, actor models.Actor, invoiceID int64, req *RecordPaymentRequest) error {
	ctx, span := util.StartSpan(ctx, "InvoiceService.RecordPayment")
	defer span.End()

	if req.Amount <= 0 {
		return apperr.Validation("amount", "payment amount must be positive")
	}

	// Resolve the parent order first so locks are always taken in
	// order -> invoice order, matching the status-change path.
	current, err := s.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return err
	}

	var (
		invoice *models.Invoice
		order   *models.Order
		hooks   notify.Hooks
	)

	err = s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		order, err = s.store.GetOrderTx(ctx, tx, current.OrderID)
		if err != nil {
			return err
		}
		invoice, err = s.store.GetInvoiceByOrderTx(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		if err := authorizeParty(actor, order); err != nil {
			return err
		}
		if invoice.Status == models.InvoiceStatusCancelled {
			return apperr.InvoiceCancelled(invoice.ID)
		}

		paidAt := time.Now()
		if req.PaidAt != nil {
			paidAt = *req.PaidAt
		}
		payment := &models.InvoicePayment{
			InvoiceID:     invoice.ID,
			Amount:        req.Amount,
			PaymentMethod: req.PaymentMethod,
			Reference:     req.Reference,
			Note:          req.Note,
			PaidAt:        paidAt,
			CreatedBy:     actor.UserID,
		}
		if err := s.store.CreatePaymentTx(ctx, tx, payment); err != nil {
			return err
		}

		totalPaid, err := s.store.SumPaymentsTx(ctx, tx, invoice.ID)
		if err != nil {
			return err
		}

		if err := s.syncStatusTx(ctx, tx, invoice, totalPaid); err != nil {
			return err
		}

		event := &models.OrderEvent{
			OrderID:     order.ID,
			EventType:   models.EventInvoicePayment,
			ActorUserID: actor.UserID,
			ActorRole:   actor.Role,
			Message:     fmt.Sprintf("payment of %.2f recorded", req.Amount),
		}
		return appendEventWithMeta(ctx, s.store, tx, event, map[string]any{
			"invoice_id":     invoice.ID,
			"amount":         req.Amount,
			"total_paid":     totalPaid,
			"invoice_status": invoice.Status,
		})
	})
	if err != nil {
		return err
	}

	util.PaymentsRecordedTotal.Inc()
	s.logger.Info("payment recorded",
		zap.Int64("invoice_id", invoiceID),
		zap.Float64("amount", req.Amount),
		zap.String("invoice_status", invoice.Status))

	hooks.Add(func(ctx context.Context) error {
		return s.notifier.Notify(ctx, order.WarehouseID, models.NotifyPaymentPosted,
			fmt.Sprintf("Payment of %.2f recorded for invoice #%d", req.Amount, invoice.ID),
			invoice.ID, map[string]any{"invoice_status": invoice.Status})
	})
	s.runPostCommit(&hooks)

	return nil
}

// UpdateAmountsRequest is the administrative amount correction.
type UpdateAmountsRequest struct {
	Amount     float64 `json:"amount"`
	Commission float64 `json:"commission"`
}

// UpdateAmounts rewrites an invoice's amounts, keeping net_amount equal to
// amount + commission, then re-derives the status from existing payments.
// Admin only.
func (s *InvoiceService) UpdateAmounts(ctx context.Context, actor models.Actor, invoiceID int64, req *UpdateAmountsRequest) error {
	ctx, span := util.StartSpan(ctx, "InvoiceService.UpdateAmounts")
	defer span.End()

	if actor.Role != models.RoleAdmin {
		return apperr.Forbidden("only admins can edit invoice amounts")
	}
	if req.Amount < 0 || req.Commission < 0 {
		return apperr.Validation("amount", "amounts must be non-negative")
	}

	return s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		invoice, err := s.store.GetInvoiceTx(ctx, tx, invoiceID)
		if err != nil {
			return err
		}

		invoice.Amount = req.Amount
		invoice.Commission = req.Commission
		invoice.NetAmount = req.Amount + req.Commission
		if err := s.store.UpdateInvoiceAmountsTx(ctx, tx, invoice); err != nil {
			return err
		}

		totalPaid, err := s.store.SumPaymentsTx(ctx, tx, invoice.ID)
		if err != nil {
			return err
		}
		if err := s.syncStatusTx(ctx, tx, invoice, totalPaid); err != nil {
			return err
		}

		event := &models.OrderEvent{
			OrderID:     invoice.OrderID,
			EventType:   models.EventInvoicePayment,
			ActorUserID: actor.UserID,
			ActorRole:   actor.Role,
			Message:     "invoice amounts updated",
		}
		return appendEventWithMeta(ctx, s.store, tx, event, map[string]any{
			"invoice_id": invoice.ID,
			"amount":     invoice.Amount,
			"commission": invoice.Commission,
			"net_amount": invoice.NetAmount,
		})
	})
}

// GetInvoice retrieves an invoice, ownership-checked via its order.
func (s *InvoiceService) GetInvoice(ctx context.Context, actor models.Actor, invoiceID int64) (*models.Invoice, error) {
	invoice, err := s.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	order, err := s.store.GetOrder(ctx, invoice.OrderID)
	if err != nil {
		return nil, err
	}
	if err := authorizeParty(actor, order); err != nil {
		return nil, err
	}
	return invoice, nil
}

// ListPayments retrieves all payments for an invoice, ownership-checked.
func (s *InvoiceService) ListPayments(ctx context.Context, actor models.Actor, invoiceID int64) ([]models.InvoicePayment, error) {
	if _, err := s.GetInvoice(ctx, actor, invoiceID); err != nil {
		return nil, err
	}
	return s.store.ListPayments(ctx, invoiceID)
}

// syncStatusTx persists the derived status when it differs from the current
// one, with paid_at housekeeping: paid sets it, reverting to pending clears
// it.
func (s *InvoiceService) syncStatusTx(ctx context.Context, tx *sqlx.Tx, invoice *models.Invoice, totalPaid float64) error {
	newStatus := deriveInvoiceStatus(totalPaid, invoice.TargetAmount(), invoice.Status)
	if newStatus == invoice.Status {
		return nil
	}

	invoice.Status = newStatus
	switch newStatus {
	case models.InvoiceStatusPaid:
		invoice.PaidAt = sql.NullTime{Time: time.Now(), Valid: true}
		invoice.CancelledAt = sql.NullTime{}
		util.InvoicesSettledTotal.Inc()
	case models.InvoiceStatusPending:
		invoice.PaidAt = sql.NullTime{}
	}
	return s.store.UpdateInvoiceStatusTx(ctx, tx, invoice)
}

func (s *InvoiceService) runPostCommit(hooks *notify.Hooks) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), postCommitTimeout)
		defer cancel()
		hooks.Run(ctx)
	}()
}

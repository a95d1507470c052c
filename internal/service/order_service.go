package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pharmamarket/internal/apperr"
	"pharmamarket/internal/models"
	"pharmamarket/internal/notify"
	"pharmamarket/internal/pricing"
	"pharmamarket/internal/redisclient"
	"pharmamarket/internal/store"
	"pharmamarket/internal/util"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Settings holds the process-wide business knobs, read once at startup and
// passed in explicitly rather than pulled from the environment inside
// operations.
type Settings struct {
	CommissionRate float64
	CancelWindow   time.Duration
}

// OrderService owns the order lifecycle: creation, status transitions,
// cancellation and the audit timeline.
type OrderService struct {
	store    *store.Store
	cache    *redisclient.Client
	notifier notify.Notifier
	settings Settings
	logger   *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(store *store.Store, cache *redisclient.Client, notifier notify.Notifier, settings Settings) *OrderService {
	return &OrderService{
		store:    store,
		cache:    cache,
		notifier: notifier,
		settings: settings,
		logger:   util.GetLogger(),
	}
}

// Legal order status transitions. Terminal states have no outgoing edges.
var orderTransitions = map[string][]string{
	models.OrderStatusPending:    {models.OrderStatusProcessing, models.OrderStatusCancelled},
	models.OrderStatusProcessing: {models.OrderStatusShipped, models.OrderStatusCancelled},
	models.OrderStatusShipped:    {models.OrderStatusDelivered},
	models.OrderStatusDelivered:  {},
	models.OrderStatusCancelled:  {},
}

// ValidateTransition rejects any from->to pair not present in the transition
// table.
func ValidateTransition(from, to string) error {
	for _, next := range orderTransitions[from] {
		if next == to {
			return nil
		}
	}
	return apperr.InvalidTransition(from, to)
}

// cancelDeadline resolves the pharmacy cancellation deadline. Legacy rows
// carry cancellable_until <= created_at; those get the window re-applied from
// created_at.
func cancelDeadline(createdAt, cancellableUntil time.Time, window time.Duration) time.Time {
	if !cancellableUntil.After(createdAt) {
		return createdAt.Add(window)
	}
	return cancellableUntil
}

// CreateOrderRequest represents a request to create an order
type CreateOrderRequest struct {
	WarehouseID          int64              `json:"warehouse_id"`
	Items                []OrderItemRequest `json:"items"`
	Note                 string             `json:"note,omitempty"`
	ExpectedDeliveryDate *time.Time         `json:"expected_delivery_date,omitempty"`
}

// OrderItemRequest represents an item in an order
type OrderItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// CreateOrder places a pharmacy order against a warehouse. Stock decrement,
// order, items, invoice and the audit event all land in one transaction; the
// warehouse notification fires only after commit.
func (s *OrderService) CreateOrder(ctx context.Context, actor models.Actor, req *CreateOrderRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	if actor.Role != models.RolePharmacy {
		return nil, apperr.Forbidden("only pharmacies can place orders")
	}
	if req.WarehouseID <= 0 {
		return nil, apperr.Validation("warehouse_id", "warehouse id is required")
	}
	if len(req.Items) == 0 {
		return nil, apperr.Validation("items", "order must contain at least one item")
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, apperr.Validation("items", "item quantity must be positive").
				With("product_id", item.ProductID)
		}
	}

	var (
		order *models.Order
		hooks notify.Hooks
	)

	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		now := time.Now()
		total := 0.0
		quotes := make([]pricing.Quote, len(req.Items))

		for i, item := range req.Items {
			product, err := s.store.GetProductTx(ctx, tx, item.ProductID)
			if err != nil {
				return err
			}
			if product.WarehouseID != req.WarehouseID {
				return apperr.NotFound("product", item.ProductID)
			}
			if err := validateOffer(product); err != nil {
				return err
			}

			if err := s.store.DecrementStockTx(ctx, tx, product.ID, item.Quantity); err != nil {
				return err
			}

			quotes[i] = pricing.Calculate(
				product.Price, clampDiscount(product.DiscountPercent),
				product.BonusBuyQuantity, product.BonusFreeQuantity, item.Quantity)
			total += quotes[i].LineTotal
		}

		order = &models.Order{
			PharmacyID:       actor.UserID,
			WarehouseID:      req.WarehouseID,
			Status:           models.OrderStatusPending,
			TotalAmount:      total,
			Commission:       total * s.settings.CommissionRate,
			CancellableUntil: now.Add(s.settings.CancelWindow),
			PharmacyNote:     req.Note,
		}
		if req.ExpectedDeliveryDate != nil {
			order.ExpectedDeliveryDate = sql.NullTime{Time: *req.ExpectedDeliveryDate, Valid: true}
		}
		if err := s.store.CreateOrderTx(ctx, tx, order); err != nil {
			return err
		}

		for i, item := range req.Items {
			orderItem := &models.OrderItem{
				OrderID:   order.ID,
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Price:     quotes[i].EffectiveUnitPrice,
			}
			if err := s.store.CreateOrderItemTx(ctx, tx, orderItem); err != nil {
				return err
			}
		}

		invoice := &models.Invoice{
			OrderID:    order.ID,
			Amount:     total,
			Commission: order.Commission,
			NetAmount:  total + order.Commission,
			Status:     models.InvoiceStatusPending,
		}
		if err := s.store.CreateInvoiceTx(ctx, tx, invoice); err != nil {
			return err
		}

		return s.appendEvent(ctx, tx, &models.OrderEvent{
			OrderID:     order.ID,
			EventType:   models.EventOrderCreated,
			ToStatus:    models.OrderStatusPending,
			ActorUserID: actor.UserID,
			ActorRole:   actor.Role,
			Message:     "order created",
		}, map[string]any{
			"total_amount": total,
			"commission":   order.Commission,
			"item_count":   len(req.Items),
		})
	})
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues(string(apperr.KindOf(err))).Inc()
		return nil, err
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("order created",
		zap.Int64("order_id", order.ID),
		zap.Int64("pharmacy_id", actor.UserID),
		zap.Float64("total", order.TotalAmount))

	hooks.Add(func(ctx context.Context) error {
		return s.notifier.Notify(ctx, order.WarehouseID, models.NotifyOrderCreated,
			fmt.Sprintf("New order #%d received", order.ID), order.ID,
			map[string]any{"total_amount": order.TotalAmount})
	})
	s.runPostCommit(&hooks)

	return order, nil
}

// ChangeStatus applies a warehouse-driven status transition. Cancellation
// restores stock and cancels the invoice; delivery force-settles it.
func (s *OrderService) ChangeStatus(ctx context.Context, actor models.Actor, orderID int64, newStatus string) error {
	ctx, span := util.StartSpan(ctx, "OrderService.ChangeStatus")
	defer span.End()

	var (
		order *models.Order
		hooks notify.Hooks
	)

	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		order, err = s.store.GetOrderTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.IsDeleted {
			return apperr.Forbidden("order has been deleted")
		}
		if err := authorizeWarehouse(actor, order); err != nil {
			return err
		}
		if err := ValidateTransition(order.Status, newStatus); err != nil {
			return err
		}

		switch newStatus {
		case models.OrderStatusCancelled:
			if err := s.restoreOrderStock(ctx, tx, order.ID); err != nil {
				return err
			}
			if err := s.cancelInvoice(ctx, tx, order.ID); err != nil {
				return err
			}
		case models.OrderStatusDelivered:
			if err := s.settleInvoice(ctx, tx, order.ID); err != nil {
				return err
			}
		}

		if err := s.store.UpdateOrderStatusTx(ctx, tx, order.ID, newStatus); err != nil {
			return err
		}

		return s.appendEvent(ctx, tx, &models.OrderEvent{
			OrderID:     order.ID,
			EventType:   models.EventOrderStatusChanged,
			FromStatus:  order.Status,
			ToStatus:    newStatus,
			ActorUserID: actor.UserID,
			ActorRole:   actor.Role,
			Message:     fmt.Sprintf("order status changed from %s to %s", order.Status, newStatus),
		}, nil)
	})
	if err != nil {
		return err
	}

	util.OrderTransitionsTotal.WithLabelValues(newStatus).Inc()
	s.logger.Info("order status changed",
		zap.Int64("order_id", orderID),
		zap.String("from", order.Status),
		zap.String("to", newStatus))

	hooks.Add(func(ctx context.Context) error {
		return s.notifier.Notify(ctx, order.PharmacyID, models.NotifyOrderStatus,
			fmt.Sprintf("Order #%d is now %s", order.ID, newStatus), order.ID,
			map[string]any{"status": newStatus})
	})
	hooks.Add(func(ctx context.Context) error {
		return s.cache.InvalidateOrder(ctx, order.ID)
	})
	s.runPostCommit(&hooks)

	return nil
}

// CancelOrder soft-deletes a pending order. Pharmacy actors are bound by the
// cancellation window; the warehouse and admins are not. The row survives
// for audit.
func (s *OrderService) CancelOrder(ctx context.Context, actor models.Actor, orderID int64) error {
	ctx, span := util.StartSpan(ctx, "OrderService.CancelOrder")
	defer span.End()

	var (
		order *models.Order
		hooks notify.Hooks
	)

	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		order, err = s.store.GetOrderTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.IsDeleted {
			return apperr.Forbidden("order has already been deleted")
		}
		if err := authorizeParty(actor, order); err != nil {
			return err
		}

		now := time.Now()
		if err := validateSoftDelete(order, actor, now, s.settings.CancelWindow); err != nil {
			return err
		}

		if err := s.restoreOrderStock(ctx, tx, order.ID); err != nil {
			return err
		}
		if err := s.cancelInvoice(ctx, tx, order.ID); err != nil {
			return err
		}
		if err := s.store.SoftDeleteOrderTx(ctx, tx, order.ID, now); err != nil {
			return err
		}

		return s.appendEvent(ctx, tx, &models.OrderEvent{
			OrderID:     order.ID,
			EventType:   models.EventOrderDeleted,
			FromStatus:  order.Status,
			ToStatus:    models.OrderStatusCancelled,
			ActorUserID: actor.UserID,
			ActorRole:   actor.Role,
			Message:     "order cancelled",
		}, map[string]any{"soft_delete": true})
	})
	if err != nil {
		return err
	}

	util.OrdersCancelledTotal.Inc()
	s.logger.Info("order cancelled",
		zap.Int64("order_id", orderID),
		zap.String("actor_role", actor.Role))

	hooks.Add(func(ctx context.Context) error {
		return s.notifier.Notify(ctx, order.WarehouseID, models.NotifyOrderDeleted,
			fmt.Sprintf("Order #%d was cancelled", order.ID), order.ID, nil)
	})
	hooks.Add(func(ctx context.Context) error {
		return s.cache.InvalidateOrder(ctx, order.ID)
	})
	s.runPostCommit(&hooks)

	return nil
}

// UpdateNotesRequest carries the authorization-gated field mutations.
type UpdateNotesRequest struct {
	PharmacyNote         *string    `json:"pharmacy_note,omitempty"`
	WarehouseNote        *string    `json:"warehouse_note,omitempty"`
	ExpectedDeliveryDate *time.Time `json:"expected_delivery_date,omitempty"`
}

// UpdateNotes mutates notes and the expected delivery date. The pharmacy may
// set its own note; the warehouse its own note and the delivery date. Status
// never changes here.
func (s *OrderService) UpdateNotes(ctx context.Context, actor models.Actor, orderID int64, req *UpdateNotesRequest) error {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateNotes")
	defer span.End()

	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		order, err := s.store.GetOrderTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.IsDeleted {
			return apperr.Forbidden("order has been deleted")
		}
		if err := authorizeParty(actor, order); err != nil {
			return err
		}

		changed := map[string]any{}
		if req.PharmacyNote != nil {
			if actor.Role == models.RoleWarehouse {
				return apperr.Forbidden("warehouse cannot edit the pharmacy note")
			}
			order.PharmacyNote = *req.PharmacyNote
			changed["pharmacy_note"] = *req.PharmacyNote
		}
		if req.WarehouseNote != nil {
			if actor.Role == models.RolePharmacy {
				return apperr.Forbidden("pharmacy cannot edit the warehouse note")
			}
			order.WarehouseNote = *req.WarehouseNote
			changed["warehouse_note"] = *req.WarehouseNote
		}
		if req.ExpectedDeliveryDate != nil {
			if actor.Role == models.RolePharmacy {
				return apperr.Forbidden("pharmacy cannot set the expected delivery date")
			}
			order.ExpectedDeliveryDate = sql.NullTime{Time: *req.ExpectedDeliveryDate, Valid: true}
			changed["expected_delivery_date"] = req.ExpectedDeliveryDate.Format(time.RFC3339)
		}
		if len(changed) == 0 {
			return apperr.Validation("body", "no fields to update")
		}

		if err := s.store.UpdateOrderNotesTx(ctx, tx, order); err != nil {
			return err
		}

		return s.appendEvent(ctx, tx, &models.OrderEvent{
			OrderID:     order.ID,
			EventType:   models.EventOrderNoteUpdated,
			ActorUserID: actor.UserID,
			ActorRole:   actor.Role,
			Message:     "order details updated",
		}, changed)
	})
	if err != nil {
		return err
	}
	if cerr := s.cache.InvalidateOrder(ctx, orderID); cerr != nil {
		s.logger.Warn("order cache invalidation failed", zap.Int64("order_id", orderID), zap.Error(cerr))
	}
	return nil
}

// GetOrder retrieves an order with its items, ownership-checked. The order
// row is served read-through from the cache; every transition invalidates
// the cached copy.
func (s *OrderService) GetOrder(ctx context.Context, actor models.Actor, orderID int64) (*models.Order, []models.OrderItem, error) {
	order, err := s.cache.GetCachedOrder(ctx, orderID)
	if err != nil {
		s.logger.Warn("order cache read failed", zap.Int64("order_id", orderID), zap.Error(err))
		order = nil
	}
	if order == nil {
		order, err = s.store.GetOrder(ctx, orderID)
		if err != nil {
			return nil, nil, err
		}
		if err := s.cache.CacheOrder(ctx, order, orderCacheTTL); err != nil {
			s.logger.Warn("order cache write failed", zap.Int64("order_id", orderID), zap.Error(err))
		}
	}
	if err := authorizeParty(actor, order); err != nil {
		return nil, nil, err
	}

	items, err := s.store.GetOrderItems(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	return order, items, nil
}

// ListOrders returns the actor's orders: placed orders for a pharmacy,
// received orders for a warehouse.
func (s *OrderService) ListOrders(ctx context.Context, actor models.Actor) ([]models.Order, error) {
	switch actor.Role {
	case models.RolePharmacy:
		return s.store.ListOrdersByPharmacy(ctx, actor.UserID)
	case models.RoleWarehouse:
		return s.store.ListOrdersByWarehouse(ctx, actor.UserID)
	case models.RoleAdmin:
		return s.store.ListOrders(ctx)
	default:
		return nil, apperr.Forbidden("unknown role")
	}
}

// GetTimeline reconstructs the order's audit timeline. Legacy orders with no
// events get a single bootstrap order_created event persisted first, stamped
// with the order's own created_at, so the backfill happens only once.
func (s *OrderService) GetTimeline(ctx context.Context, orderID int64) ([]models.OrderEvent, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetTimeline")
	defer span.End()

	var events []models.OrderEvent
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		order, err := s.store.GetOrderTx(ctx, tx, orderID)
		if err != nil {
			return err
		}

		count, err := s.store.CountEventsTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if count == 0 {
			bootstrap := &models.OrderEvent{
				OrderID:     order.ID,
				EventType:   models.EventOrderCreated,
				ToStatus:    models.OrderStatusPending,
				ActorUserID: order.PharmacyID,
				ActorRole:   models.RolePharmacy,
				Message:     "order created",
			}
			if err := s.store.AppendBootstrapEventTx(ctx, tx, bootstrap, order.CreatedAt); err != nil {
				return err
			}
		}

		events, err = s.store.ListEventsTx(ctx, tx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// restoreOrderStock adds every order item's quantity back to its product.
func (s *OrderService) restoreOrderStock(ctx context.Context, tx *sqlx.Tx, orderID int64) error {
	items, err := s.store.GetOrderItemsTx(ctx, tx, orderID)
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := s.store.RestoreStockTx(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// cancelInvoice marks the companion invoice cancelled. Cancelled is sticky:
// the payment sync routine never moves it back.
func (s *OrderService) cancelInvoice(ctx context.Context, tx *sqlx.Tx, orderID int64) error {
	invoice, err := s.store.GetInvoiceByOrderTx(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if invoice.Status == models.InvoiceStatusCancelled {
		return nil
	}
	invoice.Status = models.InvoiceStatusCancelled
	invoice.CancelledAt = sql.NullTime{Time: time.Now(), Valid: true}
	invoice.PaidAt = sql.NullTime{}
	return s.store.UpdateInvoiceStatusTx(ctx, tx, invoice)
}

// settleInvoice force-marks the companion invoice paid on delivery. Explicit
// partial payments recorded later still apply against the same invoice.
func (s *OrderService) settleInvoice(ctx context.Context, tx *sqlx.Tx, orderID int64) error {
	invoice, err := s.store.GetInvoiceByOrderTx(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if invoice.Status == models.InvoiceStatusCancelled {
		return nil
	}
	invoice.Status = models.InvoiceStatusPaid
	invoice.PaidAt = sql.NullTime{Time: time.Now(), Valid: true}
	invoice.CancelledAt = sql.NullTime{}
	if err := s.store.UpdateInvoiceStatusTx(ctx, tx, invoice); err != nil {
		return err
	}
	util.InvoicesSettledTotal.Inc()
	return nil
}

func (s *OrderService) appendEvent(ctx context.Context, tx *sqlx.Tx, event *models.OrderEvent, meta map[string]any) error {
	return appendEventWithMeta(ctx, s.store, tx, event, meta)
}

// runPostCommit fires the collected hooks off the request path. Hook
// failures are logged inside Run and never reach the caller.
func (s *OrderService) runPostCommit(hooks *notify.Hooks) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), postCommitTimeout)
		defer cancel()
		hooks.Run(ctx)
	}()
}

// validateSoftDelete gates the soft-delete path. Only pending orders qualify;
// anything further along must go through the warehouse status transitions.
// Pharmacy actors are additionally bound by the cancellation window.
func validateSoftDelete(order *models.Order, actor models.Actor, now time.Time, window time.Duration) error {
	if order.Status != models.OrderStatusPending {
		return apperr.Validation("status", "only pending orders can be cancelled").
			With("order_status", order.Status)
	}
	if actor.Role == models.RolePharmacy {
		deadline := cancelDeadline(order.CreatedAt, order.CancellableUntil, window)
		if now.After(deadline) {
			return apperr.WindowExpired(order.ID)
		}
	}
	return nil
}

// validateOffer rejects a bonus rule supplied with only one side of the
// pair.
func validateOffer(p *models.Product) error {
	if (p.BonusBuyQuantity > 0) != (p.BonusFreeQuantity > 0) {
		return apperr.Validation("bonus", "bonus buy and free quantities must be supplied together").
			With("product_id", p.ID)
	}
	if p.BonusBuyQuantity < 0 || p.BonusFreeQuantity < 0 {
		return apperr.Validation("bonus", "bonus quantities must be non-negative").
			With("product_id", p.ID)
	}
	return nil
}

func clampDiscount(d float64) float64 {
	if d < 0 {
		return 0
	}
	if d > 100 {
		return 100
	}
	return d
}

// authorizeWarehouse permits the owning warehouse or an admin.
func authorizeWarehouse(actor models.Actor, order *models.Order) error {
	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleWarehouse:
		if actor.UserID != order.WarehouseID {
			return apperr.Forbidden("order belongs to another warehouse")
		}
		return nil
	default:
		return apperr.Forbidden("only the warehouse can change order status")
	}
}

// authorizeParty permits either side of the order or an admin.
func authorizeParty(actor models.Actor, order *models.Order) error {
	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RolePharmacy:
		if actor.UserID != order.PharmacyID {
			return apperr.Forbidden("order belongs to another pharmacy")
		}
		return nil
	case models.RoleWarehouse:
		if actor.UserID != order.WarehouseID {
			return apperr.Forbidden("order belongs to another warehouse")
		}
		return nil
	default:
		return apperr.Forbidden("unknown role")
	}
}

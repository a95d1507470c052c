package service

import (
	"context"
	"fmt"

	"pharmamarket/internal/apperr"
	"pharmamarket/internal/models"
	"pharmamarket/internal/notify"
	"pharmamarket/internal/store"
	"pharmamarket/internal/util"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// ReturnService owns the return request lifecycle.
type ReturnService struct {
	store    *store.Store
	notifier notify.Notifier
	logger   *zap.Logger
}

// NewReturnService creates a new return service
func NewReturnService(store *store.Store, notifier notify.Notifier) *ReturnService {
	return &ReturnService{
		store:    store,
		notifier: notifier,
		logger:   util.GetLogger(),
	}
}

// Legal return status transitions.
var returnTransitions = map[string][]string{
	models.ReturnStatusPending:   {models.ReturnStatusApproved, models.ReturnStatusRejected},
	models.ReturnStatusApproved:  {models.ReturnStatusCompleted},
	models.ReturnStatusRejected:  {},
	models.ReturnStatusCompleted: {},
}

// ValidateReturnTransition rejects any from->to pair not present in the
// return transition table.
func ValidateReturnTransition(from, to string) error {
	for _, next := range returnTransitions[from] {
		if next == to {
			return nil
		}
	}
	return apperr.InvalidReturnTransition(from, to)
}

// ReturnRequest represents a request to return order items
type ReturnRequest struct {
	OrderID int64               `json:"order_id"`
	Reason  string              `json:"reason"`
	Note    string              `json:"note,omitempty"`
	Items   []ReturnItemRequest `json:"items"`
}

// ReturnItemRequest represents an item in a return request
type ReturnItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// RequestReturn opens a return against a delivered order. One non-rejected
// return per order.
func (s *ReturnService) RequestReturn(ctx context.Context, actor models.Actor, req *ReturnRequest) (*models.Return, error) {
	ctx, span := util.StartSpan(ctx, "ReturnService.RequestReturn")
	defer span.End()

	if req.Reason == "" {
		return nil, apperr.Validation("reason", "return reason is required")
	}
	if len(req.Items) == 0 {
		return nil, apperr.Validation("items", "return must contain at least one item")
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, apperr.Validation("items", "item quantity must be positive").
				With("product_id", item.ProductID)
		}
	}

	var (
		ret   *models.Return
		hooks notify.Hooks
	)

	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		order, err := s.store.GetOrderTx(ctx, tx, req.OrderID)
		if err != nil {
			return err
		}
		if actor.Role != models.RoleAdmin {
			if actor.Role != models.RolePharmacy || actor.UserID != order.PharmacyID {
				return apperr.Forbidden("only the ordering pharmacy can request a return")
			}
		}
		if order.Status != models.OrderStatusDelivered {
			return apperr.Validation("order", "returns are only allowed for delivered orders").
				With("order_status", order.Status)
		}

		open, err := s.store.HasOpenReturnTx(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		if open {
			return apperr.AlreadyExists("order already has an open return").With("order_id", order.ID)
		}

		ordered := make(map[int64]int)
		items, err := s.store.GetOrderItemsTx(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		for _, item := range items {
			ordered[item.ProductID] = item.Quantity
		}
		for _, item := range req.Items {
			qty, ok := ordered[item.ProductID]
			if !ok {
				return apperr.Validation("items", "product is not part of the order").
					With("product_id", item.ProductID)
			}
			if item.Quantity > qty {
				return apperr.Validation("items", "return quantity exceeds ordered quantity").
					With("product_id", item.ProductID)
			}
		}

		ret = &models.Return{
			OrderID:     order.ID,
			PharmacyID:  order.PharmacyID,
			WarehouseID: order.WarehouseID,
			Reason:      req.Reason,
			Note:        req.Note,
			Status:      models.ReturnStatusPending,
		}
		if err := s.store.CreateReturnTx(ctx, tx, ret); err != nil {
			return err
		}

		for _, item := range req.Items {
			returnItem := &models.ReturnItem{
				ReturnID:  ret.ID,
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
			}
			if err := s.store.CreateReturnItemTx(ctx, tx, returnItem); err != nil {
				return err
			}
		}

		return s.appendReturnEvent(ctx, tx, actor, order.ID, ret.ID, "", ret.Status, "return requested")
	})
	if err != nil {
		return nil, err
	}

	util.ReturnsRequestedTotal.Inc()
	s.logger.Info("return requested",
		zap.Int64("return_id", ret.ID),
		zap.Int64("order_id", ret.OrderID))

	hooks.Add(func(ctx context.Context) error {
		return s.notifier.Notify(ctx, ret.WarehouseID, models.NotifyReturnCreated,
			fmt.Sprintf("Return requested for order #%d", ret.OrderID), ret.ID,
			map[string]any{"reason": ret.Reason})
	})
	s.runPostCommit(&hooks)

	return ret, nil
}

// ChangeStatus applies a return transition. Completion restores stock for
// every return item in the same transaction.
func (s *ReturnService) ChangeStatus(ctx context.Context, actor models.Actor, returnID int64, newStatus string) error {
	ctx, span := util.StartSpan(ctx, "ReturnService.ChangeStatus")
	defer span.End()

	var (
		ret   *models.Return
		hooks notify.Hooks
	)

	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		ret, err = s.store.GetReturnTx(ctx, tx, returnID)
		if err != nil {
			return err
		}
		if actor.Role != models.RoleAdmin {
			if actor.Role != models.RoleWarehouse || actor.UserID != ret.WarehouseID {
				return apperr.Forbidden("only the warehouse can change return status")
			}
		}
		if err := ValidateReturnTransition(ret.Status, newStatus); err != nil {
			return err
		}

		if newStatus == models.ReturnStatusCompleted {
			items, err := s.store.GetReturnItemsTx(ctx, tx, ret.ID)
			if err != nil {
				return err
			}
			for _, item := range items {
				if err := s.store.RestoreStockTx(ctx, tx, item.ProductID, item.Quantity); err != nil {
					return err
				}
			}
		}

		if err := s.store.UpdateReturnStatusTx(ctx, tx, ret.ID, newStatus); err != nil {
			return err
		}

		return s.appendReturnEvent(ctx, tx, actor, ret.OrderID, ret.ID, ret.Status, newStatus,
			fmt.Sprintf("return %s", newStatus))
	})
	if err != nil {
		return err
	}

	if newStatus == models.ReturnStatusCompleted {
		util.ReturnsCompletedTotal.Inc()
	}
	s.logger.Info("return status changed",
		zap.Int64("return_id", returnID),
		zap.String("from", ret.Status),
		zap.String("to", newStatus))

	hooks.Add(func(ctx context.Context) error {
		return s.notifier.Notify(ctx, ret.PharmacyID, models.NotifyReturnStatus,
			fmt.Sprintf("Return #%d is now %s", ret.ID, newStatus), ret.ID,
			map[string]any{"status": newStatus})
	})
	s.runPostCommit(&hooks)

	return nil
}

// GetReturn retrieves a return, ownership-checked.
func (s *ReturnService) GetReturn(ctx context.Context, actor models.Actor, returnID int64) (*models.Return, error) {
	ret, err := s.store.GetReturn(ctx, returnID)
	if err != nil {
		return nil, err
	}
	switch actor.Role {
	case models.RoleAdmin:
	case models.RolePharmacy:
		if actor.UserID != ret.PharmacyID {
			return nil, apperr.Forbidden("return belongs to another pharmacy")
		}
	case models.RoleWarehouse:
		if actor.UserID != ret.WarehouseID {
			return nil, apperr.Forbidden("return belongs to another warehouse")
		}
	default:
		return nil, apperr.Forbidden("unknown role")
	}
	return ret, nil
}

// appendReturnEvent records a return lifecycle change on the parent order's
// timeline, cross-referencing the return id in meta.
func (s *ReturnService) appendReturnEvent(ctx context.Context, tx *sqlx.Tx, actor models.Actor, orderID, returnID int64, from, to, message string) error {
	event := &models.OrderEvent{
		OrderID:     orderID,
		EventType:   models.EventReturnStatusChanged,
		FromStatus:  from,
		ToStatus:    to,
		ActorUserID: actor.UserID,
		ActorRole:   actor.Role,
		Message:     message,
	}
	meta := map[string]any{"return_id": returnID, "return_status": to}
	return appendEventWithMeta(ctx, s.store, tx, event, meta)
}

func (s *ReturnService) runPostCommit(hooks *notify.Hooks) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), postCommitTimeout)
		defer cancel()
		hooks.Run(ctx)
	}()
}

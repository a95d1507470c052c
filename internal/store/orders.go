package store

import (
	"context"
	"database/sql"
	"time"

	"pharmamarket/internal/apperr"
	"pharmamarket/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateOrderTx inserts a new order and fills in its generated fields.
func (s *Store) CreateOrderTx(ctx context.Context, tx *sqlx.Tx, order *models.Order) error {
	query := `
		INSERT INTO orders (pharmacy_id, warehouse_id, status, total_amount, commission,
			cancellable_until, expected_delivery_date, pharmacy_note, warehouse_note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	err := tx.GetContext(ctx, order, query,
		order.PharmacyID, order.WarehouseID, order.Status, order.TotalAmount,
		order.Commission, order.CancellableUntil, order.ExpectedDeliveryDate,
		order.PharmacyNote, order.WarehouseNote)
	if err != nil {
		return apperr.Internal("failed to create order", err)
	}
	return nil
}

// GetOrder retrieves an order by ID
func (s *Store) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	return getOrder(ctx, s.db, id)
}

// GetOrderTx retrieves an order inside a transaction with a row lock, so
// concurrent commands against the same order are linearized.
func (s *Store) GetOrderTx(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Order, error) {
	var order models.Order
	err := tx.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1 FOR UPDATE", id)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("order", id)
	}
	if err != nil {
		return nil, apperr.Internal("failed to load order", err)
	}
	return &order, nil
}

func getOrder(ctx context.Context, q sqlx.QueryerContext, id int64) (*models.Order, error) {
	var order models.Order
	err := sqlx.GetContext(ctx, q, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("order", id)
	}
	if err != nil {
		return nil, apperr.Internal("failed to load order", err)
	}
	return &order, nil
}

// UpdateOrderStatusTx updates order status
func (s *Store) UpdateOrderStatusTx(ctx context.Context, tx *sqlx.Tx, orderID int64, status string) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
		status, orderID)
	if err != nil {
		return apperr.Internal("failed to update order status", err)
	}
	return nil
}

// SoftDeleteOrderTx cancels and soft-deletes an order. The row is retained
// for audit, never physically removed.
func (s *Store) SoftDeleteOrderTx(ctx context.Context, tx *sqlx.Tx, orderID int64, deletedAt time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = $1, is_deleted = TRUE, deleted_at = $2, updated_at = NOW()
		 WHERE id = $3`,
		models.OrderStatusCancelled, deletedAt, orderID)
	if err != nil {
		return apperr.Internal("failed to soft delete order", err)
	}
	return nil
}

// UpdateOrderNotesTx persists note / expected delivery date mutations without
// touching status.
func (s *Store) UpdateOrderNotesTx(ctx context.Context, tx *sqlx.Tx, order *models.Order) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE orders SET pharmacy_note = $1, warehouse_note = $2,
			expected_delivery_date = $3, updated_at = NOW()
		 WHERE id = $4`,
		order.PharmacyNote, order.WarehouseNote, order.ExpectedDeliveryDate, order.ID)
	if err != nil {
		return apperr.Internal("failed to update order notes", err)
	}
	return nil
}

// ListOrdersByPharmacy retrieves orders placed by a pharmacy
func (s *Store) ListOrdersByPharmacy(ctx context.Context, pharmacyID int64) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE pharmacy_id = $1 ORDER BY created_at DESC", pharmacyID)
	return orders, err
}

// ListOrders retrieves all orders, newest first. Admin use only.
func (s *Store) ListOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders, "SELECT * FROM orders ORDER BY created_at DESC")
	return orders, err
}

// ListOrdersByWarehouse retrieves orders targeting a warehouse
func (s *Store) ListOrdersByWarehouse(ctx context.Context, warehouseID int64) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE warehouse_id = $1 ORDER BY created_at DESC", warehouseID)
	return orders, err
}

// CreateOrderItemTx inserts a new order item
func (s *Store) CreateOrderItemTx(ctx context.Context, tx *sqlx.Tx, item *models.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, product_id, quantity, price)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	err := tx.GetContext(ctx, &item.ID, query,
		item.OrderID, item.ProductID, item.Quantity, item.Price)
	if err != nil {
		return apperr.Internal("failed to create order item", err)
	}
	return nil
}

// GetOrderItems retrieves all items for an order
func (s *Store) GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	return getOrderItems(ctx, s.db, orderID)
}

// GetOrderItemsTx retrieves all items for an order inside a transaction
func (s *Store) GetOrderItemsTx(ctx context.Context, tx *sqlx.Tx, orderID int64) ([]models.OrderItem, error) {
	return getOrderItems(ctx, tx, orderID)
}

func getOrderItems(ctx context.Context, q sqlx.QueryerContext, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := sqlx.SelectContext(ctx, q, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	if err != nil {
		return nil, apperr.Internal("failed to load order items", err)
	}
	return items, nil
}

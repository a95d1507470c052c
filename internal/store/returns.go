package store

import (
	"context"
	"database/sql"

	"pharmamarket/internal/apperr"
	"pharmamarket/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateReturnTx inserts a new return request.
func (s *Store) CreateReturnTx(ctx context.Context, tx *sqlx.Tx, ret *models.Return) error {
	query := `
		INSERT INTO returns (order_id, pharmacy_id, warehouse_id, reason, note, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	err := tx.GetContext(ctx, ret, query,
		ret.OrderID, ret.PharmacyID, ret.WarehouseID, ret.Reason, ret.Note, ret.Status)
	if err != nil {
		return apperr.Internal("failed to create return", err)
	}
	return nil
}

// GetReturn retrieves a return by ID
func (s *Store) GetReturn(ctx context.Context, id int64) (*models.Return, error) {
	var ret models.Return
	err := s.db.GetContext(ctx, &ret, "SELECT * FROM returns WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("return", id)
	}
	if err != nil {
		return nil, apperr.Internal("failed to load return", err)
	}
	return &ret, nil
}

// GetReturnTx retrieves a return inside a transaction with a row lock.
func (s *Store) GetReturnTx(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Return, error) {
	var ret models.Return
	err := tx.GetContext(ctx, &ret, "SELECT * FROM returns WHERE id = $1 FOR UPDATE", id)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("return", id)
	}
	if err != nil {
		return nil, apperr.Internal("failed to load return", err)
	}
	return &ret, nil
}

// HasOpenReturnTx reports whether the order already has a return that was not
// rejected. One active return per order.
func (s *Store) HasOpenReturnTx(ctx context.Context, tx *sqlx.Tx, orderID int64) (bool, error) {
	var exists bool
	err := tx.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM returns WHERE order_id = $1 AND status != $2)",
		orderID, models.ReturnStatusRejected)
	if err != nil {
		return false, apperr.Internal("failed to check existing returns", err)
	}
	return exists, nil
}

// UpdateReturnStatusTx updates return status
func (s *Store) UpdateReturnStatusTx(ctx context.Context, tx *sqlx.Tx, returnID int64, status string) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE returns SET status = $1, updated_at = NOW() WHERE id = $2",
		status, returnID)
	if err != nil {
		return apperr.Internal("failed to update return status", err)
	}
	return nil
}

// CreateReturnItemTx inserts a new return item
func (s *Store) CreateReturnItemTx(ctx context.Context, tx *sqlx.Tx, item *models.ReturnItem) error {
	query := `
		INSERT INTO return_items (return_id, product_id, quantity)
		VALUES ($1, $2, $3)
		RETURNING id`

	err := tx.GetContext(ctx, &item.ID, query,
		item.ReturnID, item.ProductID, item.Quantity)
	if err != nil {
		return apperr.Internal("failed to create return item", err)
	}
	return nil
}

// GetReturnItemsTx retrieves all items for a return inside a transaction
func (s *Store) GetReturnItemsTx(ctx context.Context, tx *sqlx.Tx, returnID int64) ([]models.ReturnItem, error) {
	var items []models.ReturnItem
	err := tx.SelectContext(ctx, &items,
		"SELECT * FROM return_items WHERE return_id = $1 ORDER BY id", returnID)
	if err != nil {
		return nil, apperr.Internal("failed to load return items", err)
	}
	return items, nil
}

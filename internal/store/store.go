package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pharmamarket/internal/apperr"
	"pharmamarket/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// WithTx runs fn inside a single transaction. Every multi-row mutation
// (order creation, status change with inventory/invoice side effects, return
// completion) goes through here so partial writes never persist.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperr.Internal("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperr.Internal("failed to commit transaction", err)
	}
	return nil
}

// GetProductTx retrieves a product inside a transaction
func (s *Store) GetProductTx(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Product, error) {
	var product models.Product
	err := tx.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("product", id)
	}
	if err != nil {
		return nil, apperr.Internal("failed to load product", err)
	}
	return &product, nil
}

// DecrementStockTx conditionally decrements product stock. The guard in the
// WHERE clause is what keeps concurrent orders from overselling; zero rows
// affected surfaces as InsufficientStock.
func (s *Store) DecrementStockTx(ctx context.Context, tx *sqlx.Tx, productID int64, quantity int) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE products SET quantity = quantity - $1 WHERE id = $2 AND quantity >= $1",
		quantity, productID)
	if err != nil {
		return apperr.Internal("failed to decrement stock", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return apperr.Internal("failed to decrement stock", err)
	}
	if affected == 0 {
		return apperr.InsufficientStock(productID, quantity)
	}
	return nil
}

// RestoreStockTx adds quantity back to a product's stock.
func (s *Store) RestoreStockTx(ctx context.Context, tx *sqlx.Tx, productID int64, quantity int) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE products SET quantity = quantity + $1 WHERE id = $2",
		quantity, productID)
	if err != nil {
		return apperr.Internal("failed to restore stock", err)
	}
	return nil
}

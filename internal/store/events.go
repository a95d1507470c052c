package store

import (
	"context"
	"time"

	"pharmamarket/internal/apperr"
	"pharmamarket/internal/models"

	"github.com/jmoiron/sqlx"
)

// AppendEventTx appends one audit event. Every state-changing operation
// appends exactly one; related facts go in the meta payload.
func (s *Store) AppendEventTx(ctx context.Context, tx *sqlx.Tx, event *models.OrderEvent) error {
	query := `
		INSERT INTO order_events (order_id, event_type, from_status, to_status,
			actor_user_id, actor_role, message, meta)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	err := tx.GetContext(ctx, event, query,
		event.OrderID, event.EventType, event.FromStatus, event.ToStatus,
		event.ActorUserID, event.ActorRole, event.Message, event.Meta)
	if err != nil {
		return apperr.Internal("failed to append order event", err)
	}
	return nil
}

// AppendBootstrapEventTx backfills a synthesized order_created event stamped
// with the order's own created_at. Used once per legacy order that predates
// the event log.
func (s *Store) AppendBootstrapEventTx(ctx context.Context, tx *sqlx.Tx, event *models.OrderEvent, createdAt time.Time) error {
	query := `
		INSERT INTO order_events (order_id, event_type, from_status, to_status,
			actor_user_id, actor_role, message, meta, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`

	err := tx.GetContext(ctx, event, query,
		event.OrderID, event.EventType, event.FromStatus, event.ToStatus,
		event.ActorUserID, event.ActorRole, event.Message, event.Meta, createdAt)
	if err != nil {
		return apperr.Internal("failed to append bootstrap event", err)
	}
	return nil
}

// ListEventsTx returns the order's timeline in (created_at ASC, id ASC)
// order.
func (s *Store) ListEventsTx(ctx context.Context, tx *sqlx.Tx, orderID int64) ([]models.OrderEvent, error) {
	return listEvents(ctx, tx, orderID)
}

// ListEvents returns the order's timeline in (created_at ASC, id ASC) order.
func (s *Store) ListEvents(ctx context.Context, orderID int64) ([]models.OrderEvent, error) {
	return listEvents(ctx, s.db, orderID)
}

func listEvents(ctx context.Context, q sqlx.QueryerContext, orderID int64) ([]models.OrderEvent, error) {
	var events []models.OrderEvent
	err := sqlx.SelectContext(ctx, q, &events,
		"SELECT * FROM order_events WHERE order_id = $1 ORDER BY created_at ASC, id ASC", orderID)
	if err != nil {
		return nil, apperr.Internal("failed to load order events", err)
	}
	return events, nil
}

// CountEventsTx counts events for an order inside a transaction.
func (s *Store) CountEventsTx(ctx context.Context, tx *sqlx.Tx, orderID int64) (int64, error) {
	var count int64
	err := tx.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM order_events WHERE order_id = $1", orderID)
	if err != nil {
		return 0, apperr.Internal("failed to count order events", err)
	}
	return count, nil
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreatePendingOrder records the link between an issued payment order and the
// user who requested it. The row must exist before the payment link is handed
// to the user, so a webhook arriving after a restart still resolves.
func (s *Store) CreatePendingOrder(ctx context.Context, orderID string, userID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_orders (order_id, user_id, created_at)
		VALUES (?, ?, ?)
	`, orderID, userID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to create pending order: %w", err)
	}
	return nil
}

// ConsumePendingOrder resolves an order to its user and deletes the row in
// the same transaction, so each order is consumed exactly once. The second
// return value is false when the order is unknown or already consumed.
func (s *Store) ConsumePendingOrder(ctx context.Context, orderID string) (int64, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var userID int64
	err = tx.QueryRowContext(ctx,
		"SELECT user_id FROM pending_orders WHERE order_id = ?", orderID,
	).Scan(&userID)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to look up pending order: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM pending_orders WHERE order_id = ?", orderID); err != nil {
		return 0, false, fmt.Errorf("failed to consume pending order: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("failed to commit order consumption: %w", err)
	}

	return userID, true, nil
}

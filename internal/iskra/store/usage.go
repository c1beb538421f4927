package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// GetUsage returns the number of free messages the user has consumed.
// A user with no counter row has consumed zero.
func (s *Store) GetUsage(ctx context.Context, userID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT count FROM usage_counters WHERE user_id = ?", userID,
	).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get usage counter: %w", err)
	}
	return count, nil
}

// IncrementUsage adds one to the user's counter, creating the row lazily on
// first use, and returns the new count.
func (s *Store) IncrementUsage(ctx context.Context, userID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO usage_counters (user_id, count, updated_at)
		VALUES (?, 1, ?)
		ON CONFLICT(user_id) DO UPDATE SET count = count + 1, updated_at = excluded.updated_at
		RETURNING count
	`, userID, time.Now()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to increment usage counter: %w", err)
	}
	return count, nil
}

// ResetUsage sets the user's counter back to zero. Used by the admin reset
// path; the counter is otherwise monotonically non-decreasing.
func (s *Store) ResetUsage(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE usage_counters SET count = 0, updated_at = ? WHERE user_id = ?
	`, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to reset usage counter: %w", err)
	}
	return nil
}

// UserCount returns the number of users with any recorded usage.
func (s *Store) UserCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM usage_counters").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

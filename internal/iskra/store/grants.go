package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// GetGrant returns the user's access-grant expiry. The second return value is
// false when the user has never been granted access. Callers decide validity
// by comparing the expiry against their own clock; an expired grant row is
// indistinguishable in effect from no grant at all.
func (s *Store) GetGrant(ctx context.Context, userID int64) (time.Time, bool, error) {
	var expiresAt time.Time
	err := s.db.QueryRowContext(ctx,
		"SELECT expires_at FROM access_grants WHERE user_id = ?", userID,
	).Scan(&expiresAt)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to get access grant: %w", err)
	}
	return expiresAt, true, nil
}

// SetGrant writes the user's access-grant expiry, overwriting any existing
// grant. Grants are never deleted; they simply expire.
func (s *Store) SetGrant(ctx context.Context, userID int64, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO access_grants (user_id, expires_at, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET expires_at = excluded.expires_at, updated_at = excluded.updated_at
	`, userID, expiresAt, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set access grant: %w", err)
	}
	return nil
}

// ActiveGrantCount returns the number of grants whose expiry is after now.
func (s *Store) ActiveGrantCount(ctx context.Context, now time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM access_grants WHERE expires_at > ?", now,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active grants: %w", err)
	}
	return count, nil
}

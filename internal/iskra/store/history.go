package store

import (
	"context"
	"fmt"
	"time"
)

// Turn roles. The transcript only ever holds user and assistant turns;
// system instructions are assembled per request and never persisted.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one role-tagged message in a user's conversation transcript.
type Turn struct {
	ID        int64
	UserID    int64
	Role      string
	Content   string
	CreatedAt time.Time
}

// AppendTurn appends a turn to the user's transcript. The transcript is
// append-only; it is cleared only by an explicit reset.
func (s *Store) AppendTurn(ctx context.Context, userID int64, role, content string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO turns (user_id, role, content, created_at)
		VALUES (?, ?, ?, ?)
	`, userID, role, content, time.Now())
	if err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	return nil
}

// GetHistory returns the user's transcript in chronological order.
func (s *Store) GetHistory(ctx context.Context, userID int64) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, role, content, created_at
		FROM turns
		WHERE user_id = ?
		ORDER BY id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.UserID, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating turns: %w", err)
	}

	return turns, nil
}

// ClearHistory deletes the user's entire transcript.
func (s *Store) ClearHistory(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM turns WHERE user_id = ?", userID)
	if err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

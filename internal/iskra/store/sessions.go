package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Session states.
const (
	StateIdle            = "idle"
	StateInSession       = "in_session"
	StateAwaitingConsent = "awaiting_consent"
)

// Session carries the per-user conversational state and the annotations the
// orchestrator needs between turns: the last detected mood (so a repeated
// mood does not restate the steering instruction) and the last computed
// memory hint.
type Session struct {
	UserID     int64
	State      string
	LastMood   string
	MemoryHint string
	UpdatedAt  time.Time
}

// GetSession loads the user's session. A user with no session row is Idle
// with empty annotations.
func (s *Store) GetSession(ctx context.Context, userID int64) (*Session, error) {
	sess := &Session{UserID: userID}
	err := s.db.QueryRowContext(ctx, `
		SELECT state, last_mood, memory_hint, updated_at
		FROM sessions
		WHERE user_id = ?
	`, userID).Scan(&sess.State, &sess.LastMood, &sess.MemoryHint, &sess.UpdatedAt)
	if err == sql.ErrNoRows {
		sess.State = StateIdle
		return sess, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return sess, nil
}

// SaveSession upserts the user's session row.
func (s *Store) SaveSession(ctx context.Context, sess *Session) error {
	sess.UpdatedAt = time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (user_id, state, last_mood, memory_hint, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			state = excluded.state,
			last_mood = excluded.last_mood,
			memory_hint = excluded.memory_hint,
			updated_at = excluded.updated_at
	`, sess.UserID, sess.State, sess.LastMood, sess.MemoryHint, sess.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

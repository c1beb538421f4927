// Package gate decides, for every inbound message, whether the user may talk
// to the completion API: unlimited under a valid access grant, metered against
// the free-message quota otherwise, or blocked once the quota is spent.
package gate

import (
	"context"
	"fmt"
	"time"
)

// DefaultFreeLimit is the number of free messages a user gets before a grant
// is required.
const DefaultFreeLimit = 10

// Decision is the outcome of evaluating one inbound message.
type Decision struct {
	// Allowed reports whether the message may proceed to the completion API.
	Allowed bool

	// Unlimited is true when access comes from a valid grant; no quota notice
	// should be shown and no counter is consumed.
	Unlimited bool

	// Remaining is the free-message quota left after this message, valid only
	// when Allowed and not Unlimited.
	Remaining int
}

// Blocked is the decision for a user past their quota with no valid grant.
var Blocked = Decision{}

// usageStore is the minimal interface the Gate needs from the Store.
type usageStore interface {
	GetUsage(ctx context.Context, userID int64) (int, error)
	IncrementUsage(ctx context.Context, userID int64) (int, error)
	GetGrant(ctx context.Context, userID int64) (time.Time, bool, error)
}

// Gate evaluates access decisions against grants and usage counters.
//
// Evaluate is read-only; the quota is consumed by a separate Commit call that
// the orchestrator makes only after a successful completion response. A failed
// completion therefore does not burn quota.
type Gate struct {
	store     usageStore
	freeLimit int
}

// New creates a Gate. freeLimit <= 0 uses DefaultFreeLimit.
func New(store usageStore, freeLimit int) *Gate {
	if freeLimit <= 0 {
		freeLimit = DefaultFreeLimit
	}
	return &Gate{store: store, freeLimit: freeLimit}
}

// FreeLimit returns the configured free-message limit.
func (g *Gate) FreeLimit() int {
	return g.freeLimit
}

// Evaluate decides whether the user's next message may proceed.
//
// A grant with expiry after now short-circuits to unlimited access without
// touching the counter; an expired grant behaves identically to no grant.
func (g *Gate) Evaluate(ctx context.Context, userID int64, now time.Time) (Decision, error) {
	expiresAt, ok, err := g.store.GetGrant(ctx, userID)
	if err != nil {
		return Blocked, fmt.Errorf("gate: %w", err)
	}
	if ok && expiresAt.After(now) {
		return Decision{Allowed: true, Unlimited: true}, nil
	}

	count, err := g.store.GetUsage(ctx, userID)
	if err != nil {
		return Blocked, fmt.Errorf("gate: %w", err)
	}
	if count >= g.freeLimit {
		return Blocked, nil
	}

	return Decision{Allowed: true, Remaining: g.freeLimit - (count + 1)}, nil
}

// Commit consumes one unit of quota and returns the remaining allowance.
// Called after a successful completion; never called for unlimited access.
func (g *Gate) Commit(ctx context.Context, userID int64) (int, error) {
	count, err := g.store.IncrementUsage(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("gate: %w", err)
	}
	remaining := g.freeLimit - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

package gate_test

import (
	"context"
	"testing"
	"time"

	"github.com/iskralabs/iskra/internal/iskra/gate"
)

// fakeStore is an in-memory usage/grant store.
type fakeStore struct {
	counts map[int64]int
	grants map[int64]time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		counts: make(map[int64]int),
		grants: make(map[int64]time.Time),
	}
}

func (f *fakeStore) GetUsage(ctx context.Context, userID int64) (int, error) {
	return f.counts[userID], nil
}

func (f *fakeStore) IncrementUsage(ctx context.Context, userID int64) (int, error) {
	f.counts[userID]++
	return f.counts[userID], nil
}

func (f *fakeStore) GetGrant(ctx context.Context, userID int64) (time.Time, bool, error) {
	t, ok := f.grants[userID]
	return t, ok, nil
}

func TestEvaluate_QuotaSequence(t *testing.T) {
	fs := newFakeStore()
	g := gate.New(fs, 10)
	ctx := context.Background()
	now := time.Now()

	// Ten allowed messages counting down 9..0, then blocked.
	for i := 0; i < 10; i++ {
		d, err := g.Evaluate(ctx, 42, now)
		if err != nil {
			t.Fatalf("Evaluate %d: %v", i, err)
		}
		if !d.Allowed {
			t.Fatalf("message %d: expected allowed", i+1)
		}
		if d.Unlimited {
			t.Fatalf("message %d: expected metered, got unlimited", i+1)
		}
		want := 10 - (i + 1)
		if d.Remaining != want {
			t.Errorf("message %d: remaining got %d, want %d", i+1, d.Remaining, want)
		}

		remaining, err := g.Commit(ctx, 42)
		if err != nil {
			t.Fatalf("Commit %d: %v", i, err)
		}
		if remaining != want {
			t.Errorf("commit %d: remaining got %d, want %d", i+1, remaining, want)
		}
	}

	d, err := g.Evaluate(ctx, 42, now)
	if err != nil {
		t.Fatalf("Evaluate after limit: %v", err)
	}
	if d.Allowed {
		t.Error("expected 11th message to be blocked")
	}
}

func TestEvaluate_ReadOnly(t *testing.T) {
	fs := newFakeStore()
	g := gate.New(fs, 10)
	ctx := context.Background()
	now := time.Now()

	// Evaluate without Commit never consumes quota.
	for i := 0; i < 5; i++ {
		d, err := g.Evaluate(ctx, 42, now)
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if d.Remaining != 9 {
			t.Errorf("evaluate %d: remaining got %d, want 9", i, d.Remaining)
		}
	}
	if fs.counts[42] != 0 {
		t.Errorf("counter: got %d, want 0", fs.counts[42])
	}
}

func TestEvaluate_Grant(t *testing.T) {
	fs := newFakeStore()
	g := gate.New(fs, 10)
	ctx := context.Background()
	now := time.Now()

	fs.counts[42] = 10 // quota fully spent
	fs.grants[42] = now.Add(time.Hour)

	d, err := g.Evaluate(ctx, 42, now)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !d.Allowed || !d.Unlimited {
		t.Errorf("valid grant: got %+v, want allowed unlimited", d)
	}
}

func TestEvaluate_ExpiredGrant(t *testing.T) {
	fs := newFakeStore()
	g := gate.New(fs, 10)
	ctx := context.Background()
	now := time.Now()

	fs.counts[42] = 10
	fs.grants[42] = now.Add(-time.Minute)

	d, err := g.Evaluate(ctx, 42, now)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if d.Allowed {
		t.Error("expired grant with spent quota: expected blocked")
	}
}

func TestEvaluate_GrantExpiresAtBoundary(t *testing.T) {
	fs := newFakeStore()
	g := gate.New(fs, 10)
	now := time.Now()

	// expiry exactly equal to now is no longer valid
	fs.counts[42] = 10
	fs.grants[42] = now

	d, err := g.Evaluate(context.Background(), 42, now)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if d.Allowed {
		t.Error("grant expiring exactly now: expected blocked")
	}
}

func TestCommit_ClampsAtZero(t *testing.T) {
	fs := newFakeStore()
	g := gate.New(fs, 2)
	ctx := context.Background()

	fs.counts[42] = 5 // already past the limit
	remaining, err := g.Commit(ctx, 42)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if remaining != 0 {
		t.Errorf("remaining: got %d, want 0", remaining)
	}
}

func TestNew_DefaultLimit(t *testing.T) {
	g := gate.New(newFakeStore(), 0)
	if g.FreeLimit() != gate.DefaultFreeLimit {
		t.Errorf("FreeLimit: got %d, want %d", g.FreeLimit(), gate.DefaultFreeLimit)
	}
}

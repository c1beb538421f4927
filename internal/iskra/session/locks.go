package session

import "sync"

// userLocks serializes event handling per user. The transport and the payment
// webhook may deliver events concurrently; without this, two near-simultaneous
// messages from the same user could race on the usage counter and transcript.
// Different users proceed in parallel.
type userLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[int64]*sync.Mutex)}
}

// lock acquires the user's mutex and returns its unlock function.
func (l *userLocks) lock(userID int64) func() {
	l.mu.Lock()
	m, ok := l.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[userID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

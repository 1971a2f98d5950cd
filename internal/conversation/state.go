// Package conversation holds the per-user confirmation state machine: a
// transcription result waits in an in-memory table until the user replies
// with the affirmative or negative token.
package conversation

import (
	"sync"
	"time"
)

// PendingConfirmation is a transcription awaiting the user's yes/no reply.
type PendingConfirmation struct {
	UserID        string
	CandidateText string
	CreatedAt     time.Time
}

// StateTable maps a user ID to at most one pending confirmation. It is the
// only mutable state shared across message handlers; a single coarse mutex
// is enough at the expected contention (one human, one phone).
//
// The table is built empty at startup and never persisted - a restart
// silently discards in-flight confirmations.
type StateTable struct {
	mu      sync.Mutex
	pending map[string]PendingConfirmation
}

// NewStateTable creates an empty state table.
func NewStateTable() *StateTable {
	return &StateTable{pending: make(map[string]PendingConfirmation)}
}

// Get returns the pending confirmation for a user, if any.
func (t *StateTable) Get(userID string) (PendingConfirmation, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.pending[userID]
	return p, ok
}

// Set stores a pending confirmation for a user, replacing any prior entry.
// A second audio message arriving before the first is resolved overwrites
// it - last writer wins, no queueing.
func (t *StateTable) Set(p PendingConfirmation) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[p.UserID] = p
}

// Take removes and returns the pending confirmation for a user. The read
// and delete happen under one lock acquisition, so when two handlers race
// to resolve the same entry exactly one of them receives it.
func (t *StateTable) Take(userID string) (PendingConfirmation, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.pending[userID]
	if ok {
		delete(t.pending, userID)
	}
	return p, ok
}

// Delete removes a user's pending confirmation.
func (t *StateTable) Delete(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, userID)
}

// Len returns the number of users with a pending confirmation.
func (t *StateTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

package httpapi

import (
	"sync"
	"sync/atomic"
)

// MessageRegistry tracks in-flight message handlers and supports graceful
// draining. When draining is enabled, new messages are dropped (Meta will
// redeliver them) while in-flight handlers finish naturally.
//
// The mu mutex makes the draining check and wg.Add atomic in Add(), preventing
// a TOCTOU race where StartDraining+Wait could be called between the draining
// check and wg.Add.
type MessageRegistry struct {
	mu       sync.Mutex
	draining bool
	wg       sync.WaitGroup
	count    atomic.Int64
}

// NewMessageRegistry creates a new MessageRegistry.
func NewMessageRegistry() *MessageRegistry {
	return &MessageRegistry{}
}

// Add registers a new in-flight message handler. Returns false if the
// registry is draining, meaning no new work should be accepted. The draining
// check and WaitGroup increment are performed atomically under a mutex.
func (mr *MessageRegistry) Add() bool {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	if mr.draining {
		return false
	}
	mr.wg.Add(1)
	mr.count.Add(1)
	return true
}

// Done marks a handler as completed. Must be called exactly once per successful Add.
func (mr *MessageRegistry) Done() {
	mr.count.Add(-1)
	mr.wg.Done()
}

// StartDraining sets the draining flag so that future Add calls return false.
// This is safe to call concurrently with Add - the mutex ensures no Add can
// slip through after StartDraining returns.
func (mr *MessageRegistry) StartDraining() {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	mr.draining = true
}

// IsDraining reports whether the registry is in draining mode.
func (mr *MessageRegistry) IsDraining() bool {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	return mr.draining
}

// ActiveCount returns the number of currently in-flight handlers.
func (mr *MessageRegistry) ActiveCount() int64 {
	return mr.count.Load()
}

// Wait blocks until all in-flight handlers have completed (all Done calls
// matched Add calls).
func (mr *MessageRegistry) Wait() {
	mr.wg.Wait()
}

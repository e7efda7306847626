package indexer

import "sync/atomic"

// UpdateLock provides non-blocking lock semantics using atomic operations.
// At most one update cycle runs at a time; a second caller observes a
// busy status instead of racing the first.
type UpdateLock struct {
	state atomic.Int32 // 0 = unlocked, 1 = locked
}

// TryAcquire attempts to acquire the lock without blocking.
// Returns true if the lock was successfully acquired, false otherwise.
func (l *UpdateLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release releases the lock.
// Must only be called by the goroutine that successfully acquired the lock.
func (l *UpdateLock) Release() {
	l.state.Store(0)
}

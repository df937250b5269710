package session

import "sync"

// LockRegistry guarantees at-most-one concurrent mutation per session id
// while leaving distinct sessions fully parallel. Mutexes are kept for the
// lifetime of the process; session cardinality is bounded by intake volume.
type LockRegistry struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLockRegistry() *LockRegistry {
	return &LockRegistry{locks: make(map[string]*sync.Mutex)}
}

// Acquire blocks until the per-session lock is held and returns the release
// function. No cross-session lock is ever taken.
func (r *LockRegistry) Acquire(sessionID string) func() {
	r.mu.Lock()
	lock, ok := r.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[sessionID] = lock
	}
	r.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

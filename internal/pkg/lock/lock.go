// Package lock provides per-account locking for reconciliation runs.
//
// The snapshot read-modify-write in a mastery check is not transactional,
// so two concurrent checks for the same account could lose an update.
// AccountLock turns that contract into a fail-fast guard.
package lock

import "sync"

// AccountLock provides per-account try-locking keyed by RA username.
type AccountLock struct {
	locks sync.Map // map[string]*sync.Mutex
}

// NewAccountLock creates a new AccountLock instance.
func NewAccountLock() *AccountLock {
	return &AccountLock{}
}

// getLock retrieves or creates a mutex for the given account.
func (l *AccountLock) getLock(username string) *sync.Mutex {
	if v, ok := l.locks.Load(username); ok {
		return v.(*sync.Mutex)
	}
	v, _ := l.locks.LoadOrStore(username, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// TryLock attempts to acquire the account's lock without blocking.
// Returns true if the lock was acquired, false otherwise.
func (l *AccountLock) TryLock(username string) bool {
	return l.getLock(username).TryLock()
}

// Unlock releases the account's lock.
func (l *AccountLock) Unlock(username string) {
	if v, ok := l.locks.Load(username); ok {
		v.(*sync.Mutex).Unlock()
	}
}

// WithLock runs fn while holding the account's lock, failing fast with
// ErrAccountBusy when another run for the same account is in flight.
func (l *AccountLock) WithLock(username string, fn func() error) error {
	if !l.TryLock(username) {
		return ErrAccountBusy
	}
	defer l.Unlock(username)
	return fn()
}

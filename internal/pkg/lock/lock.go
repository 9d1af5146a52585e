// Package lock provides per-user locking for concurrent balance operations.
// The database's conditional updates are the source of truth for balance
// safety; these locks only serialize work within one process so that a user
// cannot be settling one table and escrowing another at the same instant.
package lock

import "sync"

// UserLock provides per-user locking to prevent races during balance
// operations.
type UserLock struct {
	locks sync.Map // map[int64]*sync.Mutex
}

// NewUserLock creates a new UserLock instance.
func NewUserLock() *UserLock {
	return &UserLock{}
}

func (ul *UserLock) getLock(userID int64) *sync.Mutex {
	if v, ok := ul.locks.Load(userID); ok {
		return v.(*sync.Mutex)
	}
	actual, _ := ul.locks.LoadOrStore(userID, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

// Lock acquires the lock for a user.
func (ul *UserLock) Lock(userID int64) {
	ul.getLock(userID).Lock()
}

// Unlock releases the lock for a user.
func (ul *UserLock) Unlock(userID int64) {
	ul.getLock(userID).Unlock()
}

// WithLock executes fn while holding the user's lock.
func (ul *UserLock) WithLock(userID int64, fn func() error) error {
	ul.Lock(userID)
	defer ul.Unlock(userID)
	return fn()
}

// WithPairLock executes fn while holding both users' locks. Locks are
// always acquired in ascending ID order to avoid deadlock when two
// settlements touch the same pair concurrently.
func (ul *UserLock) WithPairLock(a, b int64, fn func() error) error {
	if a == b {
		return ul.WithLock(a, fn)
	}
	first, second := a, b
	if second < first {
		first, second = second, first
	}
	ul.Lock(first)
	defer ul.Unlock(first)
	ul.Lock(second)
	defer ul.Unlock(second)
	return fn()
}

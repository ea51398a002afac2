package treasury

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v4"
)

// ownerLocks shards mutual exclusion by owner. Mutations take the owner's
// write lock; reads of that owner's account and traces take the read lock.
// Different owners never contend.
type ownerLocks struct {
	m *xsync.Map[string, *sync.RWMutex]
}

func newOwnerLocks() *ownerLocks {
	return &ownerLocks{m: xsync.NewMap[string, *sync.RWMutex]()}
}

func (l *ownerLocks) get(owner string) *sync.RWMutex {
	mu, _ := l.m.LoadOrCompute(owner, func() (*sync.RWMutex, bool) {
		return &sync.RWMutex{}, false
	})
	return mu
}

// lock acquires the owner's write lock and returns its release func.
func (l *ownerLocks) lock(owner string) func() {
	mu := l.get(owner)
	mu.Lock()
	return mu.Unlock
}

// rlock acquires the owner's read lock and returns its release func.
func (l *ownerLocks) rlock(owner string) func() {
	mu := l.get(owner)
	mu.RLock()
	return mu.RUnlock
}

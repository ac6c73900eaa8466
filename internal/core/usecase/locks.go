package usecase

import "sync"

// ThreadLocks serializes mutations per thread id. Operations on different
// threads proceed in parallel; within one thread every mutation (attribution,
// rating, pin, archive, tags) takes the same lock, which is what makes the
// handoff transition rule well-defined. It is shared between the attribution
// and directory usecases.
type ThreadLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewThreadLocks() *ThreadLocks {
	return &ThreadLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *ThreadLocks) lock(threadID string) func() {
	l.mu.Lock()
	lock, ok := l.locks[threadID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[threadID] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

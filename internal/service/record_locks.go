package service

import (
	"sync"

	"github.com/cwrk-planet/realtime-service/internal/domain"
)

type recordKey struct {
	meetingID string
	user      domain.UserID
}

// recordLocks serializes participant record writes per (meeting, identity).
// Entries are dropped once nobody holds or waits for them.
type recordLocks struct {
	mu    sync.Mutex
	locks map[recordKey]*recordLock
}

type recordLock struct {
	mu   sync.Mutex
	refs int
}

func newRecordLocks() *recordLocks {
	return &recordLocks{locks: make(map[recordKey]*recordLock)}
}

func (l *recordLocks) lock(meetingID string, user domain.UserID) func() {
	k := recordKey{meetingID: meetingID, user: user}

	l.mu.Lock()
	rl, ok := l.locks[k]
	if !ok {
		rl = &recordLock{}
		l.locks[k] = rl
	}
	rl.refs++
	l.mu.Unlock()

	rl.mu.Lock()
	return func() {
		rl.mu.Unlock()

		l.mu.Lock()
		rl.refs--
		if rl.refs == 0 {
			delete(l.locks, k)
		}
		l.mu.Unlock()
	}
}

package session

import "sync"

// KeyedMutex provides one mutex per session ID so concurrent turns for the
// same session serialize while different sessions proceed in parallel.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*sessionLock)}
}

func (k *KeyedMutex) Lock(sessionID string) {
	k.mu.Lock()
	l, ok := k.locks[sessionID]
	if !ok {
		l = &sessionLock{}
		k.locks[sessionID] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
}

func (k *KeyedMutex) Unlock(sessionID string) {
	k.mu.Lock()
	l, ok := k.locks[sessionID]
	if ok {
		l.refs--
		if l.refs == 0 {
			delete(k.locks, sessionID)
		}
	}
	k.mu.Unlock()

	if ok {
		l.mu.Unlock()
	}
}

var _ Locker = (*KeyedMutex)(nil)

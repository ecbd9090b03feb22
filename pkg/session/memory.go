package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory with TTL expiry. Expired
// sessions are dropped lazily on Load and swept by a janitor goroutine.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*State
	ttl      time.Duration
	clock    Clock
	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore creates a memory store. A cleanupInterval of zero disables
// the janitor (expiry still applies on Load).
func NewMemoryStore(ttl, cleanupInterval time.Duration, clock Clock) *MemoryStore {
	if clock == nil {
		clock = SystemClock
	}
	s := &MemoryStore{
		sessions: make(map[string]*State),
		ttl:      ttl,
		clock:    clock,
		stop:     make(chan struct{}),
	}
	if cleanupInterval > 0 && ttl > 0 {
		go s.janitor(cleanupInterval)
	}
	return s
}

func (s *MemoryStore) expired(state *State) bool {
	return s.ttl > 0 && s.clock.Now().Sub(state.UpdatedAt) > s.ttl
}

func (s *MemoryStore) Load(ctx context.Context, sessionID string) (*State, error) {
	s.mu.RLock()
	state, ok := s.sessions[sessionID]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.expired(state) {
		s.mu.Lock()
		delete(s.sessions, sessionID)
		s.mu.Unlock()
		return nil, ErrSessionNotFound
	}

	return copyState(state), nil
}

func (s *MemoryStore) Save(ctx context.Context, state *State) error {
	stored := copyState(state)
	stored.UpdatedAt = s.clock.Now()

	s.mu.Lock()
	s.sessions[state.SessionID] = stored
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

// Count returns the number of live sessions.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *MemoryStore) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *MemoryStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, state := range s.sessions {
		if s.expired(state) {
			delete(s.sessions, id)
		}
	}
}

// copyState deep-copies the message slice so callers and the store never
// share a mutable transcript.
func copyState(state *State) *State {
	out := *state
	out.Messages = append(out.Messages[:0:0], state.Messages...)
	return &out
}

var _ Store = (*MemoryStore)(nil)

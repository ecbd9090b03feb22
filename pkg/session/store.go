// Package session persists per-session conversation history and
// orchestration state, and provides the per-session single-writer lock.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/scholarlabs/scholar/pkg/config"
	"github.com/scholarlabs/scholar/pkg/protocol"
)

// ErrSessionNotFound is returned by Load when the session does not exist or
// its TTL has expired.
var ErrSessionNotFound = errors.New("session not found")

// State is what survives between turns: the transcript plus the two fields
// the orchestrator's loop prevention depends on.
type State struct {
	SessionID          string              `json:"session_id"`
	Messages           []*protocol.Message `json:"messages"`
	LastAgent          string              `json:"last_agent"`
	ClarificationCount int                 `json:"clarification_count"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// Store is the session persistence contract. Implementations must provide
// per-session isolation; callers serialize writers per session via Locker.
type Store interface {
	// Load returns the stored state or ErrSessionNotFound.
	Load(ctx context.Context, sessionID string) (*State, error)

	// Save replaces the stored state and refreshes the TTL.
	Save(ctx context.Context, state *State) error

	// Clear removes the session. Clearing a missing session is not an error.
	Clear(ctx context.Context, sessionID string) error

	Close() error
}

// Locker serializes turns per session.
type Locker interface {
	Lock(sessionID string)
	Unlock(sessionID string)
}

// Clock abstracts time for TTL handling so expiry is testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the production clock.
var SystemClock Clock = systemClock{}

// NewStoreFromConfig builds a store by configured type.
func NewStoreFromConfig(cfg *config.SessionStoreConfig) (Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("session store config cannot be nil")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("session store: invalid config: %w", err)
	}
	ttl := time.Duration(cfg.TTLSeconds) * time.Second
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(ttl, time.Duration(cfg.CleanupInterval)*time.Second, SystemClock), nil
	case "sql":
		return NewSQLStore(cfg.Driver, cfg.DSN, ttl, SystemClock)
	default:
		return nil, fmt.Errorf("unsupported session store type: %s", cfg.Type)
	}
}

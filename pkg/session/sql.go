package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	// Database drivers registered for the supported dialects.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/scholarlabs/scholar/pkg/protocol"
)

// SQLStore persists sessions in sqlite, postgres, or mysql. Messages are
// stored as one JSON document per session; the loop-prevention fields get
// their own columns so they are inspectable with plain SQL.
type SQLStore struct {
	db     *sql.DB
	driver string
	ttl    time.Duration
	clock  Clock
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id VARCHAR(255) PRIMARY KEY,
	messages TEXT NOT NULL,
	last_agent VARCHAR(64) NOT NULL DEFAULT '',
	clarification_count INTEGER NOT NULL DEFAULT 0,
	updated_at TIMESTAMP NOT NULL
)`

func NewSQLStore(driver, dsn string, ttl time.Duration, clock Clock) (*SQLStore, error) {
	if clock == nil {
		clock = SystemClock
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database (%s): %w", driver, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to session database: %w", err)
	}

	s := &SQLStore{db: db, driver: driver, ttl: ttl, clock: clock}
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create sessions table: %w", err)
	}
	return s, nil
}

// rebind converts ? placeholders to $N for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

func (s *SQLStore) Load(ctx context.Context, sessionID string) (*State, error) {
	query := s.rebind(`SELECT messages, last_agent, clarification_count, updated_at FROM sessions WHERE session_id = ?`)

	var (
		messagesJSON string
		state        = State{SessionID: sessionID}
	)
	err := s.db.QueryRowContext(ctx, query, sessionID).
		Scan(&messagesJSON, &state.LastAgent, &state.ClarificationCount, &state.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	if s.ttl > 0 && s.clock.Now().Sub(state.UpdatedAt) > s.ttl {
		_ = s.Clear(ctx, sessionID)
		return nil, ErrSessionNotFound
	}

	if err := json.Unmarshal([]byte(messagesJSON), &state.Messages); err != nil {
		return nil, fmt.Errorf("failed to decode session messages: %w", err)
	}
	if state.Messages == nil {
		state.Messages = []*protocol.Message{}
	}
	return &state, nil
}

func (s *SQLStore) Save(ctx context.Context, state *State) error {
	messagesJSON, err := json.Marshal(state.Messages)
	if err != nil {
		return fmt.Errorf("failed to encode session messages: %w", err)
	}
	now := s.clock.Now()

	var query string
	switch s.driver {
	case "mysql":
		query = `INSERT INTO sessions (session_id, messages, last_agent, clarification_count, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE messages = VALUES(messages), last_agent = VALUES(last_agent),
			clarification_count = VALUES(clarification_count), updated_at = VALUES(updated_at)`
	default:
		// sqlite3 and postgres share the ON CONFLICT form.
		query = `INSERT INTO sessions (session_id, messages, last_agent, clarification_count, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (session_id) DO UPDATE SET messages = excluded.messages,
			last_agent = excluded.last_agent, clarification_count = excluded.clarification_count,
			updated_at = excluded.updated_at`
	}

	_, err = s.db.ExecContext(ctx, s.rebind(query),
		state.SessionID, string(messagesJSON), state.LastAgent, state.ClarificationCount, now)
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", state.SessionID, err)
	}
	return nil
}

func (s *SQLStore) Clear(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM sessions WHERE session_id = ?`), sessionID)
	if err != nil {
		return fmt.Errorf("failed to clear session %s: %w", sessionID, err)
	}
	return nil
}

// PruneExpired deletes all sessions older than the TTL. Intended to run
// periodically from a scheduler or before backups.
func (s *SQLStore) PruneExpired(ctx context.Context) (int64, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	cutoff := s.clock.Now().Add(-s.ttl)
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM sessions WHERE updated_at < ?`), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune sessions: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLStore)(nil)

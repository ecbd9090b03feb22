// Package observability emits the structured trace events required to
// reconstruct a turn: the agent sequence and the tool-invocation sequence.
package observability

import (
	"sync"
	"time"
)

type EventType string

const (
	EventTurnStarted  EventType = "turn_started"
	EventAgentEntered EventType = "agent_entered"
	EventAgentExited  EventType = "agent_exited"
	EventToolInvoked  EventType = "tool_invoked"
	EventToolReturned EventType = "tool_returned"
	EventTurnEnded    EventType = "turn_ended"
)

// Event is one trace record. Attrs carry the event-specific fields:
// agent_entered/agent_exited set "agent" (and "next_agent" on exit);
// tool_invoked sets "tool" and "args"; tool_returned sets "tool" and
// "status" (ok|error); turn_ended sets "answer_len" and "confidence".
type Event struct {
	Type      EventType
	SessionID string
	Time      time.Time
	Attrs     map[string]any
}

// Sink receives trace events. Implementations must tolerate concurrent
// Emit calls from independent turns.
type Sink interface {
	Emit(event Event)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Emit(Event) {}

// MultiSink fans events out to several sinks.
type MultiSink []Sink

func (m MultiSink) Emit(event Event) {
	for _, s := range m {
		s.Emit(event)
	}
}

// RecorderSink captures events in memory, keyed by session. The evaluator
// and the tests use it to reconstruct agent and tool sequences.
type RecorderSink struct {
	mu     sync.Mutex
	events map[string][]Event
}

func NewRecorderSink() *RecorderSink {
	return &RecorderSink{events: make(map[string][]Event)}
}

func (r *RecorderSink) Emit(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[event.SessionID] = append(r.events[event.SessionID], event)
}

// Events returns a copy of all events recorded for the session.
func (r *RecorderSink) Events(sessionID string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	events := make([]Event, len(r.events[sessionID]))
	copy(events, r.events[sessionID])
	return events
}

// AgentSequence returns the agents entered for the session, in order.
func (r *RecorderSink) AgentSequence(sessionID string) []string {
	var out []string
	for _, e := range r.Events(sessionID) {
		if e.Type == EventAgentEntered {
			if name, ok := e.Attrs["agent"].(string); ok {
				out = append(out, name)
			}
		}
	}
	return out
}

// ToolSequence returns the tools invoked for the session, in order, with
// duplicates preserved.
func (r *RecorderSink) ToolSequence(sessionID string) []string {
	var out []string
	for _, e := range r.Events(sessionID) {
		if e.Type == EventToolInvoked {
			if name, ok := e.Attrs["tool"].(string); ok {
				out = append(out, name)
			}
		}
	}
	return out
}

// Reset drops all recorded events for the session.
func (r *RecorderSink) Reset(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.events, sessionID)
}

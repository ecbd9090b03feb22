// Package protocol defines the message and tool-call types shared by the
// agents, the LLM gateway, and the session store.
package protocol

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry in a conversation. Tool-call and tool-result entries
// only ever live inside the Research agent's working list; session history
// carries user and assistant messages.
type Message struct {
	Role       Role        `json:"role"`
	Content    string      `json:"content"`
	ToolCalls  []*ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string      `json:"tool_call_id,omitempty"`
	Name       string      `json:"name,omitempty"`
	Timestamp  time.Time   `json:"timestamp,omitempty"`
}

// ToolCall is a tool invocation intent emitted by the LLM.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

func NewUserMessage(content string) *Message {
	return &Message{Role: RoleUser, Content: content, Timestamp: time.Now()}
}

func NewAssistantMessage(content string) *Message {
	return &Message{Role: RoleAssistant, Content: content, Timestamp: time.Now()}
}

func NewSystemMessage(content string) *Message {
	return &Message{Role: RoleSystem, Content: content, Timestamp: time.Now()}
}

// NewToolResultMessage wraps a tool result so it can be fed back to the LLM
// within the Research loop's working list.
func NewToolResultMessage(toolCallID, toolName, content string) *Message {
	return &Message{
		Role:       RoleTool,
		Content:    content,
		ToolCallID: toolCallID,
		Name:       toolName,
		Timestamp:  time.Now(),
	}
}

// NewToolCallID returns a fresh identifier for tool calls that arrive
// without one.
func NewToolCallID() string {
	return "call_" + uuid.NewString()
}

type contextKey string

// SessionIDKey carries the session identifier through context.
const SessionIDKey contextKey = "session_id"

// SessionIDFromContext extracts the session ID, returning "default" when the
// context carries none.
func SessionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return "default"
	}
	if v := ctx.Value(SessionIDKey); v != nil {
		if sid, ok := v.(string); ok && sid != "" {
			return sid
		}
	}
	return "default"
}

// WithSessionID returns a context carrying the session ID.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionIDKey, sessionID)
}

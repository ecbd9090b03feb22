// Package llms is the LLM gateway: a provider interface with
// OpenAI-compatible and Ollama implementations behind a registry.
package llms

import (
	"context"

	"github.com/scholarlabs/scholar/pkg/protocol"
)

// ToolDefinition describes a callable tool to the model.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request is one chat completion turn.
type Request struct {
	Messages    []*protocol.Message
	Tools       []ToolDefinition
	Temperature float64
	MaxTokens   int
}

// Response carries either final text, tool-call intents, or both.
type Response struct {
	Text      string
	ToolCalls []*protocol.ToolCall
	Tokens    int
}

// Provider is a single LLM backend. Implementations must be safe for
// concurrent use.
type Provider interface {
	Generate(ctx context.Context, req *Request) (*Response, error)

	GetModelName() string

	Close() error
}

// Package orchestration implements the turn state machine: an orchestrator
// that routes between a clarification agent and a research/synthesis
// pipeline, driven by a bounded turn runner.
package orchestration

import (
	"fmt"
	"strings"

	"github.com/scholarlabs/scholar/pkg/protocol"
)

// AgentName identifies a node in the turn graph.
type AgentName string

const (
	AgentOrchestrator  AgentName = "orchestrator"
	AgentClarification AgentName = "clarification"
	AgentResearch      AgentName = "research"
	AgentSynthesis     AgentName = "synthesis"
	AgentEnd           AgentName = "end"
)

// ResearchContext carries what Research gathered for Synthesis. Tool-call
// and tool-result traffic lives here, never in the transcript.
type ResearchContext struct {
	// ToolHistory lists distinct tool names in first-use order.
	ToolHistory []string

	// Observations holds one entry per distinct tool ("Used tool: <name>"),
	// or an error entry when the loop failed.
	Observations []string

	// FinalOutput is the research summary handed to Synthesis.
	FinalOutput string
}

// TurnState is the object passed between agents within one turn. The runner
// owns it exclusively; agents mutate it through the methods below and must
// not hold references after returning.
type TurnState struct {
	SessionID          string
	Messages           []*protocol.Message
	NextAgent          AgentName
	LastAgent          string
	ClarificationCount int
	Context            ResearchContext
	FinalAnswer        string
	Confidence         *float64
	Iteration          int
}

// NewTurnState merges stored session state with the incoming user message.
func NewTurnState(sessionID string, history []*protocol.Message, lastAgent string, clarificationCount int, userText string) *TurnState {
	messages := append(history[:0:0], history...)
	messages = append(messages, protocol.NewUserMessage(userText))
	return &TurnState{
		SessionID:          sessionID,
		Messages:           messages,
		NextAgent:          AgentOrchestrator,
		LastAgent:          lastAgent,
		ClarificationCount: clarificationCount,
	}
}

// AppendAssistant adds one assistant message to the transcript. Each agent
// appends at most one per invocation.
func (s *TurnState) AppendAssistant(text string) {
	s.Messages = append(s.Messages, protocol.NewAssistantMessage(text))
}

// RecordToolUse registers a tool invocation. Repeat uses of the same tool
// are collapsed so ToolHistory stays a duplicate-free first-use projection.
func (s *TurnState) RecordToolUse(name string) {
	for _, seen := range s.Context.ToolHistory {
		if seen == name {
			return
		}
	}
	s.Context.ToolHistory = append(s.Context.ToolHistory, name)
	s.Context.Observations = append(s.Context.Observations, fmt.Sprintf("Used tool: %s", name))
}

// Advance marks an agent execution: sets last_agent and bumps the iteration
// counter. Every agent calls this exactly once, at the end of Execute.
func (s *TurnState) Advance(agent AgentName, next AgentName) {
	s.LastAgent = string(agent)
	s.NextAgent = next
	s.Iteration++
}

// SetFinalAnswer records the terminal answer with optional confidence.
func (s *TurnState) SetFinalAnswer(answer string, confidence *float64) {
	s.FinalAnswer = answer
	s.Confidence = confidence
}

// LatestUserQuery returns the content of the most recent user message.
func (s *TurnState) LatestUserQuery() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == protocol.RoleUser {
			return s.Messages[i].Content
		}
	}
	return ""
}

// ConversationTail formats the last maxHistory user/assistant messages as
// "User:"/"AI:" lines for prompt interpolation.
func (s *TurnState) ConversationTail(maxHistory int) string {
	var turns []*protocol.Message
	for _, m := range s.Messages {
		if m.Role == protocol.RoleUser || m.Role == protocol.RoleAssistant {
			turns = append(turns, m)
		}
	}
	if maxHistory > 0 && len(turns) > maxHistory {
		turns = turns[len(turns)-maxHistory:]
	}

	var sb strings.Builder
	for _, m := range turns {
		speaker := "User"
		if m.Role == protocol.RoleAssistant {
			speaker = "AI"
		}
		fmt.Fprintf(&sb, "%s: %s\n", speaker, m.Content)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// TailEndsWithClarificationReply reports whether the transcript ends with an
// (assistant, user) pair, meaning the user just answered a question.
func (s *TurnState) TailEndsWithClarificationReply() bool {
	if len(s.Messages) < 2 {
		return false
	}
	last := s.Messages[len(s.Messages)-1]
	prev := s.Messages[len(s.Messages)-2]
	return prev.Role == protocol.RoleAssistant && last.Role == protocol.RoleUser
}

func confidencePtr(v float64) *float64 { return &v }

package orchestration

import (
	"context"
	"log/slog"
	"strings"

	"github.com/scholarlabs/scholar/pkg/config"
	"github.com/scholarlabs/scholar/pkg/llms"
	"github.com/scholarlabs/scholar/pkg/protocol"
)

// Clarification asks the user one question and ends the turn. The
// clarification counter belongs to the orchestrator; this agent never
// touches it.
type Clarification struct {
	services *Services
	provider llms.Provider
	cfg      *config.ClarificationConfig
	logger   *slog.Logger
}

func NewClarification(services *Services, provider llms.Provider, cfg *config.ClarificationConfig) *Clarification {
	return &Clarification{
		services: services,
		provider: provider,
		cfg:      cfg,
		logger:   slog.Default().With("agent", AgentClarification),
	}
}

func (a *Clarification) Name() AgentName { return AgentClarification }

func (a *Clarification) Execute(ctx context.Context, state *TurnState) error {
	question := a.generateQuestion(ctx, state)

	state.AppendAssistant(question)
	state.SetFinalAnswer(question, nil)
	state.Advance(AgentClarification, AgentEnd)
	return nil
}

func (a *Clarification) generateQuestion(ctx context.Context, state *TurnState) string {
	template, err := a.services.Prompts.Fetch(ctx, a.cfg.PromptName, a.services.promptLabel())
	if err != nil {
		a.logger.Warn("Failed to fetch prompt, using fallback question",
			"session_id", state.SessionID, "error", err)
		return a.cfg.Fallback
	}

	prompt, err := template.Compile(map[string]string{
		"conversation": state.ConversationTail(a.cfg.MaxHistory),
		"query":        state.LatestUserQuery(),
	})
	if err != nil {
		a.logger.Warn("Failed to compile prompt, using fallback question",
			"session_id", state.SessionID, "error", err)
		return a.cfg.Fallback
	}

	resp, err := a.services.generate(ctx, a.provider, &llms.Request{
		Messages:    []*protocol.Message{protocol.NewSystemMessage(prompt)},
		Temperature: a.cfg.Temperature,
	})
	if err != nil || strings.TrimSpace(resp.Text) == "" {
		a.logger.Warn("Question generation failed, using fallback question",
			"session_id", state.SessionID, "error", err)
		return a.cfg.Fallback
	}
	return strings.TrimSpace(resp.Text)
}

var _ Agent = (*Clarification)(nil)

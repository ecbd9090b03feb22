package orchestration

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/scholarlabs/scholar/pkg/config"
	"github.com/scholarlabs/scholar/pkg/llms"
	"github.com/scholarlabs/scholar/pkg/protocol"
)

// Orchestrator routes the turn to clarification or research. Three layers
// run in order and the first that fires wins: a hard counter, follow-up
// detection, and finally an LLM classification. The layered design bounds
// consecutive clarifications at max_clarifications for any LLM behavior.
type Orchestrator struct {
	services *Services
	provider llms.Provider
	cfg      *config.OrchestratorConfig
	logger   *slog.Logger
}

func NewOrchestrator(services *Services, provider llms.Provider, cfg *config.OrchestratorConfig) *Orchestrator {
	return &Orchestrator{
		services: services,
		provider: provider,
		cfg:      cfg,
		logger:   slog.Default().With("agent", AgentOrchestrator),
	}
}

func (a *Orchestrator) Name() AgentName { return AgentOrchestrator }

func (a *Orchestrator) Execute(ctx context.Context, state *TurnState) error {
	// L1: counter at the bound, force research. No LLM call.
	if state.ClarificationCount >= a.cfg.MaxClarifications {
		a.logger.Info("Clarification limit reached, forcing research",
			"session_id", state.SessionID, "count", state.ClarificationCount)
		state.ClarificationCount = 0
		state.Advance(AgentOrchestrator, AgentResearch)
		return nil
	}

	// L2: the user just replied to a clarifying question; that reply is the
	// missing context. No LLM call.
	if state.LastAgent == string(AgentClarification) && state.TailEndsWithClarificationReply() {
		a.logger.Info("Follow-up to clarification detected, routing to research",
			"session_id", state.SessionID)
		state.ClarificationCount = 0
		state.Advance(AgentOrchestrator, AgentResearch)
		return nil
	}

	// L3: ask the model. Ambiguous output and failures both default to
	// research so the turn makes forward progress.
	next, err := a.classify(ctx, state)
	if err != nil {
		a.logger.Warn("Classification failed, defaulting to research",
			"session_id", state.SessionID, "error", err)
		state.Advance(AgentOrchestrator, AgentResearch)
		return nil
	}

	if next == AgentClarification {
		state.ClarificationCount++
	} else {
		state.ClarificationCount = 0
	}
	state.Advance(AgentOrchestrator, next)
	return nil
}

func (a *Orchestrator) classify(ctx context.Context, state *TurnState) (AgentName, error) {
	template, err := a.services.Prompts.Fetch(ctx, a.cfg.PromptName, a.services.promptLabel())
	if err != nil {
		return "", fmt.Errorf("failed to fetch prompt: %w", err)
	}

	prompt, err := template.Compile(map[string]string{
		"conversation":        state.ConversationTail(a.cfg.MaxHistory),
		"clarification_count": strconv.Itoa(state.ClarificationCount),
		"max_clarifications":  strconv.Itoa(a.cfg.MaxClarifications),
	})
	if err != nil {
		return "", fmt.Errorf("failed to compile prompt: %w", err)
	}

	resp, err := a.services.generate(ctx, a.provider, &llms.Request{
		Messages:    []*protocol.Message{protocol.NewSystemMessage(prompt)},
		Temperature: a.cfg.Temperature,
	})
	if err != nil {
		return "", err
	}

	decision := strings.ToUpper(resp.Text)
	wantsClarification := strings.Contains(decision, "CLARIFICATION")
	wantsResearch := strings.Contains(decision, "RESEARCH")
	if wantsClarification && !wantsResearch {
		return AgentClarification, nil
	}
	return AgentResearch, nil
}

var _ Agent = (*Orchestrator)(nil)

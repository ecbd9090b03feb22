package orchestration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/scholarlabs/scholar/pkg/observability"
	"github.com/scholarlabs/scholar/pkg/protocol"
	"github.com/scholarlabs/scholar/pkg/session"
)

const runnerErrorAnswer = "An internal error occurred while processing your request. Please try again."

// TurnResult is what the caller always gets back: a well-formed answer,
// never an exception. Confidence is nil when no synthesis ran.
type TurnResult struct {
	SessionID  string   `json:"session_id"`
	Answer     string   `json:"answer"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Runner drives one turn through the agent graph. It owns the TurnState for
// the duration of the turn, serializes turns per session, enforces the turn
// deadline and the invocation cap, and persists state even when an agent
// fails.
type Runner struct {
	services *Services
	agents   map[AgentName]Agent
	logger   *slog.Logger
}

// NewRunner wires the four agents from the services bundle.
func NewRunner(services *Services) (*Runner, error) {
	if services == nil || services.Config == nil {
		return nil, fmt.Errorf("runner: services and config are required")
	}
	services.normalize()

	cfg := services.Config.Agents

	orchestratorLLM, err := services.provider(cfg.Orchestrator.LLM)
	if err != nil {
		return nil, err
	}
	clarificationLLM, err := services.provider(cfg.Clarification.LLM)
	if err != nil {
		return nil, err
	}
	researchLLM, err := services.provider(cfg.Research.LLM)
	if err != nil {
		return nil, err
	}
	synthesisLLM, err := services.provider(cfg.Synthesis.LLM)
	if err != nil {
		return nil, err
	}

	agents := []Agent{
		NewOrchestrator(services, orchestratorLLM, &cfg.Orchestrator),
		NewClarification(services, clarificationLLM, &cfg.Clarification),
		NewResearch(services, researchLLM, &cfg.Research),
		NewSynthesis(services, synthesisLLM, &cfg.Synthesis),
	}

	dispatch := make(map[AgentName]Agent, len(agents))
	for _, agent := range agents {
		dispatch[agent.Name()] = agent
	}

	return &Runner{
		services: services,
		agents:   dispatch,
		logger:   slog.Default().With("component", "runner"),
	}, nil
}

// RunTurn executes one full turn for the session. Turns for the same
// session serialize behind the keyed lock; different sessions run in
// parallel.
func (r *Runner) RunTurn(ctx context.Context, sessionID, userText string) (*TurnResult, error) {
	r.services.Locker.Lock(sessionID)
	defer r.services.Locker.Unlock(sessionID)

	deadline := time.Duration(r.services.Config.Runner.TurnDeadlineSeconds) * time.Second
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	turnStart := time.Now()
	state := r.loadState(ctx, sessionID, userText)

	r.services.emit(observability.EventTurnStarted, sessionID, map[string]any{
		"message_count": len(state.Messages),
	})

	turnErr := r.drive(ctx, state)

	r.persist(state)

	var confidence float64
	if state.Confidence != nil {
		confidence = *state.Confidence
	}
	r.services.emit(observability.EventTurnEnded, sessionID, map[string]any{
		"answer_len": len(state.FinalAnswer),
		"confidence": confidence,
	})
	r.services.Metrics.RecordTurn(ctx, time.Since(turnStart), turnErr)

	return &TurnResult{
		SessionID:  sessionID,
		Answer:     state.FinalAnswer,
		Confidence: state.Confidence,
	}, nil
}

// drive loops over the dispatch table until an agent routes to end or a
// bound fires. The invocation cap is defense in depth; the graph never
// exceeds three agents per turn by design.
func (r *Runner) drive(ctx context.Context, state *TurnState) error {
	maxInvocations := r.services.Config.Runner.MaxAgentInvocations

	for invocations := 0; invocations < maxInvocations; invocations++ {
		if state.NextAgent == AgentEnd {
			return nil
		}

		agent, ok := r.agents[state.NextAgent]
		if !ok {
			err := fmt.Errorf("no agent registered for %q", state.NextAgent)
			r.failTurn(state, string(state.NextAgent), err)
			return err
		}

		r.services.emit(observability.EventAgentEntered, state.SessionID, map[string]any{
			"agent": string(agent.Name()),
		})

		agentStart := time.Now()
		err := r.executeAgent(ctx, agent, state)
		r.services.Metrics.RecordAgent(ctx, string(agent.Name()), time.Since(agentStart), err)

		r.services.emit(observability.EventAgentExited, state.SessionID, map[string]any{
			"agent":      string(agent.Name()),
			"next_agent": string(state.NextAgent),
		})

		if err != nil {
			r.failTurn(state, string(agent.Name()), err)
			return err
		}
	}

	if state.NextAgent != AgentEnd {
		err := errors.New("agent invocation cap reached")
		r.failTurn(state, state.LastAgent, err)
		return err
	}
	return nil
}

// executeAgent converts an agent panic into an error so one bad turn cannot
// take down the process.
func (r *Runner) executeAgent(ctx context.Context, agent Agent, state *TurnState) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("agent %s panicked: %v", agent.Name(), rec)
		}
	}()
	return agent.Execute(ctx, state)
}

// failTurn applies the runner-level fallback: a fixed answer, the failed
// agent recorded as last_agent, and the turn ended. Every turn persists an
// assistant message, so if no agent got far enough to append one, the
// fallback answer goes into the transcript here.
func (r *Runner) failTurn(state *TurnState, agentName string, err error) {
	r.logger.Error("Turn failed", "session_id", state.SessionID,
		"agent", agentName, "error", err)
	if state.FinalAnswer == "" {
		state.SetFinalAnswer(runnerErrorAnswer, confidencePtr(0.0))
	}
	if n := len(state.Messages); n == 0 || state.Messages[n-1].Role != protocol.RoleAssistant {
		state.AppendAssistant(state.FinalAnswer)
	}
	state.LastAgent = agentName
	state.NextAgent = AgentEnd
}

func (r *Runner) loadState(ctx context.Context, sessionID, userText string) *TurnState {
	stored, err := r.services.Sessions.Load(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, session.ErrSessionNotFound) {
			r.logger.Warn("Failed to load session, starting fresh",
				"session_id", sessionID, "error", err)
		}
		return NewTurnState(sessionID, nil, "", 0, userText)
	}
	return NewTurnState(sessionID, stored.Messages, stored.LastAgent, stored.ClarificationCount, userText)
}

// persist writes the session back regardless of how the turn ended, so
// last_agent and the counter survive failures. Uses a fresh context because
// the turn deadline may already have expired.
func (r *Runner) persist(state *TurnState) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := r.services.Sessions.Save(ctx, &session.State{
		SessionID:          state.SessionID,
		Messages:           state.Messages,
		LastAgent:          state.LastAgent,
		ClarificationCount: state.ClarificationCount,
	})
	if err != nil {
		r.logger.Error("Failed to persist session", "session_id", state.SessionID, "error", err)
	}
}

// History returns the stored transcript for a session, empty when none.
func (r *Runner) History(ctx context.Context, sessionID string) (*session.State, error) {
	stored, err := r.services.Sessions.Load(ctx, sessionID)
	if errors.Is(err, session.ErrSessionNotFound) {
		return &session.State{SessionID: sessionID}, nil
	}
	return stored, err
}

// ClearHistory drops the stored session.
func (r *Runner) ClearHistory(ctx context.Context, sessionID string) error {
	return r.services.Sessions.Clear(ctx, sessionID)
}

package orchestration

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/scholarlabs/scholar/pkg/config"
	"github.com/scholarlabs/scholar/pkg/llms"
	"github.com/scholarlabs/scholar/pkg/observability"
	"github.com/scholarlabs/scholar/pkg/protocol"
)

const (
	researchErrorOutput = "Unable to complete research due to an error."
	iterationCapPrefix  = "Research stopped: iteration limit reached; partial findings: "
)

// Research runs a bounded reason-act loop: the model picks tools, the agent
// executes them and feeds results back, until the model produces final text
// or the iteration cap fires. Tool traffic stays in a working list and never
// reaches the session transcript.
type Research struct {
	services *Services
	provider llms.Provider
	cfg      *config.ResearchConfig
	logger   *slog.Logger
}

func NewResearch(services *Services, provider llms.Provider, cfg *config.ResearchConfig) *Research {
	return &Research{
		services: services,
		provider: provider,
		cfg:      cfg,
		logger:   slog.Default().With("agent", AgentResearch),
	}
}

func (a *Research) Name() AgentName { return AgentResearch }

func (a *Research) Execute(ctx context.Context, state *TurnState) error {
	working, err := a.buildWorkingList(ctx, state)
	if err != nil {
		a.fail(state, err)
		return nil
	}

	toolDefs := a.services.Tools.Definitions()

	// partial tracks the best evidence seen so far for the cap message.
	var partial string

	for iteration := 1; iteration <= a.cfg.MaxIterations; iteration++ {
		resp, err := a.services.generate(ctx, a.provider, &llms.Request{
			Messages:    working,
			Tools:       toolDefs,
			Temperature: a.cfg.Temperature,
		})
		if err != nil {
			a.fail(state, err)
			return nil
		}

		if len(resp.ToolCalls) == 0 {
			state.Context.FinalOutput = resp.Text
			a.finish(state)
			return nil
		}

		if strings.TrimSpace(resp.Text) != "" {
			partial = resp.Text
		}

		assistant := protocol.NewAssistantMessage(resp.Text)
		assistant.ToolCalls = resp.ToolCalls
		working = append(working, assistant)

		for _, call := range resp.ToolCalls {
			result := a.invokeTool(ctx, state, call)
			working = append(working, protocol.NewToolResultMessage(call.ID, call.Name, result))
			if partial == "" {
				partial = result
			}
		}
	}

	a.logger.Info("Iteration limit reached", "session_id", state.SessionID,
		"max_iterations", a.cfg.MaxIterations)
	if partial == "" {
		partial = "none"
	}
	state.Context.FinalOutput = iterationCapPrefix + partial
	a.finish(state)
	return nil
}

func (a *Research) buildWorkingList(ctx context.Context, state *TurnState) ([]*protocol.Message, error) {
	template, err := a.services.Prompts.Fetch(ctx, a.cfg.PromptName, a.services.promptLabel())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prompt: %w", err)
	}
	system, err := template.Compile(map[string]string{
		"current_date": time.Now().Format("2006-01-02"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compile prompt: %w", err)
	}

	working := []*protocol.Message{protocol.NewSystemMessage(system)}

	var turns []*protocol.Message
	for _, m := range state.Messages {
		if m.Role == protocol.RoleUser || m.Role == protocol.RoleAssistant {
			turns = append(turns, m)
		}
	}
	if a.cfg.MaxHistory > 0 && len(turns) > a.cfg.MaxHistory {
		turns = turns[len(turns)-a.cfg.MaxHistory:]
	}
	return append(working, turns...), nil
}

// invokeTool executes one tool-call intent and returns the text fed back to
// the model. Failures, including unknown tool names, come back as error
// text so the model can retry or switch tools.
func (a *Research) invokeTool(ctx context.Context, state *TurnState, call *protocol.ToolCall) string {
	a.services.emit(observability.EventToolInvoked, state.SessionID, map[string]any{
		"tool": call.Name,
		"args": summarizeArgs(call.Arguments),
	})

	start := time.Now()
	result := a.services.Tools.ExecuteToolCall(ctx, call.Name, call.Arguments)

	status := "ok"
	var resultErr error
	if !result.Success {
		status = "error"
		resultErr = fmt.Errorf("%s", result.Error)
	}
	a.services.Metrics.RecordToolExecution(ctx, call.Name, time.Since(start), resultErr)
	a.services.emit(observability.EventToolReturned, state.SessionID, map[string]any{
		"tool":   call.Name,
		"status": status,
	})

	state.RecordToolUse(call.Name)

	if !result.Success {
		return fmt.Sprintf("Tool error: %s", result.Error)
	}
	return result.Content
}

func (a *Research) finish(state *TurnState) {
	state.AppendAssistant(state.Context.FinalOutput)
	state.Advance(AgentResearch, AgentSynthesis)
}

// fail records the degraded research context. Synthesis still runs so the
// user gets a well-formed answer.
func (a *Research) fail(state *TurnState, err error) {
	a.logger.Error("Research loop failed", "session_id", state.SessionID, "error", err)
	state.Context.ToolHistory = nil
	state.Context.Observations = []string{fmt.Sprintf("Research failed: %v", err)}
	state.Context.FinalOutput = researchErrorOutput
	a.finish(state)
}

func summarizeArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	parts := make([]string, 0, len(args))
	for k, v := range args {
		s := fmt.Sprint(v)
		if len(s) > 80 {
			s = s[:80] + "..."
		}
		parts = append(parts, fmt.Sprintf("%s=%s", k, s))
	}
	return strings.Join(parts, " ")
}

package orchestration

import (
	"context"
	"log/slog"
	"strings"

	"github.com/scholarlabs/scholar/pkg/config"
	"github.com/scholarlabs/scholar/pkg/llms"
	"github.com/scholarlabs/scholar/pkg/protocol"
)

const synthesisErrorAnswer = "I was unable to produce an answer due to an internal error. Please try again."

// Synthesis turns the research context into the final user-facing answer.
// Confidence is a deterministic function of evidence breadth, not a model
// self-assessment.
type Synthesis struct {
	services *Services
	provider llms.Provider
	cfg      *config.SynthesisConfig
	logger   *slog.Logger
}

func NewSynthesis(services *Services, provider llms.Provider, cfg *config.SynthesisConfig) *Synthesis {
	return &Synthesis{
		services: services,
		provider: provider,
		cfg:      cfg,
		logger:   slog.Default().With("agent", AgentSynthesis),
	}
}

func (a *Synthesis) Name() AgentName { return AgentSynthesis }

// confidenceFor maps the number of distinct tools used to a confidence
// score: more independent evidence sources, higher confidence.
func confidenceFor(distinctTools int) float64 {
	switch {
	case distinctTools <= 0:
		return 0.0
	case distinctTools == 1:
		return 0.6
	case distinctTools == 2:
		return 0.8
	default:
		return 0.95
	}
}

func (a *Synthesis) Execute(ctx context.Context, state *TurnState) error {
	answer, err := a.compose(ctx, state)
	if err != nil {
		a.logger.Warn("Synthesis failed, falling back to research output",
			"session_id", state.SessionID, "error", err)
		fallback := state.Context.FinalOutput
		if strings.TrimSpace(fallback) == "" {
			fallback = synthesisErrorAnswer
		}
		state.SetFinalAnswer(fallback, confidencePtr(0.0))
		state.Advance(AgentSynthesis, AgentEnd)
		return nil
	}

	state.AppendAssistant(answer)
	state.SetFinalAnswer(answer, confidencePtr(confidenceFor(len(state.Context.ToolHistory))))
	state.Advance(AgentSynthesis, AgentEnd)
	return nil
}

func (a *Synthesis) compose(ctx context.Context, state *TurnState) (string, error) {
	template, err := a.services.Prompts.Fetch(ctx, a.cfg.PromptName, a.services.promptLabel())
	if err != nil {
		return "", err
	}

	var evidence strings.Builder
	for _, obs := range state.Context.Observations {
		evidence.WriteString(obs)
		evidence.WriteString("\n")
	}
	evidence.WriteString(state.Context.FinalOutput)

	prompt, err := template.Compile(map[string]string{
		"query":    state.LatestUserQuery(),
		"evidence": evidence.String(),
	})
	if err != nil {
		return "", err
	}

	resp, err := a.services.generate(ctx, a.provider, &llms.Request{
		Messages:    []*protocol.Message{protocol.NewSystemMessage(prompt)},
		Temperature: a.cfg.Temperature,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Text) == "" {
		return "", errEmptyCompletion
	}
	return strings.TrimSpace(resp.Text), nil
}

var _ Agent = (*Synthesis)(nil)

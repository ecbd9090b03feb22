package orchestration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarlabs/scholar/pkg/config"
)

func newClarificationUnderTest(t *testing.T, h *harness) *Clarification {
	t.Helper()
	provider, ok := h.services.LLMs.Get("clarification")
	require.True(t, ok)
	h.services.normalize()
	return NewClarification(h.services, provider, &h.services.Config.Agents.Clarification)
}

func TestClarificationAsksOneQuestionAndEndsTurn(t *testing.T) {
	h := newHarness(t)
	h.clarificationLLM.script = []scriptStep{textStep("Which benchmark are you interested in?")}
	agent := newClarificationUnderTest(t, h)

	state := NewTurnState("s1", nil, "orchestrator", 1, "how accurate is it?")
	require.NoError(t, agent.Execute(context.Background(), state))

	assert.Equal(t, "Which benchmark are you interested in?", state.FinalAnswer)
	assert.Equal(t, AgentEnd, state.NextAgent)
	assert.Equal(t, "clarification", state.LastAgent)
	assert.Nil(t, state.Confidence, "clarification sets no confidence")
	assert.Equal(t, 1, state.ClarificationCount, "the counter belongs to the orchestrator")

	require.Len(t, state.Messages, 2)
	assert.Equal(t, "Which benchmark are you interested in?", state.Messages[1].Content)
}

func TestClarificationLLMFailureUsesFallback(t *testing.T) {
	h := newHarness(t)
	h.clarificationLLM.script = []scriptStep{errStep(assert.AnError)}
	agent := newClarificationUnderTest(t, h)

	state := NewTurnState("s1", nil, "orchestrator", 1, "vague")
	require.NoError(t, agent.Execute(context.Background(), state))

	assert.Equal(t, config.DefaultClarificationFallback, state.FinalAnswer)
	assert.Equal(t, AgentEnd, state.NextAgent)
	require.Len(t, state.Messages, 2, "fallback question is still appended to history")
}

func TestClarificationEmptyCompletionUsesFallback(t *testing.T) {
	h := newHarness(t)
	h.clarificationLLM.script = []scriptStep{textStep("   ")}
	agent := newClarificationUnderTest(t, h)

	state := NewTurnState("s1", nil, "orchestrator", 0, "vague")
	require.NoError(t, agent.Execute(context.Background(), state))

	assert.Equal(t, config.DefaultClarificationFallback, state.FinalAnswer)
}

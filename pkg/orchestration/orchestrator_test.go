package orchestration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarlabs/scholar/pkg/protocol"
)

func newOrchestratorUnderTest(t *testing.T, h *harness) *Orchestrator {
	t.Helper()
	provider, ok := h.services.LLMs.Get("orchestrator")
	require.True(t, ok)
	h.services.normalize()
	return NewOrchestrator(h.services, provider, &h.services.Config.Agents.Orchestrator)
}

func TestOrchestratorL1CounterForcesResearch(t *testing.T) {
	h := newHarness(t)
	agent := newOrchestratorUnderTest(t, h)

	state := NewTurnState("s1", nil, "clarification", 2, "still vague")
	require.NoError(t, agent.Execute(context.Background(), state))

	assert.Equal(t, AgentResearch, state.NextAgent)
	assert.Equal(t, 0, state.ClarificationCount, "counter resets when research is forced")
	assert.Equal(t, "orchestrator", state.LastAgent)
	assert.Equal(t, 0, h.orchestratorLLM.callCount(), "L1 must not call the LLM")
}

func TestOrchestratorL2FollowUpForcesResearch(t *testing.T) {
	h := newHarness(t)
	agent := newOrchestratorUnderTest(t, h)

	history := []*protocol.Message{
		protocol.NewUserMessage("tell me about it"),
		protocol.NewAssistantMessage("Which paper do you mean?"),
	}
	state := NewTurnState("s1", history, "clarification", 1, "the DAIL-SQL one")
	require.NoError(t, agent.Execute(context.Background(), state))

	assert.Equal(t, AgentResearch, state.NextAgent)
	assert.Equal(t, 0, h.orchestratorLLM.callCount(), "L2 must not call the LLM")
}

func TestOrchestratorL3RoutesToClarification(t *testing.T) {
	h := newHarness(t)
	h.orchestratorLLM.script = []scriptStep{textStep("CLARIFICATION")}
	agent := newOrchestratorUnderTest(t, h)

	state := NewTurnState("s1", nil, "", 0, "what about it?")
	require.NoError(t, agent.Execute(context.Background(), state))

	assert.Equal(t, AgentClarification, state.NextAgent)
	assert.Equal(t, 1, state.ClarificationCount, "routing to clarification increments the counter")
	assert.Equal(t, 1, h.orchestratorLLM.callCount())
}

func TestOrchestratorL3RoutesToResearch(t *testing.T) {
	h := newHarness(t)
	h.orchestratorLLM.script = []scriptStep{textStep("research")}
	agent := newOrchestratorUnderTest(t, h)

	state := NewTurnState("s1", nil, "", 1, "compare DAIL-SQL and DIN-SQL accuracy on Spider")
	require.NoError(t, agent.Execute(context.Background(), state))

	assert.Equal(t, AgentResearch, state.NextAgent)
	assert.Equal(t, 0, state.ClarificationCount, "routing to research resets the counter")
}

func TestOrchestratorAmbiguousOutputDefaultsToResearch(t *testing.T) {
	for _, output := range []string{
		"CLARIFICATION or RESEARCH, hard to say",
		"neither, really",
		"",
	} {
		h := newHarness(t)
		h.orchestratorLLM.script = []scriptStep{textStep(output)}
		agent := newOrchestratorUnderTest(t, h)

		state := NewTurnState("s1", nil, "", 0, "hmm")
		require.NoError(t, agent.Execute(context.Background(), state))
		assert.Equal(t, AgentResearch, state.NextAgent, "output %q should default to research", output)
	}
}

func TestOrchestratorLLMFailureDefaultsToResearch(t *testing.T) {
	h := newHarness(t)
	h.orchestratorLLM.script = []scriptStep{errStep(assert.AnError)}
	agent := newOrchestratorUnderTest(t, h)

	state := NewTurnState("s1", nil, "", 1, "q")
	require.NoError(t, agent.Execute(context.Background(), state))

	assert.Equal(t, AgentResearch, state.NextAgent)
	assert.Equal(t, 1, state.ClarificationCount, "counter unchanged on LLM failure")
}

func TestOrchestratorNeverEmitsAssistantMessage(t *testing.T) {
	h := newHarness(t)
	h.orchestratorLLM.script = []scriptStep{textStep("RESEARCH")}
	agent := newOrchestratorUnderTest(t, h)

	state := NewTurnState("s1", nil, "", 0, "q")
	before := len(state.Messages)
	require.NoError(t, agent.Execute(context.Background(), state))
	assert.Len(t, state.Messages, before)
}

package orchestration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSynthesisUnderTest(t *testing.T, h *harness) *Synthesis {
	t.Helper()
	provider, ok := h.services.LLMs.Get("synthesis")
	require.True(t, ok)
	h.services.normalize()
	return NewSynthesis(h.services, provider, &h.services.Config.Agents.Synthesis)
}

func TestConfidenceMapping(t *testing.T) {
	cases := []struct {
		tools int
		want  float64
	}{
		{0, 0.0},
		{1, 0.6},
		{2, 0.8},
		{3, 0.95},
		{7, 0.95},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, confidenceFor(tc.tools), "distinct tools: %d", tc.tools)
	}
}

func TestSynthesisProducesAnswerWithConfidence(t *testing.T) {
	h := newHarness(t)
	h.synthesisLLM.script = []scriptStep{textStep("DAIL-SQL reaches 86.6% on Spider [gao2023.pdf, p.3].")}
	agent := newSynthesisUnderTest(t, h)

	state := NewTurnState("s1", nil, "research", 0, "What accuracy?")
	state.Context = ResearchContext{
		ToolHistory:  []string{"pdf_retrieval", "web_search"},
		Observations: []string{"Used tool: pdf_retrieval", "Used tool: web_search"},
		FinalOutput:  "evidence summary",
	}

	require.NoError(t, agent.Execute(context.Background(), state))

	assert.Equal(t, "DAIL-SQL reaches 86.6% on Spider [gao2023.pdf, p.3].", state.FinalAnswer)
	require.NotNil(t, state.Confidence)
	assert.Equal(t, 0.8, *state.Confidence)
	assert.Equal(t, AgentEnd, state.NextAgent)
	assert.Equal(t, "synthesis", state.LastAgent)

	require.Len(t, state.Messages, 2)
	assert.Equal(t, state.FinalAnswer, state.Messages[1].Content)

	// Evidence reached the prompt.
	req := h.synthesisLLM.requests[0]
	assert.Contains(t, req.Messages[0].Content, "Used tool: pdf_retrieval")
	assert.Contains(t, req.Messages[0].Content, "evidence summary")
	assert.Contains(t, req.Messages[0].Content, "What accuracy?")
}

func TestSynthesisFailureFallsBackToResearchOutput(t *testing.T) {
	h := newHarness(t)
	h.synthesisLLM.script = []scriptStep{errStep(assert.AnError)}
	agent := newSynthesisUnderTest(t, h)

	state := NewTurnState("s1", nil, "research", 0, "q")
	state.Context.FinalOutput = "raw research findings"
	state.Context.ToolHistory = []string{"pdf_retrieval"}

	require.NoError(t, agent.Execute(context.Background(), state))

	assert.Equal(t, "raw research findings", state.FinalAnswer)
	require.NotNil(t, state.Confidence)
	assert.Equal(t, 0.0, *state.Confidence, "degraded answers carry zero confidence")
	assert.Equal(t, AgentEnd, state.NextAgent)
	assert.Len(t, state.Messages, 1, "fallback answer is not re-appended to history")
}

func TestSynthesisFailureWithoutResearchOutput(t *testing.T) {
	h := newHarness(t)
	h.synthesisLLM.script = []scriptStep{errStep(assert.AnError)}
	agent := newSynthesisUnderTest(t, h)

	state := NewTurnState("s1", nil, "research", 0, "q")
	require.NoError(t, agent.Execute(context.Background(), state))

	assert.Equal(t, synthesisErrorAnswer, state.FinalAnswer)
	require.NotNil(t, state.Confidence)
	assert.Equal(t, 0.0, *state.Confidence)
}

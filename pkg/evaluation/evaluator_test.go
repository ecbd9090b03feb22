package evaluation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarlabs/scholar/pkg/config"
	"github.com/scholarlabs/scholar/pkg/llms"
	"github.com/scholarlabs/scholar/pkg/observability"
	"github.com/scholarlabs/scholar/pkg/orchestration"
	"github.com/scholarlabs/scholar/pkg/prompts"
	"github.com/scholarlabs/scholar/pkg/protocol"
	"github.com/scholarlabs/scholar/pkg/session"
	"github.com/scholarlabs/scholar/pkg/tools"
)

// replayLLM replays a per-role response sequence, repeating the last entry.
type replayLLM struct {
	mu    sync.Mutex
	steps []*llms.Response
	calls int
}

func (r *replayLLM) Generate(ctx context.Context, req *llms.Request) (*llms.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.calls
	r.calls++
	if idx >= len(r.steps) {
		idx = len(r.steps) - 1
	}
	return r.steps[idx], nil
}

func (r *replayLLM) GetModelName() string { return "replay" }
func (r *replayLLM) Close() error         { return nil }

type recordedTool struct{ name string }

func (t recordedTool) GetName() string        { return t.name }
func (t recordedTool) GetDescription() string { return t.name }
func (t recordedTool) GetInfo() tools.ToolInfo {
	return tools.ToolInfo{Name: t.name, Description: t.name}
}
func (t recordedTool) Execute(ctx context.Context, args map[string]any) (tools.ToolResult, error) {
	return tools.ToolResult{Success: true, Content: "evidence", ToolName: t.name}, nil
}

func evalHarness(t *testing.T, orchestratorText string, researchSteps []*llms.Response) (*Evaluator, *observability.RecorderSink) {
	t.Helper()

	cfg := &config.Config{}
	cfg.Agents.Orchestrator = config.OrchestratorConfig{LLM: "orchestrator"}
	cfg.Agents.Clarification = config.ClarificationConfig{LLM: "clarification"}
	cfg.Agents.Research = config.ResearchConfig{LLM: "research"}
	cfg.Agents.Synthesis = config.SynthesisConfig{LLM: "synthesis"}
	cfg.Agents.Orchestrator.SetDefaults()
	cfg.Agents.Clarification.SetDefaults()
	cfg.Agents.Research.SetDefaults()
	cfg.Agents.Synthesis.SetDefaults()
	cfg.Prompts.SetDefaults()
	cfg.Runner.SetDefaults()

	registry := llms.NewRegistry()
	require.NoError(t, registry.Register("orchestrator", &replayLLM{steps: []*llms.Response{{Text: orchestratorText}}}))
	require.NoError(t, registry.Register("clarification", &replayLLM{steps: []*llms.Response{{Text: "Which one?"}}}))
	require.NoError(t, registry.Register("research", &replayLLM{steps: researchSteps}))
	require.NoError(t, registry.Register("synthesis", &replayLLM{steps: []*llms.Response{{Text: "Final grounded answer."}}}))

	toolRegistry := tools.NewRegistry()
	require.NoError(t, toolRegistry.RegisterTool(recordedTool{name: "pdf_retrieval"}))

	recorder := observability.NewRecorderSink()
	store := session.NewMemoryStore(24*time.Hour, 0, nil)
	t.Cleanup(func() { store.Close() })

	runner, err := orchestration.NewRunner(&orchestration.Services{
		LLMs:     registry,
		Prompts:  prompts.NewDefaultService(),
		Tools:    toolRegistry,
		Sessions: store,
		Sink:     recorder,
		Config:   cfg,
	})
	require.NoError(t, err)

	evaluator, err := NewEvaluator(runner, recorder, store, nil, &config.EvaluationConfig{Concurrency: 2})
	require.NoError(t, err)
	return evaluator, recorder
}

func TestEvaluatorWorkflowPass(t *testing.T) {
	evaluator, _ := evalHarness(t, "RESEARCH", []*llms.Response{
		{ToolCalls: []*protocol.ToolCall{{ID: "call_1", Name: "pdf_retrieval", Arguments: map[string]any{"query": "q"}}}},
		{Text: "research summary"},
	})

	results, err := evaluator.Run(context.Background(), []*Scenario{{
		Name:  "research_uses_corpus",
		Turns: []string{"What accuracy does DAIL-SQL reach?"},
		Workflow: WorkflowExpectation{
			AgentsShouldInclude: []string{"orchestrator", "research", "synthesis"},
			AgentsShouldExclude: []string{"clarification"},
			ToolsShouldInclude:  []string{"pdf_retrieval"},
		},
	}})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.True(t, results[0].Pass(), "failures: %v", results[0].Workflow.Failures)
	assert.Equal(t, "Final grounded answer.", results[0].Answer)
	require.NotNil(t, results[0].Confidence)
	assert.Equal(t, 0.6, *results[0].Confidence)
}

func TestEvaluatorWorkflowFailure(t *testing.T) {
	evaluator, _ := evalHarness(t, "CLARIFICATION", nil)

	results, err := evaluator.Run(context.Background(), []*Scenario{{
		Name:  "expected_research",
		Turns: []string{"vague"},
		Workflow: WorkflowExpectation{
			AgentsShouldInclude: []string{"research"},
		},
	}})
	require.NoError(t, err)

	assert.False(t, results[0].Pass())
	assert.NotEmpty(t, results[0].Workflow.Failures)
}

func TestEvaluatorPrimedState(t *testing.T) {
	// Primed at the clarification bound: L1 must force research with no
	// orchestrator classification.
	evaluator, _ := evalHarness(t, "CLARIFICATION", []*llms.Response{{Text: "findings"}})

	results, err := evaluator.Run(context.Background(), []*Scenario{{
		Name:  "cap_forces_research",
		Turns: []string{"still vague"},
		PrimedState: &PrimedState{
			LastAgent:          "clarification",
			ClarificationCount: 2,
			History: []Primed{
				{Role: "user", Content: "how accurate?"},
				{Role: "assistant", Content: "Which benchmark?"},
			},
		},
		Workflow: WorkflowExpectation{
			AgentsShouldInclude: []string{"research", "synthesis"},
			AgentsShouldExclude: []string{"clarification"},
		},
	}})
	require.NoError(t, err)
	assert.True(t, results[0].Pass(), "failures: %v", results[0].Workflow.Failures)
}

func TestEvaluatorRejectsScenarioWithoutTurns(t *testing.T) {
	evaluator, _ := evalHarness(t, "RESEARCH", []*llms.Response{{Text: "findings"}})

	results, err := evaluator.Run(context.Background(), []*Scenario{{Name: "no_turns"}})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.False(t, results[0].Pass())
	assert.Contains(t, results[0].Error, "no turns")
}

func TestSummarize(t *testing.T) {
	passed, failed := Summarize([]*ScenarioResult{
		{Workflow: WorkflowResult{Pass: true}},
		{Workflow: WorkflowResult{Pass: false}},
		{Workflow: WorkflowResult{Pass: true}, Error: "judge failed"},
	})
	assert.Equal(t, 1, passed)
	assert.Equal(t, 2, failed)
}

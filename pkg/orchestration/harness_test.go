package orchestration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/scholarlabs/scholar/pkg/config"
	"github.com/scholarlabs/scholar/pkg/llms"
	"github.com/scholarlabs/scholar/pkg/observability"
	"github.com/scholarlabs/scholar/pkg/prompts"
	"github.com/scholarlabs/scholar/pkg/protocol"
	"github.com/scholarlabs/scholar/pkg/session"
	"github.com/scholarlabs/scholar/pkg/tools"
)

// scriptedLLM replays a fixed sequence of responses. Once the script is
// exhausted it keeps returning the last entry.
type scriptedLLM struct {
	mu       sync.Mutex
	script   []scriptStep
	requests []*llms.Request
}

type scriptStep struct {
	resp *llms.Response
	err  error
}

func textStep(text string) scriptStep {
	return scriptStep{resp: &llms.Response{Text: text}}
}

func toolStep(text string, calls ...*protocol.ToolCall) scriptStep {
	return scriptStep{resp: &llms.Response{Text: text, ToolCalls: calls}}
}

func errStep(err error) scriptStep {
	return scriptStep{err: err}
}

func newScriptedLLM(steps ...scriptStep) *scriptedLLM {
	return &scriptedLLM{script: steps}
}

func (s *scriptedLLM) Generate(ctx context.Context, req *llms.Request) (*llms.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)

	idx := len(s.requests) - 1
	if idx >= len(s.script) {
		idx = len(s.script) - 1
	}
	if idx < 0 {
		return &llms.Response{Text: ""}, nil
	}
	step := s.script[idx]
	return step.resp, step.err
}

func (s *scriptedLLM) GetModelName() string { return "scripted" }
func (s *scriptedLLM) Close() error         { return nil }

func (s *scriptedLLM) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// scriptedTool returns canned content and records the arguments it saw.
type scriptedTool struct {
	name    string
	content string
	fail    bool

	mu    sync.Mutex
	calls []map[string]any
}

func (t *scriptedTool) GetName() string        { return t.name }
func (t *scriptedTool) GetDescription() string { return "scripted " + t.name }

func (t *scriptedTool) GetInfo() tools.ToolInfo {
	return tools.ToolInfo{
		Name:        t.name,
		Description: t.GetDescription(),
		Parameters: []tools.ToolParameter{
			{Name: "query", Type: "string", Description: "query", Required: true},
		},
	}
}

func (t *scriptedTool) Execute(ctx context.Context, args map[string]any) (tools.ToolResult, error) {
	t.mu.Lock()
	t.calls = append(t.calls, args)
	t.mu.Unlock()
	if t.fail {
		return tools.ToolResult{Success: false, Error: "tool unavailable", ToolName: t.name}, nil
	}
	return tools.ToolResult{Success: true, Content: t.content, ToolName: t.name}, nil
}

// harness bundles per-agent scripts and the runner wiring for a test.
type harness struct {
	orchestratorLLM  *scriptedLLM
	clarificationLLM *scriptedLLM
	researchLLM      *scriptedLLM
	synthesisLLM     *scriptedLLM
	recorder         *observability.RecorderSink
	store            *session.MemoryStore
	toolRegistry     *tools.Registry
	services         *Services
}

func testConfig() *config.Config {
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
	return cfg
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		orchestratorLLM:  newScriptedLLM(),
		clarificationLLM: newScriptedLLM(),
		researchLLM:      newScriptedLLM(),
		synthesisLLM:     newScriptedLLM(),
		recorder:         observability.NewRecorderSink(),
		store:            session.NewMemoryStore(24*time.Hour, 0, nil),
		toolRegistry:     tools.NewRegistry(),
	}
	t.Cleanup(func() { h.store.Close() })

	llmRegistry := llms.NewRegistry()
	require.NoError(t, llmRegistry.Register("orchestrator", h.orchestratorLLM))
	require.NoError(t, llmRegistry.Register("clarification", h.clarificationLLM))
	require.NoError(t, llmRegistry.Register("research", h.researchLLM))
	require.NoError(t, llmRegistry.Register("synthesis", h.synthesisLLM))

	h.services = &Services{
		LLMs:     llmRegistry,
		Prompts:  prompts.NewDefaultService(),
		Tools:    h.toolRegistry,
		Sessions: h.store,
		Sink:     h.recorder,
		Config:   testConfig(),
	}
	return h
}

func (h *harness) runner(t *testing.T) *Runner {
	t.Helper()
	runner, err := NewRunner(h.services)
	require.NoError(t, err)
	return runner
}

func (h *harness) registerTools(t *testing.T, ts ...*scriptedTool) {
	t.Helper()
	for _, tool := range ts {
		require.NoError(t, h.toolRegistry.RegisterTool(tool))
	}
}

func call(name string, query string) *protocol.ToolCall {
	return &protocol.ToolCall{
		ID:        protocol.NewToolCallID(),
		Name:      name,
		Arguments: map[string]any{"query": query},
	}
}

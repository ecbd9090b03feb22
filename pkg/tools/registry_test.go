package tools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTool struct {
	name   string
	result ToolResult
	err    error
	args   map[string]any
}

func (s *stubTool) GetName() string { return s.name }

func (s *stubTool) GetDescription() string { return "stub" }

func (s *stubTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        s.name,
		Description: "stub",
		Parameters: []ToolParameter{
			{Name: "query", Type: "string", Description: "q", Required: true},
			{Name: "top_k", Type: "integer", Description: "k", Default: 5},
		},
	}
}

func (s *stubTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	s.args = args
	return s.result, s.err
}

func TestRegistryExecuteToolCall(t *testing.T) {
	reg := NewRegistry()
	stub := &stubTool{
		name:   "pdf_retrieval",
		result: ToolResult{Success: true, Content: "found it", ToolName: "pdf_retrieval"},
	}
	require.NoError(t, reg.RegisterTool(stub))

	result := reg.ExecuteToolCall(context.Background(), "pdf_retrieval", map[string]any{"query": "x"})
	assert.True(t, result.Success)
	assert.Equal(t, "found it", result.Content)
	assert.Equal(t, map[string]any{"query": "x"}, stub.args)
}

func TestRegistryUnknownToolBecomesErrorResult(t *testing.T) {
	reg := NewRegistry()

	result := reg.ExecuteToolCall(context.Background(), "delete_database", nil)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "unknown tool: delete_database")
	assert.Equal(t, "delete_database", result.ToolName)
}

func TestRegistryToolErrorBecomesErrorResult(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterTool(&stubTool{
		name: "web_search",
		err:  assert.AnError,
	}))

	result := reg.ExecuteToolCall(context.Background(), "web_search", nil)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
	assert.Greater(t, result.ExecutionTime, time.Duration(0))
}

func TestRegistryRejectsEmptyName(t *testing.T) {
	reg := NewRegistry()
	err := reg.RegisterTool(&stubTool{name: ""})
	require.Error(t, err)

	var regErr *ToolRegistryError
	assert.ErrorAs(t, err, &regErr)
}

func TestDefinitions(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterTool(&stubTool{name: "pdf_retrieval"}))
	require.NoError(t, reg.RegisterTool(&stubTool{name: "web_search"}))

	defs := reg.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "pdf_retrieval", defs[0].Name)
	assert.Equal(t, "web_search", defs[1].Name)

	params := defs[0].Parameters
	assert.Equal(t, "object", params["type"])
	props := params["properties"].(map[string]any)
	assert.Contains(t, props, "query")
	assert.Equal(t, []string{"query"}, params["required"])
}

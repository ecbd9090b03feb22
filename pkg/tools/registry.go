package tools

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/scholarlabs/scholar/pkg/llms"
	"github.com/scholarlabs/scholar/pkg/registry"
)

type ToolRegistryError struct {
	Component string
	Action    string
	Message   string
	Err       error
}

func (e *ToolRegistryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Component, e.Action, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Component, e.Action, e.Message)
}

func (e *ToolRegistryError) Unwrap() error { return e.Err }

func NewToolRegistryError(component, action, message string, err error) *ToolRegistryError {
	return &ToolRegistryError{Component: component, Action: action, Message: message, Err: err}
}

type Registry struct {
	*registry.BaseRegistry[Tool]
	logger *slog.Logger
}

func NewRegistry() *Registry {
	return &Registry{
		BaseRegistry: registry.NewBaseRegistry[Tool](),
		logger:       slog.Default().With("component", "tools"),
	}
}

func (r *Registry) RegisterTool(tool Tool) error {
	name := tool.GetName()
	if name == "" {
		return NewToolRegistryError("Registry", "RegisterTool", "tool name cannot be empty", nil)
	}
	if err := r.Register(name, tool); err != nil {
		return NewToolRegistryError("Registry", "RegisterTool",
			fmt.Sprintf("failed to register tool %s", name), err)
	}
	return nil
}

// Definitions returns the function-calling specs for every registered tool,
// in registration order.
func (r *Registry) Definitions() []llms.ToolDefinition {
	tools := r.List()
	defs := make([]llms.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, Definition(t.GetInfo()))
	}
	return defs
}

// ExecuteToolCall runs a named tool and always produces a ToolResult. An
// unknown tool name or a tool failure becomes an unsuccessful result so the
// reason-act loop can feed the error text back to the model instead of
// aborting the turn.
func (r *Registry) ExecuteToolCall(ctx context.Context, name string, args map[string]any) ToolResult {
	start := time.Now()

	tool, ok := r.Get(name)
	if !ok {
		r.logger.Warn("Unknown tool requested", "tool", name)
		return errorResult(name, fmt.Sprintf("unknown tool: %s", name), time.Since(start))
	}

	result, err := tool.Execute(ctx, args)
	if err != nil {
		r.logger.Error("Tool execution failed", "tool", name, "error", err)
		return errorResult(name, err.Error(), time.Since(start))
	}
	if result.ToolName == "" {
		result.ToolName = name
	}
	if result.ExecutionTime == 0 {
		result.ExecutionTime = time.Since(start)
	}
	return result
}

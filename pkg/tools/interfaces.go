// Package tools holds the research tools the reason-act loop can invoke:
// corpus retrieval over the paper index and a web search fallback.
package tools

import (
	"context"
	"time"

	"github.com/scholarlabs/scholar/pkg/llms"
)

type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters,omitempty"`
}

type ToolParameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Default     any    `json:"default,omitempty"`
}

type ToolResult struct {
	Success       bool           `json:"success"`
	Content       string         `json:"content,omitempty"`
	Error         string         `json:"error,omitempty"`
	ToolName      string         `json:"tool_name"`
	ExecutionTime time.Duration  `json:"execution_time,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

type Tool interface {
	GetInfo() ToolInfo

	// Execute runs the tool. Argument validation failures come back as an
	// unsuccessful ToolResult, not an error; the error return is reserved
	// for infrastructure failures.
	Execute(ctx context.Context, args map[string]any) (ToolResult, error)

	GetName() string

	GetDescription() string
}

// Definition converts tool metadata into the function-calling shape the LLM
// providers expect.
func Definition(info ToolInfo) llms.ToolDefinition {
	properties := make(map[string]any, len(info.Parameters))
	required := []string{}
	for _, p := range info.Parameters {
		prop := map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return llms.ToolDefinition{
		Name:        info.Name,
		Description: info.Description,
		Parameters: map[string]any{
			"type":       "object",
			"properties": properties,
			"required":   required,
		},
	}
}

func successResult(toolName, content string, elapsed time.Duration, metadata map[string]any) ToolResult {
	return ToolResult{
		Success:       true,
		Content:       content,
		ToolName:      toolName,
		ExecutionTime: elapsed,
		Metadata:      metadata,
	}
}

func errorResult(toolName, errorMsg string, elapsed time.Duration) ToolResult {
	if errorMsg == "" {
		errorMsg = "unknown error"
	}
	return ToolResult{
		Success:       false,
		Error:         errorMsg,
		ToolName:      toolName,
		ExecutionTime: elapsed,
	}
}

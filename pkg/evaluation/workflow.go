package evaluation

import (
	"fmt"
	"strings"
)

// WorkflowResult is the outcome of the agent/tool assertions for one
// scenario. Pass is agents.pass AND tools.pass.
type WorkflowResult struct {
	AgentsPass bool     `json:"agents_pass"`
	ToolsPass  bool     `json:"tools_pass"`
	Pass       bool     `json:"pass"`
	Failures   []string `json:"failures,omitempty"`
}

// checkWorkflow compares the observed agent and tool sequences against the
// scenario's expectations. Order is not asserted, only membership.
func checkWorkflow(expect WorkflowExpectation, agents, tools []string) WorkflowResult {
	result := WorkflowResult{AgentsPass: true, ToolsPass: true}

	agentSet := toSet(agents)
	for _, want := range expect.AgentsShouldInclude {
		if !agentSet[want] {
			result.AgentsPass = false
			result.Failures = append(result.Failures,
				fmt.Sprintf("agent %s expected but not invoked (saw: %s)", want, strings.Join(agents, ", ")))
		}
	}
	for _, forbidden := range expect.AgentsShouldExclude {
		if agentSet[forbidden] {
			result.AgentsPass = false
			result.Failures = append(result.Failures,
				fmt.Sprintf("agent %s invoked but excluded", forbidden))
		}
	}

	toolSet := toSet(tools)
	for _, want := range expect.ToolsShouldInclude {
		if !toolSet[want] {
			result.ToolsPass = false
			result.Failures = append(result.Failures,
				fmt.Sprintf("tool %s expected but not invoked (saw: %s)", want, strings.Join(tools, ", ")))
		}
	}
	for _, forbidden := range expect.ToolsShouldExclude {
		if toolSet[forbidden] {
			result.ToolsPass = false
			result.Failures = append(result.Failures,
				fmt.Sprintf("tool %s invoked but excluded", forbidden))
		}
	}

	result.Pass = result.AgentsPass && result.ToolsPass
	return result
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}

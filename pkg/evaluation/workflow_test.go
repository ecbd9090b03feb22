package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckWorkflowPass(t *testing.T) {
	result := checkWorkflow(WorkflowExpectation{
		AgentsShouldInclude: []string{"orchestrator", "research", "synthesis"},
		AgentsShouldExclude: []string{"clarification"},
		ToolsShouldInclude:  []string{"pdf_retrieval"},
		ToolsShouldExclude:  []string{"web_search"},
	},
		[]string{"orchestrator", "research", "synthesis"},
		[]string{"pdf_retrieval", "pdf_retrieval"},
	)

	assert.True(t, result.Pass)
	assert.Empty(t, result.Failures)
}

func TestCheckWorkflowMissingAgent(t *testing.T) {
	result := checkWorkflow(WorkflowExpectation{
		AgentsShouldInclude: []string{"research"},
	}, []string{"orchestrator", "clarification"}, nil)

	assert.False(t, result.Pass)
	assert.False(t, result.AgentsPass)
	assert.True(t, result.ToolsPass)
	assert.Len(t, result.Failures, 1)
}

func TestCheckWorkflowForbiddenTool(t *testing.T) {
	result := checkWorkflow(WorkflowExpectation{
		ToolsShouldExclude: []string{"web_search"},
	}, []string{"orchestrator"}, []string{"web_search"})

	assert.False(t, result.Pass)
	assert.True(t, result.AgentsPass)
	assert.False(t, result.ToolsPass)
}

func TestCheckWorkflowEmptyExpectationsAlwaysPass(t *testing.T) {
	result := checkWorkflow(WorkflowExpectation{}, nil, nil)
	assert.True(t, result.Pass)
}

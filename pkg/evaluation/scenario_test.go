package evaluation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioYAML = `- name: clear_question_uses_corpus
  turns:
    - "What accuracy does DAIL-SQL reach on Spider?"
  workflow:
    agents_should_include: [orchestrator, research, synthesis]
    agents_should_exclude: [clarification]
    tools_should_include: [pdf_retrieval]
  expected_answer_criteria: "States 86.6% execution accuracy and cites the paper."

- name: vague_question_clarifies
  turns:
    - "how good is it?"
  workflow:
    agents_should_include: [orchestrator, clarification]
    agents_should_exclude: [research, synthesis]

- name: follow_up_after_clarification
  turns:
    - "on the Spider benchmark"
  primed_state:
    last_agent: clarification
    clarification_count: 1
    history:
      - role: user
        content: "how accurate?"
      - role: assistant
        content: "Which benchmark do you mean?"
  workflow:
    agents_should_include: [research]
    agents_should_exclude: [clarification]
`

func TestLoadScenarios(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scenarios.yaml"), []byte(scenarioYAML), 0o644))

	scenarios, err := LoadScenarios(dir)
	require.NoError(t, err)
	require.Len(t, scenarios, 3)

	first := scenarios[0]
	assert.Equal(t, "clear_question_uses_corpus", first.Name)
	assert.Equal(t, []string{"orchestrator", "research", "synthesis"}, first.Workflow.AgentsShouldInclude)
	assert.Contains(t, first.ExpectedAnswerCriteria, "86.6%")

	primed := scenarios[2].PrimedState
	require.NotNil(t, primed)
	assert.Equal(t, "clarification", primed.LastAgent)
	assert.Equal(t, 1, primed.ClarificationCount)
	require.Len(t, primed.History, 2)
	assert.Equal(t, "assistant", primed.History[1].Role)
}

func TestLoadScenariosRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("- name: no_turns\n  turns: []\n"), 0o644))

	_, err := LoadScenarios(dir)
	assert.Error(t, err)
}

func TestLoadScenariosEmptyDir(t *testing.T) {
	_, err := LoadScenarios(t.TempDir())
	assert.Error(t, err)
}

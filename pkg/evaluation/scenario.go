// Package evaluation runs scripted scenarios through the turn runner and
// scores them on two orthogonal axes: workflow (which agents and tools
// actually ran) and answer quality (an LLM judge).
package evaluation

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Scenario is one end-to-end test case. Turns are sent in order and the
// assertions apply to the final turn.
type Scenario struct {
	Name  string   `yaml:"name"`
	Turns []string `yaml:"turns"`

	// PrimedState optionally seeds the session before the first turn.
	PrimedState *PrimedState `yaml:"primed_state,omitempty"`

	Workflow WorkflowExpectation `yaml:"workflow"`

	// ExpectedAnswerCriteria is free-form text handed to the LLM judge.
	ExpectedAnswerCriteria string `yaml:"expected_answer_criteria,omitempty"`
}

// PrimedState seeds session fields so scenarios can start mid-conversation.
type PrimedState struct {
	LastAgent          string   `yaml:"last_agent,omitempty"`
	ClarificationCount int      `yaml:"clarification_count,omitempty"`
	History            []Primed `yaml:"history,omitempty"`
}

// Primed is one seeded transcript entry.
type Primed struct {
	Role    string `yaml:"role"`
	Content string `yaml:"content"`
}

// WorkflowExpectation constrains which agents and tools must (not) appear.
type WorkflowExpectation struct {
	AgentsShouldInclude []string `yaml:"agents_should_include,omitempty"`
	AgentsShouldExclude []string `yaml:"agents_should_exclude,omitempty"`
	ToolsShouldInclude  []string `yaml:"tools_should_include,omitempty"`
	ToolsShouldExclude  []string `yaml:"tools_should_exclude,omitempty"`
}

func (s *Scenario) validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario name is required")
	}
	if len(s.Turns) == 0 {
		return fmt.Errorf("scenario %s: at least one turn is required", s.Name)
	}
	return nil
}

// LoadScenarios reads all *.yaml scenario files from a directory, sorted by
// filename for stable run order.
func LoadScenarios(dir string) ([]*Scenario, error) {
	entries, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list scenario files: %w", err)
	}
	sort.Strings(entries)

	var scenarios []*Scenario
	for _, path := range entries {
		loaded, err := loadScenarioFile(path)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, loaded...)
	}
	if len(scenarios) == 0 {
		return nil, fmt.Errorf("no scenarios found in %s", dir)
	}
	return scenarios, nil
}

// loadScenarioFile parses one YAML file holding a list of scenarios.
func loadScenarioFile(path string) ([]*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var scenarios []*Scenario
	if err := yaml.Unmarshal(data, &scenarios); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	for _, s := range scenarios {
		if err := s.validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return scenarios, nil
}

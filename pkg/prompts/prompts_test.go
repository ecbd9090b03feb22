package prompts

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplate_Compile(t *testing.T) {
	tmpl := &Template{Name: "x", Label: "dev", Text: "Hello {name}, you asked: {query}"}

	out, err := tmpl.Compile(map[string]string{"name": "Ada", "query": "what is DAIL-SQL?"})
	require.NoError(t, err)
	assert.Equal(t, "Hello Ada, you asked: what is DAIL-SQL?", out)
}

func TestTemplate_Compile_MissingVariable(t *testing.T) {
	tmpl := &Template{Name: "x", Label: "dev", Text: "{a} and {b}"}

	_, err := tmpl.Compile(map[string]string{"a": "1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b")
}

func TestTemplate_Variables(t *testing.T) {
	tmpl := &Template{Text: "{query} {query} {count}"}
	assert.Equal(t, []string{"query", "count"}, tmpl.Variables())
}

func TestStaticService_Fetch(t *testing.T) {
	s := NewStaticService()
	s.Set("agent_orchestrator", "dev", "classify {conversation}")

	tmpl, err := s.Fetch(context.Background(), "agent_orchestrator", "dev")
	require.NoError(t, err)
	assert.Equal(t, "classify {conversation}", tmpl.Text)

	_, err = s.Fetch(context.Background(), "agent_orchestrator", "production")
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestDefaultService_HasRequiredTemplates(t *testing.T) {
	s := NewDefaultService()
	for _, name := range []string{
		"agent_orchestrator", "agent_clarification", "agent_research",
		"agent_synthesis", "evaluation_quality",
	} {
		for _, label := range []string{"dev", "production"} {
			tmpl, err := s.Fetch(context.Background(), name, label)
			require.NoError(t, err, "%s/%s", label, name)
			assert.NotEmpty(t, tmpl.Text)
		}
	}
}

func TestDefaultTemplates_CompileWithExpectedVariables(t *testing.T) {
	s := NewDefaultService()
	ctx := context.Background()

	orch, err := s.Fetch(ctx, "agent_orchestrator", "dev")
	require.NoError(t, err)
	_, err = orch.Compile(map[string]string{
		"conversation": "User: hi", "clarification_count": "0", "max_clarifications": "2",
	})
	assert.NoError(t, err)

	synth, err := s.Fetch(ctx, "agent_synthesis", "dev")
	require.NoError(t, err)
	_, err = synth.Compile(map[string]string{"query": "q", "evidence": "e"})
	assert.NoError(t, err)
}

func TestFileService_FetchAndFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "dev"), 0755))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "dev", "agent_research.md"),
		[]byte("custom research prompt {current_date}\n"), 0644))

	s, err := NewFileService(dir, false)
	require.NoError(t, err)
	defer s.Close()

	tmpl, err := s.Fetch(context.Background(), "agent_research", "dev")
	require.NoError(t, err)
	assert.Equal(t, "custom research prompt {current_date}", tmpl.Text)

	// Missing on disk falls back to built-in defaults.
	tmpl, err = s.Fetch(context.Background(), "agent_synthesis", "dev")
	require.NoError(t, err)
	assert.NotEmpty(t, tmpl.Text)
}

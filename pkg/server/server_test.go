package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarlabs/scholar/pkg/config"
	"github.com/scholarlabs/scholar/pkg/llms"
	"github.com/scholarlabs/scholar/pkg/orchestration"
	"github.com/scholarlabs/scholar/pkg/prompts"
	"github.com/scholarlabs/scholar/pkg/session"
	"github.com/scholarlabs/scholar/pkg/tools"
)

type staticLLM struct{ text string }

func (s staticLLM) Generate(ctx context.Context, req *llms.Request) (*llms.Response, error) {
	return &llms.Response{Text: s.text}, nil
}
func (s staticLLM) GetModelName() string { return "static" }
func (s staticLLM) Close() error         { return nil }

func newTestServer(t *testing.T) (*Server, *session.MemoryStore) {
	t.Helper()

	cfg := &config.Config{}
	cfg.Agents.Orchestrator = config.OrchestratorConfig{LLM: "llm"}
	cfg.Agents.Clarification = config.ClarificationConfig{LLM: "llm"}
	cfg.Agents.Research = config.ResearchConfig{LLM: "llm"}
	cfg.Agents.Synthesis = config.SynthesisConfig{LLM: "llm"}
	cfg.Agents.Orchestrator.SetDefaults()
	cfg.Agents.Clarification.SetDefaults()
	cfg.Agents.Research.SetDefaults()
	cfg.Agents.Synthesis.SetDefaults()
	cfg.Prompts.SetDefaults()
	cfg.Runner.SetDefaults()

	registry := llms.NewRegistry()
	// A single provider answering RESEARCH keeps the flow deterministic:
	// orchestrator routes to research, research emits the text as its final
	// output, synthesis restates it.
	require.NoError(t, registry.Register("llm", staticLLM{text: "RESEARCH"}))

	store := session.NewMemoryStore(24*time.Hour, 0, nil)
	t.Cleanup(func() { store.Close() })

	runner, err := orchestration.NewRunner(&orchestration.Services{
		LLMs:     registry,
		Prompts:  prompts.NewDefaultService(),
		Tools:    tools.NewRegistry(),
		Sessions: store,
		Config:   cfg,
	})
	require.NoError(t, err)

	srv, err := New(runner, &config.ServerConfig{MaxInputBytes: 1024}, nil)
	require.NoError(t, err)
	return srv, store
}

func postChat(t *testing.T, router http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestChatEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	rec := postChat(t, router, `{"message": "What is DAIL-SQL?", "session_id": "s1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "s1", resp.SessionID)
	assert.NotEmpty(t, resp.Answer)
	require.NotNil(t, resp.Confidence)
	assert.Equal(t, 0.0, *resp.Confidence, "no tools ran, so confidence is zero")
}

func TestChatGeneratesSessionID(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := postChat(t, srv.Router(), `{"message": "hello"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SessionID)
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, body := range []string{`{"message": ""}`, `{"message": "   "}`, `{}`} {
		rec := postChat(t, srv.Router(), body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestChatRejectsOversizedInput(t *testing.T) {
	srv, _ := newTestServer(t)

	huge := `{"message": "` + strings.Repeat("a", 2048) + `"}`
	rec := postChat(t, srv.Router(), huge)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestChatRejectsInvalidJSON(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := postChat(t, srv.Router(), `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	rec := postChat(t, router, `{"message": "first question", "session_id": "s1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/sessions/s1/history", nil)
	historyRec := httptest.NewRecorder()
	router.ServeHTTP(historyRec, req)
	require.Equal(t, http.StatusOK, historyRec.Code)

	var entries []HistoryEntry
	require.NoError(t, json.Unmarshal(historyRec.Body.Bytes(), &entries))
	require.NotEmpty(t, entries)
	assert.Equal(t, "user", entries[0].Role)
	assert.Equal(t, "first question", entries[0].Content)

	// Clear and confirm empty.
	delReq := httptest.NewRequest(http.MethodDelete, "/sessions/s1/history", nil)
	delRec := httptest.NewRecorder()
	router.ServeHTTP(delRec, delReq)
	assert.Equal(t, http.StatusNoContent, delRec.Code)

	emptyRec := httptest.NewRecorder()
	router.ServeHTTP(emptyRec, httptest.NewRequest(http.MethodGet, "/sessions/s1/history", nil))
	require.Equal(t, http.StatusOK, emptyRec.Code)
	var cleared []HistoryEntry
	require.NoError(t, json.Unmarshal(emptyRec.Body.Bytes(), &cleared))
	assert.Empty(t, cleared)
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

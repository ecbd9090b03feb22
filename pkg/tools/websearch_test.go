package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarlabs/scholar/pkg/config"
)

const resultsPage = `<!DOCTYPE html>
<html><body>
<div class="results">
  <div class="result results_links results_links_deep web-result">
    <h2 class="result__title">
      <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Farxiv.org%2Fabs%2F2308.15363&amp;rut=abc">DAIL-SQL: Text-to-SQL Empowered by Large Language Models</a>
    </h2>
    <a class="result__snippet" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Farxiv.org%2Fabs%2F2308.15363">A systematic study of prompt engineering for <b>text-to-SQL</b>.</a>
  </div>
  <div class="result results_links results_links_deep web-result">
    <h2 class="result__title">
      <a class="result__a" href="https://example.com/spider">Spider benchmark</a>
    </h2>
    <a class="result__snippet" href="https://example.com/spider">Cross-domain semantic parsing dataset.</a>
  </div>
</div>
</body></html>`

func newSearchTool(t *testing.T, endpoint string, maxResults int) *WebSearchTool {
	t.Helper()
	tool, err := NewWebSearchTool(&config.WebSearchConfig{
		Endpoint:   endpoint,
		MaxResults: maxResults,
	})
	require.NoError(t, err)
	return tool
}

func TestWebSearchParsesResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text-to-SQL prompting", r.URL.Query().Get("q"))
		w.Write([]byte(resultsPage))
	}))
	defer server.Close()

	tool := newSearchTool(t, server.URL, 5)
	result, err := tool.Execute(context.Background(), map[string]any{"query": "text-to-SQL prompting"})
	require.NoError(t, err)
	require.True(t, result.Success, result.Error)

	assert.Contains(t, result.Content, "Title: DAIL-SQL")
	assert.Contains(t, result.Content, "URL: https://arxiv.org/abs/2308.15363", "redirect links should be unwrapped")
	assert.Contains(t, result.Content, "Content: A systematic study of prompt engineering")
	assert.Contains(t, result.Content, "Spider benchmark")
	assert.Equal(t, 2, result.Metadata["matches"])
}

func TestWebSearchRespectsMaxResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(resultsPage))
	}))
	defer server.Close()

	tool := newSearchTool(t, server.URL, 5)
	result, err := tool.Execute(context.Background(), map[string]any{"query": "q", "max_results": 1})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Metadata["matches"])
	assert.NotContains(t, result.Content, "Spider benchmark")
}

func TestWebSearchEmptyPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><div class="results"></div></body></html>`))
	}))
	defer server.Close()

	tool := newSearchTool(t, server.URL, 5)
	result, err := tool.Execute(context.Background(), map[string]any{"query": "nothing"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, result.Content, "No web results found")
}

func TestWebSearchServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	tool := newSearchTool(t, server.URL, 5)
	result, err := tool.Execute(context.Background(), map[string]any{"query": "q"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "search failed")
}

func TestWebSearchMissingQuery(t *testing.T) {
	tool := newSearchTool(t, "https://html.duckduckgo.com/html/", 5)
	result, err := tool.Execute(context.Background(), map[string]any{})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "query is required")
}

func TestCleanRedirect(t *testing.T) {
	assert.Equal(t,
		"https://arxiv.org/abs/2308.15363",
		cleanRedirect("//duckduckgo.com/l/?uddg=https%3A%2F%2Farxiv.org%2Fabs%2F2308.15363&rut=abc"))
	assert.Equal(t,
		"https://example.com/direct",
		cleanRedirect("https://example.com/direct"))
}

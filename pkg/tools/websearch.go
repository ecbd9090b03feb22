package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"golang.org/x/net/html"

	"github.com/scholarlabs/scholar/pkg/config"
)

// WebSearchTool queries the DuckDuckGo HTML endpoint, which needs no API
// key, and parses the result page.
type WebSearchTool struct {
	cfg    *config.WebSearchConfig
	client *http.Client
}

type webSearchArgs struct {
	Query      string `mapstructure:"query"`
	MaxResults int    `mapstructure:"max_results"`
}

type searchResult struct {
	Title   string
	URL     string
	Snippet string
}

func NewWebSearchTool(cfg *config.WebSearchConfig) (*WebSearchTool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("web_search: config cannot be nil")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("web_search: invalid config: %w", err)
	}
	return &WebSearchTool{
		cfg:    cfg,
		client: &http.Client{},
	}, nil
}

func (t *WebSearchTool) GetName() string { return "web_search" }

func (t *WebSearchTool) GetDescription() string { return t.GetInfo().Description }

func (t *WebSearchTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        "web_search",
		Description: "Search the public web for information not found in the paper corpus. Returns result titles, URLs, and snippets.",
		Parameters: []ToolParameter{
			{
				Name:        "query",
				Type:        "string",
				Description: "The search query",
				Required:    true,
			},
			{
				Name:        "max_results",
				Type:        "integer",
				Description: fmt.Sprintf("Maximum number of results (1-%d)", t.cfg.MaxResults),
				Default:     t.cfg.MaxResults,
			},
		},
	}
}

func (t *WebSearchTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	start := time.Now()

	var parsed webSearchArgs
	if err := mapstructure.WeakDecode(args, &parsed); err != nil {
		return errorResult(t.GetName(), fmt.Sprintf("invalid arguments: %v", err), time.Since(start)), nil
	}
	if strings.TrimSpace(parsed.Query) == "" {
		return errorResult(t.GetName(), "query is required", time.Since(start)), nil
	}

	maxResults := parsed.MaxResults
	if maxResults <= 0 || maxResults > t.cfg.MaxResults {
		maxResults = t.cfg.MaxResults
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(t.cfg.Timeout)*time.Second)
	defer cancel()

	results, err := t.search(ctx, parsed.Query, maxResults)
	if err != nil {
		return errorResult(t.GetName(), fmt.Sprintf("search failed: %v", err), time.Since(start)), nil
	}
	if len(results) == 0 {
		return successResult(t.GetName(),
			fmt.Sprintf("No web results found for: %s", parsed.Query),
			time.Since(start),
			map[string]any{"matches": 0}), nil
	}

	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n---\n")
		}
		fmt.Fprintf(&sb, "Title: %s\nURL: %s\n", r.Title, r.URL)
		if r.Snippet != "" {
			fmt.Fprintf(&sb, "Content: %s\n", r.Snippet)
		}
	}

	return successResult(t.GetName(), sb.String(), time.Since(start),
		map[string]any{"matches": len(results)}), nil
}

func (t *WebSearchTool) search(ctx context.Context, query string, maxResults int) ([]searchResult, error) {
	searchURL := fmt.Sprintf("%s?q=%s", strings.TrimSuffix(t.cfg.Endpoint, "/")+"/", url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return parseResults(string(body), maxResults)
}

// parseResults walks the DuckDuckGo HTML page, which marks each hit with a
// div whose class carries "results_links".
func parseResults(page string, maxResults int) ([]searchResult, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var results []searchResult
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) >= maxResults {
			return
		}
		if n.Type == html.ElementNode && n.Data == "div" && strings.Contains(attrValue(n, "class"), "results_links") {
			if r := extractResult(n); r.URL != "" && r.Title != "" {
				results = append(results, r)
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results, nil
}

func extractResult(n *html.Node) searchResult {
	var r searchResult
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			class := attrValue(n, "class")
			switch {
			case strings.Contains(class, "result__a"):
				r.URL = cleanRedirect(attrValue(n, "href"))
				r.Title = textContent(n)
			case strings.Contains(class, "result__snippet"):
				r.Snippet = textContent(n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return r
}

// cleanRedirect unwraps DuckDuckGo's /l/?uddg= redirect links.
func cleanRedirect(href string) string {
	idx := strings.Index(href, "uddg=")
	if idx < 0 {
		return href
	}
	encoded := href[idx+len("uddg="):]
	if amp := strings.Index(encoded, "&"); amp >= 0 {
		encoded = encoded[:amp]
	}
	decoded, err := url.QueryUnescape(encoded)
	if err != nil {
		return href
	}
	return decoded
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(strings.TrimSpace(n.Data))
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}

var _ Tool = (*WebSearchTool)(nil)

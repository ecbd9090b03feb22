package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/scholarlabs/scholar/pkg/config"
	"github.com/scholarlabs/scholar/pkg/embedder"
	"github.com/scholarlabs/scholar/pkg/vector"
)

// PDFRetrievalTool performs semantic search over the ingested paper corpus.
// The query is embedded and matched against the vector collection; chunks
// below the score threshold are dropped.
type PDFRetrievalTool struct {
	store    vector.Provider
	embedder embedder.Embedder
	cfg      *config.PDFRetrievalConfig
}

type pdfRetrievalArgs struct {
	Query string `mapstructure:"query"`
	TopK  int    `mapstructure:"top_k"`
}

func NewPDFRetrievalTool(store vector.Provider, emb embedder.Embedder, cfg *config.PDFRetrievalConfig) (*PDFRetrievalTool, error) {
	if store == nil {
		return nil, fmt.Errorf("pdf_retrieval: vector store cannot be nil")
	}
	if emb == nil {
		return nil, fmt.Errorf("pdf_retrieval: embedder cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("pdf_retrieval: config cannot be nil")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("pdf_retrieval: invalid config: %w", err)
	}
	return &PDFRetrievalTool{store: store, embedder: emb, cfg: cfg}, nil
}

func (t *PDFRetrievalTool) GetName() string { return "pdf_retrieval" }

func (t *PDFRetrievalTool) GetDescription() string { return t.GetInfo().Description }

func (t *PDFRetrievalTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        "pdf_retrieval",
		Description: "Search the private corpus of academic papers for passages relevant to a query. Returns excerpts with source file and page.",
		Parameters: []ToolParameter{
			{
				Name:        "query",
				Type:        "string",
				Description: "The search query to match against paper content",
				Required:    true,
			},
			{
				Name:        "top_k",
				Type:        "integer",
				Description: fmt.Sprintf("Number of passages to return (1-%d)", t.cfg.TopK),
				Default:     t.cfg.TopK,
			},
		},
	}
}

func (t *PDFRetrievalTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	start := time.Now()

	var parsed pdfRetrievalArgs
	if err := mapstructure.WeakDecode(args, &parsed); err != nil {
		return errorResult(t.GetName(), fmt.Sprintf("invalid arguments: %v", err), time.Since(start)), nil
	}
	if strings.TrimSpace(parsed.Query) == "" {
		return errorResult(t.GetName(), "query is required", time.Since(start)), nil
	}

	topK := parsed.TopK
	if topK <= 0 || topK > t.cfg.TopK {
		topK = t.cfg.TopK
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(t.cfg.Timeout)*time.Second)
	defer cancel()

	queryVec, err := t.embedder.Embed(ctx, parsed.Query)
	if err != nil {
		return errorResult(t.GetName(), fmt.Sprintf("failed to embed query: %v", err), time.Since(start)), nil
	}

	results, err := t.store.Search(ctx, t.cfg.Collection, queryVec, topK)
	if err != nil {
		return errorResult(t.GetName(), fmt.Sprintf("vector search failed: %v", err), time.Since(start)), nil
	}

	kept := results[:0]
	for _, r := range results {
		if float64(r.Score) >= t.cfg.MinScore {
			kept = append(kept, r)
		}
	}

	if len(kept) == 0 {
		return successResult(t.GetName(),
			fmt.Sprintf("No relevant passages found in the corpus for: %s", parsed.Query),
			time.Since(start),
			map[string]any{"matches": 0}), nil
	}

	var sb strings.Builder
	for i, r := range kept {
		if i > 0 {
			sb.WriteString("\n---\n")
		}
		if page := r.Page(); page > 0 {
			fmt.Fprintf(&sb, "Source: %s (Page %d)\n", r.Source(), page)
		} else {
			fmt.Fprintf(&sb, "Source: %s\n", r.Source())
		}
		fmt.Fprintf(&sb, "Content: %s\nSimilarity: %.2f\n", r.Content, r.Score)
	}

	return successResult(t.GetName(), sb.String(), time.Since(start),
		map[string]any{"matches": len(kept), "collection": t.cfg.Collection}), nil
}

var _ Tool = (*PDFRetrievalTool)(nil)

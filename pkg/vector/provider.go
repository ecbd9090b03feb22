// Package vector abstracts the corpus index behind a provider interface
// with Qdrant and embedded chromem implementations.
package vector

import (
	"context"
	"fmt"

	"github.com/scholarlabs/scholar/pkg/config"
)

// Result is one similarity hit. Content is the chunk text; Metadata carries
// at least source (filename) and page for PDF chunks.
type Result struct {
	ID       string
	Content  string
	Metadata map[string]any
	Score    float32
}

// Source returns the document filename recorded at ingest time.
func (r Result) Source() string {
	if s, ok := r.Metadata["source"].(string); ok {
		return s
	}
	return "unknown"
}

// Page returns the 1-based page number, or 0 when unknown.
func (r Result) Page() int {
	switch v := r.Metadata["page"].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		var n int
		fmt.Sscanf(v, "%d", &n)
		return n
	default:
		return 0
	}
}

type Provider interface {
	Upsert(ctx context.Context, collection string, id string, vector []float32, metadata map[string]any) error

	Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error)

	Delete(ctx context.Context, collection string, id string) error

	Close() error
}

// NewFromConfig builds a provider by configured type.
func NewFromConfig(cfg *config.VectorStoreConfig) (Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("vector store config cannot be nil")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("vector store: invalid config: %w", err)
	}
	switch cfg.Type {
	case "qdrant":
		return NewQdrantProvider(cfg)
	case "chromem":
		return NewChromemProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported vector store type: %s", cfg.Type)
	}
}

// Package embedder turns text into vectors for the corpus index.
package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/scholarlabs/scholar/pkg/config"
	"github.com/scholarlabs/scholar/pkg/httpclient"
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	Dimension() int
}

func NewFromConfig(cfg *config.EmbedderConfig) (Embedder, error) {
	if cfg == nil {
		return nil, fmt.Errorf("embedder config cannot be nil")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("embedder: invalid config: %w", err)
	}
	switch cfg.Type {
	case "openai":
		return newHTTPEmbedder(cfg, "/v1/embeddings"), nil
	case "ollama":
		return newHTTPEmbedder(cfg, "/api/embeddings"), nil
	default:
		return nil, fmt.Errorf("unsupported embedder type: %s", cfg.Type)
	}
}

// httpEmbedder covers both the OpenAI embeddings API and Ollama's, which
// differ only in path and payload shape.
type httpEmbedder struct {
	config *config.EmbedderConfig
	client *httpclient.Client
	path   string
}

func newHTTPEmbedder(cfg *config.EmbedderConfig, path string) *httpEmbedder {
	return &httpEmbedder{
		config: cfg,
		path:   path,
		client: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{
				Timeout: time.Duration(cfg.Timeout) * time.Second,
			}),
		),
	}
}

func (e *httpEmbedder) Dimension() int { return e.config.Dimension }

func (e *httpEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var payload any
	if e.path == "/api/embeddings" {
		payload = map[string]any{"model": e.config.Model, "prompt": text}
	} else {
		payload = map[string]any{"model": e.config.Model, "input": text}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("embedder: failed to marshal request: %w", err)
	}

	url := strings.TrimSuffix(e.config.Host, "/") + e.path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embedder: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.config.APIKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedder: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embedder: failed to read response: %w", err)
	}

	// Ollama: {"embedding": [...]}; OpenAI: {"data": [{"embedding": [...]}]}
	var parsed struct {
		Embedding []float32 `json:"embedding"`
		Data      []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("embedder: failed to decode response: %w", err)
	}

	if len(parsed.Embedding) > 0 {
		return parsed.Embedding, nil
	}
	if len(parsed.Data) > 0 {
		return parsed.Data[0].Embedding, nil
	}
	return nil, fmt.Errorf("embedder: response contained no embedding")
}

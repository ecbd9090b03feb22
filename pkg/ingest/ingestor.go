// Package ingest builds the paper corpus: it extracts text from PDFs page
// by page, chunks it to a token budget, embeds the chunks, and upserts them
// into the vector index with source and page metadata.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"

	"github.com/scholarlabs/scholar/pkg/config"
	"github.com/scholarlabs/scholar/pkg/embedder"
	"github.com/scholarlabs/scholar/pkg/vector"
)

// PageText is the extracted text of one PDF page.
type PageText struct {
	Page int
	Text string
}

// Extractor pulls per-page text out of a document. The PDF implementation
// is the default; tests substitute their own.
type Extractor interface {
	Extract(ctx context.Context, path string) ([]PageText, error)
}

// Report summarizes one ingestion run.
type Report struct {
	Files  int
	Pages  int
	Chunks int
	Failed []string
}

type Ingestor struct {
	store     vector.Provider
	embedder  embedder.Embedder
	extractor Extractor
	chunker   *Chunker
	cfg       *config.IngestConfig
	logger    *slog.Logger
}

func NewIngestor(store vector.Provider, emb embedder.Embedder, cfg *config.IngestConfig) (*Ingestor, error) {
	if store == nil || emb == nil {
		return nil, fmt.Errorf("ingest: vector store and embedder are required")
	}
	if cfg == nil {
		cfg = &config.IngestConfig{}
	}
	cfg.SetDefaults()

	chunker, err := NewChunker(cfg.ChunkTokens, cfg.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}
	return &Ingestor{
		store:     store,
		embedder:  emb,
		extractor: pdfExtractor{},
		chunker:   chunker,
		cfg:       cfg,
		logger:    slog.Default().With("component", "ingest"),
	}, nil
}

// IngestDir walks dir for PDF files and ingests each one. A file that fails
// is reported and skipped; the run continues.
func (i *Ingestor) IngestDir(ctx context.Context, dir string) (*Report, error) {
	report := &Report{}

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.ToLower(filepath.Ext(path)) != ".pdf" {
			return nil
		}

		pages, chunks, err := i.IngestFile(ctx, path)
		if err != nil {
			i.logger.Error("Failed to ingest file", "path", path, "error", err)
			report.Failed = append(report.Failed, path)
			return nil
		}
		report.Files++
		report.Pages += pages
		report.Chunks += chunks
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("failed to walk %s: %w", dir, err)
	}

	i.logger.Info("Ingestion finished", "files", report.Files,
		"pages", report.Pages, "chunks", report.Chunks, "failed", len(report.Failed))
	return report, nil
}

// IngestFile extracts, chunks, embeds, and upserts one document. Returns
// the page and chunk counts.
func (i *Ingestor) IngestFile(ctx context.Context, path string) (int, int, error) {
	pages, err := i.extractor.Extract(ctx, path)
	if err != nil {
		return 0, 0, err
	}

	source := filepath.Base(path)
	chunkCount := 0
	for _, page := range pages {
		chunks, err := i.chunker.Chunk(page.Text)
		if err != nil {
			return len(pages), chunkCount, fmt.Errorf("failed to chunk page %d: %w", page.Page, err)
		}
		for idx, chunk := range chunks {
			vec, err := i.embedder.Embed(ctx, chunk)
			if err != nil {
				return len(pages), chunkCount, fmt.Errorf("failed to embed chunk: %w", err)
			}

			metadata := map[string]any{
				"content": chunk,
				"source":  source,
				"page":    page.Page,
				"chunk":   idx,
			}
			if err := i.store.Upsert(ctx, i.cfg.Collection, uuid.NewString(), vec, metadata); err != nil {
				return len(pages), chunkCount, fmt.Errorf("failed to upsert chunk: %w", err)
			}
			chunkCount++
		}
	}

	i.logger.Info("Ingested document", "source", source, "pages", len(pages), "chunks", chunkCount)
	return len(pages), chunkCount, nil
}

// pdfExtractor reads per-page plain text from a PDF file.
type pdfExtractor struct{}

func (pdfExtractor) Extract(ctx context.Context, path string) ([]PageText, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	reader, err := pdf.NewReader(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	var pages []PageText
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A broken page should not sink the whole document.
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pages = append(pages, PageText{Page: pageNum, Text: text})
	}
	return pages, nil
}

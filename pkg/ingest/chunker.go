package ingest

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer encodes text into token ids and decodes them back. The default
// is the cl100k_base BPE used by the OpenAI embedding models; tests inject
// their own.
type Tokenizer interface {
	Encode(text string) ([]int, error)
	Decode(tokens []int) (string, error)
}

// tiktokenTokenizer loads its encoding on first use, so constructing an
// ingestor never touches the tiktoken vocabulary cache.
type tiktokenTokenizer struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
	err  error
}

func (t *tiktokenTokenizer) load() {
	t.enc, t.err = tiktoken.GetEncoding("cl100k_base")
}

func (t *tiktokenTokenizer) Encode(text string) ([]int, error) {
	t.once.Do(t.load)
	if t.err != nil {
		return nil, fmt.Errorf("failed to load tokenizer: %w", t.err)
	}
	return t.enc.Encode(text, nil, nil), nil
}

func (t *tiktokenTokenizer) Decode(tokens []int) (string, error) {
	t.once.Do(t.load)
	if t.err != nil {
		return "", fmt.Errorf("failed to load tokenizer: %w", t.err)
	}
	return t.enc.Decode(tokens), nil
}

// Chunker splits text into token-budgeted windows with overlap, so a fact
// straddling a window boundary still lands whole in at least one chunk.
type Chunker struct {
	tokenizer   Tokenizer
	chunkTokens int
	overlap     int
}

func NewChunker(chunkTokens, overlap int) (*Chunker, error) {
	return NewChunkerWithTokenizer(&tiktokenTokenizer{}, chunkTokens, overlap)
}

func NewChunkerWithTokenizer(tokenizer Tokenizer, chunkTokens, overlap int) (*Chunker, error) {
	if chunkTokens <= 0 {
		return nil, fmt.Errorf("chunk_tokens must be positive, got %d", chunkTokens)
	}
	if overlap < 0 || overlap >= chunkTokens {
		return nil, fmt.Errorf("chunk_overlap must be in [0, chunk_tokens), got %d", overlap)
	}
	return &Chunker{tokenizer: tokenizer, chunkTokens: chunkTokens, overlap: overlap}, nil
}

// Chunk splits text into windows of at most chunkTokens tokens, stepping by
// chunkTokens-overlap. Empty input yields no chunks.
func (c *Chunker) Chunk(text string) ([]string, error) {
	tokens, err := c.tokenizer.Encode(text)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, nil
	}
	if len(tokens) <= c.chunkTokens {
		return []string{text}, nil
	}

	step := c.chunkTokens - c.overlap
	var chunks []string
	for start := 0; start < len(tokens); start += step {
		end := start + c.chunkTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		chunk, err := c.tokenizer.Decode(tokens[start:end])
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
		if end == len(tokens) {
			break
		}
	}
	return chunks, nil
}

// TokenCount returns the token length of text under the chunker's encoding.
func (c *Chunker) TokenCount(text string) (int, error) {
	tokens, err := c.tokenizer.Encode(text)
	if err != nil {
		return 0, err
	}
	return len(tokens), nil
}

// Package chunker provides a token-window chunking processor.
package chunker

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/ferret-search/ferret/internal/core/domain"
	"github.com/ferret-search/ferret/internal/core/ports/driven"
	"github.com/ferret-search/ferret/internal/logger"
)

// DefaultMinTokens is the default lower bound per chunk.
const DefaultMinTokens = 100

// DefaultMaxTokens is the default token budget per chunk.
const DefaultMaxTokens = 512

// DefaultOverlapRatio is the default fraction of the window shared
// between adjacent chunks.
const DefaultOverlapRatio = 0.15

// Ensure Processor implements the interface.
var _ driven.Chunker = (*Processor)(nil)

// Processor splits document content into overlapping token windows.
type Processor struct {
	minTokens    int
	maxTokens    int
	overlapRatio float64
	tokenizer    Tokenizer
	fallback     Tokenizer
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithTokenBounds sets the minimum and maximum tokens per chunk.
func WithTokenBounds(minTokens, maxTokens int) Option {
	return func(p *Processor) {
		if minTokens > 0 {
			p.minTokens = minTokens
		}
		if maxTokens > 0 {
			p.maxTokens = maxTokens
		}
	}
}

// WithOverlapRatio sets the fraction of the window shared between
// adjacent chunks.
func WithOverlapRatio(ratio float64) Option {
	return func(p *Processor) {
		if ratio >= 0 && ratio < 1 {
			p.overlapRatio = ratio
		}
	}
}

// WithTokenizer sets the primary tokenizer.
func WithTokenizer(t Tokenizer) Option {
	return func(p *Processor) {
		if t != nil {
			p.tokenizer = t
		}
	}
}

// New creates a chunker processor with the given options.
// The primary tokenizer defaults to BPE when the encoding loads;
// otherwise whitespace splitting is used throughout.
func New(opts ...Option) *Processor {
	p := &Processor{
		minTokens:    DefaultMinTokens,
		maxTokens:    DefaultMaxTokens,
		overlapRatio: DefaultOverlapRatio,
		fallback:     NewWhitespaceTokenizer(),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.tokenizer == nil {
		bpe, err := NewBPETokenizer()
		if err != nil {
			logger.Warn("BPE tokenizer unavailable, using whitespace splitting: %v", err)
			p.tokenizer = p.fallback
		} else {
			p.tokenizer = bpe
		}
	}

	if p.minTokens > p.maxTokens {
		p.minTokens = p.maxTokens
	}

	return p
}

// FromConfig creates a chunker from configuration.
func FromConfig(cfg domain.ChunkingConfig, opts ...Option) *Processor {
	base := []Option{
		WithTokenBounds(cfg.MinTokens, cfg.MaxTokens),
		WithOverlapRatio(cfg.OverlapRatio),
	}
	return New(append(base, opts...)...)
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Chunk splits the document content into overlapping token windows.
// Windows after the first back off by maxTokens*overlapRatio tokens so
// adjacent chunks share context across the boundary. Input shorter
// than minTokens yields exactly one chunk. Tokenization failure on
// malformed input degrades to whitespace splitting rather than
// aborting the document.
func (p *Processor) Chunk(_ context.Context, doc *domain.Document) ([]domain.Chunk, error) {
	if doc.Content == "" {
		// Empty content produces no chunks
		return nil, nil
	}

	tokens, err := p.tokenizer.Tokenize(doc.Content)
	if err != nil {
		logger.Debug("tokenizer %s failed for %s, falling back: %v",
			p.tokenizer.Name(), doc.SourcePath, err)
		tokens, err = p.fallback.Tokenize(doc.Content)
		if err != nil {
			return nil, err
		}
	}

	if len(tokens) == 0 {
		return nil, nil
	}

	overlap := p.overlapTokens()
	step := p.maxTokens - overlap

	// Estimate number of chunks
	estimated := (len(tokens) / step) + 1
	chunks := make([]domain.Chunk, 0, estimated)

	position := 0
	start := 0

	for start < len(tokens) {
		end := start + p.maxTokens
		if end > len(tokens) {
			end = len(tokens)
		}

		// A tail below the minimum widens its overlap with the
		// previous chunk instead of being emitted short: the window
		// shifts back until the final chunk holds minTokens.
		if position > 0 && end-start < p.minTokens && end == len(tokens) {
			shifted := len(tokens) - p.minTokens
			if shifted > start-step {
				start = shifted
			}
		}

		chunks = append(chunks, domain.Chunk{
			ID:         uuid.New().String(),
			DocumentID: doc.ID,
			Content:    strings.Join(tokens[start:end], ""),
			Position:   position,
			TokenCount: end - start,
		})
		position++

		if end == len(tokens) {
			break
		}
		start += step
	}

	return chunks, nil
}

// overlapTokens returns the whole-token overlap between adjacent
// windows, clamped so the window always advances.
func (p *Processor) overlapTokens() int {
	overlap := int(float64(p.maxTokens) * p.overlapRatio)
	if overlap >= p.maxTokens {
		overlap = p.maxTokens - 1
	}
	if overlap < 0 {
		overlap = 0
	}
	return overlap
}

package chunker

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer splits text into tokens whose concatenation reproduces
// the input exactly. That property is what lets de-overlapped chunks
// reconstruct the original document.
type Tokenizer interface {
	// Name identifies the tokenizer for logging.
	Name() string

	// Tokenize splits text into tokens. The concatenation of the
	// returned tokens equals text.
	Tokenize(text string) ([]string, error)
}

// BPETokenizer tokenizes with the cl100k_base byte-pair encoding.
type BPETokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewBPETokenizer loads the cl100k_base encoding.
// Loading can fail offline; callers fall back to whitespace splitting.
func NewBPETokenizer() (*BPETokenizer, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("load cl100k_base encoding: %w", err)
	}
	return &BPETokenizer{enc: enc}, nil
}

// Name returns the tokenizer name.
func (t *BPETokenizer) Name() string {
	return "bpe"
}

// Tokenize splits text into BPE token strings.
func (t *BPETokenizer) Tokenize(text string) ([]string, error) {
	if !utf8.ValidString(text) {
		return nil, fmt.Errorf("tokenize: input is not valid UTF-8")
	}

	ids := t.enc.Encode(text, nil, nil)
	tokens := make([]string, len(ids))
	for i, id := range ids {
		tokens[i] = t.enc.Decode([]int{id})
	}
	return tokens, nil
}

// WhitespaceTokenizer is the degraded tokenizer used when BPE loading
// or encoding fails. A token is a run of non-space characters together
// with the whitespace that follows it, so concatenation is lossless.
type WhitespaceTokenizer struct{}

// NewWhitespaceTokenizer creates the fallback tokenizer.
func NewWhitespaceTokenizer() *WhitespaceTokenizer {
	return &WhitespaceTokenizer{}
}

// Name returns the tokenizer name.
func (t *WhitespaceTokenizer) Name() string {
	return "whitespace"
}

// Tokenize splits text on whitespace boundaries.
func (t *WhitespaceTokenizer) Tokenize(text string) ([]string, error) {
	if text == "" {
		return nil, nil
	}

	var tokens []string
	var current strings.Builder
	inSpace := unicode.IsSpace(rune(text[0]))

	for _, r := range text {
		isSpace := unicode.IsSpace(r)
		// A token boundary is a space-to-word transition.
		if !isSpace && inSpace && current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
		current.WriteRune(r)
		inSpace = isSpace
	}

	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}

	return tokens, nil
}

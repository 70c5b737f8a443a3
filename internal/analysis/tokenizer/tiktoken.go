// Package tokenizer truncates prompts with tiktoken BPE encodings.
package tokenizer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the BPE used by the gpt-3.5 and gpt-4 model families.
const DefaultEncoding = "cl100k_base"

// Tiktoken implements analysis.Tokenizer. The encoding is loaded on first
// use and shared afterwards.
type Tiktoken struct {
	encoding string

	once sync.Once
	enc  *tiktoken.Tiktoken
	err  error
}

// New returns a tokenizer for the named encoding.
func New(encoding string) *Tiktoken {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	return &Tiktoken{encoding: encoding}
}

// Truncate keeps the first maxTokens tokens of text.
func (t *Tiktoken) Truncate(text string, maxTokens int) (string, int, error) {
	enc, err := t.load()
	if err != nil {
		return "", 0, err
	}
	tokens := enc.Encode(text, nil, nil)
	if maxTokens <= 0 || len(tokens) <= maxTokens {
		return text, len(tokens), nil
	}
	return enc.Decode(tokens[:maxTokens]), maxTokens, nil
}

func (t *Tiktoken) load() (*tiktoken.Tiktoken, error) {
	t.once.Do(func() {
		t.enc, t.err = tiktoken.GetEncoding(t.encoding)
		if t.err != nil {
			t.err = fmt.Errorf("load encoding %s: %w", t.encoding, t.err)
		}
	})
	return t.enc, t.err
}

// Package tokenizer wraps byte-pair encoders behind a reversible Codec
// interface so the chunking layer can be exercised with deterministic fakes.
package tokenizer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the GPT-4-family encoder used when none is configured.
const DefaultEncoding = "cl100k_base"

// Codec is a reversible text-to-token encoder. Implementations are read-only
// after construction and safe for concurrent use.
type Codec interface {
	// Name returns the encoding identifier.
	Name() string

	// Encode converts text into its integer token sequence.
	Encode(text string) []int

	// Decode converts a token sequence back into text.
	Decode(tokens []int) string
}

var (
	mu     sync.Mutex
	codecs = make(map[string]*tiktokenCodec)
)

// Get returns a cached tiktoken-backed codec for the named encoding, loading
// it on first use.
func Get(name string) (Codec, error) {
	if name == "" {
		name = DefaultEncoding
	}

	mu.Lock()
	defer mu.Unlock()

	if c, ok := codecs[name]; ok {
		return c, nil
	}

	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load encoding %q; %w", name, err)
	}

	c := &tiktokenCodec{name: name, enc: enc}
	codecs[name] = c
	return c, nil
}

// Count returns the token count of text under the given codec.
func Count(c Codec, text string) int {
	return len(c.Encode(text))
}

type tiktokenCodec struct {
	name string
	enc  *tiktoken.Tiktoken
}

func (c *tiktokenCodec) Name() string {
	return c.name
}

func (c *tiktokenCodec) Encode(text string) []int {
	return c.enc.Encode(text, nil, nil)
}

func (c *tiktokenCodec) Decode(tokens []int) string {
	return c.enc.Decode(tokens)
}

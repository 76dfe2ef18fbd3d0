package ingest

import (
	"fmt"
	"strconv"

	"github.com/oriondocs/orion/internal/tokenizer"
)

// Chunk is one tokenizer-exact slice of a document's text.
type Chunk struct {
	Index      int
	Text       string
	TokenCount int
}

// Overlap returns the number of tokens consecutive chunks share:
// floor(size * fraction).
func Overlap(size int, fraction float64) int {
	return int(float64(size) * fraction)
}

// SplitTokens slices a token sequence into windows of at most size tokens
// where each window after the first starts overlap tokens before the previous
// window's end. The final window may be shorter; no window is empty.
func SplitTokens(tokens []int, size, overlap int) [][]int {
	if len(tokens) == 0 || size <= 0 {
		return nil
	}
	if overlap >= size {
		overlap = size - 1
	}

	var out [][]int
	for start := 0; ; {
		end := start + size
		if end > len(tokens) {
			end = len(tokens)
		}
		out = append(out, tokens[start:end])
		if end >= len(tokens) {
			return out
		}
		start = end - overlap
	}
}

// SplitText encodes text with the codec, windows the token sequence, and
// decodes each window back to text.
func SplitText(codec tokenizer.Codec, text string, size, overlap int) []Chunk {
	tokens := codec.Encode(text)
	windows := SplitTokens(tokens, size, overlap)

	chunks := make([]Chunk, len(windows))
	for i, w := range windows {
		chunks[i] = Chunk{
			Index:      i,
			Text:       codec.Decode(w),
			TokenCount: len(w),
		}
	}
	return chunks
}

// ChunkFilename names the chunk file for base at index, zero-padding the
// index to at least three digits. The width grows with the total count so
// lexicographic order always matches emission order.
func ChunkFilename(base string, index, total int) string {
	width := 3
	if d := len(strconv.Itoa(total - 1)); d > width {
		width = d
	}
	return fmt.Sprintf("%s_chunk_%0*d.txt", base, width, index)
}

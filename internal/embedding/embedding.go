// Package embedding turns chunk text into dense vectors via a remote
// embedding API.
package embedding

import "context"

// InputType tells the provider how the text will be used. Document and query
// embeddings live in slightly different spaces for retrieval-tuned models.
type InputType string

const (
	InputDocument InputType = "search_document"
	InputQuery    InputType = "search_query"
)

// Service generates embeddings for batches of text.
type Service interface {
	// Embed returns one vector per input text, in input order. The inputs
	// form a single API request; callers split larger sets into batches.
	Embed(ctx context.Context, texts []string, inputType InputType) ([][]float32, error)

	// ModelName returns the embedding model identifier.
	ModelName() string
}

// Batches splits texts into consecutive slices of at most size elements.
func Batches(texts []string, size int) [][]string {
	if size <= 0 || len(texts) == 0 {
		return nil
	}
	out := make([][]string, 0, (len(texts)+size-1)/size)
	for start := 0; start < len(texts); start += size {
		end := start + size
		if end > len(texts) {
			end = len(texts)
		}
		out = append(out, texts[start:end])
	}
	return out
}

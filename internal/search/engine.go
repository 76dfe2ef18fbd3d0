// Package search ranks a user's persisted chunks against a query using
// vector similarity, optionally blended with BM25 lexical scoring.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/oriondocs/orion/internal/embedding"
	"github.com/oriondocs/orion/internal/errs"
	"github.com/oriondocs/orion/internal/paths"
	"github.com/oriondocs/orion/internal/vectorstore"
)

// Algorithms lists the supported ranking algorithms.
var Algorithms = []string{"cosine", "hybrid"}

// Limit bounds for a single search.
const (
	MinLimit = 1
	MaxLimit = 100
)

// Result is one ranked chunk.
type Result struct {
	Rank           int     `json:"rank"`
	Score          float64 `json:"score"`
	DocumentID     string  `json:"document_id"`
	ChunkIndex     int     `json:"chunk_index"`
	Text           string  `json:"text"`
	SourceFilename string  `json:"source_filename"`
}

// Response is the full outcome of one search.
type Response struct {
	Algorithm         string        `json:"algorithm"`
	Results           []Result      `json:"results"`
	DocumentsSearched int           `json:"documents_searched"`
	ChunksSearched    int           `json:"chunks_searched"`
	Duration          time.Duration `json:"-"`
	DurationMS        float64       `json:"execution_time_ms"`

	// Model is the embedding model used for the query. ModelRestricted is
	// set when the library held vectors from several models and search was
	// restricted to the dominant one.
	Model           string `json:"embedding_model"`
	ModelRestricted bool   `json:"model_restricted,omitempty"`
}

// candidate is one chunk under consideration, with its provenance.
type candidate struct {
	docID    string
	filename string
	chunk    vectorstore.ChunkEmbedding
}

// Engine executes searches over a user's library.
type Engine struct {
	store    vectorstore.Store
	embedder embedding.Service
	logger   *slog.Logger
}

// NewEngine creates a search engine.
func NewEngine(store vectorstore.Store, embedder embedding.Service, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, embedder: embedder, logger: logger}
}

// Search ranks the user's chunks against the query and returns the top
// limit results.
func (e *Engine) Search(ctx context.Context, userID, query, algorithm string, limit int) (*Response, error) {
	start := time.Now()

	if err := paths.ValidateUserID(userID); err != nil {
		return nil, err
	}
	if limit < MinLimit || limit > MaxLimit {
		return nil, fmt.Errorf("%w: must be in [%d, %d], got %d", errs.ErrInvalidLimit, MinLimit, MaxLimit, limit)
	}
	if algorithm != "cosine" && algorithm != "hybrid" {
		return nil, fmt.Errorf("%w: %q", errs.ErrUnknownAlgorithm, algorithm)
	}

	candidates, docCount, err := e.loadCandidates(userID)
	if err != nil {
		return nil, err
	}
	totalChunks := len(candidates)

	candidates, restricted, model := restrictToDominantModel(candidates)

	queryVec, err := e.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	cosine := make([]float64, len(candidates))
	texts := make([]string, len(candidates))
	for i, c := range candidates {
		cosine[i] = CosineSimilarity(queryVec, c.chunk.Embedding)
		texts[i] = c.chunk.Text
	}

	scores := cosine
	if algorithm == "hybrid" {
		scores = hybridScores(cosine, query, texts)
	}

	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		ca, cb := candidates[order[a]], candidates[order[b]]
		if scores[order[a]] != scores[order[b]] {
			return scores[order[a]] > scores[order[b]]
		}
		if ca.docID != cb.docID {
			return ca.docID < cb.docID
		}
		return ca.chunk.ChunkIndex < cb.chunk.ChunkIndex
	})

	if len(order) > limit {
		order = order[:limit]
	}

	results := make([]Result, len(order))
	for rank, idx := range order {
		c := candidates[idx]
		results[rank] = Result{
			Rank:           rank + 1,
			Score:          scores[idx],
			DocumentID:     c.docID,
			ChunkIndex:     c.chunk.ChunkIndex,
			Text:           c.chunk.Text,
			SourceFilename: c.filename,
		}
	}

	elapsed := time.Since(start)
	e.logger.Debug("search completed",
		"user_id", userID,
		"algorithm", algorithm,
		"documents", docCount,
		"chunks", totalChunks,
		"results", len(results),
		"duration", elapsed)

	return &Response{
		Algorithm:         algorithm,
		Results:           results,
		DocumentsSearched: docCount,
		ChunksSearched:    totalChunks,
		Duration:          elapsed,
		DurationMS:        float64(elapsed.Microseconds()) / 1000.0,
		Model:             model,
		ModelRestricted:   restricted,
	}, nil
}

// loadCandidates reads every persisted set for the user.
func (e *Engine) loadCandidates(userID string) ([]candidate, int, error) {
	ids, err := e.store.List(userID)
	if err != nil {
		return nil, 0, fmt.Errorf("%w; %w", errs.ErrIO, err)
	}
	if len(ids) == 0 {
		return nil, 0, fmt.Errorf("%w: no documents for %q", errs.ErrEmptyLibrary, userID)
	}

	var candidates []candidate
	for _, docID := range ids {
		set, err := e.store.Load(userID, docID)
		if err != nil {
			e.logger.Warn("skipping unreadable embedding set",
				"user_id", userID, "document_id", docID, "error", err)
			continue
		}
		for _, chunk := range set.Embeddings {
			candidates = append(candidates, candidate{
				docID:    set.FileID,
				filename: set.Metadata.OriginalFilename,
				chunk:    chunk,
			})
		}
	}
	if len(candidates) == 0 {
		return nil, 0, fmt.Errorf("%w: no readable embeddings for %q", errs.ErrEmptyLibrary, userID)
	}
	return candidates, len(ids), nil
}

func (e *Engine) embedQuery(ctx context.Context, query string) ([]float32, error) {
	vecs, err := e.embedder.Embed(ctx, []string{query}, embedding.InputQuery)
	if err != nil {
		return nil, fmt.Errorf("%w; %w", errs.ErrEmbeddingFailed, err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: got %d query vectors", errs.ErrEmbeddingFailed, len(vecs))
	}
	return vecs[0], nil
}

// restrictToDominantModel keeps only chunks embedded with the most common
// model when the library mixes models. Ties pick the lexicographically
// smallest model name for determinism.
func restrictToDominantModel(candidates []candidate) ([]candidate, bool, string) {
	counts := make(map[string]int)
	for _, c := range candidates {
		counts[c.chunk.EmbeddingModel]++
	}
	if len(counts) <= 1 {
		var model string
		for m := range counts {
			model = m
		}
		return candidates, false, model
	}

	var dominant string
	best := -1
	for model, n := range counts {
		if n > best || (n == best && model < dominant) {
			dominant, best = model, n
		}
	}

	kept := candidates[:0:0]
	for _, c := range candidates {
		if c.chunk.EmbeddingModel == dominant {
			kept = append(kept, c)
		}
	}
	return kept, true, dominant
}

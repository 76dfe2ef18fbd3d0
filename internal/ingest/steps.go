// Package ingest composes the document pipeline: Convert extracts text,
// Chunk windows it by token count, Embed vectorizes the chunks, and Persist
// writes the embedding set to the vector store.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oriondocs/orion/internal/embedding"
	"github.com/oriondocs/orion/internal/errs"
	"github.com/oriondocs/orion/internal/extract"
	"github.com/oriondocs/orion/internal/paths"
	"github.com/oriondocs/orion/internal/pipeline"
	"github.com/oriondocs/orion/internal/tokenizer"
	"github.com/oriondocs/orion/internal/vectorstore"
)

// Metadata keys used to pass outputs between steps.
const (
	MetaMIMEType          = "mime_type"
	MetaDescription       = "description"
	MetaConvertedTextPath = "converted_text_path"
	MetaChunksDir         = "chunks_dir"
	MetaChunkCount        = "chunk_count"
	MetaChunkFiles        = "chunk_files"
	MetaEmbeddings        = "embeddings_data"
)

// baseName strips the extension from the original client filename. All
// derived files for a document share this base.
func baseName(original string) string {
	return strings.TrimSuffix(original, filepath.Ext(original))
}

// ConvertStep extracts the raw upload into a UTF-8 text file under
// processed_text/.
type ConvertStep struct {
	registry *extract.Registry
	resolver *paths.Resolver
}

// NewConvertStep creates the conversion step.
func NewConvertStep(registry *extract.Registry, resolver *paths.Resolver) *ConvertStep {
	return &ConvertStep{registry: registry, resolver: resolver}
}

func (s *ConvertStep) Name() string    { return "convert" }
func (s *ConvertStep) MaxRetries() int { return 2 }

func (s *ConvertStep) ShouldSkip(pctx *pipeline.Context) (bool, string) {
	return false, ""
}

func (s *ConvertStep) Execute(ctx context.Context, pctx *pipeline.Context) error {
	mime, ok := pctx.GetString(MetaMIMEType)
	if !ok {
		mime = extract.DetectMIME(pctx.FilePath, pctx.OriginalFilename)
		pctx.Set(MetaMIMEType, mime)
	}

	text, err := s.registry.Extract(pctx.FilePath, mime)
	if err != nil {
		return err
	}

	outPath := filepath.Join(s.resolver.ProcessedText(pctx.UserID), baseName(pctx.OriginalFilename)+".txt")
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("%w: failed to create text directory; %w", errs.ErrIO, err)
	}
	if err := os.WriteFile(outPath, []byte(text), 0644); err != nil {
		os.Remove(outPath)
		return fmt.Errorf("%w: failed to write converted text; %w", errs.ErrIO, err)
	}

	pctx.Set(MetaConvertedTextPath, outPath)
	return nil
}

// ChunkStep windows the converted text into tokenizer-exact chunk files
// under raw_chunks/.
type ChunkStep struct {
	codec    tokenizer.Codec
	resolver *paths.Resolver
	size     int
	fraction float64
}

// NewChunkStep creates the chunking step.
func NewChunkStep(codec tokenizer.Codec, resolver *paths.Resolver, size int, overlapFraction float64) *ChunkStep {
	return &ChunkStep{codec: codec, resolver: resolver, size: size, fraction: overlapFraction}
}

func (s *ChunkStep) Name() string    { return "chunk" }
func (s *ChunkStep) MaxRetries() int { return 0 }

func (s *ChunkStep) ShouldSkip(pctx *pipeline.Context) (bool, string) {
	return false, ""
}

func (s *ChunkStep) Execute(ctx context.Context, pctx *pipeline.Context) error {
	textPath, ok := pctx.GetString(MetaConvertedTextPath)
	if !ok {
		return fmt.Errorf("%w: no converted text path in context", errs.ErrChunkingFailed)
	}

	data, err := os.ReadFile(textPath)
	if err != nil {
		return fmt.Errorf("%w: failed to read converted text; %w", errs.ErrIO, err)
	}

	chunks := SplitText(s.codec, string(data), s.size, Overlap(s.size, s.fraction))
	if len(chunks) == 0 {
		return fmt.Errorf("%w: document produced no tokens", errs.ErrChunkingFailed)
	}

	dir := s.resolver.RawChunks(pctx.UserID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: failed to create chunks directory; %w", errs.ErrIO, err)
	}

	base := strings.TrimSuffix(filepath.Base(textPath), ".txt")
	files := make([]string, len(chunks))
	for i, c := range chunks {
		name := ChunkFilename(base, c.Index, len(chunks))
		if err := os.WriteFile(filepath.Join(dir, name), []byte(c.Text), 0644); err != nil {
			return fmt.Errorf("%w: failed to write chunk %d; %w", errs.ErrIO, c.Index, err)
		}
		files[i] = name
	}

	pctx.Set(MetaChunksDir, dir)
	pctx.Set(MetaChunkCount, len(chunks))
	pctx.Set(MetaChunkFiles, files)
	return nil
}

// EmbedStep vectorizes chunk files in batches via the embedding service.
// Transient provider failures are retried by the engine; auth and malformed
// responses fail immediately.
type EmbedStep struct {
	service   embedding.Service
	codec     tokenizer.Codec
	batchSize int
}

// NewEmbedStep creates the embedding step.
func NewEmbedStep(service embedding.Service, codec tokenizer.Codec, batchSize int) *EmbedStep {
	return &EmbedStep{service: service, codec: codec, batchSize: batchSize}
}

func (s *EmbedStep) Name() string    { return "embed" }
func (s *EmbedStep) MaxRetries() int { return 2 }

// ShouldRetry limits retries to transient provider failures.
func (s *EmbedStep) ShouldRetry(attempt int, err error) bool {
	return attempt < s.MaxRetries() && errs.Retriable(err)
}

func (s *EmbedStep) ShouldSkip(pctx *pipeline.Context) (bool, string) {
	if n, ok := pctx.GetInt(MetaChunkCount); ok && n == 0 {
		return true, "no chunks to embed"
	}
	return false, ""
}

func (s *EmbedStep) Execute(ctx context.Context, pctx *pipeline.Context) error {
	dir, ok := pctx.GetString(MetaChunksDir)
	if !ok {
		return fmt.Errorf("%w: no chunks directory in context", errs.ErrEmbeddingFailed)
	}
	files, ok := pctx.Meta[MetaChunkFiles].([]string)
	if !ok || len(files) == 0 {
		return fmt.Errorf("%w: no chunk files in context", errs.ErrEmbeddingFailed)
	}

	texts := make([]string, len(files))
	counts := make([]int, len(files))
	for i, name := range files {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("%w: failed to read chunk %s; %w", errs.ErrIO, name, err)
		}
		texts[i] = string(data)
		counts[i] = tokenizer.Count(s.codec, texts[i])
	}

	var vectors [][]float32
	for _, batch := range embedding.Batches(texts, s.batchSize) {
		vecs, err := s.service.Embed(ctx, batch, embedding.InputDocument)
		if err != nil {
			return err
		}
		vectors = append(vectors, vecs...)
	}
	if len(vectors) != len(files) {
		return fmt.Errorf("%w: got %d vectors for %d chunks", errs.ErrInvalidResponse, len(vectors), len(files))
	}

	model := s.service.ModelName()
	records := make([]vectorstore.ChunkEmbedding, len(files))
	for i := range files {
		records[i] = vectorstore.ChunkEmbedding{
			ChunkIndex:     i,
			Filename:       files[i],
			Text:           texts[i],
			Embedding:      vectors[i],
			TokenCount:     counts[i],
			EmbeddingModel: model,
		}
	}

	pctx.Set(MetaEmbeddings, records)
	return nil
}

// PersistStep writes the assembled embedding set to the vector store.
type PersistStep struct {
	store     vectorstore.Store
	chunkSize int
}

// NewPersistStep creates the persistence step.
func NewPersistStep(store vectorstore.Store, chunkSize int) *PersistStep {
	return &PersistStep{store: store, chunkSize: chunkSize}
}

func (s *PersistStep) Name() string    { return "persist" }
func (s *PersistStep) MaxRetries() int { return 0 }

func (s *PersistStep) ShouldSkip(pctx *pipeline.Context) (bool, string) {
	return false, ""
}

func (s *PersistStep) Execute(ctx context.Context, pctx *pipeline.Context) error {
	records, ok := pctx.Meta[MetaEmbeddings].([]vectorstore.ChunkEmbedding)
	if !ok || len(records) == 0 {
		return fmt.Errorf("%w: no embeddings in context", errs.ErrPersistFailed)
	}

	set := &vectorstore.EmbeddingSet{
		FileID:     pctx.DocumentID,
		Embeddings: records,
		Metadata: vectorstore.Metadata{
			UserID:           pctx.UserID,
			OriginalFilename: pctx.OriginalFilename,
			ChunkSize:        s.chunkSize,
			EmbeddingModel:   records[0].EmbeddingModel,
		},
	}

	if err := s.store.Save(pctx.UserID, set); err != nil {
		return fmt.Errorf("%w; %w", errs.ErrPersistFailed, err)
	}
	return nil
}

// Compile-time interface assertions for the pipeline steps.
var (
	_ pipeline.Step        = (*ConvertStep)(nil)
	_ pipeline.Step        = (*ChunkStep)(nil)
	_ pipeline.Step        = (*EmbedStep)(nil)
	_ pipeline.Step        = (*PersistStep)(nil)
	_ pipeline.RetryPolicy = (*EmbedStep)(nil)
)

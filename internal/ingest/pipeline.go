package ingest

import (
	"log/slog"
	"time"

	"github.com/oriondocs/orion/internal/embedding"
	"github.com/oriondocs/orion/internal/extract"
	"github.com/oriondocs/orion/internal/paths"
	"github.com/oriondocs/orion/internal/pipeline"
	"github.com/oriondocs/orion/internal/tokenizer"
	"github.com/oriondocs/orion/internal/vectorstore"
)

// PipelineConfig holds the dependencies and tunables for the document
// pipeline.
type PipelineConfig struct {
	Registry *extract.Registry
	Codec    tokenizer.Codec
	Embedder embedding.Service
	Store    vectorstore.Store
	Resolver *paths.Resolver

	ChunkSize       int
	OverlapFraction float64
	BatchSize       int
	Timeout         time.Duration
	Logger          *slog.Logger
}

// NewDocumentPipeline assembles the Convert, Chunk, Embed, Persist sequence.
func NewDocumentPipeline(cfg PipelineConfig) *pipeline.Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	steps := []pipeline.Step{
		NewConvertStep(cfg.Registry, cfg.Resolver),
		NewChunkStep(cfg.Codec, cfg.Resolver, cfg.ChunkSize, cfg.OverlapFraction),
		NewEmbedStep(cfg.Embedder, cfg.Codec, cfg.BatchSize),
		NewPersistStep(cfg.Store, cfg.ChunkSize),
	}

	opts := []pipeline.Option{pipeline.WithLogger(logger)}
	if cfg.Timeout > 0 {
		opts = append(opts, pipeline.WithTimeout(cfg.Timeout))
	}

	return pipeline.New("document-ingest", steps, opts...)
}

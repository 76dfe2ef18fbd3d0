package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oriondocs/orion/internal/config"
	"github.com/oriondocs/orion/internal/embedding"
	"github.com/oriondocs/orion/internal/extract"
	"github.com/oriondocs/orion/internal/ingest"
	"github.com/oriondocs/orion/internal/library"
	"github.com/oriondocs/orion/internal/paths"
	"github.com/oriondocs/orion/internal/search"
	"github.com/oriondocs/orion/internal/server"
	"github.com/oriondocs/orion/internal/tokenizer"
	"github.com/oriondocs/orion/internal/upload"
	"github.com/oriondocs/orion/internal/vectorstore"
)

const shutdownGrace = 30 * time.Second

// multipartOverhead is headroom above the upload cap for form framing.
const multipartOverhead = 1 << 20

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ingestion and search API server",
	Long: "Start the HTTP API server together with the background ingest worker pool.\n\n" +
		"The server accepts document uploads, queues them for conversion, chunking, " +
		"embedding, and persistence, and answers search queries over the persisted vectors.",
	Example: `  # Serve with configuration from the environment
  EMBEDDING_API_KEY=... orion serve`,
	PreRunE: validateServe,
	RunE:    runServe,
}

func validateServe(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	return config.Validate(cfg)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := logManager.Logger()

	resolver := paths.NewResolver(cfg.BaseDir)
	if err := os.MkdirAll(cfg.BaseDir, 0755); err != nil {
		return fmt.Errorf("failed to create base directory; %w", err)
	}

	codec, err := tokenizer.Get(cfg.Chunking.TokenizerName)
	if err != nil {
		return fmt.Errorf("failed to load tokenizer; %w", err)
	}

	store, err := vectorstore.Open(cfg.Storage.Format, resolver)
	if err != nil {
		return err
	}

	registry := extract.NewRegistry()
	embedder := embedding.NewCohereService(cfg.Embed.APIKey,
		embedding.WithModel(cfg.Embed.Model))

	pipe := ingest.NewDocumentPipeline(ingest.PipelineConfig{
		Registry:        registry,
		Codec:           codec,
		Embedder:        embedder,
		Store:           store,
		Resolver:        resolver,
		ChunkSize:       cfg.Chunking.ChunkSize,
		OverlapFraction: cfg.Chunking.OverlapPercent,
		BatchSize:       cfg.Embed.BatchSize,
		Timeout:         time.Duration(cfg.Pipeline.TimeoutSec) * time.Second,
		Logger:          logger,
	})

	queue := ingest.NewQueue(pipe,
		ingest.WithWorkerCount(cfg.Pipeline.Workers),
		ingest.WithQueueCapacity(cfg.Pipeline.QueueCapacity),
		ingest.WithQueueLogger(logger))

	gate := upload.NewGate(resolver, registry, queue,
		upload.WithMaxFileSize(cfg.Upload.MaxFileSize),
		upload.WithLogger(logger))

	engine := search.NewEngine(store, embedder, logger)
	repo := library.NewRepository(store, resolver, logger)

	srv := server.NewServer(server.Config{
		Bind:            cfg.Server.Bind,
		Port:            cfg.Server.Port,
		MaxRequestBytes: cfg.Upload.MaxFileSize + multipartOverhead,
	}, gate, engine, repo, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := queue.Start(ctx); err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start(ctx)
	}()

	logger.Info("orion serving",
		"bind", cfg.Server.Bind,
		"port", cfg.Server.Port,
		"base_dir", cfg.BaseDir,
		"storage_format", cfg.Storage.Format)

	select {
	case err := <-serverErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", "error", err)
	}
	if err := queue.Stop(shutdownCtx); err != nil {
		logger.Warn("queue shutdown failed", "error", err)
	}
	return nil
}

package config

import "fmt"

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime failures deep inside the pipeline.
func Validate(cfg *Config) error {
	if cfg.Embed.APIKey == "" {
		return fmt.Errorf("EMBEDDING_API_KEY is required")
	}
	if cfg.Upload.MaxFileSize <= 0 {
		return fmt.Errorf("max_file_size must be positive, got %d", cfg.Upload.MaxFileSize)
	}
	if cfg.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", cfg.Chunking.ChunkSize)
	}
	if cfg.Chunking.OverlapPercent < 0 || cfg.Chunking.OverlapPercent >= 1 {
		return fmt.Errorf("overlap_percent must be in [0, 1), got %v", cfg.Chunking.OverlapPercent)
	}
	if cfg.Embed.BatchSize <= 0 {
		return fmt.Errorf("embedding batch_size must be positive, got %d", cfg.Embed.BatchSize)
	}
	switch cfg.Storage.Format {
	case "json", "hdf5":
	default:
		return fmt.Errorf("storage format must be \"json\" or \"hdf5\", got %q", cfg.Storage.Format)
	}
	if cfg.Pipeline.QueueCapacity <= 0 {
		return fmt.Errorf("queue_capacity must be positive, got %d", cfg.Pipeline.QueueCapacity)
	}
	if cfg.Pipeline.TimeoutSec <= 0 {
		return fmt.Errorf("pipeline timeout_seconds must be positive, got %d", cfg.Pipeline.TimeoutSec)
	}
	return nil
}

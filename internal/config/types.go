// Package config builds the immutable process configuration from the
// environment and optional config file. Core components never read the
// environment themselves; they receive this struct at construction.
package config

// Config is the root configuration for the service.
type Config struct {
	LogLevel string       `mapstructure:"log_level"`
	LogFile  string       `mapstructure:"log_file"`
	BaseDir  string       `mapstructure:"base_dir"`
	Server   ServerConfig `mapstructure:"server"`
	Upload   UploadConfig `mapstructure:"upload"`
	Chunking ChunkConfig  `mapstructure:"chunking"`
	Embed    EmbedConfig  `mapstructure:"embedding"`
	Storage  StoreConfig  `mapstructure:"storage"`
	Pipeline RunConfig    `mapstructure:"pipeline"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Bind string `mapstructure:"bind"`
	Port int    `mapstructure:"port"`
}

// UploadConfig holds upload gate settings.
type UploadConfig struct {
	MaxFileSize int64 `mapstructure:"max_file_size"`
}

// ChunkConfig holds chunking controls.
type ChunkConfig struct {
	ChunkSize      int     `mapstructure:"chunk_size"`
	OverlapPercent float64 `mapstructure:"overlap_percent"`
	TokenizerName  string  `mapstructure:"tokenizer_name"`
}

// EmbedConfig holds embedding provider controls.
type EmbedConfig struct {
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	BatchSize int    `mapstructure:"batch_size"`
}

// StoreConfig holds vector store controls.
type StoreConfig struct {
	Format string `mapstructure:"format"` // "json" or "hdf5"
}

// RunConfig holds pipeline execution controls.
type RunConfig struct {
	Workers       int `mapstructure:"workers"`        // 0 means one per core
	QueueCapacity int `mapstructure:"queue_capacity"`
	TimeoutSec    int `mapstructure:"timeout_seconds"`
}

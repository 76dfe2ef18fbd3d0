package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	DefaultLogLevel       = "INFO"
	DefaultBaseDir        = "./data"
	DefaultServerBind     = "127.0.0.1"
	DefaultServerPort     = 8080
	DefaultMaxFileSize    = 50 * 1024 * 1024
	DefaultChunkSize      = 512
	DefaultOverlapPercent = 0.10
	DefaultTokenizerName  = "cl100k_base"
	DefaultEmbeddingModel = "embed-english-v3.0"
	DefaultBatchSize      = 96
	DefaultStorageFormat  = "json"
	DefaultQueueCapacity  = 128
	DefaultTimeoutSec     = 300
)

// Load reads the typed configuration from the environment and, when present,
// an orion.yaml config file in the working directory. Environment variables
// use either the ORION_ prefix (ORION_BASE_DIR) or the documented plain names
// (BASE_DIR, EMBEDDING_API_KEY, ...), with plain names taking effect only
// when no prefixed value is set. Callers that need a runnable configuration
// must also call Validate; Load alone never requires the API key so that
// commands like version work in a bare environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("orion")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ORION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindPlainEnv(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config; %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config; %w", err)
	}

	return cfg, nil
}

// setDefaults registers all default values with a viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("log_file", "")
	v.SetDefault("base_dir", DefaultBaseDir)

	v.SetDefault("server.bind", DefaultServerBind)
	v.SetDefault("server.port", DefaultServerPort)

	v.SetDefault("upload.max_file_size", DefaultMaxFileSize)

	v.SetDefault("chunking.chunk_size", DefaultChunkSize)
	v.SetDefault("chunking.overlap_percent", DefaultOverlapPercent)
	v.SetDefault("chunking.tokenizer_name", DefaultTokenizerName)

	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.model", DefaultEmbeddingModel)
	v.SetDefault("embedding.batch_size", DefaultBatchSize)

	v.SetDefault("storage.format", DefaultStorageFormat)

	v.SetDefault("pipeline.workers", 0)
	v.SetDefault("pipeline.queue_capacity", DefaultQueueCapacity)
	v.SetDefault("pipeline.timeout_seconds", DefaultTimeoutSec)
}

// bindPlainEnv binds the documented un-prefixed environment names.
func bindPlainEnv(v *viper.Viper) {
	bind := map[string]string{
		"log_level":                "LOG_LEVEL",
		"base_dir":                 "BASE_DIR",
		"upload.max_file_size":     "MAX_FILE_SIZE",
		"chunking.chunk_size":      "CHUNK_SIZE",
		"chunking.overlap_percent": "CHUNK_OVERLAP_PERCENT",
		"chunking.tokenizer_name":  "TOKENIZER_NAME",
		"embedding.api_key":        "EMBEDDING_API_KEY",
		"embedding.model":          "EMBEDDING_MODEL",
		"embedding.batch_size":     "EMBEDDING_BATCH_SIZE",
		"storage.format":           "VECTOR_STORAGE_TYPE",
	}
	for key, env := range bind {
		// BindEnv with multiple names checks them in order; the ORION_
		// prefixed name generated by AutomaticEnv still wins because it is
		// bound first.
		_ = v.BindEnv(key, "ORION_"+env, env)
	}
}

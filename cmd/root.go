package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oriondocs/orion/internal/config"
	"github.com/oriondocs/orion/internal/logging"
)

// logManager is created in bootstrap mode (stderr text only) and upgraded
// once configuration is available.
var logManager *logging.Manager

// cfg is loaded by the root PersistentPreRunE before any subcommand runs.
var cfg *config.Config

var orionCmd = &cobra.Command{
	Use:   "orion",
	Short: "Document ingestion and semantic search service",
	Long: "Orion ingests documents into per-user libraries and serves semantic search over them.\n\n" +
		"Uploaded files are converted to text, chunked by token count, embedded via a remote " +
		"embedding provider, and persisted as per-document vector sets. The search API ranks " +
		"chunks by vector similarity, optionally blended with BM25 lexical scoring.",
	PersistentPreRunE: runInitialize,
}

func init() {
	logManager = logging.NewManager()

	orionCmd.AddCommand(serveCmd)
	orionCmd.AddCommand(versionCmd)
}

func runInitialize(cmd *cobra.Command, args []string) error {
	logger := logManager.Logger()

	var err error
	cfg, err = config.Load()
	if err != nil {
		return err
	}

	level, ok := logging.ParseLevel(cfg.LogLevel)
	if !ok {
		level = logging.DefaultLevel
		if cfg.LogLevel != "" {
			logger.Warn("invalid log level configured, using default",
				"configured", cfg.LogLevel, "default", "info")
		}
	}

	if err := logManager.Upgrade(cfg.LogFile, level); err != nil {
		// Continue in bootstrap mode rather than failing startup.
		logger.Warn("failed to enable file logging, continuing with stderr only", "error", err)
	}

	return nil
}

// Execute runs the root command.
func Execute() error {
	orionCmd.SilenceErrors = true
	orionCmd.SilenceUsage = true

	defer func() { _ = logManager.Close() }()

	err := orionCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

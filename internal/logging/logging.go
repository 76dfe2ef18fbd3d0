// Package logging manages the process-wide slog logger. The server starts in
// bootstrap mode (text to stderr) and upgrades to fanout mode (text to stderr
// plus JSON to file) once configuration is available.
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	slogmulti "github.com/samber/slog-multi"
)

// Manager handles logger lifecycle including the bootstrap-to-full upgrade.
// Components obtain a logger via Logger() once and keep it; the underlying
// handler is swapped atomically on upgrade.
type Manager struct {
	handler *SwappableHandler
	logger  *slog.Logger
	logFile *os.File
	level   *slog.LevelVar
	mu      sync.Mutex
}

// NewManager creates a logging manager in bootstrap mode.
func NewManager() *Manager {
	level := new(slog.LevelVar)
	level.Set(DefaultLevel)

	opts := &slog.HandlerOptions{Level: level}
	bootstrap := slog.NewTextHandler(os.Stderr, opts)

	handler := NewSwappableHandler(bootstrap)
	return &Manager{
		handler: handler,
		logger:  slog.New(handler),
		level:   level,
	}
}

// Logger returns the current logger instance. The returned logger is stable
// across Upgrade calls.
func (m *Manager) Logger() *slog.Logger {
	return m.logger
}

// Upgrade transitions from bootstrap mode to full mode once the log file path
// and level are known. If logFilePath is empty, only the level changes.
func (m *Manager) Upgrade(logFilePath string, level slog.Level) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.level.Set(level)
	if logFilePath == "" {
		return nil
	}

	dir := filepath.Dir(logFilePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory %q; %w", dir, err)
	}

	file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %q; %w", logFilePath, err)
	}

	if m.logFile != nil {
		_ = m.logFile.Close()
	}
	m.logFile = file

	opts := &slog.HandlerOptions{Level: m.level}
	m.handler.Swap(slogmulti.Fanout(
		slog.NewTextHandler(os.Stderr, opts),
		slog.NewJSONHandler(file, opts),
	))

	return nil
}

// SetLevel changes the log level at runtime.
func (m *Manager) SetLevel(level slog.Level) {
	m.level.Set(level)
}

// Close shuts down the logger, closing any open file handle.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.logFile != nil {
		err := m.logFile.Close()
		m.logFile = nil
		return err
	}
	return nil
}

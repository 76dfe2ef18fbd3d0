// Package upload implements the ingestion entry point: it streams request
// bytes to disk under a size cap, validates the user id and detected MIME
// type, and enqueues the background ingest pipeline.
package upload

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/oriondocs/orion/internal/errs"
	"github.com/oriondocs/orion/internal/extract"
	"github.com/oriondocs/orion/internal/ingest"
	"github.com/oriondocs/orion/internal/paths"
)

const copyBufferSize = 8 * 1024

// Result describes an accepted upload. Processing continues asynchronously.
type Result struct {
	DocumentID string
	Size       int64
	MIMEType   string
}

// Enqueuer is the ingest queue surface the gate needs.
type Enqueuer interface {
	Enqueue(job ingest.Job) error
}

// Gate validates and persists uploads.
type Gate struct {
	resolver *paths.Resolver
	registry *extract.Registry
	queue    Enqueuer
	maxSize  int64
	logger   *slog.Logger
}

// GateOption configures the Gate.
type GateOption func(*Gate)

// WithMaxFileSize sets the upload byte cap.
func WithMaxFileSize(n int64) GateOption {
	return func(g *Gate) {
		if n > 0 {
			g.maxSize = n
		}
	}
}

// WithLogger sets the logger for the gate.
func WithLogger(l *slog.Logger) GateOption {
	return func(g *Gate) {
		g.logger = l
	}
}

// NewGate creates an upload gate.
func NewGate(resolver *paths.Resolver, registry *extract.Registry, queue Enqueuer, opts ...GateOption) *Gate {
	g := &Gate{
		resolver: resolver,
		registry: registry,
		queue:    queue,
		maxSize:  50 * 1024 * 1024,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Accept streams the upload to raw_uploads/, validates it, and enqueues the
// ingest pipeline. On any failure no raw file remains on disk.
func (g *Gate) Accept(src io.Reader, filename, userID, description string) (*Result, error) {
	if err := paths.ValidateUserID(userID); err != nil {
		return nil, err
	}
	if err := g.resolver.EnsureUser(userID); err != nil {
		return nil, fmt.Errorf("%w; %w", errs.ErrIO, err)
	}

	docID := uuid.NewString()
	rawPath := filepath.Join(g.resolver.RawUploads(userID), docID+"_"+filepath.Base(filename))

	size, err := g.stream(src, rawPath)
	if err != nil {
		return nil, err
	}

	mime := extract.DetectMIME(rawPath, filename)
	if !g.registry.Supported(mime) {
		os.Remove(rawPath)
		return nil, fmt.Errorf("%w: %q", errs.ErrUnsupportedType, mime)
	}

	job := ingest.Job{
		DocumentID:       docID,
		UserID:           userID,
		OriginalFilename: filepath.Base(filename),
		FilePath:         rawPath,
		MIMEType:         mime,
		Description:      description,
	}
	if err := g.queue.Enqueue(job); err != nil {
		os.Remove(rawPath)
		return nil, fmt.Errorf("%w: failed to queue document; %w", errs.ErrIO, err)
	}

	g.logger.Info("upload accepted",
		"document_id", docID,
		"user_id", userID,
		"filename", job.OriginalFilename,
		"size", size,
		"mime", mime)

	return &Result{DocumentID: docID, Size: size, MIMEType: mime}, nil
}

// stream copies src to path in fixed-size buffers, enforcing the byte cap as
// it goes. The partial file is unlinked on any failure.
func (g *Gate) stream(src io.Reader, path string) (int64, error) {
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to create raw file; %w", errs.ErrIO, err)
	}

	var total int64
	buf := make([]byte, copyBufferSize)
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			total += int64(n)
			if total > g.maxSize {
				dst.Close()
				os.Remove(path)
				return 0, fmt.Errorf("%w: upload exceeds %d bytes", errs.ErrTooLarge, g.maxSize)
			}
			if _, err := dst.Write(buf[:n]); err != nil {
				dst.Close()
				os.Remove(path)
				return 0, fmt.Errorf("%w: failed to write raw file; %w", errs.ErrIO, err)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			dst.Close()
			os.Remove(path)
			return 0, fmt.Errorf("%w: failed to read upload stream; %w", errs.ErrIO, readErr)
		}
	}

	if err := dst.Close(); err != nil {
		os.Remove(path)
		return 0, fmt.Errorf("%w: failed to close raw file; %w", errs.ErrIO, err)
	}
	return total, nil
}

// Package library reports per-user statistics over the on-disk document
// library.
package library

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/oriondocs/orion/internal/errs"
	"github.com/oriondocs/orion/internal/paths"
	"github.com/oriondocs/orion/internal/vectorstore"
)

// Stats summarizes one user's library.
type Stats struct {
	Exists               bool  `json:"exists"`
	DocumentCount        int   `json:"document_count"`
	ChunkCount           int   `json:"chunk_count"`
	ChunksWithEmbeddings int   `json:"chunks_with_embeddings"`
	TotalRawBytes        int64 `json:"total_raw_bytes"`
}

// Repository computes library statistics from the vector store and the raw
// upload directory.
type Repository struct {
	store    vectorstore.Store
	resolver *paths.Resolver
	logger   *slog.Logger
}

// NewRepository creates a library repository.
func NewRepository(store vectorstore.Store, resolver *paths.Resolver, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{store: store, resolver: resolver, logger: logger}
}

// Exists reports whether the user has any library presence on disk.
func (r *Repository) Exists(userID string) bool {
	info, err := os.Stat(r.resolver.UserBase(userID))
	return err == nil && info.IsDir()
}

// Document summarizes one persisted document.
type Document struct {
	DocumentID       string `json:"document_id"`
	OriginalFilename string `json:"original_filename"`
	ChunkCount       int    `json:"chunk_count"`
	ChunkSize        int    `json:"chunk_size"`
	EmbeddingModel   string `json:"embedding_model"`
}

// Documents lists the user's persisted documents in document-id order.
// Unreadable sets are skipped with a warning, matching Stats.
func (r *Repository) Documents(userID string) ([]Document, error) {
	if err := paths.ValidateUserID(userID); err != nil {
		return nil, err
	}
	if !r.Exists(userID) {
		return []Document{}, nil
	}

	ids, err := r.store.List(userID)
	if err != nil {
		return nil, fmt.Errorf("%w; %w", errs.ErrIO, err)
	}

	docs := make([]Document, 0, len(ids))
	for _, docID := range ids {
		set, err := r.store.Load(userID, docID)
		if err != nil {
			r.logger.Warn("skipping unreadable embedding set",
				"user_id", userID, "document_id", docID, "error", err)
			continue
		}
		docs = append(docs, Document{
			DocumentID:       set.FileID,
			OriginalFilename: set.Metadata.OriginalFilename,
			ChunkCount:       len(set.Embeddings),
			ChunkSize:        set.Metadata.ChunkSize,
			EmbeddingModel:   set.Metadata.EmbeddingModel,
		})
	}
	return docs, nil
}

// Stats gathers the user's library statistics. A user with no directory
// yields a zero Stats with Exists false.
func (r *Repository) Stats(userID string) (*Stats, error) {
	if err := paths.ValidateUserID(userID); err != nil {
		return nil, err
	}

	stats := &Stats{Exists: r.Exists(userID)}
	if !stats.Exists {
		return stats, nil
	}

	ids, err := r.store.List(userID)
	if err != nil {
		return nil, fmt.Errorf("%w; %w", errs.ErrIO, err)
	}
	stats.DocumentCount = len(ids)

	for _, docID := range ids {
		set, err := r.store.Load(userID, docID)
		if err != nil {
			r.logger.Warn("skipping unreadable embedding set",
				"user_id", userID, "document_id", docID, "error", err)
			continue
		}
		for _, c := range set.Embeddings {
			if len(c.Embedding) > 0 {
				stats.ChunksWithEmbeddings++
			}
		}
	}

	// Chunk files are counted on disk so documents that are chunked but not
	// yet embedded still show up.
	stats.ChunkCount, err = dirFileCount(r.resolver.RawChunks(userID))
	if err != nil {
		return nil, fmt.Errorf("%w; %w", errs.ErrIO, err)
	}

	stats.TotalRawBytes, err = dirBytes(r.resolver.RawUploads(userID))
	if err != nil {
		return nil, fmt.Errorf("%w; %w", errs.ErrIO, err)
	}
	return stats, nil
}

// dirFileCount counts the regular files directly under dir.
func dirFileCount(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var n int
	for _, e := range entries {
		if !e.IsDir() {
			n++
		}
	}
	return n, nil
}

// dirBytes sums the sizes of the regular files directly under dir.
func dirBytes(dir string) (int64, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var total int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total, nil
}

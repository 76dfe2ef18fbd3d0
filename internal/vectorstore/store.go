// Package vectorstore persists embedded chunks per document in one of two
// interchangeable on-disk formats: a human-readable row-oriented JSON file
// and a compressed columnar binary file.
package vectorstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/oriondocs/orion/internal/paths"
)

// ChunkEmbedding is one embedded chunk of a document.
type ChunkEmbedding struct {
	ChunkIndex     int       `json:"chunk_index"`
	Filename       string    `json:"filename"`
	Text           string    `json:"text"`
	Embedding      []float32 `json:"embedding"`
	TokenCount     int       `json:"token_count"`
	EmbeddingModel string    `json:"embedding_model"`
}

// Metadata carries document-level attributes alongside the vectors.
type Metadata struct {
	UserID           string `json:"user_id"`
	OriginalFilename string `json:"original_filename"`
	ChunkSize        int    `json:"chunk_size"`
	EmbeddingModel   string `json:"embedding_model"`
}

// EmbeddingSet is the complete persisted record for one document.
type EmbeddingSet struct {
	FileID     string           `json:"file_id"`
	Embeddings []ChunkEmbedding `json:"embeddings"`
	Metadata   Metadata         `json:"metadata"`
}

// Dimension returns the vector dimension, or 0 for an empty set.
func (s *EmbeddingSet) Dimension() int {
	if len(s.Embeddings) == 0 {
		return 0
	}
	return len(s.Embeddings[0].Embedding)
}

// Store persists and retrieves embedding sets for documents.
type Store interface {
	// Save writes the full set for a document, replacing any previous file.
	// The write is atomic: readers see either the old file or the new one.
	Save(userID string, set *EmbeddingSet) error

	// Load reads the set for one document.
	Load(userID, docID string) (*EmbeddingSet, error)

	// Exists reports whether a set is persisted for the document.
	Exists(userID, docID string) bool

	// Delete removes the persisted set. Missing files are not an error.
	Delete(userID, docID string) error

	// List returns the document ids with persisted sets, sorted ascending.
	List(userID string) ([]string, error)
}

// Open returns the store for the configured format, "json" or "hdf5".
func Open(format string, resolver *paths.Resolver) (Store, error) {
	switch format {
	case "json":
		return NewJSONStore(resolver), nil
	case "hdf5":
		return NewColumnarStore(resolver), nil
	default:
		return nil, fmt.Errorf("unknown storage format %q", format)
	}
}

// listByExt enumerates processed_vectors/ for files named
// {doc_id}_embeddings{ext} and returns the sorted document ids.
func listByExt(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list vector files; %w", err)
	}

	suffix := "_embeddings" + ext
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, suffix) {
			ids = append(ids, strings.TrimSuffix(name, suffix))
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// writeAtomic writes data to path via a temporary sibling and rename.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create vector directory; %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file; %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file; %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file; %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename temp file; %w", err)
	}
	return nil
}

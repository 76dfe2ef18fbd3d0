package vectorstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oriondocs/orion/internal/paths"
)

// jsonRecord is the on-disk row-oriented layout. The metadata block carries
// the storage format tag and embedding count alongside the document fields.
type jsonRecord struct {
	FileID     string           `json:"file_id"`
	Embeddings []ChunkEmbedding `json:"embeddings"`
	Metadata   jsonMetadata     `json:"metadata"`
}

type jsonMetadata struct {
	Metadata
	StorageFormat  string `json:"storage_format"`
	EmbeddingCount int    `json:"embedding_count"`
}

// JSONStore persists one indented JSON file per document.
type JSONStore struct {
	resolver *paths.Resolver
}

// NewJSONStore creates a row-format store rooted at the resolver's base.
func NewJSONStore(resolver *paths.Resolver) *JSONStore {
	return &JSONStore{resolver: resolver}
}

var _ Store = (*JSONStore)(nil)

func (s *JSONStore) path(userID, docID string) string {
	return filepath.Join(s.resolver.ProcessedVectors(userID), docID+"_embeddings.json")
}

// Save writes the set as indented JSON via temp-file rename.
func (s *JSONStore) Save(userID string, set *EmbeddingSet) error {
	rec := jsonRecord{
		FileID:     set.FileID,
		Embeddings: set.Embeddings,
		Metadata: jsonMetadata{
			Metadata:       set.Metadata,
			StorageFormat:  "json",
			EmbeddingCount: len(set.Embeddings),
		},
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal embedding set; %w", err)
	}

	return writeAtomic(s.path(userID, set.FileID), data)
}

// Load reads the set for one document.
func (s *JSONStore) Load(userID, docID string) (*EmbeddingSet, error) {
	data, err := os.ReadFile(s.path(userID, docID))
	if err != nil {
		return nil, fmt.Errorf("failed to read embedding set; %w", err)
	}

	var rec jsonRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse embedding set; %w", err)
	}

	return &EmbeddingSet{
		FileID:     rec.FileID,
		Embeddings: rec.Embeddings,
		Metadata:   rec.Metadata.Metadata,
	}, nil
}

// Exists reports whether the document's file is present.
func (s *JSONStore) Exists(userID, docID string) bool {
	_, err := os.Stat(s.path(userID, docID))
	return err == nil
}

// Delete removes the document's file if present.
func (s *JSONStore) Delete(userID, docID string) error {
	err := os.Remove(s.path(userID, docID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete embedding set; %w", err)
	}
	return nil
}

// List returns the persisted document ids, sorted ascending.
func (s *JSONStore) List(userID string) ([]string, error) {
	return listByExt(s.resolver.ProcessedVectors(userID), ".json")
}

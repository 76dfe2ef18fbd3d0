package library

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/oriondocs/orion/internal/errs"
	"github.com/oriondocs/orion/internal/paths"
	"github.com/oriondocs/orion/internal/vectorstore"
)

const testUser = "alice@example.com"

func newTestRepo(t *testing.T) (*Repository, *paths.Resolver, vectorstore.Store) {
	t.Helper()
	resolver := paths.NewResolver(t.TempDir())
	store := vectorstore.NewJSONStore(resolver)
	return NewRepository(store, resolver, nil), resolver, store
}

func TestStatsUnknownUser(t *testing.T) {
	repo, _, _ := newTestRepo(t)

	stats, err := repo.Stats("nobody@example.com")
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Exists {
		t.Error("Exists = true for unknown user")
	}
	if stats.DocumentCount != 0 || stats.ChunkCount != 0 || stats.TotalRawBytes != 0 {
		t.Errorf("stats = %+v, want zeros", stats)
	}
}

func TestStatsInvalidUser(t *testing.T) {
	repo, _, _ := newTestRepo(t)

	_, err := repo.Stats("not-an-email")
	if !errors.Is(err, errs.ErrInvalidUser) {
		t.Fatalf("err = %v, want ErrInvalidUser", err)
	}
}

func TestDocumentsListsPersistedSets(t *testing.T) {
	repo, resolver, store := newTestRepo(t)
	if err := resolver.EnsureUser(testUser); err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}

	for _, id := range []string{"doc-b", "doc-a"} {
		err := store.Save(testUser, &vectorstore.EmbeddingSet{
			FileID: id,
			Embeddings: []vectorstore.ChunkEmbedding{
				{ChunkIndex: 0, Text: "x", Embedding: []float32{1}, EmbeddingModel: "m1"},
			},
			Metadata: vectorstore.Metadata{
				UserID:           testUser,
				OriginalFilename: id + ".txt",
				ChunkSize:        512,
				EmbeddingModel:   "m1",
			},
		})
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	docs, err := repo.Documents(testUser)
	if err != nil {
		t.Fatalf("Documents failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("len(docs) = %d, want 2", len(docs))
	}
	if docs[0].DocumentID != "doc-a" || docs[1].DocumentID != "doc-b" {
		t.Errorf("ids = %q, %q, want doc-a, doc-b", docs[0].DocumentID, docs[1].DocumentID)
	}
	if docs[0].OriginalFilename != "doc-a.txt" || docs[0].ChunkCount != 1 {
		t.Errorf("docs[0] = %+v", docs[0])
	}
	if docs[0].ChunkSize != 512 || docs[0].EmbeddingModel != "m1" {
		t.Errorf("docs[0] metadata = %+v", docs[0])
	}
}

func TestDocumentsUnknownUserEmpty(t *testing.T) {
	repo, _, _ := newTestRepo(t)

	docs, err := repo.Documents("nobody@example.com")
	if err != nil {
		t.Fatalf("Documents failed: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("len(docs) = %d, want 0", len(docs))
	}
}

func TestStatsCountsDocumentsChunksAndBytes(t *testing.T) {
	repo, resolver, store := newTestRepo(t)
	if err := resolver.EnsureUser(testUser); err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}

	saveErr := store.Save(testUser, &vectorstore.EmbeddingSet{
		FileID: "doc-a",
		Embeddings: []vectorstore.ChunkEmbedding{
			{ChunkIndex: 0, Text: "a0", Embedding: []float32{1, 2}, EmbeddingModel: "m1"},
			{ChunkIndex: 1, Text: "a1", Embedding: nil, EmbeddingModel: "m1"},
		},
		Metadata: vectorstore.Metadata{UserID: testUser, OriginalFilename: "a.txt"},
	})
	if saveErr != nil {
		t.Fatalf("Save failed: %v", saveErr)
	}
	saveErr = store.Save(testUser, &vectorstore.EmbeddingSet{
		FileID: "doc-b",
		Embeddings: []vectorstore.ChunkEmbedding{
			{ChunkIndex: 0, Text: "b0", Embedding: []float32{3, 4}, EmbeddingModel: "m1"},
		},
		Metadata: vectorstore.Metadata{UserID: testUser, OriginalFilename: "b.txt"},
	})
	if saveErr != nil {
		t.Fatalf("Save failed: %v", saveErr)
	}

	raw := filepath.Join(resolver.RawUploads(testUser), "doc-a_a.txt")
	if err := os.WriteFile(raw, make([]byte, 1000), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	// Four chunk files on disk: one document is chunked but not yet embedded.
	for _, name := range []string{"a_chunk_000.txt", "a_chunk_001.txt", "b_chunk_000.txt", "c_chunk_000.txt"} {
		path := filepath.Join(resolver.RawChunks(testUser), name)
		if err := os.WriteFile(path, []byte("chunk"), 0644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}

	stats, err := repo.Stats(testUser)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if !stats.Exists {
		t.Error("Exists = false")
	}
	if stats.DocumentCount != 2 {
		t.Errorf("DocumentCount = %d, want 2", stats.DocumentCount)
	}
	if stats.ChunkCount != 4 {
		t.Errorf("ChunkCount = %d, want 4", stats.ChunkCount)
	}
	if stats.ChunksWithEmbeddings != 2 {
		t.Errorf("ChunksWithEmbeddings = %d, want 2", stats.ChunksWithEmbeddings)
	}
	if stats.TotalRawBytes != 1000 {
		t.Errorf("TotalRawBytes = %d, want 1000", stats.TotalRawBytes)
	}
}

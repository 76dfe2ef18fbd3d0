package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/oriondocs/orion/internal/embedding"
	"github.com/oriondocs/orion/internal/errs"
	"github.com/oriondocs/orion/internal/extract"
	"github.com/oriondocs/orion/internal/paths"
	"github.com/oriondocs/orion/internal/pipeline"
	"github.com/oriondocs/orion/internal/vectorstore"
)

const testUser = "alice@example.com"

// fakeEmbedder returns deterministic vectors and records call counts. When
// short is set, each response drops that many trailing vectors.
type fakeEmbedder struct {
	dim      int
	calls    int
	failures int
	short    int
	err      error
	batches  [][]string
}

func (f *fakeEmbedder) ModelName() string { return "embed-test-v1" }

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string, inputType embedding.InputType) ([][]float32, error) {
	f.calls++
	f.batches = append(f.batches, texts)
	if f.calls <= f.failures {
		if f.err != nil {
			return nil, f.err
		}
		return nil, fmt.Errorf("%w: transient", errs.ErrProviderUnavailable)
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, f.dim)
		vec[0] = float32(len(texts[i]))
		out[i] = vec
	}
	if f.short > 0 && f.short < len(out) {
		out = out[:len(out)-f.short]
	}
	return out, nil
}

func testPipelineConfig(t *testing.T, emb *fakeEmbedder) (PipelineConfig, *paths.Resolver, vectorstore.Store) {
	t.Helper()
	resolver := paths.NewResolver(t.TempDir())
	if err := resolver.EnsureUser(testUser); err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}
	store := vectorstore.NewJSONStore(resolver)

	return PipelineConfig{
		Registry:        extract.NewRegistry(),
		Codec:           runeCodec{},
		Embedder:        emb,
		Store:           store,
		Resolver:        resolver,
		ChunkSize:       512,
		OverlapFraction: 0.10,
		BatchSize:       2,
	}, resolver, store
}

func uploadText(t *testing.T, resolver *paths.Resolver, docID, filename, content string) string {
	t.Helper()
	path := filepath.Join(resolver.RawUploads(testUser), docID+"_"+filename)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write upload: %v", err)
	}
	return path
}

func TestDocumentPipelineEndToEnd(t *testing.T) {
	emb := &fakeEmbedder{dim: 4}
	cfg, resolver, store := testPipelineConfig(t, emb)

	content := strings.Repeat("0123456789", 130) // 1300 rune tokens
	raw := uploadText(t, resolver, "doc-1", "notes.txt", content)

	p := NewDocumentPipeline(cfg)
	pctx := pipeline.NewContext("doc-1", testUser, "notes.txt", raw)

	report := p.Execute(context.Background(), pctx)
	if report.Status != pipeline.StatusSuccess {
		t.Fatalf("pipeline status = %s, err = %v", report.Status, report.Err)
	}

	// Converted text file exists.
	textPath, _ := pctx.GetString(MetaConvertedTextPath)
	if filepath.Base(textPath) != "notes.txt" {
		t.Errorf("converted text path = %q", textPath)
	}
	if _, err := os.Stat(textPath); err != nil {
		t.Errorf("converted text missing: %v", err)
	}

	// Chunk count, files on disk, and persisted vectors all agree.
	chunkCount, _ := pctx.GetInt(MetaChunkCount)
	files, _ := pctx.Meta[MetaChunkFiles].([]string)
	if chunkCount != len(files) {
		t.Errorf("chunk_count %d != %d chunk files", chunkCount, len(files))
	}
	entries, err := os.ReadDir(resolver.RawChunks(testUser))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != chunkCount {
		t.Errorf("%d chunk files on disk, want %d", len(entries), chunkCount)
	}

	set, err := store.Load(testUser, "doc-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(set.Embeddings) != chunkCount {
		t.Errorf("persisted %d vectors, want %d", len(set.Embeddings), chunkCount)
	}
	if set.Metadata.EmbeddingModel != "embed-test-v1" {
		t.Errorf("model = %q", set.Metadata.EmbeddingModel)
	}
	for i, e := range set.Embeddings {
		if e.ChunkIndex != i {
			t.Errorf("embedding %d has chunk index %d", i, e.ChunkIndex)
		}
		if len(e.Embedding) != 4 {
			t.Errorf("embedding %d has dimension %d", i, len(e.Embedding))
		}
	}
}

func TestDocumentPipelineBatchesRespectLimit(t *testing.T) {
	emb := &fakeEmbedder{dim: 4}
	cfg, resolver, _ := testPipelineConfig(t, emb)
	cfg.BatchSize = 2

	// 1300 tokens at size 512/overlap 51 gives 3 chunks, so 2 batches.
	raw := uploadText(t, resolver, "doc-1", "notes.txt", strings.Repeat("x", 1300))

	report := NewDocumentPipeline(cfg).Execute(context.Background(),
		pipeline.NewContext("doc-1", testUser, "notes.txt", raw))
	if report.Status != pipeline.StatusSuccess {
		t.Fatalf("pipeline status = %s, err = %v", report.Status, report.Err)
	}

	if len(emb.batches) != 2 {
		t.Fatalf("got %d batches, want 2", len(emb.batches))
	}
	if len(emb.batches[0]) != 2 || len(emb.batches[1]) != 1 {
		t.Errorf("batch sizes = %d,%d, want 2,1", len(emb.batches[0]), len(emb.batches[1]))
	}
}

func TestDocumentPipelineRetriesTransientEmbedFailure(t *testing.T) {
	emb := &fakeEmbedder{dim: 4, failures: 1}
	cfg, resolver, store := testPipelineConfig(t, emb)

	raw := uploadText(t, resolver, "doc-1", "notes.txt", strings.Repeat("y", 200))

	p := pipelineWithFastBackoff(cfg)
	report := p.Execute(context.Background(),
		pipeline.NewContext("doc-1", testUser, "notes.txt", raw))

	if report.Status != pipeline.StatusSuccess {
		t.Fatalf("pipeline status = %s, err = %v", report.Status, report.Err)
	}
	if !store.Exists(testUser, "doc-1") {
		t.Error("embedding set not persisted after retry")
	}
}

func TestDocumentPipelineAuthFailureIsNotRetried(t *testing.T) {
	emb := &fakeEmbedder{
		dim:      4,
		failures: 10,
		err:      fmt.Errorf("%w: invalid key", errs.ErrAuth),
	}
	cfg, resolver, store := testPipelineConfig(t, emb)

	raw := uploadText(t, resolver, "doc-1", "notes.txt", strings.Repeat("z", 200))

	report := pipelineWithFastBackoff(cfg).Execute(context.Background(),
		pipeline.NewContext("doc-1", testUser, "notes.txt", raw))

	if report.Status != pipeline.StatusFailed {
		t.Fatalf("pipeline status = %s, want failed", report.Status)
	}
	if emb.calls != 1 {
		t.Errorf("embed calls = %d, want 1", emb.calls)
	}
	if store.Exists(testUser, "doc-1") {
		t.Error("persist must not run after embed failure")
	}
	// Persist step is reported pending, not failed.
	last := report.Steps[len(report.Steps)-1]
	if last.Name != "persist" || last.Status != pipeline.StatusPending {
		t.Errorf("persist result = %+v, want pending", last)
	}
}

func TestEmbedStepRejectsShortVectorResponse(t *testing.T) {
	emb := &fakeEmbedder{dim: 4, short: 1}
	cfg, resolver, store := testPipelineConfig(t, emb)

	// 1300 tokens gives 3 chunks, so the short response under-returns.
	raw := uploadText(t, resolver, "doc-1", "notes.txt", strings.Repeat("w", 1300))

	report := pipelineWithFastBackoff(cfg).Execute(context.Background(),
		pipeline.NewContext("doc-1", testUser, "notes.txt", raw))

	if report.Status != pipeline.StatusFailed {
		t.Fatalf("pipeline status = %s, want failed", report.Status)
	}
	if !errors.Is(report.Err, errs.ErrInvalidResponse) {
		t.Errorf("err = %v, want ErrInvalidResponse", report.Err)
	}
	if store.Exists(testUser, "doc-1") {
		t.Error("persist must not run after a short embed response")
	}
}

func TestConvertStepUnsupportedType(t *testing.T) {
	emb := &fakeEmbedder{dim: 4}
	cfg, resolver, _ := testPipelineConfig(t, emb)

	raw := uploadText(t, resolver, "doc-1", "image.png", "\x89PNG\r\n\x1a\n000000")

	report := pipelineWithFastBackoff(cfg).Execute(context.Background(),
		pipeline.NewContext("doc-1", testUser, "image.png", raw))

	if report.Status != pipeline.StatusFailed {
		t.Fatalf("pipeline status = %s, want failed", report.Status)
	}
	if report.Steps[0].Status != pipeline.StatusFailed {
		t.Errorf("convert status = %s, want failed", report.Steps[0].Status)
	}
}

func TestChunkStepEmptyDocumentFails(t *testing.T) {
	emb := &fakeEmbedder{dim: 4}
	cfg, resolver, _ := testPipelineConfig(t, emb)

	raw := uploadText(t, resolver, "doc-1", "empty.txt", "   ")

	report := pipelineWithFastBackoff(cfg).Execute(context.Background(),
		pipeline.NewContext("doc-1", testUser, "empty.txt", raw))

	if report.Status != pipeline.StatusFailed {
		t.Fatalf("pipeline status = %s, want failed", report.Status)
	}
	if emb.calls != 0 {
		t.Error("embed must not run for an empty document")
	}
}

// pipelineWithFastBackoff mirrors NewDocumentPipeline with a millisecond
// backoff unit so retry tests stay fast.
func pipelineWithFastBackoff(cfg PipelineConfig) *pipeline.Pipeline {
	steps := []pipeline.Step{
		NewConvertStep(cfg.Registry, cfg.Resolver),
		NewChunkStep(cfg.Codec, cfg.Resolver, cfg.ChunkSize, cfg.OverlapFraction),
		NewEmbedStep(cfg.Embedder, cfg.Codec, cfg.BatchSize),
		NewPersistStep(cfg.Store, cfg.ChunkSize),
	}
	return pipeline.New("document-ingest", steps, pipeline.WithBackoffUnit(time.Millisecond))
}

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/oriondocs/orion/internal/embedding"
	"github.com/oriondocs/orion/internal/extract"
	"github.com/oriondocs/orion/internal/ingest"
	"github.com/oriondocs/orion/internal/library"
	"github.com/oriondocs/orion/internal/paths"
	"github.com/oriondocs/orion/internal/search"
	"github.com/oriondocs/orion/internal/upload"
	"github.com/oriondocs/orion/internal/vectorstore"
)

const testUser = "alice@example.com"

// fakeQueue records jobs without running pipelines.
type fakeQueue struct {
	jobs []ingest.Job
}

func (q *fakeQueue) Enqueue(job ingest.Job) error {
	q.jobs = append(q.jobs, job)
	return nil
}

// fakeEmbedder returns a fixed query vector.
type fakeEmbedder struct{}

func (fakeEmbedder) ModelName() string { return "embed-test-v1" }

func (fakeEmbedder) Embed(ctx context.Context, texts []string, inputType embedding.InputType) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

type fixture struct {
	server *Server
	store  vectorstore.Store
	queue  *fakeQueue
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	resolver := paths.NewResolver(t.TempDir())
	store := vectorstore.NewJSONStore(resolver)
	queue := &fakeQueue{}

	gate := upload.NewGate(resolver, extract.NewRegistry(), queue, upload.WithMaxFileSize(1024))
	engine := search.NewEngine(store, fakeEmbedder{}, nil)
	repo := library.NewRepository(store, resolver, nil)

	return &fixture{
		server: NewServer(Config{}, gate, engine, repo, nil),
		store:  store,
		queue:  queue,
	}
}

func multipartBody(t *testing.T, userID, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile failed: %v", err)
	}
	if _, err := io.WriteString(fw, content); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if userID != "" {
		w.WriteField("user_id", userID)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("multipart close failed: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func TestUploadAccepted(t *testing.T) {
	f := newFixture(t)

	body, contentType := multipartBody(t, testUser, "notes.txt", "hello world")
	req := httptest.NewRequest("POST", "/api/v1/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	f.server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp UploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Queued || resp.DocumentID == "" || resp.MIMEType != extract.MIMEText {
		t.Errorf("response = %+v", resp)
	}
	if len(f.queue.jobs) != 1 {
		t.Errorf("got %d queued jobs, want 1", len(f.queue.jobs))
	}
}

func TestUploadInvalidUserIs400(t *testing.T) {
	f := newFixture(t)

	body, contentType := multipartBody(t, "not-an-email", "notes.txt", "hello")
	req := httptest.NewRequest("POST", "/api/v1/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	f.server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestUploadTooLargeIs413(t *testing.T) {
	f := newFixture(t)

	body, contentType := multipartBody(t, testUser, "big.txt", strings.Repeat("x", 5000))
	req := httptest.NewRequest("POST", "/api/v1/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	f.server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
}

func TestUploadUnsupportedTypeIs400(t *testing.T) {
	f := newFixture(t)

	png := "\x89PNG\r\n\x1a\n" + strings.Repeat("\x00", 32)
	body, contentType := multipartBody(t, testUser, "image.png", png)
	req := httptest.NewRequest("POST", "/api/v1/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	f.server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestUploadMissingFileIs400(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest("POST", "/api/v1/upload", strings.NewReader("no form"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	rec := httptest.NewRecorder()

	f.server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func seedLibrary(t *testing.T, store vectorstore.Store) {
	t.Helper()
	err := store.Save(testUser, &vectorstore.EmbeddingSet{
		FileID: "doc-a",
		Embeddings: []vectorstore.ChunkEmbedding{
			{ChunkIndex: 0, Filename: "a_chunk_000.txt", Text: "first chunk",
				Embedding: []float32{1, 0}, TokenCount: 2, EmbeddingModel: "embed-test-v1"},
			{ChunkIndex: 1, Filename: "a_chunk_001.txt", Text: "second chunk",
				Embedding: []float32{0, 1}, TokenCount: 2, EmbeddingModel: "embed-test-v1"},
		},
		Metadata: vectorstore.Metadata{
			UserID: testUser, OriginalFilename: "a.txt",
			ChunkSize: 512, EmbeddingModel: "embed-test-v1",
		},
	})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
}

func postQuery(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/v1/query", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestQueryReturnsRankedResults(t *testing.T) {
	f := newFixture(t)
	seedLibrary(t, f.store)

	rec := postQuery(t, f.server,
		`{"user_id":"alice@example.com","query":"first","algorithm":"cosine","limit":5}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp search.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Algorithm != "cosine" || len(resp.Results) != 2 {
		t.Errorf("response = %+v", resp)
	}
	if resp.Results[0].ChunkIndex != 0 {
		t.Errorf("top result = %+v, want chunk 0", resp.Results[0])
	}
}

func TestQueryEmptyLibraryIs404(t *testing.T) {
	f := newFixture(t)

	rec := postQuery(t, f.server, `{"user_id":"alice@example.com","query":"x"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestQueryUnknownAlgorithmIs400(t *testing.T) {
	f := newFixture(t)
	seedLibrary(t, f.store)

	rec := postQuery(t, f.server,
		`{"user_id":"alice@example.com","query":"x","algorithm":"euclidean"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestQueryMissingQueryIs400(t *testing.T) {
	f := newFixture(t)

	rec := postQuery(t, f.server, `{"user_id":"alice@example.com"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestLibraryStats(t *testing.T) {
	f := newFixture(t)
	seedLibrary(t, f.store)

	req := httptest.NewRequest("GET", "/api/v1/library/"+testUser+"/stats", nil)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var stats library.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !stats.Exists || stats.DocumentCount != 1 || stats.ChunksWithEmbeddings != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestQueryLimitOutOfRangeIs400(t *testing.T) {
	f := newFixture(t)
	seedLibrary(t, f.store)

	rec := postQuery(t, f.server,
		`{"user_id":"alice@example.com","query":"x","limit":101}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestLibraryDocuments(t *testing.T) {
	f := newFixture(t)
	seedLibrary(t, f.store)

	req := httptest.NewRequest("GET", "/api/v1/library/"+testUser+"/documents", nil)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp DocumentsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Documents) != 1 {
		t.Fatalf("got %d documents, want 1", len(resp.Documents))
	}
	doc := resp.Documents[0]
	if doc.DocumentID != "doc-a" || doc.OriginalFilename != "a.txt" || doc.ChunkCount != 2 {
		t.Errorf("document = %+v", doc)
	}
}

func TestAlgorithmsEndpoint(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest("GET", "/api/v1/algorithms", nil)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp AlgorithmsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Algorithms) != 2 || resp.Algorithms[0] != "cosine" || resp.Algorithms[1] != "hybrid" {
		t.Errorf("algorithms = %v", resp.Algorithms)
	}
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "alive") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/oriondocs/orion/internal/errs"
)

const (
	cohereAPIURL       = "https://api.cohere.com/v1/embed"
	cohereDefaultModel = "embed-english-v3.0"

	// Cohere's published limit for the embed endpoint.
	requestsPerMinute = 100
)

// CohereService implements Service against Cohere's embed API.
type CohereService struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// CohereOption configures the CohereService.
type CohereOption func(*CohereService)

// WithModel sets the embedding model.
func WithModel(model string) CohereOption {
	return func(s *CohereService) {
		s.model = model
	}
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(url string) CohereOption {
	return func(s *CohereService) {
		s.baseURL = url
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) CohereOption {
	return func(s *CohereService) {
		s.httpClient = c
	}
}

// NewCohereService creates a Cohere embedding service.
func NewCohereService(apiKey string, opts ...CohereOption) *CohereService {
	s := &CohereService{
		apiKey:     apiKey,
		model:      cohereDefaultModel,
		baseURL:    cohereAPIURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerMinute)/60.0, 10),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// ModelName returns the embedding model identifier.
func (s *CohereService) ModelName() string {
	return s.model
}

type cohereEmbedRequest struct {
	Model     string   `json:"model"`
	Texts     []string `json:"texts"`
	InputType string   `json:"input_type"`
}

type cohereEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Message    string      `json:"message"`
}

// Embed sends one embed request for the given texts and returns the vectors
// in input order.
func (s *CohereService) Embed(ctx context.Context, texts []string, inputType InputType) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed; %w", err)
	}

	jsonBody, err := json.Marshal(cohereEmbedRequest{
		Model:     s.model,
		Texts:     texts,
		InputType: string(inputType),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request; %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", s.baseURL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request; %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: request failed; %w", errs.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response; %w", errs.ErrProviderUnavailable, err)
	}

	if err := classifyStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	var apiResp cohereEmbedResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response; %w", errs.ErrInvalidResponse, err)
	}

	if len(apiResp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts",
			errs.ErrInvalidResponse, len(apiResp.Embeddings), len(texts))
	}

	dims := len(apiResp.Embeddings[0])
	if dims == 0 {
		return nil, fmt.Errorf("%w: empty embedding vector", errs.ErrInvalidResponse)
	}
	for i, emb := range apiResp.Embeddings {
		if len(emb) != dims {
			return nil, fmt.Errorf("%w: embedding %d has %d dimensions, expected %d",
				errs.ErrInvalidResponse, i, len(emb), dims)
		}
	}

	return apiResp.Embeddings, nil
}

// classifyStatus maps HTTP status codes to error kinds. Auth failures are
// terminal; rate limits and server errors are retriable.
func classifyStatus(code int, body []byte) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: API error %d: %s", errs.ErrAuth, code, truncate(body))
	case code == http.StatusTooManyRequests || code >= 500:
		return fmt.Errorf("%w: API error %d: %s", errs.ErrProviderUnavailable, code, truncate(body))
	default:
		return fmt.Errorf("%w: API error %d: %s", errs.ErrInvalidResponse, code, truncate(body))
	}
}

func truncate(body []byte) string {
	const max = 256
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}

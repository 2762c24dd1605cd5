package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// OpenAIBackend implements Backend using the OpenAI (or Azure OpenAI)
// embeddings REST API. It is safe for concurrent use.
type OpenAIBackend struct {
	// baseURL is the API base (e.g. "https://api.openai.com/v1" or an Azure endpoint).
	baseURL string
	// apiKey is the Bearer token (OpenAI) or api-key header value (Azure).
	apiKey string
	// model is the embedding model name (e.g. "text-embedding-3-small").
	model string
	// dimensions is the desired embedding vector length (0 = model default).
	dimensions int
	// azure selects Azure-style auth (api-key header) over Bearer token.
	azure bool
	// apiVersion is the Azure OpenAI API version query param (ignored for OpenAI).
	apiVersion string
	// client is the shared HTTP client with a sensible timeout.
	client *http.Client
	// limiter throttles outbound embed calls; nil disables throttling.
	limiter *rate.Limiter
}

// OpenAIConfig holds the settings for constructing an OpenAIBackend.
type OpenAIConfig struct {
	// BaseURL is the API base URL. For OpenAI: "https://api.openai.com/v1".
	// For Azure: "https://<resource>.openai.azure.com/openai".
	BaseURL string
	// APIKey is the authentication key.
	APIKey string
	// Model is the embedding model name (e.g. "text-embedding-3-small").
	Model string
	// Dimensions is the desired vector length (0 = model default).
	Dimensions int
	// Azure enables Azure OpenAI mode (api-key header + api-version param).
	Azure bool
	// APIVersion is the Azure OpenAI API version (e.g. "2025-04-01-preview").
	// Ignored when Azure is false.
	APIVersion string
	// RequestsPerSecond caps outbound embed calls (0 = unthrottled).
	RequestsPerSecond float64
}

// NewOpenAIBackend constructs an OpenAIBackend from the given config.
func NewOpenAIBackend(cfg *OpenAIConfig) *OpenAIBackend {
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &OpenAIBackend{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		azure:      cfg.Azure,
		apiVersion: cfg.APIVersion,
		client:     &http.Client{Timeout: 30 * time.Second},
		limiter:    limiter,
	}
}

// openaiEmbedRequest is the JSON body sent to the embeddings endpoint.
type openaiEmbedRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions,omitempty"`
}

// openaiEmbedResponse is the JSON body returned from the embeddings endpoint.
type openaiEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// CreateEmbedding embeds a single text.
func (b *OpenAIBackend) CreateEmbedding(ctx context.Context, kind, text, label string, returnVector bool) (*Embedding, error) {
	return single(ctx, b, kind, text, label, returnVector)
}

// CreateEmbeddings embeds a batch of texts. The returned slice is parallel
// to the input slice.
func (b *OpenAIBackend) CreateEmbeddings(ctx context.Context, kind string, texts, labels []string, returnVector bool) ([]Embedding, error) {
	if err := wait(ctx, b.limiter); err != nil {
		return nil, err
	}

	vectors, err := b.embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	return assemble(kind, texts, labels, vectors, returnVector)
}

// embed performs the raw HTTP batch embed call.
func (b *OpenAIBackend) embed(ctx context.Context, texts []string) ([][]float32, error) {
	body := openaiEmbedRequest{
		Input: texts,
		Model: b.model,
	}
	if b.dimensions > 0 {
		body.Dimensions = b.dimensions
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("openai backend: marshal request: %w", err)
	}

	url := b.baseURL + "/embeddings"
	if b.azure {
		url = b.baseURL + "/deployments/" + b.model + "/embeddings?api-version=" + b.apiVersion
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("openai backend: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.azure {
		req.Header.Set("api-key", b.apiKey)
	} else {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai backend: request failed: %w", err)
	}
	defer resp.Body.Close()

	var result openaiEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("openai backend: decode response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if result.Error != nil {
			msg = result.Error.Message
		}
		return nil, fmt.Errorf("openai backend: %s", msg)
	}

	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("openai backend: expected %d embeddings, got %d", len(texts), len(result.Data))
	}

	// The API may return data out of order; sort by index.
	vectors := make([][]float32, len(texts))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("openai backend: index %d out of range [0, %d)", d.Index, len(texts))
		}
		vectors[d.Index] = d.Embedding
	}

	return vectors, nil
}

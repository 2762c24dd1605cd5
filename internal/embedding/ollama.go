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

// OllamaBackend implements Backend using the Ollama /api/embed endpoint.
// It is safe for concurrent use. No API key is required — Ollama runs locally.
type OllamaBackend struct {
	// host is the Ollama server base URL (e.g. "http://localhost:11434").
	host string
	// model is the embedding model name (e.g. "nomic-embed-text").
	model string
	// client is the shared HTTP client with a sensible timeout.
	client *http.Client
	// limiter throttles outbound embed calls; nil disables throttling.
	limiter *rate.Limiter
}

// OllamaConfig holds the settings for constructing an OllamaBackend.
type OllamaConfig struct {
	// Host is the Ollama server base URL (e.g. "http://localhost:11434").
	Host string
	// Model is the embedding model name (e.g. "nomic-embed-text").
	Model string
	// RequestsPerSecond caps outbound embed calls (0 = unthrottled).
	RequestsPerSecond float64
}

// NewOllamaBackend constructs an OllamaBackend from the given config.
func NewOllamaBackend(cfg *OllamaConfig) *OllamaBackend {
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &OllamaBackend{
		host:    cfg.Host,
		model:   cfg.Model,
		client:  &http.Client{Timeout: 60 * time.Second},
		limiter: limiter,
	}
}

// ollamaEmbedRequest is the JSON body sent to the Ollama /api/embed endpoint.
type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// ollamaEmbedResponse is the JSON body returned from the Ollama /api/embed endpoint.
type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// CreateEmbedding embeds a single text.
func (b *OllamaBackend) CreateEmbedding(ctx context.Context, kind, text, label string, returnVector bool) (*Embedding, error) {
	return single(ctx, b, kind, text, label, returnVector)
}

// CreateEmbeddings embeds a batch of texts. The returned slice is parallel
// to the input slice.
func (b *OllamaBackend) CreateEmbeddings(ctx context.Context, kind string, texts, labels []string, returnVector bool) ([]Embedding, error) {
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
func (b *OllamaBackend) embed(ctx context.Context, texts []string) ([][]float32, error) {
	body := ollamaEmbedRequest{
		Model: b.model,
		Input: texts,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("ollama backend: marshal request: %w", err)
	}

	url := b.host + "/api/embed"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("ollama backend: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama backend: request failed: %w", err)
	}
	defer resp.Body.Close()

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ollama backend: decode response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if result.Error != "" {
			msg = result.Error
		}
		return nil, fmt.Errorf("ollama backend: %s", msg)
	}

	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama backend: expected %d embeddings, got %d", len(texts), len(result.Embeddings))
	}

	return result.Embeddings, nil
}

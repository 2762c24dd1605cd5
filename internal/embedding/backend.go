package embedding

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// wait blocks until the limiter admits one request. A nil limiter means
// the backend is unthrottled.
func wait(ctx context.Context, limiter *rate.Limiter) error {
	if limiter == nil {
		return nil
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("embedding: rate limit wait: %w", err)
	}
	return nil
}

// assemble turns a provider's vector batch into Embeddings parallel to
// texts. labels may be nil; missing labels fall back to kind. A count
// mismatch from the provider is a hard error for the whole batch.
func assemble(kind string, texts, labels []string, vectors [][]float32, returnVector bool) ([]Embedding, error) {
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding: expected %d vectors, got %d", len(texts), len(vectors))
	}
	if labels != nil && len(labels) != len(texts) {
		return nil, fmt.Errorf("embedding: expected %d labels, got %d", len(texts), len(labels))
	}

	out := make([]Embedding, len(texts))
	for i := range texts {
		label := kind
		if labels != nil && labels[i] != "" {
			label = labels[i]
		}
		e := Embedding{Label: label}
		if returnVector {
			e.Vector = vectors[i]
		}
		out[i] = e
	}
	return out, nil
}

// single runs a one-text batch through createBatch and unwraps the result.
func single(ctx context.Context, b Backend, kind, text, label string, returnVector bool) (*Embedding, error) {
	labels := []string(nil)
	if label != "" {
		labels = []string{label}
	}
	batch, err := b.CreateEmbeddings(ctx, kind, []string{text}, labels, returnVector)
	if err != nil {
		return nil, err
	}
	return &batch[0], nil
}

// Package embedding provides the embedding data model, the context
// blending composer, and Backend implementations that talk to embedding
// providers (Ollama, OpenAI, Azure OpenAI) via plain HTTP — no additional
// SDK dependencies are required.
package embedding

import "context"

// Embedding is a labelled dense vector.
type Embedding struct {
	// ID optionally identifies the embedded entity.
	ID string

	// Label optionally carries a human-readable tag for the vector.
	Label string

	// Vector is the dense embedding. A nil or empty vector means the
	// embedding is absent. Two embeddings are combinable only when their
	// vectors have equal length.
	Vector []float32
}

// HasVector reports whether the embedding carries a non-empty vector.
func (e *Embedding) HasVector() bool {
	return e != nil && len(e.Vector) > 0
}

// Backend converts text into dense vector embeddings. Implementations
// must be safe to call from multiple goroutines.
type Backend interface {
	// CreateEmbedding embeds a single text. kind classifies the request
	// (resource, block, fragment) and is recorded in the result's Label
	// when no explicit label is given. When returnVector is false the
	// result carries identity fields only.
	CreateEmbedding(ctx context.Context, kind, text, label string, returnVector bool) (*Embedding, error)

	// CreateEmbeddings embeds a batch of texts. labels may be nil or must
	// be parallel to texts. The returned slice is parallel to texts; a
	// provider returning a different count is a hard error for the batch.
	CreateEmbeddings(ctx context.Context, kind string, texts, labels []string, returnVector bool) ([]Embedding, error)
}

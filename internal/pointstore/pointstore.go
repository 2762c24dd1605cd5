// Package pointstore defines the narrow contract the pipeline uses to
// persist embedded points for similarity search, and its concrete
// implementations (Qdrant, in-memory). The store is deliberately
// absent-on-failure: a point that cannot be persisted is reported as
// absent so the pipeline can skip that entity and continue with its
// siblings.
package pointstore

import (
	"context"

	"github.com/catena-ai/catena-go/internal/embedding"
)

// Point is one persisted entity: the resource, a block, or a fragment.
type Point struct {
	// Layer names the hierarchy level ("resource", "block", "fragment").
	Layer string

	// Dimension is the entity's position within its parent (block order,
	// fragment order). Zero for resources.
	Dimension int

	// Weight optionally biases downstream ranking (0 = neutral).
	Weight float32

	// OwnerIDs are the identifiers of the entity's ancestors, outermost
	// first.
	OwnerIDs []string

	// Payload holds arbitrary searchable metadata (content, parser type,
	// fragment type, ...).
	Payload map[string]any
}

// Store persists points with their embeddings. Implementations must be
// safe to call from multiple goroutines.
type Store interface {
	// AddPoint persists one point, optionally linked to a parent point
	// and carrying an embedding vector. The second return value is false
	// when persistence failed — the failure is non-fatal per entity and
	// never carries an error the caller must abort on.
	AddPoint(ctx context.Context, parentID string, p Point, emb *embedding.Embedding) (string, bool)

	// Close releases any resources held by the store.
	Close() error
}

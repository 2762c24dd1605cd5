package pointstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/catena-ai/catena-go/internal/embedding"
	"github.com/catena-ai/catena-go/internal/logging"
)

// QdrantConfig holds connection parameters for a Qdrant point store
// instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements Store backed by a Qdrant instance.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig
}

// NewQdrantStore creates a new QdrantStore, ensuring the target collection
// exists (creating it if necessary), and returns a ready-to-use Store.
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	clientCfg := &qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	}

	client, err := qdrant.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	store := &QdrantStore{client: client, cfg: cfg}
	if err := store.ensureCollection(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// ensureCollection creates the Qdrant collection if it does not already exist.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
	}

	return nil
}

// AddPoint upserts one point. Failures are logged and reported as absent;
// they never abort the caller's pipeline.
func (s *QdrantStore) AddPoint(ctx context.Context, parentID string, p Point, emb *embedding.Embedding) (string, bool) {
	log := logging.FromContext(ctx)

	id := uuid.New().String()
	payload := map[string]any{
		"layer":     p.Layer,
		"dimension": p.Dimension,
	}
	if parentID != "" {
		payload["parent_id"] = parentID
	}
	if p.Weight != 0 {
		payload["weight"] = float64(p.Weight)
	}
	if len(p.OwnerIDs) > 0 {
		owners := make([]any, len(p.OwnerIDs))
		for i, o := range p.OwnerIDs {
			owners[i] = o
		}
		payload["owner_ids"] = owners
	}
	for k, v := range p.Payload {
		payload[k] = v
	}

	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(id),
		Payload: qdrant.NewValueMap(payload),
		Vectors: pointVectors(emb, s.cfg.VectorSize),
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		log.Warn("qdrant: upsert failed",
			"layer", p.Layer,
			"parent_id", parentID,
			"error", err,
		)
		return "", false
	}

	return id, true
}

// pointVectors returns the vectors to upsert for a point. The collection
// is created with fixed-size VectorParams, so a point may never omit its
// vector — entities without an embedding (resource points, blocks whose
// embedding failed) store a zero vector of the collection's size.
func pointVectors(emb *embedding.Embedding, size uint64) *qdrant.Vectors {
	if emb.HasVector() {
		return qdrant.NewVectors(emb.Vector...)
	}
	return qdrant.NewVectors(make([]float32, size)...)
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// Package pipeline orchestrates content ingestion: it drives a parser to
// produce the Resource → Block → Fragment hierarchy, embeds each block
// and context-blends each fragment's embedding with its block's, and
// persists the result to the point store plus the flat record store
// and/or the doublet graph store.
package pipeline

import (
	"context"
	"crypto/sha256"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/catena-ai/catena-go/internal/cache"
	"github.com/catena-ai/catena-go/internal/content"
	"github.com/catena-ai/catena-go/internal/doublet"
	"github.com/catena-ai/catena-go/internal/embedding"
	"github.com/catena-ai/catena-go/internal/logging"
	"github.com/catena-ai/catena-go/internal/parser"
	"github.com/catena-ai/catena-go/internal/pointstore"
	"github.com/catena-ai/catena-go/internal/store"
)

// Hierarchy layer names used for point records.
const (
	layerResource = "resource"
	layerBlock    = "block"
	layerFragment = "fragment"
)

// Config holds the configuration and optional collaborators for a
// Pipeline.
type Config struct {
	// MaxBlockSize is the soft bound on a block's serialized size in
	// characters. Defaults to content.DefaultMaxBlockSize if zero.
	MaxBlockSize int

	// EmbeddingTTL is how long block embeddings stay live in the cache.
	// Defaults to 10 minutes if zero.
	EmbeddingTTL time.Duration

	// RefreshAhead serves stale cached block embeddings while refreshing
	// them in the background instead of blocking on recomputation.
	RefreshAhead bool

	// Records optionally persists the hierarchy as flat relational rows.
	Records store.RecordStore

	// Graph optionally persists the hierarchy as doublet edges.
	Graph *doublet.HierarchyStore

	// Cache fronts block embedding computation. A private cache is
	// created if nil.
	Cache *cache.Cache[string, embedding.Embedding]

	// Registerer receives the pipeline's Prometheus metrics. Metrics are
	// disabled if nil.
	Registerer prometheusRegisterer
}

// IngestResult reports what one Ingest call persisted.
type IngestResult struct {
	// ResourcePointID is the resource's point identifier.
	ResourcePointID string
	// ParserType is the content type tag of the parser used.
	ParserType string
	// BlockPointIDs are the persisted blocks' point identifiers in order.
	BlockPointIDs []string
	// FragmentPointIDs are the persisted fragments' point identifiers in
	// flattened order.
	FragmentPointIDs []string
}

// Pipeline drives the parse → embed → blend → persist flow. Safe for
// concurrent use; each Ingest call is independent.
type Pipeline struct {
	// registry selects the parser by declared or detected content type.
	registry *parser.Registry
	// backend converts text into embeddings.
	backend embedding.Backend
	// points persists embedded points.
	points pointstore.Store
	// cfg holds the resolved pipeline configuration.
	cfg *Config
	// blockCache memoizes block embeddings keyed by content hash.
	blockCache *cache.Cache[string, embedding.Embedding]
	// metrics holds the pipeline's Prometheus instruments (nil when
	// metrics are disabled).
	metrics *pipelineMetrics
}

// New constructs a Pipeline from the provided dependencies and config.
func New(registry *parser.Registry, backend embedding.Backend, points pointstore.Store, cfg *Config) (*Pipeline, error) {
	if registry == nil {
		return nil, fmt.Errorf("pipeline: parser registry must not be nil")
	}
	if backend == nil {
		return nil, fmt.Errorf("pipeline: embedding backend must not be nil")
	}
	if points == nil {
		return nil, fmt.Errorf("pipeline: point store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.MaxBlockSize <= 0 {
		cfg.MaxBlockSize = content.DefaultMaxBlockSize
	}
	if cfg.EmbeddingTTL <= 0 {
		cfg.EmbeddingTTL = 10 * time.Minute
	}

	blockCache := cfg.Cache
	if blockCache == nil {
		blockCache = cache.New[string, embedding.Embedding]()
	}

	p := &Pipeline{
		registry:   registry,
		backend:    backend,
		points:     points,
		cfg:        cfg,
		blockCache: blockCache,
	}
	if cfg.Registerer != nil {
		p.metrics = newPipelineMetrics(cfg.Registerer)
	}
	return p, nil
}

// Ingest runs the full flow for one payload. Validation failures are
// returned before any state is created. Per-entity persistence failures
// are logged and skipped — the remaining siblings still proceed. Any
// panic below the boundary is recovered into a no-result outcome.
func (p *Pipeline) Ingest(ctx context.Context, resourceID, contentType, payload string) (result *IngestResult, err error) {
	log := logging.FromContext(ctx)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline: ingest panicked", "resource_id", resourceID, "panic", r)
			result = nil
			err = fmt.Errorf("pipeline: ingest of %s failed", resourceID)
		}
		if p.metrics != nil {
			outcome := "ok"
			if err != nil {
				outcome = "error"
			}
			p.metrics.resourcesTotal.WithLabelValues(outcome).Inc()
			p.metrics.ingestDuration.Observe(time.Since(start).Seconds())
		}
	}()

	if resourceID == "" {
		return nil, fmt.Errorf("pipeline: resource identifier must not be empty")
	}
	if payload == "" {
		return nil, fmt.Errorf("pipeline: payload must not be empty")
	}

	prs, err := p.selectParser(contentType, payload)
	if err != nil {
		return nil, err
	}

	parsed, err := prs.Parse(payload, p.cfg.MaxBlockSize)
	if err != nil {
		return nil, fmt.Errorf("pipeline: parse %s: %w", resourceID, err)
	}

	resourcePointID, ok := p.points.AddPoint(ctx, "", pointstore.Point{
		Layer: layerResource,
		Payload: map[string]any{
			"resource_id":     resourceID,
			"parser_type":     parsed.ResourceType,
			"total_blocks":    len(parsed.Blocks),
			"total_fragments": parsed.TotalFragments(),
		},
	}, nil)
	if !ok {
		return nil, fmt.Errorf("pipeline: could not persist resource %s", resourceID)
	}

	result = &IngestResult{
		ResourcePointID: resourcePointID,
		ParserType:      parsed.ResourceType,
	}
	record := store.ResourceRecord{
		ID:             resourcePointID,
		ParserType:     parsed.ResourceType,
		TotalBlocks:    len(parsed.Blocks),
		TotalFragments: parsed.TotalFragments(),
	}

	for _, block := range parsed.Blocks {
		row, ok := p.ingestBlock(ctx, resourcePointID, block, result)
		if !ok {
			continue
		}
		record.Blocks = append(record.Blocks, row)
	}

	p.persistHierarchy(ctx, record)
	return result, nil
}

// selectParser resolves the parser by explicit type tag or by
// auto-detection when the tag is empty.
func (p *Pipeline) selectParser(contentType, payload string) (parser.Parser, error) {
	if contentType != "" {
		return p.registry.Get(contentType)
	}
	return p.registry.Detect(payload)
}

// ingestBlock embeds and persists one block and its fragments. The block
// is skipped entirely — fragments included — when its point cannot be
// persisted; the caller continues with sibling blocks.
func (p *Pipeline) ingestBlock(ctx context.Context, resourcePointID string, block content.Block, result *IngestResult) (store.BlockRow, bool) {
	log := logging.FromContext(ctx)

	blockEmb := p.blockEmbedding(ctx, block.Content)

	blockPointID, ok := p.points.AddPoint(ctx, resourcePointID, pointstore.Point{
		Layer:     layerBlock,
		Dimension: block.Order,
		OwnerIDs:  []string{resourcePointID},
		Payload: map[string]any{
			"content":        block.Content,
			"fragment_count": len(block.Fragments),
			"size":           len(block.Content),
		},
	}, &blockEmb)
	if !ok {
		log.Warn("pipeline: block skipped", "resource_point", resourcePointID, "block_order", block.Order)
		if p.metrics != nil {
			p.metrics.blocksTotal.WithLabelValues("skipped").Inc()
		}
		return store.BlockRow{}, false
	}
	result.BlockPointIDs = append(result.BlockPointIDs, blockPointID)
	if p.metrics != nil {
		p.metrics.blocksTotal.WithLabelValues("ok").Inc()
	}

	row := store.BlockRow{
		ID:            blockPointID,
		Order:         block.Order,
		Size:          len(block.Content),
		FragmentCount: len(block.Fragments),
	}
	row.Fragments = p.ingestFragments(ctx, resourcePointID, blockPointID, block, blockEmb, result)
	return row, true
}

// ingestFragments batch-embeds a block's fragments, blends each with the
// block embedding, and persists them. A batch contract violation aborts
// this block's fragments only; a single fragment's persistence failure
// skips just that fragment.
func (p *Pipeline) ingestFragments(ctx context.Context, resourcePointID, blockPointID string, block content.Block, blockEmb embedding.Embedding, result *IngestResult) []store.FragmentRow {
	log := logging.FromContext(ctx)
	if len(block.Fragments) == 0 {
		return nil
	}

	texts := make([]string, len(block.Fragments))
	labels := make([]string, len(block.Fragments))
	for i, f := range block.Fragments {
		texts[i] = f.Content
		labels[i] = f.Type
	}

	embs, err := p.backend.CreateEmbeddings(ctx, layerFragment, texts, labels, true)
	if err != nil {
		log.Warn("pipeline: fragment batch aborted",
			"block_point", blockPointID,
			"fragments", len(texts),
			"error", err,
		)
		if p.metrics != nil {
			p.metrics.fragmentsTotal.WithLabelValues("batch_aborted").Add(float64(len(texts)))
		}
		return nil
	}

	var rows []store.FragmentRow
	for i, frag := range block.Fragments {
		blended := embedding.Combine(blockEmb, embs[i])

		payload := map[string]any{
			"content":       frag.Content,
			"fragment_type": frag.Type,
		}
		if frag.ParentKey != "" {
			payload["parent_key"] = frag.ParentKey
		}

		fragmentPointID, ok := p.points.AddPoint(ctx, blockPointID, pointstore.Point{
			Layer:     layerFragment,
			Dimension: frag.Order,
			OwnerIDs:  []string{resourcePointID, blockPointID},
			Payload:   payload,
		}, &blended)
		if !ok {
			log.Warn("pipeline: fragment skipped", "block_point", blockPointID, "fragment_order", frag.Order)
			if p.metrics != nil {
				p.metrics.fragmentsTotal.WithLabelValues("skipped").Inc()
			}
			continue
		}
		result.FragmentPointIDs = append(result.FragmentPointIDs, fragmentPointID)
		if p.metrics != nil {
			p.metrics.fragmentsTotal.WithLabelValues("ok").Inc()
		}
		rows = append(rows, store.FragmentRow{ID: fragmentPointID, Order: frag.Order, Type: frag.Type})
	}
	return rows
}

// blockEmbedding computes (or recalls) the block's embedding through the
// cache, keyed by a content hash. An embedding failure degrades to an
// absent embedding — Combine then passes fragment vectors through
// unchanged — rather than aborting the block.
func (p *Pipeline) blockEmbedding(ctx context.Context, blockContent string) embedding.Embedding {
	log := logging.FromContext(ctx)

	mode := cache.Synchronous
	if p.cfg.RefreshAhead {
		mode = cache.RefreshAhead
	}

	key := fmt.Sprintf("%x", sha256.Sum256([]byte(blockContent)))
	emb, err := p.blockCache.Put(key, p.cfg.EmbeddingTTL, mode, func() (embedding.Embedding, error) {
		if p.metrics != nil {
			p.metrics.embedCalls.Inc()
		}
		e, err := p.backend.CreateEmbedding(ctx, layerBlock, blockContent, "", true)
		if err != nil {
			return embedding.Embedding{}, err
		}
		return *e, nil
	})
	if err != nil {
		log.Warn("pipeline: block embedding failed", "error", err)
		return embedding.Embedding{}
	}
	return emb
}

// persistHierarchy writes the hierarchy to the configured flat record
// store and/or doublet graph store. Each persistence path fails
// independently: an error in one is logged and does not undo the other.
func (p *Pipeline) persistHierarchy(ctx context.Context, record store.ResourceRecord) {
	log := logging.FromContext(ctx)

	if p.cfg.Records != nil {
		if err := p.cfg.Records.SaveResource(ctx, record); err != nil {
			log.Warn("pipeline: flat record persistence failed", "resource_point", record.ID, "error", err)
		}
	}

	if p.cfg.Graph != nil {
		blockIDs := make([]uint64, len(record.Blocks))
		fragmentIDs := make([][]uint64, len(record.Blocks))
		for i, b := range record.Blocks {
			blockIDs[i] = numericID(b.ID)
			ids := make([]uint64, len(b.Fragments))
			for j, f := range b.Fragments {
				ids[j] = numericID(f.ID)
			}
			fragmentIDs[i] = ids
		}
		if _, err := p.cfg.Graph.StoreResourceHierarchy(numericID(record.ID), blockIDs, fragmentIDs); err != nil {
			log.Warn("pipeline: graph persistence failed", "resource_point", record.ID, "error", err)
		}
	}
}

// Hierarchy reconstructs a stored resource tree from the flat record
// store. An unknown resource returns (nil, nil).
func (p *Pipeline) Hierarchy(ctx context.Context, resourcePointID string) (*store.Hierarchy, error) {
	if p.cfg.Records == nil {
		return nil, fmt.Errorf("pipeline: no record store configured")
	}
	return p.cfg.Records.Hierarchy(ctx, resourcePointID)
}

// GraphHierarchy reconstructs a stored resource tree from the doublet
// graph store, keyed by the same derived numeric identifier the pipeline
// stored it under.
func (p *Pipeline) GraphHierarchy(resourcePointID string) (*doublet.Hierarchy, bool) {
	if p.cfg.Graph == nil {
		return nil, false
	}
	return p.cfg.Graph.GetResourceHierarchy(numericID(resourcePointID))
}

// NumericID exposes the point-id → graph-id derivation for callers that
// query the graph store directly.
func NumericID(pointID string) uint64 {
	return numericID(pointID)
}

// numericID derives the stable uint64 the graph store keys an entity
// under from its string point identifier. FNV-1a keeps the derivation
// dependency-free; collisions are theoretically possible but negligible
// at this store's scale.
func numericID(pointID string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(pointID))
	return h.Sum64()
}

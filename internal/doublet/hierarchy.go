package doublet

import "fmt"

// Well-known type marker identifiers. Each marker is a self-referencing
// edge created once at store initialisation, so the markers always occupy
// the first four indexes of a hierarchy store.
const (
	// MarkerResource tags resource entities.
	MarkerResource = uint64(1)
	// MarkerBlock tags block entities.
	MarkerBlock = uint64(2)
	// MarkerFragment tags fragment entities.
	MarkerFragment = uint64(3)
	// MarkerContains tags containment relation edges.
	MarkerContains = uint64(4)
)

// BlockRecord is one block and its fragments as reconstructed from the
// edge graph.
type BlockRecord struct {
	// BlockID is the block's raw numeric identifier.
	BlockID uint64
	// FragmentIDs are the raw identifiers of the block's fragments.
	FragmentIDs []uint64
}

// Hierarchy is a reconstructed Resource → Block → Fragment tree. Block
// and fragment order is not guaranteed — callers needing order keep it in
// the flat store.
type Hierarchy struct {
	// ResourceID is the resource's raw numeric identifier.
	ResourceID uint64
	// Blocks are the resource's blocks.
	Blocks []BlockRecord
}

// HierarchyStore persists entity hierarchies as chained doublets: a
// "value edge" (marker, rawID) plus a "node edge" (marker, valueEdge) per
// entity, and a containment edge (parentNode, childNode) tagged by a
// relation edge (containmentEdge, MarkerContains) per parent→child link.
// Every logical value costs 2–4 physical edges; in exchange the substrate
// is uniform and type-erased, so no schema migration is ever needed.
//
// Building a hierarchy is not atomic: a crash mid-sequence leaves a
// partially linked tree and no rollback is provided. Callers needing
// atomicity serialise StoreResourceHierarchy behind their own lock.
type HierarchyStore struct {
	store *Store
}

// NewHierarchyStore wraps a Store and ensures the four type markers
// exist. Marker creation is idempotent — it is skipped when the store
// already holds at least four edges — and the check and the creations
// run in one exclusive section, so two initialising instances cannot
// race.
func NewHierarchyStore(store *Store) (*HierarchyStore, error) {
	h := &HierarchyStore{store: store}
	if err := h.ensureMarkers(); err != nil {
		return nil, err
	}
	return h, nil
}

// Edges returns the underlying edge store, for direct queries and
// lifecycle management.
func (h *HierarchyStore) Edges() *Store { return h.store }

// ensureMarkers creates the four self-referencing marker edges once,
// atomically with the emptiness check.
func (h *HierarchyStore) ensureMarkers() error {
	return h.store.Seed(MarkerResource, MarkerBlock, MarkerFragment, MarkerContains)
}

// createNode stores one typed entity as a value edge plus a node edge and
// returns the node edge's identifier — the externally visible handle.
func (h *HierarchyStore) createNode(marker, rawID uint64) (uint64, error) {
	valueEdge, err := h.store.Create(marker, rawID)
	if err != nil {
		return 0, fmt.Errorf("doublet: create value edge: %w", err)
	}
	nodeEdge, err := h.store.Create(marker, valueEdge)
	if err != nil {
		return 0, fmt.Errorf("doublet: create node edge: %w", err)
	}
	return nodeEdge, nil
}

// link records a parent→child containment: an edge between the two nodes
// plus a relation edge tagging it as containment.
func (h *HierarchyStore) link(parentNode, childNode uint64) error {
	edge, err := h.store.Create(parentNode, childNode)
	if err != nil {
		return fmt.Errorf("doublet: create containment edge: %w", err)
	}
	if _, err := h.store.Create(edge, MarkerContains); err != nil {
		return fmt.Errorf("doublet: create relation edge: %w", err)
	}
	return nil
}

// StoreResourceHierarchy persists a resource, its blocks, and each
// block's fragments. fragmentIDsByBlock must be parallel to blockIDs.
// Returns the resource's node edge identifier. A resource with zero
// blocks stores correctly.
func (h *HierarchyStore) StoreResourceHierarchy(resourceID uint64, blockIDs []uint64, fragmentIDsByBlock [][]uint64) (uint64, error) {
	if len(fragmentIDsByBlock) != len(blockIDs) {
		return 0, fmt.Errorf("doublet: %d blocks but %d fragment groups", len(blockIDs), len(fragmentIDsByBlock))
	}

	resourceNode, err := h.createNode(MarkerResource, resourceID)
	if err != nil {
		return 0, err
	}

	for i, blockID := range blockIDs {
		blockNode, err := h.createNode(MarkerBlock, blockID)
		if err != nil {
			return 0, err
		}
		if err := h.link(resourceNode, blockNode); err != nil {
			return 0, err
		}
		for _, fragmentID := range fragmentIDsByBlock[i] {
			fragmentNode, err := h.createNode(MarkerFragment, fragmentID)
			if err != nil {
				return 0, err
			}
			if err := h.link(blockNode, fragmentNode); err != nil {
				return 0, err
			}
		}
	}

	return resourceNode, nil
}

// GetResourceHierarchy reconstructs the hierarchy stored for resourceID.
// The second return value is false when no node for the resource exists.
// A broken chain along any branch omits that branch rather than failing
// the whole reconstruction.
func (h *HierarchyStore) GetResourceHierarchy(resourceID uint64) (*Hierarchy, bool) {
	resourceNode, ok := h.findNode(MarkerResource, resourceID)
	if !ok {
		return nil, false
	}

	result := &Hierarchy{ResourceID: resourceID, Blocks: []BlockRecord{}}
	for _, blockNode := range h.children(resourceNode) {
		blockID, ok := h.rawID(MarkerBlock, blockNode)
		if !ok {
			continue
		}
		record := BlockRecord{BlockID: blockID, FragmentIDs: []uint64{}}
		for _, fragmentNode := range h.children(blockNode) {
			if fragmentID, ok := h.rawID(MarkerFragment, fragmentNode); ok {
				record.FragmentIDs = append(record.FragmentIDs, fragmentID)
			}
		}
		result.Blocks = append(result.Blocks, record)
	}
	return result, true
}

// findNode resolves the node edge for a raw identifier of the given kind.
// An edge (marker, rawID) may be either the value edge we want or a node
// edge whose value edge happens to share the raw identifier's number; the
// candidate counts as a value edge only when a node edge referencing it
// exists.
func (h *HierarchyStore) findNode(marker, rawID uint64) (uint64, bool) {
	for _, valueEdge := range h.store.SearchBySourceAndTarget(marker, rawID) {
		nodes := h.store.SearchBySourceAndTarget(marker, valueEdge)
		if len(nodes) > 0 {
			return nodes[0], true
		}
	}
	return 0, false
}

// children returns the child node edges linked under parentNode by a
// confirmed containment edge.
func (h *HierarchyStore) children(parentNode uint64) []uint64 {
	var out []uint64
	for _, candidate := range h.store.SearchBySource(parentNode) {
		// Only edges tagged by a (edge, Contains) relation are containment.
		if len(h.store.SearchBySourceAndTarget(candidate, MarkerContains)) == 0 {
			continue
		}
		edge, ok := h.store.Get(candidate)
		if !ok {
			continue
		}
		out = append(out, edge.Target)
	}
	return out
}

// rawID dereferences a node edge back to its raw identifier through the
// value edge. Returns false when any link in the chain is missing or the
// node's marker does not match.
func (h *HierarchyStore) rawID(marker, nodeEdge uint64) (uint64, bool) {
	node, ok := h.store.Get(nodeEdge)
	if !ok || node.Source != marker {
		return 0, false
	}
	value, ok := h.store.Get(node.Target)
	if !ok || value.Source != marker {
		return 0, false
	}
	return value.Target, true
}

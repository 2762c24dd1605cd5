package pipeline

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/catena-ai/catena-go/internal/doublet"
	"github.com/catena-ai/catena-go/internal/embedding"
	"github.com/catena-ai/catena-go/internal/parser"
	"github.com/catena-ai/catena-go/internal/pointstore"
	"github.com/catena-ai/catena-go/internal/store"
)

// stubBackend returns fixed vectors: blocks embed to the y axis and
// fragments to the x axis, so blended fragment vectors are recognisable.
type stubBackend struct {
	mu          sync.Mutex
	singleCalls int
	batchCalls  int
	failSingle  bool
	failBatch   bool
}

func (b *stubBackend) CreateEmbedding(_ context.Context, kind, text, label string, returnVector bool) (*embedding.Embedding, error) {
	b.mu.Lock()
	b.singleCalls++
	fail := b.failSingle
	b.mu.Unlock()
	if fail {
		return nil, fmt.Errorf("stub: single embedding refused")
	}
	emb := &embedding.Embedding{ID: kind + ":" + text, Label: label}
	if returnVector {
		emb.Vector = []float32{0, 1, 0}
	}
	return emb, nil
}

func (b *stubBackend) CreateEmbeddings(_ context.Context, kind string, texts, labels []string, returnVector bool) ([]embedding.Embedding, error) {
	b.mu.Lock()
	b.batchCalls++
	fail := b.failBatch
	b.mu.Unlock()
	if fail {
		return nil, fmt.Errorf("stub: batch refused")
	}
	out := make([]embedding.Embedding, len(texts))
	for i, text := range texts {
		out[i] = embedding.Embedding{ID: kind + ":" + text, Label: labels[i]}
		if returnVector {
			out[i].Vector = []float32{1, 0, 0}
		}
	}
	return out, nil
}

func newTestPipeline(t *testing.T, cfg *Config) (*Pipeline, *stubBackend, *pointstore.MemoryStore) {
	t.Helper()
	backend := &stubBackend{}
	points := pointstore.NewMemoryStore()
	p, err := New(parser.NewRegistry(), backend, points, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p, backend, points
}

func Test_Pipeline_IngestPlaintext(t *testing.T) {
	t.Parallel()

	p, backend, points := newTestPipeline(t, nil)
	payload := "First paragraph.\n\nSecond paragraph."

	result, err := p.Ingest(context.Background(), "res-1", "text", payload)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if result.ParserType != "text" {
		t.Errorf("parser type = %q, want text", result.ParserType)
	}
	if result.ResourcePointID == "" {
		t.Error("expected a resource point id")
	}
	if len(result.BlockPointIDs) != 1 {
		t.Fatalf("got %d block points, want 1", len(result.BlockPointIDs))
	}
	if len(result.FragmentPointIDs) != 2 {
		t.Fatalf("got %d fragment points, want 2", len(result.FragmentPointIDs))
	}
	// resource + 1 block + 2 fragments
	if points.Len() != 4 {
		t.Errorf("store holds %d points, want 4", points.Len())
	}
	if backend.singleCalls != 1 || backend.batchCalls != 1 {
		t.Errorf("backend calls = %d single / %d batch, want 1 / 1", backend.singleCalls, backend.batchCalls)
	}

	sp, ok := points.Get(result.FragmentPointIDs[0])
	if !ok {
		t.Fatal("fragment point missing from store")
	}
	if sp.ParentID != result.BlockPointIDs[0] {
		t.Errorf("fragment parent = %q, want %q", sp.ParentID, result.BlockPointIDs[0])
	}
	// Blended vector: normalize([1,0,0] + [0,1,0]) = (1/√2, 1/√2, 0).
	want := float32(1 / math.Sqrt(2))
	if len(sp.Vector) != 3 || abs(sp.Vector[0]-want) > 1e-5 || abs(sp.Vector[1]-want) > 1e-5 {
		t.Errorf("blended vector = %v, want [%v %v 0]", sp.Vector, want, want)
	}
}

func Test_Pipeline_AutoDetectsParser(t *testing.T) {
	t.Parallel()

	p, _, _ := newTestPipeline(t, nil)
	result, err := p.Ingest(context.Background(), "res-1", "", `{"a": 1}`)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if result.ParserType != "json" {
		t.Errorf("detected parser = %q, want json", result.ParserType)
	}
}

func Test_Pipeline_ValidationErrors(t *testing.T) {
	t.Parallel()

	p, _, points := newTestPipeline(t, nil)
	ctx := context.Background()

	cases := []struct {
		name        string
		resourceID  string
		contentType string
		payload     string
	}{
		{"empty resource id", "", "text", "body"},
		{"empty payload", "res-1", "text", ""},
		{"unknown content type", "res-1", "xml", "body"},
	}
	for _, tc := range cases {
		if _, err := p.Ingest(ctx, tc.resourceID, tc.contentType, tc.payload); err == nil {
			t.Errorf("%s: expected an error", tc.name)
		}
	}
	if points.Len() != 0 {
		t.Errorf("validation failures persisted %d points, want 0", points.Len())
	}
}

func Test_Pipeline_ResourceFailureAborts(t *testing.T) {
	t.Parallel()

	p, _, points := newTestPipeline(t, nil)
	points.FailLayer = "resource"

	result, err := p.Ingest(context.Background(), "res-1", "text", "body")
	if err == nil {
		t.Fatal("expected an error when the resource point cannot be persisted")
	}
	if result != nil {
		t.Errorf("result = %+v, want nil", result)
	}
}

func Test_Pipeline_BlockFailureSkipsBlockAndFragments(t *testing.T) {
	t.Parallel()

	p, backend, points := newTestPipeline(t, nil)
	points.FailLayer = "block"

	result, err := p.Ingest(context.Background(), "res-1", "text", "one\n\ntwo")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(result.BlockPointIDs) != 0 || len(result.FragmentPointIDs) != 0 {
		t.Errorf("got %d blocks / %d fragments, want 0 / 0",
			len(result.BlockPointIDs), len(result.FragmentPointIDs))
	}
	if backend.batchCalls != 0 {
		t.Errorf("skipped block still embedded its fragments (%d batch calls)", backend.batchCalls)
	}
}

func Test_Pipeline_FragmentBatchFailureAbortsBlockFragmentsOnly(t *testing.T) {
	t.Parallel()

	p, backend, _ := newTestPipeline(t, nil)
	backend.failBatch = true

	result, err := p.Ingest(context.Background(), "res-1", "text", "one\n\ntwo")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(result.BlockPointIDs) != 1 {
		t.Errorf("got %d block points, want 1", len(result.BlockPointIDs))
	}
	if len(result.FragmentPointIDs) != 0 {
		t.Errorf("got %d fragment points, want 0", len(result.FragmentPointIDs))
	}
}

func Test_Pipeline_BlockEmbeddingFailureDegradesToFragmentVector(t *testing.T) {
	t.Parallel()

	p, backend, points := newTestPipeline(t, nil)
	backend.failSingle = true

	result, err := p.Ingest(context.Background(), "res-1", "text", "only paragraph")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(result.FragmentPointIDs) != 1 {
		t.Fatalf("got %d fragment points, want 1", len(result.FragmentPointIDs))
	}
	sp, _ := points.Get(result.FragmentPointIDs[0])
	if len(sp.Vector) != 3 || sp.Vector[0] != 1 {
		t.Errorf("fragment vector = %v, want the raw fragment axis [1 0 0]", sp.Vector)
	}
}

func Test_Pipeline_BlockEmbeddingsAreCached(t *testing.T) {
	t.Parallel()

	p, backend, _ := newTestPipeline(t, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := p.Ingest(ctx, fmt.Sprintf("res-%d", i), "text", "same block content"); err != nil {
			t.Fatalf("Ingest %d: %v", i, err)
		}
	}
	if backend.singleCalls != 1 {
		t.Errorf("backend embedded the same block %d times, want 1", backend.singleCalls)
	}
}

func Test_Pipeline_RecordsRoundTrip(t *testing.T) {
	t.Parallel()

	records, err := store.Open(filepath.Join(t.TempDir(), "hierarchy.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { records.Close() })

	backend := &stubBackend{}
	p, err := New(parser.NewRegistry(), backend, pointstore.NewMemoryStore(), &Config{Records: records})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	result, err := p.Ingest(ctx, "res-1", "text", "one\n\ntwo")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	h, err := p.Hierarchy(ctx, result.ResourcePointID)
	if err != nil {
		t.Fatalf("Hierarchy: %v", err)
	}
	if h == nil {
		t.Fatal("hierarchy not found after ingest")
	}
	if len(h.Blocks) != 1 {
		t.Fatalf("got %d blocks, want 1", len(h.Blocks))
	}
	if h.Blocks[0].BlockID != result.BlockPointIDs[0] {
		t.Errorf("block id = %q, want %q", h.Blocks[0].BlockID, result.BlockPointIDs[0])
	}
	if len(h.Blocks[0].FragmentIDs) != 2 {
		t.Errorf("got %d fragment ids, want 2", len(h.Blocks[0].FragmentIDs))
	}
}

func Test_Pipeline_GraphRoundTrip(t *testing.T) {
	t.Parallel()

	edges, err := doublet.Open(doublet.NewMemoryRegion())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	graph, err := doublet.NewHierarchyStore(edges)
	if err != nil {
		t.Fatalf("NewHierarchyStore: %v", err)
	}

	backend := &stubBackend{}
	p, err := New(parser.NewRegistry(), backend, pointstore.NewMemoryStore(), &Config{Graph: graph})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := p.Ingest(context.Background(), "res-1", "text", "one\n\ntwo")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	h, ok := p.GraphHierarchy(result.ResourcePointID)
	if !ok {
		t.Fatal("graph hierarchy not found after ingest")
	}
	if h.ResourceID != NumericID(result.ResourcePointID) {
		t.Errorf("resource id = %d, want %d", h.ResourceID, NumericID(result.ResourcePointID))
	}
	if len(h.Blocks) != 1 {
		t.Fatalf("got %d blocks, want 1", len(h.Blocks))
	}
	wantFragments := map[uint64]bool{}
	for _, id := range result.FragmentPointIDs {
		wantFragments[NumericID(id)] = true
	}
	for _, id := range h.Blocks[0].FragmentIDs {
		if !wantFragments[id] {
			t.Errorf("unexpected fragment id %d in graph walk", id)
		}
	}
}

func Test_Pipeline_OversizedPayloadStaysLossFree(t *testing.T) {
	t.Parallel()

	p, _, _ := newTestPipeline(t, &Config{MaxBlockSize: 50})

	paragraphs := make([]string, 6)
	for i := range paragraphs {
		paragraphs[i] = fmt.Sprintf("paragraph number %d with some padding text", i)
	}
	result, err := p.Ingest(context.Background(), "res-1", "text", strings.Join(paragraphs, "\n\n"))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(result.BlockPointIDs) != len(paragraphs) {
		t.Errorf("got %d blocks for %d oversized paragraphs, want one each",
			len(result.BlockPointIDs), len(paragraphs))
	}
	if len(result.FragmentPointIDs) != len(paragraphs) {
		t.Errorf("got %d fragments, want %d", len(result.FragmentPointIDs), len(paragraphs))
	}
}

func abs(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}

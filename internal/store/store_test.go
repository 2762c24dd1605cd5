package store

import (
	"context"
	"testing"
)

// openTestStore opens an in-memory SQLiteStore for use in tests.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// sampleRecord builds a two-block record for round-trip tests.
func sampleRecord() ResourceRecord {
	return ResourceRecord{
		ID:             "res-1",
		ParserType:     "text",
		TotalBlocks:    2,
		TotalFragments: 3,
		Blocks: []BlockRow{
			{
				ID: "blk-1", Order: 0, Size: 90, FragmentCount: 2,
				Fragments: []FragmentRow{
					{ID: "frg-1", Order: 0, Type: "paragraph"},
					{ID: "frg-2", Order: 1, Type: "paragraph"},
				},
			},
			{
				ID: "blk-2", Order: 1, Size: 45, FragmentCount: 1,
				Fragments: []FragmentRow{
					{ID: "frg-3", Order: 2, Type: "paragraph"},
				},
			},
		},
	}
}

func Test_Store_SaveAndHierarchy(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SaveResource(ctx, sampleRecord()); err != nil {
		t.Fatalf("save: %v", err)
	}

	h, err := s.Hierarchy(ctx, "res-1")
	if err != nil {
		t.Fatalf("hierarchy: %v", err)
	}
	if h == nil {
		t.Fatalf("hierarchy: want record, got nil")
	}
	if h.ResourceID != "res-1" {
		t.Errorf("resource id: want res-1, got %s", h.ResourceID)
	}
	if len(h.Blocks) != 2 {
		t.Fatalf("want 2 blocks, got %d", len(h.Blocks))
	}
	if h.Blocks[0].BlockID != "blk-1" || h.Blocks[1].BlockID != "blk-2" {
		t.Errorf("block order not preserved: %+v", h.Blocks)
	}
	if got := h.Blocks[0].FragmentIDs; len(got) != 2 || got[0] != "frg-1" || got[1] != "frg-2" {
		t.Errorf("block 1 fragments: got %v", got)
	}
	if got := h.Blocks[1].FragmentIDs; len(got) != 1 || got[0] != "frg-3" {
		t.Errorf("block 2 fragments: got %v", got)
	}
}

func Test_Store_HierarchyUnknownResource(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	h, err := s.Hierarchy(context.Background(), "missing")
	if err != nil {
		t.Fatalf("hierarchy: %v", err)
	}
	if h != nil {
		t.Errorf("want nil for unknown resource, got %+v", h)
	}
}

func Test_Store_ZeroBlockResource(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	rec := ResourceRecord{ID: "empty", ParserType: "text"}
	if err := s.SaveResource(ctx, rec); err != nil {
		t.Fatalf("save: %v", err)
	}

	h, err := s.Hierarchy(ctx, "empty")
	if err != nil {
		t.Fatalf("hierarchy: %v", err)
	}
	if h == nil || len(h.Blocks) != 0 {
		t.Errorf("want empty blocks, got %+v", h)
	}
}

func Test_Store_DuplicateResourceRejected(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	rec := ResourceRecord{ID: "dup", ParserType: "text"}
	if err := s.SaveResource(ctx, rec); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := s.SaveResource(ctx, rec); err == nil {
		t.Errorf("want error on duplicate resource id")
	}
}

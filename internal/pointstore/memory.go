package pointstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/catena-ai/catena-go/internal/embedding"
)

// MemoryStore is an in-process Store used in tests and ephemeral runs.
// Points are held in a map keyed by their generated identifier.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int
	points map[string]StoredPoint

	// FailLayer, when non-empty, makes AddPoint report absence for points
	// on that layer. Lets tests exercise the skip-and-continue paths.
	FailLayer string
}

// StoredPoint is one point as retained by the MemoryStore.
type StoredPoint struct {
	ID       string
	ParentID string
	Point    Point
	Vector   []float32
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{points: make(map[string]StoredPoint)}
}

// AddPoint stores the point under a sequential identifier.
func (s *MemoryStore) AddPoint(_ context.Context, parentID string, p Point, emb *embedding.Embedding) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailLayer != "" && p.Layer == s.FailLayer {
		return "", false
	}

	s.nextID++
	id := fmt.Sprintf("point-%d", s.nextID)
	sp := StoredPoint{ID: id, ParentID: parentID, Point: p}
	if emb.HasVector() {
		sp.Vector = append([]float32(nil), emb.Vector...)
	}
	s.points[id] = sp
	return id, true
}

// Get returns a stored point by identifier.
func (s *MemoryStore) Get(id string) (StoredPoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.points[id]
	return p, ok
}

// Len returns the number of stored points.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.points)
}

// Close is a no-op for memory stores.
func (s *MemoryStore) Close() error { return nil }

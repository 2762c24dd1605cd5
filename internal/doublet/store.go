package doublet

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
)

// Doublet is a stored directed edge addressed by its Index. Index 0 is
// the absent sentinel — no stored edge ever has it.
type Doublet struct {
	// Index is the edge's identifier, assigned on creation and stable
	// across updates. Monotonically non-decreasing, never reused after a
	// delete, so not contiguous once edges have been deleted.
	Index uint64
	// Source is the edge's source endpoint.
	Source uint64
	// Target is the edge's target endpoint.
	Target uint64
}

// ErrNotFound is returned by Update and Delete when the identifier is
// unused or was deleted. Get and the searches report absence through
// their return values instead.
var ErrNotFound = errors.New("doublet: not found")

// On-region layout constants. All integers are little-endian.
const (
	// storeMagic marks a region initialised by this store.
	storeMagic = uint64(0x43415445444c4254) // "CATEDLBT"
	// storeVersion is the current layout version.
	storeVersion = uint64(1)

	// headerSize is the byte length of the region header:
	// magic, version, live count, next slot.
	headerSize = 32
	// slotSize is the byte length of one edge slot:
	// source, target, flags.
	slotSize = 24

	// flagLive marks a slot holding a live edge.
	flagLive = uint64(1)
)

// Store is the doublet store. Mutations are serialised behind an
// exclusive lock; reads take a shared lock so they always observe the
// last committed state and never a torn edge.
type Store struct {
	mu     sync.RWMutex
	region Region

	// count is the number of live edges (mirrors the header).
	count uint64
	// next is the number of allocated slots (mirrors the header). The
	// next created edge gets Index next+1.
	next uint64
}

// Open initialises a Store over the given region. An empty region gets a
// fresh header; an existing one is validated against the expected magic
// and version.
func Open(region Region) (*Store, error) {
	s := &Store{region: region}

	if region.Len() < headerSize {
		if err := s.writeHeader(); err != nil {
			return nil, err
		}
		return s, nil
	}

	var hdr [headerSize]byte
	if err := region.ReadAt(hdr[:], 0); err != nil {
		return nil, fmt.Errorf("doublet: read header: %w", err)
	}
	magic := binary.LittleEndian.Uint64(hdr[0:8])
	version := binary.LittleEndian.Uint64(hdr[8:16])
	if magic != storeMagic {
		return nil, fmt.Errorf("doublet: region is not a doublet store (magic %#x)", magic)
	}
	if version != storeVersion {
		return nil, fmt.Errorf("doublet: unsupported layout version %d", version)
	}
	s.count = binary.LittleEndian.Uint64(hdr[16:24])
	s.next = binary.LittleEndian.Uint64(hdr[24:32])
	return s, nil
}

// writeHeader persists the cached header fields. Callers hold the write
// lock (or own the store exclusively during Open).
func (s *Store) writeHeader() error {
	var hdr [headerSize]byte
	binary.LittleEndian.PutUint64(hdr[0:8], storeMagic)
	binary.LittleEndian.PutUint64(hdr[8:16], storeVersion)
	binary.LittleEndian.PutUint64(hdr[16:24], s.count)
	binary.LittleEndian.PutUint64(hdr[24:32], s.next)
	if err := s.region.WriteAt(hdr[:], 0); err != nil {
		return fmt.Errorf("doublet: write header: %w", err)
	}
	return nil
}

// slotOffset returns the region offset of the slot backing index.
func slotOffset(index uint64) int64 {
	return headerSize + int64(index-1)*slotSize
}

// readSlot reads the slot backing index. Callers hold a lock and have
// checked 1 <= index <= next.
func (s *Store) readSlot(index uint64) (source, target, flags uint64, err error) {
	var buf [slotSize]byte
	if err := s.region.ReadAt(buf[:], slotOffset(index)); err != nil {
		return 0, 0, 0, fmt.Errorf("doublet: read slot %d: %w", index, err)
	}
	return binary.LittleEndian.Uint64(buf[0:8]),
		binary.LittleEndian.Uint64(buf[8:16]),
		binary.LittleEndian.Uint64(buf[16:24]),
		nil
}

// writeSlot writes the slot backing index. Callers hold the write lock.
func (s *Store) writeSlot(index, source, target, flags uint64) error {
	var buf [slotSize]byte
	binary.LittleEndian.PutUint64(buf[0:8], source)
	binary.LittleEndian.PutUint64(buf[8:16], target)
	binary.LittleEndian.PutUint64(buf[16:24], flags)
	if err := s.region.WriteAt(buf[:], slotOffset(index)); err != nil {
		return fmt.Errorf("doublet: write slot %d: %w", index, err)
	}
	return nil
}

// Create allocates a fresh identifier and stores the edge. It fails only
// when the backing region cannot grow.
func (s *Store) Create(source, target uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(source, target)
}

// createLocked allocates the next slot. Callers hold the write lock.
func (s *Store) createLocked(source, target uint64) (uint64, error) {
	index := s.next + 1
	if err := s.writeSlot(index, source, target, flagLive); err != nil {
		return 0, err
	}
	s.next = index
	s.count++
	if err := s.writeHeader(); err != nil {
		return 0, err
	}
	return index, nil
}

// Seed creates the self-referencing edge (v, v) for each value in order,
// expecting each to land at index v, unless the store already holds at
// least len(values) edges. The emptiness check and the creations share
// one exclusive section, so two seeding instances cannot interleave: the
// second observes the first's edges and returns without writing.
func (s *Store) Seed(values ...uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.count >= uint64(len(values)) {
		return nil
	}
	for _, v := range values {
		index, err := s.createLocked(v, v)
		if err != nil {
			return fmt.Errorf("doublet: seed edge %d: %w", v, err)
		}
		if index != v {
			return fmt.Errorf("doublet: seed edge %d landed at index %d — store was not empty", v, index)
		}
	}
	return nil
}

// Get returns the edge stored under index. The second return value is
// false — and the Doublet is the zero value, Index 0 — when the
// identifier is unused or was deleted. Absence is not an error.
func (s *Store) Get(index uint64) (Doublet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if index == 0 || index > s.next {
		return Doublet{}, false
	}
	source, target, flags, err := s.readSlot(index)
	if err != nil || flags&flagLive == 0 {
		return Doublet{}, false
	}
	return Doublet{Index: index, Source: source, Target: target}, true
}

// Update mutates the edge in place. The identifier is stable across
// updates. Returns ErrNotFound when the edge is absent.
func (s *Store) Update(index, source, target uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index == 0 || index > s.next {
		return 0, ErrNotFound
	}
	_, _, flags, err := s.readSlot(index)
	if err != nil {
		return 0, err
	}
	if flags&flagLive == 0 {
		return 0, ErrNotFound
	}
	if err := s.writeSlot(index, source, target, flags); err != nil {
		return 0, err
	}
	return index, nil
}

// Delete marks the edge absent. Subsequent Get calls on the identifier
// report not-found; the identifier is never reused.
func (s *Store) Delete(index uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index == 0 || index > s.next {
		return ErrNotFound
	}
	source, target, flags, err := s.readSlot(index)
	if err != nil {
		return err
	}
	if flags&flagLive == 0 {
		return ErrNotFound
	}
	if err := s.writeSlot(index, source, target, flags&^flagLive); err != nil {
		return err
	}
	s.count--
	return s.writeHeader()
}

// SearchBySource returns the identifiers of all live edges with the
// given source, in index order. A full linear scan — the store is not
// indexed.
func (s *Store) SearchBySource(source uint64) []uint64 {
	return s.scan(func(d Doublet) bool { return d.Source == source })
}

// SearchByTarget returns the identifiers of all live edges with the
// given target, in index order.
func (s *Store) SearchByTarget(target uint64) []uint64 {
	return s.scan(func(d Doublet) bool { return d.Target == target })
}

// SearchBySourceAndTarget returns the identifiers of all live edges with
// the given source and target, in index order.
func (s *Store) SearchBySourceAndTarget(source, target uint64) []uint64 {
	return s.scan(func(d Doublet) bool { return d.Source == source && d.Target == target })
}

// scan walks every allocated slot and collects live edges accepted by
// the predicate.
func (s *Store) scan(match func(Doublet) bool) []uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []uint64
	for index := uint64(1); index <= s.next; index++ {
		source, target, flags, err := s.readSlot(index)
		if err != nil || flags&flagLive == 0 {
			continue
		}
		if match(Doublet{Index: index, Source: source, Target: target}) {
			out = append(out, index)
		}
	}
	return out
}

// Count returns the number of live edges.
func (s *Store) Count() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// SizeBytes returns the byte length of the backing region, header and
// dead slots included.
func (s *Store) SizeBytes() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.region.Len()
}

// Sync flushes the backing region.
func (s *Store) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.region.Sync()
}

// Close flushes and closes the backing region.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.region.Close()
}

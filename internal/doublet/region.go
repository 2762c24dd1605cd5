// Package doublet implements a minimal append-only store of directed
// edges ("doublets") addressed by an auto-assigned identifier, plus the
// chained-edge encoding that persists Resource → Block → Fragment
// hierarchies on top of it. The store is backed by a byte-addressable
// growable region — memory-mapped on disk, or a plain byte slice for
// tests.
package doublet

import "fmt"

// Region is a byte-addressable growable storage area. Writes past the
// current length grow the region on demand; reads past it fail. A Region
// is not safe for concurrent use — the Store serialises access.
type Region interface {
	// ReadAt fills p from the bytes at off. The range must lie within
	// the current length.
	ReadAt(p []byte, off int64) error

	// WriteAt copies p to off, growing the region as needed.
	WriteAt(p []byte, off int64) error

	// Len returns the current length in bytes.
	Len() int64

	// Sync flushes buffered writes to the backing medium.
	Sync() error

	// Close releases the region. The Region must not be used afterwards.
	Close() error
}

// MemoryRegion is a Region backed by an in-process byte slice. Used for
// tests and ephemeral stores.
type MemoryRegion struct {
	buf []byte
}

// NewMemoryRegion constructs an empty MemoryRegion.
func NewMemoryRegion() *MemoryRegion {
	return &MemoryRegion{}
}

// ReadAt fills p from the bytes at off.
func (r *MemoryRegion) ReadAt(p []byte, off int64) error {
	if off < 0 || off+int64(len(p)) > int64(len(r.buf)) {
		return fmt.Errorf("doublet: read [%d, %d) out of region bounds %d", off, off+int64(len(p)), len(r.buf))
	}
	copy(p, r.buf[off:])
	return nil
}

// WriteAt copies p to off, growing the slice as needed.
func (r *MemoryRegion) WriteAt(p []byte, off int64) error {
	if off < 0 {
		return fmt.Errorf("doublet: negative write offset %d", off)
	}
	if end := off + int64(len(p)); end > int64(len(r.buf)) {
		grown := make([]byte, end)
		copy(grown, r.buf)
		r.buf = grown
	}
	copy(r.buf[off:], p)
	return nil
}

// Len returns the current length in bytes.
func (r *MemoryRegion) Len() int64 { return int64(len(r.buf)) }

// Sync is a no-op for memory regions.
func (r *MemoryRegion) Sync() error { return nil }

// Close is a no-op for memory regions.
func (r *MemoryRegion) Close() error { return nil }

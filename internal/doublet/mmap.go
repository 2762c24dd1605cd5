package doublet

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

// mmapGrowChunk is the minimum amount a file-backed region grows by.
// Growing in chunks keeps the remap frequency low during bulk writes.
const mmapGrowChunk = 64 * 1024

// MmapRegion is a Region backed by a memory-mapped file. The file is
// grown with ftruncate and remapped when a write lands past the current
// mapping. The logical length (bytes actually written) is tracked
// separately from the mapped capacity so chunked growth stays invisible
// to callers.
type MmapRegion struct {
	// file is the backing file, kept open for the lifetime of the region.
	file *os.File
	// data is the current mapping of the whole file.
	data mmap.MMap
	// length is the logical end of written data.
	length int64
}

// OpenMmapRegion opens (or creates) a file-backed region at path. An
// existing file's full size is taken as the logical length.
func OpenMmapRegion(path string) (*MmapRegion, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("doublet: open region %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("doublet: stat region %s: %w", path, err)
	}

	r := &MmapRegion{file: f, length: info.Size()}
	if info.Size() > 0 {
		data, err := mmap.Map(f, mmap.RDWR, 0)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("doublet: mmap region %s: %w", path, err)
		}
		r.data = data
	}
	return r, nil
}

// ReadAt fills p from the bytes at off.
func (r *MmapRegion) ReadAt(p []byte, off int64) error {
	if off < 0 || off+int64(len(p)) > r.length {
		return fmt.Errorf("doublet: read [%d, %d) out of region bounds %d", off, off+int64(len(p)), r.length)
	}
	copy(p, r.data[off:])
	return nil
}

// WriteAt copies p to off, growing and remapping the file as needed.
func (r *MmapRegion) WriteAt(p []byte, off int64) error {
	if off < 0 {
		return fmt.Errorf("doublet: negative write offset %d", off)
	}
	end := off + int64(len(p))
	if end > int64(len(r.data)) {
		if err := r.grow(end); err != nil {
			return err
		}
	}
	copy(r.data[off:], p)
	if end > r.length {
		r.length = end
	}
	return nil
}

// grow extends the backing file to hold at least need bytes and remaps it.
// The file grows by at least mmapGrowChunk, or doubles, whichever covers
// the request.
func (r *MmapRegion) grow(need int64) error {
	size := int64(len(r.data))
	if size < mmapGrowChunk {
		size = mmapGrowChunk
	}
	for size < need {
		size *= 2
	}

	if r.data != nil {
		if err := r.data.Unmap(); err != nil {
			return fmt.Errorf("doublet: unmap before grow: %w", err)
		}
		r.data = nil
	}
	if err := r.file.Truncate(size); err != nil {
		return fmt.Errorf("doublet: grow region to %d: %w", size, err)
	}
	data, err := mmap.Map(r.file, mmap.RDWR, 0)
	if err != nil {
		return fmt.Errorf("doublet: remap after grow: %w", err)
	}
	r.data = data
	return nil
}

// Len returns the logical length of written data.
func (r *MmapRegion) Len() int64 { return r.length }

// Sync flushes the mapping to disk.
func (r *MmapRegion) Sync() error {
	if r.data == nil {
		return nil
	}
	if err := r.data.Flush(); err != nil {
		return fmt.Errorf("doublet: sync region: %w", err)
	}
	return nil
}

// Close flushes and unmaps the region and closes the backing file.
func (r *MmapRegion) Close() error {
	if r.data != nil {
		if err := r.data.Flush(); err != nil {
			_ = r.data.Unmap()
			_ = r.file.Close()
			return fmt.Errorf("doublet: flush on close: %w", err)
		}
		if err := r.data.Unmap(); err != nil {
			_ = r.file.Close()
			return fmt.Errorf("doublet: unmap on close: %w", err)
		}
		r.data = nil
	}
	if err := r.file.Close(); err != nil {
		return fmt.Errorf("doublet: close region file: %w", err)
	}
	return nil
}

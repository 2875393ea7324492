package mmap

import "fmt"

// Region is a window into a Mapping. It does not own memory.
type Region struct {
	parent *Mapping
	offset uint64
	size   uint64
}

// Region returns a view of [offset, offset+size).
func (m *Mapping) Region(offset, size uint64) (*Region, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	end := offset + size
	if end < offset || end > uint64(len(m.data)) {
		return nil, fmt.Errorf("region [%d, +%d) of %d bytes: %w", offset, size, len(m.data), ErrOutOfBounds)
	}
	return &Region{parent: m, offset: offset, size: size}, nil
}

// Bytes returns the bytes of the region, or nil once the parent is closed.
func (r *Region) Bytes() []byte {
	if r.parent.closed.Load() {
		return nil
	}
	return r.parent.data[r.offset : r.offset+r.size]
}

// Len returns the region length.
func (r *Region) Len() uint64 { return r.size }

// Advise passes an access hint for the region only.
func (r *Region) Advise(p AccessPattern) error {
	if r.parent.closed.Load() {
		return ErrClosed
	}
	return osAdvise(r.parent.data[r.offset:r.offset+r.size], p)
}

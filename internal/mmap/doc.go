// Package mmap maps knowledge-base files read-only into memory.
//
// A Mapping owns the mapped bytes until Close. Views returned by Bytes and
// Region alias the mapping and must not be used after Close returns; the
// reader guarantees this by never handing out views that outlive it.
//
//	m, err := mmap.Open("words.lingo")
//	if err != nil { ... }
//	defer m.Close()
//
//	_ = m.Advise(mmap.AccessRandom)
//	nodes, _ := m.Region(off, size)
//
// On Unix the file is mapped with mmap(2) PROT_READ/MAP_SHARED, so any write
// through the returned slices faults. On Windows a read-only view is created
// and access advice is ignored.
package mmap

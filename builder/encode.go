package builder

import (
	"bufio"
	"bytes"
	"cmp"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"slices"

	"github.com/hupe1980/lingodb/format"
	"github.com/hupe1980/lingodb/internal/conv"
	"github.com/hupe1980/lingodb/internal/hash"
	"github.com/hupe1980/lingodb/internal/octree"
	"github.com/hupe1980/lingodb/internal/wordindex"
	"github.com/hupe1980/lingodb/model"
)

// layout is a fully encoded file: the header plus section payloads in slot
// order. Gaps between sections are zero padding.
type layout struct {
	header   *format.Header
	sections [format.NumSections][]byte
}

// sortedConnections orders connections by source so that every node's
// outgoing run is contiguous. Within a run: strength descending, then target
// ascending, then type ascending.
func (b *Builder) sortedConnections() []connection {
	out := slices.Clone(b.conns)
	slices.SortStableFunc(out, func(x, y connection) int {
		if c := cmp.Compare(x.source, y.source); c != 0 {
			return c
		}
		if c := cmp.Compare(y.strength, x.strength); c != 0 {
			return c
		}
		if c := cmp.Compare(x.target, y.target); c != 0 {
			return c
		}
		return cmp.Compare(x.typ, y.typ)
	})
	return out
}

func (b *Builder) encode(ctx context.Context) (*layout, error) {
	conns := b.sortedConnections()

	nodeBuf := make([]byte, len(b.nodes)*format.NodeRecordSize)
	connBuf := make([]byte, len(conns)*format.ConnectionRecordSize)
	points := make([]model.Coordinate, len(b.nodes))
	layers := make([]model.Layer, len(b.nodes))

	next := 0
	for i, n := range b.nodes {
		start := next
		for next < len(conns) && conns[next].source.Index() == i {
			next++
		}
		connOff, err := conv.IntToUint32("connection offset", start)
		if err != nil {
			return nil, err
		}
		connCount, err := conv.IntToUint16("connection count", next-start)
		if err != nil {
			return nil, err
		}
		rec := format.NodeRecord{
			WordOffset:        n.wordOff,
			WordLength:        n.wordLen,
			Position:          n.pos,
			Layer:             n.layer,
			MorphemeType:      n.morpheme,
			Etymology:         n.origin,
			Flags:             n.flags,
			ConnectionsOffset: connOff,
			ConnectionsCount:  connCount,
		}
		rec.Put(nodeBuf[i*format.NodeRecordSize:])
		points[i] = n.pos
		layers[i] = n.layer
	}
	for i, c := range conns {
		rec := format.ConnectionRecord{Target: c.target, Type: c.typ, Strength: c.strength}
		rec.Put(connBuf[i*format.ConnectionRecordSize:])
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrCancelled, err)
	}

	tree, st, err := octree.Build(points, b.octree)
	if err != nil {
		return nil, fmt.Errorf("build octree: %w", err)
	}
	b.logger.Debug("octree built", "cells", st.Cells, "leaves", st.Leaves, "max_depth", st.MaxDepth, "max_leaf", st.MaxLeaf)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrCancelled, err)
	}

	words, err := wordindex.Build(b.words)
	if err != nil {
		return nil, fmt.Errorf("build word index: %w", err)
	}
	layerIdx, err := format.EncodeLayerIndex(layers)
	if err != nil {
		return nil, fmt.Errorf("build layer index: %w", err)
	}

	l := &layout{header: b.header}
	l.sections[format.SectionStrings] = b.strtab
	l.sections[format.SectionNodes] = nodeBuf
	l.sections[format.SectionConnections] = connBuf
	l.sections[format.SectionOctree] = tree
	l.sections[format.SectionWordIndex] = words
	l.sections[format.SectionLayerIndex] = layerIdx

	h := l.header
	h.Flags |= format.FlagLayerIndex
	if h.NodeCount, err = conv.IntToUint32("node count", len(b.nodes)); err != nil {
		return nil, err
	}
	if h.ConnectionCount, err = conv.IntToUint32("connection count", len(conns)); err != nil {
		return nil, err
	}
	h.CapacityHint = b.capacityHint
	h.CreatedAt = uint64(b.now().UnixNano())
	h.ChecksumAlgorithm = format.ChecksumCRC64

	// Place sections. The trailer always comes last.
	off := uint64(format.HeaderSize)
	for s := range format.NumSections {
		if s == format.SectionTrailer {
			continue
		}
		off = format.Align(off)
		h.Sections[s] = format.Section{Offset: off, Size: uint64(len(l.sections[s]))}
		off += uint64(len(l.sections[s]))
	}
	off = format.Align(off)
	h.Sections[format.SectionTrailer] = format.Section{Offset: off, Size: format.TrailerSize}
	h.FileSize = off + format.TrailerSize

	h.Checksums[format.ChecksumNodes] = hash.CRC64(nodeBuf)
	h.Checksums[format.ChecksumConnections] = hash.CRC64(connBuf)
	h.Checksums[format.ChecksumStrings] = hash.CRC64(b.strtab)
	body := hash.NewCRC64()
	if _, err := l.writeBody(body); err != nil {
		return nil, err
	}
	h.Checksums[format.ChecksumFile] = body.Sum64()

	hdr := h.Encode()
	l.sections[format.SectionTrailer] = format.EncodeTrailer(hash.CRC64(hdr))
	return l, nil
}

var zeros [format.Alignment]byte

// writeBody writes every section except the trailer, padded to alignment,
// starting right after the header.
func (l *layout) writeBody(w io.Writer) (int64, error) {
	pos := uint64(format.HeaderSize)
	var n int64
	for s := range format.NumSections {
		if s == format.SectionTrailer {
			continue
		}
		sec := l.header.Sections[s]
		if pad := sec.Offset - pos; pad > 0 {
			m, err := w.Write(zeros[:pad])
			n += int64(m)
			if err != nil {
				return n, err
			}
		}
		m, err := w.Write(l.sections[s])
		n += int64(m)
		if err != nil {
			return n, err
		}
		pos = sec.End()
	}
	if pad := l.header.Sections[format.SectionTrailer].Offset - pos; pad > 0 {
		m, err := w.Write(zeros[:pad])
		n += int64(m)
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func (l *layout) writeTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriterSize(w, 1<<16)
	m, err := bw.Write(l.header.Encode())
	n := int64(m)
	if err != nil {
		return n, err
	}
	body, err := l.writeBody(bw)
	n += body
	if err != nil {
		return n, err
	}
	m, err = bw.Write(l.sections[format.SectionTrailer])
	n += int64(m)
	if err != nil {
		return n, err
	}
	return n, bw.Flush()
}

// WriteTo encodes the knowledge base into w and seals the Builder.
func (b *Builder) WriteTo(ctx context.Context, w io.Writer) (int64, error) {
	if b.sealed {
		return 0, ErrSealed
	}
	l, err := b.encode(ctx)
	if err != nil {
		return 0, err
	}
	n, err := l.writeTo(w)
	if err != nil {
		return n, fmt.Errorf("%w: %w", model.ErrIo, err)
	}
	b.sealed = true
	return n, nil
}

// Bytes encodes the knowledge base into memory and seals the Builder.
func (b *Builder) Bytes(ctx context.Context) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := b.WriteTo(ctx, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Build atomically writes the knowledge base to path and seals the Builder.
// On failure nothing is left at path and the temporary file is removed.
func (b *Builder) Build(ctx context.Context, path string) (err error) {
	if b.sealed {
		return ErrSealed
	}
	start := b.now()
	l, err := b.encode(ctx)
	if err != nil {
		return err
	}

	f, err := b.fs.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w: %w", model.ErrIo, err)
	}
	tmp := f.Name()
	closed := false
	defer func() {
		if err == nil {
			return
		}
		if !closed {
			_ = f.Close()
		}
		_ = b.fs.Remove(tmp)
	}()

	n, err := l.writeTo(f)
	if err != nil {
		return fmt.Errorf("write %s: %w: %w", tmp, model.ErrIo, err)
	}
	if err = f.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w: %w", tmp, model.ErrIo, err)
	}
	closed = true
	if err = f.Close(); err != nil {
		return fmt.Errorf("close %s: %w: %w", tmp, model.ErrIo, err)
	}
	if err = ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", model.ErrCancelled, err)
	}
	if err = b.fs.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w: %w", tmp, model.ErrIo, err)
	}
	if serr := b.fs.SyncDir(filepath.Dir(path)); serr != nil {
		b.logger.Warn("sync directory failed", "dir", filepath.Dir(path), "error", serr)
	}

	b.sealed = true
	b.logger.Info("knowledge base built",
		"path", path,
		"nodes", len(b.nodes),
		"connections", len(b.conns),
		"bytes", n,
		"duration", b.now().Sub(start),
	)
	return nil
}

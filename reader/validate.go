package reader

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/lingodb/model"
)

// validateChunk is the number of records checked per task.
const validateChunk = 1 << 14

// RecordError reports a node or connection record that violates a structural
// invariant. The kind is available via errors.Is.
type RecordError struct {
	Node       model.NodeID
	Connection int // -1 for node-level errors
	Reason     string
	Err        error
}

func (e *RecordError) Error() string {
	if e.Connection >= 0 {
		return fmt.Sprintf("node %d connection %d: %s: %v", e.Node, e.Connection, e.Reason, e.Err)
	}
	return fmt.Sprintf("node %d: %s: %v", e.Node, e.Reason, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// Validate re-runs the structural checks performed at open.
func (r *Reader) Validate(ctx context.Context) error {
	if r.closed.Load() {
		return ErrClosed
	}
	if err := r.validateRecords(ctx); err != nil {
		return err
	}
	if err := r.tree.Verify(r.nodes); err != nil {
		return err
	}
	return r.words.Verify(wordView{r})
}

// validateRecords checks every node and connection in parallel chunks.
func (r *Reader) validateRecords(ctx context.Context) error {
	n := r.nodes.Len()
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for lo := 0; lo < n; lo += validateChunk {
		hi := min(lo+validateChunk, n)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("%w: %w", model.ErrCancelled, err)
			}
			return r.validateNodes(lo, hi)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Runs are laid out back to back in node order, so every connection
	// record belongs to exactly one node.
	next := 0
	for i := range n {
		off, cnt := r.nodes.ConnectionSpan(i)
		if int(off) != next {
			return &RecordError{Node: model.NodeIDFromIndex(i), Connection: -1, Reason: fmt.Sprintf("connection run starts at %d, expected %d", off, next), Err: model.ErrInvalidFormat}
		}
		next += int(cnt)
	}
	if next != r.conns.Len() {
		return fmt.Errorf("connection runs cover %d of %d records: %w", next, r.conns.Len(), model.ErrInvalidFormat)
	}
	return nil
}

func (r *Reader) validateNodes(lo, hi int) error {
	nodeCount := uint64(r.nodes.Len())
	for i := lo; i < hi; i++ {
		id := model.NodeIDFromIndex(i)
		fail := func(reason string, kind error) error {
			return &RecordError{Node: id, Connection: -1, Reason: reason, Err: kind}
		}
		rec := r.nodes.At(i)

		if uint64(rec.WordOffset)+uint64(rec.WordLength) > uint64(len(r.strings)) {
			return fail(fmt.Sprintf("word [%d, +%d) outside string table of %d bytes", rec.WordOffset, rec.WordLength, len(r.strings)), model.ErrOutOfBounds)
		}
		if !utf8.ValidString(r.word(i)) {
			return fail("word is not valid UTF-8", model.ErrInvalidFormat)
		}
		switch {
		case !rec.Layer.Valid():
			return fail(fmt.Sprintf("layer %d", rec.Layer), model.ErrInvalidFormat)
		case !rec.MorphemeType.Valid():
			return fail(fmt.Sprintf("morpheme type %d", rec.MorphemeType), model.ErrInvalidFormat)
		case !rec.Etymology.Valid():
			return fail(fmt.Sprintf("etymology %d", rec.Etymology), model.ErrInvalidFormat)
		case !rec.Position.IsFinite():
			return fail(fmt.Sprintf("position %v", rec.Position), model.ErrInvalidFormat)
		}

		if uint64(rec.ConnectionsOffset)+uint64(rec.ConnectionsCount) > uint64(r.conns.Len()) {
			return fail(fmt.Sprintf("connections [%d, +%d) outside %d records", rec.ConnectionsOffset, rec.ConnectionsCount, r.conns.Len()), model.ErrOutOfBounds)
		}
		for j := range int(rec.ConnectionsCount) {
			k := int(rec.ConnectionsOffset) + j
			c := r.conns.At(k)
			switch {
			case !c.Target.IsValid() || uint64(c.Target) > nodeCount:
				return &RecordError{Node: id, Connection: k, Reason: fmt.Sprintf("target %d", c.Target), Err: model.ErrOutOfBounds}
			case !c.Type.Valid():
				return &RecordError{Node: id, Connection: k, Reason: fmt.Sprintf("type %d", c.Type), Err: model.ErrInvalidFormat}
			case math.IsNaN(float64(c.Strength)) || c.Strength < 0 || c.Strength > 1:
				return &RecordError{Node: id, Connection: k, Reason: fmt.Sprintf("strength %v", c.Strength), Err: model.ErrInvalidFormat}
			}
		}
	}
	return nil
}

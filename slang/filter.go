package slang

import (
	"fmt"
	"strings"

	"github.com/hupe1980/lingodb/model"
)

// Criteria selects which fields of a Filter are checked.
type Criteria uint32

const (
	ByLayer Criteria = 1 << iota
	ByMorpheme
	ByOrigin
	ByFlags

	allCriteria = ByLayer | ByMorpheme | ByOrigin | ByFlags
)

// Filter retains nodes whose selected fields match. A node matches ByFlags
// when it carries every bit of Flags. With no criteria every node matches.
type Filter struct {
	Criteria Criteria
	Layer    model.Layer
	Morpheme model.MorphemeType
	Origin   model.EtymologyOrigin
	Flags    model.NodeFlags
}

// InLayer matches nodes of layer l.
func InLayer(l model.Layer) Filter { return Filter{Criteria: ByLayer, Layer: l} }

// WithMorpheme matches nodes of morpheme type m.
func WithMorpheme(m model.MorphemeType) Filter { return Filter{Criteria: ByMorpheme, Morpheme: m} }

// FromOrigin matches nodes of etymology origin o.
func FromOrigin(o model.EtymologyOrigin) Filter { return Filter{Criteria: ByOrigin, Origin: o} }

// HasFlags matches nodes carrying every bit of f.
func HasFlags(f model.NodeFlags) Filter { return Filter{Criteria: ByFlags, Flags: f} }

// And combines two filters. Where both select the same field, o wins.
func (f Filter) And(o Filter) Filter {
	out := f
	out.Criteria |= o.Criteria
	if o.Criteria&ByLayer != 0 {
		out.Layer = o.Layer
	}
	if o.Criteria&ByMorpheme != 0 {
		out.Morpheme = o.Morpheme
	}
	if o.Criteria&ByOrigin != 0 {
		out.Origin = o.Origin
	}
	if o.Criteria&ByFlags != 0 {
		out.Flags = o.Flags
	}
	return out
}

// Match reports whether n satisfies the filter.
func (f Filter) Match(n model.Node) bool {
	switch {
	case f.Criteria&ByLayer != 0 && n.Layer != f.Layer:
		return false
	case f.Criteria&ByMorpheme != 0 && n.Morpheme != f.Morpheme:
		return false
	case f.Criteria&ByOrigin != 0 && n.Origin != f.Origin:
		return false
	case f.Criteria&ByFlags != 0 && !n.Flags.Has(f.Flags):
		return false
	}
	return true
}

func (f Filter) validate() error {
	switch {
	case f.Criteria&^allCriteria != 0:
		return fmt.Errorf("criteria %#x", uint32(f.Criteria))
	case f.Criteria&ByLayer != 0 && !f.Layer.Valid():
		return fmt.Errorf("layer %d", f.Layer)
	case f.Criteria&ByMorpheme != 0 && !f.Morpheme.Valid():
		return fmt.Errorf("morpheme type %d", f.Morpheme)
	case f.Criteria&ByOrigin != 0 && !f.Origin.Valid():
		return fmt.Errorf("origin %d", f.Origin)
	}
	return nil
}

// encode packs the filter into instruction operands:
// A = criteria, B = layer | morpheme<<8 | origin<<16, C = flags.
func (f Filter) encode() (a, b, c uint32) {
	a = uint32(f.Criteria)
	b = uint32(f.Layer) | uint32(f.Morpheme)<<8 | uint32(f.Origin)<<16
	c = uint32(f.Flags)
	return a, b, c
}

func decodeFilter(a, b, c uint32) Filter {
	return Filter{
		Criteria: Criteria(a),
		Layer:    model.Layer(b),
		Morpheme: model.MorphemeType(b >> 8),
		Origin:   model.EtymologyOrigin(b >> 16),
		Flags:    model.NodeFlags(c),
	}
}

func (f Filter) String() string {
	if f.Criteria == 0 {
		return "any"
	}
	var parts []string
	if f.Criteria&ByLayer != 0 {
		parts = append(parts, "layer="+f.Layer.String())
	}
	if f.Criteria&ByMorpheme != 0 {
		parts = append(parts, "morpheme="+f.Morpheme.String())
	}
	if f.Criteria&ByOrigin != 0 {
		parts = append(parts, "origin="+f.Origin.String())
	}
	if f.Criteria&ByFlags != 0 {
		parts = append(parts, fmt.Sprintf("flags=%#x", uint16(f.Flags)))
	}
	return strings.Join(parts, " ")
}

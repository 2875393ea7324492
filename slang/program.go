package slang

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/hupe1980/lingodb/model"
)

// ErrInvalidProgram is returned for programs that are malformed or violate
// stack discipline.
var ErrInvalidProgram = errors.New("invalid program")

// MaxStackDepth is the hard cap on the node-set stack of any program.
const MaxStackDepth = 16

// Instruction is one fixed-width SLANG instruction: a 32-bit opcode followed
// by three 32-bit operands. Unused operands are zero.
type Instruction struct {
	Op      Opcode
	A, B, C uint32
}

// InstructionSize is the encoded size of an Instruction in bytes.
const InstructionSize = 16

// Program is a validated, immutable SLANG program. It is safe for concurrent
// use by multiple executors.
type Program struct {
	code     []Instruction
	strings  []string
	costs    []float64
	cost     float64
	maxDepth int
}

// newProgram validates code and computes its static cost.
func newProgram(code []Instruction, strs []string) (*Program, error) {
	p := &Program{code: code, strings: strs}
	if err := p.analyze(); err != nil {
		return nil, err
	}
	return p, nil
}

// Len returns the number of instructions, including the trailing Halt.
func (p *Program) Len() int { return len(p.code) }

// Instructions returns a copy of the instruction stream.
func (p *Program) Instructions() []Instruction { return slices.Clone(p.code) }

// Strings returns a copy of the string table.
func (p *Program) Strings() []string { return slices.Clone(p.strings) }

// Cost returns the static cost estimate.
func (p *Program) Cost() float64 { return p.cost }

// MaxDepth returns the deepest stack the program reaches.
func (p *Program) MaxDepth() int { return p.maxDepth }

func invalid(pc int, op Opcode, format string, args ...any) error {
	return fmt.Errorf("%w: pc %d (%s): %s", ErrInvalidProgram, pc, op, fmt.Sprintf(format, args...))
}

// analyze checks operands and stack discipline and fills in the cost model.
func (p *Program) analyze() error {
	if len(p.code) == 0 {
		return fmt.Errorf("%w: empty program", ErrInvalidProgram)
	}
	for i, s := range p.strings {
		if !utf8.ValidString(s) {
			return fmt.Errorf("%w: string %d is not valid UTF-8", ErrInvalidProgram, i)
		}
	}

	p.costs = make([]float64, len(p.code))
	p.cost = 0
	p.maxDepth = 0
	sizes := make([]float64, 0, MaxStackDepth)
	last := len(p.code) - 1
	for pc, ins := range p.code {
		if !ins.Op.Valid() {
			return invalid(pc, ins.Op, "undefined opcode")
		}
		if (ins.Op == OpHalt) != (pc == last) {
			return invalid(pc, ins.Op, "program must end with a single HALT")
		}
		if err := p.checkOperands(ins); err != nil {
			return invalid(pc, ins.Op, "%v", err)
		}

		info := opTable[ins.Op]
		if len(sizes) < info.pop {
			return invalid(pc, ins.Op, "stack underflow: needs %d, has %d", info.pop, len(sizes))
		}
		in := sizes[len(sizes)-info.pop:]
		cost, out := costTable[ins.Op](ins, in, DefaultLayerRadius)
		if ins.Op == OpDup {
			sizes = append(sizes, in[0])
		} else {
			sizes = sizes[:len(sizes)-info.pop]
			if info.push == 1 {
				sizes = append(sizes, out)
			}
		}
		if len(sizes) > MaxStackDepth {
			return invalid(pc, ins.Op, "stack depth %d exceeds %d", len(sizes), MaxStackDepth)
		}
		p.maxDepth = max(p.maxDepth, len(sizes))
		p.costs[pc] = cost
		p.cost += cost
	}
	return nil
}

func validUnit(bits uint32) bool {
	v := math.Float32frombits(bits)
	return v >= 0 && v <= 1
}

func (p *Program) checkOperands(ins Instruction) error {
	unused := func(ops ...uint32) error {
		for _, v := range ops {
			if v != 0 {
				return errors.New("unused operand is not zero")
			}
		}
		return nil
	}
	switch ins.Op {
	case OpLoadNode:
		if int(ins.A) >= len(p.strings) {
			return fmt.Errorf("string %d outside table of %d", ins.A, len(p.strings))
		}
		return unused(ins.B, ins.C)
	case OpFindSimilar:
		if !validUnit(ins.A) {
			return fmt.Errorf("threshold %v outside [0, 1]", math.Float32frombits(ins.A))
		}
		return unused(ins.B, ins.C)
	case OpFollowConnection:
		if ins.A&^uint32(model.AllConnections) != 0 {
			return fmt.Errorf("connection mask %#x", ins.A)
		}
		if !validUnit(ins.B) {
			return fmt.Errorf("min strength %v outside [0, 1]", math.Float32frombits(ins.B))
		}
		return unused(ins.C)
	case OpFilter:
		if ins.B>>24 != 0 || ins.C > math.MaxUint16 {
			return errors.New("filter payload out of range")
		}
		return decodeFilter(ins.A, ins.B, ins.C).validate()
	case OpLoadLayer:
		if ins.A >= model.NumLayers {
			return fmt.Errorf("layer %d", ins.A)
		}
		return unused(ins.B, ins.C)
	case OpLoadByID, OpLimit, OpNearestK:
		return unused(ins.B, ins.C)
	default:
		return unused(ins.A, ins.B, ins.C)
	}
}

var programMagic = [4]byte{'S', 'L', 'N', 'G'}

const (
	programVersion    = 1
	programHeaderSize = 16
)

// MarshalBinary encodes the program as
// "SLNG" | version u16 | reserved u16 | instructions u32 | strings u32,
// followed by the instructions and length-prefixed strings, little endian.
func (p *Program) MarshalBinary() ([]byte, error) {
	size := programHeaderSize + len(p.code)*InstructionSize
	for _, s := range p.strings {
		size += 4 + len(s)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, programMagic[:]...)
	buf = binary.LittleEndian.AppendUint16(buf, programVersion)
	buf = binary.LittleEndian.AppendUint16(buf, 0)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(p.code)))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(p.strings)))
	for _, ins := range p.code {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(ins.Op))
		buf = binary.LittleEndian.AppendUint32(buf, ins.A)
		buf = binary.LittleEndian.AppendUint32(buf, ins.B)
		buf = binary.LittleEndian.AppendUint32(buf, ins.C)
	}
	for _, s := range p.strings {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
		buf = append(buf, s...)
	}
	return buf, nil
}

// UnmarshalBinary decodes and re-validates a program produced by
// MarshalBinary.
func (p *Program) UnmarshalBinary(data []byte) error {
	if len(data) < programHeaderSize {
		return fmt.Errorf("%w: %w: %d byte header", ErrInvalidProgram, model.ErrTruncated, len(data))
	}
	if [4]byte(data[:4]) != programMagic {
		return fmt.Errorf("%w: bad magic %q", ErrInvalidProgram, data[:4])
	}
	if v := binary.LittleEndian.Uint16(data[4:]); v != programVersion {
		return fmt.Errorf("%w: %w: program version %d", ErrInvalidProgram, model.ErrVersionMismatch, v)
	}
	nCode := uint64(binary.LittleEndian.Uint32(data[8:]))
	nStrings := uint64(binary.LittleEndian.Uint32(data[12:]))
	rest := data[programHeaderSize:]
	if nCode*InstructionSize > uint64(len(rest)) {
		return fmt.Errorf("%w: %w: %d instructions", ErrInvalidProgram, model.ErrTruncated, nCode)
	}
	if nStrings*4 > uint64(len(rest))-nCode*InstructionSize {
		return fmt.Errorf("%w: %w: %d strings", ErrInvalidProgram, model.ErrTruncated, nStrings)
	}

	code := make([]Instruction, nCode)
	for i := range code {
		b := rest[i*InstructionSize:]
		code[i] = Instruction{
			Op: Opcode(binary.LittleEndian.Uint32(b)),
			A:  binary.LittleEndian.Uint32(b[4:]),
			B:  binary.LittleEndian.Uint32(b[8:]),
			C:  binary.LittleEndian.Uint32(b[12:]),
		}
	}
	rest = rest[nCode*InstructionSize:]
	var strs []string
	if nStrings > 0 {
		strs = make([]string, nStrings)
	}
	for i := range strs {
		if len(rest) < 4 {
			return fmt.Errorf("%w: %w: string %d", ErrInvalidProgram, model.ErrTruncated, i)
		}
		n := uint64(binary.LittleEndian.Uint32(rest))
		rest = rest[4:]
		if n > uint64(len(rest)) {
			return fmt.Errorf("%w: %w: string %d", ErrInvalidProgram, model.ErrTruncated, i)
		}
		strs[i] = string(rest[:n])
		rest = rest[n:]
	}
	if len(rest) != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrInvalidProgram, len(rest))
	}

	q, err := newProgram(code, strs)
	if err != nil {
		return err
	}
	*p = *q
	return nil
}

// String renders a disassembly, one instruction per line, with the
// estimated cost of each instruction and the total.
func (p *Program) String() string {
	var sb strings.Builder
	for pc, ins := range p.code {
		fmt.Fprintf(&sb, "%04d  %-13s %-28s ; cost %.1f\n", pc, ins.Op, p.operands(ins), p.costs[pc])
	}
	fmt.Fprintf(&sb, "; total cost %.1f, max depth %d\n", p.cost, p.maxDepth)
	return sb.String()
}

func (p *Program) operands(ins Instruction) string {
	switch ins.Op {
	case OpLoadNode:
		return strconv.Quote(p.strings[ins.A])
	case OpLoadByID:
		return "#" + strconv.FormatUint(uint64(ins.A), 10)
	case OpLoadLayer:
		return model.Layer(ins.A).String()
	case OpFindSimilar:
		return "threshold=" + strconv.FormatFloat(float64(math.Float32frombits(ins.A)), 'g', -1, 32)
	case OpFollowConnection:
		var names []string
		for t := range model.ConnectionType(model.NumConnectionTypes) {
			if model.ConnectionMask(ins.A).Contains(t) {
				names = append(names, t.String())
			}
		}
		return fmt.Sprintf("%s min=%s", strings.Join(names, "|"),
			strconv.FormatFloat(float64(math.Float32frombits(ins.B)), 'g', -1, 32))
	case OpFilter:
		return decodeFilter(ins.A, ins.B, ins.C).String()
	case OpLimit, OpNearestK:
		return strconv.FormatUint(uint64(ins.A), 10)
	default:
		return ""
	}
}

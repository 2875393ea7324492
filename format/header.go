package format

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/hupe1980/lingodb/model"
)

const (
	// Magic identifies a LingoDB file.
	Magic = "LINGODB\x00"

	// VersionMajor breaks file compatibility when bumped.
	VersionMajor uint16 = 1
	// VersionMinor is forward compatible within a major version.
	VersionMinor uint16 = 0

	// HeaderSize is the fixed size of the header in bytes.
	HeaderSize = 512

	// EndianLittle is the only endian marker this package writes or accepts.
	EndianLittle uint8 = 1
)

// Checksum algorithm ids.
const (
	ChecksumNone  uint8 = 0
	ChecksumCRC64 uint8 = 1
)

// Header flags. Readers ignore bits they do not know.
const (
	FlagLayerIndex uint32 = 1 << iota
)

// Section slots in the header's section table.
const (
	SectionStrings = iota
	SectionNodes
	SectionConnections
	SectionOctree
	SectionWordIndex
	SectionLayerIndex
	SectionReserved
	SectionTrailer

	NumSections
)

var sectionNames = [NumSections]string{"strings", "nodes", "connections", "octree", "word index", "layer index", "reserved", "trailer"}

// SectionName returns a human readable name of the section slot.
func SectionName(s int) string {
	if s < 0 || s >= NumSections {
		return fmt.Sprintf("section(%d)", s)
	}
	return sectionNames[s]
}

// Checksum slots in the header.
const (
	ChecksumFile = iota
	ChecksumNodes
	ChecksumConnections
	ChecksumStrings

	NumChecksums
)

// NumIndexOffsets is the number of index offsets reserved for future indexes.
const NumIndexOffsets = 4

const (
	languageSize     = 16
	modelVersionSize = 32
)

// Field offsets inside the header.
const (
	offMagic           = 0
	offMajor           = 8
	offMinor           = 10
	offFlags           = 12
	offFileSize        = 16
	offNodeCount       = 24
	offConnectionCount = 28
	offEndian          = 32
	offChecksumAlg     = 33
	offSectionOffsets  = 36
	offSectionSizes    = offSectionOffsets + NumSections*8
	offIndexOffsets    = offSectionSizes + NumSections*8
	offChecksums       = offIndexOffsets + NumIndexOffsets*8
	offCreatedAt       = offChecksums + NumChecksums*8
	offCapacityHint    = offCreatedAt + 8
	offLanguage        = offCapacityHint + 8
	offModelVersion    = offLanguage + languageSize
	headerUsed         = offModelVersion + modelVersionSize
)

// Section locates a section inside the file.
type Section struct {
	Offset uint64
	Size   uint64
}

// End returns the offset one past the last byte of the section.
func (s Section) End() uint64 { return s.Offset + s.Size }

// Header describes the layout of a knowledge-base file.
// It is stored at the beginning of the file.
type Header struct {
	Major             uint16
	Minor             uint16
	Flags             uint32
	FileSize          uint64
	NodeCount         uint32
	ConnectionCount   uint32
	Endian            uint8
	ChecksumAlgorithm uint8
	Sections          [NumSections]Section
	IndexOffsets      [NumIndexOffsets]uint64
	Checksums         [NumChecksums]uint64
	CreatedAt         uint64 // Unix nanoseconds
	CapacityHint      uint64
	Language          [languageSize]byte
	ModelVersion      [modelVersionSize]byte
}

// NewHeader returns a header with the current version and endianness.
func NewHeader() *Header {
	return &Header{
		Major:             VersionMajor,
		Minor:             VersionMinor,
		Endian:            EndianLittle,
		ChecksumAlgorithm: ChecksumCRC64,
	}
}

// SetLanguage stores a language code (at most 16 bytes).
func (h *Header) SetLanguage(code string) error {
	if len(code) > languageSize {
		return fmt.Errorf("language code %q longer than %d bytes: %w", code, languageSize, model.ErrInvalidArgument)
	}
	h.Language = [languageSize]byte{}
	copy(h.Language[:], code)
	return nil
}

// LanguageCode returns the stored language code.
func (h *Header) LanguageCode() string {
	return string(bytes.TrimRight(h.Language[:], "\x00"))
}

// SetModelVersion stores a model version string (at most 32 bytes).
func (h *Header) SetModelVersion(v string) error {
	if len(v) > modelVersionSize {
		return fmt.Errorf("model version %q longer than %d bytes: %w", v, modelVersionSize, model.ErrInvalidArgument)
	}
	h.ModelVersion = [modelVersionSize]byte{}
	copy(h.ModelVersion[:], v)
	return nil
}

// ModelVersionString returns the stored model version.
func (h *Header) ModelVersionString() string {
	return string(bytes.TrimRight(h.ModelVersion[:], "\x00"))
}

// HasFlag reports whether the given header flag is set.
func (h *Header) HasFlag(flag uint32) bool { return h.Flags&flag != 0 }

// Encode serializes the header into HeaderSize bytes.
func (h *Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[offMagic:], Magic)
	binary.LittleEndian.PutUint16(buf[offMajor:], h.Major)
	binary.LittleEndian.PutUint16(buf[offMinor:], h.Minor)
	binary.LittleEndian.PutUint32(buf[offFlags:], h.Flags)
	binary.LittleEndian.PutUint64(buf[offFileSize:], h.FileSize)
	binary.LittleEndian.PutUint32(buf[offNodeCount:], h.NodeCount)
	binary.LittleEndian.PutUint32(buf[offConnectionCount:], h.ConnectionCount)
	buf[offEndian] = h.Endian
	buf[offChecksumAlg] = h.ChecksumAlgorithm
	// Reserved [34:36]
	for i, s := range h.Sections {
		binary.LittleEndian.PutUint64(buf[offSectionOffsets+i*8:], s.Offset)
		binary.LittleEndian.PutUint64(buf[offSectionSizes+i*8:], s.Size)
	}
	for i, o := range h.IndexOffsets {
		binary.LittleEndian.PutUint64(buf[offIndexOffsets+i*8:], o)
	}
	for i, c := range h.Checksums {
		binary.LittleEndian.PutUint64(buf[offChecksums+i*8:], c)
	}
	binary.LittleEndian.PutUint64(buf[offCreatedAt:], h.CreatedAt)
	binary.LittleEndian.PutUint64(buf[offCapacityHint:], h.CapacityHint)
	copy(buf[offLanguage:], h.Language[:])
	copy(buf[offModelVersion:], h.ModelVersion[:])
	// Reserved [headerUsed:HeaderSize]
	return buf
}

// DecodeHeader parses and validates the header at the start of buf.
func DecodeHeader(buf []byte) (*Header, error) {
	if len(buf) < HeaderSize {
		return nil, fmt.Errorf("header needs %d bytes, have %d: %w", HeaderSize, len(buf), model.ErrTruncated)
	}
	if string(buf[offMagic:offMagic+len(Magic)]) != Magic {
		return nil, fmt.Errorf("invalid magic %q: %w", buf[offMagic:offMagic+len(Magic)], model.ErrInvalidFormat)
	}

	h := &Header{}
	h.Major = binary.LittleEndian.Uint16(buf[offMajor:])
	h.Minor = binary.LittleEndian.Uint16(buf[offMinor:])
	if err := CheckVersion(h.Major, h.Minor); err != nil {
		return nil, err
	}
	h.Endian = buf[offEndian]
	if h.Endian != EndianLittle {
		return nil, fmt.Errorf("unsupported endian marker %d: %w", h.Endian, model.ErrInvalidFormat)
	}
	h.ChecksumAlgorithm = buf[offChecksumAlg]
	if h.ChecksumAlgorithm != ChecksumNone && h.ChecksumAlgorithm != ChecksumCRC64 {
		return nil, fmt.Errorf("unknown checksum algorithm %d: %w", h.ChecksumAlgorithm, model.ErrInvalidFormat)
	}

	h.Flags = binary.LittleEndian.Uint32(buf[offFlags:])
	h.FileSize = binary.LittleEndian.Uint64(buf[offFileSize:])
	h.NodeCount = binary.LittleEndian.Uint32(buf[offNodeCount:])
	h.ConnectionCount = binary.LittleEndian.Uint32(buf[offConnectionCount:])
	for i := range h.Sections {
		h.Sections[i].Offset = binary.LittleEndian.Uint64(buf[offSectionOffsets+i*8:])
		h.Sections[i].Size = binary.LittleEndian.Uint64(buf[offSectionSizes+i*8:])
	}
	for i := range h.IndexOffsets {
		h.IndexOffsets[i] = binary.LittleEndian.Uint64(buf[offIndexOffsets+i*8:])
	}
	for i := range h.Checksums {
		h.Checksums[i] = binary.LittleEndian.Uint64(buf[offChecksums+i*8:])
	}
	h.CreatedAt = binary.LittleEndian.Uint64(buf[offCreatedAt:])
	h.CapacityHint = binary.LittleEndian.Uint64(buf[offCapacityHint:])
	copy(h.Language[:], buf[offLanguage:])
	copy(h.ModelVersion[:], buf[offModelVersion:])
	return h, nil
}

// CheckVersion applies the compatibility policy: same major, minor not newer.
func CheckVersion(major, minor uint16) error {
	if major != VersionMajor {
		return fmt.Errorf("file major version %d, reader supports %d: %w", major, VersionMajor, model.ErrVersionMismatch)
	}
	if minor > VersionMinor {
		return fmt.Errorf("file minor version %d newer than reader's %d: %w", minor, VersionMinor, model.ErrVersionMismatch)
	}
	return nil
}

// ValidateLayout checks that every section lies inside the file, is 8-byte
// aligned, and that the fixed-size sections agree with the record counts.
func (h *Header) ValidateLayout(fileSize uint64) error {
	if fileSize < h.FileSize {
		return fmt.Errorf("header records %d bytes, file has %d: %w", h.FileSize, fileSize, model.ErrTruncated)
	}
	if fileSize > h.FileSize {
		return fmt.Errorf("header records %d bytes, file has %d: %w", h.FileSize, fileSize, model.ErrInvalidFormat)
	}
	for i, s := range h.Sections {
		if s.Size == 0 {
			// Empty sections may carry offset zero but must not point past the end.
			if s.Offset > fileSize {
				return &SectionError{Section: i, Offset: s.Offset, Size: s.Size, Limit: fileSize, Err: model.ErrTruncated}
			}
			continue
		}
		if s.Offset%Alignment != 0 {
			return &SectionError{Section: i, Offset: s.Offset, Size: s.Size, Limit: fileSize, Err: model.ErrInvalidFormat}
		}
		if s.Offset < HeaderSize || s.End() < s.Offset || s.End() > fileSize {
			return &SectionError{Section: i, Offset: s.Offset, Size: s.Size, Limit: fileSize, Err: model.ErrTruncated}
		}
	}
	if want := uint64(h.NodeCount) * NodeRecordSize; h.Sections[SectionNodes].Size != want {
		return &SectionError{Section: SectionNodes, Offset: h.Sections[SectionNodes].Offset, Size: h.Sections[SectionNodes].Size, Limit: want, Err: model.ErrInvalidFormat}
	}
	if want := uint64(h.ConnectionCount) * ConnectionRecordSize; h.Sections[SectionConnections].Size != want {
		return &SectionError{Section: SectionConnections, Offset: h.Sections[SectionConnections].Offset, Size: h.Sections[SectionConnections].Size, Limit: want, Err: model.ErrInvalidFormat}
	}
	if h.Sections[SectionTrailer].Size != TrailerSize {
		return &SectionError{Section: SectionTrailer, Offset: h.Sections[SectionTrailer].Offset, Size: h.Sections[SectionTrailer].Size, Limit: TrailerSize, Err: model.ErrInvalidFormat}
	}
	return nil
}

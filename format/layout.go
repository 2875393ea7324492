package format

import (
	"encoding/binary"
	"fmt"

	"github.com/hupe1980/lingodb/model"
)

// Alignment is the required alignment of every section start.
const Alignment = 8

// Align rounds n up to the next multiple of Alignment.
func Align(n uint64) uint64 {
	return (n + Alignment - 1) &^ (Alignment - 1)
}

// Padding returns the number of zero bytes needed after n bytes to reach alignment.
func Padding(n uint64) uint64 {
	return Align(n) - n
}

// SectionError reports a section whose location or size is inconsistent.
//
// The kind (ErrTruncated, ErrOutOfBounds, ErrInvalidFormat, ...) is available via errors.Is.
type SectionError struct {
	Section int
	Offset  uint64
	Size    uint64
	Limit   uint64
	Err     error
}

func (e *SectionError) Error() string {
	return fmt.Sprintf("%s section [%d, +%d) against limit %d: %v", SectionName(e.Section), e.Offset, e.Size, e.Limit, e.Err)
}

func (e *SectionError) Unwrap() error { return e.Err }

const (
	// TrailerMagic terminates every file.
	TrailerMagic = "LINGOEND"
	// TrailerSize is the size of the trailing checksum block.
	TrailerSize = 16
)

// EncodeTrailer returns the trailing block protecting the header bytes.
func EncodeTrailer(headerChecksum uint64) []byte {
	buf := make([]byte, TrailerSize)
	copy(buf, TrailerMagic)
	binary.LittleEndian.PutUint64(buf[8:], headerChecksum)
	return buf
}

// DecodeTrailer parses the trailing block and returns the recorded header checksum.
func DecodeTrailer(buf []byte) (uint64, error) {
	if len(buf) < TrailerSize {
		return 0, fmt.Errorf("trailer needs %d bytes, have %d: %w", TrailerSize, len(buf), model.ErrTruncated)
	}
	if string(buf[:len(TrailerMagic)]) != TrailerMagic {
		return 0, fmt.Errorf("invalid trailer magic %q: %w", buf[:len(TrailerMagic)], model.ErrInvalidFormat)
	}
	return binary.LittleEndian.Uint64(buf[8:]), nil
}

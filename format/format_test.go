package format

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/lingodb/model"
)

func TestRecordSizes(t *testing.T) {
	assert.Equal(t, 60, NodeRecordSize)
	assert.Equal(t, 20, ConnectionRecordSize)
	assert.Equal(t, 512, HeaderSize)
	assert.Len(t, NewHeader().Encode(), HeaderSize)
	assert.LessOrEqual(t, headerUsed, HeaderSize)
	assert.Equal(t, 292, headerUsed)
}

func TestHeader_RoundTrip(t *testing.T) {
	h := NewHeader()
	h.Flags = FlagLayerIndex
	h.FileSize = 4096
	h.NodeCount = 3
	h.ConnectionCount = 1
	for i := range h.Sections {
		h.Sections[i] = Section{Offset: uint64(HeaderSize + i*64), Size: uint64(i * 8)}
	}
	h.Checksums = [NumChecksums]uint64{1, 2, 3, 4}
	h.IndexOffsets[2] = 99
	h.CreatedAt = 1700000000
	h.CapacityHint = 1 << 20
	require.NoError(t, h.SetLanguage("en"))
	require.NoError(t, h.SetModelVersion("lingo-2024.1"))

	got, err := DecodeHeader(h.Encode())
	require.NoError(t, err)
	assert.Equal(t, h, got)
	assert.Equal(t, "en", got.LanguageCode())
	assert.Equal(t, "lingo-2024.1", got.ModelVersionString())
	assert.True(t, got.HasFlag(FlagLayerIndex))
}

func TestHeader_Metadata_TooLong(t *testing.T) {
	h := NewHeader()
	assert.ErrorIs(t, h.SetLanguage("a-language-code-that-is-too-long"), model.ErrInvalidArgument)
	assert.ErrorIs(t, h.SetModelVersion(string(make([]byte, 33))), model.ErrInvalidArgument)
}

func TestDecodeHeader_Errors(t *testing.T) {
	valid := NewHeader().Encode()

	tests := []struct {
		name    string
		mutate  func([]byte) []byte
		wantErr error
	}{
		{"truncated", func(b []byte) []byte { return b[:100] }, model.ErrTruncated},
		{"corrupted magic", func(b []byte) []byte { b[0] = 'X'; return b }, model.ErrInvalidFormat},
		{"big endian", func(b []byte) []byte { b[offEndian] = 2; return b }, model.ErrInvalidFormat},
		{"unknown checksum", func(b []byte) []byte { b[offChecksumAlg] = 7; return b }, model.ErrInvalidFormat},
		{"major", func(b []byte) []byte { b[offMajor] = 2; return b }, model.ErrVersionMismatch},
		{"newer minor", func(b []byte) []byte { b[offMinor] = 1; return b }, model.ErrVersionMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := append([]byte(nil), valid...)
			_, err := DecodeHeader(tt.mutate(buf))
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDecodeHeader_IgnoresUnknownFlags(t *testing.T) {
	h := NewHeader()
	h.Flags = 0xFFFF0000
	got, err := DecodeHeader(h.Encode())
	require.NoError(t, err)
	assert.Equal(t, uint32(0xFFFF0000), got.Flags)
}

func validLayout() *Header {
	h := NewHeader()
	h.NodeCount = 2
	h.ConnectionCount = 1
	off := uint64(HeaderSize)
	sizes := [NumSections]uint64{
		SectionStrings:     5,
		SectionNodes:       2 * NodeRecordSize,
		SectionConnections: ConnectionRecordSize,
		SectionOctree:      48,
		SectionWordIndex:   32,
		SectionTrailer:     TrailerSize,
	}
	for i, s := range sizes {
		if s == 0 {
			continue
		}
		h.Sections[i] = Section{Offset: off, Size: s}
		off = Align(off + s)
	}
	h.FileSize = off
	return h
}

func TestValidateLayout(t *testing.T) {
	h := validLayout()
	require.NoError(t, h.ValidateLayout(h.FileSize))

	t.Run("file shorter than recorded", func(t *testing.T) {
		assert.ErrorIs(t, h.ValidateLayout(h.FileSize-1), model.ErrTruncated)
	})

	t.Run("file longer than recorded", func(t *testing.T) {
		err := h.ValidateLayout(h.FileSize + 8)
		require.ErrorIs(t, err, model.ErrInvalidFormat)
		assert.NotErrorIs(t, err, model.ErrTruncated)
	})

	t.Run("empty section past end", func(t *testing.T) {
		bad := *h
		bad.Sections[SectionReserved] = Section{Offset: 1 << 40}
		err := bad.ValidateLayout(bad.FileSize)
		require.ErrorIs(t, err, model.ErrTruncated)

		var se *SectionError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, SectionReserved, se.Section)
	})

	t.Run("empty section at offset zero", func(t *testing.T) {
		ok := *h
		ok.Sections[SectionReserved] = Section{}
		assert.NoError(t, ok.ValidateLayout(ok.FileSize))
	})

	t.Run("section past end", func(t *testing.T) {
		bad := *h
		bad.Sections[SectionOctree].Size = 1 << 30
		err := bad.ValidateLayout(bad.FileSize)
		require.ErrorIs(t, err, model.ErrTruncated)

		var se *SectionError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, SectionOctree, se.Section)
		assert.Contains(t, se.Error(), "octree")
	})

	t.Run("misaligned", func(t *testing.T) {
		bad := *h
		bad.Sections[SectionNodes].Offset++
		assert.ErrorIs(t, bad.ValidateLayout(bad.FileSize), model.ErrInvalidFormat)
	})

	t.Run("count disagrees with size", func(t *testing.T) {
		bad := *h
		bad.NodeCount = 3
		assert.ErrorIs(t, bad.ValidateLayout(bad.FileSize), model.ErrInvalidFormat)
	})
}

func TestAlign(t *testing.T) {
	assert.Equal(t, uint64(0), Align(0))
	assert.Equal(t, uint64(8), Align(1))
	assert.Equal(t, uint64(8), Align(8))
	assert.Equal(t, uint64(520), Align(513))
	assert.Equal(t, uint64(3), Padding(5))
}

func TestTrailer(t *testing.T) {
	buf := EncodeTrailer(0xDEADBEEF)
	require.Len(t, buf, TrailerSize)

	sum, err := DecodeTrailer(buf)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xDEADBEEF), sum)

	buf[0] = 'X'
	_, err = DecodeTrailer(buf)
	assert.ErrorIs(t, err, model.ErrInvalidFormat)

	_, err = DecodeTrailer(buf[:4])
	assert.ErrorIs(t, err, model.ErrTruncated)
}

func TestNodeRecord_RoundTrip(t *testing.T) {
	rec := NodeRecord{
		WordOffset:        17,
		WordLength:        9,
		Position:          model.Coord(0.5, 0.3, float32(math.Nextafter32(0.4, 1))),
		Layer:             model.LayerWords,
		MorphemeType:      model.MorphemeRoot,
		Etymology:         model.OriginGreek,
		Flags:             model.FlagTechnical | model.FlagLearned,
		ConnectionsOffset: 123456,
		ConnectionsCount:  65535,
	}

	// Write at an odd offset to exercise unaligned access.
	buf := make([]byte, NodeRecordSize+3)
	for i := range buf {
		buf[i] = 0xFF
	}
	rec.Put(buf[3:])
	assert.Equal(t, rec, DecodeNodeRecord(buf[3:]))

	for _, b := range buf[3+nodeRecordUsed:] {
		assert.Zero(t, b)
	}
}

func TestConnectionRecord_RoundTrip(t *testing.T) {
	rec := ConnectionRecord{Target: 42, Type: model.Antonymy, Strength: 0.75}
	buf := make([]byte, ConnectionRecordSize+1)
	rec.Put(buf[1:])
	assert.Equal(t, rec, DecodeConnectionRecord(buf[1:]))
}

func TestNodeArray(t *testing.T) {
	data := make([]byte, 3*NodeRecordSize)
	for i := range 3 {
		rec := NodeRecord{
			WordOffset:        uint32(i * 4),
			WordLength:        4,
			Position:          model.Coord(float32(i)/10, 0.2, 0.3),
			Layer:             model.Layer(i),
			ConnectionsOffset: uint32(i),
			ConnectionsCount:  1,
		}
		rec.Put(data[i*NodeRecordSize:])
	}

	arr, err := NewNodeArray(data)
	require.NoError(t, err)
	require.Equal(t, 3, arr.Len())

	assert.Equal(t, model.Layer(2), arr.Layer(2))
	assert.Equal(t, model.Coord(0.1, 0.2, 0.3), arr.Position(1))
	off, n := arr.WordSpan(2)
	assert.Equal(t, uint32(8), off)
	assert.Equal(t, uint16(4), n)
	coff, cn := arr.ConnectionSpan(1)
	assert.Equal(t, uint32(1), coff)
	assert.Equal(t, uint16(1), cn)
	assert.Equal(t, arr.At(2).Layer, arr.Layer(2))

	_, err = NewNodeArray(data[:NodeRecordSize+1])
	assert.ErrorIs(t, err, model.ErrInvalidFormat)
}

func TestConnectionSlice(t *testing.T) {
	data := make([]byte, 4*ConnectionRecordSize)
	for i := range 4 {
		rec := ConnectionRecord{Target: model.NodeID(i + 1), Type: model.Synonymy, Strength: float32(i) / 4}
		rec.Put(data[i*ConnectionRecordSize:])
	}
	s, err := NewConnectionSlice(data)
	require.NoError(t, err)
	require.Equal(t, 4, s.Len())

	sub, err := s.Slice(1, 2)
	require.NoError(t, err)
	require.Equal(t, 2, sub.Len())
	assert.Equal(t, model.NodeID(2), sub.Target(0))
	assert.Equal(t, model.Synonymy, sub.Type(1))
	assert.Equal(t, float32(0.5), sub.Strength(1))
	assert.Len(t, sub.All(), 2)

	_, err = s.Slice(3, 2)
	assert.ErrorIs(t, err, model.ErrOutOfBounds)
}

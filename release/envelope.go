package release

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/lingodb/model"
)

// Compression selects the envelope compression algorithm.
type Compression uint8

const (
	// CompressionNone stores the file as is.
	CompressionNone Compression = 0
	// CompressionLZ4 favors decompression speed.
	CompressionLZ4 Compression = 1
	// CompressionZstd favors ratio. It is the default.
	CompressionZstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	}
	return fmt.Sprintf("compression(%d)", uint8(c))
}

// Valid reports whether c is a known algorithm.
func (c Compression) Valid() bool { return c <= CompressionZstd }

const (
	envelopeMagic      = "LGDZ"
	envelopeHeaderSize = 24
)

type envelopeHeader struct {
	algo     Compression
	rawSize  uint64
	checksum uint64
}

func (h envelopeHeader) marshal() []byte {
	b := make([]byte, envelopeHeaderSize)
	copy(b, envelopeMagic)
	b[4] = byte(h.algo)
	binary.LittleEndian.PutUint64(b[8:], h.rawSize)
	binary.LittleEndian.PutUint64(b[16:], h.checksum)
	return b
}

func readEnvelopeHeader(r io.Reader) (envelopeHeader, error) {
	var b [envelopeHeaderSize]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return envelopeHeader{}, fmt.Errorf("envelope header: %w: %w", model.ErrTruncated, err)
	}
	if string(b[:4]) != envelopeMagic {
		return envelopeHeader{}, fmt.Errorf("envelope magic %q: %w", b[:4], model.ErrInvalidFormat)
	}
	h := envelopeHeader{
		algo:     Compression(b[4]),
		rawSize:  binary.LittleEndian.Uint64(b[8:]),
		checksum: binary.LittleEndian.Uint64(b[16:]),
	}
	if !h.algo.Valid() {
		return envelopeHeader{}, fmt.Errorf("envelope algorithm %d: %w", b[4], model.ErrInvalidFormat)
	}
	return h, nil
}

// compress writes src to w with algorithm c.
func compress(w io.Writer, src io.Reader, c Compression) error {
	var zw io.WriteCloser
	switch c {
	case CompressionNone:
		_, err := io.Copy(w, src)
		return err
	case CompressionLZ4:
		zw = lz4.NewWriter(w)
	case CompressionZstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return err
		}
		zw = enc
	default:
		return fmt.Errorf("%s: %w", c, model.ErrInvalidArgument)
	}
	if _, err := io.Copy(zw, src); err != nil {
		_ = zw.Close()
		return err
	}
	return zw.Close()
}

// decompress returns a reader of the raw bytes behind r.
func decompress(r io.Reader, c Compression) (io.ReadCloser, error) {
	switch c {
	case CompressionNone:
		return io.NopCloser(r), nil
	case CompressionLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case CompressionZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	}
	return nil, fmt.Errorf("%s: %w", c, model.ErrInvalidFormat)
}

package hash

import (
	"hash"
	"hash/crc64"
)

// crc64Table is pre-computed for the ECMA-182 polynomial.
var crc64Table = crc64.MakeTable(crc64.ECMA)

// CRC64 computes the CRC64-ECMA checksum of data.
func CRC64(data []byte) uint64 {
	return crc64.Checksum(data, crc64Table)
}

// NewCRC64 returns a streaming CRC64-ECMA hash.Hash64.
func NewCRC64() hash.Hash64 {
	return crc64.New(crc64Table)
}

package hash

import "hash/crc32"

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// CRC32C computes the CRC32 checksum of data with the Castagnoli polynomial,
// the variant S3 accepts for upload integrity checks.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, castagnoli)
}

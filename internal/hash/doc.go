// Package hash provides the checksums and hashes baked into the LingoDB file format.
//
// # CRC64-ECMA
//
// Every section of a knowledge-base file is protected by a CRC64 checksum
// using the ECMA-182 polynomial (the algorithm id recorded in the header):
//
//	checksum := hash.CRC64(section)
//
// For streaming checksums:
//
//	h := hash.NewCRC64()
//	h.Write(chunk1)
//	h.Write(chunk2)
//	checksum := h.Sum64()
//
// # FNV-1a
//
// The word index keys buckets by the 64-bit FNV-1a hash of the UTF-8 word.
// The function is part of the on-disk format: changing it invalidates every
// existing word index.
package hash

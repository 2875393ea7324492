// Package release distributes knowledge-base files through a blob store.
//
// Publish validates a built file, compresses it into an envelope and stores
// it under name/<version>.lgdz, then commits the release to a catalog. Fetch
// resolves the newest committed release, downloads and verifies it, and
// installs it atomically in a local cache directory. A cached copy whose
// checksum matches the catalog is reused without downloading.
//
//	store := blobstore.NewLocalStore("/srv/releases")
//	rel, err := release.Publish(ctx, store, "en", "build/en.lingo")
//	...
//	got, err := release.Fetch(ctx, store, "en", "/var/cache/lingodb")
//	r, err := reader.Open(ctx, got.Path)
//
// # Envelope
//
// An envelope is a 24-byte header followed by the compressed file:
//
//	magic "LGDZ" | algorithm u8 | reserved [3] | raw size u64 | CRC64 u64
//
// Integers are little endian. The CRC64-ECMA covers the uncompressed bytes.
package release

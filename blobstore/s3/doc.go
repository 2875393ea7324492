// Package s3 provides an Amazon S3 implementation of blobstore.BlobStore and
// a DynamoDB-backed release catalog.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("lingodb/"),
//	    s3.WithRegion("eu-central-1"),
//	)
//
//	rel, err := release.Publish(ctx, store, "en", "en.lingo",
//	    release.WithCatalog(s3.NewDDBCatalog(ddb, "lingodb-releases")),
//	)
//
// # Features
//
//   - Range reads for partial fetches
//   - Multipart streaming uploads through the transfer manager
//   - CRC32C integrity checks on single-shot puts
//   - Conditional creates (If-None-Match) so a published version is never
//     overwritten
//   - DynamoDB conditional writes for the release pointer, safe with several
//     concurrent publishers
package s3

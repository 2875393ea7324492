// Package lingodb is an embedded, read-only linguistic knowledge base.
//
// A knowledge base is a single immutable file holding nodes on seven layers,
// from letters up to domains, positioned in a unit cube, typed and weighted connections between them,
// an octree over the positions and a hash index over the words. Files are
// written once by package builder and memory-mapped by package reader.
// Queries are SLANG programs (package slang) evaluated over the mapping
// without copying.
//
// # Quick Start
//
//	b := builder.New()
//	tech, _ := b.AddNode("tech", model.LayerMorphemes, model.Coord(0.3, 0.2, 0.3))
//	word, _ := b.AddNode("technical", model.LayerWords, model.Coord(0.5, 0.3, 0.4))
//	_ = b.AddConnection(tech, word, model.Hypernymy, 0.9)
//	_ = lingodb.Build(ctx, b, "en.lingo")
//
//	db, err := lingodb.Open(ctx, "en.lingo")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	p, _ := db.Compile().LoadNode("tech").LayerUp().Compile()
//	ids, _ := db.Query(ctx, p) // [technical]
//
// # Releases
//
// Built files are distributed through a blob store (local directory,
// memory, S3 or MinIO) as compressed, checksummed releases:
//
//	store, _ := s3.New(ctx, "kb-releases", s3.WithPrefix("lingodb/"))
//	_, _ = lingodb.Publish(ctx, store, "en", "en.lingo")
//	db, _ := lingodb.OpenRelease(ctx, store, "en", lingodb.WithCacheDir("/var/cache/lingodb"))
//
// # Limits and admission
//
// Every query runs under slang.Limits (instruction count, stack depth,
// intermediate result size). WithMaxConcurrentQueries and WithQueryRate bound
// how many queries run at once and how fast they are admitted. Errors match
// the kinds exported here with errors.Is.
package lingodb

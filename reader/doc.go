// Package reader opens knowledge-base files and answers lookups over them.
//
// A Reader memory-maps the file read-only, validates the header, layout,
// checksums and every record, and then serves all queries as zero-copy views
// over the mapped bytes:
//
//	r, err := reader.Open(ctx, "en.lingo")
//	if err != nil { ... }
//	defer r.Close()
//
//	ids := r.FindByWord("tech")
//	near := r.FindNear(model.Coord(0.5, 0.3, 0.4), 0.05)
//
// A Reader is immutable and safe for concurrent use. Strings and connection
// slices it returns borrow from the mapping and must not be used after Close.
// Close must not race with in-flight queries.
package reader

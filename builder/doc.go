// Package builder accumulates nodes and connections in memory and writes a
// complete, self-contained knowledge-base file.
//
//	b := builder.New(builder.WithLogger(logger))
//	tech, _ := b.AddNode("tech", model.LayerMorphemes, model.Coord(0.3, 0.2, 0.3))
//	technical, _ := b.AddNode("technical", model.LayerWords, model.Coord(0.5, 0.3, 0.4))
//	_ = b.AddConnection(tech, technical, model.Hypernymy, 0.9)
//	if err := b.Build(ctx, "en.lingo"); err != nil { ... }
//
// Build writes to a temporary file in the destination directory, syncs it
// and renames it into place; on failure the destination is untouched and the
// temporary file is removed.
//
// A Builder is not safe for concurrent use and is sealed after its first
// successful Build, WriteTo or Bytes.
package builder

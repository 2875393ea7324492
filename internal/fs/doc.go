// Package fs abstracts the few file-system calls the builder needs so that
// atomic writes can be tested under injected failures.
//
// Production code uses [Default] ([LocalFS]). Tests wrap it in a [FaultyFS]:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule(".tmp", fs.Fault{FailOnSync: true})
//	b := builder.New(builder.WithFileSystem(ffs))
//
// Operations take no context.Context: local file calls are not interruptible.
package fs

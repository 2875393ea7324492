package builder

import (
	"log/slog"
	"time"

	"github.com/hupe1980/lingodb/internal/fs"
)

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger for build progress.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithFileSystem sets the file system used by Build.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(b *Builder) {
		if fsys != nil {
			b.fs = fsys
		}
	}
}

// WithClock sets the time source for the header creation timestamp.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

// WithLeafCapacity sets the octree leaf capacity. Defaults to 16.
func WithLeafCapacity(n int) Option {
	return func(b *Builder) {
		b.octree.LeafCapacity = n
	}
}

// WithMaxDepth sets the octree subdivision limit. Defaults to 10.
func WithMaxDepth(n int) Option {
	return func(b *Builder) {
		b.octree.MaxDepth = n
	}
}

package release

import (
	"log/slog"
	"time"

	"github.com/hupe1980/lingodb/blobstore"
	"github.com/hupe1980/lingodb/internal/fs"
	"github.com/hupe1980/lingodb/internal/resource"
)

// Option configures Publish, Fetch and Prune.
type Option func(*options)

type options struct {
	compression Compression
	catalog     blobstore.Catalog
	logger      *slog.Logger
	fs          fs.FileSystem
	now         func() time.Time
	io          *resource.Controller
}

func newOptions(store blobstore.BlobStore, optFns []Option) options {
	o := options{
		compression: CompressionZstd,
		logger:      slog.New(slog.DiscardHandler),
		fs:          fs.Default,
		now:         time.Now,
	}
	for _, fn := range optFns {
		fn(&o)
	}
	if o.catalog == nil {
		o.catalog = blobstore.NewStoreCatalog(store)
	}
	return o
}

// WithCompression selects the envelope compression used by Publish.
func WithCompression(c Compression) Option {
	return func(o *options) { o.compression = c }
}

// WithCatalog sets the release catalog. By default releases are tracked by a
// blobstore.StoreCatalog on the same store.
func WithCatalog(c blobstore.Catalog) Option {
	return func(o *options) {
		if c != nil {
			o.catalog = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithFileSystem sets the file system Fetch installs files with.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		if fsys != nil {
			o.fs = fsys
		}
	}
}

// WithClock sets the time source for release timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithDownloadRate throttles Fetch downloads to bytesPerSec. Zero or less
// disables throttling.
func WithDownloadRate(bytesPerSec int64) Option {
	return func(o *options) {
		if bytesPerSec > 0 {
			o.io = resource.NewController(resource.Config{IOLimitBytesPerSec: bytesPerSec})
		} else {
			o.io = nil
		}
	}
}

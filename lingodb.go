package lingodb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hupe1980/lingodb/blobstore"
	"github.com/hupe1980/lingodb/builder"
	"github.com/hupe1980/lingodb/internal/resource"
	"github.com/hupe1980/lingodb/model"
	"github.com/hupe1980/lingodb/reader"
	"github.com/hupe1980/lingodb/release"
	"github.com/hupe1980/lingodb/slang"
)

// DB is an open knowledge base with a query executor. It is safe for
// concurrent use; Close waits for running queries.
type DB struct {
	mu     sync.RWMutex // write-held by Close
	closed bool

	r        *reader.Reader
	exec     *slang.Executor
	rc       *resource.Controller
	failFast bool
	metrics  MetricsCollector
	logger   *Logger
	path     string
	release  *blobstore.Release
}

// Open memory-maps and validates the knowledge base at path.
func Open(ctx context.Context, path string, optFns ...Option) (*DB, error) {
	o := applyOptions(optFns)
	return open(ctx, path, nil, o)
}

func open(ctx context.Context, path string, rel *blobstore.Release, o options) (*DB, error) {
	start := time.Now()
	r, err := reader.Open(ctx, path,
		reader.WithVerifyChecksums(o.verifyChecksums),
		reader.WithLogger(o.logger.Logger),
	)
	d := time.Since(start)
	err = translateError(err)
	o.metricsCollector.RecordOpen(d, err)
	if err != nil {
		o.logger.LogOpen(ctx, path, 0, 0, d, err)
		return nil, err
	}
	o.logger.LogOpen(ctx, path, r.NodeCount(), r.ConnectionCount(), d, nil)

	return &DB{
		r: r,
		exec: slang.NewExecutor(r,
			slang.WithLimits(o.limits),
			slang.WithLayerRadius(o.layerRadius),
		),
		rc: resource.NewController(resource.Config{
			MaxConcurrentQueries: o.maxConcurrent,
			QueriesPerSecond:     o.queryRate,
			QueryBurst:           o.queryBurst,
		}),
		failFast: o.failFast,
		metrics:  o.metricsCollector,
		logger:   o.logger,
		path:     path,
		release:  rel,
	}, nil
}

// OpenRelease fetches the latest release of name from store into the cache
// directory and opens it.
func OpenRelease(ctx context.Context, store blobstore.BlobStore, name string, optFns ...Option) (*DB, error) {
	o := applyOptions(optFns)
	dir := o.cacheDir
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("%w: cache dir: %w", ErrIo, err)
		}
		dir = filepath.Join(base, "lingodb")
	}

	start := time.Now()
	local, err := release.Fetch(ctx, store, name, dir,
		append([]release.Option{release.WithLogger(o.logger.Logger)}, o.releaseOptions...)...)
	err = translateError(err)
	o.metricsCollector.RecordFetch(local.Cached, time.Since(start), err)
	o.logger.LogFetch(ctx, name, local.Release.Version, local.Cached, err)
	if err != nil {
		return nil, err
	}
	rel := local.Release
	return open(ctx, local.Path, &rel, o)
}

// Build writes the knowledge base accumulated in b to path atomically.
func Build(ctx context.Context, b *builder.Builder, path string, optFns ...Option) error {
	o := applyOptions(optFns)
	start := time.Now()
	err := translateError(b.Build(ctx, path))
	d := time.Since(start)
	o.metricsCollector.RecordBuild(b.NodeCount(), d, err)
	o.logger.LogBuild(ctx, path, b.NodeCount(), b.ConnectionCount(), d, err)
	return err
}

// Publish uploads the knowledge base at path as the next release of name.
func Publish(ctx context.Context, store blobstore.BlobStore, name, path string, optFns ...Option) (blobstore.Release, error) {
	o := applyOptions(optFns)
	rel, err := release.Publish(ctx, store, name, path,
		append([]release.Option{release.WithLogger(o.logger.Logger)}, o.releaseOptions...)...)
	err = translateError(err)
	o.logger.LogPublish(ctx, name, rel.Version, err)
	return rel, err
}

// Reader returns the underlying reader. It must not be used after Close.
func (db *DB) Reader() *reader.Reader { return db.r }

// Path returns the file the DB was opened from.
func (db *DB) Path() string { return db.path }

// Release returns the release the DB was fetched from, if any.
func (db *DB) Release() (blobstore.Release, bool) {
	if db.release == nil {
		return blobstore.Release{}, false
	}
	return *db.release, true
}

// Compile starts a new query.
//
//	p, err := db.Compile().LoadNode("tech").LayerUp().Compile()
func (db *DB) Compile() *slang.QueryBuilder { return slang.NewQuery() }

// Query runs p and returns the result ids in ascending order.
func (db *DB) Query(ctx context.Context, p *slang.Program) ([]model.NodeID, error) {
	return db.QueryInto(ctx, p, nil)
}

// QueryInto runs p and appends the result ids to dst. On error dst is
// returned unchanged.
func (db *DB) QueryInto(ctx context.Context, p *slang.Program, dst []model.NodeID) ([]model.NodeID, error) {
	if p == nil {
		return dst, fmt.Errorf("nil program: %w", ErrInvalidArgument)
	}
	start := time.Now()
	out, executed, err := db.query(ctx, p, dst)
	d := time.Since(start)
	err = translateError(err)
	db.metrics.RecordQuery(executed, len(out)-len(dst), d, err)
	db.logger.LogQuery(ctx, executed, len(out)-len(dst), d, err)
	if err != nil {
		return dst, err
	}
	return out, nil
}

func (db *DB) query(ctx context.Context, p *slang.Program, dst []model.NodeID) ([]model.NodeID, int, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return dst, 0, ErrClosed
	}

	if db.failFast {
		if !db.rc.TryAcquireQuery() {
			return dst, 0, fmt.Errorf("%w: query admission: limit reached", ErrResourceExhausted)
		}
	} else if err := db.rc.AcquireQuery(ctx); err != nil {
		if ctx.Err() != nil {
			return dst, 0, fmt.Errorf("%w: %w", ErrCancelled, err)
		}
		return dst, 0, fmt.Errorf("%w: query admission: %w", ErrResourceExhausted, err)
	}
	defer db.rc.ReleaseQuery()

	out, err := db.exec.ExecuteInto(ctx, p, dst)
	if err != nil {
		var ee *slang.ExecError
		if errors.As(err, &ee) {
			return dst, ee.Executed, err
		}
		return dst, 0, err
	}
	return out, p.Len(), nil
}

// Stats describes an open DB.
type Stats struct {
	Path         string
	Language     string
	ModelVersion string
	// Version is the release version, or zero for a DB opened from a path.
	Version         uint64
	Reader          reader.Stats
	InFlightQueries int64
	RejectedQueries int64
}

// Stats returns the shape of the knowledge base and admission counters.
func (db *DB) Stats() Stats {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return Stats{Path: db.path}
	}
	h := db.r.Header()
	s := Stats{
		Path:            db.path,
		Language:        h.LanguageCode(),
		ModelVersion:    h.ModelVersionString(),
		Reader:          db.r.Stats(),
		InFlightQueries: db.rc.InFlight(),
		RejectedQueries: db.rc.Rejected(),
	}
	if db.release != nil {
		s.Version = db.release.Version
	}
	return s
}

// Close waits for running queries and releases the mapping. It is
// idempotent.
func (db *DB) Close() error {
	if db == nil {
		return nil
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true
	return translateError(db.r.Close())
}

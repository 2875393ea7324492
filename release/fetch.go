package release

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/lingodb/blobstore"
	"github.com/hupe1980/lingodb/internal/hash"
	"github.com/hupe1980/lingodb/internal/resource"
	"github.com/hupe1980/lingodb/model"
)

// Local is a release installed on the local file system.
type Local struct {
	// Path is the installed knowledge-base file.
	Path    string
	Release blobstore.Release
	// Cached is true when an existing verified copy was reused.
	Cached bool
}

// LocalPath returns where Fetch installs version of name under dir.
func LocalPath(dir, name string, version uint64) string {
	return filepath.Join(dir, name, fmt.Sprintf("%08d.lingo", version))
}

// Fetch installs the latest committed release of name under dir and returns
// its path. The download is decompressed, size- and checksum-verified, and
// renamed into place, so a partially written file is never visible.
func Fetch(ctx context.Context, store blobstore.BlobStore, name, dir string, optFns ...Option) (Local, error) {
	if err := checkName(name); err != nil {
		return Local{}, err
	}
	o := newOptions(store, optFns)
	start := o.now()

	rel, err := o.catalog.Latest(ctx, name)
	if err != nil {
		return Local{}, fmt.Errorf("resolve %s: %w", name, err)
	}
	dst := LocalPath(dir, name, rel.Version)

	// Verify the cached copy while the blob is opened.
	var (
		cached  bool
		blob    blobstore.Blob
		openErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ok, err := verifyFile(gctx, dst, rel)
		if err != nil {
			o.logger.Warn("cached release unreadable", "path", dst, "error", err)
		}
		cached = ok
		return nil
	})
	g.Go(func() error {
		blob, openErr = store.Open(gctx, rel.Key)
		return nil
	})
	_ = g.Wait()

	if cached {
		if blob != nil {
			_ = blob.Close()
		}
		o.logger.Debug("release cache hit", "name", name, "version", rel.Version, "path", dst)
		return Local{Path: dst, Release: rel, Cached: true}, nil
	}
	if openErr != nil {
		return Local{}, fmt.Errorf("open %s: %w", rel.Key, openErr)
	}
	defer blob.Close()

	if err := o.fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return Local{}, fmt.Errorf("create %s: %w: %w", filepath.Dir(dst), model.ErrIo, err)
	}
	if err := install(ctx, o, blob, rel, dst); err != nil {
		return Local{}, err
	}

	o.logger.Info("release fetched",
		"name", name,
		"version", rel.Version,
		"path", dst,
		"stored_bytes", blob.Size(),
		"raw_bytes", rel.Size,
		"duration", o.now().Sub(start),
	)
	return Local{Path: dst, Release: rel}, nil
}

// install decodes the envelope in blob into a temporary file next to dst and
// renames it into place once verified.
func install(ctx context.Context, o options, blob blobstore.Blob, rel blobstore.Release, dst string) (err error) {
	rc, err := blob.ReadRange(ctx, 0, blob.Size())
	if err != nil {
		return fmt.Errorf("read %s: %w: %w", rel.Key, model.ErrIo, err)
	}
	defer rc.Close()

	env := resource.NewRateLimitedReader(ctx, rc, o.io)

	h, err := readEnvelopeHeader(env)
	if err != nil {
		return fmt.Errorf("%s: %w", rel.Key, err)
	}
	if h.checksum != rel.Checksum || int64(h.rawSize) != rel.Size {
		return fmt.Errorf("%s: envelope does not match catalog entry: %w", rel.Key, model.ErrChecksumFailure)
	}
	src, err := decompress(env, h.algo)
	if err != nil {
		return fmt.Errorf("%s: %w", rel.Key, err)
	}
	defer src.Close()

	f, err := o.fs.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w: %w", model.ErrIo, err)
	}
	tmp := f.Name()
	closed := false
	defer func() {
		if err == nil {
			return
		}
		if !closed {
			_ = f.Close()
		}
		_ = o.fs.Remove(tmp)
	}()

	sum := hash.NewCRC64()
	// One byte past the declared size exposes an oversized stream.
	n, err := io.Copy(io.MultiWriter(f, sum), io.LimitReader(&ctxReader{ctx: ctx, r: src}, int64(h.rawSize)+1))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", model.ErrCancelled, err)
		}
		return fmt.Errorf("decode %s: %w: %w", rel.Key, model.ErrIo, err)
	}
	if uint64(n) != h.rawSize {
		return fmt.Errorf("%s: decoded %d bytes, want %d: %w", rel.Key, n, h.rawSize, model.ErrTruncated)
	}
	if sum.Sum64() != h.checksum {
		return fmt.Errorf("%s: %w", rel.Key, model.ErrChecksumFailure)
	}
	if err = f.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w: %w", tmp, model.ErrIo, err)
	}
	closed = true
	if err = f.Close(); err != nil {
		return fmt.Errorf("close %s: %w: %w", tmp, model.ErrIo, err)
	}
	if err = o.fs.Rename(tmp, dst); err != nil {
		return fmt.Errorf("rename %s: %w: %w", tmp, model.ErrIo, err)
	}
	if serr := o.fs.SyncDir(filepath.Dir(dst)); serr != nil {
		o.logger.Warn("sync directory failed", "dir", filepath.Dir(dst), "error", serr)
	}
	return nil
}

// verifyFile reports whether path holds exactly the release's bytes. A
// missing file is not an error.
func verifyFile(ctx context.Context, path string, rel blobstore.Release) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return false, err
	}
	if st.Size() != rel.Size {
		return false, nil
	}
	sum := hash.NewCRC64()
	if _, err := io.Copy(sum, &ctxReader{ctx: ctx, r: f}); err != nil {
		return false, err
	}
	return sum.Sum64() == rel.Checksum, nil
}

// ctxReader stops reading once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hupe1980/lingodb/codec"
)

// Release describes one published version of a knowledge base.
type Release struct {
	Name    string `json:"name"`
	Version uint64 `json:"version"`
	// Key is the blob holding the release envelope.
	Key  string `json:"key"`
	Size int64  `json:"size"`
	// Checksum is the CRC64-ECMA of the uncompressed knowledge-base file.
	Checksum  uint64    `json:"checksum"`
	CreatedAt time.Time `json:"created_at"`
}

// Catalog records the releases of named knowledge bases.
type Catalog interface {
	// Latest returns the newest committed release of name, or ErrNotFound.
	Latest(ctx context.Context, name string) (Release, error)
	// Commit makes r the newest release of r.Name. It returns ErrConflict
	// unless r.Version is greater than every committed version.
	Commit(ctx context.Context, r Release) error
}

// CurrentKey is the name of the pointer blob a StoreCatalog keeps for name.
func CurrentKey(name string) string { return name + "/CURRENT" }

// StoreCatalog is a Catalog that keeps a pointer document per knowledge base
// in a BlobStore. Commits are serialized within one StoreCatalog only; use a
// catalog with conditional writes when several publishers share a store.
type StoreCatalog struct {
	store BlobStore
	codec codec.Codec
	mu    sync.Mutex
}

// NewStoreCatalog returns a StoreCatalog over store.
func NewStoreCatalog(store BlobStore) *StoreCatalog {
	return &StoreCatalog{store: store, codec: codec.Default}
}

// Latest reads the pointer document of name.
func (c *StoreCatalog) Latest(ctx context.Context, name string) (Release, error) {
	b, err := c.store.Open(ctx, CurrentKey(name))
	if err != nil {
		return Release{}, err
	}
	defer b.Close()

	rc, err := b.ReadRange(ctx, 0, b.Size())
	if err != nil {
		return Release{}, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return Release{}, err
	}

	var r Release
	if err := c.codec.Unmarshal(data, &r); err != nil {
		return Release{}, fmt.Errorf("decode %s: %w", CurrentKey(name), err)
	}
	if r.Name != name {
		return Release{}, fmt.Errorf("%s names release %q", CurrentKey(name), r.Name)
	}
	return r, nil
}

// Commit replaces the pointer document of r.Name.
func (c *StoreCatalog) Commit(ctx context.Context, r Release) error {
	if r.Name == "" || r.Key == "" {
		return errors.New("release needs a name and a key")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	cur, err := c.Latest(ctx, r.Name)
	switch {
	case err == nil:
		if r.Version <= cur.Version {
			return fmt.Errorf("%w: version %d is not newer than %d", ErrConflict, r.Version, cur.Version)
		}
	case !errors.Is(err, ErrNotFound):
		return err
	}

	data, err := c.codec.Marshal(r)
	if err != nil {
		return err
	}
	return c.store.Put(ctx, CurrentKey(r.Name), data)
}

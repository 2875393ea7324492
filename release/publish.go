package release

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/hupe1980/lingodb/blobstore"
	"github.com/hupe1980/lingodb/internal/hash"
	"github.com/hupe1980/lingodb/model"
	"github.com/hupe1980/lingodb/reader"
)

const envelopeExt = ".lgdz"

// Key returns the blob name of version of name.
func Key(name string, version uint64) string {
	return fmt.Sprintf("%s/%08d%s", name, version, envelopeExt)
}

// parseKey extracts the version from a blob name produced by Key.
func parseKey(name, key string) (uint64, bool) {
	rest, ok := strings.CutPrefix(key, name+"/")
	if !ok {
		return 0, false
	}
	digits, ok := strings.CutSuffix(rest, envelopeExt)
	if !ok || digits == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(digits, 10, 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return v, true
}

func checkName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("release name %q: %w", name, model.ErrInvalidArgument)
	}
	return nil
}

// Publish uploads the knowledge base at file as the next version of name.
// The file is fully validated first. The envelope is written before the
// catalog commit, so a failed commit never exposes a missing blob.
func Publish(ctx context.Context, store blobstore.BlobStore, name, file string, optFns ...Option) (blobstore.Release, error) {
	if err := checkName(name); err != nil {
		return blobstore.Release{}, err
	}
	o := newOptions(store, optFns)
	if !o.compression.Valid() {
		return blobstore.Release{}, fmt.Errorf("%s: %w", o.compression, model.ErrInvalidArgument)
	}
	start := o.now()

	data, err := os.ReadFile(file)
	if err != nil {
		return blobstore.Release{}, fmt.Errorf("read %s: %w: %w", file, model.ErrIo, err)
	}
	r, err := reader.OpenBytes(ctx, data)
	if err != nil {
		return blobstore.Release{}, fmt.Errorf("validate %s: %w", file, err)
	}
	_ = r.Close()

	version := uint64(1)
	cur, err := o.catalog.Latest(ctx, name)
	switch {
	case err == nil:
		version = cur.Version + 1
	case !errors.Is(err, blobstore.ErrNotFound):
		return blobstore.Release{}, fmt.Errorf("resolve %s: %w", name, err)
	}

	h := envelopeHeader{
		algo:     o.compression,
		rawSize:  uint64(len(data)),
		checksum: hash.CRC64(data),
	}
	var buf bytes.Buffer
	buf.Write(h.marshal())
	if err := compress(&buf, bytes.NewReader(data), o.compression); err != nil {
		return blobstore.Release{}, fmt.Errorf("compress %s: %w", file, err)
	}

	rel := blobstore.Release{
		Name:      name,
		Version:   version,
		Key:       Key(name, version),
		Size:      int64(len(data)),
		Checksum:  h.checksum,
		CreatedAt: o.now().UTC(),
	}
	if cp, ok := store.(blobstore.ConditionalPutter); ok {
		err = cp.PutIfNotExists(ctx, rel.Key, buf.Bytes())
	} else {
		err = store.Put(ctx, rel.Key, buf.Bytes())
	}
	if err != nil {
		return blobstore.Release{}, fmt.Errorf("upload %s: %w", rel.Key, err)
	}

	if err := o.catalog.Commit(ctx, rel); err != nil {
		if derr := store.Delete(ctx, rel.Key); derr != nil {
			o.logger.Warn("remove orphaned envelope failed", "key", rel.Key, "error", derr)
		}
		return blobstore.Release{}, fmt.Errorf("commit %s: %w", rel.Key, err)
	}

	o.logger.Info("release published",
		"name", name,
		"version", version,
		"key", rel.Key,
		"compression", o.compression.String(),
		"raw_bytes", len(data),
		"stored_bytes", buf.Len(),
		"duration", o.now().Sub(start),
	)
	return rel, nil
}

// Versions returns the versions of name present in store, ascending. It
// lists envelopes, so it includes uploads whose commit failed.
func Versions(ctx context.Context, store blobstore.BlobStore, name string) ([]uint64, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	keys, err := store.List(ctx, name+"/")
	if err != nil {
		return nil, err
	}
	var out []uint64
	for _, k := range keys {
		if v, ok := parseKey(name, path.Clean(k)); ok {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return out, nil
}

// Prune deletes all but the newest keep envelopes of name. The latest
// committed release is never deleted.
func Prune(ctx context.Context, store blobstore.BlobStore, name string, keep int, optFns ...Option) ([]uint64, error) {
	if keep < 1 {
		return nil, fmt.Errorf("keep %d: %w", keep, model.ErrInvalidArgument)
	}
	o := newOptions(store, optFns)
	versions, err := Versions(ctx, store, name)
	if err != nil {
		return nil, err
	}
	if len(versions) <= keep {
		return nil, nil
	}
	var latest uint64
	if cur, err := o.catalog.Latest(ctx, name); err == nil {
		latest = cur.Version
	} else if !errors.Is(err, blobstore.ErrNotFound) {
		return nil, err
	}

	var deleted []uint64
	for _, v := range versions[:len(versions)-keep] {
		if v == latest {
			continue
		}
		if err := store.Delete(ctx, Key(name, v)); err != nil {
			return deleted, err
		}
		deleted = append(deleted, v)
	}
	o.logger.Info("releases pruned", "name", name, "deleted", len(deleted))
	return deleted, nil
}

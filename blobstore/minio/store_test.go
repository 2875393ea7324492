package minio

import (
	"context"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/lingodb/blobstore"
)

func TestRelName(t *testing.T) {
	tests := []struct {
		prefix, key, want string
	}{
		{"", "en/00000001.lgdz", "en/00000001.lgdz"},
		{"kb", "kb/en/CURRENT", "en/CURRENT"},
		{"kb/", "kb/en/CURRENT", "en/CURRENT"},
		{"a/b", "a/b/x", "x"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, relName(tt.prefix, tt.key), "%s + %s", tt.prefix, tt.key)
	}
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(minio.ErrorResponse{Code: "NoSuchKey"}))
	assert.True(t, isNotFound(minio.ErrorResponse{Code: "NotFound"}))
	assert.False(t, isNotFound(minio.ErrorResponse{Code: "AccessDenied"}))
}

func TestStore_Key(t *testing.T) {
	s := NewStore(nil, "bucket", "lingodb/")
	assert.Equal(t, "lingodb/en/00000001.lgdz", s.key("en/00000001.lgdz"))
	assert.Equal(t, "x", NewStore(nil, "bucket", "").key("x"))
}

// dial connects to MINIO_ENDPOINT (default localhost:9000) or skips.
func dial(t *testing.T) *minio.Client {
	t.Helper()
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:9000"
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}
	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()
	if _, err := client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}
	return client
}

func TestStore_Integration(t *testing.T) {
	client := dial(t)
	ctx := t.Context()

	const bucket = "test-lingodb"
	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}
	store := NewStore(client, bucket, fmt.Sprintf("run-%d/", time.Now().UnixNano()))

	data := []byte("hello minio world")
	require.NoError(t, store.Put(ctx, "en/CURRENT", data))
	t.Cleanup(func() { _ = store.Delete(context.Background(), "en/CURRENT") })

	b, err := store.Open(ctx, "en/CURRENT")
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), b.Size())

	buf := make([]byte, len(data))
	n, err := b.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, data, buf)

	rc, err := b.ReadRange(ctx, 6, 5)
	require.NoError(t, err)
	part, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "minio", string(part))
	require.NoError(t, b.Close())

	err = store.PutIfNotExists(ctx, "en/CURRENT", []byte("other"))
	require.ErrorIs(t, err, blobstore.ErrConflict)

	w, err := store.Create(ctx, "en/00000001.lgdz")
	require.NoError(t, err)
	_, err = w.Write([]byte("streamed data"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	t.Cleanup(func() { _ = store.Delete(context.Background(), "en/00000001.lgdz") })

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"en/00000001.lgdz", "en/CURRENT"}, names)

	require.NoError(t, store.Delete(ctx, "en/CURRENT"))
	_, err = store.Open(ctx, "en/CURRENT")
	require.ErrorIs(t, err, blobstore.ErrNotFound)
	require.NoError(t, store.Delete(ctx, "en/CURRENT"))
}

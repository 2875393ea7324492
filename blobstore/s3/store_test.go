package s3

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/lingodb/blobstore"
	"github.com/hupe1980/lingodb/internal/hash"
)

func TestStore_Open(t *testing.T) {
	client := new(MockS3Client)
	store := NewStore(client, "test-bucket", WithPrefix("kb"))

	t.Run("NotFound", func(t *testing.T) {
		client.On("HeadObject", mock.Anything, mock.MatchedBy(func(in *s3.HeadObjectInput) bool {
			return *in.Bucket == "test-bucket" && *in.Key == "kb/missing"
		})).Return(nil, &types.NotFound{}).Once()

		_, err := store.Open(t.Context(), "missing")
		require.ErrorIs(t, err, blobstore.ErrNotFound)
	})

	t.Run("Success", func(t *testing.T) {
		client.On("HeadObject", mock.Anything, mock.MatchedBy(func(in *s3.HeadObjectInput) bool {
			return *in.Key == "kb/en/00000001.lgdz"
		})).Return(&s3.HeadObjectOutput{ContentLength: aws.Int64(100)}, nil).Once()

		b, err := store.Open(t.Context(), "en/00000001.lgdz")
		require.NoError(t, err)
		assert.Equal(t, int64(100), b.Size())
		require.NoError(t, b.Close())
	})

	client.AssertExpectations(t)
}

func TestStore_Put(t *testing.T) {
	client := new(MockS3Client)
	store := NewStore(client, "test-bucket", WithPrefix("kb/"))
	data := []byte("envelope")

	client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return *in.Key == "kb/en/CURRENT" &&
			aws.ToInt64(in.ContentLength) == int64(len(data)) &&
			aws.ToString(in.ChecksumCRC32C) == encodeCRC32C(hash.CRC32C(data)) &&
			in.IfNoneMatch == nil
	})).Return(&s3.PutObjectOutput{}, nil).Once()

	require.NoError(t, store.Put(t.Context(), "en/CURRENT", data))
	client.AssertExpectations(t)
}

func TestStore_PutIfNotExists(t *testing.T) {
	client := new(MockS3Client)
	store := NewStore(client, "test-bucket")
	conditional := mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return aws.ToString(in.IfNoneMatch) == "*"
	})

	client.On("PutObject", mock.Anything, conditional).Return(&s3.PutObjectOutput{}, nil).Once()
	require.NoError(t, store.PutIfNotExists(t.Context(), "en/1.lgdz", []byte("a")))

	client.On("PutObject", mock.Anything, conditional).
		Return(nil, &smithy.GenericAPIError{Code: "PreconditionFailed"}).Once()
	err := store.PutIfNotExists(t.Context(), "en/1.lgdz", []byte("b"))
	require.ErrorIs(t, err, blobstore.ErrConflict)

	client.On("PutObject", mock.Anything, conditional).
		Return(nil, &smithy.GenericAPIError{Code: "AccessDenied"}).Once()
	err = store.PutIfNotExists(t.Context(), "en/1.lgdz", []byte("b"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, blobstore.ErrConflict)
}

func TestStore_Delete(t *testing.T) {
	client := new(MockS3Client)
	store := NewStore(client, "test-bucket", WithPrefix("kb"))

	client.On("DeleteObject", mock.Anything, mock.MatchedBy(func(in *s3.DeleteObjectInput) bool {
		return *in.Bucket == "test-bucket" && *in.Key == "kb/old"
	})).Return(&s3.DeleteObjectOutput{}, nil).Once()

	require.NoError(t, store.Delete(t.Context(), "old"))
	client.AssertExpectations(t)
}

func TestStore_List(t *testing.T) {
	client := new(MockS3Client)
	store := NewStore(client, "test-bucket", WithPrefix("kb/"))

	client.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return in.ContinuationToken == nil && *in.Prefix == "kb/"
	})).Return(&s3.ListObjectsV2Output{
		IsTruncated:           aws.Bool(true),
		NextContinuationToken: aws.String("token"),
		Contents:              []types.Object{{Key: aws.String("kb/fr/00000001.lgdz")}},
	}, nil).Once()
	client.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return aws.ToString(in.ContinuationToken) == "token"
	})).Return(&s3.ListObjectsV2Output{
		IsTruncated: aws.Bool(false),
		Contents: []types.Object{
			{Key: aws.String("kb/en/00000002.lgdz")},
			{Key: aws.String("kb/en/00000001.lgdz")},
		},
	}, nil).Once()

	names, err := store.List(t.Context(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"en/00000001.lgdz", "en/00000002.lgdz", "fr/00000001.lgdz"}, names)

	client.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return *in.Prefix == "kb/en"
	})).Return(&s3.ListObjectsV2Output{
		Contents: []types.Object{{Key: aws.String("kb/en/00000001.lgdz")}},
	}, nil).Once()
	names, err = store.List(t.Context(), "en")
	require.NoError(t, err)
	assert.Equal(t, []string{"en/00000001.lgdz"}, names)
}

func rangeIs(r string) any {
	return mock.MatchedBy(func(in *s3.GetObjectInput) bool { return aws.ToString(in.Range) == r })
}

func body(s string) *s3.GetObjectOutput {
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(s))}
}

func TestBlob_ReadAt(t *testing.T) {
	client := new(MockS3Client)
	b := &blob{client: client, bucket: "b", key: "k", size: 10}

	client.On("GetObject", mock.Anything, rangeIs("bytes=0-4")).Return(body("hello"), nil).Once()
	buf := make([]byte, 5)
	n, err := b.ReadAt(t.Context(), buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(buf))

	// A read running past the end is clipped and reports EOF.
	client.On("GetObject", mock.Anything, rangeIs("bytes=7-9")).Return(body("rld"), nil).Once()
	buf = make([]byte, 8)
	n, err = b.ReadAt(t.Context(), buf, 7)
	require.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 3, n)
	assert.Equal(t, "rld", string(buf[:n]))

	n, err = b.ReadAt(t.Context(), buf, 10)
	require.ErrorIs(t, err, io.EOF)
	assert.Zero(t, n)

	// A short response is an EOF, not silent success.
	client.On("GetObject", mock.Anything, rangeIs("bytes=0-3")).Return(body("he"), nil).Once()
	n, err = b.ReadAt(t.Context(), buf[:4], 0)
	require.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 2, n)

	client.AssertExpectations(t)
}

func TestBlob_ReadRange(t *testing.T) {
	client := new(MockS3Client)
	b := &blob{client: client, bucket: "b", key: "k", size: 10}

	client.On("GetObject", mock.Anything, rangeIs("bytes=2-9")).Return(body("llo worl"), nil).Once()
	r, err := b.ReadRange(t.Context(), 2, 100)
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "llo worl", string(got))

	r, err = b.ReadRange(t.Context(), 10, 5)
	require.NoError(t, err)
	got, err = io.ReadAll(r)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_Create(t *testing.T) {
	client := new(MockS3Client)
	store := NewStore(client, "test-bucket", WithPrefix("kb"))

	var uploaded []byte
	client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return *in.Key == "kb/en/00000001.lgdz" && in.ChecksumAlgorithm == types.ChecksumAlgorithmCrc32c
	})).Run(func(args mock.Arguments) {
		in := args.Get(1).(*s3.PutObjectInput)
		uploaded, _ = io.ReadAll(in.Body)
	}).Return(&s3.PutObjectOutput{}, nil).Once()

	w, err := store.Create(t.Context(), "en/00000001.lgdz")
	require.NoError(t, err)
	_, err = w.Write([]byte("compressed "))
	require.NoError(t, err)
	_, err = w.Write([]byte("knowledge base"))
	require.NoError(t, err)
	require.NoError(t, w.Sync())
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	assert.Equal(t, "compressed knowledge base", string(uploaded))
	_, err = w.Write([]byte("late"))
	require.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestStore_CreateAbort(t *testing.T) {
	client := new(MockS3Client)
	store := NewStore(client, "test-bucket")

	w, err := store.Create(t.Context(), "en/00000001.lgdz")
	require.NoError(t, err)
	require.NoError(t, w.(*writableBlob).Abort())
	require.ErrorIs(t, w.Close(), context.Canceled)
	client.AssertNotCalled(t, "PutObject", mock.Anything, mock.Anything)
}

func TestEncodeCRC32C(t *testing.T) {
	assert.Equal(t, "AAAAAA==", encodeCRC32C(0))
	assert.Equal(t, "ipE2qg==", encodeCRC32C(0x8a9136aa))
}

package wordindex

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/lingodb/model"
	"github.com/hupe1980/lingodb/testutil"
)

type wordList []string

func (w wordList) Word(i int) string { return w[i] }

func open(t *testing.T, words []string) *Index {
	t.Helper()
	data, err := Build(words)
	require.NoError(t, err)
	idx, err := Open(data, uint32(len(words)))
	require.NoError(t, err)
	require.NoError(t, idx.Verify(wordList(words)))
	return idx
}

func TestBucketCount(t *testing.T) {
	assert.Equal(t, 8, BucketCount(0))
	assert.Equal(t, 8, BucketCount(5))
	assert.Equal(t, 16, BucketCount(6))
	for n := range 2000 {
		nb := BucketCount(n)
		assert.Zero(t, nb&(nb-1), "power of two")
		assert.LessOrEqual(t, n*MaxLoadDen, nb*MaxLoadNum)
		assert.Less(t, n, nb)
	}
}

func TestIndex_Lookup(t *testing.T) {
	words := []string{"tech", "technical", "technology", "tech", "technique", "", "técnico"}
	idx := open(t, words)

	assert.Equal(t, []model.NodeID{1, 4}, idx.Lookup("tech", wordList(words), nil))
	assert.Equal(t, []model.NodeID{3}, idx.Lookup("technology", wordList(words), nil))
	assert.Equal(t, []model.NodeID{6}, idx.Lookup("", wordList(words), nil))
	assert.Equal(t, []model.NodeID{7}, idx.Lookup("técnico", wordList(words), nil))
	assert.Empty(t, idx.Lookup("techn", wordList(words), nil))
	assert.Empty(t, idx.Lookup("TECH", wordList(words), nil))

	st := idx.Stats()
	assert.Equal(t, 6, st.Entries)
	assert.Equal(t, 16, st.Buckets)
}

func TestIndex_Large(t *testing.T) {
	words := make([]string, 5000)
	for i := range words {
		words[i] = testutil.Word(i % 1700)
	}
	idx := open(t, words)

	for i := range 1700 {
		got := idx.Lookup(testutil.Word(i), wordList(words), nil)
		require.NotEmpty(t, got)
		for j, id := range got {
			assert.Equal(t, testutil.Word(i), words[id-1])
			if j > 0 {
				assert.Less(t, got[j-1], id)
			}
		}
	}
	assert.Empty(t, idx.Lookup("missing", wordList(words), nil))
}

func TestIndex_Empty(t *testing.T) {
	idx := open(t, nil)
	assert.Empty(t, idx.Lookup("x", wordList(nil), nil))
}

func TestIndex_HashCollisionsResolvedByWord(t *testing.T) {
	words := []string{"alpha", "beta"}
	data, err := Build(words)
	require.NoError(t, err)
	idx, err := Open(data, 2)
	require.NoError(t, err)

	// A different word list with the same node count: stored hashes no longer
	// match, and lookups must not return the other word's postings.
	other := wordList{"gamma", "beta"}
	assert.Error(t, idx.Verify(other))
	assert.Empty(t, idx.Lookup("alpha", other, nil))
	assert.Equal(t, []model.NodeID{2}, idx.Lookup("beta", other, nil))
}

func TestOpen_Corrupt(t *testing.T) {
	words := []string{"a", "b", "a", "c"}
	data, err := Build(words)
	require.NoError(t, err)

	corrupt := func(mut func([]byte)) []byte {
		c := append([]byte(nil), data...)
		mut(c)
		return c
	}
	postings := len(data) - 16

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"short", data[:8], model.ErrTruncated},
		{"not power of two", corrupt(func(b []byte) { binary.LittleEndian.PutUint32(b[0:], 12) }), model.ErrInvalidFormat},
		{"overloaded", corrupt(func(b []byte) { binary.LittleEndian.PutUint32(b[4:], 7) }), model.ErrInvalidFormat},
		{"truncated postings", data[:len(data)-4], model.ErrTruncated},
		{"posting out of range", corrupt(func(b []byte) { binary.LittleEndian.PutUint32(b[postings:], 9) }), model.ErrInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(tt.data, uint32(len(words)))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

package slang

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/lingodb/model"
)

var bitmapPool = sync.Pool{
	New: func() any { return roaring.New() },
}

// getBitmap returns an empty bitmap from the pool.
func getBitmap() *roaring.Bitmap {
	rb := bitmapPool.Get().(*roaring.Bitmap)
	rb.Clear()
	return rb
}

// putBitmap clears rb and returns it to the pool.
func putBitmap(rb *roaring.Bitmap) {
	if rb == nil {
		return
	}
	rb.Clear()
	bitmapPool.Put(rb)
}

// scratchCap bounds the scratch buffers kept in the pool.
const scratchCap = 1 << 16

var scratchPool = sync.Pool{
	New: func() any {
		s := make([]model.NodeID, 0, 256)
		return &s
	},
}

func getScratch() *[]model.NodeID {
	return scratchPool.Get().(*[]model.NodeID)
}

func putScratch(s *[]model.NodeID) {
	if cap(*s) > scratchCap {
		return
	}
	*s = (*s)[:0]
	scratchPool.Put(s)
}

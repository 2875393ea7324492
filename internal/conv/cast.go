package conv

import (
	"fmt"
	"math"

	"github.com/hupe1980/lingodb/model"
)

// IntToUint32 narrows v to uint32 for a field named what.
func IntToUint32(what string, v int) (uint32, error) {
	if v < 0 || uint64(v) > math.MaxUint32 {
		return 0, fmt.Errorf("%s %d does not fit in 32 bits: %w", what, v, model.ErrCapacityExceeded)
	}
	return uint32(v), nil
}

// IntToUint16 narrows v to uint16 for a field named what.
func IntToUint16(what string, v int) (uint16, error) {
	if v < 0 || v > math.MaxUint16 {
		return 0, fmt.Errorf("%s %d does not fit in 16 bits: %w", what, v, model.ErrCapacityExceeded)
	}
	return uint16(v), nil
}

// Uint64ToInt converts an on-disk offset or size into an index.
func Uint64ToInt(v uint64) (int, error) {
	if v > uint64(math.MaxInt) {
		return 0, fmt.Errorf("value %d exceeds the address space: %w", v, model.ErrOutOfBounds)
	}
	return int(v), nil
}

package lingodb

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/hupe1980/lingodb/blobstore"
	"github.com/hupe1980/lingodb/model"
	"github.com/hupe1980/lingodb/reader"
	"github.com/hupe1980/lingodb/slang"
)

// Error kinds. Every error returned by this package satisfies errors.Is for
// at most one of them, plus any more specific error it wraps.
var (
	ErrInvalidFormat         = model.ErrInvalidFormat
	ErrVersionMismatch       = model.ErrVersionMismatch
	ErrChecksumFailure       = model.ErrChecksumFailure
	ErrTruncated             = model.ErrTruncated
	ErrNotFound              = model.ErrNotFound
	ErrOutOfBounds           = model.ErrOutOfBounds
	ErrDuplicateWordPosition = model.ErrDuplicateWordPosition
	ErrUnknownNode           = model.ErrUnknownNode
	ErrInvalidStrength       = model.ErrInvalidStrength
	ErrCapacityExceeded      = model.ErrCapacityExceeded
	ErrResourceExhausted     = model.ErrResourceExhausted
	ErrCancelled             = model.ErrCancelled
	ErrIo                    = model.ErrIo
	ErrInvalidArgument       = model.ErrInvalidArgument
	ErrInvalidProgram        = slang.ErrInvalidProgram

	// ErrClosed is returned by a DB after Close.
	ErrClosed = errors.New("lingodb: closed")
)

func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, reader.ErrClosed) && !errors.Is(err, ErrClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}

	// Cancellation unification.
	if (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) && !errors.Is(err, ErrCancelled) {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	// Blob stores report missing objects as fs.ErrNotExist.
	if errors.Is(err, blobstore.ErrNotFound) && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrIo) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	// Remaining file-system errors are I/O failures.
	var pe *fs.PathError
	if errors.As(err, &pe) && !errors.Is(err, ErrIo) {
		return fmt.Errorf("%w: %w", ErrIo, err)
	}

	return err
}

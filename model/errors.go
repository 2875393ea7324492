package model

import "errors"

var (
	// ErrInvalidFormat is returned when the magic, endianness, alignment or a size is wrong.
	ErrInvalidFormat = errors.New("invalid format")

	// ErrVersionMismatch is returned when the file's major version (or a newer minor) is unsupported.
	ErrVersionMismatch = errors.New("version mismatch")

	// ErrChecksumFailure is returned when a recorded checksum does not match the data.
	ErrChecksumFailure = errors.New("checksum failure")

	// ErrTruncated is returned when the data ends before a declared section does.
	ErrTruncated = errors.New("truncated")

	// ErrNotFound is returned when a node id or word is absent.
	ErrNotFound = errors.New("not found")

	// ErrOutOfBounds is returned when an offset/length falls outside its section.
	ErrOutOfBounds = errors.New("out of bounds")

	// ErrDuplicateWordPosition is returned when the same word is added twice
	// with the same layer at the exact same position.
	ErrDuplicateWordPosition = errors.New("duplicate word at position")

	// ErrUnknownNode is returned when a connection references an id that was never issued.
	ErrUnknownNode = errors.New("unknown node")

	// ErrInvalidStrength is returned for a non-finite strength or one outside [0, 1].
	ErrInvalidStrength = errors.New("invalid connection strength")

	// ErrCapacityExceeded is returned when a count overflows its on-disk width.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrResourceExhausted is returned when a query exceeds a per-program cap.
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrCancelled is returned when a query is aborted cooperatively.
	ErrCancelled = errors.New("cancelled")

	// ErrIo wraps underlying file or mapping errors.
	ErrIo = errors.New("i/o error")

	// ErrInvalidArgument is returned for undefined enum values or non-finite positions.
	ErrInvalidArgument = errors.New("invalid argument")
)

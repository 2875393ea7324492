package reader

import (
	"log/slog"

	"github.com/hupe1980/lingodb/internal/mmap"
)

// AccessPattern is an access hint for the mapped file.
type AccessPattern = mmap.AccessPattern

// Access hints.
const (
	AccessDefault    = mmap.AccessDefault
	AccessSequential = mmap.AccessSequential
	AccessRandom     = mmap.AccessRandom
	AccessWillNeed   = mmap.AccessWillNeed
)

// Option configures how a Reader is opened.
type Option func(*options)

type options struct {
	verifyChecksums bool
	access          AccessPattern
	logger          *slog.Logger
}

func defaultOptions() options {
	return options{
		verifyChecksums: true,
		access:          AccessRandom,
		logger:          slog.New(slog.DiscardHandler),
	}
}

// WithVerifyChecksums toggles section checksum verification at open.
// Enabled by default. The header checksum in the trailer is always checked.
func WithVerifyChecksums(verify bool) Option {
	return func(o *options) {
		o.verifyChecksums = verify
	}
}

// WithAccessPattern sets the madvise hint applied to a mapped file.
// Defaults to AccessRandom.
func WithAccessPattern(p AccessPattern) Option {
	return func(o *options) {
		o.access = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

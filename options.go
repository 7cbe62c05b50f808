package fcs

import (
	"runtime"

	"go.uber.org/zap"
)

const (
	// DefaultMaxFileSize is the largest file read unless WithMaxFileSize is given.
	DefaultMaxFileSize int64 = 2 << 30

	// DefaultMaxEvents is the largest $TOT decoded unless WithMaxEvents is given.
	DefaultMaxEvents = 100_000_000
)

type options struct {
	logger      *zap.Logger
	maxFileSize int64
	maxEvents   int
	workers     int
}

func defaultOptions() options {
	return options{
		logger:      zap.NewNop(),
		maxFileSize: DefaultMaxFileSize,
		maxEvents:   DefaultMaxEvents,
		workers:     runtime.GOMAXPROCS(0),
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Option configures a Decoder or a File.
type Option func(*options)

// WithLogger sets the logger. Nothing is logged by default.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.logger = log
		}
	}
}

// WithMaxFileSize sets the maximum number of bytes accepted.
// Larger inputs fail with ErrTooLarge.
func WithMaxFileSize(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxFileSize = n
		}
	}
}

// WithMaxEvents sets the maximum $TOT accepted.
// Data sets with more events fail with ErrTooLarge.
func WithMaxEvents(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxEvents = n
		}
	}
}

// WithWorkers sets the number of goroutines decoding the DATA segment.
// 1 decodes on the calling goroutine.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

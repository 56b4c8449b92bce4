package job

import "time"

// Options configures per-job behavior at creation time.
type Options struct {
	// MaxRetries is the ceiling on execution attempts before the job is
	// dead-lettered.
	MaxRetries int

	// clock supplies creation timestamps; overridable in tests.
	clock func() time.Time
}

// DefaultOptions returns Options with sensible defaults.
func DefaultOptions() Options {
	return Options{MaxRetries: 3}
}

func (o Options) now() time.Time {
	if o.clock != nil {
		return o.clock()
	}
	return time.Now()
}

// Option is a functional option for configuring a new job.
type Option func(*Options)

// WithMaxRetries sets the retry budget for the job.
func WithMaxRetries(n int) Option {
	return func(o *Options) { o.MaxRetries = n }
}

// WithClock overrides the timestamp source. Intended for tests that need
// deterministic created_at ordering.
func WithClock(now func() time.Time) Option {
	return func(o *Options) { o.clock = now }
}

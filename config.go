package queued

import "time"

// Config holds configuration for the worker pool and engine.
type Config struct {
	// Concurrency is the number of concurrent workers claiming jobs.
	Concurrency int

	// PollInterval is how long a worker idles when no pending job exists.
	PollInterval time.Duration

	// ShutdownTimeout is the maximum time to wait for in-flight jobs on
	// graceful shutdown before their contexts are cancelled.
	ShutdownTimeout time.Duration

	// CommandTimeout bounds a single command execution. Zero disables the
	// deadline.
	CommandTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:     4,
		PollInterval:    5 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		CommandTimeout:  0,
	}
}

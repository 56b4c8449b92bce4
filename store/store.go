// Package store defines the aggregate persistence interface. The job store
// contract lives in the job package; this package adds lifecycle operations
// every backend provides. Backends: Memory, File, SQLite (bun), PostgreSQL
// (pgx), and Redis.
package store

import (
	"context"

	"github.com/queued-dev/queued/job"
)

// Store is the aggregate persistence interface a backend implements.
type Store interface {
	job.Store

	// Migrate prepares the backing storage (creates schema, initializes
	// files). No-op for schemaless backends.
	Migrate(ctx context.Context) error

	// Ping checks that the backing storage is reachable.
	Ping(ctx context.Context) error

	// Close releases resources owned by the store.
	Close() error
}

// Package queued provides a durable, concurrent background job queue.
// Jobs are shell commands with caller-assigned IDs; they are persisted in a
// pluggable store, claimed atomically by a pool of workers, executed, and
// retried with a bounded budget before being dead-lettered.
//
// Queued is designed as a library, not a service. Import it, configure a
// store, and enqueue jobs:
//
//	s, err := file.Open("jobs.json")
//	eng, err := engine.New(s, engine.WithConcurrency(4))
//	_, err = eng.Enqueue(ctx, "job1", "echo hello")
//
// # Architecture
//
// The job state machine and claim atomicity live entirely in the store:
// Enqueue inserts a pending record, ClaimNext atomically moves the oldest
// pending record to processing for exactly one caller, and Complete applies
// the retry policy and persists the resulting transition. Workers hold no
// lock across a cycle; correctness depends only on those two critical
// sections. Backends: in-memory, JSON file, SQLite (bun), PostgreSQL (pgx),
// and Redis.
package queued

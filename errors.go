package queued

import "errors"

var (
	// Store errors.
	ErrNoStore = errors.New("queued: no store configured")
	ErrStorage = errors.New("queued: storage failure")

	// Validation errors.
	ErrInvalidJob  = errors.New("queued: invalid job: id and command are required")
	ErrDuplicateID = errors.New("queued: duplicate job id")

	// Lookup errors.
	ErrNotFound = errors.New("queued: job not found")

	// State errors.
	ErrInvalidTransition = errors.New("queued: invalid state transition")
	ErrUnknownState      = errors.New("queued: unknown job state")
)

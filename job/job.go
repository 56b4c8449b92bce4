// Package job defines the job record, its lifecycle state machine, the
// retry policy, and the persistence contract every store backend implements.
package job

import (
	"fmt"
	"strings"
	"time"

	"github.com/queued-dev/queued"
)

// State represents the lifecycle state of a job.
type State string

const (
	// StatePending means the job is waiting to be claimed by a worker.
	StatePending State = "pending"
	// StateProcessing means exactly one worker holds the job and is
	// executing its command.
	StateProcessing State = "processing"
	// StateCompleted means the command exited successfully. Terminal.
	StateCompleted State = "completed"
	// StateFailed marks a failed execution while the retry policy decides
	// between pending and dead. It is resolved inside Complete and is never
	// observable as a stored state.
	StateFailed State = "failed"
	// StateDead means the job exhausted its retry budget. Terminal.
	StateDead State = "dead"
)

// Terminal reports whether no further transition is valid out of s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateDead
}

// ParseState converts a user-supplied state name into a State.
func ParseState(s string) (State, error) {
	switch State(strings.ToLower(s)) {
	case StatePending, StateProcessing, StateCompleted, StateFailed, StateDead:
		return State(strings.ToLower(s)), nil
	default:
		return "", fmt.Errorf("%w: %q", queued.ErrUnknownState, s)
	}
}

// States lists all states in lifecycle order. Used for stable summary output.
func States() []State {
	return []State{StatePending, StateProcessing, StateCompleted, StateFailed, StateDead}
}

// Job is one unit of work: a shell command with a caller-assigned identity
// and a bounded retry budget. ID and Command are immutable after creation.
//
// The JSON field names are a compatibility contract for tools that read the
// persisted collection directly; do not rename them.
type Job struct {
	ID         string    `json:"id"`
	Command    string    `json:"command"`
	State      State     `json:"state"`
	Attempts   int       `json:"attempts"`
	MaxRetries int       `json:"max_retries"`
	LastError  string    `json:"last_error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// New creates a pending job. It fails with queued.ErrInvalidJob when id or
// command is empty, or when the retry budget is not positive.
//
// Timestamps are truncated to whole seconds in UTC so that a persisted
// record round-trips field-for-field through every backend's second-precision
// wire format.
func New(jobID, command string, opts ...Option) (*Job, error) {
	if jobID == "" || strings.TrimSpace(command) == "" {
		return nil, queued.ErrInvalidJob
	}

	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.MaxRetries <= 0 {
		return nil, fmt.Errorf("%w: max_retries must be positive", queued.ErrInvalidJob)
	}

	now := o.now().UTC().Truncate(time.Second)
	return &Job{
		ID:         jobID,
		Command:    command,
		State:      StatePending,
		Attempts:   0,
		MaxRetries: o.MaxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Clone returns an independent copy. Stores hand out clones so callers can
// never mutate persisted state through a shared pointer.
func (j *Job) Clone() *Job {
	cp := *j
	return &cp
}

// Outcome is the result of one command execution.
type Outcome struct {
	// Success is true when the process exited with code zero.
	Success bool
	// ExitCode is the process exit code; -1 when the process never launched.
	ExitCode int
	// Detail carries stderr text or the launch error.
	Detail string
}

// Succeeded returns the successful outcome.
func Succeeded() Outcome {
	return Outcome{Success: true}
}

// Failed returns a failure outcome with the given exit code and detail.
func Failed(exitCode int, detail string) Outcome {
	return Outcome{Success: false, ExitCode: exitCode, Detail: detail}
}

func (o Outcome) String() string {
	if o.Success {
		return "success"
	}
	return fmt.Sprintf("failure (exit %d): %s", o.ExitCode, o.Detail)
}

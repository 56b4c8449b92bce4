package job

import (
	"time"

	"github.com/queued-dev/queued"
)

// Resolve applies the retry policy to a processing job in place, given the
// outcome of one execution. Every store's Complete funnels through here so
// the state machine is written exactly once.
//
// Transitions, for a job with attempts=a and max_retries=m:
//
//	Success            → completed, attempts unchanged
//	Failure, a+1 <  m  → pending (eligible for re-claim), attempts=a+1
//	Failure, a+1 >= m  → dead, attempts=a+1
//
// completed and dead are terminal; resolving a job in any state other than
// processing fails with queued.ErrInvalidTransition and leaves the job
// unmodified.
func Resolve(j *Job, out Outcome, now time.Time) error {
	if j.State != StateProcessing {
		return queued.ErrInvalidTransition
	}

	if out.Success {
		j.State = StateCompleted
	} else {
		j.Attempts++
		j.LastError = out.Detail
		if j.Attempts < j.MaxRetries {
			j.State = StatePending
		} else {
			j.State = StateDead
		}
	}

	j.UpdatedAt = now.UTC().Truncate(time.Second)
	return nil
}

// Claimable reports whether the job may be claimed by a worker.
func Claimable(j *Job) bool {
	return j.State == StatePending
}

// MarkClaimed transitions a pending job to processing. Stores call this
// inside their claim critical section.
func MarkClaimed(j *Job, now time.Time) error {
	if !Claimable(j) {
		return queued.ErrInvalidTransition
	}
	j.State = StateProcessing
	j.UpdatedAt = now.UTC().Truncate(time.Second)
	return nil
}

// MarkRequeued transitions a dead job back to pending with a fresh retry
// budget. This is the dead-letter replay path; it is the only sanctioned way
// a job leaves the dead state.
func MarkRequeued(j *Job, now time.Time) error {
	if j.State != StateDead {
		return queued.ErrInvalidTransition
	}
	j.State = StatePending
	j.Attempts = 0
	j.LastError = ""
	j.UpdatedAt = now.UTC().Truncate(time.Second)
	return nil
}

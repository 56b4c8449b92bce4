package file

import (
	"fmt"
	"time"

	"github.com/queued-dev/queued/job"
)

// timeLayout is the on-disk timestamp format: UTC, second precision.
// It is part of the compatibility contract for tools reading the file.
const timeLayout = "2006-01-02T15:04:05Z"

// jobRecord is the persisted representation of one job. Field names and
// casing are a compatibility contract; do not rename.
type jobRecord struct {
	ID         string `json:"id"`
	Command    string `json:"command"`
	State      string `json:"state"`
	Attempts   int    `json:"attempts"`
	MaxRetries int    `json:"max_retries"`
	LastError  string `json:"last_error,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

func toRecord(j *job.Job) jobRecord {
	return jobRecord{
		ID:         j.ID,
		Command:    j.Command,
		State:      string(j.State),
		Attempts:   j.Attempts,
		MaxRetries: j.MaxRetries,
		LastError:  j.LastError,
		CreatedAt:  j.CreatedAt.UTC().Format(timeLayout),
		UpdatedAt:  j.UpdatedAt.UTC().Format(timeLayout),
	}
}

func fromRecord(r jobRecord) (*job.Job, error) {
	createdAt, err := time.Parse(timeLayout, r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("queued/file: job %q: parse created_at %q: %w", r.ID, r.CreatedAt, err)
	}
	updatedAt, err := time.Parse(timeLayout, r.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("queued/file: job %q: parse updated_at %q: %w", r.ID, r.UpdatedAt, err)
	}

	return &job.Job{
		ID:         r.ID,
		Command:    r.Command,
		State:      job.State(r.State),
		Attempts:   r.Attempts,
		MaxRetries: r.MaxRetries,
		LastError:  r.LastError,
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
	}, nil
}

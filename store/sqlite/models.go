package sqlite

import (
	"github.com/uptrace/bun"

	"github.com/queued-dev/queued/job"
)

// jobModel mirrors the queued_jobs table.
type jobModel struct {
	bun.BaseModel `bun:"table:queued_jobs"`

	ID         string `bun:"id,pk"`
	Command    string `bun:"command,notnull"`
	State      string `bun:"state,notnull"`
	Attempts   int    `bun:"attempts,notnull"`
	MaxRetries int    `bun:"max_retries,notnull"`
	LastError  string `bun:"last_error"`
	CreatedAt  string `bun:"created_at,notnull"`
	UpdatedAt  string `bun:"updated_at,notnull"`
}

func toJobModel(j *job.Job) *jobModel {
	return &jobModel{
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

func fromJobModel(m *jobModel) (*job.Job, error) {
	createdAt, err := parseTime(m.CreatedAt)
	if err != nil {
		return nil, err
	}
	updatedAt, err := parseTime(m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &job.Job{
		ID:         m.ID,
		Command:    m.Command,
		State:      job.State(m.State),
		Attempts:   m.Attempts,
		MaxRetries: m.MaxRetries,
		LastError:  m.LastError,
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
	}, nil
}

package redis

import (
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/queued-dev/queued/job"
)

// jobRecord is the msgpack wire form of a job. Timestamps travel as Unix
// seconds; the in-memory records are already second-precision UTC so the
// round-trip is lossless.
type jobRecord struct {
	ID         string `msgpack:"id"`
	Command    string `msgpack:"command"`
	State      string `msgpack:"state"`
	Attempts   int    `msgpack:"attempts"`
	MaxRetries int    `msgpack:"max_retries"`
	LastError  string `msgpack:"last_error"`
	CreatedAt  int64  `msgpack:"created_at"`
	UpdatedAt  int64  `msgpack:"updated_at"`
}

func encodeJob(j *job.Job) ([]byte, error) {
	return msgpack.Marshal(jobRecord{
		ID:         j.ID,
		Command:    j.Command,
		State:      string(j.State),
		Attempts:   j.Attempts,
		MaxRetries: j.MaxRetries,
		LastError:  j.LastError,
		CreatedAt:  j.CreatedAt.UTC().Unix(),
		UpdatedAt:  j.UpdatedAt.UTC().Unix(),
	})
}

func decodeJob(data []byte) (*job.Job, error) {
	var rec jobRecord
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &job.Job{
		ID:         rec.ID,
		Command:    rec.Command,
		State:      job.State(rec.State),
		Attempts:   rec.Attempts,
		MaxRetries: rec.MaxRetries,
		LastError:  rec.LastError,
		CreatedAt:  time.Unix(rec.CreatedAt, 0).UTC(),
		UpdatedAt:  time.Unix(rec.UpdatedAt, 0).UTC(),
	}, nil
}

package job_test

import (
	"errors"
	"testing"
	"time"

	"github.com/queued-dev/queued"
	"github.com/queued-dev/queued/job"
)

func TestNew_Defaults(t *testing.T) {
	j, err := job.New("job1", "echo hello")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if j.State != job.StatePending {
		t.Errorf("State = %q, want %q", j.State, job.StatePending)
	}
	if j.Attempts != 0 {
		t.Errorf("Attempts = %d, want 0", j.Attempts)
	}
	if j.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", j.MaxRetries)
	}
	if !j.CreatedAt.Equal(j.UpdatedAt) {
		t.Errorf("CreatedAt %v != UpdatedAt %v", j.CreatedAt, j.UpdatedAt)
	}
	if j.CreatedAt.Location() != time.UTC {
		t.Errorf("CreatedAt not UTC: %v", j.CreatedAt.Location())
	}
	if j.CreatedAt.Nanosecond() != 0 {
		t.Errorf("CreatedAt not truncated to seconds: %v", j.CreatedAt)
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		command string
		opts    []job.Option
	}{
		{"empty id", "", "echo hi", nil},
		{"empty command", "job1", "", nil},
		{"whitespace command", "job1", "   ", nil},
		{"zero retries", "job1", "echo hi", []job.Option{job.WithMaxRetries(0)}},
		{"negative retries", "job1", "echo hi", []job.Option{job.WithMaxRetries(-1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := job.New(tt.id, tt.command, tt.opts...)
			if !errors.Is(err, queued.ErrInvalidJob) {
				t.Errorf("New() error = %v, want ErrInvalidJob", err)
			}
		})
	}
}

func TestParseState(t *testing.T) {
	for _, s := range job.States() {
		got, err := job.ParseState(string(s))
		if err != nil {
			t.Errorf("ParseState(%q) error: %v", s, err)
		}
		if got != s {
			t.Errorf("ParseState(%q) = %q", s, got)
		}
	}

	if _, err := job.ParseState("bogus"); !errors.Is(err, queued.ErrUnknownState) {
		t.Errorf("ParseState(\"bogus\") error = %v, want ErrUnknownState", err)
	}

	// Case-insensitive per CLI usage.
	if got, err := job.ParseState("Pending"); err != nil || got != job.StatePending {
		t.Errorf("ParseState(\"Pending\") = %q, %v", got, err)
	}
}

func TestClone_IsIndependent(t *testing.T) {
	j, _ := job.New("job1", "echo hi")
	cp := j.Clone()
	cp.State = job.StateDead
	cp.Attempts = 99

	if j.State != job.StatePending || j.Attempts != 0 {
		t.Error("mutating the clone changed the original")
	}
}

func TestTerminal(t *testing.T) {
	terminal := map[job.State]bool{
		job.StatePending:    false,
		job.StateProcessing: false,
		job.StateCompleted:  true,
		job.StateFailed:     false,
		job.StateDead:       true,
	}
	for s, want := range terminal {
		if got := s.Terminal(); got != want {
			t.Errorf("%q.Terminal() = %v, want %v", s, got, want)
		}
	}
}

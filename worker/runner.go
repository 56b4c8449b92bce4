// Package worker provides the execution engine — a CommandRunner that
// spawns job commands, an Executor that drives a claimed job through
// middleware to completion, and a Pool of concurrent workers polling the
// store.
package worker

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	"github.com/queued-dev/queued/job"
)

// stderrLimit caps how much captured stderr is kept as failure detail.
const stderrLimit = 4 << 10

// CommandRunner executes a job's shell command and reports the outcome.
type CommandRunner interface {
	Run(ctx context.Context, command string) job.Outcome
}

// ShellRunner runs commands through `sh -c`. Cancelling the context kills
// the spawned process.
type ShellRunner struct {
	// Shell overrides the shell binary. Defaults to "sh".
	Shell string
}

var _ CommandRunner = (*ShellRunner)(nil)

// Run spawns the command and waits for it. A non-zero exit maps to a
// failure outcome carrying the exit code and captured stderr. A command
// that cannot be launched at all (shell missing, fork failure) is also a
// failure outcome — exit code -1 — never a Go error, so launch problems
// count against the retry budget like any other failure.
func (r *ShellRunner) Run(ctx context.Context, command string) job.Outcome {
	shell := r.Shell
	if shell == "" {
		shell = "sh"
	}

	cmd := exec.CommandContext(ctx, shell, "-c", command)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return job.Succeeded()
	}

	detail := strings.TrimSpace(stderr.String())
	if len(detail) > stderrLimit {
		detail = detail[:stderrLimit]
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if detail == "" {
			detail = exitErr.String()
		}
		return job.Failed(exitErr.ExitCode(), detail)
	}

	// Launch failure: the process never ran.
	if detail == "" {
		detail = err.Error()
	}
	return job.Failed(-1, detail)
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/queued-dev/queued"
	"github.com/queued-dev/queued/job"
)

const jobColumns = `id, command, state, attempts, max_retries, last_error, created_at, updated_at`

// Enqueue inserts a new job. A unique violation on the primary key maps
// to queued.ErrDuplicateID.
func (s *Store) Enqueue(ctx context.Context, j *job.Job) error {
	if j == nil || j.ID == "" || j.Command == "" {
		return fmt.Errorf("queued/postgres: enqueue: %w", queued.ErrInvalidJob)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO queued_jobs (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		j.ID, j.Command, string(j.State), j.Attempts, j.MaxRetries,
		j.LastError, j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("queued/postgres: enqueue %q: %w", j.ID, queued.ErrDuplicateID)
		}
		return storageError("enqueue", err)
	}
	return nil
}

// ClaimNext atomically claims the oldest pending job. FOR UPDATE SKIP
// LOCKED guarantees two concurrent claimers never receive the same row.
// Returns (nil, nil) when no pending job exists.
func (s *Store) ClaimNext(ctx context.Context) (*job.Job, error) {
	now := time.Now().UTC().Truncate(time.Second)
	row := s.pool.QueryRow(ctx, `
		UPDATE queued_jobs SET state = 'processing', updated_at = $1
		WHERE id = (
			SELECT id FROM queued_jobs
			WHERE state = 'pending'
			ORDER BY created_at ASC, id ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+jobColumns,
		now,
	)
	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, storageError("claim next", err)
	}
	return j, nil
}

// Complete applies the execution outcome to a processing job inside a
// transaction. The row is locked, the transition is computed in Go, and
// the result is written back, so a completion either fully lands or the
// prior state survives.
func (s *Store) Complete(ctx context.Context, jobID string, out job.Outcome) (*job.Job, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, storageError("begin complete", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM queued_jobs WHERE id = $1 FOR UPDATE`, jobID)
	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("queued/postgres: complete %q: %w", jobID, queued.ErrNotFound)
		}
		return nil, storageError("complete", err)
	}

	if err := job.Resolve(j, out, time.Now()); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE queued_jobs
		SET state = $2, attempts = $3, last_error = $4, updated_at = $5
		WHERE id = $1`,
		j.ID, string(j.State), j.Attempts, j.LastError, j.UpdatedAt,
	)
	if err != nil {
		return nil, storageError("complete", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, storageError("commit complete", err)
	}
	return j, nil
}

// Get returns a job by ID.
func (s *Store) Get(ctx context.Context, jobID string) (*job.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM queued_jobs WHERE id = $1`, jobID)
	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("queued/postgres: get %q: %w", jobID, queued.ErrNotFound)
		}
		return nil, storageError("get", err)
	}
	return j, nil
}

// Requeue moves a dead job back to pending with a fresh attempt budget.
func (s *Store) Requeue(ctx context.Context, jobID string) (*job.Job, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, storageError("begin requeue", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM queued_jobs WHERE id = $1 FOR UPDATE`, jobID)
	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("queued/postgres: requeue %q: %w", jobID, queued.ErrNotFound)
		}
		return nil, storageError("requeue", err)
	}

	if err := job.MarkRequeued(j, time.Now()); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE queued_jobs
		SET state = $2, attempts = $3, last_error = $4, updated_at = $5
		WHERE id = $1`,
		j.ID, string(j.State), j.Attempts, j.LastError, j.UpdatedAt,
	)
	if err != nil {
		return nil, storageError("requeue", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, storageError("commit requeue", err)
	}
	return j, nil
}

// Delete removes a job by ID.
func (s *Store) Delete(ctx context.Context, jobID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM queued_jobs WHERE id = $1`, jobID)
	if err != nil {
		return storageError("delete", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("queued/postgres: delete %q: %w", jobID, queued.ErrNotFound)
	}
	return nil
}

// List returns jobs ordered by created_at then id, optionally filtered
// by state.
func (s *Store) List(ctx context.Context, state job.State, opts job.ListOpts) ([]*job.Job, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = -1 // NULL-equivalent below
	}

	var (
		rows pgx.Rows
		err  error
	)
	if state == "" {
		rows, err = s.pool.Query(ctx, `
			SELECT `+jobColumns+` FROM queued_jobs
			ORDER BY created_at ASC, id ASC
			LIMIT NULLIF($1, -1) OFFSET $2`,
			limit, opts.Offset,
		)
	} else {
		rows, err = s.pool.Query(ctx, `
			SELECT `+jobColumns+` FROM queued_jobs
			WHERE state = $1
			ORDER BY created_at ASC, id ASC
			LIMIT NULLIF($2, -1) OFFSET $3`,
			string(state), limit, opts.Offset,
		)
	}
	if err != nil {
		return nil, storageError("list", err)
	}
	return collectJobs(rows)
}

// Summary returns job counts per state. Every state appears in the map
// even when its count is zero.
func (s *Store) Summary(ctx context.Context) (map[job.State]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT state, COUNT(*) FROM queued_jobs GROUP BY state`)
	if err != nil {
		return nil, storageError("summary", err)
	}
	defer rows.Close()

	counts := make(map[job.State]int, len(job.States()))
	for _, st := range job.States() {
		counts[st] = 0
	}
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, storageError("summary", err)
		}
		counts[job.State(state)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("summary", err)
	}
	return counts, nil
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/queued-dev/queued"
	"github.com/queued-dev/queued/job"
)

// Enqueue inserts a new job. A primary-key collision maps to
// queued.ErrDuplicateID.
func (s *Store) Enqueue(ctx context.Context, j *job.Job) error {
	if j == nil || j.ID == "" || j.Command == "" {
		return fmt.Errorf("queued/sqlite: enqueue: %w", queued.ErrInvalidJob)
	}
	_, err := s.db.NewInsert().Model(toJobModel(j)).Exec(ctx)
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("queued/sqlite: enqueue %q: %w", j.ID, queued.ErrDuplicateID)
		}
		return storageError("enqueue", err)
	}
	return nil
}

// ClaimNext atomically claims the oldest pending job. The claim is a
// single UPDATE ... RETURNING statement, which SQLite executes under its
// write lock, so concurrent claimers never receive the same row. Returns
// (nil, nil) when no pending job exists.
func (s *Store) ClaimNext(ctx context.Context) (*job.Job, error) {
	m := new(jobModel)
	err := s.db.NewRaw(`
		UPDATE queued_jobs SET state = 'processing', updated_at = ?
		WHERE id = (
			SELECT id FROM queued_jobs
			WHERE state = 'pending'
			ORDER BY created_at ASC, id ASC
			LIMIT 1
		)
		RETURNING *`,
		nowString(),
	).Scan(ctx, m)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, storageError("claim next", err)
	}
	return fromJobModel(m)
}

// Complete applies the execution outcome to a processing job inside a
// transaction so a completion either fully lands or the prior state
// survives.
func (s *Store) Complete(ctx context.Context, jobID string, out job.Outcome) (*job.Job, error) {
	var resolved *job.Job
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		m := new(jobModel)
		err := tx.NewSelect().Model(m).Where("id = ?", jobID).Limit(1).Scan(ctx)
		if err != nil {
			if isNoRows(err) {
				return fmt.Errorf("queued/sqlite: complete %q: %w", jobID, queued.ErrNotFound)
			}
			return storageError("complete", err)
		}

		j, err := fromJobModel(m)
		if err != nil {
			return err
		}
		if err := job.Resolve(j, out, time.Now()); err != nil {
			return err
		}

		if _, err := tx.NewUpdate().Model(toJobModel(j)).WherePK().Exec(ctx); err != nil {
			return storageError("complete", err)
		}
		resolved = j
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

// Get returns a job by ID.
func (s *Store) Get(ctx context.Context, jobID string) (*job.Job, error) {
	m := new(jobModel)
	err := s.db.NewSelect().Model(m).Where("id = ?", jobID).Limit(1).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("queued/sqlite: get %q: %w", jobID, queued.ErrNotFound)
		}
		return nil, storageError("get", err)
	}
	return fromJobModel(m)
}

// Requeue moves a dead job back to pending with a fresh attempt budget.
func (s *Store) Requeue(ctx context.Context, jobID string) (*job.Job, error) {
	var requeued *job.Job
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		m := new(jobModel)
		err := tx.NewSelect().Model(m).Where("id = ?", jobID).Limit(1).Scan(ctx)
		if err != nil {
			if isNoRows(err) {
				return fmt.Errorf("queued/sqlite: requeue %q: %w", jobID, queued.ErrNotFound)
			}
			return storageError("requeue", err)
		}

		j, err := fromJobModel(m)
		if err != nil {
			return err
		}
		if err := job.MarkRequeued(j, time.Now()); err != nil {
			return err
		}

		if _, err := tx.NewUpdate().Model(toJobModel(j)).WherePK().Exec(ctx); err != nil {
			return storageError("requeue", err)
		}
		requeued = j
		return nil
	})
	if err != nil {
		return nil, err
	}
	return requeued, nil
}

// Delete removes a job by ID.
func (s *Store) Delete(ctx context.Context, jobID string) error {
	res, err := s.db.NewDelete().
		TableExpr("queued_jobs").
		Where("id = ?", jobID).
		Exec(ctx)
	if err != nil {
		return storageError("delete", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return fmt.Errorf("queued/sqlite: delete %q: %w", jobID, queued.ErrNotFound)
	}
	return nil
}

// List returns jobs ordered by created_at then id, optionally filtered
// by state.
func (s *Store) List(ctx context.Context, state job.State, opts job.ListOpts) ([]*job.Job, error) {
	var models []jobModel
	q := s.db.NewSelect().Model(&models)

	if state != "" {
		q = q.Where("state = ?", string(state))
	}
	q = q.Order("created_at ASC", "id ASC")

	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, storageError("list", err)
	}

	jobs := make([]*job.Job, 0, len(models))
	for i := range models {
		j, convErr := fromJobModel(&models[i])
		if convErr != nil {
			return nil, convErr
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// Summary returns job counts per state. Every state appears in the map
// even when its count is zero.
func (s *Store) Summary(ctx context.Context) (map[job.State]int, error) {
	var rows []struct {
		State string `bun:"state"`
		Count int    `bun:"count"`
	}
	err := s.db.NewSelect().
		TableExpr("queued_jobs").
		ColumnExpr("state").
		ColumnExpr("COUNT(*) AS count").
		GroupExpr("state").
		Scan(ctx, &rows)
	if err != nil {
		return nil, storageError("summary", err)
	}

	counts := make(map[job.State]int, len(job.States()))
	for _, st := range job.States() {
		counts[st] = 0
	}
	for _, row := range rows {
		counts[job.State(row.State)] = row.Count
	}
	return counts, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
)

// ResetOrphanedJobs resets any "running" job back to "queued" and
// clears its worker_id — crash recovery, run once at orchestrator
// start (spec §4.10).
func (s *Store) ResetOrphanedJobs(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, worker_id = NULL WHERE status = ?`,
		string(JobQueued), string(JobRunning))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ClaimNextJob atomically claims the highest-priority, oldest eligible
// queued job and returns it, or (nil, nil) if none is claimable:
// among queued jobs with attempts < max_attempts, ordered by
// priority DESC, created_at ASC, select one and mark it running.
//
// The claim is two statements, a SELECT of the candidate id and a
// conditional UPDATE, inside one database/sql transaction (default
// options, not BEGIN IMMEDIATE). Store.Open pins MaxOpenConns to 1,
// so the transaction holds the Store's only connection and no other
// statement from this Store interleaves with the claim.
func (s *Store) ClaimNextJob(ctx context.Context, workerID string) (*Job, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var jobID string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM jobs
		 WHERE status = ? AND attempts < max_attempts
		 ORDER BY priority DESC, created_at ASC
		 LIMIT 1`, string(JobQueued)).Scan(&jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE jobs SET status = ?, started_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now'),
		 attempts = attempts + 1, worker_id = ? WHERE id = ?`,
		string(JobRunning), workerID, jobID); err != nil {
		return nil, err
	}

	job, err := scanJobTx(ctx, tx, jobID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return job, nil
}

func scanJobTx(ctx context.Context, tx *sql.Tx, jobID string) (*Job, error) {
	var j Job
	var status string
	err := tx.QueryRowContext(ctx,
		`SELECT id, kind, wiki_id, status, attempts, max_attempts, priority, worker_id,
		 created_at, started_at, completed_at, error_message FROM jobs WHERE id = ?`, jobID).
		Scan(&j.ID, &j.Kind, &j.WikiID, &status, &j.Attempts, &j.MaxAttempts, &j.Priority,
			&j.WorkerID, &j.CreatedAt, &j.StartedAt, &j.CompletedAt, &j.ErrorMessage)
	if err != nil {
		return nil, err
	}
	j.Status = JobStatus(status)
	return &j, nil
}

// CompleteJob marks a job completed.
func (s *Store) CompleteJob(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, completed_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now') WHERE id = ?`,
		string(JobCompleted), jobID)
	return err
}

// FailJob retries the job (back to queued) if attempts < max_attempts,
// otherwise marks it and its owning wiki permanently failed (spec §7,
// §4.10).
func (s *Store) FailJob(ctx context.Context, jobID, errMessage string, attempts, maxAttempts int) error {
	if attempts < maxAttempts {
		_, err := s.db.ExecContext(ctx,
			`UPDATE jobs SET status = ?, error_message = ? WHERE id = ?`,
			string(JobQueued), errMessage, jobID)
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error_message = ?, completed_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now') WHERE id = ?`,
		string(JobFailed), errMessage, jobID); err != nil {
		return err
	}

	var wikiID string
	if err := tx.QueryRowContext(ctx, `SELECT wiki_id FROM jobs WHERE id = ?`, jobID).Scan(&wikiID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE wikis SET status = ?, error_message = ?, completed_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now') WHERE id = ?`,
		string(WikiFailed), errMessage, wikiID); err != nil {
		return err
	}
	return tx.Commit()
}

// CountActiveJobs returns the number of jobs currently running, used
// by the /health endpoint.
func (s *Store) CountActiveJobs(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs WHERE status = ?`, string(JobRunning)).Scan(&n)
	return n, err
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/model"
)

const jobColumns = `id, document_id, operation, version, state, attempt_count, tier_used, tiers_tried, error, run_after, created_at, updated_at`

// EnqueueJob inserts the job if its deterministic identifier is new and
// returns the authoritative row either way. The boolean reports whether
// a new job was created. An identifier already in QUEUED or RUNNING is
// a no-op returning the existing job: this is the at-most-one-active
// guarantee.
func (s *Store) EnqueueJob(ctx context.Context, job model.Job) (*model.Job, bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		job.ID, job.DocumentID, job.Operation, job.Version, job.State, job.AttemptCount,
		nullable(job.TierUsed), job.TiersTried, job.Error, job.RunAfter, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return nil, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}

	existing, err := s.GetJob(ctx, job.ID)
	if err != nil {
		return nil, false, err
	}
	return existing, n > 0, nil
}

// GetJob returns a job by ID.
func (s *Store) GetJob(ctx context.Context, id string) (*model.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	return job, err
}

// ListJobsForDocument returns all jobs for a document, newest first.
func (s *Store) ListJobsForDocument(ctx context.Context, documentID string) ([]model.Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE document_id = ? ORDER BY created_at DESC`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// ClaimNextQueued atomically picks the oldest due QUEUED job and marks
// it RUNNING. Returns nil if no job is due. The single-statement
// update is what keeps two workers from claiming the same job.
func (s *Store) ClaimNextQueued(ctx context.Context) (*model.Job, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	row := s.db.QueryRowContext(ctx, `
		UPDATE jobs SET state = ?, updated_at = ?
		WHERE id = (
			SELECT id FROM jobs WHERE state = ? AND run_after <= ?
			ORDER BY run_after ASC, created_at ASC LIMIT 1
		)
		RETURNING `+jobColumns,
		model.JobRunning, now, model.JobQueued, now,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return job, err
}

// RequeueJob returns a RUNNING job to QUEUED for another attempt after
// runAfter, recording the attempt count and the tiers that hard-failed.
// Compare-and-set on state: fails with ErrStateConflict if the job is
// no longer RUNNING.
func (s *Store) RequeueJob(ctx context.Context, id string, attemptCount int, runAfter time.Time, tiersTried string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET state = ?, attempt_count = ?, run_after = ?, tiers_tried = ?, updated_at = ?
		WHERE id = ? AND state = ?`,
		model.JobQueued, attemptCount, runAfter.UTC().Format(time.RFC3339), tiersTried, now,
		id, model.JobRunning,
	)
	return casResult(res, err)
}

// MarkJobFailed moves a RUNNING job to terminal FAILED with the given
// failure detail.
func (s *Store) MarkJobFailed(ctx context.Context, id, tier string, info model.ErrorInfo) error {
	now := time.Now().UTC().Format(time.RFC3339)
	detail := info.ToJSON()
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET state = ?, tier_used = ?, error = ?, updated_at = ?
		WHERE id = ? AND state = ?`,
		model.JobFailed, nullable(tier), detail, now,
		id, model.JobRunning,
	)
	return casResult(res, err)
}

// CancelJob cancels a job that is still QUEUED. A RUNNING job cannot be
// preempted; callers get ErrStateConflict.
func (s *Store) CancelJob(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET state = ?, updated_at = ? WHERE id = ? AND state = ?`,
		model.JobCancelled, now, id, model.JobQueued,
	)
	return casResult(res, err)
}

// ReenqueueFailed explicitly returns a FAILED job to QUEUED with an
// incremented attempt count. This is the only path out of FAILED. When
// a newer job version is already active for the same (document,
// operation), re-activating the old one would break the at-most-one-
// active invariant; the unique index blocks it and we report conflict.
func (s *Store) ReenqueueFailed(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET state = ?, attempt_count = attempt_count + 1, error = NULL, run_after = ?, updated_at = ?
		WHERE id = ? AND state = ?`,
		model.JobQueued, now, now, id, model.JobFailed,
	)
	if isConstraintViolation(err) {
		return model.ErrStateConflict
	}
	return casResult(res, err)
}

func isConstraintViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}

// ResetStaleRunning returns any RUNNING jobs to QUEUED (for server
// restart: a worker that died mid-attempt never reported back).
func (s *Store) ResetStaleRunning(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET state = ?, run_after = ?, updated_at = ? WHERE state = ?`,
		model.JobQueued, now, now, model.JobRunning,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MaxJobVersion returns the highest job version seen for (document,
// operation), or 0 when none exists. Reprocessing enqueues version+1.
func (s *Store) MaxJobVersion(ctx context.Context, documentID, operation string) (int, error) {
	var version sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(version) FROM jobs WHERE document_id = ? AND operation = ?`,
		documentID, operation,
	).Scan(&version)
	if err != nil {
		return 0, err
	}
	return int(version.Int64), nil
}

func casResult(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrStateConflict
	}
	return nil
}

func scanJob(row rowScanner) (*model.Job, error) {
	var job model.Job
	var tierUsed sql.NullString
	if err := row.Scan(&job.ID, &job.DocumentID, &job.Operation, &job.Version, &job.State,
		&job.AttemptCount, &tierUsed, &job.TiersTried, &job.Error, &job.RunAfter,
		&job.CreatedAt, &job.UpdatedAt); err != nil {
		return nil, err
	}
	job.TierUsed = tierUsed.String
	return &job, nil
}

package jobs

import (
	"context"
	"fmt"
	"time"
)

// Status transitions are enforced in SQL: every UPDATE carries a WHERE clause
// naming the states it may leave, so a row can never move out of a terminal
// state and two racing writers cannot both win a claim. A zero-row update is
// resolved to ErrNotFound or the supplied conflict error after the fact.

// MarkProcessing moves a job into PROCESSING for local dispatch.
func (s *Store) MarkProcessing(ctx context.Context, id int64) (*Job, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE qc_jobs SET status = ?, updated_at = ? WHERE id = ? AND status IN (?, ?)`,
		StatusProcessing,
		nowString(),
		id,
		StatusPending,
		StatusQueued,
	)
	if err != nil {
		return nil, fmt.Errorf("mark processing: %w", err)
	}
	if err := s.requireAffected(ctx, res, id, ErrTerminal); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// MarkQueued parks a job for the remote worker pool.
func (s *Store) MarkQueued(ctx context.Context, id int64) (*Job, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE qc_jobs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		StatusQueued,
		nowString(),
		id,
		StatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("mark queued: %w", err)
	}
	if err := s.requireAffected(ctx, res, id, ErrTerminal); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// UpdateProgress records advisory telemetry for an in-flight job. Progress is
// clamped monotonic in SQL so a late writer can never move it backwards, and
// the write refreshes updated_at, which doubles as the claim heartbeat.
func (s *Store) UpdateProgress(ctx context.Context, id int64, progress int, currentStep string) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	_, err := s.execWithRetry(
		ctx,
		`UPDATE qc_jobs
         SET progress = MAX(progress, ?),
             current_step = COALESCE(?, current_step),
             updated_at = ?
         WHERE id = ? AND status = ?`,
		progress,
		nullableString(currentStep),
		nowString(),
		id,
		StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// Complete records the successful terminal outcome for the analysis track.
func (s *Store) Complete(ctx context.Context, id int64, resultJSONPath string) (*Job, error) {
	now := nowString()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE qc_jobs
         SET status = ?, result_json_path = ?, progress = 100, completed_at = ?, updated_at = ?
         WHERE id = ? AND status NOT IN (?, ?)`,
		StatusCompleted,
		resultJSONPath,
		now,
		now,
		id,
		StatusCompleted,
		StatusFailed,
	)
	if err != nil {
		return nil, fmt.Errorf("complete job: %w", err)
	}
	if err := s.requireAffected(ctx, res, id, ErrTerminal); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// Fail records the failed terminal outcome for the analysis track.
func (s *Store) Fail(ctx context.Context, id int64, message string) (*Job, error) {
	now := nowString()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE qc_jobs
         SET status = ?, error_message = ?, completed_at = ?, updated_at = ?
         WHERE id = ? AND status NOT IN (?, ?)`,
		StatusFailed,
		message,
		now,
		now,
		id,
		StatusCompleted,
		StatusFailed,
	)
	if err != nil {
		return nil, fmt.Errorf("fail job: %w", err)
	}
	if err := s.requireAffected(ctx, res, id, ErrTerminal); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// Claim atomically moves a queued job to PROCESSING on whichever track is
// queued. The read of the current state and the write of the new state happen
// in one UPDATE, so of two racing claimers exactly one observes an affected
// row; the other receives ErrClaimConflict.
func (s *Store) Claim(ctx context.Context, id int64) (*Job, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE qc_jobs
         SET status = CASE WHEN status = ? THEN ? ELSE status END,
             fix_status = CASE WHEN status != ? AND fix_status = ? THEN ? ELSE fix_status END,
             updated_at = ?
         WHERE id = ? AND (status = ? OR fix_status = ?)`,
		StatusQueued, StatusProcessing,
		StatusProcessing, FixQueued, FixProcessing,
		nowString(),
		id,
		StatusQueued,
		FixQueued,
	)
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	if err := s.requireAffected(ctx, res, id, ErrClaimConflict); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// RequestFix opens the remediation track. Remediation is only reachable once
// the primary analysis has completed; the initial fix status is PROCESSING
// for local execution and QUEUED for remote dispatch.
func (s *Store) RequestFix(ctx context.Context, id int64, fixType string, initial FixStatus) (*Job, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE qc_jobs
         SET fix_status = ?, fix_type = ?, updated_at = ?
         WHERE id = ? AND status = ? AND (fix_status IS NULL OR fix_status NOT IN (?, ?))`,
		initial,
		fixType,
		nowString(),
		id,
		StatusCompleted,
		FixQueued,
		FixProcessing,
	)
	if err != nil {
		return nil, fmt.Errorf("request fix: %w", err)
	}
	if err := s.requireAffected(ctx, res, id, ErrFixUnavailable); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// MarkFixProcessing moves a queued remediation into PROCESSING.
func (s *Store) MarkFixProcessing(ctx context.Context, id int64) (*Job, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE qc_jobs SET fix_status = ?, updated_at = ? WHERE id = ? AND fix_status = ?`,
		FixProcessing,
		nowString(),
		id,
		FixQueued,
	)
	if err != nil {
		return nil, fmt.Errorf("mark fix processing: %w", err)
	}
	if err := s.requireAffected(ctx, res, id, ErrClaimConflict); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// CompleteFix records the successful remediation outcome.
func (s *Store) CompleteFix(ctx context.Context, id int64, fixedFilePath string) (*Job, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE qc_jobs
         SET fix_status = ?, fixed_file_path = ?, updated_at = ?
         WHERE id = ? AND fix_status IN (?, ?)`,
		FixCompleted,
		fixedFilePath,
		nowString(),
		id,
		FixQueued,
		FixProcessing,
	)
	if err != nil {
		return nil, fmt.Errorf("complete fix: %w", err)
	}
	if err := s.requireAffected(ctx, res, id, ErrTerminal); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// FailFix records the failed remediation outcome. The primary status and its
// terminal fields are left untouched.
func (s *Store) FailFix(ctx context.Context, id int64, message string) (*Job, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE qc_jobs
         SET fix_status = ?, error_message = ?, updated_at = ?
         WHERE id = ? AND fix_status IN (?, ?)`,
		FixFailed,
		message,
		nowString(),
		id,
		FixQueued,
		FixProcessing,
	)
	if err != nil {
		return nil, fmt.Errorf("fail fix: %w", err)
	}
	if err := s.requireAffected(ctx, res, id, ErrTerminal); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// ReclaimStaleProcessing returns claimed jobs whose progress heartbeat expired
// back to QUEUED on the relevant track, making them claimable again.
func (s *Store) ReclaimStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoffStr := cutoff.UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE qc_jobs
         SET status = CASE WHEN status = ? AND updated_at < ? THEN ? ELSE status END,
             fix_status = CASE WHEN fix_status = ? AND updated_at < ? THEN ? ELSE fix_status END,
             updated_at = ?
         WHERE (status = ? OR fix_status = ?) AND updated_at < ?`,
		StatusProcessing, cutoffStr, StatusQueued,
		FixProcessing, cutoffStr, FixQueued,
		nowString(),
		StatusProcessing,
		FixProcessing,
		cutoffStr,
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// FailStuckProcessing fails every job left PROCESSING on the analysis track,
// used at startup after an unclean shutdown orphaned local tasks.
func (s *Store) FailStuckProcessing(ctx context.Context, message string) (int64, error) {
	now := nowString()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE qc_jobs
         SET status = ?, error_message = ?, completed_at = ?, updated_at = ?
         WHERE status = ?`,
		StatusFailed,
		message,
		now,
		now,
		StatusProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("fail stuck jobs: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) requireAffected(ctx context.Context, res interface{ RowsAffected() (int64, error) }, id int64, conflict error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrNotFound
	}
	return conflict
}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

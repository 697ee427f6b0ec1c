// Package workqueue exposes the pull-model contract remote workers use:
// list queued work, claim it atomically, and report the outcome back.
package workqueue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"spectra/internal/jobs"
	"spectra/internal/logging"
	"spectra/internal/storage"
)

// ErrEmptyOutcome reports a completion call carrying neither a report nor an
// error message.
var ErrEmptyOutcome = errors.New("completion requires a report or an error message")

// Service implements the worker-facing queue operations over the job store.
type Service struct {
	store  *jobs.Store
	files  *storage.Manager
	logger *slog.Logger
}

// NewService constructs the worker queue service.
func NewService(store *jobs.Store, files *storage.Manager, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		files:  files,
		logger: logging.WithComponent(logger, "workqueue"),
	}
}

// ListPending returns jobs queued on either track. The listing is advisory: a
// worker may still lose the subsequent claim race.
func (s *Service) ListPending(ctx context.Context) ([]*jobs.Job, error) {
	return s.store.ListPending(ctx)
}

// Claim atomically takes a queued job for the calling worker. Exactly one of
// any number of concurrent claims on the same job succeeds; the rest fail
// with jobs.ErrClaimConflict.
func (s *Service) Claim(ctx context.Context, jobID int64) (*jobs.Job, error) {
	job, err := s.store.Claim(ctx, jobID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("job claimed", logging.Int64("job_id", job.ID))
	return job, nil
}

// Complete records the analysis outcome a worker reports: either report JSON
// to persist under a fresh result directory, or an error message.
func (s *Service) Complete(ctx context.Context, jobID int64, reportJSON []byte, errorMessage string) (*jobs.Job, error) {
	if message := strings.TrimSpace(errorMessage); message != "" {
		job, err := s.store.Fail(ctx, jobID, message)
		if err != nil {
			return nil, err
		}
		s.logger.Info("remote analysis failed", logging.Int64("job_id", job.ID))
		return job, nil
	}

	if len(reportJSON) == 0 {
		return nil, ErrEmptyOutcome
	}

	reportPath, err := s.files.PersistReport(jobID, reportJSON)
	if err != nil {
		return nil, err
	}
	job, err := s.store.Complete(ctx, jobID, reportPath)
	if err != nil {
		return nil, err
	}
	s.logger.Info("remote analysis completed",
		logging.Int64("job_id", job.ID),
		logging.String("report", reportPath))
	return job, nil
}

// CompleteRemediation records the remediation outcome a worker reports:
// either the fixed artifact bytes, or an error message.
func (s *Service) CompleteRemediation(ctx context.Context, jobID int64, artifact io.Reader, errorMessage string) (*jobs.Job, error) {
	if message := strings.TrimSpace(errorMessage); message != "" {
		job, err := s.store.FailFix(ctx, jobID, message)
		if err != nil {
			return nil, err
		}
		s.logger.Info("remote remediation failed", logging.Int64("job_id", job.ID))
		return job, nil
	}

	if artifact == nil {
		return nil, ErrEmptyOutcome
	}

	job, err := s.store.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, jobs.ErrNotFound
	}
	// Reject before persisting so a stray completion cannot leave an orphan
	// artifact on disk.
	if job.FixStatus != jobs.FixQueued && job.FixStatus != jobs.FixProcessing {
		return nil, fmt.Errorf("job %d: fix track %s: %w", jobID, job.FixStatus, jobs.ErrTerminal)
	}

	fixedPath, err := s.files.PersistFixedArtifact(job.FilePath, job.FixType, artifact)
	if err != nil {
		return nil, err
	}
	job, err = s.store.CompleteFix(ctx, jobID, fixedPath)
	if err != nil {
		return nil, err
	}
	s.logger.Info("remote remediation completed",
		logging.Int64("job_id", job.ID),
		logging.String("fixed_file", fixedPath))
	return job, nil
}

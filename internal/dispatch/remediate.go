package dispatch

import (
	"context"
	"errors"
	"os"

	"spectra/internal/engine"
	"spectra/internal/jobs"
	"spectra/internal/logging"
	"spectra/internal/storage"
)

// ErrFixTypeRequired reports a remediation request without a fix type.
var ErrFixTypeRequired = errors.New("fix type required")

// Remediate opens the remediation track for a completed job. In local mode a
// background task supervises the fix executable; in remote mode the track is
// parked QUEUED for a worker. The remediation outcome never alters the
// primary analysis status.
func (d *Dispatcher) Remediate(ctx context.Context, jobID int64, fixType string) (*jobs.Job, Outcome, error) {
	if fixType == "" {
		return nil, "", ErrFixTypeRequired
	}

	if d.cfg.RemoteMode() {
		job, err := d.store.RequestFix(ctx, jobID, fixType, jobs.FixQueued)
		if err != nil {
			return nil, "", err
		}
		d.logger.Info("remediation queued for remote execution",
			logging.Int64("job_id", job.ID),
			logging.String("fix_type", fixType))
		return job, OutcomeQueued, nil
	}

	job, err := d.store.RequestFix(ctx, jobID, fixType, jobs.FixProcessing)
	if err != nil {
		return nil, "", err
	}
	d.logger.Info("remediation dispatched locally",
		logging.Int64("job_id", job.ID),
		logging.String("fix_type", fixType))

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.runRemediation(job.ID, job.FilePath, fixType)
	}()
	return job, OutcomeDispatched, nil
}

// runRemediation supervises one fix run. The fix executable contract has no
// progress grammar, so only the exit classification matters.
func (d *Dispatcher) runRemediation(jobID int64, inputPath, fixType string) {
	ctx := context.Background()
	outputPath := storage.FixedOutputPath(inputPath, fixType)

	inv := engine.FixInvocation(d.cfg, inputPath, outputPath, fixType)
	if err := d.supervisor.Run(ctx, inv, nil); err != nil {
		d.failFix(ctx, jobID, err)
		return
	}

	if _, err := os.Stat(outputPath); err != nil {
		d.failFix(ctx, jobID, errors.New("fix engine exited cleanly but produced no output at "+outputPath))
		return
	}

	if _, err := d.store.CompleteFix(ctx, jobID, outputPath); err != nil {
		d.logger.Error("failed to record fix completion",
			logging.Int64("job_id", jobID),
			logging.Error(err))
		return
	}
	d.logger.Info("remediation completed",
		logging.Int64("job_id", jobID),
		logging.String("fixed_file", outputPath))
}

func (d *Dispatcher) failFix(ctx context.Context, jobID int64, cause error) {
	d.logger.Error("remediation failed", logging.Int64("job_id", jobID), logging.Error(cause))
	if _, err := d.store.FailFix(ctx, jobID, cause.Error()); err != nil {
		d.logger.Error("failed to record fix failure",
			logging.Int64("job_id", jobID),
			logging.Error(err))
	}
}

// Package dispatch decides how submitted jobs execute: supervised locally in
// a background task, or parked QUEUED for the remote worker pool.
package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"spectra/internal/config"
	"spectra/internal/engine"
	"spectra/internal/jobs"
	"spectra/internal/logging"
	"spectra/internal/storage"
)

// Outcome is the tagged dispatch result. Remote-mode dispatch is a successful
// outcome in its own right, distinct from a local launch, so a queued job can
// never be mistaken for a failure.
type Outcome string

const (
	// OutcomeDispatched means a local supervision task was launched.
	OutcomeDispatched Outcome = "dispatched"
	// OutcomeQueued means the job is parked until a remote worker claims it.
	OutcomeQueued Outcome = "queued"
)

// ErrValidation reports a bad submission (empty file or filename).
var ErrValidation = errors.New("invalid submission")

// Dispatcher owns job submission and the local execution path.
type Dispatcher struct {
	cfg        *config.Config
	store      *jobs.Store
	files      *storage.Manager
	supervisor *engine.Supervisor
	engine     engine.Engine
	logger     *slog.Logger

	wg sync.WaitGroup
}

// New constructs a dispatcher using the engine variant named in config.
func New(cfg *config.Config, store *jobs.Store, files *storage.Manager, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		cfg:        cfg,
		store:      store,
		files:      files,
		supervisor: engine.NewSupervisor(logger),
		engine:     engine.ForConfig(cfg),
		logger:     logging.WithComponent(logger, "dispatch"),
	}
}

// Submit stores the uploaded asset, creates the job, and initiates dispatch.
// It returns as soon as dispatch has been initiated: the local supervision
// task runs in the background and reports its outcome only through the store.
func (d *Dispatcher) Submit(ctx context.Context, originalFilename, profile string, file io.Reader) (*jobs.Job, Outcome, error) {
	if originalFilename == "" || file == nil {
		return nil, "", ErrValidation
	}

	storedPath, err := d.files.SaveUpload(originalFilename, file)
	if err != nil {
		return nil, "", err
	}

	job, err := d.store.Create(ctx, originalFilename, storedPath, profile)
	if err != nil {
		return nil, "", err
	}

	if d.cfg.RemoteMode() {
		job, err = d.store.MarkQueued(ctx, job.ID)
		if err != nil {
			return nil, "", err
		}
		d.logger.Info("job queued for remote execution",
			logging.Int64("job_id", job.ID),
			logging.String("profile", job.Profile))
		return job, OutcomeQueued, nil
	}

	job, err = d.store.MarkProcessing(ctx, job.ID)
	if err != nil {
		return nil, "", err
	}
	d.logger.Info("job dispatched locally",
		logging.Int64("job_id", job.ID),
		logging.String("engine", d.engine.Name()),
		logging.String("profile", job.Profile))

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.runAnalysis(job.ID, job.FilePath, job.Profile)
	}()
	return job, OutcomeDispatched, nil
}

// runAnalysis supervises one analysis run to completion. Errors are never
// propagated to a caller: they are written into the job row and discoverable
// only by polling.
func (d *Dispatcher) runAnalysis(jobID int64, inputPath, profile string) {
	ctx := context.Background()

	resultDir, err := d.files.NewResultDir(jobID)
	if err != nil {
		d.failJob(ctx, jobID, err)
		return
	}

	inv := d.engine.AnalysisInvocation(inputPath, resultDir, profile)
	err = d.supervisor.Run(ctx, inv, func(percent int, step string) {
		if progressErr := d.store.UpdateProgress(ctx, jobID, percent, step); progressErr != nil {
			d.logger.Warn("failed to persist progress",
				logging.Int64("job_id", jobID),
				logging.Error(progressErr))
		}
	})
	if err != nil {
		d.failJob(ctx, jobID, err)
		return
	}

	reportPath, err := engine.FindReport(resultDir, storage.ReportFilename)
	if err != nil {
		d.failJob(ctx, jobID, err)
		return
	}

	if _, err := d.store.Complete(ctx, jobID, reportPath); err != nil {
		d.logger.Error("failed to record completion",
			logging.Int64("job_id", jobID),
			logging.Error(err))
		return
	}
	d.logger.Info("analysis completed",
		logging.Int64("job_id", jobID),
		logging.String("report", reportPath))
}

func (d *Dispatcher) failJob(ctx context.Context, jobID int64, cause error) {
	d.logger.Error("analysis failed", logging.Int64("job_id", jobID), logging.Error(cause))
	if _, err := d.store.Fail(ctx, jobID, cause.Error()); err != nil {
		d.logger.Error("failed to record failure",
			logging.Int64("job_id", jobID),
			logging.Error(err))
	}
}

// Wait blocks until every background task has finished. Used by tests and
// daemon shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

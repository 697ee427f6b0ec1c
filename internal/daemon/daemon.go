// Package daemon owns process lifecycle: the single-instance lock, the
// startup ownership sweep, the stale-claim reclaim timer, and the API server.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"spectra/internal/config"
	"spectra/internal/deps"
	"spectra/internal/dispatch"
	"spectra/internal/jobs"
	"spectra/internal/logging"
	"spectra/internal/server"
	"spectra/internal/storage"
	"spectra/internal/workqueue"
)

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *jobs.Store
	files      *storage.Manager
	dispatcher *dispatch.Dispatcher
	api        *server.Server

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs a daemon with initialized dependencies. The job store is
// opened here; Close releases it.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || logger == nil {
		return nil, errors.New("daemon requires config and logger")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	store, err := jobs.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}

	files := storage.NewManager(cfg, logger)
	dispatcher := dispatch.New(cfg, store, files, logger)
	queue := workqueue.NewService(store, files, logger)
	api := server.New(cfg, store, files, dispatcher, queue, logger)

	lockPath := filepath.Join(cfg.Paths.DataDir, "spectra.lock")
	return &Daemon{
		cfg:        cfg,
		logger:     logging.WithComponent(logger, "daemon"),
		store:      store,
		files:      files,
		dispatcher: dispatcher,
		api:        api,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, sweeps orphaned claims, and begins serving
// the API. Remote deployments also start the reclaim timer.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another spectra instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	for _, status := range deps.Missing(deps.Check(deps.ForConfig(d.cfg))) {
		d.logger.Warn("engine dependency unavailable",
			logging.String("dependency", status.Name),
			logging.String("detail", status.Detail))
	}

	if err := d.sweepOrphans(d.ctx); err != nil {
		d.releaseLock()
		d.cancel()
		return err
	}

	if err := d.api.Start(d.ctx); err != nil {
		d.releaseLock()
		d.cancel()
		return err
	}

	if d.cfg.RemoteMode() {
		d.wg.Add(1)
		go d.reclaimLoop(d.ctx)
	}

	d.running.Store(true)
	d.logger.Info("spectra daemon started",
		logging.String("lock", d.lockPath),
		logging.String("mode", d.cfg.Engine.Mode))
	return nil
}

// sweepOrphans handles work left PROCESSING by a previous process. Local
// analyses die with the daemon, so their rows fail outright; remote claims
// may still be live on a worker and only go back to QUEUED once stale.
func (d *Daemon) sweepOrphans(ctx context.Context) error {
	if d.cfg.RemoteMode() {
		reclaimed, err := d.store.ReclaimStaleProcessing(ctx, d.staleCutoff())
		if err != nil {
			return fmt.Errorf("reclaim stale jobs: %w", err)
		}
		if reclaimed > 0 {
			d.logger.Info("requeued stale claims", logging.Int64("count", reclaimed))
		}
		return nil
	}

	failed, err := d.store.FailStuckProcessing(ctx, "daemon restarted during processing")
	if err != nil {
		return fmt.Errorf("fail stuck jobs: %w", err)
	}
	if failed > 0 {
		d.logger.Info("failed orphaned jobs", logging.Int64("count", failed))
	}
	return nil
}

func (d *Daemon) reclaimLoop(ctx context.Context) {
	defer d.wg.Done()
	interval := time.Duration(d.cfg.Workflow.ReclaimInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reclaimed, err := d.store.ReclaimStaleProcessing(ctx, d.staleCutoff())
			if err != nil {
				if ctx.Err() == nil {
					d.logger.Warn("stale claim reclaim failed", logging.Error(err))
				}
				continue
			}
			if reclaimed > 0 {
				d.logger.Info("requeued stale claims", logging.Int64("count", reclaimed))
			}
		}
	}
}

func (d *Daemon) staleCutoff() time.Time {
	timeout := time.Duration(d.cfg.Workflow.ClaimTimeout) * time.Second
	return time.Now().UTC().Add(-timeout)
}

// Stop halts the API server, waits for in-flight engine runs, and releases
// the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.Stop()
	d.dispatcher.Wait()
	d.wg.Wait()
	d.releaseLock()
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("spectra daemon stopped")
}

// Close stops the daemon and closes the job store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether Start has succeeded and Stop has not yet run.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// APIAddr returns the bound API address once Start has succeeded.
func (d *Daemon) APIAddr() string {
	return d.api.Addr()
}

// Store exposes the job store for CLI subcommands sharing the daemon wiring.
func (d *Daemon) Store() *jobs.Store {
	return d.store
}

func (d *Daemon) releaseLock() {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}

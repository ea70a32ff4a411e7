// Package daemon hosts the long-running papermill process: it enforces
// single-instance execution, resumes in-flight extractions at startup, and
// serves the HTTP API.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"papermill/internal/api"
	"papermill/internal/config"
	"papermill/internal/logging"
	"papermill/internal/paper"
	"papermill/internal/services/oss"
)

// ObjectStore is the object-storage surface the daemon needs for uploads and
// record deletion.
type ObjectStore interface {
	Upload(ctx context.Context, content []byte, filename string) (oss.Object, error)
	Delete(ctx context.Context, key string) error
}

// ExtractionService is the extraction surface exposed over the API.
type ExtractionService interface {
	Start(ctx context.Context, key string) (string, error)
	RunDetached(key, taskID string)
	Stop(ctx context.Context, key string) (bool, string, error)
	Resume(ctx context.Context) error
}

// AnalysisService is the analysis surface exposed over the API.
type AnalysisService interface {
	Start(ctx context.Context, key string) (string, error)
}

// Services bundles the collaborators the daemon serves.
type Services struct {
	Store      *paper.Store
	Objects    ObjectStore
	Extraction ExtractionService
	Analysis   AnalysisService
}

// Daemon coordinates the background services and enforces single-instance
// execution via a lock file.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	svcs   Services

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	api     *apiServer
	cancel  context.CancelFunc
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, svcs Services, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || svcs.Store == nil || svcs.Extraction == nil || svcs.Analysis == nil {
		return nil, errors.New("daemon requires config, store, and orchestrators")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := filepath.Join(cfg.Paths.WorkingDir, "papermilld.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logger.With(logging.String(logging.FieldComponent, "daemon")),
		svcs:     svcs,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, runs the extraction recovery sweep, and
// brings up the API server. It returns once the daemon is serving.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire daemon lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another instance holds %s", d.lockPath)
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.svcs.Extraction.Resume(runCtx); err != nil {
		d.logger.Error("recovery sweep", logging.Error(err))
	}

	server, err := newAPIServer(d.cfg, d, d.logger)
	if err != nil {
		cancel()
		d.releaseLock()
		return err
	}
	d.api = server
	if err := d.api.start(runCtx); err != nil {
		cancel()
		d.releaseLock()
		return err
	}

	d.running.Store(true)
	d.logger.Info("daemon started", logging.String("lock_file", d.lockPath))
	return nil
}

// Stop shuts the API server down and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Swap(false) {
		return
	}
	if d.cancel != nil {
		d.cancel()
	}
	if d.api != nil {
		d.api.stop()
	}
	d.releaseLock()
	d.logger.Info("daemon stopped")
}

// Status reports daemon runtime information.
func (d *Daemon) Status() api.DaemonStatus {
	status := api.DaemonStatus{
		Running:    d.running.Load(),
		RecordFile: d.svcs.Store.Path(),
		LockFile:   d.lockPath,
	}
	if d.api != nil {
		status.Address = d.api.address()
	}
	return status
}

// Address returns the bound API address, empty until Start succeeds.
func (d *Daemon) Address() string {
	if d.api == nil {
		return ""
	}
	return d.api.address()
}

func (d *Daemon) releaseLock() {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("release daemon lock", logging.Error(err))
	}
}

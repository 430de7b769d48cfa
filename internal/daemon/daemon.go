package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"sessionq/internal/api"
	"sessionq/internal/config"
	"sessionq/internal/journal"
	"sessionq/internal/logging"
	"sessionq/internal/preflight"
	"sessionq/internal/queue"
)

const retentionInterval = time.Hour

// Daemon hosts a single coordination queue and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	runID  string

	queue    *queue.Queue
	journal  *journal.Store
	recorder *journal.Recorder
	service  *api.QueueService
	api      *apiServer

	logPath  string
	lockPath string
	pidPath  string
	lock     *flock.Flock

	mu        sync.Mutex
	running   atomic.Bool
	startedAt time.Time
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithLogPath records the active log file so retention never prunes it.
func WithLogPath(path string) Option {
	return func(d *Daemon) {
		d.logPath = path
	}
}

// New constructs a daemon. The journal is opened immediately when enabled so
// configuration errors surface before the lock is taken.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	runID := uuid.NewString()
	logger = logging.WithRunID(logger, runID)

	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		runID:    runID,
		lockPath: cfg.LockPath(),
		pidPath:  cfg.PIDPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	for _, opt := range opts {
		opt(d)
	}

	queueOpts := []queue.Option{
		queue.WithLogger(logging.ApplyOverride(logger, "queue", cfg.Logging.ComponentOverrides)),
	}
	var reader api.JournalReader
	if cfg.Journal.Enabled {
		store, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		d.journal = store
		d.recorder = journal.NewRecorder(store, cfg.Journal.BufferSize,
			logging.ApplyOverride(logger, "journal", cfg.Logging.ComponentOverrides))
		queueOpts = append(queueOpts, queue.WithObserver(d.recorder))
		reader = store
	}

	d.queue = queue.New(queueOpts...)
	d.service = api.NewQueueService(d.queue, reader)

	apiSrv, err := newAPIServer(cfg, d, logging.ForComponent(logger, "api-server", cfg.Logging.ComponentOverrides))
	if err != nil {
		d.closeJournal()
		return nil, err
	}
	d.api = apiSrv
	return d, nil
}

// Start acquires the daemon lock, writes the PID file, and launches the
// HTTP API and retention loop.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another sessionq daemon instance is already running")
	}

	if err := writePIDFile(d.pidPath); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("write pid file: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = os.Remove(d.pidPath)
		_ = d.lock.Unlock()
		return err
	}

	d.cancel = cancel
	d.startedAt = time.Now()
	d.running.Store(true)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.runRetention(runCtx)
	}()

	d.logger.Info("sessionq daemon started",
		logging.Event("daemon_start"),
		logging.String("lock", d.lockPath),
		logging.Bool("journal_enabled", d.journal != nil),
		logging.String("api_bind", d.api.address()),
	)
	return nil
}

// Stop halts background loops, shuts the API down, and releases the lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	d.api.stop()

	if err := os.Remove(d.pidPath); err != nil && !os.IsNotExist(err) {
		logging.WarnWithContext(d.logger, "failed to remove pid file", "daemon_pid_cleanup_failed",
			logging.String("pid_file", d.pidPath),
			logging.Error(err),
			logging.String(logging.FieldImpact, "status checks may report a stale pid"),
			logging.String(logging.FieldErrorHint, "remove the pid file manually"),
		)
	}
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_unlock_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "a new daemon may refuse to start"),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if no daemon is running"),
		)
	}
	d.running.Store(false)
	d.logger.Info("sessionq daemon stopped", logging.Event("daemon_stop"))
}

// Close stops the daemon and flushes the journal.
func (d *Daemon) Close() error {
	d.Stop()
	return d.closeJournal()
}

func (d *Daemon) closeJournal() error {
	var errs []error
	if d.recorder != nil {
		errs = append(errs, d.recorder.Close())
		d.recorder = nil
	}
	if d.journal != nil {
		errs = append(errs, d.journal.Close())
		d.journal = nil
	}
	return errors.Join(errs...)
}

// Queue returns the hosted coordination queue.
func (d *Daemon) Queue() *queue.Queue {
	return d.queue
}

// Service returns the transport-neutral queue service.
func (d *Daemon) Service() *api.QueueService {
	return d.service
}

// RunID identifies this daemon process in logs and status output.
func (d *Daemon) RunID() string {
	return d.runID
}

// Running reports whether Start has succeeded and Stop has not been called.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	status := api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		RunID:        d.runID,
		SocketPath:   d.cfg.SocketPath(),
		LockFilePath: d.lockPath,
		APIBind:      d.api.address(),
		LogPath:      d.logPath,
		Queue:        d.service.Stats(),
		Journal:      d.journalStatus(ctx),
	}
	if status.Running {
		d.mu.Lock()
		status.StartedAt = d.startedAt.UTC().Format(time.RFC3339)
		d.mu.Unlock()
	}
	for _, result := range preflight.RunAll(ctx, d.cfg) {
		status.Directories = append(status.Directories, api.DirectoryStatus{
			Name:   result.Name,
			Path:   result.Path,
			Ok:     result.Passed,
			Detail: result.Detail,
		})
	}
	return status
}

func (d *Daemon) journalStatus(ctx context.Context) api.JournalStatus {
	if d.journal == nil {
		return api.JournalStatus{}
	}
	status := api.JournalStatus{Enabled: true, Path: d.journal.Path()}
	if d.recorder != nil {
		stats := d.recorder.Stats()
		status.Written = stats.Written
		status.Dropped = stats.Dropped
		status.Failed = stats.Failed
	}
	count, err := d.journal.Count(ctx)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.Records = count
	return status
}

func (d *Daemon) runRetention(ctx context.Context) {
	d.pruneOnce(ctx)
	ticker := time.NewTicker(retentionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.pruneOnce(ctx)
		}
	}
}

// pruneOnce applies journal and log retention.
func (d *Daemon) pruneOnce(ctx context.Context) {
	if d.journal != nil && d.cfg.Journal.RetentionDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -d.cfg.Journal.RetentionDays)
		removed, err := d.journal.Prune(ctx, cutoff)
		switch {
		case err != nil && ctx.Err() == nil:
			logging.WarnWithContext(d.logger, "journal prune failed", "journal_prune_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "journal will keep growing until the next prune"),
				logging.String(logging.FieldErrorHint, "check journal file permissions and disk space"),
			)
		case removed > 0:
			d.logger.Info("journal pruned",
				logging.Event("journal_pruned"),
				logging.Int64("removed_count", removed),
			)
		}
	}

	if dir := strings.TrimSpace(d.cfg.Paths.LogDir); dir != "" {
		exclude := []string{filepath.Join(dir, logging.LogFileName)}
		if d.logPath != "" {
			exclude = append(exclude, d.logPath)
		}
		if removed := logging.CleanupOldLogs(d.logger, d.cfg.Logging.RetentionDays,
			logging.RetentionTarget{Dir: dir, Pattern: logging.RunLogPattern, Exclude: exclude},
		); removed > 0 {
			d.logger.Debug("old logs removed", logging.Int("removed_count", removed))
		}
	}
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

// ReadPID returns the pid recorded in path, or 0 when the file is missing.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse pid file %s: %w", path, err)
	}
	return pid, nil
}

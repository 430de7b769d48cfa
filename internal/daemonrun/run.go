package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"sessionq/internal/config"
	"sessionq/internal/daemon"
	"sessionq/internal/ipc"
	"sessionq/internal/logging"
)

// Options configures daemon process runtime behavior.
type Options struct {
	// LogLevel overrides logging.level from the config when set.
	LogLevel string
	// SocketPath overrides the default state_dir/sessionq.sock.
	SocketPath string
	// Ready, if set, is called once the IPC socket accepts connections.
	Ready func(socketPath string)
}

// Run starts the sessionq daemon in the foreground and blocks until the
// context is canceled or the process receives SIGINT/SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}
	if opts.LogLevel != "" {
		cfgCopy := *cfg
		cfgCopy.Logging.Level = opts.LogLevel
		cfg = &cfgCopy
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runStamp := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("sessionq-%s.log", runStamp))
	logger, err := logging.NewFromConfig(cfg, logPath)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	d, err := daemon.New(cfg, logger, daemon.WithLogPath(logPath))
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "stop the running daemon or remove a stale lock file"),
			logging.String(logging.FieldImpact, "queue is not being served"),
		)
		return fmt.Errorf("start daemon: %w", err)
	}
	logger = logging.WithRunID(logger, d.RunID())

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update sessionq.log link: %v\n", err)
	}
	logConfigSnapshot(logger, cfg)

	socketPath := opts.SocketPath
	if socketPath == "" {
		socketPath = cfg.SocketPath()
	}
	ipcServer, err := ipc.NewServer(signalCtx, socketPath, d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()
	if opts.Ready != nil {
		opts.Ready(socketPath)
	}

	<-signalCtx.Done()
	logger.Info("sessionq daemon shutting down",
		logging.Event("daemon_shutdown"),
		logging.Int("pending_count", d.Queue().Count()),
	)
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, logging.LogFileName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("configuration snapshot",
		logging.Event("config_snapshot"),
		logging.String("state_dir", cfg.Paths.StateDir),
		logging.String("log_dir", cfg.Paths.LogDir),
		logging.String("api_bind", cfg.Paths.APIBind),
		logging.Bool("journal_enabled", cfg.Journal.Enabled),
		logging.String("journal_path", cfg.Journal.Path),
		logging.Int("journal_retention_days", cfg.Journal.RetentionDays),
		logging.Int("log_retention_days", cfg.Logging.RetentionDays),
	)
}

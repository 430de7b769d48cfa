package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"sessionq/internal/ipc"
	"sessionq/internal/logging"
	"sessionq/internal/queue"
	"sessionq/internal/worker"
)

const drainCheckInterval = 100 * time.Millisecond

func newConsumeCommand(ctx *commandContext) *cobra.Command {
	var (
		command string
		workers int
		prefix  string
		timeout time.Duration
		drain   bool
	)

	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Run a worker pool against the daemon, executing a shell command per item",
		Long: `Run a worker pool against the daemon. Each claimed item runs --command under
/bin/sh with the payload on stdin and SESSIONQ_ITEM_ID, SESSIONQ_ITEM_KEY, and
SESSIONQ_CONSUMER_ID in the environment. The item is finalized when the command
exits. Exit status 65, 66, or 78 marks a permanent failure; any other non-zero
status resubmits the item until workers.max_attempts is reached.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			opts := worker.OptionsFromConfig(cfg)
			if cmd.Flags().Changed("workers") {
				opts.Consumers = workers
			}
			if cmd.Flags().Changed("prefix") {
				opts.Prefix = prefix
			}
			logger, err := logging.New(logging.Options{
				Level:            cfg.Logging.Level,
				Format:           cfg.Logging.Format,
				OutputPaths:      []string{"stderr"},
				ErrorOutputPaths: []string{"stderr"},
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			opts.Logger = logging.ForComponent(logger, "consume", cfg.Logging.ComponentOverrides)

			client, err := ctx.dialClient()
			if err != nil {
				return err
			}
			defer client.Close()

			runCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			handler := worker.CommandHandler{
				Command: command,
				Timeout: timeout,
				Output:  prefixedOutput(cmd.OutOrStdout()),
			}
			pool := worker.NewPool(client, handler, opts)
			if err := pool.Start(runCtx); err != nil {
				return err
			}
			if drain {
				waitForDrain(runCtx, client, pool)
				cancel()
			} else {
				<-runCtx.Done()
			}
			pool.Stop()

			stats := pool.Stats()
			return emit(cmd, ctx, stats, func() error {
				fmt.Fprint(cmd.ErrOrStderr(), renderKeyValueTable("Worker pool", poolStatsRows(stats)))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&command, "command", "", "Shell command to run for each item")
	cmd.Flags().IntVar(&workers, "workers", 0, "Number of consumers (defaults to workers.consumers)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Consumer id prefix (defaults to workers.consumer_prefix)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Per-item command timeout (0 disables)")
	cmd.Flags().BoolVar(&drain, "drain", false, "Exit once the queue is empty and all consumers are idle")
	_ = cmd.MarkFlagRequired("command")
	return cmd
}

func prefixedOutput(w io.Writer) func(queue.Item, string) {
	var mu sync.Mutex
	return func(item queue.Item, line string) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(w, "[%s] %s\n", item.ID, line)
	}
}

// waitForDrain returns once the daemon reports no pending items and the pool
// has nothing in flight, or when ctx ends.
func waitForDrain(ctx context.Context, client *ipc.Client, pool *worker.Pool) {
	ticker := time.NewTicker(drainCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		count, err := client.Count(ctx)
		if err != nil {
			continue
		}
		if count == 0 && pool.Stats().Busy == 0 {
			return
		}
	}
}

func poolStatsRows(stats worker.Stats) []kvRow {
	return []kvRow{
		{"Consumers", strconv.Itoa(stats.Consumers)},
		{"Claimed", strconv.FormatUint(stats.Claimed, 10)},
		{"Succeeded", strconv.FormatUint(stats.Succeeded, 10)},
		{"Failed", strconv.FormatUint(stats.Failed, 10)},
		{"Retried", strconv.FormatUint(stats.Retried, 10)},
		{"Gave up", strconv.FormatUint(stats.GaveUp, 10)},
		{"Empty polls", strconv.FormatUint(stats.EmptyPolls, 10)},
		{"Source errors", strconv.FormatUint(stats.SourceErrors, 10)},
	}
}

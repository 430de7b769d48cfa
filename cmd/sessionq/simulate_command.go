package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"sessionq/internal/api"
	"sessionq/internal/logging"
	"sessionq/internal/queue"
	"sessionq/internal/services"
	"sessionq/internal/worker"
)

type simulateOptions struct {
	items    int
	keys     int
	workers  int
	work     time.Duration
	failRate float64
}

type simulateReport struct {
	RunID           string         `json:"runId"`
	Items           int            `json:"items"`
	Keys            int            `json:"keys"`
	Workers         int            `json:"workers"`
	ElapsedMS       int64          `json:"elapsedMs"`
	PerConsumer     map[string]int `json:"perConsumer"`
	Retried         uint64         `json:"retried"`
	GaveUp          uint64         `json:"gaveUp"`
	ExclusivityFail int            `json:"exclusivityViolations"`
	Queue           api.QueueStats `json:"queue"`
}

// exclusivityAudit watches queue events and counts claims of a key that is
// already held. It runs inside the queue's critical section.
type exclusivityAudit struct {
	mu         sync.Mutex
	held       map[string]string
	claims     map[string]int
	violations int
}

func newExclusivityAudit() *exclusivityAudit {
	return &exclusivityAudit{held: make(map[string]string), claims: make(map[string]int)}
}

func (a *exclusivityAudit) Observe(ev queue.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch ev.Kind {
	case queue.EventClaim:
		if _, busy := a.held[ev.Key]; busy {
			a.violations++
		}
		a.held[ev.Key] = ev.ItemID
		a.claims[ev.ConsumerID]++
	case queue.EventFinalize:
		if a.held[ev.Key] == ev.ItemID {
			delete(a.held, ev.Key)
		}
	}
}

func newSimulateCommand(ctx *commandContext) *cobra.Command {
	var opts simulateOptions

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Drive an in-process queue with synthetic load and audit key exclusivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if opts.items < 1 || opts.keys < 1 {
				return errors.New("--items and --keys must be positive")
			}
			if opts.failRate < 0 || opts.failRate >= 1 {
				return errors.New("--fail-rate must be in [0, 1)")
			}
			poolOpts := worker.OptionsFromConfig(cfg)
			if cmd.Flags().Changed("workers") {
				poolOpts.Consumers = opts.workers
			}
			poolOpts.PollInterval = time.Millisecond
			poolOpts.MaxPollInterval = 10 * time.Millisecond

			report, err := runSimulation(cmd.Context(), opts, poolOpts)
			if err != nil {
				return err
			}
			return emit(cmd, ctx, report, func() error {
				renderSimulateReport(cmd, report)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&opts.items, "items", 100, "Number of items to submit")
	cmd.Flags().IntVar(&opts.keys, "keys", 10, "Number of distinct keys")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Number of consumers (defaults to workers.consumers)")
	cmd.Flags().DurationVar(&opts.work, "work", 2*time.Millisecond, "Simulated handling time per item")
	cmd.Flags().Float64Var(&opts.failRate, "fail-rate", 0, "Probability that an attempt fails transiently")
	return cmd
}

func runSimulation(ctx context.Context, opts simulateOptions, poolOpts worker.Options) (simulateReport, error) {
	runID := uuid.NewString()[:8]
	audit := newExclusivityAudit()
	q := queue.New(queue.WithObserver(audit))
	for i := range opts.items {
		q.Submit(queue.Item{
			ID:  fmt.Sprintf("sim-%s-%d", runID, i),
			Key: fmt.Sprintf("key-%d", i%opts.keys),
		})
	}

	handler := worker.HandlerFunc(func(ctx context.Context, item queue.Item) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(opts.work):
		}
		if opts.failRate > 0 && rand.Float64() < opts.failRate {
			return services.Wrap(services.ErrTransient, "simulate", "handle", "injected failure", nil)
		}
		return nil
	})

	if poolOpts.Logger == nil {
		poolOpts.Logger = logging.NewNop()
	}
	pool := worker.NewPool(worker.Local(q), handler, poolOpts)
	started := time.Now()
	if err := pool.Start(ctx); err != nil {
		return simulateReport{}, err
	}
	ticker := time.NewTicker(time.Millisecond)
	for (q.Count() > 0 || pool.Stats().Busy > 0) && ctx.Err() == nil {
		<-ticker.C
	}
	ticker.Stop()
	pool.Stop()
	elapsed := time.Since(started)

	stats := pool.Stats()
	audit.mu.Lock()
	perConsumer := make(map[string]int, len(audit.claims))
	for id, n := range audit.claims {
		perConsumer[id] = n
	}
	violations := audit.violations
	audit.mu.Unlock()

	return simulateReport{
		RunID:           runID,
		Items:           opts.items,
		Keys:            opts.keys,
		Workers:         stats.Consumers,
		ElapsedMS:       elapsed.Milliseconds(),
		PerConsumer:     perConsumer,
		Retried:         stats.Retried,
		GaveUp:          stats.GaveUp,
		ExclusivityFail: violations,
		Queue:           api.FromStats(q.Stats()),
	}, ctx.Err()
}

func renderSimulateReport(cmd *cobra.Command, report simulateReport) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	printSection(out, "Simulation "+report.RunID, colorize)
	fmt.Fprintln(out, renderStatusLine("Items", statusInfo,
		fmt.Sprintf("%d across %d keys, %d workers", report.Items, report.Keys, report.Workers), colorize))
	fmt.Fprintln(out, renderStatusLine("Elapsed", statusInfo, fmt.Sprintf("%dms", report.ElapsedMS), colorize))
	fmt.Fprintln(out, renderStatusLine("Exclusivity", statusFromBool(report.ExclusivityFail == 0),
		fmt.Sprintf("%d violations", report.ExclusivityFail), colorize))
	retryKind := statusOK
	if report.GaveUp > 0 {
		retryKind = statusWarn
	}
	fmt.Fprintln(out, renderStatusLine("Retries", retryKind,
		fmt.Sprintf("%d retried, %d gave up", report.Retried, report.GaveUp), colorize))
	fmt.Fprintln(out)

	ids := make([]string, 0, len(report.PerConsumer))
	for id := range report.PerConsumer {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	rows := make([][]string, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, []string{id, strconv.Itoa(report.PerConsumer[id])})
	}
	fmt.Fprint(out, renderTable([]string{"Consumer", "Claims"}, rows, 1))
	fmt.Fprint(out, renderKeyValueTable("Queue", queueStatsRows(report.Queue)))
}

package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"sessionq/internal/config"
	"sessionq/internal/logging"
	"sessionq/internal/queue"
	"sessionq/internal/services"
)

// Claim and Finalize run detached from the pool context, bounded by these
// timeouts, so a claim the queue committed is never abandoned mid-call.
const (
	claimTimeout    = 5 * time.Second
	finalizeTimeout = 5 * time.Second
)

// Options configures a Pool.
type Options struct {
	Consumers       int
	Prefix          string
	PollInterval    time.Duration
	MaxPollInterval time.Duration
	MaxAttempts     int
	Logger          *slog.Logger
}

// OptionsFromConfig maps the [workers] section onto pool options.
func OptionsFromConfig(cfg *config.Config) Options {
	if cfg == nil {
		return Options{}
	}
	return Options{
		Consumers:       cfg.Workers.Consumers,
		Prefix:          cfg.Workers.ConsumerPrefix,
		PollInterval:    cfg.PollInterval(),
		MaxPollInterval: cfg.MaxPollInterval(),
		MaxAttempts:     cfg.Workers.MaxAttempts,
	}
}

func (o Options) withDefaults() Options {
	if o.Consumers < 1 {
		o.Consumers = 1
	}
	if o.Prefix == "" {
		o.Prefix = "worker"
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 50 * time.Millisecond
	}
	if o.MaxPollInterval < o.PollInterval {
		o.MaxPollInterval = o.PollInterval
	}
	if o.MaxAttempts < 1 {
		o.MaxAttempts = 1
	}
	return o
}

// Stats reports pool activity.
type Stats struct {
	Consumers    int
	Busy         int
	Claimed      uint64
	Succeeded    uint64
	Failed       uint64
	Retried      uint64
	GaveUp       uint64
	EmptyPolls   uint64
	SourceErrors uint64
}

// Pool runs consumers against a Source.
type Pool struct {
	source  Source
	handler Handler
	opts    Options
	logger  *slog.Logger

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	attempts map[string]int

	busy         atomic.Int32
	claimed      atomic.Uint64
	succeeded    atomic.Uint64
	failed       atomic.Uint64
	retried      atomic.Uint64
	gaveUp       atomic.Uint64
	emptyPolls   atomic.Uint64
	sourceErrors atomic.Uint64
}

// NewPool constructs a pool. Call Start to launch consumers.
func NewPool(source Source, handler Handler, opts Options) *Pool {
	opts = opts.withDefaults()
	return &Pool{
		source:   source,
		handler:  handler,
		opts:     opts,
		logger:   logging.NewComponentLogger(opts.Logger, "worker"),
		attempts: make(map[string]int),
	}
}

// ConsumerIDs lists the ids the pool's consumers claim with.
func (p *Pool) ConsumerIDs() []string {
	ids := make([]string, p.opts.Consumers)
	for i := range ids {
		ids[i] = p.opts.Prefix + "-" + strconv.Itoa(i+1)
	}
	return ids
}

// Start launches the consumers. They run until ctx is cancelled or Stop is called.
func (p *Pool) Start(ctx context.Context) error {
	if p.source == nil || p.handler == nil {
		return errors.New("worker pool requires a source and a handler")
	}
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return errors.New("worker pool already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true
	ids := p.ConsumerIDs()
	p.wg.Add(len(ids))
	p.mu.Unlock()

	p.logger.Info("worker pool started",
		logging.Int("consumers", len(ids)),
		logging.Duration("poll_interval", p.opts.PollInterval),
		logging.Int("max_attempts", p.opts.MaxAttempts),
		logging.Event("worker_pool_started"),
	)
	for _, id := range ids {
		go p.runConsumer(runCtx, id)
	}
	return nil
}

// Stop cancels consumers and waits for in-flight handlers to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	cancel := p.cancel
	p.running = false
	p.cancel = nil
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
	p.logger.Info("worker pool stopped", logging.Event("worker_pool_stopped"))
}

// Wait blocks until every consumer has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Stats returns a snapshot of pool counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Consumers:    p.opts.Consumers,
		Busy:         int(p.busy.Load()),
		Claimed:      p.claimed.Load(),
		Succeeded:    p.succeeded.Load(),
		Failed:       p.failed.Load(),
		Retried:      p.retried.Load(),
		GaveUp:       p.gaveUp.Load(),
		EmptyPolls:   p.emptyPolls.Load(),
		SourceErrors: p.sourceErrors.Load(),
	}
}

func (p *Pool) runConsumer(ctx context.Context, consumerID string) {
	defer p.wg.Done()
	logger := p.logger.With(logging.ConsumerID(consumerID))
	wait := p.opts.PollInterval

	for {
		if ctx.Err() != nil {
			return
		}

		claimCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), claimTimeout)
		item, ok, err := p.source.Claim(claimCtx, consumerID)
		cancel()
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			p.sourceErrors.Add(1)
			logging.WarnWithContext(logger, "claim failed; backing off", "worker_claim_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check that the daemon is running"),
				logging.String(logging.FieldImpact, "consumer idle until the queue is reachable"),
			)
		case !ok:
			p.emptyPolls.Add(1)
		case ctx.Err() != nil:
			p.handBack(ctx, logger, consumerID, item)
			return
		default:
			wait = p.opts.PollInterval
			p.process(ctx, consumerID, item)
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		if wait *= 2; wait > p.opts.MaxPollInterval {
			wait = p.opts.MaxPollInterval
		}
	}
}

// handBack returns an item claimed after the pool was stopped: the claim is
// finalized to release its key and the item is resubmitted unchanged.
func (p *Pool) handBack(ctx context.Context, logger *slog.Logger, consumerID string, item queue.Item) {
	backCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()
	itemLogger := logger.With(logging.ItemID(item.ID), logging.ItemKey(item.Key))
	if err := p.source.Finalize(backCtx, consumerID, item.ID); err != nil {
		p.sourceErrors.Add(1)
		logging.ErrorWithContext(itemLogger, "finalize after stop failed; key may remain claimed", "worker_handback_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "finalize the item manually with `sessionq finalize`"),
		)
		return
	}
	if err := p.source.Submit(backCtx, item); err != nil {
		p.sourceErrors.Add(1)
		logging.ErrorWithContext(itemLogger, "resubmit after stop failed; item dropped", "worker_handback_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "resubmit the item with `sessionq submit`"),
		)
		return
	}
	itemLogger.Debug("claim returned to queue after stop", logging.Event("worker_handback"))
}

func (p *Pool) process(ctx context.Context, consumerID string, item queue.Item) {
	p.claimed.Add(1)
	p.busy.Add(1)
	defer p.busy.Add(-1)

	itemCtx := services.WithConsumerID(ctx, consumerID)
	itemCtx = services.WithItemID(itemCtx, item.ID)
	itemCtx = services.WithItemKey(itemCtx, item.Key)
	itemLogger := logging.WithContext(itemCtx, p.logger)

	attempt := p.nextAttempt(item.ID)
	started := time.Now()
	handleErr := p.handle(itemCtx, item)

	// Finalize must run even when ctx was cancelled mid-handle, otherwise the
	// key would stay claimed for the life of the queue.
	finalizeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()
	if err := p.source.Finalize(finalizeCtx, consumerID, item.ID); err != nil {
		p.sourceErrors.Add(1)
		logging.ErrorWithContext(itemLogger, "finalize failed; key may remain claimed", "worker_finalize_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "finalize the item manually with `sessionq finalize`"),
		)
	}

	if handleErr == nil {
		p.succeeded.Add(1)
		p.clearAttempts(item.ID)
		itemLogger.Debug("item handled",
			logging.Int("attempt", attempt),
			logging.Duration("elapsed", time.Since(started)),
			logging.Event("item_handled"),
		)
		return
	}

	p.failed.Add(1)
	if services.Retryable(handleErr) && attempt < p.opts.MaxAttempts {
		if err := p.source.Submit(finalizeCtx, item); err != nil {
			p.sourceErrors.Add(1)
			p.clearAttempts(item.ID)
			logging.ErrorWithContext(itemLogger, "resubmit failed; item dropped", "worker_resubmit_failed",
				logging.Error(err),
				logging.String("handler_error", handleErr.Error()),
			)
			return
		}
		p.retried.Add(1)
		logging.WarnWithContext(itemLogger, "handler failed; item resubmitted", "item_retry",
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", p.opts.MaxAttempts),
			logging.String("failure", services.Classify(handleErr)),
			logging.Error(handleErr),
			logging.String(logging.FieldImpact, "item will be handled again after queued items"),
		)
		return
	}

	p.gaveUp.Add(1)
	p.clearAttempts(item.ID)
	logging.ErrorWithContext(itemLogger, "handler failed; item dropped", "item_failed",
		logging.Int("attempt", attempt),
		logging.String("failure", services.Classify(handleErr)),
		logging.Error(handleErr),
		logging.String(logging.FieldErrorHint, "inspect the handler error and resubmit with `sessionq submit`"),
	)
}

func (p *Pool) handle(ctx context.Context, item queue.Item) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return p.handler.Handle(ctx, item)
}

func (p *Pool) nextAttempt(itemID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts[itemID]++
	return p.attempts[itemID]
}

func (p *Pool) clearAttempts(itemID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.attempts, itemID)
}

package worker

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/polkiloo/offramp/internal/domain/model"
	"github.com/polkiloo/offramp/internal/metrics"
)

// SettlementFacade exposes the subset of engine operations driven by the poller.
type SettlementFacade interface {
	PendingWork(ctx context.Context, limit int) ([]model.Order, error)
	TriggerPayout(ctx context.Context, id string) (*model.Order, error)
	Reconcile(ctx context.Context, id string) (*model.Order, error)
}

// Options tunes the poller.
type Options struct {
	Interval time.Duration
	// Jitter spreads ticks uniformly over Interval ± Jitter.
	Jitter  time.Duration
	Batch   int
	Workers int
	// RateLimit caps partner-facing operations per second. Zero disables it.
	RateLimit float64
}

// ReconciliationPoller periodically advances orders stuck before a terminal
// state: it resubmits unfinished payouts and polls the partner for accepted ones.
type ReconciliationPoller struct {
	facade  SettlementFacade
	opts    Options
	limiter *rate.Limiter
	metrics metrics.Recorder
	logger  *slog.Logger

	jobs     chan model.Order
	inflight map[string]struct{}
	wg       sync.WaitGroup
	cancel   context.CancelFunc
	mu       sync.Mutex
}

// NewReconciliationPoller constructs poller with its worker pool.
func NewReconciliationPoller(facade SettlementFacade, opts Options, recorder metrics.Recorder, logger *slog.Logger) *ReconciliationPoller {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Batch <= 0 {
		opts.Batch = 1
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.Jitter < 0 || opts.Jitter >= opts.Interval {
		opts.Jitter = 0
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return &ReconciliationPoller{
		facade:   facade,
		opts:     opts,
		limiter:  limiter,
		metrics:  recorder,
		logger:   logger,
		jobs:     make(chan model.Order, opts.Batch),
		inflight: make(map[string]struct{}),
	}
}

// Start launches background processing.
func (p *ReconciliationPoller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	for i := 0; i < p.opts.Workers; i++ {
		p.wg.Add(1)
		go p.worker(runCtx)
	}

	p.wg.Add(1)
	go p.dispatch(runCtx)
}

// Stop cancels in-flight work and waits for all workers to finish.
func (p *ReconciliationPoller) Stop() {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *ReconciliationPoller) dispatch(ctx context.Context) {
	defer p.wg.Done()
	defer close(p.jobs)

	// Sweep once right away so work left by a previous process is picked up.
	p.fetchAndDispatch(ctx)

	timer := time.NewTimer(p.nextDelay())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			p.fetchAndDispatch(ctx)
			timer.Reset(p.nextDelay())
		}
	}
}

func (p *ReconciliationPoller) nextDelay() time.Duration {
	if p.opts.Jitter <= 0 {
		return p.opts.Interval
	}
	offset := time.Duration(rand.Int64N(int64(2*p.opts.Jitter)+1)) - p.opts.Jitter
	return p.opts.Interval + offset
}

func (p *ReconciliationPoller) fetchAndDispatch(ctx context.Context) {
	orders, err := p.facade.PendingWork(ctx, p.opts.Batch)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Error("fetch pending orders failed", slog.String("error", err.Error()))
		}
		return
	}
	p.metrics.ReconcileBatch(len(orders))

	for _, order := range orders {
		if !p.acquire(order.ID) {
			continue
		}
		select {
		case <-ctx.Done():
			p.release(order.ID)
			return
		case p.jobs <- order:
		}
	}
}

// acquire marks id as in flight, reporting false when a worker already holds it.
func (p *ReconciliationPoller) acquire(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inflight[id]; busy {
		return false
	}
	p.inflight[id] = struct{}{}
	return true
}

func (p *ReconciliationPoller) release(id string) {
	p.mu.Lock()
	delete(p.inflight, id)
	p.mu.Unlock()
}

func (p *ReconciliationPoller) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case order, ok := <-p.jobs:
			if !ok {
				return
			}
			p.handleOrder(ctx, order)
			p.release(order.ID)
		}
	}
}

func (p *ReconciliationPoller) handleOrder(ctx context.Context, order model.Order) {
	if err := p.limiter.Wait(ctx); err != nil {
		return
	}

	op := "trigger payout"
	var (
		result *model.Order
		err    error
	)
	if order.Status == model.OrderStatusPayoutAccepted {
		op = "reconcile"
		result, err = p.facade.Reconcile(ctx, order.ID)
	} else {
		result, err = p.facade.TriggerPayout(ctx, order.ID)
	}
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn(op+" failed",
				slog.String("order_id", order.ID),
				slog.String("status", string(order.Status)),
				slog.String("error", err.Error()),
			)
		}
		return
	}
	if result != nil && result.Status != order.Status {
		p.logger.Info("order advanced",
			slog.String("order_id", order.ID),
			slog.String("from", string(order.Status)),
			slog.String("status", string(result.Status)),
		)
	}
}

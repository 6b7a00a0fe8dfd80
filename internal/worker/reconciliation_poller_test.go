package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/polkiloo/offramp/internal/domain/model"
	testhelpers "github.com/polkiloo/offramp/internal/test"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.After(timeout)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal("timeout waiting for condition")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestNewReconciliationPollerDefaults(t *testing.T) {
	p := NewReconciliationPoller(&testhelpers.PollerFacadeStub{}, Options{Jitter: time.Hour}, &testhelpers.RecorderStub{}, discardLogger())
	if p.opts.Batch != 1 || p.opts.Workers != 1 {
		t.Fatalf("expected batch and workers to default to 1, got %d/%d", p.opts.Batch, p.opts.Workers)
	}
	if p.opts.Interval != time.Second {
		t.Fatalf("expected default interval, got %s", p.opts.Interval)
	}
	if p.opts.Jitter != 0 {
		t.Fatalf("jitter wider than interval must be dropped, got %s", p.opts.Jitter)
	}
}

func TestNextDelayStaysWithinJitter(t *testing.T) {
	p := NewReconciliationPoller(&testhelpers.PollerFacadeStub{}, Options{Interval: time.Second, Jitter: 200 * time.Millisecond}, &testhelpers.RecorderStub{}, discardLogger())
	for i := 0; i < 200; i++ {
		d := p.nextDelay()
		if d < 800*time.Millisecond || d > 1200*time.Millisecond {
			t.Fatalf("delay %s outside interval ± jitter", d)
		}
	}
}

func TestPollerDispatchesByStatus(t *testing.T) {
	facade := &testhelpers.PollerFacadeStub{Batches: [][]model.Order{{
		{ID: "a", Status: model.OrderStatusPayoutAccepted},
		{ID: "b", Status: model.OrderStatusProofVerified},
		{ID: "c", Status: model.OrderStatusSubmittingPayout},
	}}}
	recorder := &testhelpers.RecorderStub{}
	p := NewReconciliationPoller(facade, Options{Interval: 10 * time.Millisecond, Batch: 5, Workers: 2}, recorder, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	waitFor(t, time.Second, func() bool { return facade.Handled() == 3 })
	p.Stop()

	facade.Lock()
	defer facade.Unlock()
	if len(facade.Reconciled) != 1 || facade.Reconciled[0] != "a" {
		t.Fatalf("expected accepted order to be reconciled, got %v", facade.Reconciled)
	}
	if len(facade.Triggered) != 2 {
		t.Fatalf("expected two payout triggers, got %v", facade.Triggered)
	}
	if facade.Limits[0] != 5 {
		t.Fatalf("expected batch limit 5, got %d", facade.Limits[0])
	}
	if recorder.Count("batch") == 0 {
		t.Fatal("expected batch size to be recorded")
	}
}

func TestPollerSurvivesErrors(t *testing.T) {
	var calls int32
	facade := &testhelpers.PollerFacadeStub{
		PendingFn: func(context.Context, int) ([]model.Order, error) {
			switch atomic.AddInt32(&calls, 1) {
			case 1:
				return nil, errors.New("db down")
			case 2:
				return []model.Order{{ID: "x", Status: model.OrderStatusProofVerified}}, nil
			default:
				return []model.Order{{ID: "y", Status: model.OrderStatusPayoutAccepted}}, nil
			}
		},
		TriggerFn: func(context.Context, string) (*model.Order, error) {
			return nil, errors.New("partner down")
		},
	}
	p := NewReconciliationPoller(facade, Options{Interval: 5 * time.Millisecond, Batch: 1, Workers: 1}, &testhelpers.RecorderStub{}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	waitFor(t, time.Second, func() bool {
		facade.Lock()
		defer facade.Unlock()
		return len(facade.Reconciled) > 0
	})
	p.Stop()
}

func TestPollerSkipsOrdersAlreadyInFlight(t *testing.T) {
	release := make(chan struct{})
	var triggers int32
	facade := &testhelpers.PollerFacadeStub{
		PendingFn: func(context.Context, int) ([]model.Order, error) {
			return []model.Order{{ID: "slow", Status: model.OrderStatusProofVerified}}, nil
		},
		TriggerFn: func(ctx context.Context, id string) (*model.Order, error) {
			atomic.AddInt32(&triggers, 1)
			select {
			case <-release:
			case <-ctx.Done():
			}
			return nil, nil
		},
	}
	p := NewReconciliationPoller(facade, Options{Interval: 2 * time.Millisecond, Batch: 1, Workers: 4}, &testhelpers.RecorderStub{}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	waitFor(t, time.Second, func() bool {
		facade.Lock()
		defer facade.Unlock()
		return len(facade.Limits) >= 5
	})
	if got := atomic.LoadInt32(&triggers); got != 1 {
		t.Fatalf("expected single in-flight trigger, got %d", got)
	}
	close(release)
	p.Stop()
}

func TestPollerRateLimitsPartnerCalls(t *testing.T) {
	facade := &testhelpers.PollerFacadeStub{Batches: [][]model.Order{{
		{ID: "1", Status: model.OrderStatusProofVerified},
		{ID: "2", Status: model.OrderStatusProofVerified},
		{ID: "3", Status: model.OrderStatusProofVerified},
	}}}
	p := NewReconciliationPoller(facade, Options{Interval: time.Hour, Batch: 3, Workers: 3, RateLimit: 20}, &testhelpers.RecorderStub{}, discardLogger())

	start := time.Now()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	waitFor(t, 2*time.Second, func() bool { return facade.Handled() == 3 })
	p.Stop()

	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("unexpected throttling: %s", elapsed)
	}

	slow := NewReconciliationPoller(facade, Options{RateLimit: 0.5}, &testhelpers.RecorderStub{}, discardLogger())
	if slow.limiter.Burst() != 1 {
		t.Fatalf("expected burst of one for fractional rate, got %d", slow.limiter.Burst())
	}
}

func TestStopWithoutStart(t *testing.T) {
	p := NewReconciliationPoller(&testhelpers.PollerFacadeStub{}, Options{}, &testhelpers.RecorderStub{}, discardLogger())
	p.Stop()
}

package test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/polkiloo/offramp/internal/domain/model"
)

// SettlementFacadeStub provides controllable behaviour for order endpoints.
type SettlementFacadeStub struct {
	CreateFn    func(context.Context, model.CreateOrderInput) (*model.Order, bool, error)
	OrderFn     func(context.Context, string) (*model.Order, error)
	ConfirmFn   func(context.Context, string, string) (*model.Order, error)
	TriggerFn   func(context.Context, string) (*model.Order, error)
	ReconcileFn func(context.Context, string) (*model.Order, error)
	HistoryFn   func(context.Context, string) ([]model.OrderEvent, error)
}

// CreateOrder delegates to CreateFn or returns a fresh awaiting order.
func (s SettlementFacadeStub) CreateOrder(ctx context.Context, in model.CreateOrderInput) (*model.Order, bool, error) {
	if s.CreateFn != nil {
		return s.CreateFn(ctx, in)
	}
	return SampleOrder("ord-1", model.OrderStatusAwaitingProof), true, nil
}

// Order delegates to OrderFn or returns an awaiting order with given id.
func (s SettlementFacadeStub) Order(ctx context.Context, id string) (*model.Order, error) {
	if s.OrderFn != nil {
		return s.OrderFn(ctx, id)
	}
	return SampleOrder(id, model.OrderStatusAwaitingProof), nil
}

// ConfirmProof delegates to ConfirmFn or returns a verified order.
func (s SettlementFacadeStub) ConfirmProof(ctx context.Context, id, digest string) (*model.Order, error) {
	if s.ConfirmFn != nil {
		return s.ConfirmFn(ctx, id, digest)
	}
	o := SampleOrder(id, model.OrderStatusProofVerified)
	o.TransactionRef = &digest
	return o, nil
}

// TriggerPayout delegates to TriggerFn or returns an accepted order.
func (s SettlementFacadeStub) TriggerPayout(ctx context.Context, id string) (*model.Order, error) {
	if s.TriggerFn != nil {
		return s.TriggerFn(ctx, id)
	}
	o := SampleOrder(id, model.OrderStatusPayoutAccepted)
	ref := "P1"
	o.PartnerReference = &ref
	return o, nil
}

// Reconcile delegates to ReconcileFn or returns a completed order.
func (s SettlementFacadeStub) Reconcile(ctx context.Context, id string) (*model.Order, error) {
	if s.ReconcileFn != nil {
		return s.ReconcileFn(ctx, id)
	}
	return SampleOrder(id, model.OrderStatusCompleted), nil
}

// History delegates to HistoryFn or returns a single creation event.
func (s SettlementFacadeStub) History(ctx context.Context, id string) ([]model.OrderEvent, error) {
	if s.HistoryFn != nil {
		return s.HistoryFn(ctx, id)
	}
	return []model.OrderEvent{{OrderID: id, Status: model.OrderStatusAwaitingProof, Note: "created", CreatedAt: time.Unix(0, 0).UTC()}}, nil
}

// HealthCheckerStub reports configured error.
type HealthCheckerStub struct {
	Err error
}

// HealthCheck returns Err.
func (s HealthCheckerStub) HealthCheck(context.Context) error { return s.Err }

// SampleOrder builds a fully populated order in the given status.
func SampleOrder(id string, status model.OrderStatus) *model.Order {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &model.Order{
		ID:                id,
		PayoutTarget:      model.PayoutTarget{ID: "bank-1", Currency: "VND", Country: "VN"},
		PayerAddress:      "0x00000000000000000000000000000000000000000000000000000000000a11ce",
		CollectionAddress: "0x00000000000000000000000000000000000000000000000000000000000c0ffe",
		Asset:             model.Asset{Symbol: "USDC", CoinType: "0x2::usdc::USDC", Decimals: 6},
		ExpectedAmount:    "10000000",
		FiatCurrency:      "VND",
		Status:            status,
		CreatedAt:         created,
		UpdatedAt:         created,
	}
}

// PollerFacadeStub mimics the engine operations driven by the reconciliation poller.
type PollerFacadeStub struct {
	Batches     [][]model.Order
	PendingFn   func(context.Context, int) ([]model.Order, error)
	TriggerFn   func(context.Context, string) (*model.Order, error)
	ReconcileFn func(context.Context, string) (*model.Order, error)

	Triggered  []string
	Reconciled []string
	Limits     []int

	mu          sync.Mutex
	pendingCall int32
}

// Lock exposes internal mutex for external synchronization.
func (s *PollerFacadeStub) Lock() { s.mu.Lock() }

// Unlock releases previously acquired lock.
func (s *PollerFacadeStub) Unlock() { s.mu.Unlock() }

// PendingWork returns batches from configured queue, then nothing.
func (s *PollerFacadeStub) PendingWork(ctx context.Context, limit int) ([]model.Order, error) {
	s.mu.Lock()
	s.Limits = append(s.Limits, limit)
	s.mu.Unlock()
	if s.PendingFn != nil {
		return s.PendingFn(ctx, limit)
	}
	call := atomic.AddInt32(&s.pendingCall, 1)
	if int(call) <= len(s.Batches) {
		return s.Batches[call-1], nil
	}
	return nil, nil
}

// TriggerPayout records id.
func (s *PollerFacadeStub) TriggerPayout(ctx context.Context, id string) (*model.Order, error) {
	s.mu.Lock()
	s.Triggered = append(s.Triggered, id)
	s.mu.Unlock()
	if s.TriggerFn != nil {
		return s.TriggerFn(ctx, id)
	}
	return SampleOrder(id, model.OrderStatusPayoutAccepted), nil
}

// Reconcile records id.
func (s *PollerFacadeStub) Reconcile(ctx context.Context, id string) (*model.Order, error) {
	s.mu.Lock()
	s.Reconciled = append(s.Reconciled, id)
	s.mu.Unlock()
	if s.ReconcileFn != nil {
		return s.ReconcileFn(ctx, id)
	}
	return SampleOrder(id, model.OrderStatusCompleted), nil
}

// Handled reports how many orders reached either operation.
func (s *PollerFacadeStub) Handled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Triggered) + len(s.Reconciled)
}

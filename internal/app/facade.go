package app

import (
	"context"

	"github.com/polkiloo/offramp/internal/domain/model"
	"github.com/polkiloo/offramp/internal/usecase"
)

// SettlementFacade exposes settlement operations to the HTTP layer and the
// reconciliation poller.
type SettlementFacade struct {
	settlement *usecase.SettlementUseCase
}

func NewSettlementFacade(settlement *usecase.SettlementUseCase) *SettlementFacade {
	return &SettlementFacade{settlement: settlement}
}

func (f *SettlementFacade) CreateOrder(ctx context.Context, in model.CreateOrderInput) (*model.Order, bool, error) {
	return f.settlement.Create(ctx, in)
}

func (f *SettlementFacade) Order(ctx context.Context, id string) (*model.Order, error) {
	return f.settlement.Get(ctx, id)
}

func (f *SettlementFacade) ConfirmProof(ctx context.Context, id, digest string) (*model.Order, error) {
	return f.settlement.ConfirmProof(ctx, id, digest)
}

func (f *SettlementFacade) TriggerPayout(ctx context.Context, id string) (*model.Order, error) {
	return f.settlement.TriggerPayout(ctx, id)
}

func (f *SettlementFacade) Reconcile(ctx context.Context, id string) (*model.Order, error) {
	return f.settlement.Reconcile(ctx, id)
}

func (f *SettlementFacade) History(ctx context.Context, id string) ([]model.OrderEvent, error) {
	return f.settlement.History(ctx, id)
}

func (f *SettlementFacade) PendingWork(ctx context.Context, limit int) ([]model.Order, error) {
	return f.settlement.PendingWork(ctx, limit)
}

package handlers

import (
	"context"

	"github.com/polkiloo/offramp/internal/domain/model"
)

// SettlementFacade encapsulates order operations exposed via HTTP.
type SettlementFacade interface {
	CreateOrder(ctx context.Context, in model.CreateOrderInput) (*model.Order, bool, error)
	Order(ctx context.Context, id string) (*model.Order, error)
	ConfirmProof(ctx context.Context, id, digest string) (*model.Order, error)
	TriggerPayout(ctx context.Context, id string) (*model.Order, error)
	Reconcile(ctx context.Context, id string) (*model.Order, error)
	History(ctx context.Context, id string) ([]model.OrderEvent, error)
}

// HealthChecker reports whether backing storage is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

package usecase

import (
	"context"

	"github.com/polkiloo/offramp/internal/domain/model"
)

// Quoter prices one leg of an order from the other.
type Quoter interface {
	Quote(ctx context.Context, req model.QuoteRequest) (*model.Quote, error)
}

// TargetResolver turns payout target ids into fiat destinations.
type TargetResolver interface {
	Resolve(ctx context.Context, id string) (*model.PayoutTarget, error)
}

// TransferVerifier confirms on-chain receipt of funds.
type TransferVerifier interface {
	Verify(ctx context.Context, reference, recipient, coinType, minimumRaw string) (*model.TransferReceipt, error)
}

// PayoutGateway submits and tracks fiat payouts.
type PayoutGateway interface {
	Submit(ctx context.Context, req model.PayoutRequest) (string, error)
	Status(ctx context.Context, partnerOrderID string) (*model.PayoutStatus, error)
}

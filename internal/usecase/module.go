package usecase

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/offramp/internal/config"
	"github.com/polkiloo/offramp/internal/domain/repository"
	"github.com/polkiloo/offramp/internal/metrics"
	"github.com/polkiloo/offramp/internal/pkg/clock"
)

// Module provides core business use cases to the fx container.
var Module = fx.Provide(newSettlementUseCase)

type settlementParams struct {
	fx.In

	Config   *config.Config
	Logger   *slog.Logger
	Orders   repository.OrderRepository
	Targets  TargetResolver
	Quotes   Quoter
	Verifier TransferVerifier
	Payouts  PayoutGateway
	Metrics  metrics.Recorder
	Clock    clock.Clock `optional:"true"`
}

func newSettlementUseCase(p settlementParams) (*SettlementUseCase, error) {
	return NewSettlementUseCase(
		Dependencies{
			Orders:   p.Orders,
			Targets:  p.Targets,
			Quotes:   p.Quotes,
			Verifier: p.Verifier,
			Payouts:  p.Payouts,
			Metrics:  p.Metrics,
			Clock:    p.Clock,
		},
		Settings{
			CollectionAddress: p.Config.CollectionAddress,
			Assets:            p.Config.Assets,
			PayoutLease:       p.Config.PayoutLease,
			PayoutWait:        p.Config.PayoutWait,
			RetryGrace:        p.Config.PayoutRetryGrace,
		},
		p.Logger,
	)
}

package di

import (
	"go.uber.org/fx"

	"github.com/polkiloo/offramp/internal/adapter/chain"
	"github.com/polkiloo/offramp/internal/adapter/directory"
	"github.com/polkiloo/offramp/internal/adapter/payout"
	"github.com/polkiloo/offramp/internal/adapter/quote"
	"github.com/polkiloo/offramp/internal/app"
	"github.com/polkiloo/offramp/internal/config"
	"github.com/polkiloo/offramp/internal/logger"
	"github.com/polkiloo/offramp/internal/metrics"
	"github.com/polkiloo/offramp/internal/server/http/handlers"
	"github.com/polkiloo/offramp/internal/server/http/router"
	"github.com/polkiloo/offramp/internal/storage/postgres"
	"github.com/polkiloo/offramp/internal/usecase"
)

// Infrastructure wires storage and partner adapters to the use case ports.
var Infrastructure = fx.Options(
	postgres.Module,
	quote.Module,
	directory.Module,
	chain.Module,
	payout.Module,
	fx.Provide(
		func(client quote.Client) usecase.Quoter { return client },
		func(resolver directory.Resolver) usecase.TargetResolver { return resolver },
		func(verifier chain.Verifier) usecase.TransferVerifier { return verifier },
		func(client payout.Client) usecase.PayoutGateway { return client },
		func(s *postgres.Storage) handlers.HealthChecker { return s },
	),
)

// Core wires the settlement engine, HTTP surface and runtime lifecycle.
var Core = fx.Options(
	usecase.Module,
	fx.Provide(
		func(f *app.SettlementFacade) handlers.SettlementFacade { return f },
	),
	router.Module,
	app.Module,
)

func Module(opts ...fx.Option) fx.Option {
	modules := []fx.Option{
		config.Module,
		logger.Module,
		metrics.Module,
		Infrastructure,
		Core,
	}
	modules = append(modules, opts...)
	return fx.Options(modules...)
}

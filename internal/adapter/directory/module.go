package directory

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/offramp/internal/config"
)

// Module exposes payout target resolver to fx graph.
var Module = fx.Provide(newResolver)

type resolverParams struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
}

func newResolver(p resolverParams) (Resolver, error) {
	return NewHTTPResolver(p.Config.DirectoryAPIAddress, p.Config.ExternalTimeout, p.Logger)
}

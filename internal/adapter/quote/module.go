package quote

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/offramp/internal/config"
)

// Module exposes quote client implementation to fx graph.
var Module = fx.Provide(newClient)

type clientParams struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
}

func newClient(p clientParams) (Client, error) {
	return NewHTTPClient(p.Config.QuoteAPIAddress, p.Config.ExternalTimeout, p.Logger)
}

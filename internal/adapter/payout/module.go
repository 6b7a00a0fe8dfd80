package payout

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/offramp/internal/config"
	"github.com/polkiloo/offramp/internal/pkg/signing"
)

// Module exposes payout client implementation to fx graph.
var Module = fx.Provide(newClient)

type clientParams struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
}

func newClient(p clientParams) (Client, error) {
	client, err := NewHTTPClient(p.Config.PayoutAPIAddress, p.Config.PayoutAPIKey, p.Config.ExternalTimeout, p.Logger)
	if err != nil {
		return nil, err
	}
	if p.Config.PayoutSigningSecret != "" {
		client.WithSigner(signing.NewHMACSigner(p.Config.PayoutSigningSecret))
	}
	return client, nil
}

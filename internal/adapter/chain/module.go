package chain

import (
	"context"
	"log/slog"

	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/fx"

	"github.com/polkiloo/offramp/internal/config"
)

// Module exposes on-chain verifier to fx graph.
var Module = fx.Options(
	fx.Provide(newRPCClient),
	fx.Provide(newVerifier),
)

type rpcParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    *config.Config
}

func newRPCClient(p rpcParams) (*rpc.Client, error) {
	client, err := Dial(context.Background(), p.Config.ChainRPCAddress, p.Config.ExternalTimeout)
	if err != nil {
		return nil, err
	}
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			client.Close()
			return nil
		},
	})
	return client, nil
}

type verifierParams struct {
	fx.In

	Client *rpc.Client
	Config *config.Config
	Logger *slog.Logger
}

func newVerifier(p verifierParams) Verifier {
	return NewSuiVerifier(p.Client, p.Config.VerifyAttempts, p.Config.VerifyBackoff, p.Logger)
}

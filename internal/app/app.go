package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/polkiloo/offramp/internal/config"
	"github.com/polkiloo/offramp/internal/metrics"
	"github.com/polkiloo/offramp/internal/worker"
)

// Module wires application services, runtime components, and lifecycle hooks.
var Module = fx.Options(
	fx.Provide(
		NewSettlementFacade,
		newHTTPServer,
		newReconciliationPoller,
	),
	fx.Invoke(registerLifecycle),
)

type serverParams struct {
	fx.In

	Config *config.Config
	Router *gin.Engine
}

func newHTTPServer(p serverParams) *http.Server {
	return &http.Server{
		Addr:    p.Config.RunAddress,
		Handler: p.Router,
	}
}

type workerParams struct {
	fx.In

	Facade  *SettlementFacade
	Config  *config.Config
	Metrics metrics.Recorder
	Logger  *slog.Logger
}

func newReconciliationPoller(p workerParams) *worker.ReconciliationPoller {
	return worker.NewReconciliationPoller(
		p.Facade,
		worker.Options{
			Interval:  p.Config.ReconcileInterval,
			Jitter:    p.Config.ReconcileJitter,
			Batch:     p.Config.ReconcileBatch,
			Workers:   p.Config.WorkerPoolSize,
			RateLimit: p.Config.PartnerRateLimit,
		},
		p.Metrics,
		p.Logger,
	)
}

type lifecycleParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
	Logger     *slog.Logger
	Server     *http.Server
	Poller     *worker.ReconciliationPoller
	Config     *config.Config
}

func registerLifecycle(p lifecycleParams) {
	var cancel context.CancelFunc
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			p.Logger.Info("starting offramp", slog.String("addr", p.Server.Addr))
			// The start context expires once startup completes; the poller outlives it.
			var runCtx context.Context
			runCtx, cancel = context.WithCancel(context.WithoutCancel(ctx))
			p.Poller.Start(runCtx)
			go func() {
				if err := p.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					p.Logger.Error("http server terminated", slog.String("error", err.Error()))
					_ = p.Shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx := ctx
			stop := func() {}
			if _, ok := ctx.Deadline(); !ok {
				shutdownCtx, stop = context.WithTimeout(ctx, p.Config.ShutdownTimeout)
			}
			defer stop()

			err := p.Server.Shutdown(shutdownCtx)
			if cancel != nil {
				cancel()
			}
			p.Poller.Stop()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			p.Logger.Info("offramp stopped")
			return nil
		},
	})
}

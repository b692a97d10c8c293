package server

import (
	"context"

	"github.com/tech-arch1tect/phoneauth/config"
	"github.com/tech-arch1tect/phoneauth/services/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func ProvideServer(lc fx.Lifecycle, shutdowner fx.Shutdowner, cfg *config.Config, logger *logging.Service) *Server {
	srv := New(cfg, logger)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("server failed, shutting down", zap.Error(err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})

	return srv
}

var Module = fx.Options(
	fx.Provide(ProvideServer),
)

package smscode

import (
	"context"

	"github.com/tech-arch1tect/phoneauth/config"
	"github.com/tech-arch1tect/phoneauth/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideStore(db *gorm.DB) Store {
	return NewGormStore(db)
}

func ProvideGenerator(cfg *config.Config) *Generator {
	return NewGenerator(cfg.Verification.CodeTTL)
}

func ProvideRateLimiter(cfg *config.Config, store Store) *RateLimiter {
	return NewRateLimiter(store, cfg.Verification.ResendWindow)
}

func ProvideSweeper(lc fx.Lifecycle, cfg *config.Config, store Store, logger *logging.Service) *Sweeper {
	sweeper := NewSweeper(store, cfg.Verification.SweepInterval, logger.Named("smscode"))
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			sweeper.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			sweeper.Stop()
			return nil
		},
	})
	return sweeper
}

var Module = fx.Options(
	fx.Provide(ProvideStore, ProvideGenerator, ProvideRateLimiter, ProvideSweeper),
	fx.Invoke(func(*Sweeper) {}),
)

package revocation

import (
	"context"

	"github.com/tech-arch1tect/phoneauth/config"
	"github.com/tech-arch1tect/phoneauth/services/jwt"
	"github.com/tech-arch1tect/phoneauth/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideStore(db *gorm.DB, logger *logging.Service) Store {
	return NewMemoryStoreWithDB(db, logger.Named("revocation"))
}

func ProvideRevocationService(lc fx.Lifecycle, cfg *config.Config, store Store, logger *logging.Service) *Service {
	service := NewService(store, logger.Named("revocation"))

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := store.LoadFromDatabase(); err != nil {
				return err
			}
			service.StartCleanupWorker(cfg.Revocation.CleanupPeriod)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			service.StopCleanupWorker()
			return nil
		},
	})

	return service
}

func ProvideRevocationAsJWTInterface(svc *Service) jwt.RevocationService {
	return svc
}

var Module = fx.Options(
	fx.Provide(ProvideStore),
	fx.Provide(ProvideRevocationService),
	fx.Provide(ProvideRevocationAsJWTInterface),
)

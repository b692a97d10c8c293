package phoneauth

import (
	"github.com/tech-arch1tect/phoneauth/config"
	"github.com/tech-arch1tect/phoneauth/services/carrier"
	"github.com/tech-arch1tect/phoneauth/services/identity"
	"github.com/tech-arch1tect/phoneauth/services/jwt"
	"github.com/tech-arch1tect/phoneauth/services/loginlog"
	"github.com/tech-arch1tect/phoneauth/services/logging"
	"github.com/tech-arch1tect/phoneauth/services/sms"
	"github.com/tech-arch1tect/phoneauth/services/smscode"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Config     *config.Config
	Codes      smscode.Store
	Limiter    *smscode.RateLimiter
	Generator  *smscode.Generator
	Dispatcher sms.Dispatcher
	Users      identity.Store
	Tokens     *jwt.Service
	Resolver   carrier.Resolver
	Recorder   *loginlog.Recorder
	Logger     *logging.Service
}

func ProvidePhoneAuthService(p Params) *Service {
	logger := p.Logger.Named("phoneauth")
	if p.Config.Verification.DebugMode {
		logger.Warn("verification debug mode enabled, undelivered codes will be returned to clients",
			zap.String("app", p.Config.App.Name))
	}

	return NewService(Dependencies{
		Codes:      p.Codes,
		Limiter:    p.Limiter,
		Generator:  p.Generator,
		Dispatcher: p.Dispatcher,
		Users:      p.Users,
		Tokens:     p.Tokens,
		Resolver:   p.Resolver,
		Recorder:   p.Recorder,
		Logger:     logger,
		Roles:      p.Config.JWT.DefaultRoles,
		DebugMode:  p.Config.Verification.DebugMode,
	})
}

var Module = fx.Options(
	fx.Provide(ProvidePhoneAuthService),
)

package handlers

import (
	"github.com/tech-arch1tect/phoneauth/config"
	jwtmiddleware "github.com/tech-arch1tect/phoneauth/middleware/jwt"
	"github.com/tech-arch1tect/phoneauth/middleware/ratelimit"
	"github.com/tech-arch1tect/phoneauth/openapi"
	"github.com/tech-arch1tect/phoneauth/server"
	"github.com/tech-arch1tect/phoneauth/services/identity"
	"github.com/tech-arch1tect/phoneauth/services/jwt"
	"github.com/tech-arch1tect/phoneauth/services/logging"
	"github.com/tech-arch1tect/phoneauth/services/phoneauth"
	"go.uber.org/fx"
)

func ProvideAuthHandler(svc *phoneauth.Service, users identity.Store, tokens *jwt.Service, logger *logging.Service) *AuthHandler {
	return NewAuthHandler(svc, users, tokens, logger.Named("http"))
}

func ProvideDocument(cfg *config.Config) *openapi.Document {
	return openapi.New(cfg.App.Name, cfg.App.Version).
		Description("Phone number and carrier one-click authentication")
}

type RouteParams struct {
	fx.In

	Config   *config.Config
	Server   *server.Server
	Auth     *AuthHandler
	Tokens   *jwt.Service
	Store    *ratelimit.MemoryStore
	Document *openapi.Document
	Logger   *logging.Service
}

func RegisterRoutes(p RouteParams) {
	e := p.Server.Echo()
	e.HTTPErrorHandler = ErrorHandler(p.Logger.Named("http"))

	limiter := ratelimit.Middleware(&ratelimit.Config{
		Store:          p.Store,
		Rate:           p.Config.RateLimit.SendPerIP,
		Period:         p.Config.RateLimit.Period,
		OnLimitReached: RateLimitedResponse,
		Logger:         p.Logger.Named("ratelimit"),
	})

	routes := &Routes{
		Auth:        p.Auth,
		RequireJWT:  jwtmiddleware.RequireJWT(p.Tokens),
		SendLimiter: limiter,
		Document:    p.Document,
		Logout:      p.Config.Revocation.Enabled,
	}
	routes.Register(e)
}

var Module = fx.Options(
	fx.Provide(ProvideAuthHandler),
	fx.Provide(ProvideDocument),
	fx.Invoke(RegisterRoutes),
)

package app

import (
	"errors"
	"fmt"

	"github.com/tech-arch1tect/phoneauth/config"
	"github.com/tech-arch1tect/phoneauth/database"
	"github.com/tech-arch1tect/phoneauth/handlers"
	"github.com/tech-arch1tect/phoneauth/middleware/ratelimit"
	"github.com/tech-arch1tect/phoneauth/server"
	"github.com/tech-arch1tect/phoneauth/services/carrier"
	"github.com/tech-arch1tect/phoneauth/services/identity"
	"github.com/tech-arch1tect/phoneauth/services/jwt"
	"github.com/tech-arch1tect/phoneauth/services/logging"
	"github.com/tech-arch1tect/phoneauth/services/loginlog"
	"github.com/tech-arch1tect/phoneauth/services/phoneauth"
	"github.com/tech-arch1tect/phoneauth/services/revocation"
	"github.com/tech-arch1tect/phoneauth/services/sms"
	"github.com/tech-arch1tect/phoneauth/services/smscode"
	"go.uber.org/fx"
)

// Models are migrated on startup when DATABASE_AUTO_MIGRATE is set.
var Models = []any{
	&smscode.VerificationCode{},
	&identity.User{},
	&loginlog.LoginLog{},
	&revocation.RevokedToken{},
}

type AppBuilder struct {
	config    *config.Config
	fxOptions []fx.Option
	noServer  bool
	errors    []error
}

func NewApp() *AppBuilder {
	return &AppBuilder{}
}

func (b *AppBuilder) WithConfig(cfg *config.Config) *AppBuilder {
	if cfg == nil {
		b.addError("config cannot be nil")
		return b
	}
	b.config = cfg
	return b
}

// WithAutoConfig loads configuration from the environment and .env.
func (b *AppBuilder) WithAutoConfig() *AppBuilder {
	cfg := &config.Config{}
	if err := config.LoadConfig(cfg); err != nil {
		b.addError(fmt.Sprintf("failed to load config: %v", err))
		return b
	}
	b.config = cfg
	return b
}

// WithoutServer skips the HTTP listener. Routes are still registered.
func (b *AppBuilder) WithoutServer() *AppBuilder {
	b.noServer = true
	return b
}

func (b *AppBuilder) WithFxOptions(opts ...fx.Option) *AppBuilder {
	b.fxOptions = append(b.fxOptions, opts...)
	return b
}

func (b *AppBuilder) addError(msg string) {
	b.errors = append(b.errors, errors.New(msg))
}

func (b *AppBuilder) Build() (*App, error) {
	if b.config == nil && len(b.errors) == 0 {
		b.WithAutoConfig()
	}
	if len(b.errors) > 0 {
		return nil, fmt.Errorf("configuration errors: %w", errors.Join(b.errors...))
	}

	app := &App{config: b.config}

	options := append(b.buildFxOptions(), b.fxOptions...)
	options = append(options, fx.Populate(&app.logger, &app.db, &app.server, &app.auth))

	app.fx = fx.New(options...)
	if err := app.fx.Err(); err != nil {
		return nil, fmt.Errorf("failed to build application: %w", err)
	}
	return app, nil
}

func (b *AppBuilder) buildFxOptions() []fx.Option {
	options := []fx.Option{
		fx.NopLogger,
		config.NewProvider(b.config),
		logging.Module,
		fx.Supply(database.WithModels(Models...)),
		database.Module,
		smscode.Module,
		identity.Module,
		sms.Module,
		carrier.Module,
		loginlog.Module,
		jwt.Options,
		phoneauth.Module,
		ratelimit.Module,
		handlers.Module,
	}

	if b.config.Revocation.Enabled {
		options = append(options, revocation.Module)
	}

	if b.noServer {
		options = append(options, fx.Provide(func(cfg *config.Config, logger *logging.Service) *server.Server {
			return server.New(cfg, logger)
		}))
	} else {
		options = append(options, server.Module)
	}

	return options
}

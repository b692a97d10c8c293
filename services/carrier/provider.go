package carrier

import (
	"net/http"

	"github.com/tech-arch1tect/phoneauth/config"
	"github.com/tech-arch1tect/phoneauth/services/logging"
	"go.uber.org/fx"
)

func ProvideResolver(cfg *config.Config, logger *logging.Service) Resolver {
	return NewHTTPResolver(cfg.Carrier.Endpoint, cfg.Carrier.AppID, cfg.Carrier.Secret,
		&http.Client{Timeout: cfg.Carrier.Timeout}, logger.Named("carrier"))
}

var Module = fx.Options(
	fx.Provide(ProvideResolver),
)

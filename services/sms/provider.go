package sms

import (
	"fmt"
	"net/http"

	"github.com/tech-arch1tect/phoneauth/config"
	"github.com/tech-arch1tect/phoneauth/services/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewDispatcher builds the dispatcher selected by SMS_PROVIDER, bounded by SMS_TIMEOUT.
func NewDispatcher(cfg *config.Config, logger *logging.Service) (Dispatcher, error) {
	logger = logger.Named("sms")

	var dispatcher Dispatcher
	switch cfg.SMS.Provider {
	case "", "log":
		dispatcher = NewLogDispatcher(logger)
	case "gateway":
		dispatcher = NewGatewayDispatcher(cfg.SMS.GatewayURL, cfg.SMS.GatewayKey, cfg.SMS.SignName,
			&http.Client{Timeout: cfg.SMS.Timeout}, logger)
	case "mail":
		client, err := NewMailClient(&cfg.Mail)
		if err != nil {
			return nil, err
		}
		md, err := NewMailDispatcher(&cfg.Mail, cfg.SMS.MailDomain, cfg.SMS.SignName, client, logger)
		if err != nil {
			return nil, err
		}
		dispatcher = md
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.SMS.Provider)
	}

	logger.Info("sms dispatcher initialised",
		zap.String("provider", cfg.SMS.Provider),
		zap.Duration("timeout", cfg.SMS.Timeout))

	return WithTimeout(cfg.SMS.Timeout, dispatcher), nil
}

var Module = fx.Options(
	fx.Provide(NewDispatcher),
)

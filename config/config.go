package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	App          AppConfig          `envPrefix:"APP_"`
	Server       ServerConfig       `envPrefix:"SERVER_"`
	Log          LogConfig          `envPrefix:"LOG_"`
	Database     DatabaseConfig     `envPrefix:"DATABASE_"`
	JWT          JWTConfig          `envPrefix:"JWT_"`
	Revocation   RevocationConfig   `envPrefix:"REVOCATION_"`
	Verification VerificationConfig `envPrefix:"VERIFICATION_"`
	SMS          SMSConfig          `envPrefix:"SMS_"`
	Mail         MailConfig         `envPrefix:"MAIL_"`
	Carrier      CarrierConfig      `envPrefix:"CARRIER_"`
	RateLimit    RateLimitConfig    `envPrefix:"RATE_LIMIT_"`
}

type AppConfig struct {
	Name    string `env:"NAME" envDefault:"phoneauth"`
	Version string `env:"VERSION" envDefault:"1.0.0"`
}

type ServerConfig struct {
	Port           string        `env:"PORT" envDefault:"8080"`
	Host           string        `env:"HOST" envDefault:"localhost"`
	TrustedProxies []string      `env:"TRUSTED_PROXIES" envSeparator:","`
	ReadTimeout    time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout   time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
	Output string `env:"OUTPUT" envDefault:"stdout"`
}

type DatabaseConfig struct {
	Driver      string `env:"DRIVER" envDefault:"sqlite"`
	DSN         string `env:"DSN" envDefault:"phoneauth.db"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`
}

type JWTConfig struct {
	SecretKey    string        `env:"SECRET_KEY"`
	AccessExpiry time.Duration `env:"ACCESS_EXPIRY" envDefault:"168h"`
	Issuer       string        `env:"ISSUER" envDefault:"phoneauth"`
	DefaultRoles []string      `env:"DEFAULT_ROLES" envSeparator:"," envDefault:"user"`
}

type RevocationConfig struct {
	Enabled       bool          `env:"ENABLED" envDefault:"true"`
	CleanupPeriod time.Duration `env:"CLEANUP_PERIOD" envDefault:"1h"`
}

// VerificationConfig controls the SMS code lifecycle. DebugMode must never be
// enabled in production: it returns undelivered codes in API responses.
type VerificationConfig struct {
	CodeTTL       time.Duration `env:"CODE_TTL" envDefault:"5m"`
	ResendWindow  time.Duration `env:"RESEND_WINDOW" envDefault:"60s"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"10m"`
	DebugMode     bool          `env:"DEBUG_MODE" envDefault:"false"`
}

type SMSConfig struct {
	Provider   string        `env:"PROVIDER" envDefault:"log"`
	Timeout    time.Duration `env:"TIMEOUT" envDefault:"5s"`
	GatewayURL string        `env:"GATEWAY_URL"`
	GatewayKey string        `env:"GATEWAY_KEY"`
	MailDomain string        `env:"MAIL_DOMAIN"`
	SignName   string        `env:"SIGN_NAME" envDefault:"phoneauth"`
}

type MailConfig struct {
	Host        string `env:"HOST" envDefault:"localhost"`
	Port        int    `env:"PORT" envDefault:"587"`
	Username    string `env:"USERNAME"`
	Password    string `env:"PASSWORD"`
	Encryption  string `env:"ENCRYPTION" envDefault:"starttls"`
	FromAddress string `env:"FROM_ADDRESS"`
	FromName    string `env:"FROM_NAME"`
}

type CarrierConfig struct {
	Endpoint string        `env:"ENDPOINT"`
	AppID    string        `env:"APP_ID"`
	Secret   string        `env:"SECRET"`
	Timeout  time.Duration `env:"TIMEOUT" envDefault:"5s"`
}

type RateLimitConfig struct {
	SendPerIP int           `env:"SEND_PER_IP" envDefault:"20"`
	Period    time.Duration `env:"PERIOD" envDefault:"1m"`
}

func LoadConfig(cfg any) error {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	if err := env.Parse(cfg); err != nil {
		return err
	}

	if c, ok := cfg.(*Config); ok {
		return c.Validate()
	}
	return nil
}

func (c *Config) Validate() error {
	if err := validateJWTConfig(&c.JWT); err != nil {
		return err
	}
	if err := validateVerificationConfig(&c.Verification); err != nil {
		return err
	}
	return validateSMSConfig(&c.SMS)
}

func validateJWTConfig(cfg *JWTConfig) error {
	if len(cfg.SecretKey) < 32 {
		return fmt.Errorf("JWT secret key must be at least 32 characters long")
	}

	lower := strings.ToLower(cfg.SecretKey)
	for _, weak := range []string{"password", "secret", "changeme"} {
		if strings.Contains(lower, weak) {
			return fmt.Errorf("JWT secret key contains weak patterns")
		}
	}

	if cfg.AccessExpiry <= 0 {
		return fmt.Errorf("JWT access expiry must be positive")
	}
	return nil
}

func validateVerificationConfig(cfg *VerificationConfig) error {
	if cfg.CodeTTL <= 0 {
		return fmt.Errorf("verification code TTL must be positive")
	}
	if cfg.ResendWindow < 0 {
		return fmt.Errorf("verification resend window cannot be negative")
	}
	return nil
}

func validateSMSConfig(cfg *SMSConfig) error {
	switch cfg.Provider {
	case "log":
	case "gateway":
		if cfg.GatewayURL == "" {
			return fmt.Errorf("SMS gateway provider requires SMS_GATEWAY_URL")
		}
	case "mail":
		if cfg.MailDomain == "" {
			return fmt.Errorf("SMS mail provider requires SMS_MAIL_DOMAIN")
		}
	default:
		return fmt.Errorf("SMS provider must be: log, gateway, or mail")
	}
	return nil
}

package testutils

import (
	"sync"
	"time"

	"github.com/tech-arch1tect/phoneauth/config"
)

func GetTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name:    "Test App",
			Version: "test",
		},
		Log: config.LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Database: config.DatabaseConfig{
			Driver:      "sqlite",
			DSN:         ":memory:",
			AutoMigrate: true,
		},
		JWT: config.JWTConfig{
			SecretKey:    "test-key-32-chars-long-for-hs256!!",
			AccessExpiry: time.Hour,
			Issuer:       "test-issuer",
			DefaultRoles: []string{"user"},
		},
		Revocation: config.RevocationConfig{
			Enabled: true,
		},
		Verification: config.VerificationConfig{
			CodeTTL:      5 * time.Minute,
			ResendWindow: time.Minute,
		},
		SMS: config.SMSConfig{
			Provider: "log",
			Timeout:  time.Second,
			SignName: "Test App",
		},
		RateLimit: config.RateLimitConfig{
			SendPerIP: 100,
			Period:    time.Minute,
		},
	}
}

var TestPhones = struct {
	Valid     string
	Other     string
	TooShort  string
	BadPrefix string
}{
	Valid:     "13800138000",
	Other:     "13912345678",
	TooShort:  "1380013800",
	BadPrefix: "12800138000",
}

// Clock is a manually advanced time source for deterministic expiry tests.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

package smscode

import (
	"crypto/rand"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
)

const CodeLength = 6

// Generator issues numeric one-time codes. Each code is an HOTP value over a
// fresh random secret, so consecutive codes are independent.
type Generator struct {
	ttl time.Duration
}

func NewGenerator(ttl time.Duration) *Generator {
	return &Generator{ttl: ttl}
}

func (g *Generator) TTL() time.Duration {
	return g.ttl
}

// Generate returns a 6-digit code (leading zeros allowed) and its expiry.
func (g *Generator) Generate(now time.Time) (string, time.Time, error) {
	buf := make([]byte, 28)
	if _, err := rand.Read(buf); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to read random bytes: %w", err)
	}

	secret := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf[:20])
	counter := binary.BigEndian.Uint64(buf[20:])

	code, err := hotp.GenerateCodeCustom(secret, counter, hotp.ValidateOpts{
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate code: %w", err)
	}

	return code, now.Add(g.ttl), nil
}

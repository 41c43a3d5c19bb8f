package otp

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"time"

	"eventbook/internal/lifecycle"
)

const codeDigits = 6

// Provider issues and checks one-time confirmation codes.
type Provider struct {
	ttl time.Duration
}

func NewProvider(ttl time.Duration) *Provider {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Provider{ttl: ttl}
}

// Generate returns a fresh 6-digit code and its expiry time.
func (p *Provider) Generate(now time.Time) (string, time.Time, error) {
	max := big.NewInt(1)
	for i := 0; i < codeDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate otp: %w", err)
	}

	code := fmt.Sprintf("%0*d", codeDigits, n)
	return code, now.Add(p.ttl), nil
}

// Verify checks a submitted code against the stored one. Expiry is checked
// before equality: an expired-but-correct code is still rejected.
func (p *Provider) Verify(submitted, stored string, expiresAt, now time.Time) error {
	if stored == "" || expiresAt.IsZero() {
		return lifecycle.ErrOtpExpired
	}
	if now.After(expiresAt) {
		return lifecycle.ErrOtpExpired
	}
	if subtle.ConstantTimeCompare([]byte(submitted), []byte(stored)) != 1 {
		return lifecycle.ErrOtpMismatch
	}
	return nil
}

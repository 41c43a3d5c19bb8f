package otp

import (
	"testing"
	"time"

	"eventbook/internal/lifecycle"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	p := NewProvider(10 * time.Minute)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	code, expiresAt, err := p.Generate(now)
	require.NoError(t, err)
	assert.Len(t, code, 6)
	assert.Equal(t, now.Add(10*time.Minute), expiresAt)

	for _, c := range code {
		assert.True(t, c >= '0' && c <= '9', "code must be numeric: %s", code)
	}
}

func TestVerify(t *testing.T) {
	p := NewProvider(10 * time.Minute)
	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	expiresAt := issued.Add(10 * time.Minute)

	t.Run("match before expiry", func(t *testing.T) {
		err := p.Verify("482913", "482913", expiresAt, issued.Add(5*time.Minute))
		assert.NoError(t, err)
	})

	t.Run("mismatch", func(t *testing.T) {
		err := p.Verify("000000", "482913", expiresAt, issued.Add(5*time.Minute))
		assert.ErrorIs(t, err, lifecycle.ErrOtpMismatch)
	})

	t.Run("correct code after expiry is rejected", func(t *testing.T) {
		err := p.Verify("482913", "482913", expiresAt, issued.Add(11*time.Minute))
		assert.ErrorIs(t, err, lifecycle.ErrOtpExpired)
	})

	t.Run("no stored code", func(t *testing.T) {
		err := p.Verify("482913", "", expiresAt, issued)
		assert.ErrorIs(t, err, lifecycle.ErrOtpExpired)
	})
}

package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHMACService_RoundTrip(t *testing.T) {
	svc := NewHMACService("secret", "apply-codes", time.Hour)

	tok, err := svc.GenerateToken("uid-1", "recruiter@apply.codes", "Rae")
	require.NoError(t, err)

	c, err := svc.ValidateToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "uid-1", c.UserID())
	assert.Equal(t, "recruiter@apply.codes", c.Email)
	assert.Equal(t, "Rae", c.Name)
}

func TestHMACService_Expired(t *testing.T) {
	svc := NewHMACService("secret", "", time.Minute)
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tok, err := svc.GenerateToken("uid-1", "", "")
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateToken(tok)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestHMACService_Invalid(t *testing.T) {
	svc := NewHMACService("secret", "apply-codes", time.Hour)
	other := NewHMACService("other", "apply-codes", time.Hour)

	tok, err := other.GenerateToken("uid-1", "", "")
	require.NoError(t, err)

	_, err = svc.ValidateToken(tok)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = svc.ValidateToken("not-a-jwt")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = svc.GenerateToken(" ", "", "")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

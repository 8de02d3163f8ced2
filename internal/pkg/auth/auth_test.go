package auth

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"apply-codes/internal/pkg/jwt"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "https://securetoken.google.com/apply-codes-test"
	testAudience = "apply-codes-test"
)

func signRS256(t *testing.T, key *rsa.PrivateKey, claims jwtlib.MapClaims) string {
	t.Helper()
	tok, err := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return tok
}

func TestOIDCVerifier(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	now := time.Now()
	keySet := &gooidc.StaticKeySet{PublicKeys: []crypto.PublicKey{key.Public()}}
	v := NewOIDCVerifierFromKeySet(testIssuer, testAudience, keySet, func() time.Time { return now })

	valid := signRS256(t, key, jwtlib.MapClaims{
		"iss":   testIssuer,
		"aud":   testAudience,
		"sub":   "firebase-uid",
		"email": "rae@apply.codes",
		"name":  "Rae",
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	})

	id, err := v.Verify(context.Background(), valid)
	require.NoError(t, err)
	assert.Equal(t, Identity{UID: "firebase-uid", Email: "rae@apply.codes", Name: "Rae"}, id)

	wrongAud := signRS256(t, key, jwtlib.MapClaims{
		"iss": testIssuer, "aud": "someone-else", "sub": "x",
		"iat": now.Unix(), "exp": now.Add(time.Hour).Unix(),
	})
	_, err = v.Verify(context.Background(), wrongAud)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	later := NewOIDCVerifierFromKeySet(testIssuer, testAudience, keySet, func() time.Time { return now.Add(3 * time.Hour) })
	_, err = later.Verify(context.Background(), valid)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestHMACVerifier(t *testing.T) {
	svc := jwt.NewHMACService("secret", "", time.Hour)
	tok, err := svc.GenerateToken("uid-9", "a@b.co", "")
	require.NoError(t, err)

	v := NewHMACVerifier(svc)
	id, err := v.Verify(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "uid-9", id.UID)

	_, err = v.Verify(context.Background(), tok+"x")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

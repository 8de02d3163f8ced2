package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// OIDCVerifier checks ID tokens issued by an OpenID provider (for Firebase
// projects the issuer is https://securetoken.google.com/<project> and the
// audience is the project id).
type OIDCVerifier struct {
	verifier *gooidc.IDTokenVerifier
}

type idTokenClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func NewOIDCVerifier(ctx context.Context, issuer, audience string, httpClient *http.Client) (*OIDCVerifier, error) {
	issuer = strings.TrimSpace(issuer)
	audience = strings.TrimSpace(audience)
	if issuer == "" || audience == "" {
		return nil, errors.New("oidc issuer and audience are required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	op, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("discover oidc provider: %w", err)
	}

	return &OIDCVerifier{verifier: op.Verifier(&gooidc.Config{ClientID: audience})}, nil
}

// NewOIDCVerifierFromKeySet skips discovery; used when the key set is known up front.
func NewOIDCVerifierFromKeySet(issuer, audience string, keySet gooidc.KeySet, now func() time.Time) *OIDCVerifier {
	return &OIDCVerifier{verifier: gooidc.NewVerifier(issuer, keySet, &gooidc.Config{ClientID: audience, Now: now})}
}

func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (Identity, error) {
	if v == nil || v.verifier == nil {
		return Identity{}, ErrTokenInvalid
	}

	tok, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		var expired *gooidc.TokenExpiredError
		if errors.As(err, &expired) {
			return Identity{}, ErrTokenExpired
		}
		return Identity{}, ErrTokenInvalid
	}

	var c idTokenClaims
	if err := tok.Claims(&c); err != nil {
		return Identity{}, ErrTokenInvalid
	}
	if strings.TrimSpace(tok.Subject) == "" {
		return Identity{}, ErrTokenInvalid
	}
	return Identity{UID: tok.Subject, Email: c.Email, Name: c.Name}, nil
}

package auth

import (
	"context"
	"errors"

	"apply-codes/internal/pkg/jwt"
)

type HMACVerifier struct {
	svc jwt.Service
}

func NewHMACVerifier(svc jwt.Service) *HMACVerifier {
	return &HMACVerifier{svc: svc}
}

func (v *HMACVerifier) Verify(_ context.Context, rawToken string) (Identity, error) {
	if v == nil || v.svc == nil {
		return Identity{}, ErrTokenInvalid
	}
	c, err := v.svc.ValidateToken(rawToken)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrTokenExpired
		}
		return Identity{}, ErrTokenInvalid
	}
	return Identity{UID: c.UserID(), Email: c.Email, Name: c.Name}, nil
}

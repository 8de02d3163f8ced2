// Package auth verifies bearer ID tokens and resolves the caller identity.
package auth

import (
	"context"
	"errors"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

type Verifier interface {
	Verify(ctx context.Context, rawToken string) (Identity, error)
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"apply-codes/internal/logger"
	"apply-codes/internal/pkg/secretbox"
	"apply-codes/internal/store"

	"go.uber.org/zap"
)

type APIKeyResult struct {
	Service string `json:"service"`
	APIKey  string `json:"apiKey"`
}

type SecretsUsecase interface {
	GetAPIKey(ctx context.Context, userID, service string) (APIKeyResult, error)
	Put(ctx context.Context, service, value string) error
}

// Secrets serves vendor keys that are safe to hand to the browser.
// Configured values win over stored ones.
type Secrets struct {
	allowed    map[string]bool
	configured map[string]string
	box        *secretbox.Box
	store      store.Store
	audit      *Recorder
	logger     *zap.Logger
	now        func() time.Time
}

// NewSecretsUsecase takes a nil box when no encryption key is set; stored
// secrets are then unavailable.
func NewSecretsUsecase(allowed []string, configured map[string]string, box *secretbox.Box, s store.Store, audit *Recorder, log *zap.Logger) *Secrets {
	set := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		if name = strings.TrimSpace(name); name != "" {
			set[name] = true
		}
	}
	return &Secrets{
		allowed:    set,
		configured: configured,
		box:        box,
		store:      s,
		audit:      audit,
		logger:     logger.OrNop(log),
		now:        time.Now,
	}
}

func (u *Secrets) GetAPIKey(ctx context.Context, userID, service string) (APIKeyResult, error) {
	service = strings.TrimSpace(service)
	if service == "" {
		return APIKeyResult{}, invalid("service is required")
	}
	if !u.allowed[service] {
		return APIKeyResult{}, fmt.Errorf("%w: %s keys are not available to clients", ErrForbidden, service)
	}

	value := strings.TrimSpace(u.configured[service])
	if value == "" {
		v, err := u.stored(ctx, service)
		if err != nil {
			return APIKeyResult{}, err
		}
		value = v
	}
	if value == "" {
		return APIKeyResult{}, fmt.Errorf("%w: no key configured for %s", ErrNotFound, service)
	}

	u.audit.Record(ctx, store.CollectionSearchLogs, Entry{UserID: userID, Kind: "getApiKey", Request: map[string]any{"service": service}})
	return APIKeyResult{Service: service, APIKey: value}, nil
}

func (u *Secrets) stored(ctx context.Context, service string) (string, error) {
	if u.box == nil || u.store == nil {
		return "", nil
	}
	doc, err := u.store.Get(ctx, store.CollectionSecrets, service)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: read secret: %v", ErrInternal, err)
	}
	plain, err := u.box.Open(doc.String("value"))
	if err != nil {
		u.logger.Error("stored secret does not decrypt", zap.String("service", service), zap.Error(err))
		return "", fmt.Errorf("%w: secret for %s is unreadable", ErrInternal, service)
	}
	return plain, nil
}

// Put encrypts and stores value for service.
func (u *Secrets) Put(ctx context.Context, service, value string) error {
	service, value = strings.TrimSpace(service), strings.TrimSpace(value)
	if service == "" || value == "" {
		return invalid("service and value are required")
	}
	if u.box == nil {
		return fmt.Errorf("%w: SECRETS_ENCRYPTION_KEY is not set", ErrInvalidInput)
	}
	sealed, err := u.box.Seal(value)
	if err != nil {
		return fmt.Errorf("%w: seal secret: %v", ErrInternal, err)
	}
	return u.store.Set(ctx, store.CollectionSecrets, service, map[string]any{
		"value":      sealed,
		"updated_at": u.now().UTC(),
	})
}

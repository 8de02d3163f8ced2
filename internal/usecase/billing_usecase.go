package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"apply-codes/internal/infrastructure/payment"
	"apply-codes/internal/logger"
	"apply-codes/internal/pkg/auth"
	"apply-codes/internal/store"

	"go.uber.org/zap"
)

type PaymentProvider interface {
	CreateCustomer(ctx context.Context, p payment.CustomerParams, idempotencyKey string) (payment.Customer, error)
	CreateCheckoutSession(ctx context.Context, p payment.CheckoutParams, idempotencyKey string) (payment.CheckoutSession, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (payment.PortalSession, error)
}

type BillingConfig struct {
	SuccessURL    string
	CancelURL     string
	WebhookSecret string
	// Tolerance bounds the webhook signature age; zero uses payment.DefaultTolerance.
	Tolerance time.Duration
}

type CheckoutInput struct {
	PriceID        string
	Mode           string
	SuccessURL     string
	CancelURL      string
	IdempotencyKey string
}

type CheckoutResult struct {
	CheckoutURL string `json:"checkoutUrl"`
	SessionID   string `json:"sessionId"`
}

type PortalResult struct {
	URL string `json:"url"`
}

type WebhookResult struct {
	Received  bool `json:"received"`
	Duplicate bool `json:"duplicate"`
}

type BillingUsecase interface {
	CreateCheckoutSession(ctx context.Context, caller auth.Identity, in CheckoutInput) (CheckoutResult, error)
	CreatePortalSession(ctx context.Context, caller auth.Identity, returnURL string) (PortalResult, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) (WebhookResult, error)
}

type Billing struct {
	payments PaymentProvider
	store    store.Store
	cache    Cache
	cfg      BillingConfig
	logger   *zap.Logger
	now      func() time.Time
}

func NewBillingUsecase(payments PaymentProvider, s store.Store, cache Cache, cfg BillingConfig, log *zap.Logger) *Billing {
	if cfg.Tolerance == 0 {
		cfg.Tolerance = payment.DefaultTolerance
	}
	return &Billing{
		payments: payments,
		store:    s,
		cache:    cache,
		cfg:      cfg,
		logger:   logger.OrNop(log),
		now:      time.Now,
	}
}

// customerRecord is customers/{uid}.
type customerRecord struct {
	UID              string    `json:"uid"`
	StripeCustomerID string    `json:"stripe_customer_id"`
	Email            string    `json:"email,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

func (u *Billing) CreateCheckoutSession(ctx context.Context, caller auth.Identity, in CheckoutInput) (CheckoutResult, error) {
	priceID := strings.TrimSpace(in.PriceID)
	if priceID == "" {
		return CheckoutResult{}, invalid("priceId is required")
	}
	mode := strings.TrimSpace(in.Mode)
	if mode == "" {
		mode = payment.ModeSubscription
	}
	if mode != payment.ModeSubscription && mode != payment.ModePayment {
		return CheckoutResult{}, invalid("mode must be %q or %q", payment.ModeSubscription, payment.ModePayment)
	}

	customerID, err := u.ensureCustomer(ctx, caller)
	if err != nil {
		return CheckoutResult{}, err
	}

	idem := ""
	if k := strings.TrimSpace(in.IdempotencyKey); k != "" {
		idem = "checkout-" + caller.UID + "-" + k
	}
	session, err := u.payments.CreateCheckoutSession(ctx, payment.CheckoutParams{
		CustomerID: customerID,
		PriceID:    priceID,
		Mode:       mode,
		SuccessURL: firstNonEmpty(in.SuccessURL, u.cfg.SuccessURL),
		CancelURL:  firstNonEmpty(in.CancelURL, u.cfg.CancelURL),
		UID:        caller.UID,
	}, idem)
	if err != nil {
		return CheckoutResult{}, err
	}

	err = u.store.Set(ctx, store.CollectionCheckoutSessions, session.ID, map[string]any{
		"uid":         caller.UID,
		"customer_id": customerID,
		"price_id":    priceID,
		"mode":        mode,
		"status":      "open",
		"created_at":  u.now().UTC(),
	})
	if err != nil {
		u.logger.Warn("checkout session record failed", zap.String("session_id", session.ID), zap.Error(err))
	}
	return CheckoutResult{CheckoutURL: session.URL, SessionID: session.ID}, nil
}

// ensureCustomer returns the caller's Stripe customer, creating it at most
// once. The Stripe idempotency key collapses concurrent creations on the
// vendor side and Create collapses them in the store.
func (u *Billing) ensureCustomer(ctx context.Context, caller auth.Identity) (string, error) {
	existing, err := u.customerID(ctx, caller.UID)
	if err != nil {
		return "", err
	}
	if existing != "" {
		return existing, nil
	}

	cust, err := u.payments.CreateCustomer(ctx, payment.CustomerParams{
		UID:   caller.UID,
		Email: caller.Email,
		Name:  caller.Name,
	}, "customer-"+caller.UID)
	if err != nil {
		return "", err
	}

	rec := customerRecord{UID: caller.UID, StripeCustomerID: cust.ID, Email: firstNonEmpty(cust.Email, caller.Email), CreatedAt: u.now().UTC()}
	err = u.store.Create(ctx, store.CollectionCustomers, caller.UID, rec)
	if errors.Is(err, store.ErrAlreadyExists) {
		winner, err := u.customerID(ctx, caller.UID)
		if err != nil {
			return "", err
		}
		if winner != "" {
			return winner, nil
		}
		// the document exists without a customer id (written by a webhook)
		err = u.store.Merge(ctx, store.CollectionCustomers, caller.UID, map[string]any{"stripe_customer_id": cust.ID, "email": rec.Email})
		if err != nil {
			return "", fmt.Errorf("%w: save customer: %v", ErrInternal, err)
		}
		return cust.ID, nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: save customer: %v", ErrInternal, err)
	}
	return cust.ID, nil
}

func (u *Billing) customerID(ctx context.Context, uid string) (string, error) {
	doc, err := u.store.Get(ctx, store.CollectionCustomers, uid)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: read customer: %v", ErrInternal, err)
	}
	return doc.String("stripe_customer_id"), nil
}

func (u *Billing) CreatePortalSession(ctx context.Context, caller auth.Identity, returnURL string) (PortalResult, error) {
	customerID, err := u.customerID(ctx, caller.UID)
	if err != nil {
		return PortalResult{}, err
	}
	if customerID == "" {
		return PortalResult{}, fmt.Errorf("%w: no billing customer for this account", ErrNotFound)
	}
	session, err := u.payments.CreatePortalSession(ctx, customerID, firstNonEmpty(returnURL, u.cfg.SuccessURL))
	if err != nil {
		return PortalResult{}, err
	}
	return PortalResult{URL: session.URL}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

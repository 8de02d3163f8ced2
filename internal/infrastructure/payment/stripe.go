// Package payment is a thin Stripe REST client: customers, checkout and
// billing portal sessions, and webhook verification.
package payment

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"apply-codes/internal/infrastructure/vendor"

	"go.uber.org/zap"
)

const VendorStripe = "stripe"

const (
	ModeSubscription = "subscription"
	ModePayment      = "payment"
)

type Stripe struct {
	client *vendor.Client
}

func NewStripe(secretKey, baseURL string, logger *zap.Logger, opts ...vendor.Option) *Stripe {
	if strings.TrimSpace(secretKey) == "" {
		return nil
	}
	opts = append([]vendor.Option{vendor.WithBearer(secretKey), vendor.WithHeader("Stripe-Version", "2024-06-20")}, opts...)
	return &Stripe{client: vendor.New(VendorStripe, baseURL, logger, opts...)}
}

type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type CustomerParams struct {
	UID   string
	Email string
	Name  string
}

// CreateCustomer creates a customer. Stripe replays the first answer for a
// repeated idempotency key, so retries cannot create a second customer.
func (s *Stripe) CreateCustomer(ctx context.Context, p CustomerParams, idempotencyKey string) (Customer, error) {
	if s == nil {
		return Customer{}, vendor.NotConfigured(VendorStripe)
	}
	form := url.Values{}
	setIf(form, "email", p.Email)
	setIf(form, "name", p.Name)
	setIf(form, "metadata[uid]", p.UID)

	var out Customer
	err := s.client.Do(ctx, vendor.Request{
		Method: http.MethodPost,
		Path:   "/v1/customers",
		Form:   form,
		Header: idempotency(idempotencyKey),
	}, &out)
	return out, err
}

type CheckoutParams struct {
	CustomerID string
	PriceID    string
	Mode       string
	SuccessURL string
	CancelURL  string
	UID        string
}

type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (s *Stripe) CreateCheckoutSession(ctx context.Context, p CheckoutParams, idempotencyKey string) (CheckoutSession, error) {
	if s == nil {
		return CheckoutSession{}, vendor.NotConfigured(VendorStripe)
	}
	mode := p.Mode
	if mode == "" {
		mode = ModeSubscription
	}
	form := url.Values{}
	form.Set("mode", mode)
	form.Set("line_items[0][price]", p.PriceID)
	form.Set("line_items[0][quantity]", "1")
	setIf(form, "customer", p.CustomerID)
	setIf(form, "success_url", p.SuccessURL)
	setIf(form, "cancel_url", p.CancelURL)
	setIf(form, "client_reference_id", p.UID)
	setIf(form, "metadata[uid]", p.UID)
	if mode == ModeSubscription {
		setIf(form, "subscription_data[metadata][uid]", p.UID)
	}

	var out CheckoutSession
	err := s.client.Do(ctx, vendor.Request{
		Method: http.MethodPost,
		Path:   "/v1/checkout/sessions",
		Form:   form,
		Header: idempotency(idempotencyKey),
	}, &out)
	return out, err
}

type PortalSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (s *Stripe) CreatePortalSession(ctx context.Context, customerID, returnURL string) (PortalSession, error) {
	if s == nil {
		return PortalSession{}, vendor.NotConfigured(VendorStripe)
	}
	form := url.Values{"customer": {customerID}}
	setIf(form, "return_url", returnURL)

	var out PortalSession
	err := s.client.Do(ctx, vendor.Request{Method: http.MethodPost, Path: "/v1/billing_portal/sessions", Form: form}, &out)
	return out, err
}

func setIf(form url.Values, key, value string) {
	if value = strings.TrimSpace(value); value != "" {
		form.Set(key, value)
	}
}

func idempotency(key string) map[string]string {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	return map[string]string{"Idempotency-Key": key}
}

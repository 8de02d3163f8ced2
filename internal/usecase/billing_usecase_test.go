package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"apply-codes/internal/infrastructure/payment"
	"apply-codes/internal/pkg/auth"
	"apply-codes/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePayments struct {
	mu        sync.Mutex
	customers []string
	sessions  []payment.CheckoutParams
	idemKeys  []string
}

func (f *fakePayments) CreateCustomer(_ context.Context, p payment.CustomerParams, key string) (payment.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.customers = append(f.customers, key)
	return payment.Customer{ID: "cus_" + p.UID, Email: p.Email}, nil
}

func (f *fakePayments) CreateCheckoutSession(_ context.Context, p payment.CheckoutParams, key string) (payment.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, p)
	f.idemKeys = append(f.idemKeys, key)
	id := fmt.Sprintf("cs_%d", len(f.sessions))
	return payment.CheckoutSession{ID: id, URL: "https://checkout.stripe.test/" + id}, nil
}

func (f *fakePayments) CreatePortalSession(_ context.Context, customerID, _ string) (payment.PortalSession, error) {
	return payment.PortalSession{ID: "bps_1", URL: "https://billing.stripe.test/" + customerID}, nil
}

var alice = auth.Identity{UID: "alice", Email: "alice@example.com", Name: "Alice"}

func newBilling(t *testing.T) (*Billing, *fakePayments, store.Store) {
	t.Helper()
	pay := &fakePayments{}
	s := store.NewMemory()
	uc := NewBillingUsecase(pay, s, newMemCache(), BillingConfig{
		SuccessURL:    "https://app.test/ok",
		CancelURL:     "https://app.test/cancel",
		WebhookSecret: "whsec_test",
	}, nil)
	return uc, pay, s
}

func TestCheckout_CreatesOneCustomerAndSession(t *testing.T) {
	uc, pay, s := newBilling(t)
	ctx := context.Background()

	res, err := uc.CreateCheckoutSession(ctx, alice, CheckoutInput{PriceID: "price_pro"})
	require.NoError(t, err)
	assert.Equal(t, "cs_1", res.SessionID)
	assert.Equal(t, "https://checkout.stripe.test/cs_1", res.CheckoutURL)

	assert.Equal(t, []string{"customer-alice"}, pay.customers)
	require.Len(t, pay.sessions, 1)
	assert.Equal(t, "cus_alice", pay.sessions[0].CustomerID)
	assert.Equal(t, payment.ModeSubscription, pay.sessions[0].Mode)
	assert.Equal(t, "https://app.test/ok", pay.sessions[0].SuccessURL)

	doc, err := s.Get(ctx, store.CollectionCustomers, "alice")
	require.NoError(t, err)
	assert.Equal(t, "cus_alice", doc.String("stripe_customer_id"))
	_, err = s.Get(ctx, store.CollectionCheckoutSessions, "cs_1")
	require.NoError(t, err)
}

func TestCheckout_RetryReusesCustomer(t *testing.T) {
	uc, pay, s := newBilling(t)
	ctx := context.Background()

	_, err := uc.CreateCheckoutSession(ctx, alice, CheckoutInput{PriceID: "price_pro", IdempotencyKey: "k1"})
	require.NoError(t, err)
	_, err = uc.CreateCheckoutSession(ctx, alice, CheckoutInput{PriceID: "price_pro", IdempotencyKey: "k1"})
	require.NoError(t, err)

	assert.Len(t, pay.customers, 1)
	assert.Equal(t, []string{"checkout-alice-k1", "checkout-alice-k1"}, pay.idemKeys)
	assert.EqualValues(t, 1, countDocs(t, s, store.CollectionCustomers, nil))
}

func TestCheckout_ConcurrentFirstCallsStoreOneCustomer(t *testing.T) {
	uc, _, s := newBilling(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := uc.CreateCheckoutSession(ctx, alice, CheckoutInput{PriceID: "price_pro"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, countDocs(t, s, store.CollectionCustomers, nil))
}

func TestCheckout_Validation(t *testing.T) {
	uc, pay, _ := newBilling(t)
	_, err := uc.CreateCheckoutSession(context.Background(), alice, CheckoutInput{})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = uc.CreateCheckoutSession(context.Background(), alice, CheckoutInput{PriceID: "price_pro", Mode: "setup"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, pay.customers)
}

func TestPortal_NeedsCustomer(t *testing.T) {
	uc, _, _ := newBilling(t)
	ctx := context.Background()

	_, err := uc.CreatePortalSession(ctx, alice, "")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = uc.CreateCheckoutSession(ctx, alice, CheckoutInput{PriceID: "price_pro"})
	require.NoError(t, err)
	res, err := uc.CreatePortalSession(ctx, alice, "")
	require.NoError(t, err)
	assert.Equal(t, "https://billing.stripe.test/cus_alice", res.URL)
}

func stripeEvent(t *testing.T, id, typ string, object map[string]any) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{"id": id, "type": typ, "created": time.Now().Unix(), "data": map[string]any{"object": object}})
	require.NoError(t, err)
	return b
}

func TestStripeWebhook_SubscriptionLifecycle(t *testing.T) {
	uc, _, s := newBilling(t)
	ctx := context.Background()
	_, err := uc.CreateCheckoutSession(ctx, alice, CheckoutInput{PriceID: "price_pro"})
	require.NoError(t, err)

	payload := stripeEvent(t, "evt_1", "customer.subscription.created", map[string]any{
		"id":                 "sub_1",
		"customer":           "cus_alice",
		"status":             "active",
		"current_period_end": float64(time.Now().Add(720 * time.Hour).Unix()),
		"items":              map[string]any{"data": []any{map[string]any{"price": map[string]any{"id": "price_pro"}}}},
	})
	res, err := uc.HandleWebhook(ctx, payload, payment.Sign(payload, "whsec_test", time.Now()))
	require.NoError(t, err)
	assert.Equal(t, WebhookResult{Received: true}, res)

	sub, err := s.Get(ctx, store.CollectionSubscriptions, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, "alice", sub.String("uid"))
	assert.Equal(t, "price_pro", sub.String("price_id"))

	cust, err := s.Get(ctx, store.CollectionCustomers, "alice")
	require.NoError(t, err)
	assert.Equal(t, "active", cust.String("plan_status"))
	assert.Equal(t, "cus_alice", cust.String("stripe_customer_id"))

	// replay
	res, err = uc.HandleWebhook(ctx, payload, payment.Sign(payload, "whsec_test", time.Now()))
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
}

func TestStripeWebhook_DuplicateWithoutRedis(t *testing.T) {
	pay := &fakePayments{}
	s := store.NewMemory()
	uc := NewBillingUsecase(pay, s, nil, BillingConfig{WebhookSecret: "whsec_test"}, nil)
	ctx := context.Background()

	payload := stripeEvent(t, "evt_2", "invoice.paid", map[string]any{"id": "in_1", "subscription": "sub_9", "amount_paid": 4900})
	for i := 0; i < 2; i++ {
		res, err := uc.HandleWebhook(ctx, payload, payment.Sign(payload, "whsec_test", time.Now()))
		require.NoError(t, err)
		assert.Equal(t, i == 1, res.Duplicate)
	}
	sub, err := s.Get(ctx, store.CollectionSubscriptions, "sub_9")
	require.NoError(t, err)
	assert.Equal(t, "paid", sub.String("last_payment_status"))
}

func TestStripeWebhook_BadSignature(t *testing.T) {
	uc, _, _ := newBilling(t)
	payload := stripeEvent(t, "evt_3", "invoice.paid", map[string]any{})
	_, err := uc.HandleWebhook(context.Background(), payload, payment.Sign(payload, "wrong", time.Now()))
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = uc.HandleWebhook(context.Background(), payload, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

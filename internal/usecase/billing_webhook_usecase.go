package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"apply-codes/internal/infrastructure/payment"
	"apply-codes/internal/store"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

const webhookSourceStripe = "stripe"

type checkoutObject struct {
	ID                string            `mapstructure:"id"`
	Customer          string            `mapstructure:"customer"`
	Subscription      string            `mapstructure:"subscription"`
	ClientReferenceID string            `mapstructure:"client_reference_id"`
	Mode              string            `mapstructure:"mode"`
	PaymentStatus     string            `mapstructure:"payment_status"`
	AmountTotal       int64             `mapstructure:"amount_total"`
	Currency          string            `mapstructure:"currency"`
	Metadata          map[string]string `mapstructure:"metadata"`
}

type subscriptionObject struct {
	ID                string            `mapstructure:"id"`
	Customer          string            `mapstructure:"customer"`
	Status            string            `mapstructure:"status"`
	CurrentPeriodEnd  int64             `mapstructure:"current_period_end"`
	CancelAtPeriodEnd bool              `mapstructure:"cancel_at_period_end"`
	Metadata          map[string]string `mapstructure:"metadata"`
	Items             struct {
		Data []struct {
			Price struct {
				ID       string `mapstructure:"id"`
				Nickname string `mapstructure:"nickname"`
			} `mapstructure:"price"`
		} `mapstructure:"data"`
	} `mapstructure:"items"`
}

func (s subscriptionObject) priceID() string {
	if len(s.Items.Data) == 0 {
		return ""
	}
	return s.Items.Data[0].Price.ID
}

type invoiceObject struct {
	ID           string `mapstructure:"id"`
	Customer     string `mapstructure:"customer"`
	Subscription string `mapstructure:"subscription"`
	Status       string `mapstructure:"status"`
	AmountPaid   int64  `mapstructure:"amount_paid"`
	AmountDue    int64  `mapstructure:"amount_due"`
	Currency     string `mapstructure:"currency"`
}

// decodeObject maps a Stripe data.object onto one of the structs above.
// Unknown fields are ignored.
func decodeObject(in map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}

// HandleWebhook verifies and applies one Stripe event. Replays of an event
// id already processed are acknowledged without side effects.
func (u *Billing) HandleWebhook(ctx context.Context, payload []byte, signature string) (WebhookResult, error) {
	ev, err := payment.ConstructEvent(payload, signature, u.cfg.WebhookSecret, u.cfg.Tolerance, u.now())
	if err != nil {
		u.logger.Warn("stripe webhook rejected", zap.Error(err))
		return WebhookResult{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	ledger := eventLedger{store: u.store, cache: u.cache, logger: u.logger, now: u.now}
	claimed, err := ledger.claim(ctx, webhookSourceStripe, ev.ID, ev.Type)
	if err != nil {
		return WebhookResult{}, err
	}
	if !claimed {
		u.logger.Info("stripe webhook duplicate", zap.String("event_id", ev.ID), zap.String("type", ev.Type))
		return WebhookResult{Received: true, Duplicate: true}, nil
	}

	procErr := u.apply(ctx, ev)
	ledger.finish(ctx, webhookSourceStripe, ev.ID, procErr)
	if procErr != nil {
		u.logger.Error("stripe webhook processing failed",
			zap.String("event_id", ev.ID),
			zap.String("type", ev.Type),
			zap.Error(procErr),
		)
		return WebhookResult{}, fmt.Errorf("%w: %v", ErrInternal, procErr)
	}
	return WebhookResult{Received: true}, nil
}

func (u *Billing) apply(ctx context.Context, ev payment.Event) error {
	obj := ev.Data.Object
	switch ev.Type {
	case "checkout.session.completed":
		var cs checkoutObject
		if err := decodeObject(obj, &cs); err != nil {
			return err
		}
		return u.checkoutCompleted(ctx, cs)
	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		var sub subscriptionObject
		if err := decodeObject(obj, &sub); err != nil {
			return err
		}
		if ev.Type == "customer.subscription.deleted" {
			sub.Status = "canceled"
		}
		return u.subscriptionChanged(ctx, sub)
	case "invoice.paid", "invoice.payment_failed":
		var inv invoiceObject
		if err := decodeObject(obj, &inv); err != nil {
			return err
		}
		status := "paid"
		if ev.Type == "invoice.payment_failed" {
			status = "failed"
		}
		return u.invoiceSettled(ctx, inv, status)
	default:
		u.logger.Debug("stripe webhook ignored", zap.String("type", ev.Type))
		return nil
	}
}

func (u *Billing) checkoutCompleted(ctx context.Context, cs checkoutObject) error {
	uid := firstNonEmpty(cs.ClientReferenceID, cs.Metadata["uid"])
	now := u.now().UTC()

	if cs.ID != "" {
		err := u.store.Merge(ctx, store.CollectionCheckoutSessions, cs.ID, map[string]any{
			"status":          "completed",
			"payment_status":  cs.PaymentStatus,
			"subscription_id": cs.Subscription,
			"amount_total":    cs.AmountTotal,
			"currency":        cs.Currency,
			"completed_at":    now,
		})
		if err != nil {
			return fmt.Errorf("update checkout session: %w", err)
		}
	}
	if uid == "" {
		return nil
	}
	fields := map[string]any{"uid": uid, "updated_at": now}
	if cs.Customer != "" {
		fields["stripe_customer_id"] = cs.Customer
	}
	if cs.Subscription != "" {
		fields["subscription_id"] = cs.Subscription
	}
	if cs.Mode == payment.ModePayment && cs.PaymentStatus == "paid" {
		fields["last_payment_at"] = now
	}
	if err := u.store.Merge(ctx, store.CollectionCustomers, uid, fields); err != nil {
		return fmt.Errorf("update customer: %w", err)
	}
	return nil
}

func (u *Billing) subscriptionChanged(ctx context.Context, sub subscriptionObject) error {
	if sub.ID == "" {
		return errors.New("subscription event without id")
	}
	uid := sub.Metadata["uid"]
	if uid == "" {
		uid = u.uidForCustomer(ctx, sub.Customer)
	}
	now := u.now().UTC()

	rec := map[string]any{
		"customer_id":          sub.Customer,
		"uid":                  uid,
		"status":               sub.Status,
		"price_id":             sub.priceID(),
		"cancel_at_period_end": sub.CancelAtPeriodEnd,
		"updated_at":           now,
	}
	if sub.CurrentPeriodEnd > 0 {
		rec["current_period_end"] = time.Unix(sub.CurrentPeriodEnd, 0).UTC()
	}
	if err := u.store.Merge(ctx, store.CollectionSubscriptions, sub.ID, rec); err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}

	if uid == "" {
		u.logger.Warn("subscription without known customer", zap.String("subscription_id", sub.ID), zap.String("customer", sub.Customer))
		return nil
	}
	plan := map[string]any{
		"subscription_id": sub.ID,
		"plan_status":     sub.Status,
		"price_id":        sub.priceID(),
		"updated_at":      now,
	}
	if err := u.store.Merge(ctx, store.CollectionCustomers, uid, plan); err != nil {
		return fmt.Errorf("update customer plan: %w", err)
	}
	return nil
}

func (u *Billing) invoiceSettled(ctx context.Context, inv invoiceObject, status string) error {
	if inv.Subscription == "" {
		return nil
	}
	fields := map[string]any{
		"customer_id":         inv.Customer,
		"latest_invoice":      inv.ID,
		"last_payment_status": status,
		"updated_at":          u.now().UTC(),
	}
	if status == "paid" {
		fields["last_amount_paid"] = inv.AmountPaid
		fields["currency"] = inv.Currency
	} else {
		fields["amount_due"] = inv.AmountDue
	}
	if err := u.store.Merge(ctx, store.CollectionSubscriptions, inv.Subscription, fields); err != nil {
		return fmt.Errorf("update subscription invoice: %w", err)
	}
	return nil
}

func (u *Billing) uidForCustomer(ctx context.Context, customerID string) string {
	if customerID == "" {
		return ""
	}
	docs, err := u.store.Find(ctx, store.CollectionCustomers, store.Query{
		Where: map[string]any{"stripe_customer_id": customerID},
		Limit: 1,
	})
	if err != nil || len(docs) == 0 {
		return ""
	}
	return docs[0].ID
}

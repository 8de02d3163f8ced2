package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"apply-codes/internal/domain/email"
	"apply-codes/internal/infrastructure/mail"
	"apply-codes/internal/logger"
	"apply-codes/internal/store"
	"apply-codes/internal/ws"

	"go.uber.org/zap"
)

const webhookSourceSendGrid = "sendgrid"

type EmailNotifier interface {
	NotifyEmailStatus(userID string, evt ws.EmailStatusEvent)
}

type EmailWebhookResult struct {
	Received   int `json:"received"`
	Processed  int `json:"processed"`
	Duplicates int `json:"duplicates"`
}

type EmailWebhookUsecase interface {
	HandleEvents(ctx context.Context, payload []byte, signature, timestamp string) (EmailWebhookResult, error)
}

type EmailWebhook struct {
	verifier *mail.Verifier
	store    store.Store
	cache    Cache
	notifier EmailNotifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewEmailWebhookUsecase takes a nil verifier when no public key is
// configured; signatures are then not checked.
func NewEmailWebhookUsecase(verifier *mail.Verifier, s store.Store, cache Cache, notifier EmailNotifier, log *zap.Logger) *EmailWebhook {
	return &EmailWebhook{
		verifier: verifier,
		store:    s,
		cache:    cache,
		notifier: notifier,
		logger:   logger.OrNop(log),
		now:      time.Now,
	}
}

// HandleEvents applies a SendGrid event batch. Each sg_event_id is applied
// at most once; events that fail are left claimable so the vendor's retry
// of the batch picks them up.
func (u *EmailWebhook) HandleEvents(ctx context.Context, payload []byte, signature, timestamp string) (EmailWebhookResult, error) {
	if err := u.verifier.Verify(payload, signature, timestamp); err != nil {
		u.logger.Warn("sendgrid webhook rejected", zap.Error(err))
		return EmailWebhookResult{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	events, err := mail.ParseEvents(payload)
	if err != nil {
		return EmailWebhookResult{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	ledger := eventLedger{store: u.store, cache: u.cache, logger: u.logger, now: u.now}
	res := EmailWebhookResult{Received: len(events)}
	var failed int
	for _, ev := range events {
		id := eventID(ev)
		claimed, err := ledger.claim(ctx, webhookSourceSendGrid, id, ev.Type)
		if err != nil {
			u.logger.Warn("sendgrid event claim failed", zap.String("event_id", id), zap.Error(err))
			failed++
			continue
		}
		if !claimed {
			res.Duplicates++
			continue
		}
		procErr := u.apply(ctx, ev)
		ledger.finish(ctx, webhookSourceSendGrid, id, procErr)
		if procErr != nil {
			u.logger.Error("sendgrid event failed", zap.String("event_id", id), zap.String("event", ev.Type), zap.Error(procErr))
			failed++
			continue
		}
		res.Processed++
	}

	if failed > 0 {
		return res, fmt.Errorf("%w: %d of %d events failed", ErrInternal, failed, len(events))
	}
	return res, nil
}

// eventID falls back to a digest of the event for payloads without
// sg_event_id.
func eventID(ev mail.Event) string {
	if ev.ID != "" {
		return ev.ID
	}
	return hashedKey("", []string{ev.MessageID, ev.Type, ev.Email, strconv.FormatInt(ev.Timestamp, 10), ev.URL})
}

func (u *EmailWebhook) apply(ctx context.Context, ev mail.Event) error {
	status, ok := email.StatusForEvent(ev.Type)
	if !ok {
		u.logger.Debug("sendgrid event ignored", zap.String("event", ev.Type))
		return nil
	}
	at := u.now().UTC()
	if ev.Timestamp > 0 {
		at = time.Unix(ev.Timestamp, 0).UTC()
	}

	logID := ev.Arg(ArgEmailLogID)
	userID := ev.Arg(ArgUserID)
	campaignID := ev.Arg(ArgCampaignID)

	changed := false
	if logID != "" {
		doc, err := u.store.Get(ctx, store.CollectionEmailLogs, logID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			u.logger.Info("sendgrid event for unknown email log", zap.String("email_log_id", logID))
		case err != nil:
			return fmt.Errorf("read email log: %w", err)
		default:
			userID = firstNonEmpty(userID, doc.String("user_id"))
			campaignID = firstNonEmpty(campaignID, doc.String("campaign_id"))
			if email.Advance(email.Status(doc.String("status")), status) {
				fields := map[string]any{
					"status":     status,
					"last_event": ev.Type,
					"updated_at": u.now().UTC(),
				}
				fields[string(status)+"_at"] = at
				if ev.Reason != "" {
					fields["reason"] = ev.Reason
				}
				if err := u.store.Update(ctx, store.CollectionEmailLogs, logID, fields); err != nil {
					return fmt.Errorf("update email log: %w", err)
				}
				changed = true
			}
		}
	}

	if subStatus, ok := email.SuppressesSubscriber(status); ok && ev.Email != "" {
		addr := strings.ToLower(strings.TrimSpace(ev.Email))
		err := u.store.Merge(ctx, store.CollectionSubscribers, addr, map[string]any{
			"email":      addr,
			"status":     subStatus,
			"reason":     ev.Reason,
			"updated_at": at,
		})
		if err != nil {
			u.logger.Warn("subscriber update failed", zap.Error(err))
		}
	}

	if campaignID != "" {
		if err := u.store.Increment(ctx, store.CollectionCampaigns, campaignID, "stats."+string(status), 1); err != nil {
			u.logger.Warn("campaign stats update failed", zap.String("campaign_id", campaignID), zap.Error(err))
		}
	}

	if changed && userID != "" && u.notifier != nil {
		u.notifier.NotifyEmailStatus(userID, ws.EmailStatusEvent{
			EmailLogID: logID,
			CampaignID: campaignID,
			Email:      ev.Email,
			Status:     string(status),
			Event:      ev.Type,
			Timestamp:  at.Format(time.RFC3339),
		})
	}
	return nil
}

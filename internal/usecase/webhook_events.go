package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"apply-codes/internal/store"

	"go.uber.org/zap"
)

const (
	webhookProcessing = "processing"
	webhookProcessed  = "processed"
	webhookFailed     = "failed"

	webhookMarkerTTL = 72 * time.Hour
)

// eventLedger makes webhook deliveries at-most-once per event id. Redis
// SETNX answers the common duplicate cheaply; webhook_events/{source:id}
// is the durable record. A delivery whose processing failed can be
// claimed again.
type eventLedger struct {
	store  store.Store
	cache  Cache
	logger *zap.Logger
	now    func() time.Time
}

// claim reports whether the caller owns processing of the event.
func (l eventLedger) claim(ctx context.Context, source, id, eventType string) (bool, error) {
	key := WebhookEventKey(source, id)
	if l.cache != nil {
		ok, err := l.cache.SetIfNotExists(ctx, key, webhookProcessing, webhookMarkerTTL)
		if err == nil && !ok {
			return false, nil
		}
	}

	docID := source + ":" + id
	err := l.store.Create(ctx, store.CollectionWebhookEvents, docID, map[string]any{
		"source":      source,
		"event_id":    id,
		"type":        eventType,
		"status":      webhookProcessing,
		"received_at": l.now().UTC(),
	})
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, store.ErrAlreadyExists) {
		l.forget(ctx, key)
		return false, fmt.Errorf("%w: record webhook event: %v", ErrInternal, err)
	}

	doc, err := l.store.Get(ctx, store.CollectionWebhookEvents, docID)
	if err != nil || doc.String("status") != webhookFailed {
		return false, nil
	}
	if err := l.store.Update(ctx, store.CollectionWebhookEvents, docID, map[string]any{"status": webhookProcessing}); err != nil {
		return false, fmt.Errorf("%w: reclaim webhook event: %v", ErrInternal, err)
	}
	return true, nil
}

// finish records the outcome. A failed event releases the Redis marker so
// the vendor's retry is processed.
func (l eventLedger) finish(ctx context.Context, source, id string, procErr error) {
	fields := map[string]any{"status": webhookProcessed, "processed_at": l.now().UTC()}
	if procErr != nil {
		fields["status"] = webhookFailed
		fields["error"] = procErr.Error()
		l.forget(ctx, WebhookEventKey(source, id))
	}
	if err := l.store.Update(ctx, store.CollectionWebhookEvents, source+":"+id, fields); err != nil {
		l.logger.Warn("webhook event update failed", zap.String("source", source), zap.String("event_id", id), zap.Error(err))
	}
}

func (l eventLedger) forget(ctx context.Context, key string) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Delete(ctx, key); err != nil {
		l.logger.Debug("webhook marker delete failed", zap.String("key", key), zap.Error(err))
	}
}

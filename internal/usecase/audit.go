package usecase

import (
	"context"
	"time"

	"apply-codes/internal/logger"
	"apply-codes/internal/store"

	"go.uber.org/zap"
)

// Entry is one request/response pair written to a log collection.
type Entry struct {
	UserID   string
	Kind     string
	Request  any
	Response any
}

// Recorder writes log documents. Failures are logged and swallowed.
type Recorder struct {
	store  store.Store
	logger *zap.Logger
	now    func() time.Time
}

func NewRecorder(s store.Store, log *zap.Logger) *Recorder {
	return &Recorder{store: s, logger: logger.OrNop(log), now: time.Now}
}

func (r *Recorder) Record(ctx context.Context, collection string, e Entry) {
	if r == nil || r.store == nil {
		return
	}
	doc := map[string]any{
		"user_id":    e.UserID,
		"kind":       e.Kind,
		"request":    e.Request,
		"response":   e.Response,
		"created_at": r.now().UTC(),
	}
	if _, err := r.store.Add(ctx, collection, doc); err != nil {
		r.logger.Warn("audit log write failed",
			zap.String("collection", collection),
			zap.String("kind", e.Kind),
			zap.Error(err),
		)
	}
}

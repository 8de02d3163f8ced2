// Package store keeps JSON documents grouped in named collections.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound      = errors.New("document not found")
	ErrAlreadyExists = errors.New("document already exists")
	ErrInvalidInput  = errors.New("invalid document input")
)

const (
	CollectionSearchLogs        = "search_logs"
	CollectionAnalysisLogs      = "analysis_logs"
	CollectionProjects          = "projects"
	CollectionCandidates        = "saved_candidates"
	CollectionEmailLogs         = "email_logs"
	CollectionSubscribers       = "subscribers"
	CollectionCampaigns         = "campaigns"
	CollectionCustomers         = "customers"
	CollectionCheckoutSessions  = "checkout_sessions"
	CollectionSubscriptions     = "subscriptions"
	CollectionWebhookEvents     = "webhook_events"
	CollectionChatSessions      = "chat_sessions"
	CollectionChatMessages      = "chat_messages"
	CollectionToolConfirmations = "tool_confirmations"
	CollectionMeetings          = "meetings"
	CollectionSecrets           = "secrets"
)

type Document struct {
	Collection string
	ID         string
	Data       map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Decode copies the document data into out using its json tags.
func (d Document) Decode(out any) error {
	b, err := json.Marshal(d.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

// String returns the string field at key, or "".
func (d Document) String(key string) string {
	if d.Data == nil {
		return ""
	}
	s, _ := d.Data[key].(string)
	return s
}

// Query filters Find and Count. Where is matched by JSON containment.
type Query struct {
	Where map[string]any
	Since time.Time
	Limit int
}

type Store interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	// Set replaces the document, creating it when absent.
	Set(ctx context.Context, collection, id string, data any) error
	// Merge shallow-merges fields into the document, creating it when absent.
	Merge(ctx context.Context, collection, id string, fields map[string]any) error
	// Create inserts only; an existing id yields ErrAlreadyExists.
	Create(ctx context.Context, collection, id string, data any) error
	Add(ctx context.Context, collection string, data any) (string, error)
	// Update shallow-merges fields into an existing document.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	// Increment adds delta to a numeric field; field may be one dotted level deep ("stats.opened").
	Increment(ctx context.Context, collection, id, field string, delta int64) error
	Find(ctx context.Context, collection string, q Query) ([]Document, error)
	Count(ctx context.Context, collection string, q Query) (int64, error)
	Ping(ctx context.Context) error
}

func toMap(data any) (map[string]any, error) {
	if data == nil {
		return map[string]any{}, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("%w: document must be a JSON object", ErrInvalidInput)
	}
	return out, nil
}

func validKey(collection, id string) error {
	if strings.TrimSpace(collection) == "" || strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty collection or id", ErrInvalidInput)
	}
	return nil
}

func splitField(field string) ([]string, error) {
	field = strings.TrimSpace(field)
	if field == "" {
		return nil, fmt.Errorf("%w: empty field", ErrInvalidInput)
	}
	parts := strings.Split(field, ".")
	if len(parts) > 2 {
		return nil, fmt.Errorf("%w: field %q nests too deep", ErrInvalidInput, field)
	}
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			return nil, fmt.Errorf("%w: field %q", ErrInvalidInput, field)
		}
	}
	return parts, nil
}

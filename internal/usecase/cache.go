package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

// Cache is the subset of the Redis cache the usecases need. Implementations
// degrade to misses when the backend is down.
type Cache interface {
	GetJSON(ctx context.Context, key string, out any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	SetIfNotExists(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
}

func normalizeValue(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	s = strings.Join(strings.Fields(s), " ")
	return s
}

// hashedKey hashes the JSON form of in under prefix so keys never carry
// personal data such as emails.
func hashedKey(prefix string, in any) string {
	b, _ := json.Marshal(in)
	sum := sha256.Sum256(b)
	return prefix + hex.EncodeToString(sum[:])
}

type enrichmentKeyInput struct {
	Vendor string            `json:"vendor"`
	Op     string            `json:"op"`
	Fields map[string]string `json:"fields"`
}

// EnrichmentCacheKey keys one vendor lookup by its normalised inputs.
func EnrichmentCacheKey(vendor, op string, fields map[string]string) string {
	norm := make(map[string]string, len(fields))
	for k, v := range fields {
		if v = normalizeValue(v); v != "" {
			norm[k] = v
		}
	}
	return hashedKey("enrich:"+vendor+":", enrichmentKeyInput{Vendor: vendor, Op: op, Fields: norm})
}

func WebhookEventKey(source, id string) string {
	return "webhook:" + source + ":" + strings.TrimSpace(id)
}

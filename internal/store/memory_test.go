package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type emailLog struct {
	To     string `json:"to"`
	Status string `json:"status"`
}

func TestMemory_CreateIsInsertOnly(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Create(ctx, CollectionWebhookEvents, "evt_1", map[string]any{"type": "delivered"}))
	err := m.Create(ctx, CollectionWebhookEvents, "evt_1", map[string]any{"type": "open"})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	doc, err := m.Get(ctx, CollectionWebhookEvents, "evt_1")
	require.NoError(t, err)
	assert.Equal(t, "delivered", doc.String("type"))
}

func TestMemory_MergeUpdateAndDecode(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	assert.ErrorIs(t, m.Update(ctx, CollectionEmailLogs, "missing", map[string]any{"status": "sent"}), ErrNotFound)

	require.NoError(t, m.Merge(ctx, CollectionEmailLogs, "log1", map[string]any{"to": "a@b.co", "status": "sent"}))
	require.NoError(t, m.Update(ctx, CollectionEmailLogs, "log1", map[string]any{"status": "delivered"}))

	doc, err := m.Get(ctx, CollectionEmailLogs, "log1")
	require.NoError(t, err)

	var got emailLog
	require.NoError(t, doc.Decode(&got))
	assert.Equal(t, emailLog{To: "a@b.co", Status: "delivered"}, got)
}

func TestMemory_IncrementNested(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Set(ctx, CollectionCampaigns, "c1", map[string]any{"name": "spring"}))

	require.NoError(t, m.Increment(ctx, CollectionCampaigns, "c1", "stats.opened", 1))
	require.NoError(t, m.Increment(ctx, CollectionCampaigns, "c1", "stats.opened", 2))
	require.NoError(t, m.Increment(ctx, CollectionCampaigns, "c1", "sent", 5))

	doc, err := m.Get(ctx, CollectionCampaigns, "c1")
	require.NoError(t, err)
	assert.Equal(t, float64(3), doc.Data["stats"].(map[string]any)["opened"])
	assert.Equal(t, float64(5), doc.Data["sent"])

	assert.Error(t, m.Increment(ctx, CollectionCampaigns, "c1", "a.b.c", 1))
	assert.ErrorIs(t, m.Increment(ctx, CollectionCampaigns, "nope", "sent", 1), ErrNotFound)
}

func TestMemory_FindAndCount(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	m.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Hour)
	}

	for _, st := range []string{"sent", "delivered", "delivered"} {
		_, err := m.Add(ctx, CollectionEmailLogs, map[string]any{"status": st, "user_id": "u1"})
		require.NoError(t, err)
	}
	_, err := m.Add(ctx, CollectionEmailLogs, map[string]any{"status": "delivered", "user_id": "u2"})
	require.NoError(t, err)

	docs, err := m.Find(ctx, CollectionEmailLogs, Query{Where: map[string]any{"user_id": "u1", "status": "delivered"}})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.True(t, docs[0].CreatedAt.After(docs[1].CreatedAt))

	n, err := m.Count(ctx, CollectionEmailLogs, Query{Where: map[string]any{"status": "delivered"}, Since: base.Add(150 * time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestMemory_RejectsEmptyKeys(t *testing.T) {
	_, err := NewMemory().Get(context.Background(), "", "x")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

package cache

import (
	"context"
	"testing"
	"time"

	"apply-codes/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedis_DisabledIsNoop(t *testing.T) {
	ctx := context.Background()
	r := NewRedis(config.RedisConfig{Disabled: true}, nil)

	assert.False(t, r.Available())
	assert.ErrorIs(t, r.Ping(ctx), ErrUnavailable)

	require.NoError(t, r.SetJSON(ctx, "k", map[string]string{"a": "b"}, time.Minute))
	var out map[string]string
	hit, err := r.GetJSON(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	ok, err := r.SetIfNotExists(ctx, "lock", "1", time.Second)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrUnavailable)

	n, err := r.DeleteByPrefix(ctx, "enrich:")
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, r.Delete(ctx, "k"))
	require.NoError(t, r.Close())
}

func TestRedis_NilReceiver(t *testing.T) {
	var r *Redis
	hit, err := r.GetJSON(context.Background(), "k", &struct{}{})
	require.NoError(t, err)
	assert.False(t, hit)
}

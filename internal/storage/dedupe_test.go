package storage_test

import (
	"context"
	"os"
	"testing"
	"time"

	"grievance/backend/internal/storage"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRedisDeduper runs against a real Redis when REDIS_ADDR is set.
func TestRedisDeduper(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	ctx := context.Background()
	require.NoError(t, rdb.Ping(ctx).Err())

	d := storage.NewRedisDeduper(rdb, time.Minute)
	sid := "SM" + uuid.NewString()
	defer d.Release(ctx, sid)

	claimed, _, err := d.Claim(ctx, sid)
	require.NoError(t, err)
	assert.True(t, claimed)

	// Retry while the first delivery is still running
	claimed, reply, err := d.Claim(ctx, sid)
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Empty(t, reply)

	require.NoError(t, d.Complete(ctx, sid, "Your grievance GRV-1 was registered"))
	claimed, reply, err = d.Claim(ctx, sid)
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, "Your grievance GRV-1 was registered", reply)

	require.NoError(t, d.Release(ctx, sid))
	claimed, _, err = d.Claim(ctx, sid)
	require.NoError(t, err)
	assert.True(t, claimed)
}

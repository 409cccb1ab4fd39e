//go:build integration

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcettina/OutTheGroupchat-sub001/pkg/testutil/containers"
)

func TestRedisStoreCountsPerWindow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()
	rc := containers.NewRedisContainer(t)
	store := NewRedisStore(rc.Client)

	for want := int64(1); want <= 3; want++ {
		count, err := store.Incr(ctx, "ratelimit:/trips/x/invitations:user-a", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, count)
	}

	// Separate keys count independently.
	count, err := store.Incr(ctx, "ratelimit:/trips/x/invitations:user-b", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRedisStoreWindowExpires(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()
	rc := containers.NewRedisContainer(t)
	store := NewRedisStore(rc.Client)

	const key = "ratelimit:/trips/x/invitations:user-c"
	_, err := store.Incr(ctx, key, time.Second)
	require.NoError(t, err)
	_, err = store.Incr(ctx, key, time.Second)
	require.NoError(t, err)

	time.Sleep(1500 * time.Millisecond)

	count, err := store.Incr(ctx, key, time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "counter must reset after the window TTL")
}

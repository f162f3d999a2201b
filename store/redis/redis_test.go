package redis

import (
	"context"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochabx/sessionkit/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		t.Skipf("redis not available at %s: %v", addr, err)
	}

	s, err := New(Config{KeyPrefix: "sessionkit-test:"}, WithClient(client))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRedisSetGetRemove(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	key := "op_queue_" + t.Name()
	require.NoError(t, s.SetItem(ctx, key, `{"v":1}`))
	t.Cleanup(func() { _ = s.RemoveItem(ctx, key) })

	got, err := s.GetItem(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, `{"v":1}`, got)

	require.NoError(t, s.RemoveItem(ctx, key))
	_, err = s.GetItem(ctx, key)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

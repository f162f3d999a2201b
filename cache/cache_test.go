package cache

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochabx/sessionkit/store/memory"
)

type profile struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

func TestGetBeforeAndAfterExpiry(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	c := New[string](WithClock[string](clock))

	c.Set(ctx, "k", "v", time.Second)

	// t=999ms 命中
	clock.Advance(999 * time.Millisecond)
	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "v", got)

	// t=1001ms 未命中
	clock.Advance(2 * time.Millisecond)
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestExpiryBoundaryIsExclusive(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	c := New[int](WithClock[int](clock))

	c.Set(ctx, "k", 1, time.Second)

	// 恰好到达过期时刻即视为过期
	clock.Advance(time.Second)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestLazyEvictionPurgesBothTiers(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	persist := memory.New()
	c := New[string](WithClock[string](clock), WithStore[string](persist))

	c.Set(ctx, "k", "v", time.Second)
	require.Equal(t, 1, persist.Len())

	clock.Advance(2 * time.Second)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)

	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 0, persist.Len())
}

func TestHydrationAfterRestart(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	persist := memory.New()

	c1 := New[profile](WithClock[profile](clock), WithStore[profile](persist))
	c1.Set(ctx, "me", profile{UserID: "u-1", Name: "Alice"}, time.Hour)

	// 新实例、同一个持久层：模拟进程重启
	c2 := New[profile](WithClock[profile](clock), WithStore[profile](persist))
	got, ok := c2.Get(ctx, "me")
	require.True(t, ok)
	assert.Equal(t, "u-1", got.UserID)

	// 重启后过期同样不可见
	clock.Advance(2 * time.Hour)
	c3 := New[profile](WithClock[profile](clock), WithStore[profile](persist))
	_, ok = c3.Get(ctx, "me")
	assert.False(t, ok)
}

func TestCorruptPersistedEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	persist := memory.New()
	require.NoError(t, persist.SetItem(ctx, DefaultNamespace+"k", "{broken"))

	c := New[string](WithStore[string](persist))
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestRemoveAndClear(t *testing.T) {
	ctx := context.Background()
	persist := memory.New()
	c := New[int](WithStore[int](persist))

	c.Set(ctx, "a", 1, time.Hour)
	c.Set(ctx, "b", 2, time.Hour)

	c.Remove(ctx, "a")
	_, ok := c.Get(ctx, "a")
	assert.False(t, ok)
	assert.Equal(t, 1, persist.Len())

	c.Clear(ctx)
	_, ok = c.Get(ctx, "b")
	assert.False(t, ok)
	assert.Equal(t, 0, persist.Len())
	assert.Equal(t, 0, c.Len())
}

func TestWriteThroughFailureKeepsMemoryTier(t *testing.T) {
	ctx := context.Background()
	c := New[string](WithStore[string](failingStore{}))

	// 持久层故障被吞掉，内存层仍然有效
	c.Set(ctx, "k", "v", time.Hour)
	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "v", got)
}

type failingStore struct{}

func (failingStore) GetItem(context.Context, string) (string, error) {
	return "", assert.AnError
}

func (failingStore) SetItem(context.Context, string, string) error {
	return assert.AnError
}

func (failingStore) RemoveItem(context.Context, string) error {
	return assert.AnError
}

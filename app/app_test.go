package app

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochabx/sessionkit/config"
	"github.com/kochabx/sessionkit/errors"
	"github.com/kochabx/sessionkit/queue"
	"github.com/kochabx/sessionkit/store/memory"
)

func testSettings() config.Settings {
	var s config.Settings
	s.Store.Backend = "memory"
	// dialing nowhere keeps the probe fast and the kit offline
	s.Network.ProbeAddrs = []string{"127.0.0.1:1"}
	s.Network.ProbeTimeoutMillis = 50
	s.Queue.ReplayDelayMillis = 1
	return s
}

func TestNewBuildsAllComponents(t *testing.T) {
	k, err := New(WithSettings(testSettings()))
	require.NoError(t, err)
	defer k.Close()

	require.NotNil(t, k.Session)
	require.NotNil(t, k.Queue)
	require.NotNil(t, k.Network)
	require.NotNil(t, k.Lifecycle)
	require.NotNil(t, k.Store())

	status := k.Status()
	assert.False(t, status.Started)
	assert.False(t, status.SessionActive)
}

func TestStartOnlyOnce(t *testing.T) {
	k, err := New(WithSettings(testSettings()))
	require.NoError(t, err)
	defer k.Close()

	ctx := context.Background()
	require.NoError(t, k.Start(ctx))
	assert.True(t, k.Status().Started)

	err = k.Start(ctx)
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalid, errors.CodeOf(err))
}

func TestSessionAndQueueFlow(t *testing.T) {
	reg := queue.NewRegistry()
	k, err := New(WithSettings(testSettings()), WithRegistry(reg))
	require.NoError(t, err)
	defer k.Close()

	ctx := context.Background()
	require.NoError(t, k.Start(ctx))

	require.NoError(t, k.Session.StartSession(ctx, "user-1", ""))
	assert.True(t, k.Status().SessionActive)

	// probe against a closed port leaves the kit unreachable, so the
	// operation stays buffered
	_, err = k.Queue.Enqueue(ctx, queue.KindProfileUpdate, json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Equal(t, 1, k.Status().QueuedOperations)

	k.Session.EndSession(ctx)
	assert.False(t, k.Status().SessionActive)
}

func TestUnknownBackendRejected(t *testing.T) {
	s := testSettings()
	s.Store.Backend = "bolt"

	_, err := New(WithSettings(s))
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalid, errors.CodeOf(err))
}

func TestSQLiteBackend(t *testing.T) {
	s := testSettings()
	s.Store.Backend = "sqlite"
	s.Store.SQLitePath = filepath.Join(t.TempDir(), "kit.db")

	k, err := New(WithSettings(s))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, k.Store().SetItem(ctx, "probe", "value"))
	got, err := k.Store().GetItem(ctx, "probe")
	require.NoError(t, err)
	assert.Equal(t, "value", got)

	k.Close()
}

func TestCloseRunsCloseFuncs(t *testing.T) {
	var ran atomic.Bool
	k, err := New(
		WithSettings(testSettings()),
		WithStore(memory.New()),
		WithClose("flag", func(context.Context) error {
			ran.Store(true)
			return nil
		}, time.Second),
		WithClose("panicky", func(context.Context) error {
			panic("teardown failure")
		}, time.Second),
	)
	require.NoError(t, err)

	require.NoError(t, k.RegisterClose("late", func(context.Context) error { return nil }, 0))
	assert.Error(t, k.RegisterClose("nil", nil, 0))

	k.Close()
	assert.True(t, ran.Load())
}

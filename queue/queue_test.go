package queue

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochabx/sessionkit/errors"
	"github.com/kochabx/sessionkit/network"
	"github.com/kochabx/sessionkit/store"
	"github.com/kochabx/sessionkit/store/memory"
)

func offlineMonitor(t *testing.T) *network.Monitor {
	t.Helper()

	m := network.NewMonitor(network.WithProber(network.ProberFunc(
		func(context.Context) (network.State, error) {
			return network.State{Connected: false, Reachable: network.Bool(false), TransportType: "none"}, nil
		},
	)))
	t.Cleanup(m.Close)
	return m
}

func goOnline(m *network.Monitor) {
	m.Update(network.State{Connected: true, Reachable: network.Bool(true), TransportType: "wifi"})
}

func newTestQueue(t *testing.T, reg *Registry, opts ...Option) (*Queue, *memory.Store) {
	t.Helper()

	st := memory.New()
	all := append([]Option{WithReplayDelay(0)}, opts...)
	q := NewQueue(st, reg, all...)
	t.Cleanup(q.Close)
	return q, st
}

func collect(t *testing.T, q *Queue) <-chan Event {
	t.Helper()

	events := make(chan Event, 64)
	cancel := q.Subscribe(func(ev Event) { events <- ev })
	t.Cleanup(cancel)
	return events
}

func waitFor(t *testing.T, events <-chan Event, typ EventType) Event {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Type == typ {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", typ)
			return Event{}
		}
	}
}

// recorder captures replayed payloads in arrival order.
type recorder struct {
	mu       sync.Mutex
	payloads []string
}

func (r *recorder) replay(_ context.Context, payload json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, string(payload))
	return nil
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.payloads...)
}

func TestEnqueueValidatesKind(t *testing.T) {
	q, _ := newTestQueue(t, NewRegistry())

	_, err := q.Enqueue(context.Background(), Kind("unknown"), nil)
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalid, errors.CodeOf(err))
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	noop := func(context.Context, json.RawMessage) error { return nil }

	require.NoError(t, reg.RegisterFunc(KindSignIn, noop))
	assert.Error(t, reg.RegisterFunc(KindSignIn, noop))
	assert.Error(t, reg.RegisterFunc(Kind("unknown"), noop))
	assert.True(t, reg.Has(KindSignIn))
	assert.False(t, reg.Has(KindSignOut))
}

func TestTypedRegisterDecodesPayload(t *testing.T) {
	reg := NewRegistry()

	type profile struct {
		Name string `json:"name"`
	}
	var got profile
	require.NoError(t, Register(reg, KindProfileUpdate, func(_ context.Context, p profile) error {
		got = p
		return nil
	}))

	q, _ := newTestQueue(t, reg)
	q.Initialize(context.Background())

	_, err := q.Enqueue(context.Background(), KindProfileUpdate, json.RawMessage(`{"name":"ada"}`))
	require.NoError(t, err)
	assert.Equal(t, "ada", got.Name)
	assert.Zero(t, q.Count())
}

func TestReplayPreservesEnqueueOrder(t *testing.T) {
	reg := NewRegistry()
	rec := &recorder{}
	require.NoError(t, reg.RegisterFunc(KindProfileUpdate, rec.replay))

	net := offlineMonitor(t)
	q, st := newTestQueue(t, reg, WithNetwork(net))
	events := collect(t, q)
	ctx := context.Background()

	q.Initialize(ctx)

	for _, payload := range []string{`"a"`, `"b"`, `"c"`} {
		_, err := q.Enqueue(ctx, KindProfileUpdate, json.RawMessage(payload))
		require.NoError(t, err)
	}
	assert.Equal(t, 3, q.Count())
	assert.True(t, q.HasQueued())

	goOnline(net)
	waitFor(t, events, EventDrained)

	assert.Equal(t, []string{`"a"`, `"b"`, `"c"`}, rec.snapshot())
	assert.Zero(t, q.Count())

	var persisted []Operation
	err := store.GetJSON(ctx, st, QueueKey, &persisted)
	require.NoError(t, err)
	assert.Empty(t, persisted)
}

func TestTransientFailureRetriesThenSucceeds(t *testing.T) {
	reg := NewRegistry()
	rec := &recorder{}
	require.NoError(t, reg.RegisterFunc(KindSignIn, rec.replay))

	var mu sync.Mutex
	bAttempts := 0
	require.NoError(t, reg.RegisterFunc(KindTokenRefresh, func(context.Context, json.RawMessage) error {
		mu.Lock()
		defer mu.Unlock()
		bAttempts++
		if bAttempts <= 2 {
			return errors.Unreachable("backend unavailable")
		}
		return nil
	}))

	net := offlineMonitor(t)
	q, _ := newTestQueue(t, reg, WithNetwork(net))
	events := collect(t, q)
	ctx := context.Background()

	q.Initialize(ctx)

	_, err := q.Enqueue(ctx, KindSignIn, json.RawMessage(`"a"`))
	require.NoError(t, err)
	b, err := q.Enqueue(ctx, KindTokenRefresh, nil)
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, KindSignIn, json.RawMessage(`"c"`))
	require.NoError(t, err)

	goOnline(net)
	waitFor(t, events, EventDrained)
	assert.Equal(t, 1, q.Count())
	assert.Equal(t, []string{`"a"`, `"c"`}, rec.snapshot())

	q.ForceSync(ctx)
	waitFor(t, events, EventDrained)
	assert.Equal(t, 1, q.Count())
	assert.Equal(t, 2, q.Operations()[0].RetryCount)

	q.ForceSync(ctx)
	replayed := waitFor(t, events, EventReplayed)
	assert.Equal(t, b.ID, replayed.OperationID)
	assert.Equal(t, 2, replayed.RetryCount)
	waitFor(t, events, EventDrained)
	assert.Zero(t, q.Count())
}

func TestExhaustedRetriesMoveToFailedList(t *testing.T) {
	reg := NewRegistry()
	var mu sync.Mutex
	attempts := 0
	require.NoError(t, reg.RegisterFunc(KindRegister, func(context.Context, json.RawMessage) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		return errors.Unreachable("backend unavailable")
	}))

	net := offlineMonitor(t)
	q, st := newTestQueue(t, reg, WithNetwork(net))
	events := collect(t, q)
	ctx := context.Background()

	q.Initialize(ctx)

	op, err := q.Enqueue(ctx, KindRegister, nil)
	require.NoError(t, err)

	goOnline(net)
	waitFor(t, events, EventDrained)
	q.ForceSync(ctx)
	waitFor(t, events, EventDrained)
	q.ForceSync(ctx)
	dropped := waitFor(t, events, EventDropped)
	waitFor(t, events, EventDrained)

	assert.Equal(t, op.ID, dropped.OperationID)
	assert.Equal(t, 3, attempts)
	assert.Zero(t, q.Count())

	failed := q.FailedOperations()
	require.Len(t, failed, 1)
	assert.Equal(t, op.ID, failed[0].ID)
	assert.Equal(t, 3, failed[0].RetryCount)
	assert.Contains(t, failed[0].Reason, "backend unavailable")

	var persisted []FailedOperation
	require.NoError(t, store.GetJSON(ctx, st, FailedKey, &persisted))
	assert.Len(t, persisted, 1)
}

func TestUnknownKindCountsAsFailedAttempt(t *testing.T) {
	q, _ := newTestQueue(t, NewRegistry())
	ctx := context.Background()

	// reachable by default, so enqueue drains immediately
	op, err := q.EnqueueWithRetries(ctx, KindSignOut, nil, 1)
	require.NoError(t, err)

	assert.Zero(t, q.Count())
	failed := q.FailedOperations()
	require.Len(t, failed, 1)
	assert.Equal(t, op.ID, failed[0].ID)
	assert.Contains(t, failed[0].Reason, "no replay func")
}

func TestCapacityEvictsOldest(t *testing.T) {
	net := offlineMonitor(t)
	q, _ := newTestQueue(t, NewRegistry(), WithNetwork(net), WithCapacity(3))
	events := collect(t, q)
	ctx := context.Background()

	q.Initialize(ctx)

	var ids []string
	for i := 0; i < 4; i++ {
		op, err := q.Enqueue(ctx, KindProfileUpdate, nil)
		require.NoError(t, err)
		ids = append(ids, op.ID)
	}

	assert.Equal(t, 3, q.Count())
	evicted := waitFor(t, events, EventEvicted)
	assert.Equal(t, ids[0], evicted.OperationID)

	remaining := q.Operations()
	require.Len(t, remaining, 3)
	assert.Equal(t, ids[1:], []string{remaining[0].ID, remaining[1].ID, remaining[2].ID})
}

func TestQueueSurvivesRestart(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	first := NewQueue(st, NewRegistry(), WithReplayDelay(0), WithNetwork(offlineMonitor(t)))
	first.Initialize(ctx)
	a, err := first.Enqueue(ctx, KindSignIn, json.RawMessage(`"a"`))
	require.NoError(t, err)
	b, err := first.Enqueue(ctx, KindSignOut, json.RawMessage(`"b"`))
	require.NoError(t, err)
	first.Close()

	second := NewQueue(st, NewRegistry(), WithReplayDelay(0), WithNetwork(offlineMonitor(t)))
	defer second.Close()
	second.Initialize(ctx)

	ops := second.Operations()
	require.Len(t, ops, 2)
	assert.Equal(t, a.ID, ops[0].ID)
	assert.Equal(t, b.ID, ops[1].ID)
}

func TestCorruptPersistedQueueTreatedAsEmpty(t *testing.T) {
	net := offlineMonitor(t)
	q, st := newTestQueue(t, NewRegistry(), WithNetwork(net))
	ctx := context.Background()

	require.NoError(t, st.SetItem(ctx, QueueKey, "{not json"))

	q.Initialize(ctx)
	assert.Zero(t, q.Count())
	assert.False(t, q.HasQueued())
}

func TestForceSyncUnreachableIsNoop(t *testing.T) {
	reg := NewRegistry()
	rec := &recorder{}
	require.NoError(t, reg.RegisterFunc(KindSignIn, rec.replay))

	net := offlineMonitor(t)
	q, _ := newTestQueue(t, reg, WithNetwork(net))
	ctx := context.Background()

	q.Initialize(ctx)
	_, err := q.Enqueue(ctx, KindSignIn, nil)
	require.NoError(t, err)

	q.ForceSync(ctx)

	assert.Empty(t, rec.snapshot())
	assert.Equal(t, 1, q.Count())
}

func TestFailedListBounded(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterFunc(KindProfileUpdate, func(context.Context, json.RawMessage) error {
		return errors.Unreachable("backend unavailable")
	}))

	q, _ := newTestQueue(t, reg, WithFailedListSize(2))
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		op, err := q.EnqueueWithRetries(ctx, KindProfileUpdate, nil, 1)
		require.NoError(t, err)
		ids = append(ids, op.ID)
	}

	failed := q.FailedOperations()
	require.Len(t, failed, 2)
	// bounded list keeps the newest drops
	assert.Equal(t, ids[1], failed[0].ID)
	assert.Equal(t, ids[2], failed[1].ID)
}

func TestClearFailed(t *testing.T) {
	q, st := newTestQueue(t, NewRegistry())
	ctx := context.Background()

	_, err := q.EnqueueWithRetries(ctx, KindSignOut, nil, 1)
	require.NoError(t, err)
	require.Len(t, q.FailedOperations(), 1)

	q.ClearFailed(ctx)

	assert.Empty(t, q.FailedOperations())
	_, err = st.GetItem(ctx, FailedKey)
	assert.True(t, store.Absent(err))
}

func TestPeriodicSyncRetriesPending(t *testing.T) {
	reg := NewRegistry()
	var mu sync.Mutex
	attempts := 0
	require.NoError(t, reg.RegisterFunc(KindTokenRefresh, func(context.Context, json.RawMessage) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts == 1 {
			return errors.Unreachable("backend unavailable")
		}
		return nil
	}))

	q, _ := newTestQueue(t, reg, WithSyncInterval(time.Second))
	ctx := context.Background()

	q.Initialize(ctx)

	// first attempt fails on the enqueue-triggered drain
	_, err := q.Enqueue(ctx, KindTokenRefresh, nil)
	require.NoError(t, err)
	require.Equal(t, 1, q.Count())

	// the periodic schedule retries and succeeds
	assert.Eventually(t, func() bool { return q.Count() == 0 }, 5*time.Second, 50*time.Millisecond)
}

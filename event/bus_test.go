package event

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	bus := NewBus[int]()
	defer bus.Close()

	var wg sync.WaitGroup
	var a, b atomic.Int64

	wg.Add(2)
	bus.Subscribe(func(v int) { a.Add(int64(v)); wg.Done() })
	bus.Subscribe(func(v int) { b.Add(int64(v)); wg.Done() })

	bus.Publish(7)
	waitGroup(t, &wg)

	assert.Equal(t, int64(7), a.Load())
	assert.Equal(t, int64(7), b.Load())
}

func TestSequentialLoadDropsNothing(t *testing.T) {
	bus := NewBus[int](WithBuffer[int](64))
	defer bus.Close()

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)

	var sum atomic.Int64
	bus.Subscribe(func(v int) {
		sum.Add(int64(v))
		wg.Done()
	})

	want := int64(0)
	for i := 1; i <= n; i++ {
		bus.Publish(i)
		want += int64(i)
	}

	waitGroup(t, &wg)
	assert.Equal(t, want, sum.Load())
}

func TestOrderPreservedPerSubscriber(t *testing.T) {
	bus := NewBus[int](WithBuffer[int](64))
	defer bus.Close()

	var mu sync.Mutex
	var got []int
	var wg sync.WaitGroup
	wg.Add(10)

	bus.Subscribe(func(v int) {
		mu.Lock()
		got = append(got, v)
		mu.Unlock()
		wg.Done()
	})

	for i := 0; i < 10; i++ {
		bus.Publish(i)
	}
	waitGroup(t, &wg)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 10)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestSubscriberPanicDoesNotStopDelivery(t *testing.T) {
	bus := NewBus[string]()
	defer bus.Close()

	var wg sync.WaitGroup
	wg.Add(2)

	bus.Subscribe(func(string) {
		defer wg.Done()
		panic("bad subscriber")
	})

	bus.Publish("first")
	bus.Publish("second")
	waitGroup(t, &wg)
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus[int]()
	defer bus.Close()

	var calls atomic.Int64
	cancel := bus.Subscribe(func(int) { calls.Add(1) })

	cancel()
	assert.Equal(t, 0, bus.SubscriberCount())

	bus.Publish(1)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(0), calls.Load())
}

func TestPublishAfterCloseIsNoop(t *testing.T) {
	bus := NewBus[int]()
	bus.Subscribe(func(int) { t.Error("should not be called") })
	bus.Close()

	bus.Publish(1)
	time.Sleep(20 * time.Millisecond)
}

func waitGroup(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for subscribers")
	}
}

func TestSubscribeBeyondPoolCapacity(t *testing.T) {
	bus := NewBus[int]()
	defer bus.Close()

	// well past the dispatch pool size: registration must not block and
	// overflow subscribers must still receive events
	const n = defaultPoolSize + 8

	var wg sync.WaitGroup
	wg.Add(n)

	var delivered atomic.Int64
	registered := make(chan struct{})
	go func() {
		for i := 0; i < n; i++ {
			bus.Subscribe(func(int) {
				delivered.Add(1)
				wg.Done()
			})
		}
		close(registered)
	}()

	select {
	case <-registered:
	case <-time.After(2 * time.Second):
		t.Fatal("subscribe blocked past pool capacity")
	}

	require.Equal(t, n, bus.SubscriberCount())
	bus.Publish(1)
	waitGroup(t, &wg)
	assert.Equal(t, int64(n), delivered.Load())
}

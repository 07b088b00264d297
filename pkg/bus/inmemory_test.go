package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(received chan Message, n int, timeout time.Duration) []Message {
	var out []Message
	deadline := time.After(timeout)
	for len(out) < n {
		select {
		case msg := <-received:
			out = append(out, msg)
		case <-deadline:
			return out
		}
	}
	return out
}

func Test_publish_delivers_to_subscribed_consumer(t *testing.T) {
	// setup
	b := NewInMemoryBus()
	defer b.Close()
	received := make(chan Message, 8)

	// given
	err := b.Subscribe("orders.created", "test-group", func(ctx context.Context, msg Message) {
		received <- msg
	})
	require.NoError(t, err)

	// when
	require.NoError(t, b.Publish(context.Background(), "orders.created", "payload-1"))

	// then
	messages := collect(received, 1, time.Second)
	require.Len(t, messages, 1)
	assert.Equal(t, "orders.created", messages[0].Name)
	assert.Equal(t, "payload-1", messages[0].Payload)
	assert.NotZero(t, messages[0].ID)
}

func Test_publish_skips_consumers_of_other_names(t *testing.T) {
	// setup
	b := NewInMemoryBus()
	defer b.Close()
	received := make(chan Message, 8)

	// given
	err := b.Subscribe("orders.created", "test-group", func(ctx context.Context, msg Message) {
		received <- msg
	})
	require.NoError(t, err)

	// when
	require.NoError(t, b.Publish(context.Background(), "orders.cancelled", "payload-1"))

	// then
	assert.Empty(t, collect(received, 1, 100*time.Millisecond))
}

func Test_catch_all_subscription_receives_every_name(t *testing.T) {
	// setup
	b := NewInMemoryBus()
	defer b.Close()
	received := make(chan Message, 8)

	// given
	err := b.SubscribeAll("audit", func(ctx context.Context, msg Message) {
		received <- msg
	})
	require.NoError(t, err)

	// when
	require.NoError(t, b.Publish(context.Background(), "orders.created", 1))
	require.NoError(t, b.Publish(context.Background(), "orders.cancelled", 2))

	// then
	messages := collect(received, 2, time.Second)
	require.Len(t, messages, 2)
}

func Test_single_worker_preserves_delivery_order(t *testing.T) {
	// setup
	b := NewInMemoryBus(WithWorkers(1), WithQueueSize(16))
	defer b.Close()
	received := make(chan Message, 16)

	// given
	err := b.Subscribe("orders.created", "test-group", func(ctx context.Context, msg Message) {
		received <- msg
	})
	require.NoError(t, err)

	// when
	for i := 0; i < 10; i++ {
		require.NoError(t, b.Publish(context.Background(), "orders.created", i))
	}

	// then
	messages := collect(received, 10, time.Second)
	require.Len(t, messages, 10)
	for i, msg := range messages {
		assert.Equal(t, i, msg.Payload)
	}
}

func Test_concurrent_publishers_lose_no_deliveries(t *testing.T) {
	// setup
	b := NewInMemoryBus(WithWorkers(4), WithQueueSize(128))
	defer b.Close()
	received := make(chan Message, 256)

	// given
	err := b.Subscribe("orders.created", "test-group", func(ctx context.Context, msg Message) {
		received <- msg
	})
	require.NoError(t, err)

	// when
	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				assert.NoError(t, b.Publish(context.Background(), "orders.created", i))
			}
		}()
	}
	wg.Wait()

	// then
	assert.Len(t, collect(received, 160, 2*time.Second), 160)
}

func Test_closed_bus_rejects_publish_and_subscribe(t *testing.T) {
	// setup
	b := NewInMemoryBus()
	require.NoError(t, b.Subscribe("orders.created", "test-group", func(ctx context.Context, msg Message) {}))

	// when
	b.Close()

	// then
	assert.ErrorIs(t, b.Publish(context.Background(), "orders.created", "late"), ErrClosed)
	assert.ErrorIs(t, b.Subscribe("orders.created", "test-group", func(ctx context.Context, msg Message) {}), ErrClosed)
	// closing twice is fine
	b.Close()
}

func Test_close_waits_for_queued_deliveries(t *testing.T) {
	// setup
	b := NewInMemoryBus(WithQueueSize(32))
	var mu sync.Mutex
	var handled int

	// given
	err := b.Subscribe("orders.created", "test-group", func(ctx context.Context, msg Message) {
		mu.Lock()
		handled++
		mu.Unlock()
	})
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		require.NoError(t, b.Publish(context.Background(), "orders.created", i))
	}

	// when
	b.Close()

	// then: every queued delivery ran before Close returned
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 20, handled)
}

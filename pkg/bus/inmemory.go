package bus

import (
	"context"
	"errors"
	"hash/adler32"
	"os"
	"sync"

	"github.com/bwmarrin/snowflake"
)

var ErrClosed = errors.New("bus is closed")

// InMemoryBus is a process-local Bus implementation. Each consumer group owns
// a queue and a fixed set of workers; a worker processes one delivery at a
// time, so concurrency is many independent workers draining a shared
// subscription, never shared state.
type InMemoryBus struct {
	mu        sync.RWMutex
	consumers map[string][]*consumer
	catchAll  []*consumer
	workers   int
	queueSize int
	snowflake *snowflake.Node
	closed    bool
	wg        sync.WaitGroup
}

type consumer struct {
	group string
	queue chan Message
}

type InMemoryBusOption = func(*InMemoryBus)

// WithWorkers sets the number of parallel workers started per consumer group.
func WithWorkers(n int) InMemoryBusOption {
	return func(b *InMemoryBus) {
		if n > 0 {
			b.workers = n
		}
	}
}

// WithQueueSize sets the per-group queue capacity. Publish blocks once the
// queue is full.
func WithQueueSize(n int) InMemoryBusOption {
	return func(b *InMemoryBus) {
		if n > 0 {
			b.queueSize = n
		}
	}
}

func NewInMemoryBus(options ...InMemoryBusOption) *InMemoryBus {
	b := &InMemoryBus{
		consumers: make(map[string][]*consumer),
		workers:   1,
		queueSize: 64,
		snowflake: newIdGenerator(),
	}
	for _, option := range options {
		option(b)
	}
	return b
}

func (b *InMemoryBus) Publish(ctx context.Context, name string, payload any) error {
	msg := Message{
		ID:      b.snowflake.Generate().Int64(),
		Name:    name,
		Payload: payload,
	}

	// the read lock is held through the sends so that Close cannot close a
	// queue under a publisher; workers drain without taking the lock
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	targets := make([]*consumer, 0, len(b.consumers[name])+len(b.catchAll))
	targets = append(targets, b.consumers[name]...)
	targets = append(targets, b.catchAll...)

	for _, c := range targets {
		select {
		case c.queue <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (b *InMemoryBus) Subscribe(name string, group string, h Handler) error {
	c, err := b.startConsumer(group, h)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.consumers[name] = append(b.consumers[name], c)
	b.mu.Unlock()
	return nil
}

func (b *InMemoryBus) SubscribeAll(group string, h Handler) error {
	c, err := b.startConsumer(group, h)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.catchAll = append(b.catchAll, c)
	b.mu.Unlock()
	return nil
}

func (b *InMemoryBus) startConsumer(group string, h Handler) (*consumer, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	b.mu.Unlock()

	c := &consumer{
		group: group,
		queue: make(chan Message, b.queueSize),
	}
	for i := 0; i < b.workers; i++ {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			for msg := range c.queue {
				h(context.Background(), msg)
			}
		}()
	}
	return c, nil
}

// Close stops accepting publishes, drains the queued deliveries and waits for
// all workers to finish.
func (b *InMemoryBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, c := range b.catchAll {
		close(c.queue)
	}
	for _, cs := range b.consumers {
		for _, c := range cs {
			close(c.queue)
		}
	}
	b.mu.Unlock()
	b.wg.Wait()
}

// newIdGenerator builds the delivery id generator,
// constraints: creating two instances within a few microseconds will create generators with the same seed
func newIdGenerator() *snowflake.Node {
	hash32 := adler32.New()
	for _, e := range os.Environ() {
		hash32.Sum([]byte(e))
	}
	node, err := snowflake.NewNode(int64(hash32.Sum32() % 1024))
	if err != nil {
		panic("can't initialize snowflake ID generator. Message: " + err.Error())
	}
	return node
}

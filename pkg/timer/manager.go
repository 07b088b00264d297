package timer

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pbinitiative/zenflow/pkg/bus"
)

type waitingTimer struct {
	key     int64
	at      time.Time
	event   string
	payload any
	cancel  context.CancelFunc
}

// Manager is an in-memory Scheduler publishing due notifications back on the
// bus. Every scheduled entry waits on its own goroutine and fires into the
// manager's channel, where a single loop publishes in arrival order.
type Manager struct {
	mu            *sync.Mutex
	ctx           context.Context
	ctxCancelFunc context.CancelFunc
	ch            chan waitingTimer
	logger        hclog.Logger
	publisher     bus.Publisher
	waitingTimers []waitingTimer
	nextKey       int64
}

func NewManager(publisher bus.Publisher) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		mu:            &sync.Mutex{},
		ctx:           ctx,
		ctxCancelFunc: cancel,
		ch:            make(chan waitingTimer),
		logger:        hclog.Default().Named("timer-manager"),
		publisher:     publisher,
	}
}

func (tm *Manager) ScheduleAt(ctx context.Context, at time.Time, event string, payload any) error {
	tm.mu.Lock()
	tm.nextKey++
	timerCtx, timerCancel := context.WithCancel(context.Background())
	wt := waitingTimer{
		key:     tm.nextKey,
		at:      at,
		event:   event,
		payload: payload,
		cancel:  timerCancel,
	}
	tm.waitingTimers = append(tm.waitingTimers, wt)
	tm.mu.Unlock()

	go func() {
		t := time.NewTimer(time.Until(at))
		defer t.Stop()
		select {
		case <-t.C:
			select {
			case tm.ch <- wt:
			case <-tm.ctx.Done():
			}
		case <-timerCtx.Done():
		case <-tm.ctx.Done():
		}
	}()
	return nil
}

// HandleSchedule accepts schedule requests arriving over the bus.
func (tm *Manager) HandleSchedule(ctx context.Context, msg bus.Message) {
	request, ok := msg.Payload.(ScheduleRequest)
	if !ok {
		tm.logger.Error(fmt.Sprintf("Dropping schedule request with unexpected payload on %s", msg.Name))
		return
	}
	if err := tm.ScheduleAt(ctx, request.Time, request.Event, request.Payload); err != nil {
		tm.logger.Error(fmt.Sprintf("Failed to schedule %s: %s", request.Event, err))
	}
}

func (tm *Manager) Start() {
	go tm.run()
}

func (tm *Manager) Stop() {
	tm.ctxCancelFunc()
	tm.mu.Lock()
	defer tm.mu.Unlock()
	for _, wt := range tm.waitingTimers {
		wt.cancel()
	}
	tm.waitingTimers = nil
}

func (tm *Manager) run() {
	for {
		select {
		case <-tm.ctx.Done():
			return
		case wt := <-tm.ch:
			err := tm.publisher.Publish(context.Background(), wt.event, wt.payload)
			if err != nil {
				tm.logger.Error(fmt.Sprintf("Failed to publish scheduled notification %s: %s", wt.event, err))
			}
			tm.mu.Lock()
			tm.waitingTimers = slices.DeleteFunc(tm.waitingTimers, func(item waitingTimer) bool {
				return item.key == wt.key
			})
			tm.mu.Unlock()
		}
	}
}

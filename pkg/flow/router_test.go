package flow

import (
	"context"
	"testing"

	"github.com/pbinitiative/zenflow/pkg/bus"
	"github.com/pbinitiative/zenflow/pkg/flow/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func routeToken(t *testing.T, b *testBus, token runtime.Token) {
	t.Helper()
	r := NewRouter(b)
	require.NoError(t, r.Start())
	r.handle(context.Background(), bus.Message{ID: 1, Name: NotificationTokenEmit, Payload: token})
}

func Test_router_dispatches_statuses_to_category_notifications(t *testing.T) {
	cases := map[runtime.Status]string{
		runtime.StatusEventActivated:    NotificationEventActivated,
		runtime.StatusActivityActivated: NotificationActivityActivated,
		runtime.StatusActivityReady:     NotificationActivityReady,
		runtime.StatusSequenceActivated: NotificationSequenceActivated,
		runtime.StatusGatewayActivated:  NotificationGatewayActivated,
		runtime.StatusGatewayReady:      NotificationGatewayReady,
		runtime.StatusProcessActivated:  NotificationProcessActivated,
		runtime.StatusProcessCompleted:  NotificationProcessCompleted,
	}
	for status, want := range cases {
		// given
		b := newTestBus()
		token := testToken("element-1", runtime.ElementTypeDefaultEvent, status)

		// when
		routeToken(t, b, token)

		// then: the same token, unchanged, on exactly one category notification
		messages := b.named(want)
		require.Len(t, messages, 1, "status %s", status)
		assert.Equal(t, token, messages[0].Payload)
	}
}

func Test_router_routes_terminal_completions_to_next(t *testing.T) {
	for _, status := range []runtime.Status{
		runtime.StatusEventOccured,
		runtime.StatusSequenceCompleted,
		runtime.StatusActivityCompleted,
		runtime.StatusGatewayCompleted,
	} {
		// given
		b := newTestBus()
		token := testToken("element-1", runtime.ElementTypeServiceTask, status)

		// when
		routeToken(t, b, token)

		// then
		messages := b.named(NotificationNext)
		require.Len(t, messages, 1, "status %s", status)
		assert.Equal(t, token, messages[0].Payload)
	}
}

func Test_router_drops_rejected_and_error_tokens_quietly(t *testing.T) {
	for _, status := range []runtime.Status{
		runtime.StatusSequenceRejected,
		runtime.StatusSequenceError,
		runtime.StatusActivityError,
	} {
		// given
		b := newTestBus()

		// when
		routeToken(t, b, testToken("element-1", runtime.ElementTypeSequenceConditional, status))

		// then: nothing re-published
		assert.Empty(t, b.records, "status %s", status)
	}
}

func Test_router_drops_unknown_status_without_emitting(t *testing.T) {
	// given
	b := newTestBus()

	// when
	routeToken(t, b, testToken("element-1", runtime.ElementTypeDefaultEvent, runtime.Status("BOGUS")))

	// then
	assert.Empty(t, b.records)
}

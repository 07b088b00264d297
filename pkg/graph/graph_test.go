package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/pbinitiative/zenflow/pkg/flow/runtime"
	"github.com/pbinitiative/zenflow/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orderProcess() *InMemoryGraph {
	g := NewInMemoryGraph()
	g.AddElement(Element{ID: "start", ProcessID: "order-process", Type: runtime.ElementTypeDefaultEvent})
	g.AddElement(Element{ID: "seq-1", ProcessID: "order-process", Type: runtime.ElementTypeSequenceStandard})
	g.AddElement(Element{ID: "seq-2", ProcessID: "order-process", Type: runtime.ElementTypeSequenceStandard})
	g.AddElement(Element{ID: "join", ProcessID: "order-process", Type: runtime.ElementTypeParallelGateway})
	g.Connect("order-process", "start", "seq-1")
	g.Connect("order-process", "start", "seq-2")
	g.Connect("order-process", "seq-1", "join")
	g.Connect("order-process", "seq-2", "join")
	return g
}

func Test_get_element_checks_the_expected_type(t *testing.T) {
	// setup
	g := orderProcess()
	ctx := context.Background()

	// when / then: matching type
	element, err := g.GetElement(ctx, runtime.ElementTypeDefaultEvent, "order-process", "start")
	require.NoError(t, err)
	assert.Equal(t, "start", element.ID)

	// when / then: any type
	element, err = g.GetElement(ctx, "", "order-process", "start")
	require.NoError(t, err)
	assert.Equal(t, runtime.ElementTypeDefaultEvent, element.Type)

	// when / then: wrong type behaves like a missing element
	_, err = g.GetElement(ctx, runtime.ElementTypeServiceTask, "order-process", "start")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// when / then: unknown id
	_, err = g.GetElement(ctx, "", "order-process", "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func Test_outgoing_and_incoming_relations_in_definition_order(t *testing.T) {
	// setup
	g := orderProcess()
	ctx := context.Background()

	// when
	outgoing, err := g.Outgoing(ctx, "order-process", "start")
	require.NoError(t, err)
	incoming, err := g.Incoming(ctx, "order-process", "join")
	require.NoError(t, err)

	// then
	require.Len(t, outgoing, 2)
	assert.Equal(t, "seq-1", outgoing[0].ID)
	assert.Equal(t, "seq-2", outgoing[1].ID)
	require.Len(t, incoming, 2)
	assert.Equal(t, "seq-1", incoming[0].ID)
	assert.Equal(t, "seq-2", incoming[1].ID)
}

func Test_subscription_lookup_filters_by_scope(t *testing.T) {
	// setup
	g := NewInMemoryGraph()
	g.AddSubscription(Subscription{ID: "sub-1", Name: "orders.created", OwnerID: "owner-1", ProcessID: "order-process", ElementID: "start"})
	g.AddSubscription(Subscription{ID: "sub-2", Name: "orders.created", OwnerID: "owner-2", ProcessID: "order-process", ElementID: "start"})
	g.AddSubscription(Subscription{ID: "sub-3", Name: "orders.cancelled", OwnerID: "owner-1", ProcessID: "order-process", ElementID: "cancel"})
	ctx := context.Background()

	// when / then: by name only
	subs, err := g.Subscriptions(ctx, SubscriptionFilter{Name: "orders.created"})
	require.NoError(t, err)
	assert.Len(t, subs, 2)

	// when / then: narrowed to one owner
	subs, err = g.Subscriptions(ctx, SubscriptionFilter{Name: "orders.created", OwnerID: "owner-2"})
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "sub-2", subs[0].ID)

	// when / then: no match
	subs, err = g.Subscriptions(ctx, SubscriptionFilter{Name: "orders.shipped"})
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func Test_element_attribute_helpers(t *testing.T) {
	element := Element{Attributes: map[string]any{
		"timeCycle":   "10 23 * * *",
		"start":       true,
		"contextKeys": []any{"order", "customer"},
	}}

	assert.Equal(t, "10 23 * * *", element.Attribute(AttrTimeCycle))
	assert.Empty(t, element.Attribute(AttrTimeDuration))
	assert.True(t, element.BoolAttribute(AttrStart))
	assert.False(t, element.BoolAttribute("missing"))
	assert.Equal(t, []string{"order", "customer"}, element.StringsAttribute(AttrContextKeys))
}

// countingQuery counts calls through to the backing query.
type countingQuery struct {
	next  Query
	calls int
}

func (c *countingQuery) GetElement(ctx context.Context, elementType runtime.ElementType, processID string, elementID string) (Element, error) {
	c.calls++
	return c.next.GetElement(ctx, elementType, processID, elementID)
}

func (c *countingQuery) Outgoing(ctx context.Context, processID string, elementID string) ([]Element, error) {
	c.calls++
	return c.next.Outgoing(ctx, processID, elementID)
}

func (c *countingQuery) Incoming(ctx context.Context, processID string, elementID string) ([]Element, error) {
	c.calls++
	return c.next.Incoming(ctx, processID, elementID)
}

func (c *countingQuery) Subscriptions(ctx context.Context, filter SubscriptionFilter) ([]Subscription, error) {
	c.calls++
	return c.next.Subscriptions(ctx, filter)
}

func Test_cached_query_serves_repeated_lookups_from_cache(t *testing.T) {
	// setup
	counting := &countingQuery{next: orderProcess()}
	cached, err := NewCachedQuery(counting, 16)
	require.NoError(t, err)
	ctx := context.Background()

	// when
	for i := 0; i < 3; i++ {
		_, err := cached.GetElement(ctx, runtime.ElementTypeDefaultEvent, "order-process", "start")
		require.NoError(t, err)
		_, err = cached.Outgoing(ctx, "order-process", "start")
		require.NoError(t, err)
		_, err = cached.Incoming(ctx, "order-process", "join")
		require.NoError(t, err)
	}

	// then: one backing call per distinct lookup
	assert.Equal(t, 3, counting.calls)
}

func Test_cached_query_does_not_cache_failures(t *testing.T) {
	// setup
	counting := &countingQuery{next: orderProcess()}
	cached, err := NewCachedQuery(counting, 16)
	require.NoError(t, err)
	ctx := context.Background()

	// when
	_, first := cached.GetElement(ctx, "", "order-process", "nope")
	_, second := cached.GetElement(ctx, "", "order-process", "nope")

	// then
	assert.True(t, errors.Is(first, storage.ErrNotFound))
	assert.True(t, errors.Is(second, storage.ErrNotFound))
	assert.Equal(t, 2, counting.calls)
}

func Test_cached_query_passes_subscription_lookups_through(t *testing.T) {
	// setup
	counting := &countingQuery{next: orderProcess()}
	cached, err := NewCachedQuery(counting, 16)
	require.NoError(t, err)

	// when
	for i := 0; i < 2; i++ {
		_, err := cached.Subscriptions(context.Background(), SubscriptionFilter{Name: "orders.created"})
		require.NoError(t, err)
	}

	// then
	assert.Equal(t, 2, counting.calls)
}

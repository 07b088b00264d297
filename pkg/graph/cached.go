package graph

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pbinitiative/zenflow/pkg/flow/runtime"
)

const defaultCacheSize = 1024

// CachedQuery is a read-through LRU decorator over a Query. Definitions are
// immutable per version, so element and relation lookups can be cached
// indefinitely. Subscription lookups are instance-scoped and always pass
// through.
type CachedQuery struct {
	next      Query
	elements  *lru.Cache[string, Element]
	relations *lru.Cache[string, []Element]
}

func NewCachedQuery(next Query, size int) (*CachedQuery, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	elements, err := lru.New[string, Element](size)
	if err != nil {
		return nil, err
	}
	relations, err := lru.New[string, []Element](size)
	if err != nil {
		return nil, err
	}
	return &CachedQuery{next: next, elements: elements, relations: relations}, nil
}

func (c *CachedQuery) GetElement(ctx context.Context, elementType runtime.ElementType, processID string, elementID string) (Element, error) {
	key := fmt.Sprintf("%s/%s/%s", processID, elementID, elementType)
	if element, ok := c.elements.Get(key); ok {
		return element, nil
	}
	element, err := c.next.GetElement(ctx, elementType, processID, elementID)
	if err != nil {
		return Element{}, err
	}
	c.elements.Add(key, element)
	return element, nil
}

func (c *CachedQuery) Outgoing(ctx context.Context, processID string, elementID string) ([]Element, error) {
	key := fmt.Sprintf("out/%s/%s", processID, elementID)
	if related, ok := c.relations.Get(key); ok {
		return related, nil
	}
	related, err := c.next.Outgoing(ctx, processID, elementID)
	if err != nil {
		return nil, err
	}
	c.relations.Add(key, related)
	return related, nil
}

func (c *CachedQuery) Incoming(ctx context.Context, processID string, elementID string) ([]Element, error) {
	key := fmt.Sprintf("in/%s/%s", processID, elementID)
	if related, ok := c.relations.Get(key); ok {
		return related, nil
	}
	related, err := c.next.Incoming(ctx, processID, elementID)
	if err != nil {
		return nil, err
	}
	c.relations.Add(key, related)
	return related, nil
}

func (c *CachedQuery) Subscriptions(ctx context.Context, filter SubscriptionFilter) ([]Subscription, error) {
	return c.next.Subscriptions(ctx, filter)
}

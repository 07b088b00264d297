package graph

import (
	"context"
	"fmt"
	"sync"

	"github.com/pbinitiative/zenflow/pkg/flow/runtime"
	"github.com/pbinitiative/zenflow/pkg/storage"
)

type relation struct {
	from string
	to   string
}

// InMemoryGraph is a Query implementation over definitions registered
// programmatically. It backs local wiring and the package tests; a remote
// definition service implements the same interface.
type InMemoryGraph struct {
	mu            sync.RWMutex
	elements      map[string]map[string]Element // processID -> elementID -> element
	relations     map[string][]relation         // processID -> ordered flow relations
	subscriptions []Subscription
}

func NewInMemoryGraph() *InMemoryGraph {
	return &InMemoryGraph{
		elements:  make(map[string]map[string]Element),
		relations: make(map[string][]relation),
	}
}

// AddElement registers an element of a process definition.
func (g *InMemoryGraph) AddElement(element Element) {
	g.mu.Lock()
	defer g.mu.Unlock()
	process, ok := g.elements[element.ProcessID]
	if !ok {
		process = make(map[string]Element)
		g.elements[element.ProcessID] = process
	}
	process[element.ID] = element
}

// Connect records a directed flow relation between two registered elements.
func (g *InMemoryGraph) Connect(processID string, fromID string, toID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.relations[processID] = append(g.relations[processID], relation{from: fromID, to: toID})
}

// AddSubscription registers an external event subscription.
func (g *InMemoryGraph) AddSubscription(sub Subscription) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.subscriptions = append(g.subscriptions, sub)
}

func (g *InMemoryGraph) GetElement(ctx context.Context, elementType runtime.ElementType, processID string, elementID string) (Element, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	element, ok := g.elements[processID][elementID]
	if !ok {
		return Element{}, fmt.Errorf("element %s in process %s: %w", elementID, processID, storage.ErrNotFound)
	}
	if elementType != "" && element.Type != elementType {
		return Element{}, fmt.Errorf("element %s in process %s has type %s, not %s: %w",
			elementID, processID, element.Type, elementType, storage.ErrNotFound)
	}
	return element, nil
}

func (g *InMemoryGraph) Outgoing(ctx context.Context, processID string, elementID string) ([]Element, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []Element
	for _, r := range g.relations[processID] {
		if r.from == elementID {
			out = append(out, g.elements[processID][r.to])
		}
	}
	return out, nil
}

func (g *InMemoryGraph) Incoming(ctx context.Context, processID string, elementID string) ([]Element, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var in []Element
	for _, r := range g.relations[processID] {
		if r.to == elementID {
			in = append(in, g.elements[processID][r.from])
		}
	}
	return in, nil
}

func (g *InMemoryGraph) Subscriptions(ctx context.Context, filter SubscriptionFilter) ([]Subscription, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var result []Subscription
	for _, sub := range g.subscriptions {
		if sub.Name != filter.Name {
			continue
		}
		if filter.OwnerID != "" && sub.OwnerID != filter.OwnerID {
			continue
		}
		if filter.ProcessID != "" && sub.ProcessID != filter.ProcessID {
			continue
		}
		if filter.ElementID != "" && sub.ElementID != filter.ElementID {
			continue
		}
		if filter.InstanceID != "" && sub.InstanceID != "" && sub.InstanceID != filter.InstanceID {
			continue
		}
		result = append(result, sub)
	}
	return result, nil
}

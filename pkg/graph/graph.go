// Package graph defines the process-definition query collaborator: it
// resolves element ids to their type and attributes and resolves the
// incoming/outgoing sequence relations the next handler fans out over.
package graph

import (
	"context"

	"github.com/pbinitiative/zenflow/pkg/flow/runtime"
)

// Element is one node of a process definition graph: an event, task,
// gateway or sequence flow.
type Element struct {
	ID        string               `json:"id"`
	ProcessID string               `json:"processId"`
	Type      runtime.ElementType  `json:"type"`
	Name      string               `json:"name,omitempty"`
	// Attributes hold the element's execution configuration, e.g.
	// timeDuration/timeCycle for timer events, ruleset/template/contextKeys
	// for tasks and conditional sequences, action and result keys for
	// service tasks.
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Attribute returns a string attribute, empty when absent or not a string.
func (e Element) Attribute(key string) string {
	s, _ := e.Attributes[key].(string)
	return s
}

// StringsAttribute returns a string-list attribute. Lists deserialized from
// JSON arrive as []any and are converted.
func (e Element) StringsAttribute(key string) []string {
	switch v := e.Attributes[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Subscription binds an external event name to a catching element of a
// process definition, optionally scoped to one running instance.
type Subscription struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	OwnerID    string `json:"ownerId"`
	ProcessID  string `json:"processId"`
	VersionID  string `json:"versionId,omitempty"`
	ElementID  string `json:"elementId"`
	InstanceID string `json:"instanceId,omitempty"`
	// ContextKey is where the event payload is persisted in the instance
	// context when the subscription fires.
	ContextKey string `json:"contextKey,omitempty"`
}

// SubscriptionFilter narrows a subscription lookup. Name is required, the
// remaining fields restrict the match when non-empty.
type SubscriptionFilter struct {
	Name       string
	OwnerID    string
	ProcessID  string
	ElementID  string
	InstanceID string
}

// Query is the contract of the definition/graph collaborator.
type Query interface {
	// GetElement resolves an element by id, checking it has the expected
	// type. Returns storage-level not-found errors when the element does
	// not exist.
	GetElement(ctx context.Context, elementType runtime.ElementType, processID string, elementID string) (Element, error)

	// Outgoing returns the elements reachable from the given element via
	// its outgoing associations, in definition order.
	Outgoing(ctx context.Context, processID string, elementID string) ([]Element, error)

	// Incoming returns the elements leading into the given element. For a
	// parallel gateway these are the sequence flows the join waits for.
	Incoming(ctx context.Context, processID string, elementID string) ([]Element, error)

	// Subscriptions returns the event subscriptions matching the filter.
	Subscriptions(ctx context.Context, filter SubscriptionFilter) ([]Subscription, error)
}

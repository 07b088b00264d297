// Package bus defines the notification transport the flow handlers
// communicate over. Handlers never call each other directly; a transition's
// result is defined entirely by which notifications it publishes.
package bus

import "context"

// Message is one notification delivery. Payload is `{token}` for almost every
// notification of the flow core; the exceptions carry small descriptor
// structs (timer init, instance created/completed).
type Message struct {
	// ID is a transport-assigned, roughly time-ordered delivery id.
	ID      int64
	Name    string
	Payload any
}

// Handler processes a single delivery. A consumer has at most one delivery in
// flight per worker; errors are the handler's business, the transport does
// not retry at this layer.
type Handler func(ctx context.Context, msg Message)

// Bus is the publish/subscribe contract of the notification transport.
type Bus interface {
	Publisher

	// Subscribe registers a consumer group for a single notification name.
	// Deliveries are load-balanced across the group's workers.
	Subscribe(name string, group string, h Handler) error

	// SubscribeAll registers a catch-all consumer group receiving every
	// notification published on the bus, whatever its name.
	SubscribeAll(group string, h Handler) error
}

// Publisher is the emit-side subset of Bus, enough for components that only
// produce notifications.
type Publisher interface {
	Publish(ctx context.Context, name string, payload any) error
}

// Package flow implements the token state machine: six cooperating handlers
// that own token-status semantics and communicate exclusively through
// notifications on the bus. A transition's result is defined entirely by
// which notifications it publishes, never by a function return.
package flow

import (
	"context"

	"github.com/hashicorp/go-hclog"
	"github.com/pbinitiative/zenflow/internal/appcontext"
	"github.com/pbinitiative/zenflow/internal/otel"
	"github.com/pbinitiative/zenflow/pkg/access"
	"github.com/pbinitiative/zenflow/pkg/bus"
	"github.com/pbinitiative/zenflow/pkg/flow/runtime"
	"github.com/pbinitiative/zenflow/pkg/graph"
	"github.com/pbinitiative/zenflow/pkg/rules"
	"github.com/pbinitiative/zenflow/pkg/storage"
)

// Collaborators is the explicit wiring of every external service a handler
// may depend on. Each handler picks the fields it needs at construction;
// there is no implicit global service registry.
type Collaborators struct {
	Graph     graph.Query
	Store     storage.Store
	Access    access.Issuer
	Rules     rules.Evaluator
	Templates rules.TemplateEngine
	Actions   ActionInvoker
}

// ActionInvoker executes a named external action on behalf of a scoped
// access token. Declared here, implemented by pkg/action.
type ActionInvoker interface {
	Invoke(ctx context.Context, name string, params any, accessToken string) (any, error)
}

// handler is the shared transition plumbing: consume the old token, emit the
// new one, both as independent notifications on the bus.
type handler struct {
	bus    bus.Bus
	logger hclog.Logger
}

// token extracts the token payload of a delivery and stamps the delivery id
// into the context.
func (h *handler) token(ctx context.Context, msg bus.Message) (context.Context, runtime.Token, bool) {
	ctx = appcontext.WithDelivery(ctx, msg.ID)
	token, ok := msg.Payload.(runtime.Token)
	if !ok {
		otel.HandlerErrors.Add(ctx, 1)
		h.logger.Error("dropping delivery with unexpected payload", "notification", msg.Name)
		return ctx, runtime.Token{}, false
	}
	return ctx, token, true
}

// consume announces that a token is no longer active. Consume and the
// following emit are independent, non-transactional publishes; a crash in
// between leaves the token neither active nor replaced.
func (h *handler) consume(ctx context.Context, token runtime.Token) {
	if err := h.bus.Publish(ctx, NotificationTokenConsume, token); err != nil {
		h.logger.Error("failed to publish token consume", "status", token.Status, "error", err)
		return
	}
	otel.TokensConsumed.Add(ctx, 1)
}

// emit publishes a new token. Occurrence and completion tokens stamped with
// an event-based-gateway callback are routed to the callback notification
// instead of the default emit channel.
func (h *handler) emit(ctx context.Context, token runtime.Token) {
	name := NotificationTokenEmit
	if cb := token.Attributes.Callback; cb != nil && cb.Event != "" &&
		(token.Status == runtime.StatusEventOccured || token.Status == runtime.StatusActivityCompleted) {
		name = cb.Event
	}
	if err := h.bus.Publish(ctx, name, token); err != nil {
		h.logger.Error("failed to publish token emit", "status", token.Status, "error", err)
		return
	}
	otel.TokensEmitted.Add(ctx, 1)
}

// transition consumes the old token and emits its replacement.
func (h *handler) transition(ctx context.Context, old runtime.Token, next runtime.Token) {
	h.consume(ctx, old)
	h.emit(ctx, next)
}

// drop records a token that stops propagating without a replacement.
func (h *handler) drop(ctx context.Context, token runtime.Token, reason string) {
	otel.TokensDropped.Add(ctx, 1)
	h.logger.Debug("dropping token", "status", token.Status, "element", token.ElementID, "reason", reason)
}

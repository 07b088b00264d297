package flow

import (
	"context"

	"github.com/hashicorp/go-hclog"
	"github.com/pbinitiative/zenflow/internal/otel"
	"github.com/pbinitiative/zenflow/pkg/bus"
	"github.com/pbinitiative/zenflow/pkg/flow/runtime"
	"github.com/pbinitiative/zenflow/pkg/graph"
	"github.com/pbinitiative/zenflow/pkg/storage"
)

// GatewayHandler owns gateway activation semantics: exclusive pass-through,
// parallel joins over the token tracking store, and event-based-gateway
// callback stamping and forwarding.
type GatewayHandler struct {
	handler
	graph graph.Query
	store storage.Store
	// atomicJoins trusts the append-and-snapshot record of the store
	// instead of the original optimistic last-stored re-read
	atomicJoins bool
}

func NewGatewayHandler(b bus.Bus, c Collaborators, atomicJoins bool) *GatewayHandler {
	return &GatewayHandler{
		handler: handler{
			bus:    b,
			logger: hclog.Default().Named("gateway-handler"),
		},
		graph:       c.Graph,
		store:       c.Store,
		atomicJoins: atomicJoins,
	}
}

func (h *GatewayHandler) Start() error {
	if err := h.bus.Subscribe(NotificationGatewayActivated, "gateway-handler", h.handleActivated); err != nil {
		return err
	}
	return h.bus.Subscribe(NotificationGatewayCallback, "gateway-handler", h.handleCallback)
}

func (h *GatewayHandler) handleActivated(ctx context.Context, msg bus.Message) {
	ctx, token, ok := h.token(ctx, msg)
	if !ok {
		return
	}
	switch token.Type {
	case runtime.ElementTypeExclusiveGateway:
		// branch selection is entirely delegated to the conditional
		// sequences downstream, the gateway itself makes no choice
		h.transition(ctx, token, token.With(runtime.StatusGatewayCompleted))
	case runtime.ElementTypeParallelGateway:
		h.handleParallelJoin(ctx, token)
	case runtime.ElementTypeEventBasedGateway:
		h.completeEventBased(ctx, token)
	case runtime.ElementTypeInclusiveGateway,
		runtime.ElementTypeExclusiveEventBasedGateway,
		runtime.ElementTypeParallelEventBasedGateway:
		// defined extension points without behavior
		h.consume(ctx, token)
		h.drop(ctx, token, "gateway type not implemented")
	default:
		otel.HandlerErrors.Add(ctx, 1)
		h.logger.Error("unexpected element type on gateway activation",
			"type", token.Type, "element", token.ElementID)
		h.drop(ctx, token, "not a gateway")
	}
}

// handleParallelJoin persists the arriving token and completes the join only
// once every incoming sequence is represented among the persisted tokens.
// Tokens arriving before that are silently consumed, they wait in the store.
func (h *GatewayHandler) handleParallelJoin(ctx context.Context, token runtime.Token) {
	ref := storage.TokenRef{
		ProcessID:  token.ProcessID,
		InstanceID: token.InstanceID,
		ElementID:  token.ElementID,
	}
	snapshot, err := h.store.SaveToken(ctx, ref, token)
	if err != nil {
		otel.HandlerErrors.Add(ctx, 1)
		h.logger.Error("failed to persist join token", "element", token.ElementID, "error", err)
		h.consume(ctx, token)
		h.drop(ctx, token, "join token not persistable")
		return
	}

	record := snapshot
	if !h.atomicJoins {
		record, err = h.store.GetTokens(ctx, ref)
		if err != nil {
			otel.HandlerErrors.Add(ctx, 1)
			h.logger.Error("failed to read join tokens", "element", token.ElementID, "error", err)
			h.consume(ctx, token)
			h.drop(ctx, token, "join record not readable")
			return
		}
		// only the writer of the most recently stored token acts on the
		// accumulated set; this narrows, but does not close, the window
		// for double completion under concurrent arrivals
		if record.Last != snapshot.Last {
			h.consume(ctx, token)
			return
		}
	}

	incoming, err := h.graph.Incoming(ctx, token.ProcessID, token.ElementID)
	if err != nil {
		otel.HandlerErrors.Add(ctx, 1)
		h.logger.Error("failed to resolve incoming sequences", "element", token.ElementID, "error", err)
		h.consume(ctx, token)
		h.drop(ctx, token, "incoming sequences not resolvable")
		return
	}

	if !joinSatisfied(record, incoming) {
		h.consume(ctx, token)
		return
	}
	if h.atomicJoins && !completedBy(record, incoming, snapshot.Last) {
		// the set was already complete before this arrival, a sibling
		// writer has fired the join
		h.consume(ctx, token)
		return
	}
	h.transition(ctx, token, token.With(runtime.StatusGatewayCompleted))
}

// completeEventBased completes immediately but stamps the token with the
// callback notification: the first of the following catching events or tasks
// routes its occurrence back through the gateway instead of the default
// channel.
func (h *GatewayHandler) completeEventBased(ctx context.Context, token runtime.Token) {
	attrs := token.Attributes
	attrs.Callback = &runtime.Callback{
		Event:     NotificationGatewayCallback,
		ElementID: token.ElementID,
	}
	h.transition(ctx, token, token.With(runtime.StatusGatewayCompleted).WithAttributes(attrs))
}

// handleCallback forwards a raced occurrence onward. The callback attribute
// is stripped so the rest of the chain runs on the default channel; losing
// siblings are not cancelled, their late occurrences simply forward too.
func (h *GatewayHandler) handleCallback(ctx context.Context, msg bus.Message) {
	ctx, token, ok := h.token(ctx, msg)
	if !ok {
		return
	}
	attrs := token.Attributes
	attrs.Callback = nil
	forwarded := token.WithAttributes(attrs)
	if err := h.bus.Publish(ctx, NotificationTokenEmit, forwarded); err != nil {
		otel.HandlerErrors.Add(ctx, 1)
		h.logger.Error("failed to forward callback token", "element", token.ElementID, "error", err)
		return
	}
	otel.TokensEmitted.Add(ctx, 1)
}

// joinSatisfied reports whether every incoming sequence id is represented by
// a persisted token's lastElementId provenance.
func joinSatisfied(record storage.TokenRecord, incoming []graph.Element) bool {
	for _, in := range incoming {
		if !record.Contains(in.ID) {
			return false
		}
	}
	return true
}

// completedBy reports whether the entry with the given stamp is the one that
// completed the set: without it, at least one incoming sequence is missing.
func completedBy(record storage.TokenRecord, incoming []graph.Element, stamp int64) bool {
	remaining := storage.TokenRecord{}
	for _, e := range record.Entries {
		if e.Stamp != stamp {
			remaining.Entries = append(remaining.Entries, e)
		}
	}
	return !joinSatisfied(remaining, incoming)
}

package flow

import (
	"context"

	"github.com/hashicorp/go-hclog"
	"github.com/pbinitiative/zenflow/internal/appcontext"
	"github.com/pbinitiative/zenflow/internal/otel"
	"github.com/pbinitiative/zenflow/pkg/bus"
	"github.com/pbinitiative/zenflow/pkg/flow/runtime"
)

// statusRoutes is the fixed dispatch table of the router: token status to
// category notification. Terminal per-element statuses all route to the next
// handler, which fans out the descendant tokens.
var statusRoutes = map[runtime.Status]string{
	runtime.StatusEventActivated:    NotificationEventActivated,
	runtime.StatusActivityActivated: NotificationActivityActivated,
	runtime.StatusActivityReady:     NotificationActivityReady,
	runtime.StatusSequenceActivated: NotificationSequenceActivated,
	runtime.StatusGatewayActivated:  NotificationGatewayActivated,
	runtime.StatusGatewayReady:      NotificationGatewayReady,
	runtime.StatusProcessActivated:  NotificationProcessActivated,
	runtime.StatusProcessCompleted:  NotificationProcessCompleted,

	runtime.StatusEventOccured:      NotificationNext,
	runtime.StatusSequenceCompleted: NotificationNext,
	runtime.StatusActivityCompleted: NotificationNext,
	runtime.StatusGatewayCompleted:  NotificationNext,
}

// terminalStatuses are legitimate ends of a token chain that have no route:
// the token is dropped quietly, not reported as a dispatch error.
var terminalStatuses = map[runtime.Status]struct{}{
	runtime.StatusSequenceRejected: {},
	runtime.StatusSequenceError:    {},
	runtime.StatusActivityError:    {},
}

// Router is pure dispatch: it looks up the token status and re-publishes the
// unchanged token on the matching category notification. It holds no state
// and is safe to run with unlimited parallel instances.
type Router struct {
	handler
}

func NewRouter(b bus.Bus) *Router {
	return &Router{handler: handler{
		bus:    b,
		logger: hclog.Default().Named("token-router"),
	}}
}

func (r *Router) Start() error {
	return r.bus.Subscribe(NotificationTokenEmit, "token-router", r.handle)
}

func (r *Router) handle(ctx context.Context, msg bus.Message) {
	ctx, token, ok := r.token(ctx, msg)
	if !ok {
		return
	}
	route, ok := statusRoutes[token.Status]
	if !ok {
		otel.TokensDropped.Add(ctx, 1)
		if _, terminal := terminalStatuses[token.Status]; terminal {
			r.logger.Debug("token reached terminal status, dropping",
				"status", token.Status, "element", token.ElementID)
			return
		}
		otel.HandlerErrors.Add(ctx, 1)
		r.logger.Error("unknown token status, dropping",
			"status", token.Status, "element", token.ElementID, "instance", token.InstanceID)
		return
	}
	if err := r.bus.Publish(ctx, route, token); err != nil {
		delivery, _ := appcontext.GetDelivery(ctx)
		r.logger.Error("failed to route token", "route", route, "delivery", delivery, "error", err)
	}
}

package flow

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/pbinitiative/zenflow/internal/otel"
	"github.com/pbinitiative/zenflow/pkg/access"
	"github.com/pbinitiative/zenflow/pkg/bus"
	"github.com/pbinitiative/zenflow/pkg/flow/runtime"
	"github.com/pbinitiative/zenflow/pkg/graph"
	"github.com/pbinitiative/zenflow/pkg/storage"
	"github.com/pbinitiative/zenflow/pkg/timer"
)

// internalPrefix guards the external catch-all subscription against the
// core's own notifications.
const internalPrefix = "flow."

// EventHandler owns the event token lifecycle: immediate occurrence of
// default events, park-and-redeliver of timer events, cyclic/start cron
// timers spawning new instances, and dispatch of external domain events to
// their subscriptions.
type EventHandler struct {
	handler
	graph  graph.Query
	store  storage.Store
	access access.Issuer
	now    func() time.Time
}

func NewEventHandler(b bus.Bus, c Collaborators) *EventHandler {
	return &EventHandler{
		handler: handler{
			bus:    b,
			logger: hclog.Default().Named("event-handler"),
		},
		graph:  c.Graph,
		store:  c.Store,
		access: c.Access,
		now:    time.Now,
	}
}

func (h *EventHandler) Start() error {
	if err := h.bus.Subscribe(NotificationEventActivated, "event-handler", h.handleActivated); err != nil {
		return err
	}
	if err := h.bus.Subscribe(NotificationEventScheduled, "event-handler", h.handleScheduled); err != nil {
		return err
	}
	if err := h.bus.Subscribe(NotificationEventTimerInit, "event-handler", h.handleTimerInit); err != nil {
		return err
	}
	return h.bus.SubscribeAll("event-handler-external", h.handleExternal)
}

func (h *EventHandler) handleActivated(ctx context.Context, msg bus.Message) {
	ctx, token, ok := h.token(ctx, msg)
	if !ok {
		return
	}
	switch token.Type {
	case runtime.ElementTypeDefaultEvent:
		// pass-through, no collaborator call involved
		h.transition(ctx, token, token.With(runtime.StatusEventOccured))
	case runtime.ElementTypeTimerEvent:
		h.parkOnTimer(ctx, token)
	default:
		// catching events occur through the external subscription path;
		// activation only parks the token
		h.consume(ctx, token)
		h.drop(ctx, token, "waiting for external event")
	}
}

// parkOnTimer resolves the element wait spec, consumes the token and asks the
// timer collaborator to redeliver it at the fire time. No new token is
// emitted until the redelivery.
func (h *EventHandler) parkOnTimer(ctx context.Context, token runtime.Token) {
	element, err := h.graph.GetElement(ctx, token.Type, token.ProcessID, token.ElementID)
	if err != nil {
		otel.HandlerErrors.Add(ctx, 1)
		h.logger.Error("failed to resolve timer element", "element", token.ElementID, "error", err)
		h.consume(ctx, token)
		h.drop(ctx, token, "timer element not resolvable")
		return
	}

	fireAt, cyclic, err := h.fireTime(element, h.now())
	if err != nil {
		otel.HandlerErrors.Add(ctx, 1)
		h.logger.Error("failed to compute timer fire time", "element", token.ElementID, "error", err)
		h.consume(ctx, token)
		h.drop(ctx, token, "invalid timer wait spec")
		return
	}

	attrs := token.Attributes
	attrs.Cyclic = cyclic
	parked := token.WithAttributes(attrs)

	h.consume(ctx, token)
	h.schedule(ctx, fireAt, parked)
}

// fireTime computes the next fire time from the element wait spec: an
// ISO-8601 duration offset or a cron expression. Cron specs mark the token
// cyclic.
func (h *EventHandler) fireTime(element graph.Element, now time.Time) (time.Time, bool, error) {
	if spec := element.Attribute(graph.AttrTimeDuration); spec != "" {
		at, err := timer.ShiftISO8601(spec, now)
		return at, false, err
	}
	if spec := element.Attribute(graph.AttrTimeCycle); spec != "" {
		at, err := timer.NextCronFire(spec, now)
		return at, true, err
	}
	return time.Time{}, false, newFlowErrorf("timer element %s declares neither %s nor %s",
		element.ID, graph.AttrTimeDuration, graph.AttrTimeCycle)
}

func (h *EventHandler) schedule(ctx context.Context, at time.Time, token runtime.Token) {
	request := timer.ScheduleRequest{
		Event:   NotificationEventScheduled,
		Time:    at,
		Payload: token,
	}
	if err := h.bus.Publish(ctx, NotificationTimerSchedule, request); err != nil {
		otel.HandlerErrors.Add(ctx, 1)
		h.logger.Error("failed to request timer schedule", "element", token.ElementID, "error", err)
	}
}

// handleScheduled turns a redelivered timer token into an occurrence. Cyclic
// tokens are re-armed first; a cyclic start event mints a brand-new instance
// for the next cycle, which is how recurring process starts spawn instances
// without an external trigger.
func (h *EventHandler) handleScheduled(ctx context.Context, msg bus.Message) {
	ctx, token, ok := h.token(ctx, msg)
	if !ok {
		return
	}
	if token.Attributes.Cyclic {
		h.rearmCyclic(ctx, token)
	}
	h.emit(ctx, token.With(runtime.StatusEventOccured))
}

func (h *EventHandler) rearmCyclic(ctx context.Context, token runtime.Token) {
	element, err := h.graph.GetElement(ctx, token.Type, token.ProcessID, token.ElementID)
	if err != nil {
		otel.HandlerErrors.Add(ctx, 1)
		h.logger.Error("failed to resolve cyclic timer element", "element", token.ElementID, "error", err)
		return
	}
	spec := element.Attribute(graph.AttrTimeCycle)
	next, err := timer.NextCronFire(spec, h.now())
	if err != nil {
		otel.HandlerErrors.Add(ctx, 1)
		h.logger.Error("failed to compute next cyclic fire time", "element", token.ElementID, "error", err)
		return
	}

	rearmed := token
	if element.BoolAttribute(graph.AttrStart) {
		// a start event has no running instance to re-enter: every cycle
		// is a fresh instance, announced before it is scheduled
		rearmed = token.WithInstance(uuid.NewString())
		h.announceInstance(ctx, rearmed)
	}
	h.schedule(ctx, next, rearmed)
}

// handleTimerInit arms the cron timer of a start event at definition deploy
// time.
func (h *EventHandler) handleTimerInit(ctx context.Context, msg bus.Message) {
	init, ok := msg.Payload.(TimerInit)
	if !ok {
		otel.HandlerErrors.Add(ctx, 1)
		h.logger.Error("dropping timer init with unexpected payload", "notification", msg.Name)
		return
	}
	element, err := h.graph.GetElement(ctx, runtime.ElementTypeTimerEvent, init.ProcessID, init.ElementID)
	if err != nil {
		otel.HandlerErrors.Add(ctx, 1)
		h.logger.Error("failed to resolve timer init element", "element", init.ElementID, "error", err)
		return
	}
	spec := element.Attribute(graph.AttrTimeCycle)
	if spec == "" {
		h.logger.Debug("timer init for element without cron spec, ignoring", "element", init.ElementID)
		return
	}
	next, err := timer.NextCronFire(spec, h.now())
	if err != nil {
		otel.HandlerErrors.Add(ctx, 1)
		h.logger.Error("failed to compute timer init fire time", "element", init.ElementID, "error", err)
		return
	}

	token := runtime.Token{
		ProcessID:  init.ProcessID,
		VersionID:  init.VersionID,
		InstanceID: uuid.NewString(),
		ElementID:  init.ElementID,
		Type:       runtime.ElementTypeTimerEvent,
		Status:     runtime.StatusEventActivated,
		OwnerID:    init.OwnerID,
		Attributes: runtime.Attributes{Cyclic: true},
	}
	h.announceInstance(ctx, token)
	h.schedule(ctx, next, token)
}

func (h *EventHandler) announceInstance(ctx context.Context, token runtime.Token) {
	created := InstanceCreated{
		OwnerID:    token.OwnerID,
		ProcessID:  token.ProcessID,
		InstanceID: token.InstanceID,
	}
	if err := h.bus.Publish(ctx, NotificationInstanceCreated, created); err != nil {
		otel.HandlerErrors.Add(ctx, 1)
		h.logger.Error("failed to announce instance", "instance", token.InstanceID, "error", err)
	}
}

// handleExternal dispatches a domain event to every matching subscription.
// Subscription failures are isolated: one failing subscription never
// prevents its siblings from firing.
func (h *EventHandler) handleExternal(ctx context.Context, msg bus.Message) {
	if strings.HasPrefix(msg.Name, internalPrefix) {
		return
	}
	subscriptions, err := h.graph.Subscriptions(ctx, graph.SubscriptionFilter{Name: msg.Name})
	if err != nil {
		otel.HandlerErrors.Add(ctx, 1)
		h.logger.Error("failed to resolve event subscriptions", "event", msg.Name, "error", err)
		return
	}
	for _, sub := range subscriptions {
		h.fireSubscription(ctx, sub, msg.Payload)
	}
}

func (h *EventHandler) fireSubscription(ctx context.Context, sub graph.Subscription, payload any) {
	// the access check gates acting on the owner's behalf; the store and
	// the emitted token run under the service identity
	if _, err := h.access.RequestAccess(ctx, sub.OwnerID); err != nil {
		otel.HandlerErrors.Add(ctx, 1)
		h.logger.Error("failed to obtain access for subscription, skipping",
			"subscription", sub.ID, "owner", sub.OwnerID, "error", err)
		return
	}

	element, err := h.graph.GetElement(ctx, "", sub.ProcessID, sub.ElementID)
	if err != nil {
		otel.HandlerErrors.Add(ctx, 1)
		h.logger.Error("failed to resolve subscribed element, skipping",
			"subscription", sub.ID, "element", sub.ElementID, "error", err)
		return
	}

	instanceID := sub.InstanceID
	if instanceID == "" {
		instanceID = uuid.NewString()
	}

	token := runtime.Token{
		ProcessID:  sub.ProcessID,
		VersionID:  sub.VersionID,
		InstanceID: instanceID,
		ElementID:  sub.ElementID,
		Type:       element.Type,
		Status:     runtime.StatusEventOccured,
		OwnerID:    sub.OwnerID,
	}
	if sub.InstanceID == "" {
		h.announceInstance(ctx, token)
	}

	if sub.ContextKey != "" {
		if err := h.store.Add(ctx, instanceID, sub.ContextKey, payload); err != nil {
			otel.HandlerErrors.Add(ctx, 1)
			h.logger.Error("failed to persist event payload, skipping",
				"subscription", sub.ID, "key", sub.ContextKey, "error", err)
			return
		}
	}
	h.emit(ctx, token)
}

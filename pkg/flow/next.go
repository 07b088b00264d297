package flow

import (
	"context"

	"github.com/hashicorp/go-hclog"
	"github.com/pbinitiative/zenflow/internal/otel"
	"github.com/pbinitiative/zenflow/pkg/bus"
	"github.com/pbinitiative/zenflow/pkg/flow/runtime"
	"github.com/pbinitiative/zenflow/pkg/graph"
)

// NextHandler is the fan-out glue: it turns every per-element completion into
// the activation tokens of the graph's outgoing elements. It is small but
// every other handler depends on the tokens it creates.
type NextHandler struct {
	handler
	graph graph.Query
}

func NewNextHandler(b bus.Bus, c Collaborators) *NextHandler {
	return &NextHandler{
		handler: handler{
			bus:    b,
			logger: hclog.Default().Named("next-handler"),
		},
		graph: c.Graph,
	}
}

func (h *NextHandler) Start() error {
	return h.bus.Subscribe(NotificationNext, "next-handler", h.handleNext)
}

func (h *NextHandler) handleNext(ctx context.Context, msg bus.Message) {
	ctx, token, ok := h.token(ctx, msg)
	if !ok {
		return
	}
	outgoing, err := h.graph.Outgoing(ctx, token.ProcessID, token.ElementID)
	if err != nil {
		otel.HandlerErrors.Add(ctx, 1)
		h.logger.Error("failed to resolve outgoing elements",
			"element", token.ElementID, "error", err)
		h.consume(ctx, token)
		h.drop(ctx, token, "outgoing elements not resolvable")
		return
	}

	if len(outgoing) == 0 {
		h.completeInstance(ctx, token)
		return
	}

	defaultID, conditionalIDs := fallbackWiring(outgoing)
	for _, element := range outgoing {
		status, err := runtime.ActivationStatus(element.Type)
		if err != nil {
			otel.HandlerErrors.Add(ctx, 1)
			h.logger.Error("skipping outgoing element without activation status",
				"element", element.ID, "type", element.Type)
			continue
		}
		attrs := runtime.Attributes{
			LastElementID: token.ElementID,
			Callback:      token.Attributes.Callback,
		}
		switch {
		case defaultID != "" && element.Type == runtime.ElementTypeSequenceConditional:
			attrs.DefaultSequence = defaultID
			attrs.WaitFor = others(conditionalIDs, element.ID)
		case defaultID != "" && element.ID == defaultID:
			attrs.WaitFor = conditionalIDs
		}
		h.emit(ctx, token.
			WithElement(element.ID, element.Type).
			With(status).
			WithAttributes(attrs))
	}
	h.consume(ctx, token)
}

// completeInstance announces that the instance ran off the end of the graph.
func (h *NextHandler) completeInstance(ctx context.Context, token runtime.Token) {
	err := h.bus.Publish(ctx, NotificationInstanceCompleted, InstanceCompleted{
		InstanceID: token.InstanceID,
	})
	if err != nil {
		otel.HandlerErrors.Add(ctx, 1)
		h.logger.Error("failed to publish instance completed",
			"instance", token.InstanceID, "error", err)
	}
	h.consume(ctx, token)
}

// fallbackWiring detects the conditional/default fan-out shape: exactly one
// default sequence guarded by one or more conditional siblings. It returns
// the default's id and the conditional ids, or an empty default id when the
// shape does not apply.
func fallbackWiring(outgoing []graph.Element) (string, []string) {
	var defaults, conditionals []string
	for _, e := range outgoing {
		switch e.Type {
		case runtime.ElementTypeSequenceDefault:
			defaults = append(defaults, e.ID)
		case runtime.ElementTypeSequenceConditional:
			conditionals = append(conditionals, e.ID)
		}
	}
	if len(defaults) != 1 || len(conditionals) == 0 {
		return "", nil
	}
	return defaults[0], conditionals
}

func others(ids []string, self string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != self {
			out = append(out, id)
		}
	}
	return out
}

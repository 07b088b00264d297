package flow

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/pbinitiative/zenflow/internal/otel"
	"github.com/pbinitiative/zenflow/pkg/bus"
	"github.com/pbinitiative/zenflow/pkg/flow/runtime"
	"github.com/pbinitiative/zenflow/pkg/graph"
	"github.com/pbinitiative/zenflow/pkg/rules"
	"github.com/pbinitiative/zenflow/pkg/storage"
)

// SequenceHandler evaluates sequence flows: standard sequences pass through,
// conditional sequences run their ruleset against the instance context, and
// default sequences complete only through the fallback tracking path once
// every guarding conditional has reported rejected.
type SequenceHandler struct {
	handler
	graph       graph.Query
	store       storage.Store
	rules       rules.Evaluator
	atomicJoins bool
}

func NewSequenceHandler(b bus.Bus, c Collaborators, atomicJoins bool) *SequenceHandler {
	return &SequenceHandler{
		handler: handler{
			bus:    b,
			logger: hclog.Default().Named("sequence-handler"),
		},
		graph:       c.Graph,
		store:       c.Store,
		rules:       c.Rules,
		atomicJoins: atomicJoins,
	}
}

func (h *SequenceHandler) Start() error {
	if err := h.bus.Subscribe(NotificationSequenceActivated, "sequence-handler", h.handleActivated); err != nil {
		return err
	}
	return h.bus.Subscribe(NotificationSequenceEvaluated, "sequence-handler", h.handleEvaluated)
}

func (h *SequenceHandler) handleActivated(ctx context.Context, msg bus.Message) {
	ctx, token, ok := h.token(ctx, msg)
	if !ok {
		return
	}
	switch token.Type {
	case runtime.ElementTypeSequenceStandard:
		h.transition(ctx, token, token.With(runtime.StatusSequenceCompleted))
	case runtime.ElementTypeSequenceDefault:
		// inert on direct activation, completion arrives through the
		// fallback path once the guarding conditionals have reported
		h.consume(ctx, token)
	case runtime.ElementTypeSequenceConditional:
		h.handleConditional(ctx, token)
	default:
		otel.HandlerErrors.Add(ctx, 1)
		h.logger.Error("unexpected element type on sequence activation",
			"type", token.Type, "element", token.ElementID)
		h.drop(ctx, token, "not a sequence")
	}
}

func (h *SequenceHandler) handleConditional(ctx context.Context, token runtime.Token) {
	result, err := h.evaluate(ctx, token)
	if err != nil {
		otel.HandlerErrors.Add(ctx, 1)
		h.logger.Error("conditional sequence evaluation failed",
			"element", token.ElementID, "error", err)
		h.transition(ctx, token, token.With(runtime.StatusSequenceError))
		return
	}

	status := runtime.StatusSequenceRejected
	if result {
		status = runtime.StatusSequenceCompleted
	}

	// siblings guarding a default branch report their verdict with the
	// tracking attributes still attached, before those are stripped from
	// the token that continues onward
	if token.Attributes.DefaultSequence != "" {
		if err := h.bus.Publish(ctx, NotificationSequenceEvaluated, token.With(status)); err != nil {
			otel.HandlerErrors.Add(ctx, 1)
			h.logger.Error("failed to publish sequence evaluated",
				"element", token.ElementID, "error", err)
		}
	}

	attrs := token.Attributes
	attrs.DefaultSequence = ""
	attrs.WaitFor = nil
	h.transition(ctx, token, token.With(status).WithAttributes(attrs))
}

func (h *SequenceHandler) evaluate(ctx context.Context, token runtime.Token) (bool, error) {
	element, err := h.graph.GetElement(ctx, runtime.ElementTypeSequenceConditional, token.ProcessID, token.ElementID)
	if err != nil {
		return false, newFlowErrorf("failed to resolve conditional sequence %s: %s", token.ElementID, err)
	}
	ruleset := element.Attribute(graph.AttrRuleset)
	if ruleset == "" {
		return false, newFlowErrorf("conditional sequence %s declares no ruleset", token.ElementID)
	}
	data, err := h.store.GetKeys(ctx, token.InstanceID, element.StringsAttribute(graph.AttrContextKeys))
	if err != nil {
		return false, newFlowErrorf("failed to load context for sequence %s: %s", token.ElementID, err)
	}
	result, err := h.rules.Eval(ctx, ruleset, data)
	if err != nil {
		return false, &EvaluationError{
			Msg: fmt.Sprintf("failed to evaluate ruleset %s for sequence %s", ruleset, token.ElementID),
			Err: err,
		}
	}
	verdict, ok := result.(bool)
	if !ok {
		return false, newFlowErrorf("ruleset %s returned non-boolean %T", ruleset, result)
	}
	return verdict, nil
}

// handleEvaluated is the default-branch fallback: every verdict of a guarding
// conditional is persisted under the default sequence's tracking key, and the
// rejection that completes the all-rejected set emits the default's
// completion. A sibling's lost report stalls the branch, this is accepted.
func (h *SequenceHandler) handleEvaluated(ctx context.Context, msg bus.Message) {
	ctx, token, ok := h.token(ctx, msg)
	if !ok {
		return
	}
	defaultID := token.Attributes.DefaultSequence
	if defaultID == "" {
		h.drop(ctx, token, "evaluated report without default sequence")
		return
	}
	ref := storage.TokenRef{
		ProcessID:  token.ProcessID,
		InstanceID: token.InstanceID,
		ElementID:  defaultID,
	}
	snapshot, err := h.store.SaveToken(ctx, ref, token)
	if err != nil {
		otel.HandlerErrors.Add(ctx, 1)
		h.logger.Error("failed to persist sequence verdict", "element", token.ElementID, "error", err)
		return
	}
	if token.Status != runtime.StatusSequenceRejected {
		// a completed conditional is recorded so the set can never
		// become all-rejected, the default stays inert
		return
	}

	record := snapshot
	if !h.atomicJoins {
		record, err = h.store.GetTokens(ctx, ref)
		if err != nil {
			otel.HandlerErrors.Add(ctx, 1)
			h.logger.Error("failed to read sequence verdicts", "element", defaultID, "error", err)
			return
		}
		// same optimistic guard as the parallel join: only the most
		// recent writer acts on the accumulated verdicts
		if record.Last != snapshot.Last {
			return
		}
	}

	siblings := append([]string{token.ElementID}, token.Attributes.WaitFor...)
	if !allRejected(record, siblings) {
		return
	}
	if h.atomicJoins && !rejectionCompletedBy(record, siblings, snapshot.Last) {
		return
	}

	attrs := token.Attributes
	attrs.DefaultSequence = ""
	attrs.WaitFor = nil
	h.emit(ctx, token.
		WithElement(defaultID, runtime.ElementTypeSequenceDefault).
		With(runtime.StatusSequenceCompleted).
		WithAttributes(attrs))
}

// allRejected reports whether every listed conditional has a persisted
// rejected verdict.
func allRejected(record storage.TokenRecord, elementIDs []string) bool {
	for _, id := range elementIDs {
		if !hasRejected(record, id) {
			return false
		}
	}
	return true
}

func hasRejected(record storage.TokenRecord, elementID string) bool {
	for _, e := range record.Entries {
		if e.Token.ElementID == elementID && e.Token.Status == runtime.StatusSequenceRejected {
			return true
		}
	}
	return false
}

// rejectionCompletedBy reports whether the entry with the given stamp turned
// the verdict set all-rejected: without it, some conditional is unreported.
func rejectionCompletedBy(record storage.TokenRecord, elementIDs []string, stamp int64) bool {
	remaining := storage.TokenRecord{}
	for _, e := range record.Entries {
		if e.Stamp != stamp {
			remaining.Entries = append(remaining.Entries, e)
		}
	}
	return !allRejected(remaining, elementIDs)
}

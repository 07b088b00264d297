package flow

import (
	"context"
	"errors"

	"github.com/hashicorp/go-hclog"
	"github.com/pbinitiative/zenflow/internal/otel"
	"github.com/pbinitiative/zenflow/pkg/access"
	"github.com/pbinitiative/zenflow/pkg/bus"
	"github.com/pbinitiative/zenflow/pkg/flow/runtime"
	"github.com/pbinitiative/zenflow/pkg/graph"
	"github.com/pbinitiative/zenflow/pkg/rules"
	"github.com/pbinitiative/zenflow/pkg/storage"
)

// ActivityHandler owns the task token lifecycle: parameter preparation on
// activation, execution of service and business-rule tasks on readiness, and
// out-of-band completion reports for manual tasks.
type ActivityHandler struct {
	handler
	graph     graph.Query
	store     storage.Store
	access    access.Issuer
	rules     rules.Evaluator
	templates rules.TemplateEngine
	actions   ActionInvoker
}

func NewActivityHandler(b bus.Bus, c Collaborators) *ActivityHandler {
	return &ActivityHandler{
		handler: handler{
			bus:    b,
			logger: hclog.Default().Named("activity-handler"),
		},
		graph:     c.Graph,
		store:     c.Store,
		access:    c.Access,
		rules:     c.Rules,
		templates: c.Templates,
		actions:   c.Actions,
	}
}

func (h *ActivityHandler) Start() error {
	if err := h.bus.Subscribe(NotificationActivityActivated, "activity-handler", h.handleActivated); err != nil {
		return err
	}
	return h.bus.Subscribe(NotificationActivityReady, "activity-handler", h.handleReady)
}

// handleActivated prepares the task parameters. An element without a
// preparation function goes straight to ready; any evaluation failure turns
// the token into an error instead.
func (h *ActivityHandler) handleActivated(ctx context.Context, msg bus.Message) {
	ctx, token, ok := h.token(ctx, msg)
	if !ok {
		return
	}
	element, err := h.graph.GetElement(ctx, token.Type, token.ProcessID, token.ElementID)
	if err != nil {
		otel.HandlerErrors.Add(ctx, 1)
		h.logger.Error("failed to resolve activity element", "element", token.ElementID, "error", err)
		h.consume(ctx, token)
		h.drop(ctx, token, "activity element not resolvable")
		return
	}

	template := element.Attribute(graph.AttrTemplate)
	ruleset := element.Attribute(graph.AttrRuleset)
	if template == "" && ruleset == "" {
		h.transition(ctx, token, token.With(runtime.StatusActivityReady))
		return
	}

	params, err := h.prepareParams(ctx, token, element, template, ruleset)
	if err != nil {
		otel.HandlerErrors.Add(ctx, 1)
		h.logger.Error("parameter preparation failed", "element", token.ElementID, "error", err)
		h.transition(ctx, token, token.With(runtime.StatusActivityError))
		return
	}
	if err := h.store.Add(ctx, token.InstanceID, paramsKey(element), params); err != nil {
		otel.HandlerErrors.Add(ctx, 1)
		h.logger.Error("failed to store prepared parameters", "element", token.ElementID, "error", err)
		h.transition(ctx, token, token.With(runtime.StatusActivityError))
		return
	}
	h.transition(ctx, token, token.With(runtime.StatusActivityReady))
}

func (h *ActivityHandler) prepareParams(ctx context.Context, token runtime.Token, element graph.Element, template string, ruleset string) (any, error) {
	keys := element.StringsAttribute(graph.AttrContextKeys)
	data, err := h.store.GetKeys(ctx, token.InstanceID, keys)
	if err != nil {
		return nil, errors.Join(newFlowErrorf("failed to fetch context keys for element %s", element.ID), err)
	}
	if template != "" {
		return h.templates.Render(ctx, template, data)
	}
	return h.rules.Eval(ctx, ruleset, data)
}

// handleReady executes the task. Service tasks invoke their external action
// with the owner's scoped authorization, business-rule tasks call the rules
// collaborator; everything else waits for an out-of-band completion report.
func (h *ActivityHandler) handleReady(ctx context.Context, msg bus.Message) {
	ctx, token, ok := h.token(ctx, msg)
	if !ok {
		return
	}
	element, err := h.graph.GetElement(ctx, token.Type, token.ProcessID, token.ElementID)
	if err != nil {
		otel.HandlerErrors.Add(ctx, 1)
		h.logger.Error("failed to resolve activity element", "element", token.ElementID, "error", err)
		h.consume(ctx, token)
		h.drop(ctx, token, "activity element not resolvable")
		return
	}

	switch token.Type {
	case runtime.ElementTypeServiceTask:
		h.executeService(ctx, token, element)
	case runtime.ElementTypeBusinessRuleTask:
		h.executeBusinessRule(ctx, token, element)
	default:
		// manual/user tasks complete through Complete
		h.logger.Debug("activity executes out of band, waiting for completion report",
			"element", token.ElementID, "type", token.Type)
	}
}

func (h *ActivityHandler) executeService(ctx context.Context, token runtime.Token, element graph.Element) {
	params, err := h.store.Get(ctx, token.InstanceID, paramsKey(element))
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		h.fail(ctx, token, "failed to fetch bound parameters", err)
		return
	}
	accessToken, err := h.access.RequestAccess(ctx, token.OwnerID)
	if err != nil {
		h.fail(ctx, token, "failed to obtain scoped access", err)
		return
	}
	result, err := h.actions.Invoke(ctx, element.Attribute(graph.AttrAction), params, accessToken)
	if err != nil {
		h.fail(ctx, token, "action invocation failed", err)
		return
	}
	if err := h.store.Add(ctx, token.InstanceID, resultKey(element), result); err != nil {
		h.fail(ctx, token, "failed to store action result", err)
		return
	}
	h.transition(ctx, token, token.With(runtime.StatusActivityCompleted))
}

func (h *ActivityHandler) executeBusinessRule(ctx context.Context, token runtime.Token, element graph.Element) {
	keys := element.StringsAttribute(graph.AttrContextKeys)
	data, err := h.store.GetKeys(ctx, token.InstanceID, keys)
	if err != nil {
		h.fail(ctx, token, "failed to fetch context keys", err)
		return
	}
	result, err := h.rules.Eval(ctx, element.Attribute(graph.AttrRuleset), data)
	if err != nil {
		h.fail(ctx, token, "ruleset evaluation failed", err)
		return
	}
	if err := h.store.Add(ctx, token.InstanceID, resultKey(element), result); err != nil {
		h.fail(ctx, token, "failed to store rule result", err)
		return
	}
	h.transition(ctx, token, token.With(runtime.StatusActivityCompleted))
}

// Complete reports the out-of-band result of a ready task: the original
// token is consumed and replaced by a completed or error token.
func (h *ActivityHandler) Complete(ctx context.Context, token runtime.Token, taskErr error) {
	if taskErr != nil {
		otel.HandlerErrors.Add(ctx, 1)
		h.logger.Error("activity reported failure", "element", token.ElementID, "error", taskErr)
		h.transition(ctx, token, token.With(runtime.StatusActivityError))
		return
	}
	h.transition(ctx, token, token.With(runtime.StatusActivityCompleted))
}

func (h *ActivityHandler) fail(ctx context.Context, token runtime.Token, msg string, err error) {
	otel.HandlerErrors.Add(ctx, 1)
	h.logger.Error(msg, "element", token.ElementID, "error", err)
	h.transition(ctx, token, token.With(runtime.StatusActivityError))
}

func paramsKey(element graph.Element) string {
	if key := element.Attribute(graph.AttrParamsKey); key != "" {
		return key
	}
	return element.ID + ":params"
}

func resultKey(element graph.Element) string {
	if key := element.Attribute(graph.AttrResultKey); key != "" {
		return key
	}
	return element.ID + ":result"
}

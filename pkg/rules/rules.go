// Package rules defines the business-rule and expression evaluation
// collaborators: rulesets referenced by name from task and conditional
// sequence elements, and script templates used for parameter preparation.
package rules

import "context"

// Evaluator evaluates a named ruleset against the given data and returns
// the result. Conditional sequences expect a boolean result.
type Evaluator interface {
	Eval(ctx context.Context, name string, data map[string]any) (any, error)
}

// TemplateEngine renders a template source against the given data. Service
// task parameter preparation uses it when the element declares a template
// instead of a ruleset.
type TemplateEngine interface {
	Render(ctx context.Context, source string, data map[string]any) (any, error)
}

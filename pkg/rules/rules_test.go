package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_registered_ruleset_evaluates_against_scope(t *testing.T) {
	// setup
	evaluator := NewFeelEvaluator()
	evaluator.Register("is-express", "amount > 100")

	// when
	result, err := evaluator.Eval(context.Background(), "is-express", map[string]any{"amount": 150})

	// then
	require.NoError(t, err)
	assert.Equal(t, true, result)
}

func Test_registered_ruleset_rejects_when_condition_is_false(t *testing.T) {
	// setup
	evaluator := NewFeelEvaluator()
	evaluator.Register("is-express", "amount > 100")

	// when
	result, err := evaluator.Eval(context.Background(), "is-express", map[string]any{"amount": 50})

	// then
	require.NoError(t, err)
	assert.Equal(t, false, result)
}

func Test_inline_expression_needs_no_registration(t *testing.T) {
	// setup
	evaluator := NewFeelEvaluator()

	// when: a "="-prefixed name is evaluated as the expression itself
	result, err := evaluator.Eval(context.Background(), `=status = "open"`, map[string]any{"status": "open"})

	// then
	require.NoError(t, err)
	assert.Equal(t, true, result)
}

func Test_unregistered_plain_name_is_an_error(t *testing.T) {
	evaluator := NewFeelEvaluator()

	_, err := evaluator.Eval(context.Background(), "never-registered", nil)

	assert.Error(t, err)
}

func Test_broken_expression_reports_evaluation_error(t *testing.T) {
	// setup
	evaluator := NewFeelEvaluator()
	evaluator.Register("broken", "amount >")

	// when
	_, err := evaluator.Eval(context.Background(), "broken", map[string]any{"amount": 1})

	// then
	assert.Error(t, err)
}

func Test_template_renders_with_bound_context(t *testing.T) {
	// setup
	engine := NewJsTemplateEngine()

	// when
	result, err := engine.Render(context.Background(), `"Hello " + context.name`, map[string]any{"name": "Ada"})

	// then
	require.NoError(t, err)
	assert.Equal(t, "Hello Ada", result)
}

func Test_template_returns_last_expression_value(t *testing.T) {
	// setup
	engine := NewJsTemplateEngine()

	// when
	result, err := engine.Render(context.Background(), `
		var carrier = context.amount > 100 ? "express" : "regular";
		({shipping: carrier})
	`, map[string]any{"amount": 250})

	// then
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"shipping": "express"}, result)
}

func Test_template_syntax_error_is_reported_not_panicking(t *testing.T) {
	engine := NewJsTemplateEngine()

	_, err := engine.Render(context.Background(), "this is not javascript", nil)

	assert.Error(t, err)
}

func Test_template_engine_reuses_pooled_vms(t *testing.T) {
	// setup
	engine := NewJsTemplateEngine()

	// when: more renders than the minimum pool size, sequentially
	for i := 0; i < 10; i++ {
		result, err := engine.Render(context.Background(), "context.n + 1", map[string]any{"n": int64(i)})
		require.NoError(t, err)
		assert.EqualValues(t, i+1, result)
	}
}

package rules

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/pbinitiative/feel"
)

// FeelEvaluator is an Evaluator over FEEL expressions. Rulesets are
// registered by name; an unregistered name prefixed with "=" is treated as
// an inline expression, which keeps simple conditions out of the registry.
type FeelEvaluator struct {
	mu       sync.RWMutex
	rulesets map[string]string
}

func NewFeelEvaluator() *FeelEvaluator {
	return &FeelEvaluator{rulesets: make(map[string]string)}
}

// Register binds a FEEL expression to a ruleset name.
func (e *FeelEvaluator) Register(name string, expression string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rulesets[name] = expression
}

func (e *FeelEvaluator) Eval(ctx context.Context, name string, data map[string]any) (any, error) {
	e.mu.RLock()
	expression, ok := e.rulesets[name]
	e.mu.RUnlock()
	if !ok {
		if !strings.HasPrefix(name, "=") {
			return nil, fmt.Errorf("no ruleset registered under name %s", name)
		}
		expression = strings.TrimPrefix(name, "=")
	}
	result, err := feel.EvalStringWithScope(expression, data)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate ruleset %s with variables %v: %w", name, data, err)
	}
	return result, nil
}

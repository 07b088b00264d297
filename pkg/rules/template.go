package rules

import (
	"context"
	"fmt"
	"sync"

	"github.com/dop251/goja"
)

// max amount of active runners
const maxVmPoolSize = 10

// min amount of active runners
const minVmPoolSize = 2

// JsTemplateEngine renders JavaScript template sources on a pool of goja
// VMs. The declared context keys are bound as the global `context` object and
// the value of the last expression is the render result.
type JsTemplateEngine struct {
	pool               chan *jsRunner
	activeRunnersCount int
	activeRunnersMu    *sync.Mutex
}

func NewJsTemplateEngine() *JsTemplateEngine {
	engine := &JsTemplateEngine{
		pool:            make(chan *jsRunner, maxVmPoolSize),
		activeRunnersMu: &sync.Mutex{},
	}
	for i := 0; i < minVmPoolSize; i++ {
		engine.activeRunnersMu.Lock()
		engine.pool <- newJsRunner()
		engine.activeRunnersCount++
		engine.activeRunnersMu.Unlock()
	}
	return engine
}

func (e *JsTemplateEngine) Render(ctx context.Context, source string, data map[string]any) (any, error) {
	runner := e.getRunner()
	defer func() { e.pool <- runner }()
	return runner.run(source, data)
}

func (e *JsTemplateEngine) getRunner() *jsRunner {
	select {
	case runner := <-e.pool:
		return runner
	default:
	}
	e.activeRunnersMu.Lock()
	if e.activeRunnersCount < maxVmPoolSize {
		e.activeRunnersCount++
		e.activeRunnersMu.Unlock()
		return newJsRunner()
	}
	e.activeRunnersMu.Unlock()
	return <-e.pool
}

type jsRunner struct {
	vm *goja.Runtime
}

func newJsRunner() *jsRunner {
	return &jsRunner{vm: goja.New()}
}

func (r *jsRunner) run(source string, data map[string]any) (result any, err error) {
	defer func() {
		// goja throws on interrupted or misbehaving scripts
		if caught := recover(); caught != nil {
			err = fmt.Errorf("template paniced: %v", caught)
		}
	}()
	if err := r.vm.Set("context", data); err != nil {
		return nil, fmt.Errorf("failed to bind template context: %w", err)
	}
	value, err := r.vm.RunString(source)
	if err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}
	return value.Export(), nil
}

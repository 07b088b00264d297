// Package action defines the external action collaborator service tasks are
// executed against.
package action

import (
	"context"
	"fmt"
	"sync"
)

// Invoker executes a named external action with the prepared parameters,
// authorized by the given scoped access token.
type Invoker interface {
	Invoke(ctx context.Context, name string, params any, accessToken string) (any, error)
}

// Func is a single registered action implementation.
type Func func(ctx context.Context, params any, accessToken string) (any, error)

// Registry is a local Invoker dispatching to registered Go functions, the
// in-process analogue of a remote action service.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]Func
}

func NewRegistry() *Registry {
	return &Registry{actions: make(map[string]Func)}
}

func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[name] = fn
}

func (r *Registry) Invoke(ctx context.Context, name string, params any, accessToken string) (any, error) {
	r.mu.RLock()
	fn, ok := r.actions[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no action registered under name %s", name)
	}
	return fn(ctx, params, accessToken)
}

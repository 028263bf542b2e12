package application

import (
	"context"
	"fmt"
	"sync"

	"txbridge/internal/domain"
)

// CompletionHook runs after a transaction reaches terminal state and the
// record has been persisted. It is invoked at most once per tracker run.
type CompletionHook func(ctx context.Context, tx domain.Transaction, args map[string]string) error

// HookRegistry maps hook names to callbacks. Hooks are addressed by name so
// a track task can cross the dispatch boundary and still resolve its
// post-processing on the worker.
type HookRegistry struct {
	mu    sync.RWMutex
	hooks map[string]CompletionHook
}

func NewHookRegistry() *HookRegistry {
	return &HookRegistry{hooks: make(map[string]CompletionHook)}
}

func (r *HookRegistry) Register(name string, hook CompletionHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[name] = hook
}

func (r *HookRegistry) Lookup(name string) (CompletionHook, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hook, ok := r.hooks[name]
	if !ok {
		return nil, fmt.Errorf("completion hook %q is not registered", name)
	}
	return hook, nil
}

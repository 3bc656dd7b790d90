package handler

import (
	"fmt"
	"sync"

	"github.com/courier-http/courier/internal/freeze"
	"github.com/courier-http/courier/internal/routes"
)

// Invoker is a resolved route target ready for per-request invocation.
type Invoker func(*Context) (interface{}, error)

// Registry maps target names to registered handlers. It is populated
// during the configuration window; route targets resolve against it at
// load time so unknown targets fail startup instead of a request.
type Registry struct {
	mu        sync.RWMutex
	classes   map[string]map[string]Func
	factories map[string]func() Instance
	logic     map[string]LogicFunc
	guard     *freeze.Guard
}

// NewRegistry creates a handler registry bound to the freeze guard.
func NewRegistry(guard *freeze.Guard) *Registry {
	return &Registry{
		classes:   make(map[string]map[string]Func),
		factories: make(map[string]func() Instance),
		logic:     make(map[string]LogicFunc),
		guard:     guard,
	}
}

// RegisterClass registers a class-level callable table under a name.
func (r *Registry) RegisterClass(name string, methods map[string]Func) {
	r.guard.MustBeConfigurable()
	r.mu.Lock()
	r.classes[name] = methods
	r.mu.Unlock()
}

// RegisterInstance registers an instance factory under a name. A fresh
// instance is constructed for every request.
func (r *Registry) RegisterInstance(name string, factory func() Instance) {
	r.guard.MustBeConfigurable()
	r.mu.Lock()
	r.factories[name] = factory
	r.mu.Unlock()
}

// RegisterLogic registers a logic unit under a name.
func (r *Registry) RegisterLogic(name string, fn LogicFunc) {
	r.guard.MustBeConfigurable()
	r.mu.Lock()
	r.logic[name] = fn
	r.mu.Unlock()
}

// Resolve binds a compiled route target to an invoker. Unknown targets
// are load-time errors.
func (r *Registry) Resolve(t routes.Target) (Invoker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	switch t.Kind {
	case routes.ClassMethod:
		methods, ok := r.classes[t.Name]
		if !ok {
			return nil, fmt.Errorf("unknown class target %q", t.Name)
		}
		fn, ok := methods[t.Method]
		if !ok {
			return nil, fmt.Errorf("class %q has no method %q", t.Name, t.Method)
		}
		return Invoker(fn), nil

	case routes.InstanceMethod:
		factory, ok := r.factories[t.Name]
		if !ok {
			return nil, fmt.Errorf("unknown instance target %q", t.Name)
		}
		method := t.Method
		return func(ctx *Context) (interface{}, error) {
			return factory().Handle(method, ctx)
		}, nil

	case routes.LogicUnit:
		fn, ok := r.logic[t.Name]
		if !ok {
			return nil, fmt.Errorf("unknown logic unit %q", t.Name)
		}
		return func(ctx *Context) (interface{}, error) {
			return fn(ctx.Auth, ctx.Params, ctx.Locale)
		}, nil

	default:
		return nil, fmt.Errorf("unsupported target kind %v", t.Kind)
	}
}

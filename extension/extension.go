// Package extension implements the scope-aware extension mechanism of the
// meshcall runtime. Components such as config managers and environments are
// registered as named factories against one of the three resolution scopes and
// instantiated at most once per scope-model instance through a Directory.
package extension

import (
	"fmt"
	"sync"
)

// Scope identifies the resolution level an extension is registered for.
type Scope int

const (
	// ScopeProcess - one instance per framework model
	ScopeProcess Scope = iota
	// ScopeApplication - one instance per application model
	ScopeApplication
	// ScopeModule - one instance per module model
	ScopeModule
)

func (s Scope) String() string {
	switch s {
	case ScopeProcess:
		return "process"
	case ScopeApplication:
		return "application"
	case ScopeModule:
		return "module"
	default:
		return "unknown"
	}
}

// Host is the view of a scope model the extension machinery needs.
type Host interface {
	// InternalName returns the hierarchical display name of the scope model.
	InternalName() string

	// ExtensionScope returns the resolution scope of the model.
	ExtensionScope() Scope
}

// Factory creates an extension instance bound to a host scope model.
type Factory func(host Host) (any, error)

// Initializer is implemented by extensions that need a post-construction hook.
type Initializer interface {
	Initialize() error
}

// Destroyer is implemented by extensions that hold releasable resources.
type Destroyer interface {
	Destroy()
}

// Refresher is implemented by extensions that recompute derived state when the
// host's loader set changes.
type Refresher interface {
	Refresh()
}

// Registry holds named extension factories per scope.
// Packages register their factories from init() functions.
type Registry struct {
	mu        sync.RWMutex
	factories map[Scope]map[string]Factory
	order     map[Scope][]string // registration order for deterministic teardown
}

// NewRegistry creates an empty extension registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[Scope]map[string]Factory),
		order:     make(map[Scope][]string),
	}
}

// Default is the process-wide extension registry.
var Default = NewRegistry()

// Register adds a factory under the given scope and name.
func (r *Registry) Register(scope Scope, name string, factory Factory) error {
	if name == "" {
		return fmt.Errorf("extension name is required")
	}
	if factory == nil {
		return fmt.Errorf("extension %q: factory is required", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	scoped, ok := r.factories[scope]
	if !ok {
		scoped = make(map[string]Factory)
		r.factories[scope] = scoped
	}
	if _, exists := scoped[name]; exists {
		return fmt.Errorf("extension already registered: %s/%s", scope, name)
	}
	scoped[name] = factory
	r.order[scope] = append(r.order[scope], name)
	return nil
}

// Names returns the registered extension names for a scope in registration order.
func (r *Registry) Names(scope Scope) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order[scope]))
	copy(out, r.order[scope])
	return out
}

func (r *Registry) factory(scope Scope, name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[scope][name]
	return f, ok
}

// Register adds a factory to the default registry.
func Register(scope Scope, name string, factory Factory) error {
	return Default.Register(scope, name, factory)
}

// MustRegister adds a factory to the default registry.
// Called from package init() functions.
func MustRegister(scope Scope, name string, factory Factory) {
	if err := Default.Register(scope, name, factory); err != nil {
		panic(err)
	}
}

// Directory resolves and caches extension instances for one scope model.
// Each scope model owns exactly one Directory; instances are constructed
// lazily, at most once each.
type Directory struct {
	registry *Registry
	host     Host

	mu        sync.Mutex
	instances map[string]any
	created   []string // construction order for reverse teardown
	destroyed bool
}

// NewDirectory creates a directory against the default registry.
func NewDirectory(host Host) *Directory {
	return NewDirectoryIn(Default, host)
}

// NewDirectoryIn creates a directory against an explicit registry.
// Used for test isolation.
func NewDirectoryIn(registry *Registry, host Host) *Directory {
	return &Directory{
		registry:  registry,
		host:      host,
		instances: make(map[string]any),
	}
}

// Extension returns the named extension instance for the host's scope,
// constructing and caching it on first access.
func (d *Directory) Extension(name string) (any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.destroyed {
		return nil, fmt.Errorf("extension directory of %s is destroyed", d.host.InternalName())
	}
	if inst, ok := d.instances[name]; ok {
		return inst, nil
	}

	factory, ok := d.registry.factory(d.host.ExtensionScope(), name)
	if !ok {
		return nil, fmt.Errorf("unknown extension %s/%s", d.host.ExtensionScope(), name)
	}

	inst, err := factory(d.host)
	if err != nil {
		return nil, fmt.Errorf("create extension %s/%s: %w", d.host.ExtensionScope(), name, err)
	}
	if init, ok := inst.(Initializer); ok {
		if err := init.Initialize(); err != nil {
			return nil, fmt.Errorf("initialize extension %s/%s: %w", d.host.ExtensionScope(), name, err)
		}
	}

	d.instances[name] = inst
	d.created = append(d.created, name)
	return inst, nil
}

// Cached returns the named instance only if it has already been constructed.
func (d *Directory) Cached(name string) (any, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	inst, ok := d.instances[name]
	return inst, ok
}

// Loaded returns the names of all constructed instances.
func (d *Directory) Loaded() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.created))
	copy(out, d.created)
	return out
}

// Destroy tears down cached instances in reverse construction order.
// Further Extension calls fail afterwards.
func (d *Directory) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.destroyed {
		return
	}
	d.destroyed = true

	for i := len(d.created) - 1; i >= 0; i-- {
		if dest, ok := d.instances[d.created[i]].(Destroyer); ok {
			dest.Destroy()
		}
	}
	d.instances = make(map[string]any)
	d.created = nil
}

package bootstrap

import (
	"sync"

	"github.com/meshcall/meshcall/model"
)

// BindingContext carries the module and facade wiring handed to integration
// layers while they bind declared services. It is mutable during assembly;
// MarkBound freezes it, after which every setter fails with an illegal-state
// error.
type BindingContext struct {
	mu     sync.Mutex
	module *model.ModuleModel
	boot   *Bootstrap
	bound  bool
}

// NewBindingContext returns an unbound context.
func NewBindingContext() *BindingContext {
	return &BindingContext{}
}

// SetModule wires the owning module. Fails once bound.
func (c *BindingContext) SetModule(m *model.ModuleModel) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bound {
		return model.NewIllegalStateError("binding-context", "already bound, module is frozen")
	}
	c.module = m
	return nil
}

// SetBootstrap wires the owning facade. Fails once bound.
func (c *BindingContext) SetBootstrap(b *Bootstrap) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bound {
		return model.NewIllegalStateError("binding-context", "already bound, bootstrap is frozen")
	}
	c.boot = b
	return nil
}

// MarkBound freezes the context. Idempotent.
func (c *BindingContext) MarkBound() {
	c.mu.Lock()
	c.bound = true
	c.mu.Unlock()
}

// IsBound reports whether the context has been frozen.
func (c *BindingContext) IsBound() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bound
}

// Module returns the wired module, or nil.
func (c *BindingContext) Module() *model.ModuleModel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.module
}

// Application returns the wired module's application, or nil.
func (c *BindingContext) Application() *model.ApplicationModel {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.module == nil {
		return nil
	}
	return c.module.Application()
}

// Bootstrap returns the wired facade, or nil.
func (c *BindingContext) Bootstrap() *Bootstrap {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.boot
}

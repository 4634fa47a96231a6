package model

import (
	"fmt"
	"sync"
)

// ServiceKey builds the canonical identity of a service declaration:
// group/interface:version, with empty group and version elided.
func ServiceKey(iface, group, version string) string {
	key := iface
	if group != "" {
		key = group + "/" + key
	}
	if version != "" {
		key = key + ":" + version
	}
	return key
}

// ConsumerService is a consumer-side (referred) service entry held by a
// module. Disconnect is invoked best-effort during module teardown.
type ConsumerService struct {
	ServiceKey string
	Interface  string
	Group      string
	Version    string

	// Disconnect releases the remote connection backing this reference.
	Disconnect func() error
}

func (c *ConsumerService) disconnect() error {
	if c.Disconnect == nil {
		return nil
	}
	return c.Disconnect()
}

// ProviderService is a provider-side (exported) service entry held by a
// module. Unexport is invoked best-effort during module teardown.
type ProviderService struct {
	ServiceKey string
	Interface  string
	Group      string
	Version    string

	// Unexport withdraws the service from whatever exported it.
	Unexport func() error
}

func (p *ProviderService) unexport() error {
	if p.Unexport == nil {
		return nil
	}
	return p.Unexport()
}

// ModuleServiceRepository stores the services one module refers to and
// exports. It is owned exclusively by its module; sibling modules never
// reach into it.
type ModuleServiceRepository struct {
	module *ModuleModel

	mu        sync.Mutex
	consumers []*ConsumerService
	providers []*ProviderService
	destroyed bool
}

func newModuleServiceRepository(m *ModuleModel) *ModuleServiceRepository {
	return &ModuleServiceRepository{module: m}
}

// Module returns the owning module.
func (r *ModuleServiceRepository) Module() *ModuleModel { return r.module }

// RegisterConsumer records a referred service.
func (r *ModuleServiceRepository) RegisterConsumer(c *ConsumerService) error {
	if c == nil {
		return RequiredError("consumer service")
	}
	if c.ServiceKey == "" {
		c.ServiceKey = ServiceKey(c.Interface, c.Group, c.Version)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return NewIllegalStateError("register consumer", fmt.Sprintf("repository of %s is destroyed", r.module.InternalName()))
	}
	r.consumers = append(r.consumers, c)
	return nil
}

// RegisterProvider records an exported service.
func (r *ModuleServiceRepository) RegisterProvider(p *ProviderService) error {
	if p == nil {
		return RequiredError("provider service")
	}
	if p.ServiceKey == "" {
		p.ServiceKey = ServiceKey(p.Interface, p.Group, p.Version)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return NewIllegalStateError("register provider", fmt.Sprintf("repository of %s is destroyed", r.module.InternalName()))
	}
	r.providers = append(r.providers, p)
	return nil
}

// ReferredServices returns a snapshot of the consumer-side entries.
func (r *ModuleServiceRepository) ReferredServices() []*ConsumerService {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*ConsumerService, len(r.consumers))
	copy(out, r.consumers)
	return out
}

// ExportedServices returns a snapshot of the provider-side entries.
func (r *ModuleServiceRepository) ExportedServices() []*ProviderService {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*ProviderService, len(r.providers))
	copy(out, r.providers)
	return out
}

// LookupReferredService finds a consumer entry by service key.
func (r *ModuleServiceRepository) LookupReferredService(key string) *ConsumerService {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.consumers {
		if c.ServiceKey == key {
			return c
		}
	}
	return nil
}

// LookupExportedService finds a provider entry by service key.
func (r *ModuleServiceRepository) LookupExportedService(key string) *ProviderService {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.providers {
		if p.ServiceKey == key {
			return p
		}
	}
	return nil
}

func (r *ModuleServiceRepository) destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.destroyed = true
	r.consumers = nil
	r.providers = nil
}

// ApplicationServiceRepository aggregates the service view across every
// module of one application. It holds no entries of its own.
type ApplicationServiceRepository struct {
	app *ApplicationModel
}

func newApplicationServiceRepository(app *ApplicationModel) *ApplicationServiceRepository {
	return &ApplicationServiceRepository{app: app}
}

// AllConsumers returns every referred service across the application's modules.
func (r *ApplicationServiceRepository) AllConsumers() []*ConsumerService {
	var out []*ConsumerService
	for _, m := range r.app.Modules() {
		if repo := m.ServiceRepository(); repo != nil {
			out = append(out, repo.ReferredServices()...)
		}
	}
	return out
}

// AllProviders returns every exported service across the application's modules.
func (r *ApplicationServiceRepository) AllProviders() []*ProviderService {
	var out []*ProviderService
	for _, m := range r.app.Modules() {
		if repo := m.ServiceRepository(); repo != nil {
			out = append(out, repo.ExportedServices()...)
		}
	}
	return out
}

func (r *ApplicationServiceRepository) destroy() {}

package bootstrap

import (
	"github.com/meshcall/meshcall/config"
	"github.com/meshcall/meshcall/model"
)

// Fluent configuration methods. Each call stamps the config with its owning
// scope model, then hands it to the matching config manager. Application
// scope configs go to the application manager; service and reference shaped
// configs go to the default module's manager unless routed through a
// ModuleBuilder. List variants are no-ops on empty input.

// Application records the application identity config.
func (b *Bootstrap) Application(cfg *config.ApplicationConfig) *Bootstrap {
	if cfg == nil {
		b.recordErr(model.RequiredError("application config"))
		return b
	}
	cfg.SetScopeModel(b.app)
	b.recordErr(b.configMgr.SetApplication(cfg))
	return b
}

// ApplicationName is shorthand for Application with only a name.
func (b *Bootstrap) ApplicationName(name string) *Bootstrap {
	return b.Application(&config.ApplicationConfig{Name: name})
}

// Registry records one registry config.
func (b *Bootstrap) Registry(cfg *config.RegistryConfig) *Bootstrap {
	if cfg == nil {
		b.recordErr(model.RequiredError("registry config"))
		return b
	}
	cfg.SetScopeModel(b.app)
	b.recordErr(b.configMgr.AddRegistry(cfg))
	return b
}

// Registries records a batch of registry configs.
func (b *Bootstrap) Registries(cfgs []*config.RegistryConfig) *Bootstrap {
	for _, cfg := range cfgs {
		b.Registry(cfg)
	}
	return b
}

// Protocol records one protocol config.
func (b *Bootstrap) Protocol(cfg *config.ProtocolConfig) *Bootstrap {
	if cfg == nil {
		b.recordErr(model.RequiredError("protocol config"))
		return b
	}
	cfg.SetScopeModel(b.app)
	b.recordErr(b.configMgr.AddProtocol(cfg))
	return b
}

// Protocols records a batch of protocol configs.
func (b *Bootstrap) Protocols(cfgs []*config.ProtocolConfig) *Bootstrap {
	for _, cfg := range cfgs {
		b.Protocol(cfg)
	}
	return b
}

// ConfigCenter records one external configuration source.
func (b *Bootstrap) ConfigCenter(cfg *config.ConfigCenterConfig) *Bootstrap {
	if cfg == nil {
		b.recordErr(model.RequiredError("config center config"))
		return b
	}
	cfg.SetScopeModel(b.app)
	b.recordErr(b.configMgr.AddConfigCenter(cfg))
	return b
}

// ConfigCenters records a batch of config-center configs.
func (b *Bootstrap) ConfigCenters(cfgs []*config.ConfigCenterConfig) *Bootstrap {
	for _, cfg := range cfgs {
		b.ConfigCenter(cfg)
	}
	return b
}

// Service records a service export config against the default module.
func (b *Bootstrap) Service(cfg *config.ServiceConfig) *Bootstrap {
	return b.serviceIn(cfg, b.app.DefaultModule())
}

// Services records a batch of service configs against the default module.
func (b *Bootstrap) Services(cfgs []*config.ServiceConfig) *Bootstrap {
	for _, cfg := range cfgs {
		b.Service(cfg)
	}
	return b
}

// Reference records a reference config against the default module.
func (b *Bootstrap) Reference(cfg *config.ReferenceConfig) *Bootstrap {
	return b.referenceIn(cfg, b.app.DefaultModule())
}

// References records a batch of reference configs against the default module.
func (b *Bootstrap) References(cfgs []*config.ReferenceConfig) *Bootstrap {
	for _, cfg := range cfgs {
		b.Reference(cfg)
	}
	return b
}

// Provider records provider-side defaults against the default module.
func (b *Bootstrap) Provider(cfg *config.ProviderConfig) *Bootstrap {
	return b.providerIn(cfg, b.app.DefaultModule())
}

// Providers records a batch of provider configs against the default module.
func (b *Bootstrap) Providers(cfgs []*config.ProviderConfig) *Bootstrap {
	for _, cfg := range cfgs {
		b.Provider(cfg)
	}
	return b
}

// Consumer records consumer-side defaults against the default module.
func (b *Bootstrap) Consumer(cfg *config.ConsumerConfig) *Bootstrap {
	return b.consumerIn(cfg, b.app.DefaultModule())
}

// Consumers records a batch of consumer configs against the default module.
func (b *Bootstrap) Consumers(cfgs []*config.ConsumerConfig) *Bootstrap {
	for _, cfg := range cfgs {
		b.Consumer(cfg)
	}
	return b
}

func (b *Bootstrap) moduleManager(m *model.ModuleModel) (*config.ModuleConfigManager, bool) {
	if m == nil {
		b.recordErr(model.NewIllegalStateError("bootstrap", "application is destroyed"))
		return nil, false
	}
	mgr, err := config.ModuleManagerOf(m)
	if err != nil {
		b.recordErr(err)
		return nil, false
	}
	return mgr, true
}

func (b *Bootstrap) serviceIn(cfg *config.ServiceConfig, m *model.ModuleModel) *Bootstrap {
	if cfg == nil {
		b.recordErr(model.RequiredError("service config"))
		return b
	}
	mgr, ok := b.moduleManager(m)
	if !ok {
		return b
	}
	cfg.SetScopeModel(m)
	b.recordErr(mgr.AddService(cfg))
	return b
}

func (b *Bootstrap) referenceIn(cfg *config.ReferenceConfig, m *model.ModuleModel) *Bootstrap {
	if cfg == nil {
		b.recordErr(model.RequiredError("reference config"))
		return b
	}
	mgr, ok := b.moduleManager(m)
	if !ok {
		return b
	}
	cfg.SetScopeModel(m)
	b.recordErr(mgr.AddReference(cfg))
	return b
}

func (b *Bootstrap) providerIn(cfg *config.ProviderConfig, m *model.ModuleModel) *Bootstrap {
	if cfg == nil {
		b.recordErr(model.RequiredError("provider config"))
		return b
	}
	mgr, ok := b.moduleManager(m)
	if !ok {
		return b
	}
	cfg.SetScopeModel(m)
	b.recordErr(mgr.AddProvider(cfg))
	return b
}

func (b *Bootstrap) consumerIn(cfg *config.ConsumerConfig, m *model.ModuleModel) *Bootstrap {
	if cfg == nil {
		b.recordErr(model.RequiredError("consumer config"))
		return b
	}
	mgr, ok := b.moduleManager(m)
	if !ok {
		return b
	}
	cfg.SetScopeModel(m)
	b.recordErr(mgr.AddConsumer(cfg))
	return b
}

// ModuleBuilder scopes fluent service-level configuration to one module
// other than the default. Obtain one via Bootstrap.NewModule, finish with
// EndModule to resume application-level chaining.
type ModuleBuilder struct {
	boot   *Bootstrap
	module *model.ModuleModel
}

// NewModule creates a fresh user module and returns a builder scoped to it.
func (b *Bootstrap) NewModule() *ModuleBuilder {
	return &ModuleBuilder{boot: b, module: b.app.NewModule()}
}

// ModuleModel returns the module the builder configures.
func (mb *ModuleBuilder) ModuleModel() *model.ModuleModel { return mb.module }

// Service records a service config against the builder's module.
func (mb *ModuleBuilder) Service(cfg *config.ServiceConfig) *ModuleBuilder {
	mb.boot.serviceIn(cfg, mb.module)
	return mb
}

// Reference records a reference config against the builder's module.
func (mb *ModuleBuilder) Reference(cfg *config.ReferenceConfig) *ModuleBuilder {
	mb.boot.referenceIn(cfg, mb.module)
	return mb
}

// Provider records provider defaults against the builder's module.
func (mb *ModuleBuilder) Provider(cfg *config.ProviderConfig) *ModuleBuilder {
	mb.boot.providerIn(cfg, mb.module)
	return mb
}

// Consumer records consumer defaults against the builder's module.
func (mb *ModuleBuilder) Consumer(cfg *config.ConsumerConfig) *ModuleBuilder {
	mb.boot.consumerIn(cfg, mb.module)
	return mb
}

// EndModule returns to the owning facade for further chaining.
func (mb *ModuleBuilder) EndModule() *Bootstrap { return mb.boot }

package config

import (
	"fmt"
	"sync"

	"github.com/meshcall/meshcall/extension"
	"github.com/meshcall/meshcall/model"
)

// ConfigManager stores application-scope configuration: the application
// config itself plus registries and protocols. One instance exists per
// ApplicationModel, resolved through the extension directory.
type ConfigManager struct {
	host extension.Host

	mu            sync.RWMutex
	application   *ApplicationConfig
	registries    map[string]*RegistryConfig
	protocols     map[string]*ProtocolConfig
	configCenters map[string]*ConfigCenterConfig
	nextID        int
	destroyed     bool
}

// NewConfigManager creates a config manager bound to an application model.
func NewConfigManager(host extension.Host) *ConfigManager {
	return &ConfigManager{
		host:          host,
		registries:    make(map[string]*RegistryConfig),
		protocols:     make(map[string]*ProtocolConfig),
		configCenters: make(map[string]*ConfigCenterConfig),
	}
}

func (m *ConfigManager) checkMutable(op string) error {
	if m.destroyed {
		return model.NewIllegalStateError(op, fmt.Sprintf("config manager of %s is destroyed", m.host.InternalName()))
	}
	return nil
}

func (m *ConfigManager) generateID(kind string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", kind, m.nextID)
}

// SetApplication stores the application config, replacing any previous one.
func (m *ConfigManager) SetApplication(cfg *ApplicationConfig) error {
	if cfg == nil {
		return model.RequiredError("application config")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkMutable("set application"); err != nil {
		return err
	}
	m.application = cfg
	return nil
}

// Application returns the application config, if set.
func (m *ConfigManager) Application() (*ApplicationConfig, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.application, m.application != nil
}

// ApplicationOrElseThrow returns the application config or fails if absent.
func (m *ConfigManager) ApplicationOrElseThrow() (*ApplicationConfig, error) {
	cfg, ok := m.Application()
	if !ok {
		return nil, model.NewIllegalStateError("get application config",
			fmt.Sprintf("no application config registered on %s", m.host.InternalName()))
	}
	return cfg, nil
}

// AddRegistry stores a registry config, assigning an id when absent.
func (m *ConfigManager) AddRegistry(cfg *RegistryConfig) error {
	if cfg == nil {
		return model.RequiredError("registry config")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkMutable("add registry"); err != nil {
		return err
	}
	if cfg.ID == "" {
		cfg.ID = m.generateID("registry")
	}
	m.registries[cfg.ID] = cfg
	return nil
}

// Registry returns a registry config by id.
func (m *ConfigManager) Registry(id string) (*RegistryConfig, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.registries[id]
	return cfg, ok
}

// Registries returns a snapshot of all registry configs.
func (m *ConfigManager) Registries() []*RegistryConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*RegistryConfig, 0, len(m.registries))
	for _, cfg := range m.registries {
		out = append(out, cfg)
	}
	return out
}

// AddProtocol stores a protocol config, assigning an id when absent.
func (m *ConfigManager) AddProtocol(cfg *ProtocolConfig) error {
	if cfg == nil {
		return model.RequiredError("protocol config")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkMutable("add protocol"); err != nil {
		return err
	}
	if cfg.ID == "" {
		cfg.ID = m.generateID("protocol")
	}
	m.protocols[cfg.ID] = cfg
	return nil
}

// AddConfigCenter stores a config-center config, assigning an id when absent.
func (m *ConfigManager) AddConfigCenter(cfg *ConfigCenterConfig) error {
	if cfg == nil {
		return model.RequiredError("config center config")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkMutable("add config center"); err != nil {
		return err
	}
	if cfg.ID == "" {
		cfg.ID = m.generateID("config-center")
	}
	m.configCenters[cfg.ID] = cfg
	return nil
}

// ConfigCenters returns a snapshot of all config-center configs.
func (m *ConfigManager) ConfigCenters() []*ConfigCenterConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*ConfigCenterConfig, 0, len(m.configCenters))
	for _, cfg := range m.configCenters {
		out = append(out, cfg)
	}
	return out
}

// Protocol returns a protocol config by id.
func (m *ConfigManager) Protocol(id string) (*ProtocolConfig, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.protocols[id]
	return cfg, ok
}

// Protocols returns a snapshot of all protocol configs.
func (m *ConfigManager) Protocols() []*ProtocolConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*ProtocolConfig, 0, len(m.protocols))
	for _, cfg := range m.protocols {
		out = append(out, cfg)
	}
	return out
}

// Destroy releases all stored configuration.
func (m *ConfigManager) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.destroyed = true
	m.application = nil
	m.registries = make(map[string]*RegistryConfig)
	m.protocols = make(map[string]*ProtocolConfig)
	m.configCenters = make(map[string]*ConfigCenterConfig)
}

// ModuleConfigManager stores module-scope configuration: service and
// reference declarations plus provider/consumer defaults. One instance
// exists per ModuleModel.
type ModuleConfigManager struct {
	host extension.Host

	mu         sync.RWMutex
	services   []*ServiceConfig
	references []*ReferenceConfig
	providers  []*ProviderConfig
	consumers  []*ConsumerConfig
	destroyed  bool
}

// NewModuleConfigManager creates a config manager bound to a module model.
func NewModuleConfigManager(host extension.Host) *ModuleConfigManager {
	return &ModuleConfigManager{host: host}
}

func (m *ModuleConfigManager) checkMutable(op string) error {
	if m.destroyed {
		return model.NewIllegalStateError(op, fmt.Sprintf("config manager of %s is destroyed", m.host.InternalName()))
	}
	return nil
}

// AddService stores an exported-service declaration.
func (m *ModuleConfigManager) AddService(cfg *ServiceConfig) error {
	if cfg == nil {
		return model.RequiredError("service config")
	}
	if cfg.Interface == "" {
		return model.RequiredError("service interface")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkMutable("add service"); err != nil {
		return err
	}
	m.services = append(m.services, cfg)
	return nil
}

// AddReference stores a remote-reference declaration.
func (m *ModuleConfigManager) AddReference(cfg *ReferenceConfig) error {
	if cfg == nil {
		return model.RequiredError("reference config")
	}
	if cfg.Interface == "" {
		return model.RequiredError("reference interface")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkMutable("add reference"); err != nil {
		return err
	}
	m.references = append(m.references, cfg)
	return nil
}

// AddProvider stores provider-side defaults.
func (m *ModuleConfigManager) AddProvider(cfg *ProviderConfig) error {
	if cfg == nil {
		return model.RequiredError("provider config")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkMutable("add provider"); err != nil {
		return err
	}
	m.providers = append(m.providers, cfg)
	return nil
}

// AddConsumer stores consumer-side defaults.
func (m *ModuleConfigManager) AddConsumer(cfg *ConsumerConfig) error {
	if cfg == nil {
		return model.RequiredError("consumer config")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkMutable("add consumer"); err != nil {
		return err
	}
	m.consumers = append(m.consumers, cfg)
	return nil
}

// Services returns a snapshot of the service declarations.
func (m *ModuleConfigManager) Services() []*ServiceConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*ServiceConfig, len(m.services))
	copy(out, m.services)
	return out
}

// References returns a snapshot of the reference declarations.
func (m *ModuleConfigManager) References() []*ReferenceConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*ReferenceConfig, len(m.references))
	copy(out, m.references)
	return out
}

// Providers returns a snapshot of the provider defaults.
func (m *ModuleConfigManager) Providers() []*ProviderConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*ProviderConfig, len(m.providers))
	copy(out, m.providers)
	return out
}

// Consumers returns a snapshot of the consumer defaults.
func (m *ModuleConfigManager) Consumers() []*ConsumerConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*ConsumerConfig, len(m.consumers))
	copy(out, m.consumers)
	return out
}

// Destroy releases all stored configuration.
func (m *ModuleConfigManager) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.destroyed = true
	m.services = nil
	m.references = nil
	m.providers = nil
	m.consumers = nil
}

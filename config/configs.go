// Package config holds the configuration kinds accumulated through the
// bootstrap facade, the per-scope config managers that store them, and the
// Environment that merges property sources for one application.
//
// Managers and environments are registered as extensions, so scope models
// reach them through their extension directory rather than constructing them
// directly.
package config

import (
	"github.com/meshcall/meshcall/extension"
	"github.com/meshcall/meshcall/model"
)

// BaseConfig carries the fields shared by every configuration kind: an
// optional identifier and the owning scope model stamp.
type BaseConfig struct {
	ID string

	scope extension.Host
}

// SetScopeModel stamps the config with its owning scope model.
// The facade does this before handing the config to a config manager.
func (c *BaseConfig) SetScopeModel(s extension.Host) { c.scope = s }

// ScopeModel returns the owning scope model stamp, if set.
func (c *BaseConfig) ScopeModel() extension.Host { return c.scope }

// ApplicationConfig names and describes one logical application.
type ApplicationConfig struct {
	BaseConfig

	Name         string
	Version      string
	Owner        string
	Organization string
	Parameters   map[string]string
}

// Validate checks required fields.
func (c *ApplicationConfig) Validate() error {
	if c.Name == "" {
		return model.RequiredError("application name")
	}
	return nil
}

// RegistryConfig describes one service-discovery registry endpoint.
type RegistryConfig struct {
	BaseConfig

	Address   string
	Protocol  string
	Group     string
	Username  string
	Password  string
	TimeoutMs int
}

// ConfigCenterConfig describes one external configuration source the
// application subscribes to.
type ConfigCenterConfig struct {
	BaseConfig

	Address   string
	Protocol  string
	Namespace string
	Group     string
	TimeoutMs int
}

// ProtocolConfig describes one wire protocol binding.
type ProtocolConfig struct {
	BaseConfig

	Name          string
	Host          string
	Port          int
	Serialization string
	Threads       int
}

// ProviderConfig carries provider-side defaults for a module.
type ProviderConfig struct {
	BaseConfig

	TimeoutMs   int
	Retries     int
	LoadBalance string
}

// ConsumerConfig carries consumer-side defaults for a module.
type ConsumerConfig struct {
	BaseConfig

	TimeoutMs int
	Retries   int
	Check     bool
}

// ServiceConfig declares one exported (provider-side) service.
type ServiceConfig struct {
	BaseConfig

	Interface string
	Group     string
	Version   string
	Ref       any // the implementation handle exported by the transport layer
}

// ServiceKey returns the canonical identity of the declared service.
func (c *ServiceConfig) ServiceKey() string {
	return model.ServiceKey(c.Interface, c.Group, c.Version)
}

// ReferenceConfig declares one remote-service reference (consumer side).
type ReferenceConfig struct {
	BaseConfig

	Interface  string
	Group      string
	Version    string
	Protocol   string
	TimeoutMs  int
	Retries    int
	Check      bool
	Parameters map[string]string
}

// ServiceKey returns the canonical identity of the referenced service.
func (c *ReferenceConfig) ServiceKey() string {
	return model.ServiceKey(c.Interface, c.Group, c.Version)
}

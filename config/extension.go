package config

import (
	"fmt"

	"github.com/meshcall/meshcall/extension"
	"github.com/meshcall/meshcall/model"
)

// The managers and the environment register themselves as scope extensions,
// so scope models resolve them through their extension directory.
func init() {
	extension.MustRegister(extension.ScopeApplication, model.ExtensionConfigManager,
		func(host extension.Host) (any, error) {
			return NewConfigManager(host), nil
		})
	extension.MustRegister(extension.ScopeApplication, model.ExtensionEnvironment,
		func(host extension.Host) (any, error) {
			return NewEnvironment(host), nil
		})
	extension.MustRegister(extension.ScopeModule, model.ExtensionConfigManager,
		func(host extension.Host) (any, error) {
			return NewModuleConfigManager(host), nil
		})
}

// ManagerOf resolves the application-scope config manager of an application.
func ManagerOf(app *model.ApplicationModel) (*ConfigManager, error) {
	inst, err := app.Extension(model.ExtensionConfigManager)
	if err != nil {
		return nil, err
	}
	mgr, ok := inst.(*ConfigManager)
	if !ok {
		return nil, fmt.Errorf("extension %q of %s has unexpected type %T",
			model.ExtensionConfigManager, app.InternalName(), inst)
	}
	return mgr, nil
}

// ModuleManagerOf resolves the module-scope config manager of a module.
func ModuleManagerOf(m *model.ModuleModel) (*ModuleConfigManager, error) {
	inst, err := m.Extension(model.ExtensionConfigManager)
	if err != nil {
		return nil, err
	}
	mgr, ok := inst.(*ModuleConfigManager)
	if !ok {
		return nil, fmt.Errorf("extension %q of %s has unexpected type %T",
			model.ExtensionConfigManager, m.InternalName(), inst)
	}
	return mgr, nil
}

// EnvironmentOf resolves the environment of an application.
func EnvironmentOf(app *model.ApplicationModel) (*Environment, error) {
	inst, err := app.Extension(model.ExtensionEnvironment)
	if err != nil {
		return nil, err
	}
	env, ok := inst.(*Environment)
	if !ok {
		return nil, fmt.Errorf("extension %q of %s has unexpected type %T",
			model.ExtensionEnvironment, app.InternalName(), inst)
	}
	return env, nil
}

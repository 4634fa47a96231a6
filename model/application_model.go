package model

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/meshcall/meshcall/metrics"
)

const applicationTypeName = "ApplicationModel"

var (
	defaultAppMu       sync.Mutex
	defaultApplication atomic.Pointer[ApplicationModel]
)

// ApplicationModel represents one logical application instance. It owns a
// hidden internal module plus zero or more user modules, resolves a default
// module lazily, and cascades destruction to everything it owns.
//
// Module bookkeeping (attach, detach, default resolution) is serialized by a
// single per-instance lock; this is an administrative path, not a hot path.
type ApplicationModel struct {
	ScopeModel

	framework *FrameworkModel
	repo      *ApplicationServiceRepository

	mu             sync.Mutex
	modules        []*ModuleModel
	pubModules     []*ModuleModel
	internalModule *ModuleModel
	defaultModule  *ModuleModel
	moduleIndex    int64
}

// DefaultApplication returns the process-default application, creating it on
// first access against the default framework.
func DefaultApplication() *ApplicationModel {
	if app := defaultApplication.Load(); app != nil {
		return app
	}
	defaultAppMu.Lock()
	defer defaultAppMu.Unlock()
	if app := defaultApplication.Load(); app != nil {
		return app
	}
	app := NewApplicationModel(DefaultFramework())
	defaultApplication.Store(app)
	return app
}

// ApplicationOrDefault returns app if non-nil, else the default application.
func ApplicationOrDefault(app *ApplicationModel) *ApplicationModel {
	if app != nil {
		return app
	}
	return DefaultApplication()
}

// ResetDefaultApplication destroys and clears the default application.
// Intended for test isolation.
func ResetDefaultApplication() {
	defaultAppMu.Lock()
	app := defaultApplication.Load()
	defaultApplication.Store(nil)
	defaultAppMu.Unlock()
	if app != nil {
		app.Destroy()
	}
}

// NewApplicationModel creates an application owned by the given framework.
// A nil framework means the process default. Returns nil when the framework
// is already destroyed.
func NewApplicationModel(fw *FrameworkModel) *ApplicationModel {
	if fw == nil {
		fw = DefaultFramework()
	}

	app := &ApplicationModel{framework: fw}
	app.initScope(ScopeApplication, applicationTypeName, app)
	app.cascade = app.onDestroy
	if !fw.attachApplication(app) {
		fw.Logger().Error("cannot create application: framework is destroyed")
		return nil
	}

	if app.markInitialized() {
		app.repo = newApplicationServiceRepository(app)
		internal := newModuleModel(app)
		app.attachModule(internal, true)
		internal.finishInit()
	}
	return app
}

// Framework returns the owning framework model.
func (a *ApplicationModel) Framework() *FrameworkModel { return a.framework }

// ServiceRepository returns the application-wide service view.
func (a *ApplicationModel) ServiceRepository() *ApplicationServiceRepository { return a.repo }

// Deployer returns the application lifecycle collaborator, if set.
func (a *ApplicationModel) Deployer() Deployer {
	if v, ok := a.Attribute(AttrDeployer); ok {
		if d, ok := v.(Deployer); ok {
			return d
		}
	}
	return nil
}

// SetDeployer installs the application lifecycle collaborator.
func (a *ApplicationModel) SetDeployer(d Deployer) error {
	return a.SetAttribute(AttrDeployer, d)
}

// NewModule creates, attaches and initializes a new user module. Returns nil
// once the application is destroyed: a dead application accepts no children.
func (a *ApplicationModel) NewModule() *ModuleModel {
	m := newModuleModel(a)
	if !a.attachModule(m, false) {
		a.Logger().Error("cannot create module: application is destroyed")
		return nil
	}
	m.finishInit()
	return m
}

// attachModule registers a module. No-op if already present. The module is
// assigned an internal display name derived from the per-application index;
// internal modules never enter the public list. Reports false when the
// application is destroyed and the module was not attached.
func (a *ApplicationModel) attachModule(m *ModuleModel, isInternal bool) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.attachModuleLocked(m, isInternal)
}

func (a *ApplicationModel) attachModuleLocked(m *ModuleModel, isInternal bool) bool {
	if a.IsDestroyed() {
		return false
	}
	for _, existing := range a.modules {
		if existing == m {
			return true
		}
	}
	a.modules = append(a.modules, m)
	id := fmt.Sprintf("%s.%d", a.InternalID(), a.moduleIndex)
	a.moduleIndex++
	m.setInternalIdentity(id, fmt.Sprintf("%s-%s", moduleTypeName, id))
	if isInternal {
		a.internalModule = m
	} else {
		a.pubModules = append(a.pubModules, m)
	}
	metrics.ModuleAttached()
	return true
}

// RemoveModule detaches a module. If the removed module was the default, the
// default is re-resolved to the first remaining non-internal module. When the
// internal module is the sole survivor it is destroyed too, and when no
// modules remain the application destroys itself.
func (a *ApplicationModel) RemoveModule(m *ModuleModel) {
	a.mu.Lock()
	removed := false
	for i, existing := range a.modules {
		if existing == m {
			a.modules = append(a.modules[:i], a.modules[i+1:]...)
			removed = true
			break
		}
	}
	for i, existing := range a.pubModules {
		if existing == m {
			a.pubModules = append(a.pubModules[:i], a.pubModules[i+1:]...)
			break
		}
	}
	if m == a.defaultModule {
		a.defaultModule = a.findDefaultLocked()
	}
	destroyInternal := len(a.modules) == 1 && a.modules[0] == a.internalModule
	destroySelf := len(a.modules) == 0
	internal := a.internalModule
	a.mu.Unlock()

	if !removed {
		return
	}
	metrics.ModuleDetached()

	// Follow-up destroys run outside the lock: each re-enters RemoveModule,
	// and Destroy is once-guarded, so the recursion terminates.
	if destroyInternal && internal != nil {
		internal.Destroy()
	}
	if destroySelf {
		a.Destroy()
	}
}

// Modules returns a snapshot of every owned module, internal included.
func (a *ApplicationModel) Modules() []*ModuleModel {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*ModuleModel, len(a.modules))
	copy(out, a.modules)
	return out
}

// PubModules returns a snapshot of the user-visible modules.
func (a *ApplicationModel) PubModules() []*ModuleModel {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*ModuleModel, len(a.pubModules))
	copy(out, a.pubModules)
	return out
}

// InternalModule returns the hidden internal module.
func (a *ApplicationModel) InternalModule() *ModuleModel {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.internalModule
}

// DefaultModule lazily resolves the module used when no module is specified:
// the first non-internal module, or a freshly created one if none exists.
// The returned module is stable until it is explicitly removed. Returns nil
// once the application is destroyed.
func (a *ApplicationModel) DefaultModule() *ModuleModel {
	a.mu.Lock()
	if a.defaultModule == nil {
		a.defaultModule = a.findDefaultLocked()
		if a.defaultModule == nil {
			m := newModuleModel(a)
			if !a.attachModuleLocked(m, false) {
				a.mu.Unlock()
				return nil
			}
			a.defaultModule = m
			a.mu.Unlock()
			m.finishInit()
			return m
		}
	}
	m := a.defaultModule
	a.mu.Unlock()
	return m
}

func (a *ApplicationModel) findDefaultLocked() *ModuleModel {
	for _, m := range a.modules {
		if m != a.internalModule {
			return m
		}
	}
	return nil
}

func (a *ApplicationModel) onDestroy() {
	// Snapshot before iterating: each module destroy detaches it, mutating
	// the module list.
	for _, m := range a.Modules() {
		m.Destroy()
	}

	if defaultApplication.Load() == a {
		defaultAppMu.Lock()
		if defaultApplication.Load() == a {
			defaultApplication.Store(nil)
		}
		defaultAppMu.Unlock()
	}

	a.framework.RemoveApplication(a)

	if a.repo != nil {
		a.repo.destroy()
	}
}

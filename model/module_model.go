package model

import "github.com/meshcall/meshcall/metrics"

const moduleTypeName = "ModuleModel"

// ModuleModel represents one service module inside an application. It owns a
// module-scoped service repository; on destroy it cascades disconnects to
// every referenced service and unexports to every exported service before
// detaching from its application.
type ModuleModel struct {
	ScopeModel

	app  *ApplicationModel
	repo *ModuleServiceRepository
}

// newModuleModel constructs an unattached module. The application attaches it
// and then calls finishInit; splitting construction this way keeps module
// registration under the application's single lock without re-entry.
func newModuleModel(app *ApplicationModel) *ModuleModel {
	m := &ModuleModel{app: app}
	m.initScope(ScopeModule, moduleTypeName, m)
	m.cascade = m.onDestroy
	return m
}

func (m *ModuleModel) finishInit() {
	if m.markInitialized() {
		m.repo = newModuleServiceRepository(m)
	}
}

// Application returns the owning application model. The back-reference is a
// lookup only; it never extends the application's lifetime.
func (m *ModuleModel) Application() *ApplicationModel { return m.app }

// ServiceRepository returns the module-scoped service repository.
func (m *ModuleModel) ServiceRepository() *ModuleServiceRepository { return m.repo }

// IsInternal reports whether this is the application's hidden module.
func (m *ModuleModel) IsInternal() bool {
	return m.app.InternalModule() == m
}

func (m *ModuleModel) onDestroy() {
	if m.repo != nil {
		// Teardown is best-effort and total: every callback runs, failures
		// are logged and never propagate.
		log := m.Logger()
		for _, consumer := range m.repo.ReferredServices() {
			if err := consumer.disconnect(); err != nil {
				log.WithError(err).WithField("service", consumer.ServiceKey).
					Error("unable to disconnect referred service")
				metrics.TeardownFailure(m.scope.String())
			}
		}
		for _, provider := range m.repo.ExportedServices() {
			if err := provider.unexport(); err != nil {
				log.WithError(err).WithField("service", provider.ServiceKey).
					Error("unable to unexport service")
				metrics.TeardownFailure(m.scope.String())
			}
		}
		m.repo.destroy()
	}

	// Detach only after all service callbacks ran.
	m.app.RemoveModule(m)
}

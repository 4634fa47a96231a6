// Package model implements the three-level ownership hierarchy of the
// meshcall runtime: FrameworkModel (process scope) owns ApplicationModels,
// each ApplicationModel owns ModuleModels. Every level shares the ScopeModel
// base, which carries extension resolution, typed attributes, loader
// bookkeeping, and the once-guarded initialize/destroy lifecycle.
package model

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/meshcall/meshcall/extension"
	"github.com/meshcall/meshcall/metrics"
	"github.com/meshcall/meshcall/pkg/logger"
)

// ExtensionScope aliases the extension package's scope enumeration so that
// embedding code only needs to import model.
type ExtensionScope = extension.Scope

// Re-exported scope levels.
const (
	ScopeProcess     = extension.ScopeProcess
	ScopeApplication = extension.ScopeApplication
	ScopeModule      = extension.ScopeModule
)

// AttrKey enumerates the known attribute slots on a scope model.
// The attribute store is keyed by this closed set, not by open strings.
type AttrKey string

const (
	// AttrDeployer - the application lifecycle collaborator handle.
	AttrDeployer AttrKey = "deployer"

	// AttrBindingContext - the embedding-layer binding context handle.
	AttrBindingContext AttrKey = "binding-context"
)

// Loader is an opaque handle for a bundle of extension resources associated
// with a scope model. Adding or removing one invalidates any environment
// view derived from the loader set.
type Loader struct {
	Name       string
	Properties map[string]string
}

// DestroyListener is notified when the owning scope model is destroyed.
// A returned error is logged and never aborts the cascade.
type DestroyListener func() error

// ScopeModel is the base of every ownership unit. It is embedded by
// FrameworkModel, ApplicationModel and ModuleModel and is not used on its own.
type ScopeModel struct {
	scope      extension.Scope
	instanceID string
	log        *logger.Logger
	directory  *extension.Directory

	mu           sync.Mutex
	internalID   string
	internalName string
	attributes   map[AttrKey]any
	loaders      map[string]Loader
	listeners    []DestroyListener
	initialized  bool
	destroyed    bool

	// cascade runs the owning model's teardown before destroy listeners fire.
	cascade func()
}

// initScope wires the base state. host is the outer model so that extension
// factories observe the concrete scope, not the embedded base.
func (s *ScopeModel) initScope(scope extension.Scope, typeName string, host extension.Host) {
	s.scope = scope
	s.instanceID = uuid.NewString()
	s.internalName = typeName
	s.log = logger.NewDefault(typeName)
	s.directory = extension.NewDirectory(host)
	s.attributes = make(map[AttrKey]any)
	s.loaders = make(map[string]Loader)
}

// markInitialized flips the init guard. Returns false if init already ran, so
// constructors run their init logic exactly once.
func (s *ScopeModel) markInitialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return false
	}
	s.initialized = true
	return true
}

// setInternalIdentity assigns the hierarchical id and display name.
// Called by the parent model while attaching.
func (s *ScopeModel) setInternalIdentity(id, name string) {
	s.mu.Lock()
	s.internalID = id
	s.internalName = name
	s.log = s.log.WithField("scope_id", id)
	s.mu.Unlock()
}

// InstanceID returns the unique identity of this scope model instance.
func (s *ScopeModel) InstanceID() string { return s.instanceID }

// InternalID returns the hierarchical index id, e.g. "1.0.2".
func (s *ScopeModel) InternalID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.internalID
}

// InternalName returns the display name, e.g. "ModuleModel-1.0.2".
func (s *ScopeModel) InternalName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.internalName
}

// ExtensionScope returns the resolution scope of this model.
func (s *ScopeModel) ExtensionScope() extension.Scope { return s.scope }

// ExtensionDirectory returns the per-instance extension directory.
func (s *ScopeModel) ExtensionDirectory() *extension.Directory { return s.directory }

// Extension resolves a named extension for this model's scope.
func (s *ScopeModel) Extension(name string) (any, error) {
	return s.directory.Extension(name)
}

// Logger returns the scope model's logger.
func (s *ScopeModel) Logger() *logger.Logger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log
}

// SetAttribute stores a value in the typed attribute slot.
// Fails once the model is destroyed.
func (s *ScopeModel) SetAttribute(key AttrKey, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return NewIllegalStateError("set attribute", fmt.Sprintf("%s is destroyed", s.internalName))
	}
	s.attributes[key] = value
	return nil
}

// Attribute returns the value stored for the key, if any.
func (s *ScopeModel) Attribute(key AttrKey) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.attributes[key]
	return v, ok
}

// AddLoader associates a loader with the model and refreshes a materialized
// environment. Fails once the model is destroyed.
func (s *ScopeModel) AddLoader(l Loader) error {
	if l.Name == "" {
		return RequiredError("loader name")
	}
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return NewIllegalStateError("add loader", fmt.Sprintf("%s is destroyed", s.internalName))
	}
	s.loaders[l.Name] = l
	s.mu.Unlock()

	s.refreshEnvironment()
	return nil
}

// RemoveLoader detaches a loader and refreshes a materialized environment.
func (s *ScopeModel) RemoveLoader(name string) {
	s.mu.Lock()
	_, ok := s.loaders[name]
	delete(s.loaders, name)
	s.mu.Unlock()

	if ok {
		s.refreshEnvironment()
	}
}

// Loaders returns a snapshot of the associated loaders.
func (s *ScopeModel) Loaders() []Loader {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Loader, 0, len(s.loaders))
	for _, l := range s.loaders {
		out = append(out, l)
	}
	return out
}

// refreshEnvironment pokes the environment extension only if it has already
// been materialized; it is never constructed just to be refreshed.
func (s *ScopeModel) refreshEnvironment() {
	if inst, ok := s.directory.Cached(ExtensionEnvironment); ok {
		if r, ok := inst.(extension.Refresher); ok {
			r.Refresh()
		}
	}
}

// AddDestroyListener registers a callback fired once when the model is
// destroyed. Registration after destroy is rejected.
func (s *ScopeModel) AddDestroyListener(listener DestroyListener) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return NewIllegalStateError("add destroy listener", fmt.Sprintf("%s is destroyed", s.internalName))
	}
	s.listeners = append(s.listeners, listener)
	return nil
}

// IsDestroyed reports whether the destroy cascade has run.
func (s *ScopeModel) IsDestroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed
}

// Destroy runs the owning model's teardown cascade, notifies destroy
// listeners, and releases the extension directory. It runs at most once;
// re-entrant calls from within the cascade are no-ops. Destroy never fails:
// child failures are logged and isolated.
func (s *ScopeModel) Destroy() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.destroyed = true
	cascade := s.cascade
	log := s.log
	listeners := make([]DestroyListener, len(s.listeners))
	copy(listeners, s.listeners)
	s.listeners = nil
	s.mu.Unlock()

	if cascade != nil {
		cascade()
	}

	for _, listener := range listeners {
		if err := listener(); err != nil {
			log.WithError(err).Warn("destroy listener failed")
			metrics.TeardownFailure(s.scope.String())
		}
	}

	s.directory.Destroy()
	metrics.ScopeDestroyed(s.scope.String())
}

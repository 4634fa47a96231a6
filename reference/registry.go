// Package reference tracks declared service references for one module,
// deduplicates them by a canonical reference key, and realizes each distinct
// key into at most one built consumer handle.
package reference

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/meshcall/meshcall/config"
	"github.com/meshcall/meshcall/metrics"
	"github.com/meshcall/meshcall/model"
	"github.com/meshcall/meshcall/pkg/logger"
)

// Builder turns a reference declaration into a live consumer handle. The
// default builder produces an unconnected Handle; transports install their
// own.
type Builder func(cfg *config.ReferenceConfig) (any, error)

// Handle is the placeholder consumer produced by the default builder.
type Handle struct {
	Key       string
	Interface string
}

// Declaration is one named reference registration.
type Declaration struct {
	Name   string
	Key    string
	Config *config.ReferenceConfig
}

// BuiltReference is the realized form of one reference key.
type BuiltReference struct {
	Key    string
	Config *config.ReferenceConfig
	Target any
}

// Registry owns the reference declarations of one module.
//
// Declarations accumulate until PrepareReferences flips the registry ready
// and realizes them in registration order; declarations arriving after that
// are realized immediately. Multiple names may share one key, but each key
// is built at most once.
type Registry struct {
	module *model.ModuleModel
	build  Builder
	log    *logger.Logger

	mu           sync.Mutex
	ready        bool
	destroyed    bool
	order        []string
	declarations map[string]*Declaration
	aliases      map[string]string
	keyNames     map[string][]string
	built        map[string]*BuiltReference
}

// NewRegistry creates a registry for the given module. A nil builder falls
// back to unconnected Handle construction.
func NewRegistry(m *model.ModuleModel, build Builder) *Registry {
	if build == nil {
		build = func(cfg *config.ReferenceConfig) (any, error) {
			return &Handle{Key: ComputeKey(cfg), Interface: cfg.Interface}, nil
		}
	}
	return &Registry{
		module:       m,
		build:        build,
		log:          logger.NewDefault("ReferenceRegistry").WithField("module", m.InternalName()),
		declarations: make(map[string]*Declaration),
		aliases:      make(map[string]string),
		keyNames:     make(map[string][]string),
		built:        make(map[string]*BuiltReference),
	}
}

// ComputeKey derives the canonical dedup key for a reference declaration:
// the service key, the protocol if set, and the identity parameters in
// sorted order. Equal keys mean the declarations resolve to the same remote
// service and may share one built reference.
func ComputeKey(cfg *config.ReferenceConfig) string {
	var sb strings.Builder
	sb.WriteString(model.ServiceKey(cfg.Interface, cfg.Group, cfg.Version))
	if cfg.Protocol != "" {
		sb.WriteString("@")
		sb.WriteString(cfg.Protocol)
	}
	if len(cfg.Parameters) > 0 {
		keys := make([]string, 0, len(cfg.Parameters))
		for k := range cfg.Parameters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sep := "?"
		for _, k := range keys {
			fmt.Fprintf(&sb, "%s%s=%s", sep, k, cfg.Parameters[k])
			sep = "&"
		}
	}
	return sb.String()
}

// Module returns the owning module.
func (r *Registry) Module() *model.ModuleModel { return r.module }

// AddReference registers one named declaration.
//
// Re-registering the same declaration instance under the same name is an
// accepted no-op. A different instance under an existing name is rejected
// with both keys in the error. If the registry is already prepared the
// declaration is realized before returning.
func (r *Registry) AddReference(name string, cfg *config.ReferenceConfig) error {
	if name == "" {
		metrics.ReferenceRegistered("rejected")
		return model.RequiredError("reference name")
	}
	if cfg == nil {
		metrics.ReferenceRegistered("rejected")
		return model.RequiredError("reference config")
	}
	if cfg.Interface == "" {
		metrics.ReferenceRegistered("rejected")
		return model.RequiredError("reference interface")
	}

	key := ComputeKey(cfg)

	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		metrics.ReferenceRegistered("rejected")
		return model.NewIllegalStateError("reference-registry", "registry destroyed")
	}
	if old, ok := r.declarations[name]; ok {
		r.mu.Unlock()
		if old.Config == cfg {
			metrics.ReferenceRegistered("idempotent")
			return nil
		}
		metrics.ReferenceRegistered("rejected")
		return model.NewDuplicateIdentifierError(name, old.Key, key)
	}
	if _, ok := r.aliases[name]; ok {
		existingKey := r.canonicalKeyLocked(name)
		r.mu.Unlock()
		metrics.ReferenceRegistered("rejected")
		return model.NewDuplicateIdentifierError(name, existingKey, key)
	}

	d := &Declaration{Name: name, Key: key, Config: cfg}
	r.declarations[name] = d
	r.order = append(r.order, name)
	r.keyNames[key] = append(r.keyNames[key], name)
	// The first name registered for a key is its canonical name; every later
	// name for the same key resolves to it.
	if first := r.keyNames[key][0]; first != name {
		r.aliases[name] = first
	}
	ready := r.ready

	var err error
	if ready {
		r.log.WithField("name", name).Warnf("late reference registration, realizing eagerly: %s", key)
		err = r.realizeLocked(d)
	}
	r.mu.Unlock()

	if err != nil {
		metrics.ReferenceRegistered("rejected")
		return err
	}
	metrics.ReferenceRegistered("new")
	return nil
}

// AddAlias maps an alternate name onto an existing declaration name.
func (r *Registry) AddAlias(alias, name string) error {
	if alias == "" {
		return model.RequiredError("reference alias")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	canonical := r.resolveLocked(name)
	if _, ok := r.declarations[canonical]; !ok {
		return model.NewIllegalStateError("reference-registry", fmt.Sprintf("no reference named %q to alias", name))
	}
	if _, ok := r.declarations[alias]; ok {
		return model.NewDuplicateIdentifierError(alias, r.declarations[alias].Key, r.declarations[canonical].Key)
	}
	if existing, ok := r.aliases[alias]; ok {
		if existing == canonical {
			return nil
		}
		return model.NewDuplicateIdentifierError(alias, r.declarations[existing].Key, r.declarations[canonical].Key)
	}
	r.aliases[alias] = canonical
	metrics.ReferenceRegistered("aliased")
	return nil
}

// PrepareReferences flips the registry ready and realizes every declaration
// in registration order. The first realization failure aborts and is
// returned; already realized keys are unaffected. Idempotent once all keys
// are built.
func (r *Registry) PrepareReferences() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return model.NewIllegalStateError("reference-registry", "registry destroyed")
	}
	r.ready = true
	for _, name := range r.order {
		if err := r.realizeLocked(r.declarations[name]); err != nil {
			return err
		}
	}
	return nil
}

// IsReady reports whether PrepareReferences has run.
func (r *Registry) IsReady() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready
}

// realizeLocked builds the declaration's key once and records the resulting
// consumer in the module repository. Callers hold r.mu, which serializes
// all realization.
func (r *Registry) realizeLocked(d *Declaration) error {
	if _, ok := r.built[d.Key]; ok {
		return nil
	}
	target, err := r.build(d.Config)
	if err != nil {
		return fmt.Errorf("realize reference %q (%s): %w", d.Name, d.Key, err)
	}
	br := &BuiltReference{Key: d.Key, Config: d.Config, Target: target}
	r.built[d.Key] = br

	key := d.Key
	consumer := &model.ConsumerService{
		ServiceKey: model.ServiceKey(d.Config.Interface, d.Config.Group, d.Config.Version),
		Interface:  d.Config.Interface,
		Group:      d.Config.Group,
		Version:    d.Config.Version,
		Disconnect: func() error {
			r.release(key)
			return nil
		},
	}
	if err := r.module.ServiceRepository().RegisterConsumer(consumer); err != nil {
		return err
	}
	r.log.Infof("realized reference %s", d.Key)
	metrics.ReferenceRealized()
	return nil
}

// release drops the built entry for a key; a later realization rebuilds it.
func (r *Registry) release(key string) {
	r.mu.Lock()
	delete(r.built, key)
	r.mu.Unlock()
}

// GetByID returns the declaration registered under the given name or alias.
func (r *Registry) GetByID(name string) (*Declaration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.declarations[r.resolveLocked(name)]
	return d, ok
}

// Built returns the realized form of a reference key, if built.
func (r *Registry) Built(key string) (*BuiltReference, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	br, ok := r.built[key]
	return br, ok
}

// NamesByKey returns every declaration name sharing one reference key, in
// registration order.
func (r *Registry) NamesByKey(key string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := r.keyNames[key]
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// References returns every declaration in registration order.
func (r *Registry) References() []*Declaration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Declaration, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.declarations[name])
	}
	return out
}

// Destroy drops all state and rejects further registration.
func (r *Registry) Destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return
	}
	r.destroyed = true
	r.declarations = make(map[string]*Declaration)
	r.aliases = make(map[string]string)
	r.keyNames = make(map[string][]string)
	r.built = make(map[string]*BuiltReference)
	r.order = nil
}

func (r *Registry) resolveLocked(name string) string {
	if canonical, ok := r.aliases[name]; ok {
		return canonical
	}
	return name
}

func (r *Registry) canonicalKeyLocked(name string) string {
	if canonical, ok := r.aliases[name]; ok {
		if d, ok := r.declarations[canonical]; ok {
			return d.Key
		}
	}
	return ""
}

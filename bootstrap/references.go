package bootstrap

import (
	"fmt"

	"github.com/meshcall/meshcall/config"
	"github.com/meshcall/meshcall/model"
	"github.com/meshcall/meshcall/reference"
)

// ReferenceRegistryOf returns the reference registry for a module, creating
// it on first access. One registry exists per module for the lifetime of the
// facade.
func (b *Bootstrap) ReferenceRegistryOf(m *model.ModuleModel) *reference.Registry {
	b.refMu.Lock()
	defer b.refMu.Unlock()
	if r, ok := b.refRegistries[m]; ok {
		return r
	}
	r := reference.NewRegistry(m, b.refBuilder)
	b.refRegistries[m] = r
	return r
}

// WithReferenceBuilder installs the builder used for registries created after
// this call. Transports install theirs before any reference is realized.
func (b *Bootstrap) WithReferenceBuilder(build reference.Builder) *Bootstrap {
	b.refMu.Lock()
	b.refBuilder = build
	b.refMu.Unlock()
	return b
}

// RealizeReferences feeds every accumulated reference declaration into its
// module's registry and flips the registries ready, so each distinct key is
// built exactly once. Deployers call this between Initialize and Start; it is
// safe to call again after late declarations.
func (b *Bootstrap) RealizeReferences() error {
	if err := b.Err(); err != nil {
		return err
	}
	for _, m := range b.app.PubModules() {
		mgr, err := config.ModuleManagerOf(m)
		if err != nil {
			return err
		}
		r := b.ReferenceRegistryOf(m)
		for i, cfg := range mgr.References() {
			name := cfg.ID
			if name == "" {
				name = fmt.Sprintf("%s#%d", cfg.ServiceKey(), i)
			}
			if err := r.AddReference(name, cfg); err != nil {
				return err
			}
		}
		if err := r.PrepareReferences(); err != nil {
			return err
		}
	}
	return nil
}

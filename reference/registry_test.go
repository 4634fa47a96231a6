package reference

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshcall/meshcall/config"
	"github.com/meshcall/meshcall/metrics"
	"github.com/meshcall/meshcall/model"
)

func newTestModule(t *testing.T) *model.ModuleModel {
	t.Helper()
	fw := model.NewFrameworkModel()
	t.Cleanup(fw.Destroy)
	return model.NewApplicationModel(fw).NewModule()
}

func greeterConfig() *config.ReferenceConfig {
	return &config.ReferenceConfig{Interface: "demo.Greeter", Group: "eu", Version: "1.0"}
}

func TestComputeKey(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.ReferenceConfig
		want string
	}{
		{
			name: "bare interface",
			cfg:  &config.ReferenceConfig{Interface: "demo.Greeter"},
			want: "demo.Greeter",
		},
		{
			name: "group version protocol",
			cfg:  &config.ReferenceConfig{Interface: "demo.Greeter", Group: "eu", Version: "1.0", Protocol: "tri"},
			want: "eu/demo.Greeter:1.0@tri",
		},
		{
			name: "parameters sorted",
			cfg: &config.ReferenceConfig{
				Interface:  "demo.Greeter",
				Parameters: map[string]string{"serialization": "json", "cluster": "failover"},
			},
			want: "demo.Greeter?cluster=failover&serialization=json",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeKey(tt.cfg))
		})
	}
}

func TestComputeKeyIsDeterministic(t *testing.T) {
	cfg := &config.ReferenceConfig{
		Interface:  "demo.Greeter",
		Parameters: map[string]string{"a": "1", "b": "2", "c": "3", "d": "4"},
	}
	first := ComputeKey(cfg)
	for i := 0; i < 50; i++ {
		require.Equal(t, first, ComputeKey(cfg))
	}
}

func TestAddReferenceValidation(t *testing.T) {
	r := NewRegistry(newTestModule(t), nil)

	assert.True(t, model.IsInvalidArgument(r.AddReference("", greeterConfig())))
	assert.True(t, model.IsInvalidArgument(r.AddReference("greeter", nil)))
	assert.True(t, model.IsInvalidArgument(r.AddReference("greeter", &config.ReferenceConfig{})))
}

func TestAddReferenceIdempotentForSameInstance(t *testing.T) {
	r := NewRegistry(newTestModule(t), nil)
	cfg := greeterConfig()

	require.NoError(t, r.AddReference("greeter", cfg))
	require.NoError(t, r.AddReference("greeter", cfg))

	assert.Len(t, r.References(), 1)
}

func TestAddReferenceRejectsDifferentInstanceUnderSameName(t *testing.T) {
	r := NewRegistry(newTestModule(t), nil)

	require.NoError(t, r.AddReference("greeter", greeterConfig()))
	other := &config.ReferenceConfig{Interface: "demo.Clock"}
	err := r.AddReference("greeter", other)

	require.Error(t, err)
	assert.True(t, model.IsDuplicateIdentifier(err))
	// Both conflicting keys appear in the message so the collision is diagnosable.
	assert.Contains(t, err.Error(), "eu/demo.Greeter:1.0")
	assert.Contains(t, err.Error(), "demo.Clock")
}

func TestSameKeyUnderTwoNamesSharesOneBuild(t *testing.T) {
	m := newTestModule(t)
	builds := 0
	r := NewRegistry(m, func(cfg *config.ReferenceConfig) (any, error) {
		builds++
		return &Handle{Key: ComputeKey(cfg)}, nil
	})

	cfgA := greeterConfig()
	cfgB := greeterConfig()
	require.NoError(t, r.AddReference("greeter-a", cfgA))
	require.NoError(t, r.AddReference("greeter-b", cfgB))
	require.NoError(t, r.PrepareReferences())

	assert.Equal(t, 1, builds)
	key := ComputeKey(cfgA)
	assert.Equal(t, []string{"greeter-a", "greeter-b"}, r.NamesByKey(key))

	built, ok := r.Built(key)
	require.True(t, ok)
	assert.Equal(t, key, built.Key)

	// Exactly one consumer entry lands in the module repository.
	assert.Len(t, m.ServiceRepository().ReferredServices(), 1)
}

func TestLaterNameForSameKeyResolvesToFirst(t *testing.T) {
	r := NewRegistry(newTestModule(t), nil)

	require.NoError(t, r.AddReference("greeter-a", greeterConfig()))
	require.NoError(t, r.AddReference("greeter-b", greeterConfig()))

	// The first name for a key is canonical; later names resolve to it.
	d, ok := r.GetByID("greeter-b")
	require.True(t, ok)
	assert.Equal(t, "greeter-a", d.Name)

	d, ok = r.GetByID("greeter-a")
	require.True(t, ok)
	assert.Equal(t, "greeter-a", d.Name)

	// A distinct key keeps its own name.
	clock := &config.ReferenceConfig{Interface: "demo.Clock"}
	require.NoError(t, r.AddReference("clock", clock))
	d, ok = r.GetByID("clock")
	require.True(t, ok)
	assert.Equal(t, "clock", d.Name)
}

func TestPrepareReferencesRealizesInRegistrationOrder(t *testing.T) {
	var order []string
	r := NewRegistry(newTestModule(t), func(cfg *config.ReferenceConfig) (any, error) {
		order = append(order, cfg.Interface)
		return &Handle{Interface: cfg.Interface}, nil
	})

	require.NoError(t, r.AddReference("c", &config.ReferenceConfig{Interface: "demo.C"}))
	require.NoError(t, r.AddReference("a", &config.ReferenceConfig{Interface: "demo.A"}))
	require.NoError(t, r.AddReference("b", &config.ReferenceConfig{Interface: "demo.B"}))
	require.NoError(t, r.PrepareReferences())

	assert.Equal(t, []string{"demo.C", "demo.A", "demo.B"}, order)
	assert.True(t, r.IsReady())
}

func TestLateRegistrationRealizesEagerly(t *testing.T) {
	builds := 0
	r := NewRegistry(newTestModule(t), func(cfg *config.ReferenceConfig) (any, error) {
		builds++
		return &Handle{}, nil
	})
	require.NoError(t, r.PrepareReferences())

	require.NoError(t, r.AddReference("late", greeterConfig()))

	assert.Equal(t, 1, builds)
	_, ok := r.Built(ComputeKey(greeterConfig()))
	assert.True(t, ok)
}

func TestBuilderFailureSurfacesFromPrepare(t *testing.T) {
	boom := errors.New("no route to registry")
	r := NewRegistry(newTestModule(t), func(cfg *config.ReferenceConfig) (any, error) {
		return nil, boom
	})
	require.NoError(t, r.AddReference("greeter", greeterConfig()))

	err := r.PrepareReferences()
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	_, ok := r.Built(ComputeKey(greeterConfig()))
	assert.False(t, ok)
}

// registrationCount reads the registrations counter for one outcome label
// from the shared metrics registry.
func registrationCount(t *testing.T, outcome string) float64 {
	t.Helper()
	families, err := metrics.Registry.Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() != "meshcall_references_registrations_total" {
			continue
		}
		for _, m := range fam.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "outcome" && l.GetValue() == outcome {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestLateFailingRegistrationCountsAsRejected(t *testing.T) {
	r := NewRegistry(newTestModule(t), func(cfg *config.ReferenceConfig) (any, error) {
		return nil, errors.New("no route to registry")
	})
	require.NoError(t, r.PrepareReferences())

	newBefore := registrationCount(t, "new")
	rejectedBefore := registrationCount(t, "rejected")

	require.Error(t, r.AddReference("greeter", greeterConfig()))

	assert.Equal(t, newBefore, registrationCount(t, "new"))
	assert.Equal(t, rejectedBefore+1, registrationCount(t, "rejected"))
}

func TestAliases(t *testing.T) {
	r := NewRegistry(newTestModule(t), nil)
	cfg := greeterConfig()
	require.NoError(t, r.AddReference("greeter", cfg))

	require.NoError(t, r.AddAlias("greeterService", "greeter"))
	require.NoError(t, r.AddAlias("greeterService", "greeter")) // idempotent

	d, ok := r.GetByID("greeterService")
	require.True(t, ok)
	assert.Same(t, cfg, d.Config)

	// Aliasing an unknown target fails; so does shadowing a declaration name.
	assert.True(t, model.IsIllegalState(r.AddAlias("x", "missing")))
	assert.True(t, model.IsInvalidArgument(r.AddAlias("", "greeter")))
	assert.True(t, model.IsDuplicateIdentifier(r.AddAlias("greeter", "greeter")))

	// A declaration may not reuse an alias name.
	err := r.AddReference("greeterService", greeterConfig())
	assert.True(t, model.IsDuplicateIdentifier(err))
}

func TestConcurrentSameKeyRegistrationBuildsOnce(t *testing.T) {
	m := newTestModule(t)
	var builds atomic.Int32
	r := NewRegistry(m, func(cfg *config.ReferenceConfig) (any, error) {
		builds.Add(1)
		return &Handle{Key: ComputeKey(cfg)}, nil
	})
	require.NoError(t, r.PrepareReferences())

	const goroutines = 16
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := "greeter-" + string(rune('a'+i))
			_ = r.AddReference(name, greeterConfig())
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), builds.Load())
	assert.Len(t, m.ServiceRepository().ReferredServices(), 1)
	assert.Len(t, r.NamesByKey(ComputeKey(greeterConfig())), goroutines)
}

func TestModuleDestroyReleasesBuiltReferences(t *testing.T) {
	fw := model.NewFrameworkModel()
	t.Cleanup(fw.Destroy)
	app := model.NewApplicationModel(fw)
	app.NewModule() // keeper
	m := app.NewModule()

	r := NewRegistry(m, nil)
	require.NoError(t, r.AddReference("greeter", greeterConfig()))
	require.NoError(t, r.PrepareReferences())

	key := ComputeKey(greeterConfig())
	_, ok := r.Built(key)
	require.True(t, ok)

	m.Destroy()

	_, ok = r.Built(key)
	assert.False(t, ok, "built reference survived module destroy")
}

func TestRegistryDestroyRejectsFurtherUse(t *testing.T) {
	r := NewRegistry(newTestModule(t), nil)
	require.NoError(t, r.AddReference("greeter", greeterConfig()))

	r.Destroy()
	r.Destroy() // idempotent

	assert.True(t, model.IsIllegalState(r.AddReference("late", greeterConfig())))
	assert.True(t, model.IsIllegalState(r.PrepareReferences()))
	assert.Empty(t, r.References())
}

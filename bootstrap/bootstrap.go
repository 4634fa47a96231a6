// Package bootstrap exposes the facade embedding code uses to configure and
// run one meshcall application: fluent configuration accumulation, the
// process-default singleton, and the initialize/start/await/stop protocol.
//
// The facade aggregates configuration and signals lifecycle transitions; the
// actual startup and shutdown sequencing lives in the injected Deployer.
package bootstrap

import (
	"sync"
	"sync/atomic"

	"github.com/meshcall/meshcall/config"
	"github.com/meshcall/meshcall/model"
	"github.com/meshcall/meshcall/pkg/logger"
	"github.com/meshcall/meshcall/reference"
)

// TakeoverMode states whether the facade drives start/stop autonomously in
// response to framework signals, or waits for explicit caller-driven calls.
// The facade records it; the deployer consults it.
type TakeoverMode int

const (
	// TakeoverAuto - the facade drives start/stop.
	TakeoverAuto TakeoverMode = iota
	// TakeoverManual - the caller drives start/stop.
	TakeoverManual
)

func (m TakeoverMode) String() string {
	switch m {
	case TakeoverAuto:
		return "auto"
	case TakeoverManual:
		return "manual"
	default:
		return "unknown"
	}
}

var (
	instanceMu sync.Mutex
	instance   atomic.Pointer[Bootstrap]
)

// Bootstrap is the per-application facade. Obtain the process default via
// GetInstance, or build isolated instances via the NewInstance variants.
//
// Fluent methods record the first error they hit and keep chaining; the
// recorded error surfaces from Err and from the next lifecycle call.
type Bootstrap struct {
	app       *model.ApplicationModel
	configMgr *config.ConfigManager
	env       *config.Environment
	log       *logger.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	awaited bool

	takeoverMu sync.Mutex
	takeover   TakeoverMode

	refMu         sync.Mutex
	refBuilder    reference.Builder
	refRegistries map[*model.ModuleModel]*reference.Registry

	errMu sync.Mutex
	err   error
}

// GetInstance returns the process-default facade, creating it together with
// the default application on first access. At most one default instance
// exists even under concurrent first access; steady-state reads are
// lock-free.
func GetInstance() *Bootstrap {
	if b := instance.Load(); b != nil {
		return b
	}
	instanceMu.Lock()
	defer instanceMu.Unlock()
	if b := instance.Load(); b != nil {
		return b
	}
	b, err := NewInstanceFor(model.DefaultApplication())
	if err != nil {
		// Config extensions register at package init; resolution against a
		// fresh default application cannot fail.
		panic(err)
	}
	instance.Store(b)
	return b
}

// NewInstance creates a non-singleton facade bound to a fresh application on
// the default framework.
func NewInstance() (*Bootstrap, error) {
	return NewInstanceFor(model.NewApplicationModel(nil))
}

// NewInstanceIn creates a non-singleton facade bound to a fresh application
// on the given framework. Used for multi-framework test isolation.
func NewInstanceIn(fw *model.FrameworkModel) (*Bootstrap, error) {
	return NewInstanceFor(model.NewApplicationModel(fw))
}

// NewInstanceFor creates a non-singleton facade bound to an existing
// application model.
func NewInstanceFor(app *model.ApplicationModel) (*Bootstrap, error) {
	if app == nil {
		return nil, model.RequiredError("application model")
	}
	configMgr, err := config.ManagerOf(app)
	if err != nil {
		return nil, err
	}
	env, err := config.EnvironmentOf(app)
	if err != nil {
		return nil, err
	}

	b := &Bootstrap{
		app:           app,
		configMgr:     configMgr,
		env:           env,
		log:           logger.NewDefault("Bootstrap").WithField("application", app.InternalName()),
		takeover:      TakeoverAuto,
		refRegistries: make(map[*model.ModuleModel]*reference.Registry),
	}
	b.cond = sync.NewCond(&b.mu)
	return b, nil
}

// Reset clears the process-default facade. With destroy set it also tears
// down the default application and every framework instance.
// Intended for test isolation.
func Reset(destroy bool) {
	instanceMu.Lock()
	b := instance.Load()
	instance.Store(nil)
	instanceMu.Unlock()

	if destroy {
		if b != nil {
			b.Destroy()
		}
		model.ResetDefaultApplication()
		model.DestroyAllFrameworks()
	}
}

// ApplicationModel returns the facade's application.
func (b *Bootstrap) ApplicationModel() *model.ApplicationModel { return b.app }

// ConfigManager returns the application-scope config manager.
func (b *Bootstrap) ConfigManager() *config.ConfigManager { return b.configMgr }

// Environment returns the application environment.
func (b *Bootstrap) Environment() *config.Environment { return b.env }

// DefaultModule returns the application's default module.
func (b *Bootstrap) DefaultModule() *model.ModuleModel { return b.app.DefaultModule() }

// SetTakeoverMode records who owns start/stop sequencing.
func (b *Bootstrap) SetTakeoverMode(mode TakeoverMode) {
	b.takeoverMu.Lock()
	b.takeover = mode
	b.takeoverMu.Unlock()
}

// TakeoverMode returns the recorded takeover mode.
func (b *Bootstrap) TakeoverMode() TakeoverMode {
	b.takeoverMu.Lock()
	defer b.takeoverMu.Unlock()
	return b.takeover
}

// Err returns the first error recorded by a fluent configuration call.
func (b *Bootstrap) Err() error {
	b.errMu.Lock()
	defer b.errMu.Unlock()
	return b.err
}

func (b *Bootstrap) recordErr(err error) {
	if err == nil {
		return
	}
	b.log.WithError(err).Error("configuration rejected")
	b.errMu.Lock()
	if b.err == nil {
		b.err = err
	}
	b.errMu.Unlock()
}

// --- Lifecycle ---

func (b *Bootstrap) deployer() (model.Deployer, error) {
	if err := b.Err(); err != nil {
		return nil, err
	}
	d := b.app.Deployer()
	if d == nil {
		return nil, model.NewIllegalStateError("bootstrap", "no deployer installed on "+b.app.InternalName())
	}
	return d, nil
}

// WithDeployer installs the application lifecycle collaborator.
func (b *Bootstrap) WithDeployer(d model.Deployer) *Bootstrap {
	b.recordErr(b.app.SetDeployer(d))
	return b
}

// Initialize delegates to the deployer.
func (b *Bootstrap) Initialize() error {
	d, err := b.deployer()
	if err != nil {
		return err
	}
	return d.Initialize()
}

// Start delegates to the deployer.
func (b *Bootstrap) Start() error {
	d, err := b.deployer()
	if err != nil {
		return err
	}
	return d.Start()
}

// PrepareApplicationInstance delegates instance registration readiness to the
// deployer.
func (b *Bootstrap) PrepareApplicationInstance() error {
	d, err := b.deployer()
	if err != nil {
		return err
	}
	return d.PrepareApplicationInstance()
}

// Stop shuts the application down.
func (b *Bootstrap) Stop() error {
	b.Destroy()
	return nil
}

// Destroy delegates teardown to the deployer, if one is installed.
func (b *Bootstrap) Destroy() {
	if d := b.app.Deployer(); d != nil {
		d.Destroy()
	}
}

// IsInitialized reports the deployer's initialized state.
func (b *Bootstrap) IsInitialized() bool {
	d := b.app.Deployer()
	return d != nil && d.IsInitialized()
}

// IsStarted reports the deployer's started state.
func (b *Bootstrap) IsStarted() bool {
	d := b.app.Deployer()
	return d != nil && d.IsStarted()
}

// IsStartup reports the deployer's startup-complete state.
func (b *Bootstrap) IsStartup() bool {
	d := b.app.Deployer()
	return d != nil && d.IsStartup()
}

// IsShutdown reports the deployer's shutdown state.
func (b *Bootstrap) IsShutdown() bool {
	d := b.app.Deployer()
	return d != nil && d.IsShutdown()
}

// Await blocks the calling goroutine until ReleaseAwait is called. If the
// release flag is already set, or shutdown has already happened, it returns
// immediately. The flag is monotonic: once set, every current and future
// Await returns at once. The wait is deliberately not cancellable; callers
// needing a cancellable wait must layer it externally.
func (b *Bootstrap) Await() {
	b.mu.Lock()
	if b.awaited {
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	if b.IsShutdown() {
		return
	}

	b.mu.Lock()
	for !b.awaited {
		b.log.Info("awaiting ...")
		b.cond.Wait()
	}
	b.mu.Unlock()
}

// ReleaseAwait sets the monotonic release flag and wakes every waiter.
func (b *Bootstrap) ReleaseAwait() {
	b.mu.Lock()
	b.awaited = true
	b.cond.Broadcast()
	b.mu.Unlock()
}

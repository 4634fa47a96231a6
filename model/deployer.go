package model

// Deployer is the application lifecycle collaborator: it initializes and
// starts an application instance. The runtime core signals it and queries its
// state; the actual startup and shutdown sequencing lives behind it.
type Deployer interface {
	Initialize() error

	Start() error

	// PrepareApplicationInstance readies the application for registration
	// with discovery infrastructure before serving.
	PrepareApplicationInstance() error

	Destroy()

	IsInitialized() bool

	IsStarted() bool

	// IsStartup reports whether startup completed, including deferred parts.
	IsStartup() bool

	IsShutdown() bool
}

package model

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/meshcall/meshcall/metrics"
)

const frameworkTypeName = "FrameworkModel"

var (
	frameworkIndex atomic.Int64

	globalMu         sync.Mutex
	defaultFramework atomic.Pointer[FrameworkModel]
	allFrameworks    []*FrameworkModel
)

// FrameworkModel is the process-scope root of the ownership hierarchy.
// It tracks every ApplicationModel created against it and supplies the
// process-level extension resolution scope.
//
// The process default instance is shared; explicit instances exist for
// multi-framework setups such as test isolation.
type FrameworkModel struct {
	ScopeModel

	mu           sync.Mutex
	applications []*ApplicationModel
	appIndex     int64
}

// DefaultFramework returns the process-wide framework instance, creating it
// on first access. Steady-state access is lock-free.
func DefaultFramework() *FrameworkModel {
	if fw := defaultFramework.Load(); fw != nil {
		return fw
	}
	globalMu.Lock()
	defer globalMu.Unlock()
	if fw := defaultFramework.Load(); fw != nil {
		return fw
	}
	fw := NewFrameworkModel()
	defaultFramework.Store(fw)
	return fw
}

// NewFrameworkModel creates a fresh, non-default framework instance.
func NewFrameworkModel() *FrameworkModel {
	fw := &FrameworkModel{}
	fw.initScope(ScopeProcess, frameworkTypeName, fw)
	fw.cascade = fw.onDestroy

	id := fmt.Sprintf("%d", frameworkIndex.Add(1))
	fw.setInternalIdentity(id, fmt.Sprintf("%s-%s", frameworkTypeName, id))

	if fw.markInitialized() {
		globalMu.Lock()
		allFrameworks = append(allFrameworks, fw)
		globalMu.Unlock()
	}
	return fw
}

// AllFrameworks returns a snapshot of every live framework instance.
func AllFrameworks() []*FrameworkModel {
	globalMu.Lock()
	defer globalMu.Unlock()
	out := make([]*FrameworkModel, len(allFrameworks))
	copy(out, allFrameworks)
	return out
}

// DestroyAllFrameworks tears down every framework instance.
// Intended for test isolation and process shutdown.
func DestroyAllFrameworks() {
	for _, fw := range AllFrameworks() {
		fw.Destroy()
	}
}

// attachApplication registers an application and assigns its identity.
// Reports false when the framework is destroyed and nothing was attached.
func (fw *FrameworkModel) attachApplication(app *ApplicationModel) bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.IsDestroyed() {
		return false
	}
	for _, existing := range fw.applications {
		if existing == app {
			return true
		}
	}
	fw.applications = append(fw.applications, app)
	id := fmt.Sprintf("%s.%d", fw.InternalID(), fw.appIndex)
	fw.appIndex++
	app.setInternalIdentity(id, fmt.Sprintf("%s-%s", applicationTypeName, id))
	metrics.ApplicationAttached()
	return true
}

// RemoveApplication deregisters a destroyed application.
func (fw *FrameworkModel) RemoveApplication(app *ApplicationModel) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	for i, existing := range fw.applications {
		if existing == app {
			fw.applications = append(fw.applications[:i], fw.applications[i+1:]...)
			metrics.ApplicationDetached()
			return
		}
	}
}

// Applications returns a snapshot of the owned application models.
func (fw *FrameworkModel) Applications() []*ApplicationModel {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	out := make([]*ApplicationModel, len(fw.applications))
	copy(out, fw.applications)
	return out
}

func (fw *FrameworkModel) onDestroy() {
	for _, app := range fw.Applications() {
		app.Destroy()
	}

	globalMu.Lock()
	for i, existing := range allFrameworks {
		if existing == fw {
			allFrameworks = append(allFrameworks[:i], allFrameworks[i+1:]...)
			break
		}
	}
	if defaultFramework.Load() == fw {
		defaultFramework.Store(nil)
	}
	globalMu.Unlock()
}

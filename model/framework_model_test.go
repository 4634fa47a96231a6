package model

import (
	"sync"
	"testing"
)

func TestDefaultFrameworkSingleton(t *testing.T) {
	t.Cleanup(DestroyAllFrameworks)

	const goroutines = 16
	fws := make([]*FrameworkModel, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			fws[i] = DefaultFramework()
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		if fws[i] != fws[0] {
			t.Fatal("DefaultFramework() returned distinct instances")
		}
	}
}

func TestDestroyedDefaultFrameworkIsReplaced(t *testing.T) {
	t.Cleanup(DestroyAllFrameworks)

	first := DefaultFramework()
	first.Destroy()

	second := DefaultFramework()
	if second == first {
		t.Error("destroyed default framework was handed out again")
	}
}

func TestAllFrameworksTracksLifetime(t *testing.T) {
	before := len(AllFrameworks())

	fw1 := NewFrameworkModel()
	fw2 := NewFrameworkModel()

	if got := len(AllFrameworks()); got != before+2 {
		t.Errorf("AllFrameworks() len = %d, want %d", got, before+2)
	}

	fw1.Destroy()
	fw2.Destroy()

	if got := len(AllFrameworks()); got != before {
		t.Errorf("AllFrameworks() len after destroy = %d, want %d", got, before)
	}
}

func TestFrameworkDestroyCascadesToApplications(t *testing.T) {
	fw := NewFrameworkModel()
	app1 := NewApplicationModel(fw)
	app2 := NewApplicationModel(fw)
	m := app1.NewModule()

	fw.Destroy()

	if !app1.IsDestroyed() || !app2.IsDestroyed() {
		t.Error("applications survived framework destroy")
	}
	if !m.IsDestroyed() {
		t.Error("module survived framework destroy")
	}
	if got := len(fw.Applications()); got != 0 {
		t.Errorf("Applications() len after destroy = %d, want 0", got)
	}
}

func TestDestroyedFrameworkRejectsApplicationCreation(t *testing.T) {
	fw := NewFrameworkModel()
	fw.Destroy()

	if app := NewApplicationModel(fw); app != nil {
		t.Errorf("NewApplicationModel on destroyed framework = %v, want nil", app)
	}
	if got := len(fw.Applications()); got != 0 {
		t.Errorf("Applications() len = %d, want 0", got)
	}
}

func TestApplicationIDsPerFramework(t *testing.T) {
	fw := NewFrameworkModel()
	t.Cleanup(fw.Destroy)

	app1 := NewApplicationModel(fw)
	app2 := NewApplicationModel(fw)

	if app1.InternalID() == app2.InternalID() {
		t.Error("sibling applications share an internal id")
	}
	wantPrefix := fw.InternalID() + "."
	for _, app := range []*ApplicationModel{app1, app2} {
		if id := app.InternalID(); len(id) <= len(wantPrefix) || id[:len(wantPrefix)] != wantPrefix {
			t.Errorf("application InternalID() = %q, want prefix %q", id, wantPrefix)
		}
	}
}

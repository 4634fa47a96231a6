package model

import (
	"errors"
	"testing"
)

func TestModuleDestroyDisconnectsServices(t *testing.T) {
	app := newTestApp(t)
	app.NewModule() // keeper, so the application survives
	m := app.NewModule()

	var order []string
	m.ServiceRepository().RegisterConsumer(&ConsumerService{
		ServiceKey: "demo.Greeter",
		Interface:  "demo.Greeter",
		Disconnect: func() error {
			order = append(order, "consumer")
			return nil
		},
	})
	m.ServiceRepository().RegisterProvider(&ProviderService{
		ServiceKey: "demo.Clock",
		Interface:  "demo.Clock",
		Unexport: func() error {
			order = append(order, "provider")
			return nil
		},
	})

	m.Destroy()

	if len(order) != 2 || order[0] != "consumer" || order[1] != "provider" {
		t.Errorf("teardown order = %v, want [consumer provider]", order)
	}
	if got := len(app.PubModules()); got != 1 {
		t.Errorf("PubModules() len = %d, want 1", got)
	}
}

func TestModuleDestroyIsolatesTeardownFailures(t *testing.T) {
	app := newTestApp(t)
	app.NewModule()
	m := app.NewModule()

	unexported := false
	m.ServiceRepository().RegisterConsumer(&ConsumerService{
		ServiceKey: "demo.Greeter",
		Interface:  "demo.Greeter",
		Disconnect: func() error { return errors.New("connection reset") },
	})
	m.ServiceRepository().RegisterProvider(&ProviderService{
		ServiceKey: "demo.Clock",
		Interface:  "demo.Clock",
		Unexport: func() error {
			unexported = true
			return nil
		},
	})

	m.Destroy()

	if !unexported {
		t.Error("provider unexport skipped after consumer disconnect failure")
	}
	if !m.IsDestroyed() {
		t.Error("module not destroyed despite teardown failure")
	}
}

func TestModuleDetachHappensLast(t *testing.T) {
	app := newTestApp(t)
	app.NewModule()
	m := app.NewModule()

	attachedDuringDisconnect := false
	m.ServiceRepository().RegisterConsumer(&ConsumerService{
		ServiceKey: "demo.Greeter",
		Interface:  "demo.Greeter",
		Disconnect: func() error {
			for _, existing := range app.Modules() {
				if existing == m {
					attachedDuringDisconnect = true
				}
			}
			return nil
		},
	})

	m.Destroy()

	if !attachedDuringDisconnect {
		t.Error("module detached before its services were torn down")
	}
}

func TestModuleBackReference(t *testing.T) {
	app := newTestApp(t)
	m := app.NewModule()

	if m.Application() != app {
		t.Error("Application() back-reference mismatch")
	}
	if m.ServiceRepository().Module() != m {
		t.Error("repository back-reference mismatch")
	}
	if m.ExtensionScope() != ScopeModule {
		t.Errorf("ExtensionScope() = %v, want %v", m.ExtensionScope(), ScopeModule)
	}
}

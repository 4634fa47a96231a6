package model

import (
	"errors"
	"testing"
)

func TestScopeModelDestroyOnce(t *testing.T) {
	fw := NewFrameworkModel()

	calls := 0
	if err := fw.AddDestroyListener(func() error {
		calls++
		return nil
	}); err != nil {
		t.Fatalf("AddDestroyListener: %v", err)
	}

	fw.Destroy()
	fw.Destroy()

	if calls != 1 {
		t.Errorf("destroy listener calls = %d, want 1", calls)
	}
	if !fw.IsDestroyed() {
		t.Error("IsDestroyed() = false after Destroy")
	}
}

func TestScopeModelListenerFailureIsolated(t *testing.T) {
	fw := NewFrameworkModel()

	var ran []string
	fw.AddDestroyListener(func() error {
		ran = append(ran, "first")
		return errors.New("teardown boom")
	})
	fw.AddDestroyListener(func() error {
		ran = append(ran, "second")
		return nil
	})

	fw.Destroy()

	if len(ran) != 2 || ran[0] != "first" || ran[1] != "second" {
		t.Errorf("listeners ran = %v, want [first second]", ran)
	}
}

func TestScopeModelAttributesAfterDestroy(t *testing.T) {
	fw := NewFrameworkModel()

	if err := fw.SetAttribute(AttrBindingContext, "ctx"); err != nil {
		t.Fatalf("SetAttribute: %v", err)
	}
	v, ok := fw.Attribute(AttrBindingContext)
	if !ok || v != "ctx" {
		t.Fatalf("Attribute = (%v, %v), want (ctx, true)", v, ok)
	}

	fw.Destroy()

	err := fw.SetAttribute(AttrBindingContext, "late")
	if !IsIllegalState(err) {
		t.Errorf("SetAttribute after destroy = %v, want illegal state", err)
	}
	if err := fw.AddDestroyListener(func() error { return nil }); !IsIllegalState(err) {
		t.Errorf("AddDestroyListener after destroy = %v, want illegal state", err)
	}
}

func TestScopeModelLoaders(t *testing.T) {
	tests := []struct {
		name    string
		loader  Loader
		wantErr bool
	}{
		{name: "named loader", loader: Loader{Name: "bundle-a", Properties: map[string]string{"k": "v"}}},
		{name: "empty name rejected", loader: Loader{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fw := NewFrameworkModel()
			defer fw.Destroy()

			err := fw.AddLoader(tt.loader)
			if tt.wantErr {
				if !IsInvalidArgument(err) {
					t.Fatalf("AddLoader = %v, want invalid argument", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("AddLoader: %v", err)
			}
			if got := len(fw.Loaders()); got != 1 {
				t.Fatalf("Loaders() len = %d, want 1", got)
			}

			fw.RemoveLoader(tt.loader.Name)
			if got := len(fw.Loaders()); got != 0 {
				t.Errorf("Loaders() len after remove = %d, want 0", got)
			}
		})
	}
}

func TestScopeModelLoaderAfterDestroy(t *testing.T) {
	fw := NewFrameworkModel()
	fw.Destroy()

	err := fw.AddLoader(Loader{Name: "late"})
	if !IsIllegalState(err) {
		t.Errorf("AddLoader after destroy = %v, want illegal state", err)
	}
}

func TestScopeModelIdentity(t *testing.T) {
	fw := NewFrameworkModel()
	defer fw.Destroy()

	if fw.InstanceID() == "" {
		t.Error("InstanceID() is empty")
	}
	if fw.InternalID() == "" {
		t.Error("InternalID() is empty")
	}
	if fw.InternalName() == "" {
		t.Error("InternalName() is empty")
	}
	if fw.ExtensionScope() != ScopeProcess {
		t.Errorf("ExtensionScope() = %v, want %v", fw.ExtensionScope(), ScopeProcess)
	}

	other := NewFrameworkModel()
	defer other.Destroy()
	if fw.InstanceID() == other.InstanceID() {
		t.Error("two frameworks share an instance id")
	}
	if fw.InternalName() == other.InternalName() {
		t.Error("two frameworks share an internal name")
	}
}

package model

import "testing"

func TestFunctionID(t *testing.T) {
	f := Function{QualifiedName: "pkg.Foo"}
	if got, want := f.ID(), "func:pkg.Foo"; got != want {
		t.Errorf("ID() = %q, want %q", got, want)
	}
}

func TestClassID(t *testing.T) {
	c := Class{QualifiedName: "pkg.Bar"}
	if got, want := c.ID(), "class:pkg.Bar"; got != want {
		t.Errorf("ID() = %q, want %q", got, want)
	}
}

func TestModuleID(t *testing.T) {
	m := New("pkg/foo.py", "python")
	if got, want := m.ID(), "module:pkg/foo.py"; got != want {
		t.Errorf("ID() = %q, want %q", got, want)
	}
}

func TestNewInitializesMaps(t *testing.T) {
	m := New("pkg/foo.py", "python")
	if m.Functions == nil {
		t.Error("Functions map is nil")
	}
	if m.Classes == nil {
		t.Error("Classes map is nil")
	}
	if len(m.Functions) != 0 || len(m.Classes) != 0 {
		t.Error("expected empty maps for a fresh model")
	}
	if m.Partial || m.Empty {
		t.Error("fresh model should not be Partial or Empty by default")
	}
}

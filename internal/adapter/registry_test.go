// ABOUTME: Tests for the adapter factory registry.
// ABOUTME: Verifies builtin registrations, custom adapters, and duplicate rejection.

package adapter

import (
	"context"
	"testing"

	"github.com/2389/fold-bridge/internal/manifest"
	"github.com/2389/fold-bridge/internal/result"
)

type nopAdapter struct{}

func (nopAdapter) Probe(ctx context.Context) error { return nil }
func (nopAdapter) Invoke(ctx context.Context, tool string, args map[string]any) (*result.Result, error) {
	return result.Text("ok"), nil
}

func TestNewRegistry_Builtins(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"exec", "http"} {
		if !r.Has(name) {
			t.Errorf("builtin %q not registered", name)
		}
	}
	if r.Has("nope") {
		t.Error("unexpected adapter registered")
	}
}

func TestRegistry_RegisterAndResolve(t *testing.T) {
	r := NewRegistry()
	factory := func(d *manifest.Descriptor, opts Options) (Adapter, error) {
		return nopAdapter{}, nil
	}

	if err := r.Register("github_client", factory); err != nil {
		t.Fatalf("Register: %v", err)
	}
	f, ok := r.Resolve("github_client")
	if !ok {
		t.Fatal("expected to resolve github_client")
	}
	a, err := f(&manifest.Descriptor{ID: "github"}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := a.(nopAdapter); !ok {
		t.Errorf("unexpected adapter type %T", a)
	}
}

func TestRegistry_DuplicateRejected(t *testing.T) {
	r := NewRegistry()
	factory := func(d *manifest.Descriptor, opts Options) (Adapter, error) {
		return nopAdapter{}, nil
	}
	if err := r.Register("custom", factory); err != nil {
		t.Fatal(err)
	}
	if err := r.Register("custom", factory); err == nil {
		t.Error("expected duplicate registration to fail")
	}
	if err := r.Register("", factory); err == nil {
		t.Error("expected empty name to fail")
	}
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()
	names := r.Names()
	if len(names) != 2 || names[0] != "exec" || names[1] != "http" {
		t.Errorf("unexpected names: %v", names)
	}
}

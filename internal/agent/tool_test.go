package agent

import (
	"context"
	"testing"
)

func TestRegistryRegisterValidation(t *testing.T) {
	r := NewRegistry()
	exec := func(context.Context, map[string]any) (any, error) { return nil, nil }

	if err := r.Register(Tool{Name: "", Execute: exec}); err == nil {
		t.Fatalf("empty name must be rejected")
	}
	if err := r.Register(Tool{Name: "lookup_style"}); err == nil {
		t.Fatalf("nil execute must be rejected")
	}
	if err := r.Register(Tool{Name: "lookup_style", Execute: exec}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(Tool{Name: "lookup_style", Execute: exec}); err == nil {
		t.Fatalf("duplicate name must be rejected")
	}
}

func TestRegistryDefinitionsOrder(t *testing.T) {
	r := NewRegistry()
	exec := func(context.Context, map[string]any) (any, error) { return nil, nil }
	for _, name := range []string{"save_room_plan", "lookup_style", "request_render"} {
		if err := r.Register(Tool{Name: name, Execute: exec}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	defs := r.Definitions()
	wantOrder := []string{"save_room_plan", "lookup_style", "request_render"}
	for i, d := range defs {
		if d.Name != wantOrder[i] {
			t.Fatalf("definitions order = %v", defs)
		}
	}

	names := r.Names()
	wantSorted := []string{"lookup_style", "request_render", "save_room_plan"}
	for i, n := range names {
		if n != wantSorted[i] {
			t.Fatalf("names = %v, want sorted %v", names, wantSorted)
		}
	}
}

func TestRegistryGetTrimsName(t *testing.T) {
	r := NewRegistry()
	exec := func(context.Context, map[string]any) (any, error) { return "ok", nil }
	if err := r.Register(Tool{Name: " lookup_style ", Execute: exec}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, ok := r.Get("lookup_style"); !ok {
		t.Fatalf("trimmed name not found")
	}
	if _, ok := r.Get(" lookup_style "); !ok {
		t.Fatalf("lookup must trim the requested name")
	}
	if _, ok := r.Get("unknown"); ok {
		t.Fatalf("unknown tool must not resolve")
	}
}

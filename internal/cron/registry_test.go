package cron

import (
	"context"
	"strings"
	"testing"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndSkipsNil(t *testing.T) {
	window := &stubJob{name: "ordering-window"}
	reconcile := &stubJob{name: "cycle-total-reconcile"}
	registry := NewRegistry(nil, window)
	if err := registry.Register(nil); err != nil {
		t.Fatalf("nil job should be ignored, got %v", err)
	}
	if err := registry.Register(reconcile); err != nil {
		t.Fatalf("register: %v", err)
	}

	jobs := registry.Jobs()
	if len(jobs) != 2 || jobs[0] != window || jobs[1] != reconcile {
		t.Fatalf("unexpected jobs %v", registry.Names())
	}
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatalf("internal slice leaked")
	}
	if got := strings.Join(registry.Names(), ","); got != "ordering-window,cycle-total-reconcile" {
		t.Fatalf("unexpected names %q", got)
	}
}

func TestRegistryRejectsDuplicateAndBlankNames(t *testing.T) {
	registry := NewRegistry(&stubJob{name: "ordering-window"})
	if err := registry.Register(&stubJob{name: "ordering-window"}); err == nil {
		t.Fatalf("expected duplicate name error")
	}
	if err := registry.Register(&stubJob{name: "  "}); err == nil {
		t.Fatalf("expected blank name error")
	}
	if n := len(registry.Jobs()); n != 1 {
		t.Fatalf("expected 1 job, got %d", n)
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("expected NewRegistry to panic on duplicate names")
		}
	}()
	NewRegistry(&stubJob{name: "a"}, &stubJob{name: "a"})
}

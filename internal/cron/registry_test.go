package cron

import (
	"context"
	"testing"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndCopies(t *testing.T) {
	alerts := &stubJob{name: "stock-alerts"}
	retention := &stubJob{name: "outbox-retention"}
	registry, err := NewRegistry(alerts, retention)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	jobs := registry.Jobs()
	if len(jobs) != 2 || jobs[0] != alerts || jobs[1] != retention {
		t.Fatalf("unexpected jobs %v", jobs)
	}
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatalf("internal slice leaked")
	}
}

func TestRegistryRejectsBadJobs(t *testing.T) {
	cases := map[string][]Job{
		"duplicate": {&stubJob{name: "stock-alerts"}, &stubJob{name: "stock-alerts"}},
		"nil":       {nil},
		"unnamed":   {&stubJob{}},
	}
	for name, jobs := range cases {
		if _, err := NewRegistry(jobs...); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

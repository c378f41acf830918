package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/angelmondragon/warehouse-backend/pkg/logger"
)

type fakeLock struct {
	held     bool
	released int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.released++
	return nil
}

type testJob struct {
	name     string
	err      error
	runs     int
	deadline bool
}

func (j *testJob) Name() string { return j.name }

func (j *testJob) Run(ctx context.Context) error {
	j.runs++
	_, j.deadline = ctx.Deadline()
	return j.err
}

type recordedRun struct {
	job    string
	failed bool
}

type fakeObserver struct {
	runs []recordedRun
}

func (f *fakeObserver) ObserveRun(job string, _ time.Duration, err error) {
	f.runs = append(f.runs, recordedRun{job: job, failed: err != nil})
}

func newTestService(t *testing.T, lock Lock, observer runObserver, jobs ...Job) *Service {
	t.Helper()
	registry, err := NewRegistry(jobs...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	svc, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		Registry: registry,
		Lock:     lock,
		Metrics:  observer,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestRunOnceRunsEveryJobAndCombinesFailures(t *testing.T) {
	ok := &testJob{name: "outbox-retention"}
	failing := &testJob{name: "stock-alerts", err: errors.New("query low stock: timeout")}
	lock := &fakeLock{}
	observer := &fakeObserver{}
	svc := newTestService(t, lock, observer, failing, ok)

	report, err := svc.RunOnce(context.Background())
	if err == nil {
		t.Fatal("expected combined error")
	}
	if ok.runs != 1 || failing.runs != 1 {
		t.Fatalf("expected each job to run once, got ok=%d failing=%d", ok.runs, failing.runs)
	}
	if !ok.deadline {
		t.Fatal("jobs should run under a timeout")
	}
	if len(report.Failed) != 1 || report.Failed[0] != "stock-alerts" {
		t.Fatalf("unexpected failures %v", report.Failed)
	}
	if lock.released != 1 || lock.held {
		t.Fatalf("lock should be released once, released=%d held=%v", lock.released, lock.held)
	}
	if len(observer.runs) != 2 || !observer.runs[0].failed || observer.runs[1].failed {
		t.Fatalf("unexpected observed runs %+v", observer.runs)
	}
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "stock-alerts"}
	svc := newTestService(t, &fakeLock{held: true}, nil, job)

	report, err := svc.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !report.Skipped || job.runs != 0 {
		t.Fatalf("expected skipped cycle, report=%+v runs=%d", report, job.runs)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	job := &testJob{name: "stock-alerts"}
	svc := newTestService(t, &fakeLock{}, nil, job)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := svc.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if job.runs != 1 {
		t.Fatalf("expected the first cycle to run before exiting, ran %d", job.runs)
	}
}

func TestNewServiceValidates(t *testing.T) {
	logg := logger.New(logger.Options{Output: io.Discard})
	registry, _ := NewRegistry()
	if _, err := NewService(ServiceParams{Registry: registry, Lock: &fakeLock{}}); err == nil {
		t.Fatal("expected error without logger")
	}
	if _, err := NewService(ServiceParams{Logger: logg, Registry: registry}); err == nil {
		t.Fatal("expected error without lock")
	}
	if _, err := NewService(ServiceParams{Logger: logg, Lock: &fakeLock{}}); err == nil {
		t.Fatal("expected error without registry")
	}
}

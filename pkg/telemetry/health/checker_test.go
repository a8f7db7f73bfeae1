package health

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestChecker_ReadyWhenAllChecksPass(t *testing.T) {
	checker := New(0)
	checker.RegisterCheck("store", func(ctx context.Context) error { return nil })

	report := checker.CheckReadiness(context.Background())

	if !report.Ready() {
		t.Fatalf("Ready() = false, report = %+v", report)
	}
	if report.Status != "ready" {
		t.Errorf("Status = %q, want %q", report.Status, "ready")
	}
	result, ok := report.Checks["store"]
	if !ok {
		t.Fatal("store check missing from report")
	}
	if result.Status != "ok" {
		t.Errorf("store status = %q, want %q", result.Status, "ok")
	}
	if result.Message != "" {
		t.Errorf("store message = %q, want empty", result.Message)
	}
}

func TestChecker_NotReadyWhenAnyCheckFails(t *testing.T) {
	checker := New(0)
	checker.RegisterCheck("store", func(ctx context.Context) error { return nil })
	checker.RegisterCheck("upstream", func(ctx context.Context) error {
		return errors.New("connection refused")
	})

	report := checker.CheckReadiness(context.Background())

	if report.Ready() {
		t.Fatalf("Ready() = true, report = %+v", report)
	}
	if report.Status != "not_ready" {
		t.Errorf("Status = %q, want %q", report.Status, "not_ready")
	}
	if got := report.Checks["store"].Status; got != "ok" {
		t.Errorf("store status = %q, want %q", got, "ok")
	}
	if got := report.Checks["upstream"].Status; got != "unhealthy" {
		t.Errorf("upstream status = %q, want %q", got, "unhealthy")
	}
	if got := report.Checks["upstream"].Message; got != "connection refused" {
		t.Errorf("upstream message = %q, want %q", got, "connection refused")
	}
}

func TestChecker_ReadyWithNoChecks(t *testing.T) {
	checker := New(0)

	report := checker.CheckReadiness(context.Background())

	if !report.Ready() {
		t.Errorf("Ready() = false with no checks registered")
	}
	if len(report.Checks) != 0 {
		t.Errorf("Checks = %v, want empty", report.Checks)
	}
}

func TestChecker_TimesOutHangingCheck(t *testing.T) {
	checker := New(50 * time.Millisecond)
	checker.RegisterCheck("store", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(time.Second) // ignore cancellation for a while
		return ctx.Err()
	})

	start := time.Now()
	report := checker.CheckReadiness(context.Background())
	elapsed := time.Since(start)

	if report.Ready() {
		t.Fatal("Ready() = true for a hanging check")
	}
	if got := report.Checks["store"].Message; got != "health check timeout" {
		t.Errorf("message = %q, want %q", got, "health check timeout")
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("readiness took %v, check timeout did not bound it", elapsed)
	}
}

func TestChecker_RunsChecksConcurrently(t *testing.T) {
	checker := New(2 * time.Second)

	// Each check waits for the other to start. Serial execution would
	// stall the first check until its timeout.
	var started sync.WaitGroup
	started.Add(2)
	rendezvous := func(ctx context.Context) error {
		started.Done()
		done := make(chan struct{})
		go func() {
			started.Wait()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	checker.RegisterCheck("store", rendezvous)
	checker.RegisterCheck("journal", rendezvous)

	report := checker.CheckReadiness(context.Background())

	if !report.Ready() {
		t.Errorf("Ready() = false, checks did not run concurrently: %+v", report)
	}
}

func TestChecker_ReplacesCheckWithSameName(t *testing.T) {
	checker := New(0)
	checker.RegisterCheck("store", func(ctx context.Context) error {
		return errors.New("old check")
	})
	checker.RegisterCheck("store", func(ctx context.Context) error { return nil })

	report := checker.CheckReadiness(context.Background())

	if !report.Ready() {
		t.Errorf("Ready() = false, replacement check not used: %+v", report)
	}
}

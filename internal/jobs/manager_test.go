package jobs

import (
	"testing"

	"live-translator/internal/domain"
)

// TestManagerLifecycle verifies normal progression to completed state.
func TestManagerLifecycle(t *testing.T) {
	m := NewManager()
	if m.IsRunning() {
		t.Fatal("new manager should be idle")
	}

	if err := m.Start("run-1", 2); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !m.IsRunning() {
		t.Fatal("expected running after start")
	}
	for i := 1; i <= 2; i++ {
		if err := m.Advance("run-1", i); err != nil {
			t.Fatalf("advance %d: %v", i, err)
		}
		if got := m.Current(); got.Current != i || got.Total != 2 {
			t.Fatalf("current = %+v", got)
		}
	}
	if err := m.Complete("run-1", 1, 1); err != nil {
		t.Fatalf("complete: %v", err)
	}

	current := m.Current()
	if current.Phase != domain.BatchCompleted || current.Successful != 1 || current.Failed != 1 {
		t.Fatalf("current = %+v, want completed(1,1)", current)
	}

	if err := m.Start("run-2", 1); err != nil {
		t.Fatalf("restart from completed: %v", err)
	}
}

// TestManagerRejectsConcurrentStart allows one run at a time.
func TestManagerRejectsConcurrentStart(t *testing.T) {
	m := NewManager()
	if err := m.Start("run-1", 1); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Start("run-2", 1); err != ErrBatchAlreadyRunning {
		t.Fatalf("second start error = %v, want %v", err, ErrBatchAlreadyRunning)
	}
	if err := m.Start("run-3", 0); err == nil {
		t.Fatal("expected error")
	}
}

// TestManagerRejectsStaleRun ignores updates from an older run.
func TestManagerRejectsStaleRun(t *testing.T) {
	m := NewManager()
	if err := m.Start("run-1", 3); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Advance("run-0", 1); err == nil {
		t.Fatal("expected stale run error")
	}
	if err := m.Advance("run-1", 4); err == nil {
		t.Fatal("expected out of range error")
	}
}

// TestManagerCancel verifies cancel behavior and repeated cancel handling.
func TestManagerCancel(t *testing.T) {
	m := NewManager()
	if err := m.Start("run-1", 2); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := m.Cancel(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if m.Current().Phase != domain.BatchCancelled {
		t.Fatalf("phase = %s, want cancelled", m.Current().Phase)
	}
	if err := m.Cancel(); err != ErrNoRunningBatch {
		t.Fatalf("second cancel error = %v, want %v", err, ErrNoRunningBatch)
	}
	if err := m.Complete("run-1", 2, 0); err != ErrNoRunningBatch {
		t.Fatalf("complete after cancel error = %v", err)
	}
	if err := m.Start("run-2", 1); err == nil {
		t.Fatal("expected start from cancelled to be rejected")
	}

	if err := m.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := m.Start("run-2", 1); err != nil {
		t.Fatalf("start after reset: %v", err)
	}
	if err := m.Reset(); err != ErrBatchAlreadyRunning {
		t.Fatalf("reset while running error = %v", err)
	}
}

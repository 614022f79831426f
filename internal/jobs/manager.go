package jobs

import (
	"errors"
	"fmt"
	"sync"

	"live-translator/internal/domain"
)

// ErrBatchAlreadyRunning is returned when starting a second batch run.
var ErrBatchAlreadyRunning = errors.New("batch already processing")

// ErrNoRunningBatch is returned when cancel is requested outside a run.
var ErrNoRunningBatch = errors.New("no batch processing")

// Manager tracks the single allowed batch run and its transitions.
type Manager struct {
	mu      sync.RWMutex
	runID   string
	current domain.BatchProcessingState
}

// NewManager creates a manager in idle state.
func NewManager() *Manager {
	return &Manager{
		current: domain.BatchProcessingState{Phase: domain.BatchIdle},
	}
}

// Start begins a run over total files. Only idle and completed batches may
// start.
func (m *Manager) Start(runID string, total int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.Phase == domain.BatchProcessing {
		return ErrBatchAlreadyRunning
	}
	if !isValidTransition(m.current.Phase, domain.BatchProcessing) {
		return fmt.Errorf("invalid transition: %s -> %s", m.current.Phase, domain.BatchProcessing)
	}
	if total <= 0 {
		return fmt.Errorf("batch has no files")
	}

	m.runID = runID
	m.current = domain.BatchProcessingState{Phase: domain.BatchProcessing, Total: total}
	return nil
}

// Advance records the 1-based index of the file being processed.
func (m *Manager) Advance(runID string, current int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkRun(runID); err != nil {
		return err
	}
	if current < 1 || current > m.current.Total {
		return fmt.Errorf("file index %d out of range 1..%d", current, m.current.Total)
	}
	m.current.Current = current
	return nil
}

// Complete finishes the run with its counters.
func (m *Manager) Complete(runID string, successful, failed int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkRun(runID); err != nil {
		return err
	}
	m.current = domain.BatchProcessingState{
		Phase:      domain.BatchCompleted,
		Successful: successful,
		Failed:     failed,
	}
	return nil
}

// Cancel moves an active run to cancelled state.
func (m *Manager) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.Phase != domain.BatchProcessing {
		return ErrNoRunningBatch
	}
	m.current = domain.BatchProcessingState{Phase: domain.BatchCancelled}
	return nil
}

// Reset returns a finished batch to idle.
func (m *Manager) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.Phase == domain.BatchProcessing {
		return ErrBatchAlreadyRunning
	}
	m.runID = ""
	m.current = domain.BatchProcessingState{Phase: domain.BatchIdle}
	return nil
}

// Current returns a snapshot of the batch state.
func (m *Manager) Current() domain.BatchProcessingState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// RunID returns the identifier of the latest run.
func (m *Manager) RunID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.runID
}

// IsRunning reports whether a run is in progress.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Phase == domain.BatchProcessing
}

// checkRun ensures runID is the active run. Callers hold the lock.
func (m *Manager) checkRun(runID string) error {
	if m.current.Phase != domain.BatchProcessing {
		return ErrNoRunningBatch
	}
	if runID != m.runID {
		return fmt.Errorf("stale batch run %q, active is %q", runID, m.runID)
	}
	return nil
}

// isValidTransition enforces the allowed batch state machine edges.
func isValidTransition(from, to domain.BatchPhase) bool {
	switch from {
	case domain.BatchIdle:
		return to == domain.BatchProcessing
	case domain.BatchProcessing:
		return to == domain.BatchCompleted || to == domain.BatchCancelled
	case domain.BatchCompleted:
		return to == domain.BatchProcessing || to == domain.BatchIdle
	case domain.BatchCancelled:
		return to == domain.BatchIdle
	default:
		return false
	}
}

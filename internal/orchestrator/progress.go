package orchestrator

import (
	"fmt"
	"sync"
)

// ProgressStatus is the state of one unit of work within a round.
type ProgressStatus string

const (
	ProgressPending  ProgressStatus = "pending"
	ProgressWorking  ProgressStatus = "working"
	ProgressComplete ProgressStatus = "complete"
	ProgressFailed   ProgressStatus = "failed"
)

// Progress event kinds.
const (
	KindRound    = "round"
	KindInstance = "instance"
	KindArbiter  = "arbiter"
	KindDecision = "decision"
)

// ProgressEvent is emitted as a run advances.
type ProgressEvent struct {
	Kind     string
	Round    int
	Model    string
	Instance int
	Status   ProgressStatus
	Message  string
}

// ProgressReporter fans progress events from any number of runs into one
// buffered channel. Events are dropped when the buffer is full and ignored
// after Close.
type ProgressReporter struct {
	mu     sync.RWMutex
	ch     chan ProgressEvent
	closed bool
}

func NewProgressReporter() *ProgressReporter {
	return &ProgressReporter{ch: make(chan ProgressEvent, 64)}
}

// Emit never blocks.
func (pr *ProgressReporter) Emit(event ProgressEvent) {
	pr.mu.RLock()
	defer pr.mu.RUnlock()
	if pr.closed {
		return
	}
	select {
	case pr.ch <- event:
	default:
	}
}

// Subscribe returns the event channel. It is closed by Close.
func (pr *ProgressReporter) Subscribe() <-chan ProgressEvent {
	return pr.ch
}

// Close closes the channel. Calling it twice is harmless.
func (pr *ProgressReporter) Close() {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	if !pr.closed {
		pr.closed = true
		close(pr.ch)
	}
}

// FormatProgress formats a ProgressEvent as a human-readable status line.
func FormatProgress(event ProgressEvent) string {
	switch event.Kind {
	case KindRound:
		return fmt.Sprintf("[round %d] %s", event.Round, event.Message)
	case KindArbiter:
		return fmt.Sprintf("  %s arbiter %s", statusMark(event.Status), event.Message)
	case KindDecision:
		return fmt.Sprintf("  → %s", event.Message)
	}

	label := fmt.Sprintf("%s#%d", event.Model, event.Instance)
	switch event.Status {
	case ProgressPending:
		return fmt.Sprintf("  ○ %s (pending)", label)
	case ProgressWorking:
		return fmt.Sprintf("  ● %s...", label)
	case ProgressComplete:
		return fmt.Sprintf("  ✓ %s complete", label)
	case ProgressFailed:
		return fmt.Sprintf("  ✗ %s failed: %s", label, event.Message)
	default:
		return fmt.Sprintf("  ? %s (unknown status)", label)
	}
}

func statusMark(s ProgressStatus) string {
	switch s {
	case ProgressComplete:
		return "✓"
	case ProgressFailed:
		return "✗"
	case ProgressWorking:
		return "●"
	default:
		return "○"
	}
}

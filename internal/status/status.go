// Package status holds the process-wide ingestion state: a busy flag, a
// human-readable message and a progress fraction. The ingestion orchestrator
// is the only writer while a run is active; the busy gate itself belongs to
// whoever starts runs (HTTP handler or console).
package status

import (
	"sync"

	"graphrag/internal/domain"
)

// Tracker is a single-writer, multi-reader status value guarded by a mutex.
// The zero value is idle.
type Tracker struct {
	mu       sync.RWMutex
	busy     bool
	message  string
	progress float64
}

func NewTracker() *Tracker {
	return &Tracker{message: "Idle"}
}

// TryStart atomically claims the busy flag. It returns false if a run is
// already in flight, in which case nothing changes.
func (t *Tracker) TryStart(message string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.busy {
		return false
	}
	t.busy = true
	t.message = message
	t.progress = 0
	return true
}

// Set updates the message and progress of the active run. Progress is
// clamped to [0,1].
func (t *Tracker) Set(message string, progress float64) {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.message = message
	t.progress = progress
}

// Finish clears the busy flag and resets progress, leaving the final
// message visible to readers.
func (t *Tracker) Finish(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.busy = false
	t.message = message
	t.progress = 0
}

// Snapshot returns a consistent copy of the current status.
func (t *Tracker) Snapshot() domain.Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return domain.Status{Busy: t.busy, Message: t.message, Progress: t.progress}
}

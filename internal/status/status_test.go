package status

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerIdleByDefault(t *testing.T) {
	tr := NewTracker()
	snap := tr.Snapshot()
	assert.False(t, snap.Busy)
	assert.Equal(t, "Idle", snap.Message)
	assert.Zero(t, snap.Progress)
}

func TestTryStartGate(t *testing.T) {
	tr := NewTracker()
	require.True(t, tr.TryStart("starting"))
	assert.False(t, tr.TryStart("second"), "second start must be rejected while busy")

	snap := tr.Snapshot()
	assert.True(t, snap.Busy)
	assert.Equal(t, "starting", snap.Message)

	tr.Finish("done")
	assert.True(t, tr.TryStart("again"), "gate reopens after Finish")
}

func TestTryStartConcurrent(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup
	var mu sync.Mutex
	started := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tr.TryStart("run") {
				mu.Lock()
				started++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, started, "exactly one concurrent start may win")
}

func TestSetClampsProgress(t *testing.T) {
	tr := NewTracker()
	tr.TryStart("run")
	tr.Set("working", 1.7)
	assert.Equal(t, 1.0, tr.Snapshot().Progress)
	tr.Set("working", -0.2)
	assert.Equal(t, 0.0, tr.Snapshot().Progress)
}

func TestFinishResetsProgressKeepsMessage(t *testing.T) {
	tr := NewTracker()
	tr.TryStart("run")
	tr.Set("half way", 0.5)
	tr.Finish("ingestion complete")

	snap := tr.Snapshot()
	assert.False(t, snap.Busy)
	assert.Equal(t, "ingestion complete", snap.Message)
	assert.Zero(t, snap.Progress)
}

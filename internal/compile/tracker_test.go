package compile

import (
	"sync/atomic"
	"testing"
)

func TestTrackerDrainsNestedSpawns(t *testing.T) {
	var tr workTracker
	var ran atomic.Int64

	// Workers spawning workers mid-drain is the case the flat
	// collection exists for.
	for i := 0; i < 8; i++ {
		tr.Spawn(func() {
			ran.Add(1)
			tr.Spawn(func() {
				ran.Add(1)
				tr.Spawn(func() {
					ran.Add(1)
				})
			})
		})
	}
	tr.WaitForWorkers()
	if got := ran.Load(); got != 24 {
		t.Fatalf("ran %d workers, want 24", got)
	}
}

func TestTrackerEmptyWaitReturns(t *testing.T) {
	var tr workTracker
	tr.WaitForWorkers()
}

func TestTrackerReusableAfterDrain(t *testing.T) {
	var tr workTracker
	var ran atomic.Int64
	tr.Spawn(func() { ran.Add(1) })
	tr.WaitForWorkers()
	tr.Spawn(func() { ran.Add(1) })
	tr.WaitForWorkers()
	if got := ran.Load(); got != 2 {
		t.Fatalf("ran %d workers, want 2", got)
	}
}

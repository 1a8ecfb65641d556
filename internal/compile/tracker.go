package compile

import "sync"

// workTracker tracks spawned compilation workers in a flat collection:
// a spawned worker has no parent/child tie to the worker that spawned
// it, only membership here. The join pops most-recently-added first so
// the waiter tends to land on still-warm work.
type workTracker struct {
	mu      sync.Mutex
	pending []chan struct{}
}

// Spawn runs fn on its own goroutine and tracks its completion.
// Workers may call Spawn themselves; the tracker keeps growing while a
// drain is in progress.
func (t *workTracker) Spawn(fn func()) {
	done := make(chan struct{})
	t.mu.Lock()
	t.pending = append(t.pending, done)
	t.mu.Unlock()
	go func() {
		defer close(done)
		fn()
	}()
}

// WaitForWorkers blocks until every tracked worker has finished,
// including workers spawned while the drain was already running. The
// loop keeps popping until the collection is observed empty, which is
// the only termination condition that survives mid-drain growth.
func (t *workTracker) WaitForWorkers() {
	for {
		t.mu.Lock()
		n := len(t.pending)
		if n == 0 {
			t.mu.Unlock()
			return
		}
		done := t.pending[n-1]
		t.pending = t.pending[:n-1]
		t.mu.Unlock()
		<-done
	}
}

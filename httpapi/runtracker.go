package httpapi

import "sync"

// runTracker holds the cancel function for every AgentRun goroutine this
// process launched, so `stopAgent` (spec.md §5 "Cancellation") can set the
// abort flag the controller observes at its next phase boundary without
// force-killing an in-flight build.
type runTracker struct {
	mu      sync.Mutex
	cancels map[string]func()
}

func newRunTracker() *runTracker {
	return &runTracker{cancels: make(map[string]func())}
}

func (t *runTracker) track(runID string, cancel func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancels[runID] = cancel
}

func (t *runTracker) stop(runID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	cancel, ok := t.cancels[runID]
	if ok {
		cancel()
	}
	return ok
}

func (t *runTracker) forget(runID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.cancels, runID)
}

package state

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// ErrTrackingTerminated indicates that a tracker has been terminated.
var ErrTrackingTerminated = errors.New("tracking terminated")

// Tracker provides index-based state tracking using a condition variable.
type Tracker struct {
	// change is the condition variable used to track changes.
	change *sync.Cond
	// index is the current state index.
	index uint64
	// terminated indicates whether or not tracking has been terminated.
	terminated bool
}

// NewTracker creates a new tracker instance with state index 1.
func NewTracker() *Tracker {
	return &Tracker{
		change: sync.NewCond(&sync.Mutex{}),
		index:  1,
	}
}

// Terminate terminates tracking, unblocking any waiters.
func (t *Tracker) Terminate() {
	// Acquire the state lock and ensure its release.
	t.change.L.Lock()
	defer t.change.L.Unlock()

	// Mark tracking as terminated and broadcast the change.
	t.terminated = true
	t.change.Broadcast()
}

// Index returns the current state index.
func (t *Tracker) Index() uint64 {
	// Acquire the state lock and ensure its release.
	t.change.L.Lock()
	defer t.change.L.Unlock()

	// Return the current index.
	return t.index
}

// NotifyOfChange increments the state index and notifies waiters. It returns
// the new state index.
func (t *Tracker) NotifyOfChange() uint64 {
	// Acquire the state lock and ensure its release.
	t.change.L.Lock()
	defer t.change.L.Unlock()

	// Increment the state index and broadcast changes.
	t.index += 1
	t.change.Broadcast()

	// Done.
	return t.index
}

// WaitForChange waits for a state index change from the specified previous
// index. It returns the new index, context.Canceled if the provided context
// was cancelled during waiting, or ErrTrackingTerminated if tracking was
// terminated during waiting.
func (t *Tracker) WaitForChange(ctx context.Context, previousIndex uint64) (uint64, error) {
	// Monitor for context cancellation in a background Goroutine. A broadcast
	// is the only way to unblock a condition variable wait, so we convert
	// cancellation into a broadcast. The monitoring Goroutine exits once
	// waiting is complete.
	waitDone := make(chan struct{})
	defer close(waitDone)
	go func() {
		select {
		case <-ctx.Done():
			t.change.L.Lock()
			t.change.Broadcast()
			t.change.L.Unlock()
		case <-waitDone:
		}
	}()

	// Acquire the state lock and ensure its release.
	t.change.L.Lock()
	defer t.change.L.Unlock()

	// Wait for the state index to change, watching for cancellation and
	// termination.
	for t.index == previousIndex && !t.terminated {
		if ctx.Err() != nil {
			return t.index, context.Canceled
		}
		t.change.Wait()
	}

	// Check for termination.
	if t.terminated {
		return t.index, ErrTrackingTerminated
	}

	// Success.
	return t.index, nil
}

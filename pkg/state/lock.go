package state

import (
	"sync"
)

// TrackingLock couples a mutex with a Tracker so that releasing the lock
// automatically announces a change in the guarded state. The watch registry
// uses it to wake monitoring clients whenever registry state is mutated.
type TrackingLock struct {
	// lock is the underlying mutex.
	lock sync.Mutex
	// tracker is notified when the lock is released with changes.
	tracker *Tracker
}

// NewTrackingLock creates a tracking lock that notifies the specified
// tracker.
func NewTrackingLock(tracker *Tracker) *TrackingLock {
	return &TrackingLock{
		tracker: tracker,
	}
}

// Lock acquires the underlying mutex.
func (l *TrackingLock) Lock() {
	l.lock.Lock()
}

// Unlock releases the underlying mutex and marks the guarded state as
// changed, waking any blocked monitors.
func (l *TrackingLock) Unlock() {
	l.lock.Unlock()
	l.tracker.NotifyOfChange()
}

// UnlockWithoutNotify releases the underlying mutex without marking the
// guarded state as changed. It should be used when the guarded state was
// only read.
func (l *TrackingLock) UnlockWithoutNotify() {
	l.lock.Unlock()
}

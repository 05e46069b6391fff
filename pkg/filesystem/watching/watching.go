package watching

import (
	"time"

	"github.com/pkg/errors"

	"github.com/vigilo-io/vigilo/pkg/pending"
)

// ErrWatchTerminated indicates that a watcher has been terminated.
var ErrWatchTerminated = errors.New("watch terminated")

const (
	// DefaultPollingInterval is the default interval for poll-based watching.
	DefaultPollingInterval = 10 * time.Second

	// watchStartTimeout is the maximum amount of time that Start will wait
	// for a backend's reader thread to signal readiness.
	watchStartTimeout = 10 * time.Second
)

// Filter is a callback type that can be used to exclude paths from being
// returned by a watcher. It accepts an absolute path and returns true if that
// path should be excluded from events.
type Filter func(string) bool

// Controller is the interface through which a watcher reports out-of-band
// watch conditions to its owner. Implementations must be safe for concurrent
// usage by watcher threads.
type Controller interface {
	// ScheduleRecrawl requests a full crawl of the watched root because the
	// notification stream can no longer account for all changes.
	ScheduleRecrawl(reason string)
	// CancelWatch indicates that the watch has failed irrecoverably and that
	// the root should be torn down.
	CancelWatch(err error)
}

// Watcher is the interface implemented by filesystem watching backends. A
// watcher buffers observed changes internally; the owning root consumes them
// via ConsumeNotify and blocks for new arrivals via WaitNotify.
type Watcher interface {
	// Start begins watching. It blocks until the backend is ready to observe
	// changes (or until a bounded startup timeout elapses), ensuring that no
	// change occurring after a successful return can be missed.
	Start() error
	// ConsumeNotify drains all internally buffered events into the specified
	// collection and returns whether or not any were added.
	ConsumeNotify(collection *pending.Collection) bool
	// WaitNotify blocks until internally buffered events exist or the
	// specified timeout elapses, returning whether or not events exist. It
	// returns false immediately if the watcher has been signalled to stop.
	WaitNotify(timeout time.Duration) bool
	// SignalThreads wakes any blocked waiters and directs the backend's
	// threads to shut down. It does not wait for them to exit.
	SignalThreads()
}

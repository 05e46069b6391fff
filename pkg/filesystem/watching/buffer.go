package watching

import (
	"sync"
	"time"

	"github.com/vigilo-io/vigilo/pkg/pending"
)

// observation is a single buffered change observation.
type observation struct {
	// path is the absolute path at which the change was observed.
	path string
	// at is the observation time.
	at time.Time
}

// buffer provides the internal event buffering shared by all watching
// backends. Backend reader threads append filtered observations, while the
// owning root consumes and waits through the Watcher interface. It also
// provides the shutdown signal used to wake blocked waiters and direct reader
// threads to exit.
type buffer struct {
	// filter excludes paths before they are buffered. It may be nil.
	filter Filter
	// lock guards observations.
	lock sync.Mutex
	// observations are the buffered observations in arrival order.
	observations []observation
	// strobe is strobed (non-blockingly) whenever observations arrive.
	strobe chan struct{}
	// shutdownOnce guards closure of shutdown.
	shutdownOnce sync.Once
	// shutdown is closed to wake waiters and stop reader threads.
	shutdown chan struct{}
}

// newBuffer creates a buffer with the specified filter.
func newBuffer(filter Filter) *buffer {
	return &buffer{
		filter:   filter,
		strobe:   make(chan struct{}, 1),
		shutdown: make(chan struct{}),
	}
}

// append records observations of the specified paths, applying the filter.
func (b *buffer) append(paths ...string) {
	// Apply filtering.
	var accepted []observation
	now := time.Now()
	for _, path := range paths {
		if b.filter != nil && b.filter(path) {
			continue
		}
		accepted = append(accepted, observation{path: path, at: now})
	}
	if len(accepted) == 0 {
		return
	}

	// Buffer the observations.
	b.lock.Lock()
	b.observations = append(b.observations, accepted...)
	b.lock.Unlock()

	// Strobe the wake channel.
	select {
	case b.strobe <- struct{}{}:
	default:
	}
}

// ConsumeNotify drains all buffered observations into the specified
// collection and returns whether or not any were added.
func (b *buffer) ConsumeNotify(collection *pending.Collection) bool {
	// Grab the buffered observations.
	b.lock.Lock()
	observations := b.observations
	b.observations = nil
	b.lock.Unlock()

	// Transfer them to the collection.
	for _, o := range observations {
		collection.Add(o.path, o.at, pending.ViaNotify)
	}

	// Done.
	return len(observations) > 0
}

// WaitNotify blocks until buffered observations exist, the specified timeout
// elapses, or shutdown is signalled.
func (b *buffer) WaitNotify(timeout time.Duration) bool {
	// Check for already-buffered observations, draining any stale strobe so
	// that a subsequent wait doesn't wake spuriously.
	b.lock.Lock()
	buffered := len(b.observations) > 0
	b.lock.Unlock()
	if buffered {
		select {
		case <-b.strobe:
		default:
		}
		return true
	}

	// Wait for arrival, timeout, or shutdown.
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-b.strobe:
		return true
	case <-timer.C:
		return false
	case <-b.shutdown:
		return false
	}
}

// SignalThreads closes the shutdown channel, waking any blocked waiters and
// directing reader threads to exit.
func (b *buffer) SignalThreads() {
	b.shutdownOnce.Do(func() {
		close(b.shutdown)
	})
}

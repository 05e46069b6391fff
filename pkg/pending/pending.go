package pending

import (
	"sync"
	"time"
)

// Flag encodes the source of a pending change observation.
type Flag uint8

const (
	// ViaNotify indicates that the change was reported by the platform
	// notification backend.
	ViaNotify Flag = 1 << iota
	// ViaCrawl indicates that the change was synthesized by a filesystem
	// crawl (e.g. during a recrawl of the root).
	ViaCrawl
	// ViaCookie indicates that the change corresponds to a consistency
	// cookie marker file.
	ViaCookie
)

// Change represents a single pending filesystem change. Identity is by path;
// re-observation of a path supersedes the timing metadata of the earlier
// observation and merges source flags.
type Change struct {
	// Path is the absolute path at which the change was observed.
	Path string
	// ObservedAt is the time of the most recent observation.
	ObservedAt time.Time
	// Flags records the source(s) through which the change was observed.
	Flags Flag
	// New indicates that the publishing root had not previously observed the
	// path. It is set during batch construction, not by observers.
	New bool
}

// Batch is a settled set of changes published to a root's subscribers.
type Batch struct {
	// Tick is the root's logical clock value at which the batch was settled.
	Tick uint64
	// Settled indicates whether or not the batch represents a settled state.
	// Unsettled batches exist only to advance subscriber eligibility.
	Settled bool
	// Changes are the batch's changes in first-arrival order.
	Changes []*Change
}

// Collection is a thread-safe, deduplicating store of pending changes. Adds
// coalesce by path while preserving first-arrival iteration order, and
// draining atomically hands all current entries to a single consumer. The
// zero value is ready to use.
type Collection struct {
	// lock guards the fields below.
	lock sync.Mutex
	// indices maps paths to their positions in changes.
	indices map[string]int
	// changes are the pending changes in first-arrival order.
	changes []*Change
}

// Add records an observation of the specified path. If the path is already
// pending, the existing entry's observation time is updated and its flags are
// merged; no duplicate entry is created.
func (c *Collection) Add(path string, observedAt time.Time, flags Flag) {
	c.lock.Lock()
	defer c.lock.Unlock()

	// Coalesce with an existing entry if there is one.
	if index, ok := c.indices[path]; ok {
		change := c.changes[index]
		change.ObservedAt = observedAt
		change.Flags |= flags
		return
	}

	// Otherwise record a new entry.
	if c.indices == nil {
		c.indices = make(map[string]int)
	}
	c.indices[path] = len(c.changes)
	c.changes = append(c.changes, &Change{
		Path:       path,
		ObservedAt: observedAt,
		Flags:      flags,
	})
}

// DrainAll atomically removes and returns all pending changes in
// first-arrival order. It returns nil if the collection is empty.
func (c *Collection) DrainAll() []*Change {
	c.lock.Lock()
	defer c.lock.Unlock()

	// Grab the current contents and reset.
	changes := c.changes
	c.changes = nil
	c.indices = nil

	// Done.
	return changes
}

// Empty returns whether or not the collection currently holds no changes.
func (c *Collection) Empty() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return len(c.changes) == 0
}

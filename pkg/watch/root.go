package watch

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/vigilo-io/vigilo/pkg/filesystem/watching"
	"github.com/vigilo-io/vigilo/pkg/ignore"
	"github.com/vigilo-io/vigilo/pkg/logging"
	"github.com/vigilo-io/vigilo/pkg/pending"
	"github.com/vigilo-io/vigilo/pkg/state"
	"github.com/vigilo-io/vigilo/pkg/trigger"
)

const (
	// idlePollInterval is the wait bound used when a root has no pending
	// changes. It exists only so that recrawl and cancellation requests are
	// picked up promptly even if a wakeup is lost.
	idlePollInterval = time.Second
)

// Dispositions reported by trigger definition operations.
const (
	// TriggerCreated indicates that a new trigger was created.
	TriggerCreated = "created"
	// TriggerReplaced indicates that an existing trigger was stopped and
	// replaced by a differing definition.
	TriggerReplaced = "replaced"
	// TriggerAlreadyDefined indicates that an identical definition already
	// existed and was left untouched.
	TriggerAlreadyDefined = "already_defined"
)

// Root owns the complete watch state for a single directory tree: the
// watcher, the pending change collection, ignore configuration, cookie
// state, the logical tick clock, and the trigger table. Its processing loop
// drains the collection once changes settle and publishes settled batches to
// trigger subscriptions.
type Root struct {
	// path is the watched root path.
	path string
	// socketPath is the daemon control socket address advertised to spawned
	// trigger processes.
	socketPath string
	// logger is the root's logger.
	logger *logging.Logger
	// settle is the settle window.
	settle time.Duration
	// ignores is the root's ignore configuration.
	ignores *ignore.Set
	// cookies implements the consistency cookie protocol.
	cookies *cookieJar
	// watcher is the root's notification backend.
	watcher watching.Watcher
	// collection is the root's pending change collection.
	collection pending.Collection
	// tracker is the root's logical tick clock.
	tracker *state.Tracker
	// publisher fans settled batches out to trigger subscriptions.
	publisher *state.Publisher
	// seen tracks paths already observed by the processing loop, for marking
	// first observations. It is owned exclusively by the processing loop.
	seen map[string]bool
	// triggersLock guards triggers.
	triggersLock sync.Mutex
	// triggers is the trigger table.
	triggers map[string]*trigger.Command
	// stateCallback, if non-nil, is invoked after each published batch so
	// that an owning registry can surface tick advancement. It must be set
	// before Start.
	stateCallback func()
	// recrawls receives recrawl requests.
	recrawls chan string
	// cancelOnce guards closure of cancelled.
	cancelOnce sync.Once
	// cancelled is closed to direct the processing loop to exit.
	cancelled chan struct{}
	// done is closed when the processing loop exits.
	done chan struct{}
	// failureLock guards failure.
	failureLock sync.Mutex
	// failure records the error that cancelled the watch, if any.
	failure error
}

// NewRoot creates a watch root for the specified path. The root's
// configuration is resolved from the specified global configuration and the
// root's own configuration file. The returned root is inert until started.
func NewRoot(path, socketPath string, global *GlobalConfiguration, logger *logging.Logger) (*Root, error) {
	// Enforce an absolute, existing directory root.
	if !filepath.IsAbs(path) {
		return nil, errors.New("root path must be absolute")
	}
	path = filepath.Clean(path)
	if info, err := os.Lstat(path); err != nil {
		return nil, errors.Wrap(err, "unable to probe root")
	} else if !info.IsDir() {
		return nil, errors.New("root is not a directory")
	}

	// Load and resolve configuration.
	rootConfiguration, err := loadRootConfiguration(path)
	if err != nil {
		return nil, err
	}
	configuration, err := resolveConfiguration(global, rootConfiguration)
	if err != nil {
		return nil, err
	}

	// Build the ignore set.
	ignores := ignore.NewSet()
	if configuration.ignoreVCS {
		for _, name := range ignore.DefaultVCSDirectoryNames {
			if err := ignores.Add(filepath.Join(path, name), true); err != nil {
				return nil, errors.Wrap(err, "unable to register VCS ignore")
			}
		}
	}
	for _, directory := range configuration.ignoreDirectories {
		if err := ignores.Add(filepath.Join(path, filepath.FromSlash(directory)), false); err != nil {
			return nil, errors.Wrap(err, "unable to register ignore")
		}
	}

	// Designate the cookie directory and create the jar.
	cookies := newCookieJar(designateCookieDirectory(path, ignores.VCSPaths()))

	// Create the root.
	root := &Root{
		path:       path,
		socketPath: socketPath,
		logger:     logger,
		settle:     configuration.settle,
		ignores:    ignores,
		cookies:    cookies,
		tracker:    state.NewTracker(),
		publisher:  state.NewPublisher(),
		seen:       make(map[string]bool),
		triggers:   make(map[string]*trigger.Command),
		recrawls:   make(chan string, 1),
		cancelled:  make(chan struct{}),
		done:       make(chan struct{}),
	}

	// Create the watcher. Cookie markers must flow through even when the
	// cookie directory lives inside an ignored subtree, so the filter passes
	// cookie paths and the cookie directory is designated as the backend's
	// marker directory to keep it watched despite being ignored.
	filter := func(candidate string) bool {
		if cookies.isCookiePath(candidate) {
			return false
		}
		return ignores.IsIgnored(candidate)
	}
	watcher, err := watching.New(path, configuration.kind, filter, cookies.directory, root)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create watcher")
	}
	root.watcher = watcher

	// Success.
	return root, nil
}

// Path returns the root's path.
func (r *Root) Path() string {
	return r.path
}

// Tick returns the root's current logical clock value.
func (r *Root) Tick() uint64 {
	return r.tracker.Index()
}

// Failure returns the error that cancelled the root's watch, if any.
func (r *Root) Failure() error {
	r.failureLock.Lock()
	defer r.failureLock.Unlock()
	return r.failure
}

// OnStateChange registers a callback invoked after each published batch. It
// must be called before Start.
func (r *Root) OnStateChange(callback func()) {
	r.stateCallback = callback
}

// ScheduleRecrawl implements watching.Controller.ScheduleRecrawl.
func (r *Root) ScheduleRecrawl(reason string) {
	select {
	case r.recrawls <- reason:
	default:
	}
}

// CancelWatch implements watching.Controller.CancelWatch.
func (r *Root) CancelWatch(err error) {
	r.failureLock.Lock()
	if r.failure == nil {
		r.failure = err
	}
	r.failureLock.Unlock()
	r.logger.Error(errors.Wrap(err, "watch cancelled"))
	r.cancelOnce.Do(func() {
		close(r.cancelled)
	})
}

// Start starts the root's watcher and processing loop.
func (r *Root) Start() error {
	if err := r.watcher.Start(); err != nil {
		return errors.Wrap(err, "unable to start watcher")
	}
	go r.run()
	return nil
}

// Stop tears the root down: every trigger is stopped before the processing
// loop, and Stop doesn't return until all of them have exited.
func (r *Root) Stop() {
	// Stop all triggers.
	r.triggersLock.Lock()
	for name, command := range r.triggers {
		command.Stop()
		command.Drop()
		delete(r.triggers, name)
	}
	r.triggersLock.Unlock()

	// Direct the processing loop and watcher threads to exit and wait for
	// the processing loop to do so.
	r.cancelOnce.Do(func() {
		close(r.cancelled)
	})
	r.watcher.SignalThreads()
	<-r.done

	// Terminate the tick clock so that any clock waiters unblock.
	r.tracker.Terminate()
}

// SyncToNow establishes a consistency barrier: it blocks (boundedly) until
// the notification source has demonstrably delivered all events up to the
// point of the call.
func (r *Root) SyncToNow(timeout time.Duration) error {
	return r.cookies.SyncToNow(timeout)
}

// crawl walks the root and records every non-excluded path as a pending
// change, reconciling state after the notification stream has lost events.
func (r *Root) crawl(reason string) {
	r.logger.Printf("recrawling %s: %s", r.path, reason)
	now := time.Now()
	filepath.Walk(r.path, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if r.ignores.IsIgnored(path) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path != r.path {
			r.collection.Add(path, now, pending.ViaCrawl)
		}
		return nil
	})
}

// run is the root's processing loop. It consumes watcher notifications into
// the pending collection, detects settle, and publishes settled batches at
// fresh ticks.
func (r *Root) run() {
	defer close(r.done)
	for {
		// Idle phase: wait for activity, servicing recrawl and cancellation
		// requests.
		for r.collection.Empty() {
			select {
			case <-r.cancelled:
				return
			case reason := <-r.recrawls:
				r.crawl(reason)
				continue
			default:
			}
			if r.watcher.WaitNotify(idlePollInterval) {
				r.watcher.ConsumeNotify(&r.collection)
			}
		}

		// Settle phase: keep consuming until a full settle window passes
		// without new notifications.
		for r.watcher.WaitNotify(r.settle) {
			r.watcher.ConsumeNotify(&r.collection)
			select {
			case <-r.cancelled:
				return
			default:
			}
		}

		// The burst has settled. Drain and process the batch.
		changes := r.collection.DrainAll()
		changes = r.processCookies(changes)
		if len(changes) == 0 {
			continue
		}
		r.markNewPaths(changes)

		// Advance the clock and publish.
		tick := r.tracker.NotifyOfChange()
		r.logger.Debugf("settled %d change(s) at tick %d", len(changes), tick)
		r.publisher.Publish(&pending.Batch{
			Tick:    tick,
			Settled: true,
			Changes: changes,
		})
		if r.stateCallback != nil {
			r.stateCallback()
		}
	}
}

// processCookies releases cookie waiters for any observed cookie markers and
// withholds those markers from the returned changes.
func (r *Root) processCookies(changes []*pending.Change) []*pending.Change {
	filtered := changes[:0]
	for _, change := range changes {
		if r.cookies.observe(change.Path) {
			change.Flags |= pending.ViaCookie
			continue
		}
		filtered = append(filtered, change)
	}
	return filtered
}

// markNewPaths marks changes for paths not previously observed by the
// processing loop. Removed paths are forgotten so that recreation registers
// as new.
func (r *Root) markNewPaths(changes []*pending.Change) {
	for _, change := range changes {
		if _, err := os.Lstat(change.Path); err == nil {
			change.New = !r.seen[change.Path]
			r.seen[change.Path] = true
		} else {
			delete(r.seen, change.Path)
		}
	}
}

// SetTrigger creates, replaces, or leaves untouched the trigger with the
// specified definition's name, returning the resulting disposition. An
// identical redefinition leaves the existing instance (and its accumulated
// progress) untouched. A differing redefinition stops the existing instance
// before the replacement starts, and advances the root's clock so that the
// new instance is immediately eligible to observe the current state.
func (r *Root) SetTrigger(definition *trigger.Definition) (string, error) {
	// Acquire the trigger table lock and ensure its release.
	r.triggersLock.Lock()
	defer r.triggersLock.Unlock()

	// Check for an existing identical definition.
	existing, exists := r.triggers[definition.Name]
	if exists && existing.Definition().SemanticallyEqual(definition) {
		return TriggerAlreadyDefined, nil
	}

	// Create the replacement first so that a configuration error leaves the
	// existing instance untouched.
	command, err := trigger.NewCommand(r.path, r.socketPath, definition, r.logger.Sublogger(definition.Name))
	if err != nil {
		return "", err
	}

	// Stop any existing instance. Stop is synchronous, so the old instance
	// can be safely discarded afterward.
	disposition := TriggerCreated
	if exists {
		existing.Stop()
		existing.Drop()
		disposition = TriggerReplaced
	}

	// Register and start the new instance.
	r.triggers[definition.Name] = command
	command.Start(r.publisher.Subscribe())

	// Advance the clock. The new instance subscribes at the current state,
	// so the advance only establishes eligibility; no changes are replayed.
	tick := r.tracker.NotifyOfChange()
	r.publisher.Publish(&pending.Batch{Tick: tick})

	// Done.
	return disposition, nil
}

// DeleteTrigger stops and removes the named trigger, returning whether or
// not it existed.
func (r *Root) DeleteTrigger(name string) bool {
	r.triggersLock.Lock()
	defer r.triggersLock.Unlock()
	command, ok := r.triggers[name]
	if !ok {
		return false
	}
	command.Stop()
	command.Drop()
	delete(r.triggers, name)
	return true
}

// Triggers returns the definitions of the root's triggers, sorted by name.
func (r *Root) Triggers() []*trigger.Definition {
	r.triggersLock.Lock()
	defer r.triggersLock.Unlock()
	definitions := make([]*trigger.Definition, 0, len(r.triggers))
	for _, command := range r.triggers {
		definitions = append(definitions, command.Definition())
	}
	sort.Slice(definitions, func(i, j int) bool {
		return definitions[i].Name < definitions[j].Name
	})
	return definitions
}

package watch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/vigilo-io/vigilo/pkg/encoding"
	"github.com/vigilo-io/vigilo/pkg/logging"
	"github.com/vigilo-io/vigilo/pkg/state"
	"github.com/vigilo-io/vigilo/pkg/trigger"
)

// savedWatch is the persisted form of a single watch.
type savedWatch struct {
	// Path is the watched root path.
	Path string `json:"path"`
	// Triggers are the root's trigger definitions.
	Triggers []*trigger.Definition `json:"triggers,omitempty"`
}

// savedState is the persisted form of the full watch registry.
type savedState struct {
	// Watches are the registered watches.
	Watches []savedWatch `json:"watches"`
}

// WatchState is a snapshot of a single watch for listing and monitoring.
type WatchState struct {
	// Path is the watched root path.
	Path string `json:"path"`
	// Tick is the root's current logical clock value.
	Tick uint64 `json:"tick"`
	// Triggers is the number of triggers registered on the root.
	Triggers int `json:"triggers"`
	// Failure describes the error that cancelled the watch, if any.
	Failure string `json:"failure,omitempty"`
}

// Service maintains the registry of watch roots and implements the daemon's
// control operations against it. It is safe for concurrent usage.
type Service struct {
	// socketPath is the daemon control socket address advertised to spawned
	// trigger processes.
	socketPath string
	// registryPath is the path at which the registry is persisted. An empty
	// path disables persistence.
	registryPath string
	// configuration is the daemon-wide configuration.
	configuration *GlobalConfiguration
	// logger is the service's logger.
	logger *logging.Logger
	// tracker notifies state monitors of registry and root changes.
	tracker *state.Tracker
	// lock guards roots and broadcasts state changes on release.
	lock *state.TrackingLock
	// roots is the watch registry, keyed by root path.
	roots map[string]*Root
	// saveLock serializes state persistence.
	saveLock sync.Mutex
}

// NewService creates a watch service with an empty registry, persisting to
// the specified path. An empty registry path disables persistence.
func NewService(socketPath, registryPath string, configuration *GlobalConfiguration, logger *logging.Logger) *Service {
	tracker := state.NewTracker()
	return &Service{
		socketPath:    socketPath,
		registryPath:  registryPath,
		configuration: configuration,
		logger:        logger,
		tracker:       tracker,
		lock:          state.NewTrackingLock(tracker),
		roots:         make(map[string]*Root),
	}
}

// Load restores the registry from durable storage, recreating watches and
// triggers persisted by previous runs. Roots that can no longer be watched
// are dropped with a warning rather than failing the load.
func (s *Service) Load() error {
	// Load the saved state, treating disabled persistence or a missing file
	// as an empty registry.
	if s.registryPath == "" {
		return nil
	}
	saved := &savedState{}
	if err := encoding.LoadAndUnmarshalJSON(s.registryPath, saved); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "unable to load saved state")
	}

	// Recreate each watch.
	for _, watch := range saved.Watches {
		if err := s.Watch(watch.Path); err != nil {
			s.logger.Warn(errors.Wrapf(err, "unable to restore watch of %s", watch.Path))
			continue
		}
		for _, definition := range watch.Triggers {
			if _, err := s.Trigger(watch.Path, definition); err != nil {
				s.logger.Warn(errors.Wrapf(err, "unable to restore trigger %s", definition.Name))
			}
		}
	}

	// Success.
	return nil
}

// save persists the registry to durable storage.
func (s *Service) save() error {
	// Bail if persistence is disabled.
	if s.registryPath == "" {
		return nil
	}

	// Serialize saves.
	s.saveLock.Lock()
	defer s.saveLock.Unlock()

	// Snapshot the registry.
	s.lock.Lock()
	saved := &savedState{}
	for _, root := range s.roots {
		saved.Watches = append(saved.Watches, savedWatch{
			Path:     root.Path(),
			Triggers: root.Triggers(),
		})
	}
	s.lock.UnlockWithoutNotify()
	sort.Slice(saved.Watches, func(i, j int) bool {
		return saved.Watches[i].Path < saved.Watches[j].Path
	})

	// Write it out.
	return encoding.MarshalAndSaveJSON(s.registryPath, saved)
}

// resolveRootPath canonicalizes a root path specification.
func resolveRootPath(path string) (string, error) {
	if path == "" {
		return "", errors.New("empty root path")
	}
	absolute, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrap(err, "unable to resolve root path")
	}
	return filepath.Clean(absolute), nil
}

// Watch registers and starts a watch of the specified root. Watching an
// already watched root is an error.
func (s *Service) Watch(path string) error {
	// Canonicalize the path.
	path, err := resolveRootPath(path)
	if err != nil {
		return err
	}

	// Check for an existing watch.
	s.lock.Lock()
	if _, ok := s.roots[path]; ok {
		s.lock.UnlockWithoutNotify()
		return errors.New("root already watched")
	}
	s.lock.UnlockWithoutNotify()

	// Create and start the root outside the registry lock since startup
	// blocks on watcher readiness.
	root, err := NewRoot(path, s.socketPath, s.configuration, s.logger.Sublogger("root"))
	if err != nil {
		return err
	}
	root.OnStateChange(func() {
		s.tracker.NotifyOfChange()
	})
	if err := root.Start(); err != nil {
		return err
	}

	// Register it, handling the case of a concurrent registration.
	s.lock.Lock()
	if _, ok := s.roots[path]; ok {
		s.lock.UnlockWithoutNotify()
		root.Stop()
		return errors.New("root already watched")
	}
	s.roots[path] = root
	s.lock.Unlock()

	// Persist.
	if err := s.save(); err != nil {
		s.logger.Warn(errors.Wrap(err, "unable to save state"))
	}

	// Success.
	return nil
}

// WatchDel stops and removes the watch of the specified root, returning
// whether or not it existed.
func (s *Service) WatchDel(path string) (bool, error) {
	// Canonicalize the path.
	path, err := resolveRootPath(path)
	if err != nil {
		return false, err
	}

	// Deregister the root.
	s.lock.Lock()
	root, ok := s.roots[path]
	if !ok {
		s.lock.UnlockWithoutNotify()
		return false, nil
	}
	delete(s.roots, path)
	s.lock.Unlock()

	// Tear it down. The root stops its triggers before its processing loop.
	root.Stop()

	// Persist.
	if err := s.save(); err != nil {
		s.logger.Warn(errors.Wrap(err, "unable to save state"))
	}

	// Done.
	return true, nil
}

// WatchList returns a snapshot of the registry, sorted by root path.
func (s *Service) WatchList() []WatchState {
	s.lock.Lock()
	defer s.lock.UnlockWithoutNotify()
	watches := make([]WatchState, 0, len(s.roots))
	for _, root := range s.roots {
		watchState := WatchState{
			Path:     root.Path(),
			Tick:     root.Tick(),
			Triggers: len(root.Triggers()),
		}
		if err := root.Failure(); err != nil {
			watchState.Failure = err.Error()
		}
		watches = append(watches, watchState)
	}
	sort.Slice(watches, func(i, j int) bool {
		return watches[i].Path < watches[j].Path
	})
	return watches
}

// root looks up the watch root for the specified path.
func (s *Service) root(path string) (*Root, error) {
	path, err := resolveRootPath(path)
	if err != nil {
		return nil, err
	}
	s.lock.Lock()
	defer s.lock.UnlockWithoutNotify()
	root, ok := s.roots[path]
	if !ok {
		return nil, errors.New("root not watched")
	}
	return root, nil
}

// Trigger creates, replaces, or confirms the specified trigger definition on
// the specified root, returning the resulting disposition. Successful
// creation or replacement persists the registry; an identical redefinition
// does not (preserving the existing instance's accumulated progress).
func (s *Service) Trigger(path string, definition *trigger.Definition) (string, error) {
	// Look up the root.
	root, err := s.root(path)
	if err != nil {
		return "", err
	}

	// Apply the definition.
	disposition, err := root.SetTrigger(definition)
	if err != nil {
		return "", err
	}

	// Persist and notify monitors unless nothing changed.
	if disposition != TriggerAlreadyDefined {
		if err := s.save(); err != nil {
			s.logger.Warn(errors.Wrap(err, "unable to save state"))
		}
		s.tracker.NotifyOfChange()
	}

	// Done.
	return disposition, nil
}

// TriggerDel removes the named trigger from the specified root, returning
// whether or not it existed.
func (s *Service) TriggerDel(path, name string) (bool, error) {
	// Look up the root.
	root, err := s.root(path)
	if err != nil {
		return false, err
	}

	// Delete the trigger.
	deleted := root.DeleteTrigger(name)

	// Persist and notify monitors if anything changed.
	if deleted {
		if err := s.save(); err != nil {
			s.logger.Warn(errors.Wrap(err, "unable to save state"))
		}
		s.tracker.NotifyOfChange()
	}

	// Done.
	return deleted, nil
}

// TriggerList returns the trigger definitions of the specified root, sorted
// by name.
func (s *Service) TriggerList(path string) ([]*trigger.Definition, error) {
	root, err := s.root(path)
	if err != nil {
		return nil, err
	}
	return root.Triggers(), nil
}

// Monitor blocks until the registry's state index exceeds previous (or the
// context is cancelled) and returns the new index with a registry snapshot.
// A previous index of 0 returns immediately with the current state.
func (s *Service) Monitor(ctx context.Context, previous uint64) (uint64, []WatchState, error) {
	index, err := s.tracker.WaitForChange(ctx, previous)
	if err != nil {
		return 0, nil, err
	}
	return index, s.WatchList(), nil
}

// Shutdown tears down every watch root. The service must not be used
// afterward.
func (s *Service) Shutdown() {
	// Deregister all roots.
	s.lock.Lock()
	roots := make([]*Root, 0, len(s.roots))
	for _, root := range s.roots {
		roots = append(roots, root)
	}
	s.roots = make(map[string]*Root)
	s.lock.UnlockWithoutNotify()

	// Tear them down.
	for _, root := range roots {
		root.Stop()
	}

	// Terminate monitor tracking.
	s.tracker.Terminate()
}
